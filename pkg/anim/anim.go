// Package anim composes the frames of an animated image into the picture a
// viewer shows at a given frame.
package anim

import (
	"fmt"
	"image/color"
	"log/slog"

	"github.com/jpfielding/pixkit.go/pkg/raster"
)

// Disposal says what happens to a frame's rectangle before the next frame is
// drawn.
type Disposal int

const (
	Unspecified Disposal = iota // same as Leave
	Leave
	Background
	Previous
)

func (d Disposal) String() string {
	switch d {
	case Leave:
		return "leave"
	case Background:
		return "background"
	case Previous:
		return "previous"
	}
	return "unspecified"
}

// FrameInfo is the part of a frame known without decoding it. Transparent
// reports whether the frame declares a transparent index.
type FrameInfo struct {
	Left, Top     int
	Width, Height int
	Disposal      Disposal
	Transparent   bool
}

// Covers reports whether the frame spans the whole canvas.
func (f FrameInfo) Covers(width, height int) bool {
	return f.Left == 0 && f.Top == 0 && f.Width == width && f.Height == height
}

// Source is a multi-frame stream. DecodeFrame returns a palettised raster
// whose first fully transparent palette entry marks pixels to skip, and which
// may carry raster.TagFrameTime in raster.ModelAnimation.
type Source interface {
	Canvas() (width, height int, background color.NRGBA)
	FrameCount() int
	FrameInfo(i int) (FrameInfo, error)
	DecodeFrame(i int) (*raster.Buffer, error)
}

// Start finds the first frame that must be drawn to show frame k: walking
// back from k, it stops after a full-canvas frame disposed to background, or
// at a full-canvas opaque frame that is not disposed to previous.
func Start(src Source, k int) (int, []FrameInfo, error) {
	if k < 0 || k >= src.FrameCount() {
		return 0, nil, fmt.Errorf("anim: frame %d out of range [0,%d)", k, src.FrameCount())
	}
	width, height, _ := src.Canvas()
	infos := make([]FrameInfo, k+1)
	start := k
	for ; start >= 0; start-- {
		info, err := src.FrameInfo(start)
		if err != nil {
			return 0, nil, fmt.Errorf("anim: frame %d: %w", start, err)
		}
		infos[start] = info
		if start == k || !info.Covers(width, height) {
			continue
		}
		if info.Disposal == Background {
			start++
			break
		}
		if info.Disposal != Previous && !info.Transparent {
			break
		}
	}
	return max(start, 0), infos, nil
}

// Render returns frame k as the viewer sees it: a top-down 32-bit canvas
// holding every frame from Start(src, k) through k. Pixels never drawn keep
// the background colour with zero alpha.
func Render(src Source, k int) (*raster.Buffer, error) {
	start, infos, err := Start(src, k)
	if err != nil {
		return nil, err
	}
	width, height, bg := src.Canvas()
	canvas, err := raster.New(width, height, 32, raster.TopDown)
	if err != nil {
		return nil, fmt.Errorf("anim: canvas: %w", err)
	}
	bg.A = 0
	fill(canvas, FrameInfo{Width: width, Height: height}, bg)
	slog.Debug("anim render", "frame", k, "start", start, "canvas", canvas)

	for i := start; i <= k; i++ {
		info := infos[i]
		if i != k {
			switch info.Disposal {
			case Previous:
				continue
			case Background:
				fill(canvas, info, bg)
				continue
			}
		}
		frame, err := src.DecodeFrame(i)
		if err != nil {
			if i == k {
				return nil, fmt.Errorf("anim: frame %d: %w", i, err)
			}
			slog.Warn("anim frame skipped", "frame", i, "error", err)
			continue
		}
		draw(canvas, info, frame)
		if i == k {
			if ms, ok := frame.MetadataInt(raster.ModelAnimation, raster.TagFrameTime); ok {
				canvas.SetMetadata(raster.ModelAnimation, raster.TagFrameTime, int32(ms))
			}
		}
	}
	if _, ok := canvas.Metadata(raster.ModelAnimation, raster.TagFrameTime); !ok {
		canvas.SetMetadata(raster.ModelAnimation, raster.TagFrameTime, int32(0))
	}
	return canvas, nil
}

// clip bounds a frame rectangle to the canvas.
func clip(canvas *raster.Buffer, info FrameInfo) (x0, y0, x1, y1 int) {
	x0, y0 = max(info.Left, 0), max(info.Top, 0)
	x1 = min(info.Left+info.Width, canvas.Width)
	y1 = min(info.Top+info.Height, canvas.Height)
	return
}

func fill(canvas *raster.Buffer, info FrameInfo, c color.NRGBA) {
	x0, y0, x1, y1 := clip(canvas, info)
	for y := y0; y < y1; y++ {
		row := canvas.Row(y)
		for x := x0; x < x1; x++ {
			put(row[x*4:], c)
		}
	}
}

func draw(canvas *raster.Buffer, info FrameInfo, frame *raster.Buffer) {
	if frame.BPP > 8 || !frame.HasPixels() {
		return
	}
	trans, hasTrans := frame.TransparentIndex()
	x0, y0, x1, y1 := clip(canvas, info)
	x1 = min(x1, info.Left+frame.Width)
	y1 = min(y1, info.Top+frame.Height)
	for y := y0; y < y1; y++ {
		row := canvas.Row(y)
		for x := x0; x < x1; x++ {
			idx := int(frame.Index(x-info.Left, y-info.Top))
			if (hasTrans && idx == trans) || idx >= len(frame.Palette) {
				continue
			}
			c := frame.Palette[idx]
			c.A = 0xFF
			put(row[x*4:], c)
		}
	}
}

func put(px []byte, c color.NRGBA) {
	px[raster.ChannelBlue] = c.B
	px[raster.ChannelGreen] = c.G
	px[raster.ChannelRed] = c.R
	px[raster.ChannelAlpha] = c.A
}
