package gif

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"image/color"
	"io"
	"log/slog"

	"github.com/jpfielding/pixkit.go/pkg/anim"
	"github.com/jpfielding/pixkit.go/pkg/codec"
	"github.com/jpfielding/pixkit.go/pkg/compress/lzw"
	"github.com/jpfielding/pixkit.go/pkg/raster"
)

type screenDescriptor struct {
	Width      uint16
	Height     uint16
	Packed     uint8
	Background uint8
	Aspect     uint8
}

type imageDescriptor struct {
	Left   uint16
	Top    uint16
	Width  uint16
	Height uint16
	Packed uint8
}

// graphicControl follows the block size byte of the extension.
type graphicControl struct {
	Packed      uint8
	Delay       uint16 // hundredths of a second
	Transparent uint8
}

// scanner reads forward through a stream while tracking its absolute offset.
type scanner struct {
	br  *bufio.Reader
	pos int64
}

func (sc *scanner) readByte() (byte, error) {
	b, err := sc.br.ReadByte()
	if err == nil {
		sc.pos++
	}
	return b, err
}

func (sc *scanner) skip(n int) error {
	m, err := sc.br.Discard(n)
	sc.pos += int64(m)
	return err
}

func (sc *scanner) read(v any) error {
	if err := binary.Read(sc.br, binary.LittleEndian, v); err != nil {
		return err
	}
	sc.pos += int64(binary.Size(v))
	return nil
}

// skipSubBlocks steps over a chain of data sub-blocks and its terminator.
func (sc *scanner) skipSubBlocks() error {
	for {
		n, err := sc.readByte()
		if err != nil || n == 0 {
			return err
		}
		if err := sc.skip(int(n)); err != nil {
			return err
		}
	}
}

// OpenRead scans the block structure of the stream and records the offsets
// of every frame and extension. A stream that ends before the trailer keeps
// the frames found so far.
func (c *Codec) OpenRead(r io.ReadSeeker) (codec.Session, error) {
	start, err := r.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, codec.ReadError(Format, "stream offset", err)
	}
	sc := &scanner{br: bufio.NewReader(r), pos: start}
	sig := make([]byte, headerLen)
	if _, err := io.ReadFull(sc.br, sig); err != nil {
		return nil, codec.ReadError(Format, "signature", err)
	}
	sc.pos += headerLen
	if !bytes.Equal(sig, magic89a) && !bytes.Equal(sig, magic87a) {
		return nil, codec.Errorf(Format, codec.ErrFormat, "bad signature %q", sig)
	}
	var lsd screenDescriptor
	if err := sc.read(&lsd); err != nil {
		return nil, codec.ReadError(Format, "logical screen descriptor", err)
	}
	s := &session{
		read:          true,
		start:         start,
		logicalWidth:  int(lsd.Width),
		logicalHeight: int(lsd.Height),
		background:    lsd.Background,
	}
	if lsd.Packed&lsdHaveGCT != 0 {
		s.globalOffset = sc.pos
		s.globalSize = 2 << (lsd.Packed & lsdGCTSize)
		if err := sc.skip(3 * s.globalSize); err != nil {
			return nil, codec.ReadError(Format, "global colour table", err)
		}
	}

	var control int64
	for {
		block, err := sc.readByte()
		if err != nil {
			if len(s.descriptors) > 0 && errors.Is(err, io.EOF) {
				slog.Warn("gif ends without trailer", "frames", len(s.descriptors))
				return s, nil
			}
			return nil, codec.ReadError(Format, "blocks", err)
		}
		switch block {
		case blockTrailer:
			return s, nil
		case blockImage:
			s.descriptors = append(s.descriptors, sc.pos)
			s.controls = append(s.controls, control)
			control = 0
			var id imageDescriptor
			if err := sc.read(&id); err != nil {
				return nil, codec.ReadError(Format, "image descriptor", err)
			}
			if id.Packed&idHaveLCT != 0 {
				if err := sc.skip(3 * (2 << (id.Packed & idLCTSize))); err != nil {
					return nil, codec.ReadError(Format, "local colour table", err)
				}
			}
			// LZW minimum code size
			if err := sc.skip(1); err != nil {
				return nil, codec.ReadError(Format, "image data", err)
			}
		case blockExtension:
			label, err := sc.readByte()
			if err != nil {
				return nil, codec.ReadError(Format, "extension", err)
			}
			switch label {
			case extGraphicControl:
				// a later control extension replaces an earlier one
				control = sc.pos
			case extComment:
				s.comments = append(s.comments, sc.pos)
			case extApplication:
				s.applications = append(s.applications, sc.pos)
			}
		default:
			return nil, codec.Errorf(Format, codec.ErrCorrupt, "invalid block 0x%02X at offset %d", block, sc.pos-1)
		}
		if err := sc.skipSubBlocks(); err != nil {
			if len(s.descriptors) > 0 && errors.Is(err, io.EOF) {
				slog.Warn("gif ends inside a block", "frames", len(s.descriptors))
				return s, nil
			}
			return nil, codec.ReadError(Format, "sub-block", err)
		}
	}
}

// OpenWrite writes the signature and returns a session that numbers the
// pages saved through it.
func (c *Codec) OpenWrite(w io.Writer) (codec.Session, error) {
	if _, err := w.Write(magic89a); err != nil {
		return nil, codec.WriteError(Format, "signature", err)
	}
	return &session{w: w}, nil
}

// Load decodes one frame. With codec.Playback it returns the composed 32-bit
// picture a viewer shows at that frame instead. A nil session scans the
// stream first.
func (c *Codec) Load(r io.ReadSeeker, page int, flags codec.Flags, s codec.Session) (*raster.Buffer, error) {
	if s == nil {
		opened, err := c.OpenRead(r)
		if err != nil {
			return nil, err
		}
		s = opened
	}
	gs, err := asSession(s, true)
	if err != nil {
		return nil, err
	}
	if page == -1 {
		page = 0
	}
	if page < 0 || page >= len(gs.descriptors) {
		return nil, codec.Errorf(Format, codec.ErrPage, "page %d of %d", page, len(gs.descriptors))
	}
	if flags.Has(codec.Playback) {
		return anim.Render(&player{c: c, r: r, s: gs}, page)
	}
	return c.loadFrame(r, gs, page, flags.Has(codec.Load256))
}

func (c *Codec) loadFrame(r io.ReadSeeker, s *session, page int, load256 bool) (*raster.Buffer, error) {
	id, err := readDescriptor(r, s.descriptors[page])
	if err != nil {
		return nil, err
	}
	localSize := 0
	if id.Packed&idHaveLCT != 0 {
		localSize = 2 << (id.Packed & idLCTSize)
	}
	interlaced := id.Packed&idInterlaced != 0

	bpp := 8
	if !load256 {
		size := localSize
		if size == 0 {
			size = s.globalSize
		}
		switch {
		case size == 0:
		case size <= 2:
			bpp = 1
		case size <= 16:
			bpp = 4
		}
	}
	width, height := int(id.Width), int(id.Height)
	b, err := raster.New(width, height, bpp, raster.TopDown)
	if err != nil {
		return nil, codec.AllocError(Format, err)
	}
	b.SetMetadata(raster.ModelAnimation, raster.TagFrameLeft, int(id.Left))
	b.SetMetadata(raster.ModelAnimation, raster.TagFrameTop, int(id.Top))
	b.SetMetadata(raster.ModelAnimation, raster.TagNoLocalPalette, localSize == 0)
	b.SetMetadata(raster.ModelAnimation, raster.TagInterlaced, interlaced)

	switch {
	case localSize > 0:
		pal := make([]byte, 3*localSize)
		if _, err := io.ReadFull(r, pal); err != nil {
			return nil, codec.ReadError(Format, "local colour table", err)
		}
		setPalette(b.Palette, pal)
	case s.globalOffset != 0:
		pal, err := readAt(r, s.globalOffset, 3*s.globalSize)
		if err != nil {
			return nil, codec.ReadError(Format, "global colour table", err)
		}
		setPalette(b.Palette, pal)
		if _, err := r.Seek(s.descriptors[page]+int64(binary.Size(id)), io.SeekStart); err != nil {
			return nil, codec.ReadError(Format, "image data", err)
		}
	}

	if err := decodePixels(bufio.NewReader(r), b, interlaced); err != nil {
		return nil, err
	}
	if page == 0 {
		if err := c.loadScreenInfo(r, s, b); err != nil {
			return nil, err
		}
	}

	disposal, delay := 1, 0
	if s.controls[page] != 0 {
		gce, err := readControl(r, s.controls[page])
		if err != nil {
			return nil, err
		}
		disposal = int(gce.Packed&gceDisposal) >> 2
		delay = int(gce.Delay) * 10
		if gce.Packed&gceHaveTrans != 0 && int(gce.Transparent) < len(b.Palette) {
			b.SetTransparentIndex(int(gce.Transparent))
		}
	}
	b.SetMetadata(raster.ModelAnimation, raster.TagFrameTime, delay)
	b.SetMetadata(raster.ModelAnimation, raster.TagDisposalMethod, disposal)
	return b, nil
}

// decodePixels expands the LZW sub-blocks into b. Data that ends early leaves
// the remaining rows at index 0.
func decodePixels(br *bufio.Reader, b *raster.Buffer, interlaced bool) error {
	minCode, err := br.ReadByte()
	if err != nil {
		return codec.ReadError(Format, "lzw code size", err)
	}
	rows := rowOrder(b.Height, interlaced)
	if b.Width == 0 || len(rows) == 0 {
		return nil
	}
	d := lzw.NewDecoder(int(minCode))
	mask := byte(1<<b.BPP - 1)
	out := make([]byte, lzw.MaxCode)
	block := make([]byte, maxSubBlock)
	x, ri := 0, 0
	for ri < len(rows) && !d.Done() {
		n, err := br.ReadByte()
		if err == nil && n > 0 {
			_, err = io.ReadFull(br, block[:n])
		}
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				slog.Warn("gif image data truncated", "rows", ri, "height", b.Height)
				return nil
			}
			return codec.ReadError(Format, "image data", err)
		}
		if n == 0 {
			break
		}
		data := block[:n]
		for {
			k, m := d.Decode(out, data)
			data = data[m:]
			for _, v := range out[:k] {
				if ri == len(rows) {
					break
				}
				b.SetIndex(x, rows[ri], v&mask)
				if x++; x == b.Width {
					x, ri = 0, ri+1
				}
			}
			if k < len(out) {
				break
			}
		}
	}
	if ri < len(rows) {
		slog.Debug("gif image data short", "rows", ri, "height", b.Height)
	}
	return nil
}

// loadScreenInfo attaches the stream-wide information to the first frame.
func (c *Codec) loadScreenInfo(r io.ReadSeeker, s *session, b *raster.Buffer) error {
	b.SetMetadata(raster.ModelAnimation, raster.TagLogicalWidth, s.logicalWidth)
	b.SetMetadata(raster.ModelAnimation, raster.TagLogicalHeight, s.logicalHeight)
	if s.globalOffset != 0 {
		raw, err := readAt(r, s.globalOffset, 3*s.globalSize)
		if err != nil {
			return codec.ReadError(Format, "global colour table", err)
		}
		global := make([]color.NRGBA, s.globalSize)
		setPalette(global, raw)
		b.SetMetadata(raster.ModelAnimation, raster.TagGlobalPalette, global)
		if int(s.background) < len(global) {
			bg := global[s.background]
			b.Background = &bg
		}
	}

	// without a looping extension an animation plays once
	loop := 1
	for _, off := range s.applications {
		if n, ok := readLoop(r, off); ok {
			loop = n
			break
		}
	}
	b.SetMetadata(raster.ModelAnimation, raster.TagLoop, loop)

	for i, off := range s.comments {
		if _, err := r.Seek(off, io.SeekStart); err != nil {
			return codec.ReadError(Format, "comment", err)
		}
		text, err := readSubBlocks(bufio.NewReader(r))
		if err != nil {
			slog.Warn("gif comment unreadable", "index", i, "error", err)
			continue
		}
		b.SetMetadata(raster.ModelComments, fmt.Sprintf("Comment%d", i), string(text))
	}
	return nil
}

// readLoop reads the repeat count of a NETSCAPE2.0 or ANIMEXTS1.0 extension.
// The stored value counts repeats, so a non-zero count is one more play.
func readLoop(r io.ReadSeeker, off int64) (int, bool) {
	buf, err := readAt(r, off, 1+11+1+1+2)
	if err != nil || buf[0] != 11 {
		return 0, false
	}
	id := string(buf[1:12])
	if id != "NETSCAPE2.0" && id != "ANIMEXTS1.0" {
		return 0, false
	}
	if buf[12] != 3 {
		return 0, false
	}
	loop := int(binary.LittleEndian.Uint16(buf[14:]))
	if loop > 0 {
		loop++
	}
	return loop, true
}

func readSubBlocks(br *bufio.Reader) ([]byte, error) {
	var out []byte
	for {
		n, err := br.ReadByte()
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return out, nil
		}
		chunk := make([]byte, n)
		if _, err := io.ReadFull(br, chunk); err != nil {
			return nil, err
		}
		out = append(out, chunk...)
	}
}

func readAt(r io.ReadSeeker, off int64, n int) ([]byte, error) {
	if _, err := r.Seek(off, io.SeekStart); err != nil {
		return nil, err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func readDescriptor(r io.ReadSeeker, off int64) (imageDescriptor, error) {
	var id imageDescriptor
	if _, err := r.Seek(off, io.SeekStart); err != nil {
		return id, codec.ReadError(Format, "image descriptor", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &id); err != nil {
		return id, codec.ReadError(Format, "image descriptor", err)
	}
	return id, nil
}

// readControl reads the control extension whose label ends at off.
func readControl(r io.ReadSeeker, off int64) (graphicControl, error) {
	var gce graphicControl
	if _, err := r.Seek(off+1, io.SeekStart); err != nil {
		return gce, codec.ReadError(Format, "graphic control extension", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &gce); err != nil {
		return gce, codec.ReadError(Format, "graphic control extension", err)
	}
	return gce, nil
}

func setPalette(dst []color.NRGBA, rgb []byte) {
	for i := 0; i < len(dst) && 3*i+2 < len(rgb); i++ {
		dst[i] = color.NRGBA{R: rgb[3*i], G: rgb[3*i+1], B: rgb[3*i+2], A: 0xFF}
	}
}

// player exposes an open stream to the compositor.
type player struct {
	c *Codec
	r io.ReadSeeker
	s *session
}

func (p *player) Canvas() (int, int, color.NRGBA) {
	var bg color.NRGBA
	if p.s.globalOffset != 0 && int(p.s.background) < p.s.globalSize {
		rgb, err := readAt(p.r, p.s.globalOffset+3*int64(p.s.background), 3)
		if err != nil {
			slog.Warn("gif background unreadable", "error", err)
		} else {
			bg = color.NRGBA{R: rgb[0], G: rgb[1], B: rgb[2]}
		}
	}
	return p.s.logicalWidth, p.s.logicalHeight, bg
}

func (p *player) FrameCount() int { return len(p.s.descriptors) }

func (p *player) FrameInfo(i int) (anim.FrameInfo, error) {
	id, err := readDescriptor(p.r, p.s.descriptors[i])
	if err != nil {
		return anim.FrameInfo{}, err
	}
	info := anim.FrameInfo{
		Left:     int(id.Left),
		Top:      int(id.Top),
		Width:    int(id.Width),
		Height:   int(id.Height),
		Disposal: anim.Leave,
	}
	if p.s.controls[i] != 0 {
		gce, err := readControl(p.r, p.s.controls[i])
		if err != nil {
			return anim.FrameInfo{}, err
		}
		info.Transparent = gce.Packed&gceHaveTrans != 0
		if d := anim.Disposal(gce.Packed&gceDisposal) >> 2; d <= anim.Previous {
			info.Disposal = d
		} else {
			info.Disposal = anim.Unspecified
		}
	}
	return info, nil
}

func (p *player) DecodeFrame(i int) (*raster.Buffer, error) {
	return p.c.loadFrame(p.r, p.s, i, true)
}
