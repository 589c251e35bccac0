package pcx

import (
	"bufio"
	"encoding/binary"
	"errors"
	"image/color"
	"io"
	"log/slog"

	"github.com/jpfielding/pixkit.go/pkg/codec"
	"github.com/jpfielding/pixkit.go/pkg/compress/rle"
	"github.com/jpfielding/pixkit.go/pkg/raster"
)

// layout is the plane arrangement of a file.
type layout struct{ bpp, planes int }

var (
	mono      = layout{1, 1}
	indexed   = layout{8, 1}
	planar16  = layout{1, 4}
	trueColor = layout{8, 3}
)

// Load reads the image at the current stream offset into a top-down buffer.
func (c *Codec) Load(r io.ReadSeeker, page int, flags codec.Flags, _ codec.Session) (*raster.Buffer, error) {
	start, err := r.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, codec.ReadError(Format, "stream offset", err)
	}
	var h header
	if err := binary.Read(r, binary.LittleEndian, &h); err != nil {
		return nil, codec.ReadError(Format, "header", err)
	}
	if !h.valid() {
		return nil, codec.Errorf(Format, codec.ErrFormat, "invalid magic number")
	}
	left, top, right, bottom := int(h.Window[0]), int(h.Window[1]), int(h.Window[2]), int(h.Window[3])
	if left > right || top > bottom {
		return nil, codec.Errorf(Format, codec.ErrCorrupt, "bad window %v", h.Window)
	}
	width, height := right-left+1, bottom-top+1

	lay := layout{int(h.BPP), int(h.Planes)}
	var bpp int
	switch lay {
	case mono, indexed:
		bpp = lay.bpp
	case planar16:
		bpp = 4
	case trueColor:
		bpp = 24
	default:
		return nil, codec.Errorf(Format, codec.ErrUnsupported, "%d planes of %d bits", lay.planes, lay.bpp)
	}
	headerOnly := flags.Has(codec.HeaderOnly)
	var b *raster.Buffer
	if headerOnly {
		b, err = raster.NewHeader(width, height, bpp, raster.TopDown)
	} else {
		b, err = raster.New(width, height, bpp, raster.TopDown)
	}
	if err != nil {
		return nil, codec.AllocError(Format, err)
	}
	b.DotsPerMeterX, b.DotsPerMeterY = toDotsPerMeter(h.HDPI), toDotsPerMeter(h.VDPI)

	switch bpp {
	case 1:
		b.Palette[0] = color.NRGBA{A: 0xFF}
		b.Palette[1] = color.NRGBA{R: 0xFF, G: 0xFF, B: 0xFF, A: 0xFF}
	case 4:
		setPalette(b.Palette, h.ColorMap[:])
	case 8:
		readPalette(r, b, h.PaletteInfo)
		if _, err := r.Seek(start+headerLen, io.SeekStart); err != nil {
			return nil, codec.ReadError(Format, "pixel data", err)
		}
	}
	if headerOnly {
		return b, nil
	}

	bpl := int(h.BytesPerLine)
	line := make([]byte, bpl*lay.planes)
	br := bufio.NewReader(r)
	short := false
	for y := 0; y < height; y++ {
		if !short {
			n, err := readLine(br, line, h.Encoding == encodingRLE)
			if err != nil {
				return nil, codec.ReadError(Format, "pixel data", err)
			}
			if n < len(line) {
				slog.Warn("pcx pixel data truncated", "format", Format, "row", y, "height", height)
				short = true
			}
		}
		row := b.Row(y)
		switch lay {
		case mono, indexed:
			copy(row[:b.Line()], line)
		case planar16:
			for x := 0; x < width && x/8 < bpl; x++ {
				var v uint8
				mask := byte(0x80 >> (x & 7))
				for p := 0; p < 4; p++ {
					if line[p*bpl+x/8]&mask != 0 {
						v |= 1 << p
					}
				}
				b.SetIndex(x, y, v)
			}
		case trueColor:
			for x := 0; x < width && x < bpl; x++ {
				row[3*x+raster.ChannelRed] = line[x]
				row[3*x+raster.ChannelGreen] = line[bpl+x]
				row[3*x+raster.ChannelBlue] = line[2*bpl+x]
			}
		}
		if short {
			clear(line)
		}
	}
	return b, nil
}

// readLine fills line from the stream and returns how many bytes were
// present. Bytes past a short read are zero.
func readLine(br *bufio.Reader, line []byte, encoded bool) (int, error) {
	if encoded {
		n, err := rle.DecodePCXLine(br, line)
		return n, err
	}
	n, err := io.ReadFull(br, line)
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		clear(line[n:])
		return n, nil
	}
	return n, err
}

// readPalette looks for the 256-colour table appended to the file. Without
// one a grayscale hint or the default ramp applies, which the buffer already
// carries.
func readPalette(r io.ReadSeeker, b *raster.Buffer, info uint16) {
	tail := make([]byte, 1+paletteLen)
	if _, err := r.Seek(-int64(len(tail)), io.SeekEnd); err == nil {
		if _, err := io.ReadFull(r, tail); err == nil && tail[0] == paletteMarker {
			setPalette(b.Palette, tail[1:])
			return
		}
	}
	if info == paletteGray {
		copy(b.Palette, raster.Grayscale(len(b.Palette)))
	}
}

func setPalette(dst []color.NRGBA, rgb []byte) {
	for i := 0; i < len(dst) && 3*i+2 < len(rgb); i++ {
		dst[i] = color.NRGBA{R: rgb[3*i], G: rgb[3*i+1], B: rgb[3*i+2], A: 0xFF}
	}
}
