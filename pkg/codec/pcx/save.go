package pcx

import (
	"bufio"
	"encoding/binary"
	"io"

	"github.com/jpfielding/pixkit.go/pkg/codec"
	"github.com/jpfielding/pixkit.go/pkg/compress/rle"
	"github.com/jpfielding/pixkit.go/pkg/raster"
)

// Save writes a version 5 file: one plane for 1 and 8-bit buffers, three for
// 24-bit. Lines are run-length coded with codec.SaveRLE. 8-bit buffers get
// the 256-colour table appended.
func (c *Codec) Save(w io.Writer, b *raster.Buffer, page int, flags codec.Flags, _ codec.Session) error {
	if err := codec.CanExport(c, b); err != nil {
		return err
	}
	if b.Width == 0 || b.Height == 0 || b.Width > 0xFFFF || b.Height > 0xFFFF {
		return codec.Errorf(Format, codec.ErrUnsupported, "cannot save %dx%d images", b.Width, b.Height)
	}
	lay := indexed
	switch b.BPP {
	case 1:
		lay = mono
	case 24:
		lay = trueColor
	}
	// bytes per plane line are rounded up to an even count
	bpl := (b.Width*lay.bpp + 15) / 16 * 2

	h := header{
		Manufacturer: magic,
		Version:      maxVersion,
		Encoding:     encodingRaw,
		BPP:          uint8(lay.bpp),
		Window:       [4]uint16{0, 0, uint16(b.Width - 1), uint16(b.Height - 1)},
		HDPI:         toDPI(b.DotsPerMeterX),
		VDPI:         toDPI(b.DotsPerMeterY),
		Planes:       uint8(lay.planes),
		BytesPerLine: uint16(bpl),
		PaletteInfo:  paletteColor,
	}
	if flags.Has(codec.SaveRLE) {
		h.Encoding = encodingRLE
	}
	if b.BPP == 8 && raster.IsGrayscale(b.Palette) {
		h.PaletteInfo = paletteGray
	}

	bw := bufio.NewWriter(w)
	if err := binary.Write(bw, binary.LittleEndian, h); err != nil {
		return codec.WriteError(Format, "header", err)
	}
	line := make([]byte, bpl*lay.planes)
	var packed []byte
	for y := 0; y < b.Height; y++ {
		row := b.Row(y)
		if lay == trueColor {
			for x := 0; x < b.Width; x++ {
				line[x] = row[3*x+raster.ChannelRed]
				line[bpl+x] = row[3*x+raster.ChannelGreen]
				line[2*bpl+x] = row[3*x+raster.ChannelBlue]
			}
		} else {
			copy(line, row[:b.Line()])
		}
		out := line
		if h.Encoding == encodingRLE {
			packed = packed[:0]
			for p := 0; p < lay.planes; p++ {
				packed = rle.AppendPCXLine(packed, line[p*bpl:(p+1)*bpl])
			}
			out = packed
		}
		if _, err := bw.Write(out); err != nil {
			return codec.WriteError(Format, "pixel data", err)
		}
	}
	if b.BPP == 8 {
		tail := make([]byte, 1, 1+paletteLen)
		tail[0] = paletteMarker
		for _, p := range b.Palette {
			tail = append(tail, p.R, p.G, p.B)
		}
		if _, err := bw.Write(tail); err != nil {
			return codec.WriteError(Format, "palette", err)
		}
	}
	if err := bw.Flush(); err != nil {
		return codec.WriteError(Format, "pixel data", err)
	}
	return nil
}
