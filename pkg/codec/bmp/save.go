package bmp

import (
	"bufio"
	"encoding/binary"
	"io"

	"github.com/jpfielding/pixkit.go/pkg/codec"
	"github.com/jpfielding/pixkit.go/pkg/compress/rle"
	"github.com/jpfielding/pixkit.go/pkg/raster"
)

// Save writes a bottom-up BITMAPINFOHEADER file. 16-bit buffers get their
// channel masks as BI_BITFIELDS; 8-bit buffers are RLE8 coded with
// codec.SaveRLE.
func (c *Codec) Save(w io.Writer, b *raster.Buffer, page int, flags codec.Flags, _ codec.Session) error {
	if err := codec.CanExport(c, b); err != nil {
		return err
	}
	colors := b.ColorsUsed()
	bitfields := b.BPP == 16
	useRLE := b.BPP == 8 && flags.Has(codec.SaveRLE)

	var pixels []byte
	if useRLE {
		for y := b.Height - 1; y >= 0; y-- {
			pixels = rle.AppendBMP8Line(pixels, b.Row(y)[:b.Line()])
		}
		pixels = rle.AppendBMP8End(pixels)
	}

	offBits := fileHeaderLen + infoHeaderLen + colors*4
	if bitfields {
		offBits += 12
	}
	imageSize := b.Pitch * b.Height
	if useRLE {
		imageSize = len(pixels)
	}
	ih := infoHeader{
		Size:          infoHeaderLen,
		Width:         int32(b.Width),
		Height:        int32(b.Height),
		Planes:        1,
		BitCount:      uint16(b.BPP),
		Compression:   compRGB,
		SizeImage:     uint32(imageSize),
		XPelsPerMeter: int32(b.DotsPerMeterX),
		YPelsPerMeter: int32(b.DotsPerMeterY),
		ClrUsed:       uint32(colors),
	}
	switch {
	case bitfields:
		ih.Compression = compBitfields
	case useRLE:
		ih.Compression = compRLE8
	}
	fh := fileHeader{
		Type:    [2]byte{'B', 'M'},
		Size:    uint32(offBits + imageSize),
		OffBits: uint32(offBits),
	}

	bw := bufio.NewWriter(w)
	if err := binary.Write(bw, binary.LittleEndian, fh); err != nil {
		return codec.WriteError(Format, "file header", err)
	}
	if err := binary.Write(bw, binary.LittleEndian, ih); err != nil {
		return codec.WriteError(Format, "info header", err)
	}
	if bitfields {
		masks := []uint32{b.RedMask, b.GreenMask, b.BlueMask}
		if err := binary.Write(bw, binary.LittleEndian, masks); err != nil {
			return codec.WriteError(Format, "bit fields", err)
		}
	}
	for _, p := range b.Palette[:colors] {
		if _, err := bw.Write([]byte{p.B, p.G, p.R, 0}); err != nil {
			return codec.WriteError(Format, "palette", err)
		}
	}
	if useRLE {
		if _, err := bw.Write(pixels); err != nil {
			return codec.WriteError(Format, "rle data", err)
		}
	} else {
		for y := b.Height - 1; y >= 0; y-- {
			if _, err := bw.Write(b.Row(y)); err != nil {
				return codec.WriteError(Format, "pixel data", err)
			}
		}
	}
	if err := bw.Flush(); err != nil {
		return codec.WriteError(Format, "pixel data", err)
	}
	return nil
}
