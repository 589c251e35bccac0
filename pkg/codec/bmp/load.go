package bmp

import (
	"bufio"
	"encoding/binary"
	"image/color"
	"io"
	"log/slog"

	"github.com/jpfielding/pixkit.go/pkg/codec"
	"github.com/jpfielding/pixkit.go/pkg/compress/rle"
	"github.com/jpfielding/pixkit.go/pkg/raster"
)

// Load reads the bitmap at the current stream offset. Offsets in the file
// header are relative to that position.
func (c *Codec) Load(r io.ReadSeeker, page int, flags codec.Flags, _ codec.Session) (*raster.Buffer, error) {
	start, err := r.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, codec.ReadError(Format, "stream offset", err)
	}
	var fh fileHeader
	if err := binary.Read(r, binary.LittleEndian, &fh); err != nil {
		return nil, codec.ReadError(Format, "file header", err)
	}
	if fh.Type != [2]byte{'B', 'M'} && fh.Type != [2]byte{'B', 'A'} {
		return nil, codec.Errorf(Format, codec.ErrFormat, "bad signature %q", fh.Type[:])
	}
	var size uint32
	if err := binary.Read(r, binary.LittleEndian, &size); err != nil {
		return nil, codec.ReadError(Format, "info header", err)
	}
	if _, err := r.Seek(-4, io.SeekCurrent); err != nil {
		return nil, codec.ReadError(Format, "info header", err)
	}

	ld := loader{r: r, start: start, offBits: start + int64(fh.OffBits), headerOnly: flags.Has(codec.HeaderOnly)}
	switch size {
	case coreHeaderLen:
		return ld.loadCore()
	case os2HeaderLen:
		return ld.loadInfo(size, true)
	case infoHeaderLen, v2HeaderLen, v3HeaderLen, v4HeaderLen, v5HeaderLen:
		return ld.loadInfo(size, false)
	}
	return nil, codec.Errorf(Format, codec.ErrUnsupported, "unknown bmp subtype with id %d", size)
}

type loader struct {
	r          io.ReadSeeker
	start      int64
	offBits    int64
	headerOnly bool
}

func (ld *loader) alloc(width, height, bpp int, order raster.Order) (*raster.Buffer, error) {
	var (
		b   *raster.Buffer
		err error
	)
	if ld.headerOnly {
		b, err = raster.NewHeader(width, height, bpp, order)
	} else {
		b, err = raster.New(width, height, bpp, order)
	}
	if err != nil {
		return nil, codec.AllocError(Format, err)
	}
	return b, nil
}

// loadInfo handles the Windows headers and the OS/2 2.x header, which shares
// the first 40 bytes of BITMAPINFOHEADER.
func (ld *loader) loadInfo(size uint32, os2 bool) (*raster.Buffer, error) {
	var ih infoHeader
	if err := binary.Read(ld.r, binary.LittleEndian, &ih); err != nil {
		return nil, codec.ReadError(Format, "info header", err)
	}
	if ih.Width < 0 {
		return nil, codec.Errorf(Format, codec.ErrCorrupt, "negative width %d", ih.Width)
	}
	width, height, order := int(ih.Width), int(ih.Height), raster.BottomUp
	if height < 0 {
		height, order = -height, raster.TopDown
	}
	bpp := int(ih.BitCount)

	switch bpp {
	case 1, 4, 8:
		used := int(ih.ClrUsed)
		if used == 0 || used > 1<<bpp {
			used = 1 << bpp
		}
		b, err := ld.alloc(width, height, bpp, order)
		if err != nil {
			return nil, err
		}
		b.DotsPerMeterX, b.DotsPerMeterY = int(ih.XPelsPerMeter), int(ih.YPelsPerMeter)
		if os2 {
			err = ld.readOS2Palette(b, size, used)
		} else {
			if size > infoHeaderLen {
				if _, err := ld.r.Seek(int64(size-infoHeaderLen), io.SeekCurrent); err != nil {
					return nil, codec.ReadError(Format, "info header", err)
				}
			}
			err = ld.readPalette(b, used, 4)
		}
		if err != nil {
			return nil, err
		}
		if ld.headerOnly {
			return b, nil
		}
		if err := ld.seekPixels(os2, used); err != nil {
			return nil, err
		}
		switch ih.Compression {
		case compRGB:
			return ld.readRows(b)
		case compRLE4:
			return ld.readRLE(b, true)
		case compRLE8:
			return ld.readRLE(b, false)
		}
		return nil, codec.Errorf(Format, codec.ErrUnsupported, "compression %d at %d bpp", ih.Compression, bpp)

	case 16, 24, 32:
		fields := 0
		switch {
		case ih.Compression == compBitfields:
			fields = 3
		case ih.Compression == compAlphaBitfields:
			fields = 4
		case os2:
		case size == v2HeaderLen:
			fields = 3
		case size >= v3HeaderLen:
			fields = 4
		}
		if os2 && bpp != 16 {
			fields = 0
		}
		masks := make([]uint32, fields)
		if fields > 0 {
			if err := binary.Read(ld.r, binary.LittleEndian, masks); err != nil {
				return nil, codec.ReadError(Format, "bit fields", err)
			}
		}
		b, err := ld.alloc(width, height, bpp, order)
		if err != nil {
			return nil, err
		}
		if fields >= 3 && masks[0]|masks[1]|masks[2] != 0 {
			b.RedMask, b.GreenMask, b.BlueMask = masks[0], masks[1], masks[2]
		}
		b.DotsPerMeterX, b.DotsPerMeterY = int(ih.XPelsPerMeter), int(ih.YPelsPerMeter)
		if ld.headerOnly {
			return b, nil
		}
		if err := ld.seekPixels(os2, int(ih.ClrUsed)); err != nil {
			return nil, err
		}
		return ld.readRows(b)
	}
	return nil, codec.Errorf(Format, codec.ErrUnsupported, "%d bits per pixel", bpp)
}

// loadCore handles the OS/2 1.x header: 16-bit dimensions, 3-byte palette.
func (ld *loader) loadCore() (*raster.Buffer, error) {
	var ch coreHeader
	if err := binary.Read(ld.r, binary.LittleEndian, &ch); err != nil {
		return nil, codec.ReadError(Format, "core header", err)
	}
	bpp := int(ch.BitCount)
	switch bpp {
	case 1, 4, 8, 16, 24, 32:
	default:
		return nil, codec.Errorf(Format, codec.ErrUnsupported, "%d bits per pixel", bpp)
	}
	b, err := ld.alloc(int(ch.Width), int(ch.Height), bpp, raster.BottomUp)
	if err != nil {
		return nil, err
	}
	b.DotsPerMeterX, b.DotsPerMeterY = defaultDotsPerMeter, defaultDotsPerMeter
	if bpp <= 8 {
		if err := ld.readPalette(b, 1<<bpp, 3); err != nil {
			return nil, err
		}
	}
	if ld.headerOnly {
		return b, nil
	}
	if _, err := ld.r.Seek(ld.offBits, io.SeekStart); err != nil {
		return nil, codec.ReadError(Format, "pixel data", err)
	}
	return ld.readRows(b)
}

// readOS2Palette works out whether entries are 3 or 4 bytes from the gap
// between the info header and the pixel data.
func (ld *loader) readOS2Palette(b *raster.Buffer, size uint32, used int) error {
	entry := (ld.offBits - ld.start - fileHeaderLen - int64(size)) / int64(used)
	if _, err := ld.r.Seek(ld.start+fileHeaderLen+int64(size), io.SeekStart); err != nil {
		return codec.ReadError(Format, "palette", err)
	}
	if entry != 3 && entry != 4 {
		slog.Warn("bmp palette entry size not understood, keeping default", "entry", entry, "colors", used)
		return nil
	}
	return ld.readPalette(b, used, int(entry))
}

// readPalette reads used BGR or BGRX entries.
func (ld *loader) readPalette(b *raster.Buffer, used, entry int) error {
	buf := make([]byte, used*entry)
	if _, err := io.ReadFull(ld.r, buf); err != nil {
		return codec.ReadError(Format, "palette", err)
	}
	for i := 0; i < used && i < len(b.Palette); i++ {
		p := buf[i*entry:]
		b.Palette[i] = color.NRGBA{R: p[2], G: p[1], B: p[0], A: 0xFF}
	}
	return nil
}

// seekPixels jumps to the pixel data. OS/2 2.x files sometimes carry an
// offset that points inside the header, in which case reading continues
// where the palette ended.
func (ld *loader) seekPixels(os2 bool, used int) error {
	if os2 && ld.offBits-ld.start <= int64(fileHeaderLen+infoHeaderLen+used*3) {
		return nil
	}
	if _, err := ld.r.Seek(ld.offBits, io.SeekStart); err != nil {
		return codec.ReadError(Format, "pixel data", err)
	}
	return nil
}

// readRows reads uncompressed rows in file order. BMP rows are padded to
// four bytes, the same pitch the buffer uses.
func (ld *loader) readRows(b *raster.Buffer) (*raster.Buffer, error) {
	for i := 0; i < b.Height; i++ {
		if _, err := io.ReadFull(ld.r, b.ScanLine(i)); err != nil {
			return nil, codec.ReadError(Format, "pixel data", err)
		}
	}
	return b, nil
}

// readRLE expands RLE8 or RLE4 data. RLE4 decodes one nibble per byte and is
// packed afterwards.
func (ld *loader) readRLE(b *raster.Buffer, nibbles bool) (*raster.Buffer, error) {
	width, decode := b.Line(), rle.DecodeBMP8
	if nibbles {
		width, decode = b.Width, rle.DecodeBMP4
	}
	tmp := make([]byte, width*b.Height)
	if err := decode(bufio.NewReader(ld.r), tmp, width, b.Height); err != nil {
		return nil, codec.ReadError(Format, "rle data", err)
	}
	for i := 0; i < b.Height; i++ {
		row := tmp[i*width : (i+1)*width]
		if nibbles {
			rle.PackNibbles(b.ScanLine(i), row)
		} else {
			copy(b.ScanLine(i), row)
		}
	}
	return b, nil
}
