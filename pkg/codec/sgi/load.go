package sgi

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"io"

	"github.com/jpfielding/pixkit.go/pkg/codec"
	"github.com/jpfielding/pixkit.go/pkg/compress/rle"
	"github.com/jpfielding/pixkit.go/pkg/raster"
)

// Load reads the image at the current stream offset. SGI rows run from the
// bottom, so the buffer is bottom-up.
func (c *Codec) Load(r io.ReadSeeker, page int, flags codec.Flags, _ codec.Session) (*raster.Buffer, error) {
	start, err := r.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, codec.ReadError(Format, "stream offset", err)
	}
	var h header
	if err := binary.Read(r, binary.BigEndian, &h); err != nil {
		return nil, codec.ReadError(Format, "header", err)
	}
	if h.Magic != magic {
		return nil, codec.Errorf(Format, codec.ErrFormat, "invalid magic number %d", h.Magic)
	}
	if h.BPC != 1 {
		return nil, codec.Errorf(Format, codec.ErrUnsupported, "%d bytes per channel", h.BPC)
	}
	if h.ColorMap != 0 {
		return nil, codec.Errorf(Format, codec.ErrUnsupported, "colormap mode %d", h.ColorMap)
	}
	width, height, channels := int(h.XSize), int(h.YSize), int(h.ZSize)
	if h.Dimension < 2 {
		height = 1
	}
	if h.Dimension < 3 {
		channels = 1
	}
	offsets, pixel := channelOffsets(channels)
	if offsets == nil {
		return nil, codec.Errorf(Format, codec.ErrUnsupported, "%d channels", channels)
	}

	bpp := pixel * 8
	var b *raster.Buffer
	if flags.Has(codec.HeaderOnly) {
		b, err = raster.NewHeader(width, height, bpp, raster.BottomUp)
	} else {
		b, err = raster.New(width, height, bpp, raster.BottomUp)
	}
	if err != nil {
		return nil, codec.AllocError(Format, err)
	}
	if name, _, _ := bytes.Cut(h.ImageName[:], []byte{0}); len(name) > 0 {
		b.SetMetadata(raster.ModelComments, TagImageName, string(name))
	}
	if flags.Has(codec.HeaderOnly) || width == 0 || height == 0 {
		return b, nil
	}

	if h.Storage == storageRLE {
		err = readRLE(r, start, b, offsets, pixel)
	} else {
		err = readRaw(r, b, offsets, pixel)
	}
	if err != nil {
		return nil, err
	}
	if channels == 2 {
		for i := 0; i < height; i++ {
			row := b.ScanLine(i)
			for x := 0; x < width; x++ {
				p := row[4*x:]
				p[raster.ChannelGreen], p[raster.ChannelRed] = p[0], p[0]
			}
		}
	}
	return b, nil
}

// readRaw reads channel planes of bottom-up rows.
func readRaw(r io.Reader, b *raster.Buffer, offsets []int, pixel int) error {
	br := bufio.NewReader(r)
	samples := make([]byte, b.Width)
	for _, off := range offsets {
		for i := 0; i < b.Height; i++ {
			if _, err := io.ReadFull(br, samples); err != nil {
				return codec.ReadError(Format, "image data", err)
			}
			row := b.ScanLine(i)
			for x, v := range samples {
				row[x*pixel+off] = v
			}
		}
	}
	return nil
}

// readRLE locates every channel row through the offset table that follows
// the header. The length table after it is not needed.
func readRLE(r io.ReadSeeker, start int64, b *raster.Buffer, offsets []int, pixel int) error {
	table := make([]uint32, b.Height*len(offsets))
	if err := binary.Read(r, binary.BigEndian, table); err != nil {
		return codec.ReadError(Format, "rle index", err)
	}
	br := bufio.NewReader(r)
	k := 0
	for _, off := range offsets {
		for i := 0; i < b.Height; i++ {
			if _, err := r.Seek(start+int64(table[k]), io.SeekStart); err != nil {
				return codec.ReadError(Format, "rle row", err)
			}
			k++
			br.Reset(r)
			if err := rle.DecodeSGIRow(br, b.ScanLine(i)[off:], b.Width, pixel); err != nil {
				return codec.ReadError(Format, "rle row", err)
			}
		}
	}
	return nil
}
