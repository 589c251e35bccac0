package sgi

import (
	"bufio"
	"encoding/binary"
	"io"

	"github.com/jpfielding/pixkit.go/pkg/codec"
	"github.com/jpfielding/pixkit.go/pkg/compress/rle"
	"github.com/jpfielding/pixkit.go/pkg/raster"
)

// Save writes 8-bit buffers as one gray channel, 24-bit as RGB and 32-bit as
// RGBA. 8-bit pixels are stored as their palette indices. Channel rows are
// run-length coded with codec.SaveRLE.
func (c *Codec) Save(w io.Writer, b *raster.Buffer, page int, flags codec.Flags, _ codec.Session) error {
	if err := codec.CanExport(c, b); err != nil {
		return err
	}
	if b.Width > 0xFFFF || b.Height > 0xFFFF {
		return codec.Errorf(Format, codec.ErrUnsupported, "%dx%d exceeds 65535", b.Width, b.Height)
	}
	channels := b.BPP / 8
	offsets, pixel := channelOffsets(channels)
	h := header{
		Magic:     magic,
		Storage:   storageRaw,
		BPC:       1,
		Dimension: 3,
		XSize:     uint16(b.Width),
		YSize:     uint16(b.Height),
		ZSize:     uint16(channels),
		PixMax:    0xFF,
	}
	if channels == 1 {
		h.Dimension = 2
	}
	if name, ok := b.MetadataString(raster.ModelComments, TagImageName); ok {
		copy(h.ImageName[:len(h.ImageName)-1], name)
	}
	if flags.Has(codec.SaveRLE) {
		h.Storage = storageRLE
	}

	bw := bufio.NewWriter(w)
	if err := binary.Write(bw, binary.BigEndian, h); err != nil {
		return codec.WriteError(Format, "header", err)
	}
	samples := make([]byte, b.Width)
	channelRow := func(i, off int) []byte {
		// SGI counts rows from the bottom
		row := b.Row(b.Height - 1 - i)
		for x := range samples {
			samples[x] = row[x*pixel+off]
		}
		return samples
	}

	if h.Storage == storageRaw {
		for _, off := range offsets {
			for i := 0; i < b.Height; i++ {
				if _, err := bw.Write(channelRow(i, off)); err != nil {
					return codec.WriteError(Format, "image data", err)
				}
			}
		}
		return flush(bw)
	}

	rows := b.Height * channels
	starts := make([]uint32, 0, rows)
	lengths := make([]uint32, 0, rows)
	var data []byte
	pos := headerLen + 8*rows
	for _, off := range offsets {
		for i := 0; i < b.Height; i++ {
			n := len(data)
			data = rle.AppendSGIRow(data, channelRow(i, off))
			starts = append(starts, uint32(pos+n))
			lengths = append(lengths, uint32(len(data)-n))
		}
	}
	if err := binary.Write(bw, binary.BigEndian, starts); err != nil {
		return codec.WriteError(Format, "rle index", err)
	}
	if err := binary.Write(bw, binary.BigEndian, lengths); err != nil {
		return codec.WriteError(Format, "rle index", err)
	}
	if _, err := bw.Write(data); err != nil {
		return codec.WriteError(Format, "image data", err)
	}
	return flush(bw)
}

func flush(bw *bufio.Writer) error {
	if err := bw.Flush(); err != nil {
		return codec.WriteError(Format, "image data", err)
	}
	return nil
}
