package gif

import (
	"bufio"
	"encoding/binary"
	"image/color"
	"io"
	"math/bits"

	"github.com/jpfielding/pixkit.go/pkg/codec"
	"github.com/jpfielding/pixkit.go/pkg/compress/lzw"
	"github.com/jpfielding/pixkit.go/pkg/raster"
)

// Save appends one frame to a write session. Page 0 also writes the logical
// screen, the global colour table, the looping extension and the comments; a
// negative page continues after the frames already written. A nil session
// writes a complete single-frame file.
func (c *Codec) Save(w io.Writer, b *raster.Buffer, page int, flags codec.Flags, s codec.Session) error {
	if s == nil {
		opened, err := c.OpenWrite(w)
		if err != nil {
			return err
		}
		if err := c.Save(w, b, 0, flags, opened); err != nil {
			return err
		}
		return c.Close(opened)
	}
	gs, err := asSession(s, false)
	if err != nil {
		return err
	}
	if err := codec.CanExport(c, b); err != nil {
		return err
	}
	if b.Width > 0xFFFF || b.Height > 0xFFFF {
		return codec.Errorf(Format, codec.ErrUnsupported, "%dx%d exceeds 65535", b.Width, b.Height)
	}
	if page < 0 {
		page = gs.pages
	}

	bw := bufio.NewWriter(gs.w)
	if page == 0 {
		if err := writeScreen(bw, b); err != nil {
			return err
		}
	}
	if err := writeControl(bw, b); err != nil {
		return err
	}
	if err := writeImage(bw, b); err != nil {
		return err
	}
	if err := bw.Flush(); err != nil {
		return codec.WriteError(Format, "image data", err)
	}
	gs.pages = page + 1
	return nil
}

func writeScreen(bw *bufio.Writer, b *raster.Buffer) error {
	lsd := screenDescriptor{Width: uint16(b.Width), Height: uint16(b.Height)}
	if v, ok := b.MetadataInt(raster.ModelAnimation, raster.TagLogicalWidth); ok && v > 0 && v <= 0xFFFF {
		lsd.Width = uint16(v)
	}
	if v, ok := b.MetadataInt(raster.ModelAnimation, raster.TagLogicalHeight); ok && v > 0 && v <= 0xFFFF {
		lsd.Height = uint16(v)
	}
	global, _ := b.MetadataPalette(raster.ModelAnimation, raster.TagGlobalPalette)
	if len(global) > 256 {
		global = global[:256]
	}
	var table []byte
	if len(global) > 0 {
		code := tableCode(len(global))
		lsd.Packed = lsdHaveGCT | code<<4 | code
		table = paletteBytes(global, 2<<code)
		if b.Background != nil {
			lsd.Background = nearest(global, *b.Background)
		}
	}
	if err := binary.Write(bw, binary.LittleEndian, lsd); err != nil {
		return codec.WriteError(Format, "logical screen descriptor", err)
	}
	if _, err := bw.Write(table); err != nil {
		return codec.WriteError(Format, "global colour table", err)
	}

	if loop, ok := b.MetadataInt(raster.ModelAnimation, raster.TagLoop); ok && loop != 1 {
		// the stored count is repeats after the first play
		if loop > 1 {
			loop--
		}
		loop = min(max(loop, 0), 0xFFFF)
		ext := []byte{blockExtension, extApplication, 11}
		ext = append(ext, "NETSCAPE2.0"...)
		ext = append(ext, 3, 1, 0, 0, 0)
		binary.LittleEndian.PutUint16(ext[len(ext)-3:], uint16(loop))
		if _, err := bw.Write(ext); err != nil {
			return codec.WriteError(Format, "loop extension", err)
		}
	}

	for _, tag := range b.MetadataTags(raster.ModelComments) {
		text, ok := tag.Value.(string)
		if !ok {
			continue
		}
		if _, err := bw.Write([]byte{blockExtension, extComment}); err != nil {
			return codec.WriteError(Format, "comment", err)
		}
		if err := writeSubBlocks(bw, []byte(text)); err != nil {
			return codec.WriteError(Format, "comment", err)
		}
	}
	return nil
}

func writeControl(bw *bufio.Writer, b *raster.Buffer) error {
	disposal, ok := b.MetadataInt(raster.ModelAnimation, raster.TagDisposalMethod)
	if !ok || disposal < 0 || disposal > 7 {
		disposal = defaultDisposal
	}
	delay, ok := b.MetadataInt(raster.ModelAnimation, raster.TagFrameTime)
	if !ok || delay < 0 {
		delay = defaultDelayMS
	}
	gce := graphicControl{
		Packed: uint8(disposal<<2) & gceDisposal,
		Delay:  uint16(min(delay/10, 0xFFFF)),
	}
	if idx, ok := b.TransparentIndex(); ok {
		gce.Packed |= gceHaveTrans
		gce.Transparent = uint8(idx)
	}
	if _, err := bw.Write([]byte{blockExtension, extGraphicControl, 4}); err != nil {
		return codec.WriteError(Format, "graphic control extension", err)
	}
	if err := binary.Write(bw, binary.LittleEndian, gce); err != nil {
		return codec.WriteError(Format, "graphic control extension", err)
	}
	if err := bw.WriteByte(0); err != nil {
		return codec.WriteError(Format, "graphic control extension", err)
	}
	return nil
}

func writeImage(bw *bufio.Writer, b *raster.Buffer) error {
	left, _ := b.MetadataInt(raster.ModelAnimation, raster.TagFrameLeft)
	top, _ := b.MetadataInt(raster.ModelAnimation, raster.TagFrameTop)
	interlaced, _ := b.MetadataInt(raster.ModelAnimation, raster.TagInterlaced)
	id := imageDescriptor{
		Left:   uint16(min(max(left, 0), 0xFFFF)),
		Top:    uint16(min(max(top, 0), 0xFFFF)),
		Width:  uint16(b.Width),
		Height: uint16(b.Height),
		Packed: idHaveLCT | uint8(b.BPP-1),
	}
	if interlaced != 0 {
		id.Packed |= idInterlaced
	}
	if err := bw.WriteByte(blockImage); err != nil {
		return codec.WriteError(Format, "image descriptor", err)
	}
	if err := binary.Write(bw, binary.LittleEndian, id); err != nil {
		return codec.WriteError(Format, "image descriptor", err)
	}
	if _, err := bw.Write(paletteBytes(b.Palette, 1<<b.BPP)); err != nil {
		return codec.WriteError(Format, "local colour table", err)
	}

	// GIF has no 1-bit code size
	minCode := max(b.BPP, 2)
	if err := bw.WriteByte(byte(minCode)); err != nil {
		return codec.WriteError(Format, "lzw code size", err)
	}
	enc := lzw.NewEncoder(minCode)
	enc.Start(b.BPP, b.Width)
	var data []byte
	out := make([]byte, lzw.MaxCode)
	for _, y := range rowOrder(b.Height, interlaced != 0) {
		line := b.Row(y)[:b.Line()]
		for len(line) > 0 {
			n, m := enc.Encode(out, line)
			data = append(data, out[:n]...)
			line = line[m:]
		}
	}
	data = append(data, enc.Finish()...)
	if err := writeSubBlocks(bw, data); err != nil {
		return codec.WriteError(Format, "image data", err)
	}
	return nil
}

// writeSubBlocks splits data into length-prefixed blocks and terminates the
// chain.
func writeSubBlocks(bw *bufio.Writer, data []byte) error {
	for len(data) > 0 {
		n := min(len(data), maxSubBlock)
		if err := bw.WriteByte(byte(n)); err != nil {
			return err
		}
		if _, err := bw.Write(data[:n]); err != nil {
			return err
		}
		data = data[n:]
	}
	return bw.WriteByte(0)
}

// tableCode is the size field for the smallest table holding n colours.
func tableCode(n int) uint8 {
	if n <= 2 {
		return 0
	}
	return uint8(bits.Len(uint(n-1)) - 1)
}

// paletteBytes lays out size RGB entries, padding with black.
func paletteBytes(pal []color.NRGBA, size int) []byte {
	out := make([]byte, 3*size)
	for i := 0; i < size && i < len(pal); i++ {
		out[3*i], out[3*i+1], out[3*i+2] = pal[i].R, pal[i].G, pal[i].B
	}
	return out
}

func nearest(pal []color.NRGBA, c color.NRGBA) uint8 {
	best, bestDist := 0, -1
	for i, p := range pal {
		dr, dg, db := int(p.R)-int(c.R), int(p.G)-int(c.G), int(p.B)-int(c.B)
		if d := dr*dr + dg*dg + db*db; bestDist < 0 || d < bestDist {
			best, bestDist = i, d
		}
	}
	return uint8(best)
}
