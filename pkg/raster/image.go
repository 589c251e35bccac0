package raster

import (
	"encoding/binary"
	"fmt"
	"image"
	"image/color"
)

// Image converts the buffer to a standard library image. Palettised buffers
// become *image.Paletted, 16-bit grayscale becomes *image.Gray16 and every
// other layout becomes *image.NRGBA.
func (b *Buffer) Image() (image.Image, error) {
	if !b.HasPixels() {
		return nil, ErrNoPixels
	}
	rect := image.Rect(0, 0, b.Width, b.Height)
	switch {
	case b.BPP <= 8:
		img := image.NewPaletted(rect, b.ColorPalette())
		for y := 0; y < b.Height; y++ {
			off := y * img.Stride
			for x := 0; x < b.Width; x++ {
				img.Pix[off+x] = b.Index(x, y)
			}
		}
		return img, nil
	case b.BPP == 16 && b.Type == TypeUint16:
		img := image.NewGray16(rect)
		for y := 0; y < b.Height; y++ {
			row, off := b.Row(y), y*img.Stride
			for x := 0; x < b.Width; x++ {
				v := binary.LittleEndian.Uint16(row[2*x:])
				img.Pix[off+2*x] = uint8(v >> 8)
				img.Pix[off+2*x+1] = uint8(v)
			}
		}
		return img, nil
	case b.BPP == 16:
		rs, rw := maskShift(b.RedMask)
		gs, gw := maskShift(b.GreenMask)
		bs, bw := maskShift(b.BlueMask)
		img := image.NewNRGBA(rect)
		for y := 0; y < b.Height; y++ {
			row, off := b.Row(y), y*img.Stride
			for x := 0; x < b.Width; x++ {
				v := uint32(binary.LittleEndian.Uint16(row[2*x:]))
				p := img.Pix[off+4*x : off+4*x+4]
				p[0] = expand((v&b.RedMask)>>rs, rw)
				p[1] = expand((v&b.GreenMask)>>gs, gw)
				p[2] = expand((v&b.BlueMask)>>bs, bw)
				p[3] = 0xFF
			}
		}
		return img, nil
	case b.BPP == 24 || b.BPP == 32:
		n := b.BPP / 8
		img := image.NewNRGBA(rect)
		for y := 0; y < b.Height; y++ {
			row, off := b.Row(y), y*img.Stride
			for x := 0; x < b.Width; x++ {
				s := row[n*x : n*x+n]
				p := img.Pix[off+4*x : off+4*x+4]
				p[0], p[1], p[2], p[3] = s[ChannelRed], s[ChannelGreen], s[ChannelBlue], 0xFF
				if n == 4 {
					p[3] = s[ChannelAlpha]
				}
			}
		}
		return img, nil
	}
	return nil, fmt.Errorf("raster: no image mapping for %s", b)
}

// FromImage copies a standard library image into a new top-down buffer.
// Opaque true-colour images become 24-bit, translucent ones 32-bit.
func FromImage(img image.Image) (*Buffer, error) {
	r := img.Bounds()
	w, h := r.Dx(), r.Dy()
	switch src := img.(type) {
	case *image.Paletted:
		b, err := New(w, h, 8, TopDown)
		if err != nil {
			return nil, err
		}
		translucent := false
		for i, c := range src.Palette {
			if i >= len(b.Palette) {
				break
			}
			n := color.NRGBAModel.Convert(c).(color.NRGBA)
			if n.A != 0xFF {
				translucent = true
			}
			b.Palette[i] = color.NRGBA{R: n.R, G: n.G, B: n.B, A: 0xFF}
		}
		for i := len(src.Palette); i < len(b.Palette); i++ {
			b.Palette[i] = color.NRGBA{A: 0xFF}
		}
		if translucent {
			b.Transparency = make([]uint8, len(b.Palette))
			for i := range b.Transparency {
				b.Transparency[i] = 0xFF
				if i < len(src.Palette) {
					b.Transparency[i] = color.NRGBAModel.Convert(src.Palette[i]).(color.NRGBA).A
				}
			}
		}
		for y := 0; y < h; y++ {
			off := src.PixOffset(r.Min.X, r.Min.Y+y)
			copy(b.Row(y)[:w], src.Pix[off:off+w])
		}
		return b, nil
	case *image.Gray:
		b, err := New(w, h, 8, TopDown)
		if err != nil {
			return nil, err
		}
		for y := 0; y < h; y++ {
			off := src.PixOffset(r.Min.X, r.Min.Y+y)
			copy(b.Row(y)[:w], src.Pix[off:off+w])
		}
		return b, nil
	case *image.Gray16:
		b, err := New(w, h, 16, TopDown)
		if err != nil {
			return nil, err
		}
		b.Type = TypeUint16
		b.RedMask, b.GreenMask, b.BlueMask = 0, 0, 0
		for y := 0; y < h; y++ {
			row := b.Row(y)
			off := src.PixOffset(r.Min.X, r.Min.Y+y)
			for x := 0; x < w; x++ {
				v := uint16(src.Pix[off+2*x])<<8 | uint16(src.Pix[off+2*x+1])
				binary.LittleEndian.PutUint16(row[2*x:], v)
			}
		}
		return b, nil
	}

	b, err := New(w, h, 32, TopDown)
	if err != nil {
		return nil, err
	}
	opaque := true
	for y := 0; y < h; y++ {
		row := b.Row(y)
		for x := 0; x < w; x++ {
			c := color.NRGBAModel.Convert(img.At(r.Min.X+x, r.Min.Y+y)).(color.NRGBA)
			p := row[4*x : 4*x+4]
			p[ChannelRed], p[ChannelGreen], p[ChannelBlue], p[ChannelAlpha] = c.R, c.G, c.B, c.A
			if c.A != 0xFF {
				opaque = false
			}
		}
	}
	if !opaque {
		return b, nil
	}
	return b.To24()
}

// To24 drops the alpha channel of a 32-bit buffer.
func (b *Buffer) To24() (*Buffer, error) {
	if b.BPP != 32 {
		return nil, fmt.Errorf("raster: To24 needs a 32-bit buffer, have %d", b.BPP)
	}
	out, err := New(b.Width, b.Height, 24, b.order)
	if err != nil {
		return nil, err
	}
	out.DotsPerMeterX, out.DotsPerMeterY = b.DotsPerMeterX, b.DotsPerMeterY
	out.CopyMetadata(b)
	for i := 0; i < b.Height; i++ {
		src, dst := b.ScanLine(i), out.ScanLine(i)
		for x := 0; x < b.Width; x++ {
			copy(dst[3*x:3*x+3], src[4*x:4*x+3])
		}
	}
	return out, nil
}
