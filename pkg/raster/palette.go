package raster

import "image/color"

// Grayscale builds an n-entry linear ramp from black to white.
func Grayscale(n int) []color.NRGBA {
	pal := make([]color.NRGBA, n)
	if n == 1 {
		pal[0] = color.NRGBA{A: 0xFF}
		return pal
	}
	for i := range pal {
		v := uint8(i * 255 / (n - 1))
		pal[i] = color.NRGBA{R: v, G: v, B: v, A: 0xFF}
	}
	return pal
}

// IsGrayscale reports whether every entry has equal colour channels.
func IsGrayscale(pal []color.NRGBA) bool {
	for _, c := range pal {
		if c.R != c.G || c.G != c.B {
			return false
		}
	}
	return true
}

// ColorPalette converts the buffer palette to an image/color palette with the
// transparency table applied as alpha.
func (b *Buffer) ColorPalette() color.Palette {
	pal := make(color.Palette, len(b.Palette))
	for i, c := range b.Palette {
		c.A = 0xFF
		if i < len(b.Transparency) {
			c.A = b.Transparency[i]
		}
		pal[i] = c
	}
	return pal
}

// maskShift returns the position of the lowest set bit and the width of mask.
func maskShift(mask uint32) (shift, width uint) {
	if mask == 0 {
		return 0, 0
	}
	for mask&1 == 0 {
		mask >>= 1
		shift++
	}
	for mask&1 == 1 {
		mask >>= 1
		width++
	}
	return shift, width
}

// expand scales a width-bit channel value to 8 bits.
func expand(v uint32, width uint) uint8 {
	switch {
	case width == 0:
		return 0
	case width >= 8:
		return uint8(v >> (width - 8))
	}
	top := uint32(1)<<width - 1
	return uint8((v*255 + top/2) / top)
}
