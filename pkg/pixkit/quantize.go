package pixkit

import (
	"fmt"
	"image/color"

	"github.com/jpfielding/pixkit.go/pkg/raster"
	"github.com/lucasb-eyer/go-colorful"
)

// webSafe is the 6x6x6 colour cube, red varying slowest.
var webSafe = func() []color.NRGBA {
	pal := make([]color.NRGBA, 0, transparentSlot)
	for r := 0; r < 6; r++ {
		for g := 0; g < 6; g++ {
			for b := 0; b < 6; b++ {
				pal = append(pal, color.NRGBA{R: uint8(r * 0x33), G: uint8(g * 0x33), B: uint8(b * 0x33), A: 0xFF})
			}
		}
	}
	return pal
}()

// transparentSlot is the palette entry Quantize uses for pixels with alpha
// below one half.
const transparentSlot = 216

func toColorful(c color.NRGBA) colorful.Color {
	return colorful.Color{R: float64(c.R) / 255, G: float64(c.G) / 255, B: float64(c.B) / 255}
}

// Quantize maps a true-colour buffer onto the web-safe palette, picking the
// nearest entry by CIE L*a*b* distance. Mostly transparent pixels share one
// extra transparent entry. Palettised buffers are returned unchanged.
func Quantize(b *raster.Buffer) (*raster.Buffer, error) {
	if b.BPP <= 8 {
		return b, nil
	}
	img, err := b.Image()
	if err != nil {
		return nil, fmt.Errorf("pixkit: quantize: %w", err)
	}
	out, err := raster.New(b.Width, b.Height, 8, raster.TopDown)
	if err != nil {
		return nil, fmt.Errorf("pixkit: quantize: %w", err)
	}
	copy(out.Palette, webSafe)
	for i := len(webSafe); i < len(out.Palette); i++ {
		out.Palette[i] = color.NRGBA{A: 0xFF}
	}
	labs := make([]colorful.Color, len(webSafe))
	for i, c := range webSafe {
		labs[i] = toColorful(c)
	}

	cache := map[color.NRGBA]uint8{}
	transparent := false
	for y := 0; y < b.Height; y++ {
		row := out.Row(y)
		for x := 0; x < b.Width; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			if c.A < 0x80 {
				row[x] = uint8(transparentSlot)
				transparent = true
				continue
			}
			c.A = 0xFF
			idx, ok := cache[c]
			if !ok {
				idx = nearestLab(labs, toColorful(c))
				cache[c] = idx
			}
			row[x] = idx
		}
	}
	if transparent {
		out.SetTransparentIndex(transparentSlot)
	}
	out.DotsPerMeterX, out.DotsPerMeterY = b.DotsPerMeterX, b.DotsPerMeterY
	out.CopyMetadata(b)
	return out, nil
}

func nearestLab(pal []colorful.Color, c colorful.Color) uint8 {
	best, dist := 0, c.DistanceLab(pal[0])
	for i := 1; i < len(pal); i++ {
		if d := c.DistanceLab(pal[i]); d < dist {
			best, dist = i, d
		}
	}
	return uint8(best)
}
