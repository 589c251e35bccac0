package pixkit

import (
	"fmt"

	"github.com/disintegration/imaging"
	"github.com/jpfielding/pixkit.go/pkg/raster"
)

// Thumbnail scales b to fit within maxSize x maxSize with a Lanczos filter,
// keeping the aspect ratio. Smaller images are copied unscaled. The result
// is 24-bit, or 32-bit when b carries transparency.
func Thumbnail(b *raster.Buffer, maxSize int) (*raster.Buffer, error) {
	if maxSize <= 0 {
		return nil, fmt.Errorf("pixkit: thumbnail size %d", maxSize)
	}
	img, err := b.Image()
	if err != nil {
		return nil, fmt.Errorf("pixkit: thumbnail: %w", err)
	}
	thumb := imaging.Fit(img, maxSize, maxSize, imaging.Lanczos)
	out, err := raster.FromImage(thumb)
	if err != nil {
		return nil, fmt.Errorf("pixkit: thumbnail: %w", err)
	}
	out.DotsPerMeterX, out.DotsPerMeterY = b.DotsPerMeterX, b.DotsPerMeterY
	out.CopyMetadata(b)
	return out, nil
}
