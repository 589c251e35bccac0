// Package tiff forwards TIFF decoding and encoding to golang.org/x/image/tiff.
// Only the first image file directory is read.
package tiff

import (
	"bytes"
	"image"
	"io"

	"github.com/jpfielding/pixkit.go/pkg/codec"
	"github.com/jpfielding/pixkit.go/pkg/codec/stdimg"
	"github.com/jpfielding/pixkit.go/pkg/raster"
	xtiff "golang.org/x/image/tiff"
)

const Format = codec.FormatTIFF

var (
	littleEndian = []byte("II\x2A\x00")
	bigEndian    = []byte("MM\x00\x2A")
)

// IsTIFF reports whether head starts with a TIFF byte-order mark and magic.
func IsTIFF(head []byte) bool {
	return bytes.HasPrefix(head, littleEndian) || bytes.HasPrefix(head, bigEndian)
}

type Codec struct {
	*stdimg.Codec
}

func New() *Codec {
	return &Codec{Codec: &stdimg.Codec{
		Descriptor: codec.Descriptor{
			Name:     Format,
			Summary:  "Tagged Image File Format",
			Exts:     []string{"tif", "tiff"},
			Pattern:  `^[MI][MI][\x00*][\x00*]`,
			Mime:     "image/tiff",
			Depths:   []int{1, 4, 8, 16, 24, 32},
			Types:    []raster.Type{raster.TypeBitmap, raster.TypeUint16},
			NoPixels: true,
		},
		Decode:       xtiff.Decode,
		DecodeConfig: xtiff.DecodeConfig,
		Encode: func(w io.Writer, img image.Image, flags codec.Flags) error {
			opts := &xtiff.Options{Compression: xtiff.Uncompressed}
			if flags.Has(codec.SaveRLE) {
				opts.Compression, opts.Predictor = xtiff.Deflate, true
			}
			return xtiff.Encode(w, img, opts)
		},
	}}
}

// Validate accepts either byte order.
func (c *Codec) Validate(r io.ReadSeeker) bool {
	head := make([]byte, len(littleEndian))
	if _, err := io.ReadFull(r, head); err != nil {
		return false
	}
	return IsTIFF(head)
}
