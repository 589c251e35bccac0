// Package stdimg adapts image.Image decoders and encoders to the plugin
// interface. PNG and JPEG come from the standard library, WebP decoding from
// golang.org/x/image/webp.
package stdimg

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"

	"github.com/jpfielding/pixkit.go/pkg/codec"
	"github.com/jpfielding/pixkit.go/pkg/raster"
	"golang.org/x/image/webp"
)

// Signature is a byte pattern expected at Offset from the start of a file.
type Signature struct {
	Offset int
	Magic  []byte
}

// Codec wraps a decoder and an optional encoder. Buffers travel through
// raster.FromImage and Buffer.Image.
type Codec struct {
	codec.Descriptor
	// Signatures must all match for Validate to accept a stream.
	Signatures   []Signature
	Decode       func(io.Reader) (image.Image, error)
	DecodeConfig func(io.Reader) (image.Config, error)
	// Encode is nil for read-only formats.
	Encode func(io.Writer, image.Image, codec.Flags) error
}

func (c *Codec) Validate(r io.ReadSeeker) bool {
	n := 0
	for _, s := range c.Signatures {
		n = max(n, s.Offset+len(s.Magic))
	}
	head := make([]byte, n)
	if _, err := io.ReadFull(r, head); err != nil {
		return false
	}
	for _, s := range c.Signatures {
		if !bytes.Equal(head[s.Offset:s.Offset+len(s.Magic)], s.Magic) {
			return false
		}
	}
	return true
}

// Load decodes the whole image. With codec.HeaderOnly only the configuration
// is read and mapped to the buffer layout a full decode would produce.
func (c *Codec) Load(r io.ReadSeeker, page int, flags codec.Flags, _ codec.Session) (*raster.Buffer, error) {
	if flags.Has(codec.HeaderOnly) && c.DecodeConfig != nil {
		cfg, err := c.DecodeConfig(r)
		if err != nil {
			return nil, c.decodeError("header", err)
		}
		b, err := headerFor(cfg)
		if err != nil {
			return nil, codec.AllocError(c.Name, err)
		}
		return b, nil
	}
	img, err := c.Decode(r)
	if err != nil {
		return nil, c.decodeError("image", err)
	}
	b, err := raster.FromImage(img)
	if err != nil {
		return nil, codec.AllocError(c.Name, err)
	}
	return b, nil
}

func (c *Codec) decodeError(what string, err error) error {
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return codec.ReadError(c.Name, what, err)
	}
	return &codec.Error{Format: c.Name, Kind: codec.ErrCorrupt, Msg: "decoding " + what, Err: err}
}

func (c *Codec) Save(w io.Writer, b *raster.Buffer, page int, flags codec.Flags, _ codec.Session) error {
	if c.Encode == nil {
		return codec.Errorf(c.Name, codec.ErrUnsupported, "saving is not supported")
	}
	if err := codec.CanExport(c, b); err != nil {
		return err
	}
	img, err := b.Image()
	if err != nil {
		return codec.Errorf(c.Name, codec.ErrUnsupported, "%v", err)
	}
	if err := c.Encode(w, img, flags); err != nil {
		return codec.WriteError(c.Name, "image", err)
	}
	return nil
}

// headerFor builds the header-only buffer a full decode of an opaque image
// with this configuration produces.
func headerFor(cfg image.Config) (*raster.Buffer, error) {
	bpp, typ := 32, raster.TypeBitmap
	var pal color.Palette
	switch m := cfg.ColorModel.(type) {
	case color.Palette:
		bpp, pal = 8, m
	default:
		switch m {
		case color.GrayModel:
			bpp = 8
		case color.Gray16Model:
			bpp, typ = 16, raster.TypeUint16
		case color.RGBAModel, color.RGBA64Model, color.YCbCrModel, color.CMYKModel:
			bpp = 24
		}
	}
	b, err := raster.NewHeader(cfg.Width, cfg.Height, bpp, raster.TopDown)
	if err != nil {
		return nil, err
	}
	b.Type = typ
	if typ == raster.TypeUint16 {
		b.RedMask, b.GreenMask, b.BlueMask = 0, 0, 0
	}
	for i, c := range pal {
		if i < len(b.Palette) {
			n := color.NRGBAModel.Convert(c).(color.NRGBA)
			b.Palette[i] = color.NRGBA{R: n.R, G: n.G, B: n.B, A: 0xFF}
		}
	}
	return b, nil
}

// PNG is the Portable Network Graphics codec.
func PNG() *Codec {
	return &Codec{
		Descriptor: codec.Descriptor{
			Name:     "PNG",
			Summary:  "Portable Network Graphics",
			Exts:     []string{"png"},
			Pattern:  `^\x89PNG`,
			Mime:     "image/png",
			Depths:   []int{1, 4, 8, 16, 24, 32},
			Types:    []raster.Type{raster.TypeBitmap, raster.TypeUint16},
			NoPixels: true,
		},
		Signatures:   []Signature{{Magic: []byte("\x89PNG\r\n\x1a\n")}},
		Decode:       png.Decode,
		DecodeConfig: png.DecodeConfig,
		Encode: func(w io.Writer, img image.Image, flags codec.Flags) error {
			enc := png.Encoder{CompressionLevel: png.DefaultCompression}
			if flags.Has(codec.SaveRLE) {
				enc.CompressionLevel = png.BestCompression
			}
			return enc.Encode(w, img)
		},
	}
}

// JPEGQuality is the quality JPEG files are written with.
const JPEGQuality = 90

// JPEG is the baseline JFIF codec.
func JPEG() *Codec {
	return &Codec{
		Descriptor: codec.Descriptor{
			Name:     "JPEG",
			Summary:  "JPEG - JFIF Compliant",
			Exts:     []string{"jpg", "jif", "jpeg", "jpe"},
			Pattern:  `^\xFF\xD8\xFF`,
			Mime:     "image/jpeg",
			Depths:   []int{8, 24},
			Types:    []raster.Type{raster.TypeBitmap},
			NoPixels: true,
		},
		Signatures:   []Signature{{Magic: []byte{0xFF, 0xD8, 0xFF}}},
		Decode:       jpeg.Decode,
		DecodeConfig: jpeg.DecodeConfig,
		Encode: func(w io.Writer, img image.Image, _ codec.Flags) error {
			return jpeg.Encode(w, img, &jpeg.Options{Quality: JPEGQuality})
		},
	}
}

// WebP decodes lossy and lossless WebP files.
func WebP() *Codec {
	return &Codec{
		Descriptor: codec.Descriptor{
			Name:     "WEBP",
			Summary:  "Google WebP image format",
			Exts:     []string{"webp"},
			Pattern:  `^RIFF.{4}WEBP`,
			Mime:     "image/webp",
			NoPixels: true,
		},
		Signatures: []Signature{
			{Magic: []byte("RIFF")},
			{Offset: 8, Magic: []byte("WEBP")},
		},
		Decode:       webp.Decode,
		DecodeConfig: webp.DecodeConfig,
	}
}
