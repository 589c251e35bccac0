// Package bmp reads and writes Windows and OS/2 bitmaps.
package bmp

import (
	"bytes"
	"io"

	"github.com/jpfielding/pixkit.go/pkg/codec"
	"github.com/jpfielding/pixkit.go/pkg/raster"
)

const Format = "BMP"

// Compression values of the info header.
const (
	compRGB            = 0
	compRLE8           = 1
	compRLE4           = 2
	compBitfields      = 3
	compAlphaBitfields = 6
)

// Info header sizes, which double as the header version.
const (
	coreHeaderLen = 12  // OS/2 1.x
	os2HeaderLen  = 64  // OS/2 2.x
	infoHeaderLen = 40  // Windows 3.0
	v2HeaderLen   = 52  // undocumented, adds RGB masks
	v3HeaderLen   = 56  // undocumented, adds alpha mask
	v4HeaderLen   = 108 // Windows 95
	v5HeaderLen   = 124 // Windows 98
)

const fileHeaderLen = 14

// 72 dpi, the resolution OS/2 1.x files are assumed to have.
const defaultDotsPerMeter = 2835

type fileHeader struct {
	Type      [2]byte
	Size      uint32
	Reserved1 uint16
	Reserved2 uint16
	OffBits   uint32
}

type infoHeader struct {
	Size          uint32
	Width         int32
	Height        int32
	Planes        uint16
	BitCount      uint16
	Compression   uint32
	SizeImage     uint32
	XPelsPerMeter int32
	YPelsPerMeter int32
	ClrUsed       uint32
	ClrImportant  uint32
}

type coreHeader struct {
	Size     uint32
	Width    uint16
	Height   uint16
	Planes   uint16
	BitCount uint16
}

var (
	magicBM = []byte("BM")
	magicBA = []byte("BA")
)

// Codec is the BMP plugin. It has no per-stream state.
type Codec struct {
	codec.Descriptor
}

// New returns the BMP codec.
func New() *Codec {
	return &Codec{Descriptor: codec.Descriptor{
		Name:     Format,
		Summary:  "Windows or OS/2 Bitmap",
		Exts:     []string{"bmp"},
		Pattern:  "^BM",
		Mime:     "image/bmp",
		Depths:   []int{1, 4, 8, 16, 24, 32},
		Types:    []raster.Type{raster.TypeBitmap},
		NoPixels: true,
	}}
}

// Validate accepts the BM and BA (OS/2 array) signatures.
func (c *Codec) Validate(r io.ReadSeeker) bool {
	sig := make([]byte, 2)
	if _, err := io.ReadFull(r, sig); err != nil {
		return false
	}
	return bytes.Equal(sig, magicBM) || bytes.Equal(sig, magicBA)
}
