// Package pcx reads and writes ZSoft Paintbrush images.
package pcx

import (
	"io"
	"math"

	"github.com/jpfielding/pixkit.go/pkg/codec"
	"github.com/jpfielding/pixkit.go/pkg/raster"
)

const Format = "PCX"

const (
	magic         = 0x0A
	maxVersion    = 5
	headerLen     = 128
	paletteMarker = 0x0C
	paletteLen    = 768

	encodingRaw = 0
	encodingRLE = 1

	paletteColor = 1
	paletteGray  = 2
)

const metersPerInch = 0.0254

type header struct {
	Manufacturer uint8
	Version      uint8
	Encoding     uint8
	BPP          uint8 // bits per pixel in one plane
	Window       [4]uint16
	HDPI         uint16
	VDPI         uint16
	ColorMap     [48]byte
	Reserved     uint8
	Planes       uint8
	BytesPerLine uint16 // per plane, always even
	PaletteInfo  uint16
	HScreenSize  uint16
	VScreenSize  uint16
	Filler       [54]byte
}

// valid checks the fields a PCX file is recognised by. The magic byte alone
// is too weak.
func (h *header) valid() bool {
	return h.Manufacturer == magic &&
		h.Version <= maxVersion &&
		(h.Encoding == encodingRaw || h.Encoding == encodingRLE) &&
		(h.BPP == 1 || h.BPP == 8)
}

func toDotsPerMeter(dpi uint16) int {
	return int(float64(dpi)/metersPerInch + 0.5)
}

func toDPI(dpm int) uint16 {
	return uint16(min(max(math.Round(float64(dpm)*metersPerInch), 0), math.MaxUint16))
}

type Codec struct {
	codec.Descriptor
}

func New() *Codec {
	return &Codec{Descriptor: codec.Descriptor{
		Name:     Format,
		Summary:  "Zsoft Paintbrush",
		Exts:     []string{"pcx"},
		Mime:     "image/x-pcx",
		Depths:   []int{1, 8, 24},
		Types:    []raster.Type{raster.TypeBitmap},
		NoPixels: true,
	}}
}

func (c *Codec) Validate(r io.ReadSeeker) bool {
	sig := make([]byte, 4)
	if _, err := io.ReadFull(r, sig); err != nil {
		return false
	}
	h := header{Manufacturer: sig[0], Version: sig[1], Encoding: sig[2], BPP: sig[3]}
	return h.valid()
}
