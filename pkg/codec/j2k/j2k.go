// Package j2k recognises JPEG 2000 codestreams and reads their image size
// from the SIZ marker segment. Pixel decoding needs a wavelet backend and is
// reported as unsupported.
package j2k

import (
	"encoding/binary"
	"io"

	"github.com/jpfielding/pixkit.go/pkg/codec"
	"github.com/jpfielding/pixkit.go/pkg/raster"
)

const Format = "J2K"

const (
	markerSOC = 0xFF4F
	markerSIZ = 0xFF51
)

// siz is the fixed part of the SIZ segment following its marker.
type siz struct {
	Length     uint16
	Caps       uint16
	Width      uint32 // Xsiz
	Height     uint32 // Ysiz
	OffsetX    uint32
	OffsetY    uint32
	TileW      uint32
	TileH      uint32
	TileX      uint32
	TileY      uint32
	Components uint16
}

// component is one per-component entry of the SIZ segment.
type component struct {
	Depth uint8 // bit 7 set for signed samples, low bits are depth-1
	DX    uint8
	DY    uint8
}

func (c component) bits() int { return int(c.Depth&0x7F) + 1 }

type Codec struct {
	codec.Descriptor
}

func New() *Codec {
	return &Codec{Descriptor: codec.Descriptor{
		Name:     Format,
		Summary:  "JPEG-2000 codestream",
		Exts:     []string{"j2k", "j2c"},
		Mime:     "image/j2k",
		NoPixels: true,
	}}
}

// Validate checks the start-of-codestream marker and the SIZ marker that
// must follow it.
func (c *Codec) Validate(r io.ReadSeeker) bool {
	var markers [2]uint16
	if err := binary.Read(r, binary.BigEndian, &markers); err != nil {
		return false
	}
	return markers[0] == markerSOC && markers[1] == markerSIZ
}

// Load returns the header-only buffer described by the SIZ segment. Pixel
// loads report codec.ErrUnsupported.
func (c *Codec) Load(r io.ReadSeeker, page int, flags codec.Flags, _ codec.Session) (*raster.Buffer, error) {
	var markers [2]uint16
	if err := binary.Read(r, binary.BigEndian, &markers); err != nil {
		return nil, codec.ReadError(Format, "markers", err)
	}
	if markers[0] != markerSOC || markers[1] != markerSIZ {
		return nil, codec.Errorf(Format, codec.ErrFormat, "missing SOC/SIZ markers")
	}
	if !flags.Has(codec.HeaderOnly) {
		return nil, codec.Errorf(Format, codec.ErrUnsupported, "no codestream decoder")
	}
	var s siz
	if err := binary.Read(r, binary.BigEndian, &s); err != nil {
		return nil, codec.ReadError(Format, "SIZ segment", err)
	}
	if s.Width < s.OffsetX || s.Height < s.OffsetY {
		return nil, codec.Errorf(Format, codec.ErrCorrupt, "image offset beyond reference grid")
	}
	if s.Components == 0 {
		return nil, codec.Errorf(Format, codec.ErrCorrupt, "no components")
	}
	comps := make([]component, s.Components)
	if err := binary.Read(r, binary.BigEndian, comps); err != nil {
		return nil, codec.ReadError(Format, "SIZ components", err)
	}

	bpp, typ, err := layout(comps)
	if err != nil {
		return nil, err
	}
	b, err := raster.NewHeader(int(s.Width-s.OffsetX), int(s.Height-s.OffsetY), bpp, raster.TopDown)
	if err != nil {
		return nil, codec.AllocError(Format, err)
	}
	b.Type = typ
	if typ != raster.TypeBitmap {
		b.RedMask, b.GreenMask, b.BlueMask = 0, 0, 0
	}
	return b, nil
}

// layout picks the buffer a decoded codestream would fill: 8-bit samples map
// to standard bitmaps, deeper samples to 16-bit types.
func layout(comps []component) (int, raster.Type, error) {
	deep := false
	for _, c := range comps {
		if c.bits() > 8 {
			deep = true
		}
	}
	switch n := len(comps); {
	case n == 1 && !deep:
		return 8, raster.TypeBitmap, nil
	case n == 1:
		return 16, raster.TypeUint16, nil
	case n == 2 && !deep, n == 4 && !deep:
		return 32, raster.TypeBitmap, nil
	case n == 3 && !deep:
		return 24, raster.TypeBitmap, nil
	case n == 3:
		return 48, raster.TypeRGBA16, nil
	case n == 4, n == 2:
		return 64, raster.TypeRGBA16, nil
	}
	return 0, raster.TypeUnknown, codec.Errorf(Format, codec.ErrUnsupported, "%d components", len(comps))
}

func (c *Codec) Save(w io.Writer, b *raster.Buffer, page int, flags codec.Flags, _ codec.Session) error {
	return codec.Errorf(Format, codec.ErrUnsupported, "saving is not supported")
}
