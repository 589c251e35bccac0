// Package gif reads and writes single and multi-frame GIF files.
//
// Reading starts with a scan of the block structure that records where every
// image descriptor and extension lives, so any frame can be decoded without
// decoding the frames before it. Writing wraps the frames between OpenWrite,
// which emits the signature, and Close, which emits the trailer.
package gif

import (
	"bytes"
	"io"

	"github.com/jpfielding/pixkit.go/pkg/codec"
	"github.com/jpfielding/pixkit.go/pkg/raster"
)

const Format = "GIF"

// Block introducers.
const (
	blockImage     = 0x2C
	blockExtension = 0x21
	blockTrailer   = 0x3B
)

// Extension labels.
const (
	extGraphicControl = 0xF9
	extComment        = 0xFE
	extApplication    = 0xFF
)

// Packed field bits.
const (
	lsdHaveGCT      = 0x80
	lsdColorRes     = 0x70
	lsdGCTSize      = 0x07
	idHaveLCT       = 0x80
	idInterlaced    = 0x40
	idLCTSize       = 0x07
	gceDisposal     = 0x1C
	gceHaveTrans    = 0x01
	maxSubBlock     = 255
	headerLen       = 6
	defaultDelayMS  = 100
	defaultDisposal = 2
)

var (
	magic87a = []byte("GIF87a")
	magic89a = []byte("GIF89a")
)

// Interlaced images store rows in four passes.
var (
	interlaceOffset    = [4]int{0, 4, 2, 1}
	interlaceIncrement = [4]int{8, 8, 4, 2}
)

// rowOrder lists picture rows in the order they are stored.
func rowOrder(height int, interlaced bool) []int {
	rows := make([]int, 0, height)
	if !interlaced {
		for y := 0; y < height; y++ {
			rows = append(rows, y)
		}
		return rows
	}
	for pass := range interlaceOffset {
		for y := interlaceOffset[pass]; y < height; y += interlaceIncrement[pass] {
			rows = append(rows, y)
		}
	}
	return rows
}

// Codec is the GIF plugin. It implements codec.Opener and codec.PageCounter.
type Codec struct {
	codec.Descriptor
}

// New returns the GIF codec.
func New() *Codec {
	return &Codec{Descriptor: codec.Descriptor{
		Name:    Format,
		Summary: "Graphics Interchange Format",
		Exts:    []string{"gif"},
		Pattern: "^GIF",
		Mime:    "image/gif",
		Depths:  []int{1, 4, 8},
		Types:   []raster.Type{raster.TypeBitmap},
	}}
}

// Validate accepts the GIF87a and GIF89a signatures.
func (c *Codec) Validate(r io.ReadSeeker) bool {
	sig := make([]byte, headerLen)
	if _, err := io.ReadFull(r, sig); err != nil {
		return false
	}
	return bytes.Equal(sig, magic89a) || bytes.Equal(sig, magic87a)
}

// session is the per-stream state between Open and Close. Offsets are
// absolute stream positions just past each block's introducer.
type session struct {
	read bool

	start         int64
	logicalWidth  int
	logicalHeight int
	globalOffset  int64 // 0 when there is no global colour table
	globalSize    int
	background    uint8
	applications  []int64
	comments      []int64
	controls      []int64 // per frame, 0 when no control extension precedes it
	descriptors   []int64

	w     io.Writer
	pages int
}

func asSession(s codec.Session, read bool) (*session, error) {
	gs, ok := s.(*session)
	if !ok || gs == nil || gs.read != read {
		return nil, codec.Errorf(Format, codec.ErrUnsupported, "not a gif %s session", mode(read))
	}
	return gs, nil
}

func mode(read bool) string {
	if read {
		return "read"
	}
	return "write"
}

// PageCount is the number of frames found by OpenRead.
func (c *Codec) PageCount(s codec.Session) int {
	gs, err := asSession(s, true)
	if err != nil {
		return 0
	}
	return len(gs.descriptors)
}

// Close finishes a write session with the trailer. Read sessions hold no
// resources.
func (c *Codec) Close(s codec.Session) error {
	gs, ok := s.(*session)
	if !ok || gs == nil || gs.read {
		return nil
	}
	if _, err := gs.w.Write([]byte{blockTrailer}); err != nil {
		return codec.WriteError(Format, "trailer", err)
	}
	return nil
}
