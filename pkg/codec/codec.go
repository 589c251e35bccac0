// Package codec defines the contract every image format plugin implements and
// the ordered registry that detects, loads and saves through them.
package codec

import (
	"io"
	"slices"
	"strings"

	"github.com/jpfielding/pixkit.go/pkg/raster"
)

// Flags tune a single load or save.
type Flags int

const (
	// HeaderOnly loads dimensions, depth and palette without reading pixels.
	HeaderOnly Flags = 1 << iota
	// Load256 makes palettised multi-frame loads always return 8-bit frames.
	Load256
	// Playback returns the composited frame a viewer would show instead of
	// the raw frame.
	Playback
	// SaveRLE asks formats with optional run-length coding to use it.
	SaveRLE
)

// Default is the empty flag set.
const Default Flags = 0

// Has reports whether every bit of o is set.
func (f Flags) Has(o Flags) bool { return f&o == o }

// Session is the per-stream state a codec keeps between Open and Close.
type Session any

// Codec is one image format. Validate must read only a small prefix; the
// Registry restores the stream offset around it. Load and Save receive the
// Session created by Open for codecs that implement Opener, nil otherwise.
type Codec interface {
	Format() string
	Description() string
	Extensions() []string
	RegExpr() string
	MimeType() string

	Validate(r io.ReadSeeker) bool

	SupportsExportDepth(bpp int) bool
	SupportsExportType(t raster.Type) bool
	SupportsHeaderOnly() bool
	SupportsICC() bool

	Load(r io.ReadSeeker, page int, flags Flags, s Session) (*raster.Buffer, error)
	Save(w io.Writer, b *raster.Buffer, page int, flags Flags, s Session) error
}

// Opener is implemented by codecs that pre-scan a stream before loading, or
// wrap a stream while writing several pages.
type Opener interface {
	OpenRead(r io.ReadSeeker) (Session, error)
	OpenWrite(w io.Writer) (Session, error)
	Close(s Session) error
}

// PageCounter is implemented by multi-page codecs.
type PageCounter interface {
	PageCount(s Session) int
}

// Descriptor carries the static identity and capabilities of a format.
// Codecs embed it so only Validate, Load and Save remain to be written.
type Descriptor struct {
	Name     string
	Summary  string
	Exts     []string
	Pattern  string
	Mime     string
	Depths   []int
	Types    []raster.Type
	NoPixels bool
	ICC      bool
}

func (d Descriptor) Format() string       { return d.Name }
func (d Descriptor) Description() string  { return d.Summary }
func (d Descriptor) Extensions() []string { return slices.Clone(d.Exts) }
func (d Descriptor) RegExpr() string      { return d.Pattern }
func (d Descriptor) MimeType() string     { return d.Mime }
func (d Descriptor) SupportsHeaderOnly() bool {
	return d.NoPixels
}
func (d Descriptor) SupportsICC() bool { return d.ICC }

func (d Descriptor) SupportsExportDepth(bpp int) bool {
	return slices.Contains(d.Depths, bpp)
}

func (d Descriptor) SupportsExportType(t raster.Type) bool {
	return slices.Contains(d.Types, t)
}

// HasExtension reports whether ext (with or without the dot) belongs to c.
func HasExtension(c Codec, ext string) bool {
	ext = strings.TrimPrefix(strings.ToLower(ext), ".")
	return slices.Contains(c.Extensions(), ext)
}
