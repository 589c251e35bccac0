// Package raw recognises camera raw files. Many of them are TIFF containers,
// so the registry prefers this codec when both validate. Decoding needs a
// raw processing backend and is reported as unsupported.
package raw

import (
	"bytes"
	"io"

	"github.com/jpfielding/pixkit.go/pkg/codec"
	"github.com/jpfielding/pixkit.go/pkg/codec/tiff"
	"github.com/jpfielding/pixkit.go/pkg/raster"
)

const Format = codec.FormatRAW

// Signature holds the prefix of one camera raw flavour.
type Signature struct {
	Name  string
	Match func(head []byte) bool
}

// headLen covers the longest signature.
const headLen = 16

// Signatures lists the recognised flavours in probe order.
var Signatures = []Signature{
	{"CR2", func(h []byte) bool { return tiff.IsTIFF(h) && len(h) >= 11 && bytes.Equal(h[8:11], []byte("CR\x02")) }},
	{"ORF", func(h []byte) bool {
		return bytes.HasPrefix(h, []byte("IIRO")) || bytes.HasPrefix(h, []byte("IIRS")) || bytes.HasPrefix(h, []byte("MMOR"))
	}},
	{"RW2", func(h []byte) bool { return bytes.HasPrefix(h, []byte("IIU\x00")) }},
	{"RAF", func(h []byte) bool { return bytes.HasPrefix(h, []byte("FUJIFILMCCD-RAW")) }},
}

type Codec struct {
	codec.Descriptor
}

func New() *Codec {
	return &Codec{Descriptor: codec.Descriptor{
		Name:    Format,
		Summary: "RAW camera image",
		Exts:    []string{"cr2", "orf", "rw2", "raf"},
		Mime:    "image/x-dcraw",
	}}
}

// Identify returns the flavour name of a raw file.
func Identify(r io.Reader) (string, bool) {
	head := make([]byte, headLen)
	n, _ := io.ReadFull(r, head)
	for _, s := range Signatures {
		if s.Match(head[:n]) {
			return s.Name, true
		}
	}
	return "", false
}

func (c *Codec) Validate(r io.ReadSeeker) bool {
	_, ok := Identify(r)
	return ok
}

func (c *Codec) Load(r io.ReadSeeker, page int, flags codec.Flags, _ codec.Session) (*raster.Buffer, error) {
	name, ok := Identify(r)
	if !ok {
		return nil, codec.Errorf(Format, codec.ErrFormat, "not a camera raw file")
	}
	return nil, codec.Errorf(Format, codec.ErrUnsupported, "no decoder for %s files", name)
}

func (c *Codec) Save(w io.Writer, b *raster.Buffer, page int, flags codec.Flags, _ codec.Session) error {
	return codec.Errorf(Format, codec.ErrUnsupported, "saving is not supported")
}
