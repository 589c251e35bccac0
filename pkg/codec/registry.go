package codec

import (
	"io"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"

	"github.com/jpfielding/pixkit.go/pkg/raster"
)

// Formats that share a container signature: camera raw files are TIFF files
// to a generic probe, so a TIFF match is checked again against RAW.
const (
	FormatTIFF = "TIFF"
	FormatRAW  = "RAW"
)

type entry struct {
	codec   Codec
	enabled bool
}

// Registry is an ordered set of codecs. It is never changed after
// construction, so one Registry can serve any number of goroutines.
type Registry struct {
	entries []entry
}

// NewRegistry registers codecs in probe order. Later codecs with a name
// already taken are ignored.
func NewRegistry(codecs ...Codec) *Registry {
	r := &Registry{}
	for _, c := range codecs {
		if _, ok := r.Lookup(c.Format()); ok {
			slog.Warn("duplicate codec ignored", "format", c.Format())
			continue
		}
		r.entries = append(r.entries, entry{codec: c, enabled: true})
	}
	return r
}

// WithDisabled returns a copy in which the named formats are skipped by
// detection and loading.
func (r *Registry) WithDisabled(formats ...string) *Registry {
	out := &Registry{entries: slices.Clone(r.entries)}
	for i := range out.entries {
		for _, f := range formats {
			if strings.EqualFold(out.entries[i].codec.Format(), f) {
				out.entries[i].enabled = false
			}
		}
	}
	return out
}

// Len is the number of registered codecs.
func (r *Registry) Len() int { return len(r.entries) }

// Codecs lists every codec in probe order.
func (r *Registry) Codecs() []Codec {
	out := make([]Codec, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.codec
	}
	return out
}

// Enabled reports whether format is registered and enabled.
func (r *Registry) Enabled(format string) bool {
	i := r.index(format)
	return i >= 0 && r.entries[i].enabled
}

// Lookup finds a codec by format name, ignoring case.
func (r *Registry) Lookup(format string) (Codec, bool) {
	if i := r.index(format); i >= 0 {
		return r.entries[i].codec, true
	}
	return nil, false
}

func (r *Registry) index(format string) int {
	return slices.IndexFunc(r.entries, func(e entry) bool {
		return strings.EqualFold(e.codec.Format(), format)
	})
}

// FromFilename picks the first enabled codec claiming the file's extension.
func (r *Registry) FromFilename(name string) (Codec, bool) {
	ext := filepath.Ext(name)
	if ext == "" {
		return nil, false
	}
	for _, e := range r.entries {
		if e.enabled && HasExtension(e.codec, ext) {
			return e.codec, true
		}
	}
	return nil, false
}

// FromMime picks the first enabled codec with the given MIME type.
func (r *Registry) FromMime(mime string) (Codec, bool) {
	for _, e := range r.entries {
		if e.enabled && strings.EqualFold(e.codec.MimeType(), mime) {
			return e.codec, true
		}
	}
	return nil, false
}

// Validate probes rs against one format, leaving the stream where it was.
func (r *Registry) Validate(format string, rs io.ReadSeeker) bool {
	c, ok := r.Lookup(format)
	if !ok {
		return false
	}
	return Probe(c, rs)
}

// Detect returns the first enabled codec whose signature matches the stream,
// or false. The stream offset is the same before and after. A TIFF match is
// handed to an enabled RAW codec when that one matches too.
func (r *Registry) Detect(rs io.ReadSeeker) (Codec, bool) {
	for _, e := range r.entries {
		if !e.enabled || !Probe(e.codec, rs) {
			continue
		}
		if e.codec.Format() == FormatTIFF {
			if raw, ok := r.Lookup(FormatRAW); ok && r.Enabled(FormatRAW) && Probe(raw, rs) {
				return raw, true
			}
		}
		return e.codec, true
	}
	return nil, false
}

// Probe runs c.Validate and restores the stream offset. Unseekable streams
// and panicking validators never match.
func Probe(c Codec, rs io.ReadSeeker) (ok bool) {
	if rs == nil {
		return false
	}
	pos, err := rs.Seek(0, io.SeekCurrent)
	if err != nil {
		return false
	}
	defer func() {
		if p := recover(); p != nil {
			slog.Warn("validate panicked", "format", c.Format(), "panic", p)
			ok = false
		}
		if _, err := rs.Seek(pos, io.SeekStart); err != nil {
			ok = false
		}
	}()
	return c.Validate(rs)
}

// Load detects the format of rs and loads its first page.
func (r *Registry) Load(rs io.ReadSeeker, flags Flags) (*raster.Buffer, Codec, error) {
	c, ok := r.Detect(rs)
	if !ok {
		return nil, nil, Errorf("unknown", ErrUnsupported, "no codec recognises this stream")
	}
	b, err := r.load(c, rs, -1, flags)
	return b, c, err
}

// LoadFormat loads a page of rs with the named codec. page is ignored by
// single-page formats; -1 selects the default page.
func (r *Registry) LoadFormat(format string, rs io.ReadSeeker, page int, flags Flags) (*raster.Buffer, error) {
	c, ok := r.Lookup(format)
	if !ok || !r.Enabled(format) {
		return nil, Errorf(format, ErrUnsupported, "codec not registered")
	}
	return r.load(c, rs, page, flags)
}

func (r *Registry) load(c Codec, rs io.ReadSeeker, page int, flags Flags) (*raster.Buffer, error) {
	if flags.Has(HeaderOnly) && !c.SupportsHeaderOnly() {
		flags &^= HeaderOnly
	}
	var sess Session
	if op, ok := c.(Opener); ok {
		start, err := rs.Seek(0, io.SeekCurrent)
		if err != nil {
			return nil, ReadError(c.Format(), "stream offset", err)
		}
		if sess, err = op.OpenRead(rs); err != nil {
			slog.Warn("open failed", "format", c.Format(), "error", err)
			return nil, err
		}
		defer op.Close(sess)
		if _, err := rs.Seek(start, io.SeekStart); err != nil {
			return nil, ReadError(c.Format(), "stream offset", err)
		}
	}
	b, err := c.Load(rs, page, flags, sess)
	if err != nil {
		slog.Warn("load failed", "format", c.Format(), "page", page, "error", err)
		return nil, err
	}
	return b, nil
}

// Save writes b with the named codec after checking it can export b's depth
// and pixel type.
func (r *Registry) Save(format string, w io.Writer, b *raster.Buffer, flags Flags) error {
	c, ok := r.Lookup(format)
	if !ok {
		return Errorf(format, ErrUnsupported, "codec not registered")
	}
	if err := CanExport(c, b); err != nil {
		return err
	}
	var sess Session
	if op, ok := c.(Opener); ok {
		var err error
		if sess, err = op.OpenWrite(w); err != nil {
			return err
		}
		if err := c.Save(w, b, 0, flags, sess); err != nil {
			op.Close(sess)
			return err
		}
		return op.Close(sess)
	}
	return c.Save(w, b, -1, flags, sess)
}

// CanExport checks a buffer against a codec's export capabilities.
func CanExport(c Codec, b *raster.Buffer) error {
	if !b.HasPixels() {
		return Errorf(c.Format(), ErrUnsupported, "cannot save a header-only buffer")
	}
	if b.Type == raster.TypeBitmap {
		if !c.SupportsExportDepth(b.BPP) {
			return Errorf(c.Format(), ErrUnsupported, "cannot save %d-bit images", b.BPP)
		}
		return nil
	}
	if !c.SupportsExportType(b.Type) {
		return Errorf(c.Format(), ErrUnsupported, "cannot save %s images", b.Type)
	}
	return nil
}
