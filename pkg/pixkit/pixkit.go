// Package pixkit is the entry point most callers need: a default registry of
// every bundled format, file helpers, multi-page access, thumbnails and
// palette reduction.
package pixkit

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/jpfielding/pixkit.go/pkg/codec"
	"github.com/jpfielding/pixkit.go/pkg/codec/bmp"
	"github.com/jpfielding/pixkit.go/pkg/codec/gif"
	"github.com/jpfielding/pixkit.go/pkg/codec/j2k"
	"github.com/jpfielding/pixkit.go/pkg/codec/pcx"
	"github.com/jpfielding/pixkit.go/pkg/codec/raw"
	"github.com/jpfielding/pixkit.go/pkg/codec/sgi"
	"github.com/jpfielding/pixkit.go/pkg/codec/stdimg"
	"github.com/jpfielding/pixkit.go/pkg/codec/tiff"
	"github.com/jpfielding/pixkit.go/pkg/raster"
)

// Default is the shared registry, built on first use. Probe order matters:
// TIFF precedes RAW so the registry can hand camera files over to RAW.
var Default = sync.OnceValue(func() *codec.Registry {
	return codec.NewRegistry(
		bmp.New(),
		stdimg.JPEG(),
		pcx.New(),
		stdimg.PNG(),
		tiff.New(),
		gif.New(),
		sgi.New(),
		j2k.New(),
		raw.New(),
		stdimg.WebP(),
	)
})

// ErrUnknownFormat is returned when neither content nor file name identify a
// format.
var ErrUnknownFormat = errors.New("pixkit: unknown format")

// Detect names the format of rs by content.
func Detect(rs io.ReadSeeker) (string, bool) {
	c, ok := Default().Detect(rs)
	if !ok {
		return "", false
	}
	return c.Format(), true
}

// DetectFile names the format of a file by content, falling back to its
// extension.
func DetectFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("pixkit: %w", err)
	}
	defer f.Close()
	if format, ok := Detect(f); ok {
		return format, nil
	}
	if c, ok := Default().FromFilename(path); ok {
		slog.Debug("detected by extension", "path", path, "format", c.Format())
		return c.Format(), nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownFormat, path)
}

// Load detects the format of rs and loads its default page.
func Load(rs io.ReadSeeker, flags codec.Flags) (*raster.Buffer, string, error) {
	b, c, err := Default().Load(rs, flags)
	if err != nil {
		return nil, "", err
	}
	return b, c.Format(), nil
}

// LoadFile loads the default page of a file.
func LoadFile(path string, flags codec.Flags) (*raster.Buffer, string, error) {
	return LoadFilePage(path, -1, flags)
}

// LoadFilePage loads one page of a file. Formats are detected by content and
// then by extension.
func LoadFilePage(path string, page int, flags codec.Flags) (*raster.Buffer, string, error) {
	format, err := DetectFile(path)
	if err != nil {
		return nil, "", err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, "", fmt.Errorf("pixkit: %w", err)
	}
	defer f.Close()
	b, err := Default().LoadFormat(format, f, page, flags)
	if err != nil {
		return nil, format, fmt.Errorf("loading %s: %w", path, err)
	}
	slog.Debug("loaded", "path", path, "format", format, "page", page, "image", b.String())
	return b, format, nil
}

// Save writes b in the named format.
func Save(format string, w io.Writer, b *raster.Buffer, flags codec.Flags) error {
	return Default().Save(format, w, b, flags)
}

// SaveFile writes b to path in the format its extension names. The file is
// removed again when encoding fails.
func SaveFile(path string, b *raster.Buffer, flags codec.Flags) (err error) {
	c, ok := Default().FromFilename(path)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownFormat, path)
	}
	if err := codec.CanExport(c, b); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("pixkit: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("pixkit: %w", cerr)
		}
		if err != nil {
			os.Remove(path)
		}
	}()
	if err := Save(c.Format(), f, b, flags); err != nil {
		return fmt.Errorf("saving %s: %w", path, err)
	}
	return nil
}

// PageCount returns the number of pages in rs. Single-page formats report 1.
func PageCount(rs io.ReadSeeker) (int, error) {
	c, ok := Default().Detect(rs)
	if !ok {
		return 0, ErrUnknownFormat
	}
	pc, ok := c.(codec.PageCounter)
	op, opens := c.(codec.Opener)
	if !ok || !opens {
		return 1, nil
	}
	start, err := rs.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, codec.ReadError(c.Format(), "stream offset", err)
	}
	s, err := op.OpenRead(rs)
	if err != nil {
		return 0, err
	}
	n := pc.PageCount(s)
	if err := op.Close(s); err != nil {
		return 0, err
	}
	if _, err := rs.Seek(start, io.SeekStart); err != nil {
		return 0, codec.ReadError(c.Format(), "stream offset", err)
	}
	return n, nil
}

// LoadPage detects the format of rs and loads one page.
func LoadPage(rs io.ReadSeeker, page int, flags codec.Flags) (*raster.Buffer, error) {
	c, ok := Default().Detect(rs)
	if !ok {
		return nil, ErrUnknownFormat
	}
	return Default().LoadFormat(c.Format(), rs, page, flags)
}

// SaveAnimation writes frames as one animated GIF. True-colour frames are
// reduced with Quantize first. Frame timing and placement come from each
// frame's animation metadata.
func SaveAnimation(w io.Writer, frames []*raster.Buffer, flags codec.Flags) error {
	if len(frames) == 0 {
		return codec.Errorf(gif.Format, codec.ErrUnsupported, "no frames")
	}
	c, ok := Default().Lookup(gif.Format)
	if !ok {
		return codec.Errorf(gif.Format, codec.ErrUnsupported, "codec not registered")
	}
	op := c.(codec.Opener)
	s, err := op.OpenWrite(w)
	if err != nil {
		return err
	}
	for i, f := range frames {
		if f.BPP > 8 {
			q, err := Quantize(f)
			if err != nil {
				return fmt.Errorf("frame %d: %w", i, err)
			}
			f = q
		}
		if err := c.Save(w, f, i, flags, s); err != nil {
			return fmt.Errorf("frame %d: %w", i, err)
		}
	}
	return op.Close(s)
}
