package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/jpfielding/pixkit.go/pkg/codec"
	"github.com/jpfielding/pixkit.go/pkg/logging"
	"github.com/jpfielding/pixkit.go/pkg/pixkit"
	"github.com/jpfielding/pixkit.go/pkg/raster"
	"github.com/spf13/cobra"
)

// NewConvertCmd loads one page of an image and writes it in another format.
func NewConvertCmd(ctx context.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "convert",
		Short: "convert an image to another format",
		Long:  "loads one page of an image, optionally composites or shrinks it, and saves it in the format named by --format or the output extension",
		RunE: func(cmd *cobra.Command, args []string) error {
			in, _ := cmd.Flags().GetString("in")
			out, _ := cmd.Flags().GetString("out")
			if in == "" && len(args) > 0 {
				in = args[0]
			}
			if in == "" || out == "" {
				return fmt.Errorf("--in and --out are required")
			}
			format, _ := cmd.Flags().GetString("format")
			page, _ := cmd.Flags().GetInt("page")
			playback, _ := cmd.Flags().GetBool("playback")
			rle, _ := cmd.Flags().GetBool("rle")
			thumb, _ := cmd.Flags().GetInt("thumb")

			ctx := logging.AppendCtx(ctx, slog.String("in", in), slog.String("out", out))
			var loadFlags, saveFlags codec.Flags
			if playback {
				loadFlags |= codec.Playback
			}
			if rle {
				saveFlags |= codec.SaveRLE
			}
			return convert(ctx, in, out, strings.ToUpper(format), page, loadFlags, saveFlags, thumb)
		},
	}
	pf := cmd.PersistentFlags()
	pf.StringP("in", "i", "", "input image")
	pf.StringP("out", "o", "", "output image")
	pf.StringP("format", "f", "", "output format (default: from the output extension)")
	pf.Int("page", -1, "page of a multi-page input")
	pf.Bool("playback", false, "composite animation frames as a viewer shows them")
	pf.Bool("rle", false, "use run-length or stronger compression where the format has it")
	pf.Int("thumb", 0, "shrink to fit within this many pixels")
	return cmd
}

func convert(ctx context.Context, in, out, format string, page int, loadFlags, saveFlags codec.Flags, thumb int) error {
	b, from, err := pixkit.LoadFilePage(in, page, loadFlags)
	if err != nil {
		return err
	}
	slog.InfoContext(ctx, "loaded", "format", from, "image", b.String())

	if thumb > 0 {
		if b, err = pixkit.Thumbnail(b, thumb); err != nil {
			return err
		}
	}
	var c codec.Codec
	var ok bool
	if format != "" {
		c, ok = pixkit.Default().Lookup(format)
	} else {
		c, ok = pixkit.Default().FromFilename(out)
	}
	if !ok {
		return fmt.Errorf("%w: %s", pixkit.ErrUnknownFormat, out)
	}
	if b, err = fitDepth(c, b); err != nil {
		return err
	}

	if dir := filepath.Dir(out); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}
	f, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	if err := pixkit.Save(c.Format(), f, b, saveFlags); err != nil {
		f.Close()
		os.Remove(out)
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close output: %w", err)
	}
	slog.InfoContext(ctx, "saved", "format", c.Format(), "image", b.String())
	return nil
}

// fitDepth reduces b to a depth c can write: alpha is dropped when only
// 24-bit is available, and true colour is quantized for palette formats.
func fitDepth(c codec.Codec, b *raster.Buffer) (*raster.Buffer, error) {
	if c.SupportsExportDepth(b.BPP) && c.SupportsExportType(b.Type) {
		return b, nil
	}
	if b.BPP == 32 && b.Type == raster.TypeBitmap && c.SupportsExportDepth(24) {
		return b.To24()
	}
	if b.BPP > 8 && b.Type == raster.TypeBitmap && c.SupportsExportDepth(8) {
		return pixkit.Quantize(b)
	}
	return b, nil
}
