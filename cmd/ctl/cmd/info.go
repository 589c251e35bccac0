package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/jpfielding/pixkit.go/pkg/codec"
	"github.com/jpfielding/pixkit.go/pkg/logging"
	"github.com/jpfielding/pixkit.go/pkg/pixkit"
	"github.com/jpfielding/pixkit.go/pkg/raster"
	"github.com/jpfielding/pixkit.go/pkg/util"
	"github.com/spf13/cobra"
)

// NewDetectCmd prints the detected format of each file.
func NewDetectCmd(ctx context.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "detect <file>...",
		Short: "detect image formats",
		Long:  "detect the format of each file by content, falling back to its extension",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			failed := 0
			for _, path := range args {
				format, err := pixkit.DetectFile(path)
				if err != nil {
					slog.WarnContext(ctx, "detect failed", "path", path, "error", err)
					failed++
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", path, format)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d files not recognised", failed, len(args))
			}
			return nil
		},
	}
	return cmd
}

// Info is the report printed by the info command.
type Info struct {
	Path          string                    `json:"path"`
	Format        string                    `json:"format"`
	Width         int                       `json:"width"`
	Height        int                       `json:"height"`
	BPP           int                       `json:"bpp"`
	Type          string                    `json:"type"`
	Order         string                    `json:"order"`
	Colors        int                       `json:"colors,omitempty"`
	Transparent   bool                      `json:"transparent,omitempty"`
	DotsPerMeterX int                       `json:"dotsPerMeterX,omitempty"`
	DotsPerMeterY int                       `json:"dotsPerMeterY,omitempty"`
	Pages         int                       `json:"pages"`
	Metadata      map[string]map[string]any `json:"metadata,omitempty"`
	ContentID     string                    `json:"contentId,omitempty"`
}

// NewInfoCmd prints a JSON description of a file read header-only.
func NewInfoCmd(ctx context.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "info <file>",
		Short: "describe an image file",
		Long:  "reads the header of an image file and prints its geometry, palette size, page count and metadata as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			withID, _ := cmd.Flags().GetBool("id")
			info, err := describe(logging.AppendCtx(ctx, slog.String("path", args[0])), args[0], withID)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(info)
		},
	}
	pf := cmd.PersistentFlags()
	pf.Bool("id", false, "load the pixels and add a content identifier")
	return cmd
}

func describe(ctx context.Context, path string, withID bool) (*Info, error) {
	flags := codec.HeaderOnly
	if withID {
		flags = codec.Default
	}
	b, format, err := pixkit.LoadFile(path, flags)
	if err != nil {
		return nil, err
	}
	info := &Info{
		Path:          path,
		Format:        format,
		Width:         b.Width,
		Height:        b.Height,
		BPP:           b.BPP,
		Type:          b.Type.String(),
		Order:         b.Order().String(),
		Colors:        b.ColorsUsed(),
		Transparent:   b.IsTransparent(),
		DotsPerMeterX: b.DotsPerMeterX,
		DotsPerMeterY: b.DotsPerMeterY,
		Pages:         1,
	}
	if f, err := os.Open(path); err == nil {
		if n, err := pixkit.PageCount(f); err == nil {
			info.Pages = n
		} else {
			slog.WarnContext(ctx, "page count failed", "error", err)
		}
		f.Close()
	}
	for _, m := range []raster.Model{raster.ModelComments, raster.ModelAnimation, raster.ModelCustom} {
		for _, tag := range b.MetadataTags(m) {
			if info.Metadata == nil {
				info.Metadata = map[string]map[string]any{}
			}
			if info.Metadata[m.String()] == nil {
				info.Metadata[m.String()] = map[string]any{}
			}
			info.Metadata[m.String()][tag.Key] = tag.Value
		}
	}
	if withID && b.HasPixels() {
		info.ContentID = util.ContentID(b).String()
	}
	slog.DebugContext(ctx, "described", "format", format, "image", b.String())
	return info, nil
}
