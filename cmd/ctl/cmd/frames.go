package cmd

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/jpfielding/pixkit.go/pkg/codec"
	"github.com/jpfielding/pixkit.go/pkg/pixkit"
	"github.com/spf13/cobra"
)

// NewFramesCmd renders every page of an animation to separate files.
func NewFramesCmd(ctx context.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "frames <file>",
		Short: "extract animation frames",
		Long:  "renders each frame of an animated image as a viewer would show it and writes one file per frame",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outDir, _ := cmd.Flags().GetString("out-dir")
			ext, _ := cmd.Flags().GetString("ext")
			raw, _ := cmd.Flags().GetBool("raw")
			flags := codec.Playback
			if raw {
				flags = codec.Default
			}
			n, err := extractFrames(ctx, args[0], outDir, ext, flags)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d frames to %s\n", n, outDir)
			return nil
		},
	}
	pf := cmd.PersistentFlags()
	pf.StringP("out-dir", "o", ".", "directory for the frame files")
	pf.String("ext", "png", "extension, and so format, of the frame files")
	pf.Bool("raw", false, "write the stored frames instead of composited ones")
	return cmd
}

func extractFrames(ctx context.Context, path, outDir, ext string, flags codec.Flags) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read input: %w", err)
	}
	n, err := pixkit.PageCount(bytes.NewReader(data))
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return 0, fmt.Errorf("create output dir: %w", err)
	}
	base := filepath.Base(path)
	base = base[:len(base)-len(filepath.Ext(base))]
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return i, err
		}
		b, err := pixkit.LoadPage(bytes.NewReader(data), i, flags)
		if err != nil {
			return i, fmt.Errorf("frame %d: %w", i, err)
		}
		out := filepath.Join(outDir, fmt.Sprintf("%s_%03d.%s", base, i, ext))
		if err := pixkit.SaveFile(out, b, codec.Default); err != nil {
			return i, fmt.Errorf("frame %d: %w", i, err)
		}
		slog.DebugContext(ctx, "frame written", "frame", i, "path", out)
	}
	return n, nil
}
