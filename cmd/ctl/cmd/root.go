package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/jpfielding/pixkit.go/pkg/logging"
	"github.com/jpfielding/pixkit.go/pkg/pixkit"
	"github.com/spf13/cobra"
)

func NewRoot(ctx context.Context, gitsha string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pixctl",
		Short: "a CLI to inspect and convert image files",
		Long:  "pixctl detects, inspects and converts the image formats bundled with pixkit",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logLevel, _ := cmd.Flags().GetString("log-level")
			logFile, _ := cmd.Flags().GetString("log-file")
			logJSON, _ := cmd.Flags().GetBool("log-json")

			// Parse log level
			var level slog.Level
			levelErr := level.UnmarshalText([]byte(strings.ToUpper(logLevel)))
			if levelErr != nil {
				level = slog.LevelInfo
			}
			var w io.Writer = os.Stderr
			if logFile != "" {
				w = logging.RotatingFile(logFile, 10, 3)
			}
			slog.SetDefault(logging.Logger(w, logJSON, level))

			if levelErr != nil {
				slog.WarnContext(ctx, "Invalid log level, defaulting to INFO", "level", logLevel, "error", levelErr)
			}
		},
		Run: func(cmd *cobra.Command, args []string) {
			printCommandTree(cmd.OutOrStdout(), cmd, 0)
		},
		SilenceUsage: true,
	}
	cmd.AddCommand(
		NewVersionCmd(ctx, gitsha),
		NewFormatsCmd(ctx),
		NewDetectCmd(ctx),
		NewInfoCmd(ctx),
		NewConvertCmd(ctx),
		NewFramesCmd(ctx),
	)
	pf := cmd.PersistentFlags()
	pf.String("log-level", "INFO", "Log level (DEBUG, INFO, WARN, ERROR)")
	pf.String("log-file", "", "Write logs to this rotating file instead of stderr")
	pf.Bool("log-json", false, "Log as JSON")
	return cmd
}

func printCommandTree(w io.Writer, cmd *cobra.Command, indent int) {
	fmt.Fprintln(w, strings.Repeat("\t", indent), cmd.Use+":", cmd.Short)
	for _, subCmd := range cmd.Commands() {
		printCommandTree(w, subCmd, indent+1)
	}
}

func NewVersionCmd(ctx context.Context, gitsha string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "git sha for this build",
		Long:  "git sha for this build",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), gitsha)
		},
	}
	return cmd
}

// NewFormatsCmd lists the registered codecs in probe order.
func NewFormatsCmd(ctx context.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "formats",
		Short: "list supported formats",
		Long:  "list supported formats in detection order with their extensions and capabilities",
		Run: func(cmd *cobra.Command, args []string) {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "FORMAT\tEXTENSIONS\tMIME\tHEADER-ONLY\tDESCRIPTION")
			for _, c := range pixkit.Default().Codecs() {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%t\t%s\n",
					c.Format(), strings.Join(c.Extensions(), ","), c.MimeType(), c.SupportsHeaderOnly(), c.Description())
			}
			tw.Flush()
		},
	}
	return cmd
}
