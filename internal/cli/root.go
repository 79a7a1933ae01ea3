package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	LogLevel string // "verbose" | "normal" | "quiet"
	Format   string // "json" | "text"
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// ValidLogLevels defines the allowed log levels.
var ValidLogLevels = []string{"verbose", "normal", "quiet"}

// NewRootCommand creates the root command for the verax CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "verax",
		Short: "verax - deterministic rule execution",
		Long: "A deterministic rule-execution engine: ordered declarative steps\n" +
			"against a JSON record, with a hash-stamped audit ledger, violation\n" +
			"report, and replay verification.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			if !contains(ValidLogLevels, opts.LogLevel) {
				return fmt.Errorf("invalid log level %q: must be one of %v", opts.LogLevel, ValidLogLevels)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "normal",
		"log level (verbose|normal|quiet)")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text",
		"output format (json|text)")

	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewVerifyCommand(opts))

	return cmd
}

// setupLogging configures the process-wide slog default from the
// --log-level flag. Logs go to stderr so stdout stays parseable.
func setupLogging(opts *RootOptions) {
	var level slog.Level
	var w io.Writer = os.Stderr
	switch opts.LogLevel {
	case "verbose":
		level = slog.LevelDebug
	case "quiet":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}

func contains(valid []string, s string) bool {
	for _, v := range valid {
		if v == s {
			return true
		}
	}
	return false
}
