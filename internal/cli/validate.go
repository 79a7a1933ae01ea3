package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/veraxhq/verax/internal/plan"
)

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <plan>",
		Short: "Validate a plan document against the schema",
		Long: `Parse a plan document and check it against the CUE schema.

Exit codes:
  0 - plan is valid
  1 - plan is invalid (parse error or schema violation)
  2 - plan file unreadable

Example:
  verax validate plan.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	setupLogging(opts)
	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}

	if _, err := os.Stat(path); err != nil {
		return WrapExitError(ExitCommandError, "cannot read plan file", err)
	}

	p, err := plan.LoadFile(path)
	if err != nil {
		_ = formatter.Error("E_PARSE", err.Error(), nil)
		return WrapExitError(ExitFailure, "plan is invalid", err)
	}
	if err := plan.ValidatePlan(p); err != nil {
		_ = formatter.Error("E_SCHEMA", err.Error(), nil)
		return WrapExitError(ExitFailure, "plan is invalid", err)
	}

	if opts.Format == "json" {
		return formatter.Success(map[string]any{
			"plan":  path,
			"name":  p.Name,
			"steps": len(p.Steps),
			"valid": true,
		})
	}
	return formatter.Success(fmt.Sprintf("%s: valid (%d steps)", path, len(p.Steps)))
}
