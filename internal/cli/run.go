package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/veraxhq/verax/internal/engine"
	"github.com/veraxhq/verax/internal/ir"
	"github.com/veraxhq/verax/internal/plan"
	"github.com/veraxhq/verax/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Input           string
	Plan            string
	Bindings        string
	HaltOnViolation bool
	CollectAll      bool
	OutDir          string
	Database        string

	// Tokens and Clock allow overriding the engine's sources (for testing).
	// Nil defaults to UUIDv7 and wall-clock time.
	Tokens engine.TokenSource
	Clock  engine.TimeSource
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts, CollectAll: true}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute a plan against a record",
		Long: `Execute a plan's steps in order against an initial record.

The run produces the final record, a hash-stamped audit ledger, a
violation report, a metrics snapshot, and a run proof. Violations are
data, not failures: a run with violations still exits 0.

Example:
  verax run --plan plan.yaml --input record.json --out ./artifacts
  verax run --plan plan.json --input record.json --db runs.db --halt-on-violation`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExecute(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Plan, "plan", "", "path to plan document (required)")
	cmd.Flags().StringVar(&opts.Input, "input", "", "path to initial record JSON (required)")
	cmd.Flags().StringVar(&opts.Bindings, "bindings", "", "path to invariant binding document")
	cmd.Flags().BoolVar(&opts.HaltOnViolation, "halt-on-violation", false,
		"stop at the first step boundary after a violation")
	cmd.Flags().BoolVar(&opts.CollectAll, "collect-all", true,
		"collect every violation instead of only the first")
	cmd.Flags().StringVar(&opts.OutDir, "out", "", "directory for run artifacts")
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite archive database")
	_ = cmd.MarkFlagRequired("plan")
	_ = cmd.MarkFlagRequired("input")

	return cmd
}

// runSummary is the machine-readable run report printed on success.
type runSummary struct {
	RunID         string `json:"run_id"`
	Outcome       string `json:"outcome"`
	Ticks         int64  `json:"ticks"`
	LedgerEntries int    `json:"ledger_entries"`
	Violations    int    `json:"violations"`
	FinalHash     string `json:"final_hash"`
	ArtifactsDir  string `json:"artifacts_dir,omitempty"`
}

func runExecute(opts *RunOptions, cmd *cobra.Command) error {
	setupLogging(opts.RootOptions)

	p, err := plan.LoadFile(opts.Plan)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load plan", err)
	}
	if err := plan.ValidatePlan(p); err != nil {
		return WrapExitError(ExitFailure, "plan failed schema validation", err)
	}

	record, err := plan.LoadRecord(opts.Input)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load input record", err)
	}

	bindings := plan.Bindings{}
	if opts.Bindings != "" {
		if bindings, err = plan.LoadBindings(opts.Bindings); err != nil {
			return WrapExitError(ExitCommandError, "failed to load bindings", err)
		}
	}

	engOpts := []engine.Option{
		engine.WithBindings(bindings),
		engine.WithHaltOnViolation(opts.HaltOnViolation),
		engine.WithCollectAll(opts.CollectAll),
	}
	if opts.Tokens != nil {
		engOpts = append(engOpts, engine.WithTokenSource(opts.Tokens))
	}
	if opts.Clock != nil {
		engOpts = append(engOpts, engine.WithTimeSource(opts.Clock))
	}
	eng := engine.New(engine.Builtins(), engOpts...)

	slog.Info("executing plan", "plan", opts.Plan, "steps", len(p.Steps))
	result, err := eng.Execute(p, record)
	if err != nil {
		return WrapExitError(ExitFailure, "execution failed", err)
	}

	if opts.OutDir != "" {
		if err := writeArtifacts(opts.OutDir, result); err != nil {
			return WrapExitError(ExitCommandError, "failed to write artifacts", err)
		}
	}

	if opts.Database != "" {
		st, err := store.Open(opts.Database)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open database", err)
		}
		defer st.Close()
		if err := st.SaveRun(context.Background(), p, result); err != nil {
			return WrapExitError(ExitCommandError, "failed to persist run", err)
		}
		slog.Info("run persisted", "db", opts.Database, "run_id", result.Metrics.RunID)
	}

	summary := runSummary{
		RunID:         result.Metrics.RunID,
		Outcome:       result.Proof.Outcome,
		Ticks:         result.Proof.Ticks,
		LedgerEntries: result.Proof.LedgerEntries,
		Violations:    result.Proof.Violations,
		FinalHash:     result.Proof.FinalHash,
		ArtifactsDir:  opts.OutDir,
	}
	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	if opts.Format == "json" {
		return formatter.Success(summary)
	}
	return formatter.Success(formatSummary(summary))
}

// formatSummary renders the human-readable run report.
func formatSummary(s runSummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Run %s: %s\n", s.RunID, s.Outcome)
	fmt.Fprintf(&b, "  ticks:          %d\n", s.Ticks)
	fmt.Fprintf(&b, "  ledger entries: %d\n", s.LedgerEntries)
	fmt.Fprintf(&b, "  violations:     %d\n", s.Violations)
	fmt.Fprintf(&b, "  final hash:     %s", s.FinalHash)
	if s.ArtifactsDir != "" {
		fmt.Fprintf(&b, "\n  artifacts:      %s", s.ArtifactsDir)
	}
	return b.String()
}

// writeArtifacts writes the run's artifact files into dir, creating it if
// needed: ledger.json, violations.json, metrics.json, proof.json, and
// state.json (the final record).
func writeArtifacts(dir string, result *engine.RunResult) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create artifacts dir: %w", err)
	}

	violations := result.AuditTrail
	if violations == nil {
		violations = []engine.Violation{}
	}

	files := []struct {
		name string
		data any
	}{
		{"ledger.json", result.Ledger},
		{"violations.json", violations},
		{"metrics.json", result.Metrics},
		{"proof.json", result.Proof},
	}
	for _, f := range files {
		data, err := json.MarshalIndent(f.data, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal %s: %w", f.name, err)
		}
		if err := os.WriteFile(filepath.Join(dir, f.name), append(data, '\n'), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", f.name, err)
		}
	}

	state, err := ir.Marshal(result.State)
	if err != nil {
		return fmt.Errorf("marshal state.json: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "state.json"), append(state, '\n'), 0o644); err != nil {
		return fmt.Errorf("write state.json: %w", err)
	}
	return nil
}
