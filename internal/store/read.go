package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/veraxhq/verax/internal/engine"
	"github.com/veraxhq/verax/internal/ir"
)

// ErrNotFound is returned when the requested execution does not exist.
var ErrNotFound = errors.New("execution not found")

// Execution is one persisted run's summary row.
type Execution struct {
	ID         string
	PlanHash   string
	StartedAt  time.Time
	FinishedAt time.Time
	Ticks      int64
	FinalHash  string
	Outcome    string
}

// StoredRun is a fully rehydrated run: the execution summary plus every
// artifact needed for replay verification.
type StoredRun struct {
	Execution  Execution
	Entries    []engine.LedgerEntry
	Violations []engine.Violation
	FinalState ir.Object
	FinalHash  string
}

// LoadRun reads back a complete run by execution ID.
// Entries and violations come back in exact execution order (ORDER BY seq).
func (s *Store) LoadRun(ctx context.Context, executionID string) (*StoredRun, error) {
	exec, err := s.loadExecution(ctx, executionID)
	if err != nil {
		return nil, err
	}

	entries, err := s.loadEntries(ctx, executionID)
	if err != nil {
		return nil, err
	}

	violations, err := s.loadViolations(ctx, executionID)
	if err != nil {
		return nil, err
	}

	finalState, finalHash, err := s.loadSnapshot(ctx, executionID)
	if err != nil {
		return nil, err
	}

	return &StoredRun{
		Execution:  exec,
		Entries:    entries,
		Violations: violations,
		FinalState: finalState,
		FinalHash:  finalHash,
	}, nil
}

// ListExecutions returns all persisted executions, oldest first.
// Ties on started_at break by id for deterministic output.
func (s *Store) ListExecutions(ctx context.Context) ([]Execution, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, plan_hash, started_at, finished_at, ticks, final_hash, outcome
		FROM executions
		ORDER BY started_at ASC, id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query executions: %w", err)
	}
	defer rows.Close()

	execs := []Execution{}
	for rows.Next() {
		exec, err := scanExecution(rows)
		if err != nil {
			return nil, err
		}
		execs = append(execs, exec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate executions: %w", err)
	}
	return execs, nil
}

// VerifyExecution rehydrates a run and performs full replay verification:
// payload hashes, tick contiguity, final record hash.
func (s *Store) VerifyExecution(ctx context.Context, executionID string) error {
	run, err := s.LoadRun(ctx, executionID)
	if err != nil {
		return err
	}
	if err := engine.VerifyRun(run.Entries, run.FinalState, run.FinalHash); err != nil {
		return fmt.Errorf("execution %s: %w", executionID, err)
	}
	if run.FinalHash != run.Execution.FinalHash {
		return fmt.Errorf("execution %s: snapshot hash %s disagrees with execution row %s",
			executionID, run.FinalHash, run.Execution.FinalHash)
	}
	return nil
}

func (s *Store) loadExecution(ctx context.Context, id string) (Execution, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, plan_hash, started_at, finished_at, ticks, final_hash, outcome
		FROM executions
		WHERE id = ?
	`, id)

	exec, err := scanExecution(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Execution{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return exec, err
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanExecution(row scanner) (Execution, error) {
	var exec Execution
	var startedAt, finishedAt string
	err := row.Scan(&exec.ID, &exec.PlanHash, &startedAt, &finishedAt,
		&exec.Ticks, &exec.FinalHash, &exec.Outcome)
	if err != nil {
		return Execution{}, err
	}
	if exec.StartedAt, err = parseTime(startedAt); err != nil {
		return Execution{}, fmt.Errorf("execution %s: started_at: %w", exec.ID, err)
	}
	if exec.FinishedAt, err = parseTime(finishedAt); err != nil {
		return Execution{}, fmt.Errorf("execution %s: finished_at: %w", exec.ID, err)
	}
	return exec, nil
}

func (s *Store) loadEntries(ctx context.Context, executionID string) ([]engine.LedgerEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tick, operation, payload, hash, created_at
		FROM ledger_entries
		WHERE execution_id = ?
		ORDER BY seq ASC
	`, executionID)
	if err != nil {
		return nil, fmt.Errorf("query ledger entries: %w", err)
	}
	defer rows.Close()

	entries := []engine.LedgerEntry{}
	for rows.Next() {
		var e engine.LedgerEntry
		var payload, createdAt string
		if err := rows.Scan(&e.ID, &e.Tick, &e.Operation, &payload, &e.Hash, &createdAt); err != nil {
			return nil, fmt.Errorf("scan ledger entry: %w", err)
		}
		if e.Payload, err = ir.UnmarshalObject([]byte(payload)); err != nil {
			return nil, fmt.Errorf("entry %s: payload: %w", e.ID, err)
		}
		if e.Timestamp, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("entry %s: created_at: %w", e.ID, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ledger entries: %w", err)
	}
	return entries, nil
}

func (s *Store) loadViolations(ctx context.Context, executionID string) ([]engine.Violation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT tick, primitive, type, message, input_sample, output_sample, created_at
		FROM violations
		WHERE execution_id = ?
		ORDER BY seq ASC
	`, executionID)
	if err != nil {
		return nil, fmt.Errorf("query violations: %w", err)
	}
	defer rows.Close()

	violations := []engine.Violation{}
	for rows.Next() {
		var v engine.Violation
		var inputSample, outputSample sql.NullString
		var createdAt string
		err := rows.Scan(&v.Tick, &v.Primitive, &v.Type, &v.Message,
			&inputSample, &outputSample, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("scan violation: %w", err)
		}
		if v.InputSample, err = unmarshalSample(inputSample); err != nil {
			return nil, fmt.Errorf("violation tick %d: input sample: %w", v.Tick, err)
		}
		if v.OutputSample, err = unmarshalSample(outputSample); err != nil {
			return nil, fmt.Errorf("violation tick %d: output sample: %w", v.Tick, err)
		}
		if v.Timestamp, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("violation tick %d: created_at: %w", v.Tick, err)
		}
		violations = append(violations, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate violations: %w", err)
	}
	return violations, nil
}

func (s *Store) loadSnapshot(ctx context.Context, executionID string) (ir.Object, string, error) {
	var state, hash string
	err := s.db.QueryRowContext(ctx, `
		SELECT final_state, final_hash
		FROM state_snapshots
		WHERE execution_id = ?
	`, executionID).Scan(&state, &hash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, "", fmt.Errorf("%w: no state snapshot for %s", ErrNotFound, executionID)
	}
	if err != nil {
		return nil, "", fmt.Errorf("query state snapshot: %w", err)
	}

	obj, err := ir.UnmarshalObject([]byte(state))
	if err != nil {
		return nil, "", fmt.Errorf("state snapshot for %s: %w", executionID, err)
	}
	return obj, hash, nil
}

func unmarshalSample(ns sql.NullString) (ir.Object, error) {
	if !ns.Valid {
		return nil, nil
	}
	return ir.UnmarshalObject([]byte(ns.String))
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}
