package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/veraxhq/verax/internal/engine"
	"github.com/veraxhq/verax/internal/ir"
	"github.com/veraxhq/verax/internal/plan"
)

// SaveRun persists every artifact of a completed run in a single
// transaction: the plan version, the execution row, the full ledger, the
// violation report, metrics, and the final state snapshot. Either the
// whole run is stored or none of it is.
//
// Plan versions are content-addressed: re-running the same document
// reuses the existing plan_versions row (ON CONFLICT DO NOTHING).
func (s *Store) SaveRun(ctx context.Context, p *plan.Plan, result *engine.RunResult) error {
	document := p.Raw
	if len(document) == 0 {
		var err error
		document, err = json.Marshal(p)
		if err != nil {
			return fmt.Errorf("save run: marshal plan: %w", err)
		}
	}
	planHash := ir.PlanHash(document)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save run: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	_, err = tx.ExecContext(ctx, `
		INSERT INTO plan_versions (hash, name, version, document, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(hash) DO NOTHING
	`,
		planHash,
		p.Name,
		p.Version,
		string(document),
		formatTime(result.Metrics.StartedAt),
	)
	if err != nil {
		return fmt.Errorf("save run: write plan version: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO executions
		(id, plan_hash, started_at, finished_at, ticks, final_hash, outcome)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		result.Metrics.RunID,
		planHash,
		formatTime(result.Metrics.StartedAt),
		formatTime(result.Metrics.FinishedAt),
		result.Proof.Ticks,
		result.Proof.FinalHash,
		result.Proof.Outcome,
	)
	if err != nil {
		return fmt.Errorf("save run: write execution: %w", err)
	}

	for seq, e := range result.Ledger {
		payload, err := ir.MarshalCanonical(e.Payload)
		if err != nil {
			return fmt.Errorf("save run: marshal ledger entry %d: %w", seq, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO ledger_entries
			(id, execution_id, seq, tick, operation, payload, hash, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`,
			e.ID,
			result.Metrics.RunID,
			seq,
			e.Tick,
			e.Operation,
			string(payload),
			e.Hash,
			formatTime(e.Timestamp),
		)
		if err != nil {
			return fmt.Errorf("save run: write ledger entry %d: %w", seq, err)
		}
	}

	for seq, v := range result.AuditTrail {
		inputSample, err := marshalSample(v.InputSample)
		if err != nil {
			return fmt.Errorf("save run: marshal violation %d input: %w", seq, err)
		}
		outputSample, err := marshalSample(v.OutputSample)
		if err != nil {
			return fmt.Errorf("save run: marshal violation %d output: %w", seq, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO violations
			(execution_id, seq, tick, primitive, type, message, input_sample, output_sample, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			result.Metrics.RunID,
			seq,
			v.Tick,
			v.Primitive,
			v.Type,
			v.Message,
			inputSample,
			outputSample,
			formatTime(v.Timestamp),
		)
		if err != nil {
			return fmt.Errorf("save run: write violation %d: %w", seq, err)
		}
	}

	primitiveCalls, err := json.Marshal(result.Metrics.PrimitiveCalls)
	if err != nil {
		return fmt.Errorf("save run: marshal primitive calls: %w", err)
	}
	violationsByType, err := json.Marshal(result.Metrics.ViolationsByType)
	if err != nil {
		return fmt.Errorf("save run: marshal violations by type: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO metrics
		(execution_id, duration_ms, primitive_calls, total_violations,
		 violations_by_type, checks_passed, outcome)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		result.Metrics.RunID,
		result.Metrics.DurationMS,
		string(primitiveCalls),
		result.Metrics.TotalViolations,
		string(violationsByType),
		result.Metrics.ChecksPassed,
		result.Metrics.Outcome,
	)
	if err != nil {
		return fmt.Errorf("save run: write metrics: %w", err)
	}

	finalState, err := ir.MarshalCanonical(result.State)
	if err != nil {
		return fmt.Errorf("save run: marshal final state: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO state_snapshots (execution_id, final_state, final_hash)
		VALUES (?, ?, ?)
	`,
		result.Metrics.RunID,
		string(finalState),
		result.Proof.FinalHash,
	)
	if err != nil {
		return fmt.Errorf("save run: write state snapshot: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("save run: commit: %w", err)
	}
	return nil
}

// marshalSample renders a violation sample as canonical JSON, or nil for
// an absent sample (stored as SQL NULL).
func marshalSample(sample ir.Object) (any, error) {
	if sample == nil {
		return nil, nil
	}
	data, err := ir.MarshalCanonical(sample)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// formatTime renders a timestamp for storage. RFC 3339 with nanoseconds
// keeps lexicographic order equal to chronological order.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
