package engine

import (
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/require"

	"github.com/veraxhq/verax/internal/ir"
	"github.com/veraxhq/verax/internal/plan"
)

// TestGoldenBasicRun snapshots a complete run - final state, ledger,
// violations, proof fields - as canonical JSON and compares against the
// golden file. Entry IDs and timestamps are excluded: the snapshot covers
// exactly the replay-stable portion of the output.
func TestGoldenBasicRun(t *testing.T) {
	p := &plan.Plan{Name: "basic", Steps: []plan.Step{
		{ID: "s1", Primitive: "update_state", Params: ir.Object{
			"path":  ir.String("profile.level"),
			"value": ir.Number(3),
		}},
		{ID: "s2", Primitive: "apply_rule", Params: ir.Object{
			"ruleId":  ir.String("promo"),
			"enabled": ir.Bool(false),
		}},
		{ID: "s3", Primitive: "calculate_score", Params: ir.Object{
			"scores": ir.Array{},
		}},
	}}

	eng := New(Builtins(),
		WithTimeSource(FixedTime{Instant: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}),
		WithTokenSource(NewFixedTokenSource("fx")),
	)
	result, err := eng.Execute(p, ir.Object{"name": ir.String("ada")})
	require.NoError(t, err)

	ledger := make(ir.Array, len(result.Ledger))
	for i, e := range result.Ledger {
		ledger[i] = ir.Object{
			"tick":      ir.Number(e.Tick),
			"operation": ir.String(e.Operation),
			"payload":   e.Payload,
			"hash":      ir.String(e.Hash),
		}
	}
	violations := make(ir.Array, len(result.AuditTrail))
	for i, v := range result.AuditTrail {
		violations[i] = ir.Object{
			"tick":      ir.Number(v.Tick),
			"primitive": ir.String(v.Primitive),
			"message":   ir.String(v.Message),
		}
	}

	snapshot := ir.Object{
		"final_state": result.State,
		"final_hash":  ir.String(result.Proof.FinalHash),
		"ticks":       ir.Number(result.Proof.Ticks),
		"outcome":     ir.String(result.Proof.Outcome),
		"ledger":      ledger,
		"violations":  violations,
	}
	data, err := ir.MarshalCanonical(snapshot)
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "basic_run", data)
}
