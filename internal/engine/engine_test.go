package engine

import (
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veraxhq/verax/internal/ir"
	"github.com/veraxhq/verax/internal/plan"
)

func TestMain(m *testing.M) {
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
	os.Exit(m.Run())
}

func fixedEngine(opts ...Option) *Engine {
	base := []Option{
		WithTimeSource(FixedTime{Instant: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}),
		WithTokenSource(NewFixedTokenSource("fx")),
	}
	return New(Builtins(), append(base, opts...)...)
}

func singleStepPlan(step plan.Step) *plan.Plan {
	return &plan.Plan{Name: "test", Version: "1", Steps: []plan.Step{step}}
}

func TestExecuteUpdateStateWritesNestedPath(t *testing.T) {
	p := singleStepPlan(plan.Step{
		ID:        "s1",
		Primitive: "update_state",
		Params: ir.Object{
			"path":  ir.String("a.b"),
			"value": ir.Number(5),
		},
	})

	result, err := fixedEngine().Execute(p, ir.Object{})
	require.NoError(t, err)

	assert.Equal(t, ir.Object{"a": ir.Object{"b": ir.Number(5)}}, result.State)
	assert.Empty(t, result.AuditTrail)
	assert.Equal(t, int64(1), result.Proof.Ticks)
	assert.Equal(t, 1, result.Proof.LedgerEntries)
	assert.Equal(t, OutcomeClean, result.Proof.Outcome)
}

func TestExecuteEmptyScoresYieldsOneViolationAndNoMutation(t *testing.T) {
	p := singleStepPlan(plan.Step{
		ID:           "s1",
		Primitive:    "calculate_score",
		Params:       ir.Object{"scores": ir.Array{}},
		OutputFields: []string{"normalized_score"},
	})
	initial := ir.Object{"untouched": ir.String("yes")}

	result, err := fixedEngine().Execute(p, initial)
	require.NoError(t, err)

	require.Len(t, result.AuditTrail, 1)
	assert.Equal(t, "NaN score", result.AuditTrail[0].TypeLabel())

	// The NaN never reaches the record: final state equals the input.
	assert.Equal(t, ir.Object{"untouched": ir.String("yes")}, result.State)
	assert.Equal(t, ir.Object{"untouched": ir.String("yes")}, initial)
}

func TestExecuteUnknownPrimitive(t *testing.T) {
	p := &plan.Plan{Name: "test", Steps: []plan.Step{
		{ID: "s1", Primitive: "frobnicate"},
		{ID: "s2", Primitive: "update_state", Params: ir.Object{
			"path": ir.String("x"), "value": ir.Number(1),
		}},
	}}

	result, err := fixedEngine().Execute(p, ir.Object{})
	require.NoError(t, err)

	// Continue mode: the unknown step records a violation, the next step
	// still runs.
	require.Len(t, result.AuditTrail, 1)
	assert.Equal(t, "Unknown primitive: frobnicate", result.AuditTrail[0].Message)
	assert.Equal(t, int64(1), result.AuditTrail[0].Tick)
	assert.Equal(t, ir.Number(1), result.State["x"])
	assert.Equal(t, int64(2), result.Proof.Ticks)
}

func TestExecuteHaltOnViolationStopsAtStepBoundary(t *testing.T) {
	p := &plan.Plan{Name: "test", Steps: []plan.Step{
		{ID: "s1", Primitive: "frobnicate"},
		{ID: "s2", Primitive: "update_state", Params: ir.Object{
			"path": ir.String("x"), "value": ir.Number(1),
		}},
	}}

	result, err := fixedEngine(WithHaltOnViolation(true)).Execute(p, ir.Object{})
	require.NoError(t, err)

	// The second step never runs: one tick, one violation entry.
	assert.Equal(t, int64(1), result.Proof.Ticks)
	_, present := result.State["x"]
	assert.False(t, present)
	require.Len(t, result.Ledger, 1)
	assert.Equal(t, "violation", result.Ledger[0].Operation)
}

func TestExecuteDisabledRuleSkipsCleanly(t *testing.T) {
	p := singleStepPlan(plan.Step{
		ID:        "s1",
		Primitive: "apply_rule",
		Params: ir.Object{
			"ruleId":      ir.String("r1"),
			"enabled":     ir.Bool(false),
			"assignments": ir.Object{"status": ir.String("done")},
		},
	})
	initial := ir.Object{"status": ir.String("new")}

	result, err := fixedEngine().Execute(p, initial)
	require.NoError(t, err)

	assert.Empty(t, result.AuditTrail)
	assert.Equal(t, ir.String("new"), result.State["status"])
	require.Len(t, result.Ledger, 1)
	assert.Equal(t, ir.String("skipped"), result.Ledger[0].Payload["status"])
}

func TestExecuteIsDeterministic(t *testing.T) {
	p := &plan.Plan{Name: "det", Steps: []plan.Step{
		{ID: "s1", Primitive: "apply_rule", Params: ir.Object{
			"ruleId":    ir.String("tier"),
			"condition": ir.String("amount > 100"),
			"assignments": ir.Object{
				"tier":  ir.String("gold"),
				"total": ir.String("{{ amount * 1.1 }}"),
			},
		}},
		{ID: "s2", Primitive: "calculate_score",
			InputFields:  []string{"scores"},
			OutputFields: []string{"normalized_score"},
		},
		{ID: "s3", Primitive: "evaluate_condition",
			InputFields:  []string{"normalized_score"},
			Params:       ir.Object{"condition": ir.String("normalized_score >= 0.5")},
			OutputFields: []string{"passed.result"},
		},
	}}
	initial := ir.Object{
		"amount": ir.Number(500),
		"scores": ir.Array{ir.Number(0.4), ir.Number(0.8)},
	}

	run := func() *RunResult {
		result, err := fixedEngine().Execute(p, ir.Clone(initial).(ir.Object))
		require.NoError(t, err)
		return result
	}

	a, b := run(), run()

	assert.Equal(t, a.State, b.State)
	assert.Equal(t, a.Proof.FinalHash, b.Proof.FinalHash)
	require.Equal(t, len(a.Ledger), len(b.Ledger))
	for i := range a.Ledger {
		assert.Equal(t, a.Ledger[i].Hash, b.Ledger[i].Hash, "ledger entry %d", i)
	}
}

func TestExecuteTicksAreContiguousAcrossMixedSteps(t *testing.T) {
	p := &plan.Plan{Name: "ticks", Steps: []plan.Step{
		{ID: "s1", Primitive: "update_state", Params: ir.Object{
			"path": ir.String("a"), "value": ir.Number(1)}},
		{ID: "s2", Primitive: "no_such_primitive"},
		{ID: "s3", Primitive: "calculate_score", Params: ir.Object{
			"scores": ir.Array{}}},
		{ID: "s4", Primitive: "apply_rule", Params: ir.Object{
			"enabled": ir.Bool(false)}},
	}}

	result, err := fixedEngine().Execute(p, ir.Object{})
	require.NoError(t, err)

	// Every attempt consumes exactly one tick regardless of outcome.
	assert.Equal(t, int64(4), result.Proof.Ticks)

	var stepTicks []int64
	for _, e := range result.Ledger {
		if e.Operation != "violation" {
			stepTicks = append(stepTicks, e.Tick)
		}
	}
	assert.Equal(t, []int64{1, 3, 4}, stepTicks)
}

func TestExecuteOutputFieldAliasing(t *testing.T) {
	// The output path's last segment names the key taken from the
	// primitive output; the full path names where it lands.
	p := singleStepPlan(plan.Step{
		ID:           "s1",
		Primitive:    "evaluate_expression",
		Params:       ir.Object{"expression": ir.String("2 * 21")},
		OutputFields: []string{"computed.value"},
	})

	result, err := fixedEngine().Execute(p, ir.Object{})
	require.NoError(t, err)

	assert.Equal(t, ir.Object{
		"computed": ir.Object{"value": ir.Number(42)},
	}, result.State)
}

func TestExecuteOutputFieldAbsentKeyLeavesRecordAlone(t *testing.T) {
	p := singleStepPlan(plan.Step{
		ID:           "s1",
		Primitive:    "evaluate_expression",
		Params:       ir.Object{"expression": ir.String("1")},
		OutputFields: []string{"missing_key"},
	})

	result, err := fixedEngine().Execute(p, ir.Object{"keep": ir.Bool(true)})
	require.NoError(t, err)

	assert.Equal(t, ir.Object{"keep": ir.Bool(true)}, result.State)
}

func TestExecuteWildcardInputMergesRecord(t *testing.T) {
	p := singleStepPlan(plan.Step{
		ID:          "s1",
		Primitive:   "evaluate_condition",
		InputFields: []string{"*"},
		Params:      ir.Object{"condition": ir.String("a + b == 3")},
	})

	result, err := fixedEngine().Execute(p, ir.Object{
		"a": ir.Number(1),
		"b": ir.Number(2),
	})
	require.NoError(t, err)
	assert.Empty(t, result.AuditTrail)

	payload := result.Ledger[0].Payload["output"].(ir.Object)
	assert.Equal(t, ir.Bool(true), payload["result"])
}

func TestExecuteParamsOverrideInputFields(t *testing.T) {
	p := singleStepPlan(plan.Step{
		ID:          "s1",
		Primitive:   "evaluate_condition",
		InputFields: []string{"threshold"},
		Params: ir.Object{
			"threshold": ir.Number(10),
			"condition": ir.String("threshold == 10"),
		},
	})

	result, err := fixedEngine().Execute(p, ir.Object{"threshold": ir.Number(99)})
	require.NoError(t, err)
	assert.Empty(t, result.AuditTrail)
}

func TestExecuteNestedInputFieldResolvesByLeaf(t *testing.T) {
	p := singleStepPlan(plan.Step{
		ID:          "s1",
		Primitive:   "evaluate_condition",
		InputFields: []string{"user.profile.age"},
		Params:      ir.Object{"condition": ir.String("age >= 18")},
	})

	result, err := fixedEngine().Execute(p, ir.Object{
		"user": ir.Object{"profile": ir.Object{"age": ir.Number(30)}},
	})
	require.NoError(t, err)
	assert.Empty(t, result.AuditTrail)
}

func TestExecuteErroredStepDoesNotAbortRun(t *testing.T) {
	p := &plan.Plan{Name: "forward", Steps: []plan.Step{
		{ID: "s1", Primitive: "evaluate_condition", Params: ir.Object{
			"condition": ir.String("1 +")}},
		{ID: "s2", Primitive: "update_state", Params: ir.Object{
			"path": ir.String("after"), "value": ir.Bool(true)}},
	}}

	result, err := fixedEngine().Execute(p, ir.Object{})
	require.NoError(t, err)

	require.Len(t, result.AuditTrail, 1)
	assert.Equal(t, "Primitive error", result.AuditTrail[0].TypeLabel())
	assert.Equal(t, ir.Bool(true), result.State["after"])
}

func TestExecuteBoundChecksFeedViolationsAndMetrics(t *testing.T) {
	bindings := plan.Bindings{
		"calculate_score": {"score_in_range", "no_failure"},
	}
	p := singleStepPlan(plan.Step{
		ID:        "s1",
		Primitive: "calculate_score",
		Params: ir.Object{
			"scores": ir.Array{ir.Number(3), ir.Number(5)},
		},
	})

	result, err := fixedEngine(WithBindings(bindings)).Execute(p, ir.Object{})
	require.NoError(t, err)

	// Mean 4 is outside [0,1]: score_in_range fails, no_failure passes.
	require.Len(t, result.AuditTrail, 1)
	assert.Equal(t, "Contract failed", result.AuditTrail[0].TypeLabel())
	assert.Equal(t, int64(1), result.Metrics.ChecksPassed)
	assert.Equal(t, int64(1), result.Metrics.ViolationsByType["Contract failed"])
}

func TestExecuteViolationLedgerEntriesVerify(t *testing.T) {
	p := &plan.Plan{Name: "verify", Steps: []plan.Step{
		{ID: "s1", Primitive: "calculate_score", Params: ir.Object{
			"scores": ir.Array{}}},
		{ID: "s2", Primitive: "missing_primitive"},
	}}

	result, err := fixedEngine().Execute(p, ir.Object{})
	require.NoError(t, err)

	idx, verr := VerifyEntries(result.Ledger)
	assert.NoError(t, verr)
	assert.Equal(t, -1, idx)
}

func TestExecuteDoesNotMutateInitialRecord(t *testing.T) {
	initial := ir.Object{"nested": ir.Object{"n": ir.Number(1)}}
	p := singleStepPlan(plan.Step{
		ID:        "s1",
		Primitive: "update_state",
		Params: ir.Object{
			"path": ir.String("nested.n"), "value": ir.Number(99),
		},
	})

	result, err := fixedEngine().Execute(p, initial)
	require.NoError(t, err)

	assert.Equal(t, ir.Number(1), initial["nested"].(ir.Object)["n"])
	assert.Equal(t, ir.Number(99), result.State["nested"].(ir.Object)["n"])
}

func TestExecuteProofMatchesRunArtifacts(t *testing.T) {
	p := &plan.Plan{Name: "proof", Steps: []plan.Step{
		{ID: "s1", Primitive: "update_state", Params: ir.Object{
			"path": ir.String("a"), "value": ir.Number(1)}},
		{ID: "s2", Primitive: "calculate_score", Params: ir.Object{
			"scores": ir.Array{}}},
	}}

	result, err := fixedEngine().Execute(p, ir.Object{})
	require.NoError(t, err)

	assert.Equal(t, int64(2), result.Proof.Ticks)
	assert.Equal(t, len(result.Ledger), result.Proof.LedgerEntries)
	assert.Equal(t, len(result.AuditTrail), result.Proof.Violations)
	assert.Equal(t, OutcomeViolations, result.Proof.Outcome)

	wantHash, err := ir.RecordHash(result.State)
	require.NoError(t, err)
	assert.Equal(t, wantHash, result.Proof.FinalHash)
}
