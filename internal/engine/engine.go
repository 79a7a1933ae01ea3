package engine

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/veraxhq/verax/internal/ir"
	"github.com/veraxhq/verax/internal/plan"
)

// Engine executes plans. It holds only run-independent configuration
// (registry, binding table, policies, sources); all mutable run state
// lives in a per-run context created by Execute, so one Engine may run
// many plans concurrently from different goroutines.
type Engine struct {
	registry        *Registry
	bindings        plan.Bindings
	haltOnViolation bool
	collectAll      bool
	time            TimeSource
	ids             TokenSource
}

// Option configures an Engine.
type Option func(*Engine)

// WithHaltOnViolation makes the run stop at the first step boundary after
// any violation has been recorded. Default: off - the run always
// completes and reports counts.
func WithHaltOnViolation(halt bool) Option {
	return func(e *Engine) { e.haltOnViolation = halt }
}

// WithCollectAll controls whether every violation is collected (default
// true). Currently the engine always collects; the flag is carried so the
// CLI surface can expose it without the engine growing a second truth.
func WithCollectAll(collect bool) Option {
	return func(e *Engine) { e.collectAll = collect }
}

// WithBindings supplies the named-check binding table.
func WithBindings(b plan.Bindings) Option {
	return func(e *Engine) { e.bindings = b }
}

// WithTimeSource overrides the timestamp source. Tests pin a fixed
// instant for reproducible output.
func WithTimeSource(ts TimeSource) Option {
	return func(e *Engine) { e.time = ts }
}

// WithTokenSource overrides the identifier source.
func WithTokenSource(ids TokenSource) Option {
	return func(e *Engine) { e.ids = ids }
}

// New creates an Engine around a primitive registry.
func New(registry *Registry, opts ...Option) *Engine {
	e := &Engine{
		registry:   registry,
		bindings:   plan.Bindings{},
		collectAll: true,
		time:       SystemTime{},
		ids:        UUIDv7Source{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RunResult is everything one execution produces.
type RunResult struct {
	// State is the final record. The caller-supplied initial record is
	// never mutated; this is the run's own deep copy.
	State ir.Object
	// Ledger holds one entry per executed step plus one per violation,
	// in execution order.
	Ledger []LedgerEntry
	// AuditTrail holds every violation in detection order.
	AuditTrail []Violation
	// Metrics is the run's counter snapshot.
	Metrics Snapshot
	// Proof certifies the completed run.
	Proof Proof
}

// Proof is the run summary certifying a completed execution: tick count,
// final record hash, entry/violation counts, and the outcome label.
type Proof struct {
	Ticks         int64  `json:"ticks"`
	FinalHash     string `json:"finalHash"`
	LedgerEntries int    `json:"ledgerEntries"`
	Violations    int    `json:"violations"`
	Outcome       string `json:"outcome"`
}

// run is the single owned context for one execution: the record tree,
// tick clock, ledger, metrics, and violation trail. Created by Execute,
// discarded when it returns.
type run struct {
	engine  *Engine
	id      string
	ectx    *Context
	clock   *Clock
	ledger  *Ledger
	metrics *Metrics
	trail   []Violation
	log     *slog.Logger
}

// Execute runs the plan against a deep copy of the initial record.
//
// Execution is synchronous and strictly sequential. Expected step
// failures never surface as a Go error - they become violations in the
// result. The returned error covers only engine-internal faults
// (unhashable ledger payloads), which indicate a bug, not bad rule data.
func (e *Engine) Execute(p *plan.Plan, initial ir.Object) (*RunResult, error) {
	if p == nil {
		return nil, &RuntimeError{Code: ErrCodeBadPlan, Message: "nil plan"}
	}
	runID := e.ids.NewID()
	startedAt := e.time.Now()
	log := slog.Default().With("run_id", runID, "plan", p.Name)

	if initial == nil {
		initial = ir.Object{}
	}
	r := &run{
		engine:  e,
		id:      runID,
		ectx:    &Context{Record: ir.Clone(initial).(ir.Object), Time: e.time, IDs: e.ids},
		clock:   NewClock(),
		ledger:  NewLedger(e.ids, e.time),
		metrics: NewMetrics(runID, startedAt),
		log:     log,
	}

	log.Info("run starting", "steps", len(p.Steps), "halt_on_violation", e.haltOnViolation)

	for i := range p.Steps {
		if err := r.executeStep(&p.Steps[i]); err != nil {
			return nil, err
		}

		// Halt-on-violation is the only early-termination path: a
		// cooperative checkpoint at each step boundary, never preemptive.
		if e.haltOnViolation && r.metrics.Violations() > 0 {
			log.Warn("halting on violation", "tick", r.clock.Current(),
				"violations", r.metrics.Violations())
			break
		}
	}

	finalHash, err := ir.RecordHash(r.ectx.Record)
	if err != nil {
		return nil, newUnhashableError(runID, r.clock.Current(), "", err)
	}

	snapshot := r.metrics.Snapshot(e.time.Now())
	result := &RunResult{
		State:      r.ectx.Record,
		Ledger:     r.ledger.Entries(),
		AuditTrail: r.trail,
		Metrics:    snapshot,
		Proof: Proof{
			Ticks:         r.clock.Current(),
			FinalHash:     finalHash,
			LedgerEntries: r.ledger.Len(),
			Violations:    len(r.trail),
			Outcome:       snapshot.Outcome,
		},
	}

	log.Info("run finished", "ticks", result.Proof.Ticks,
		"violations", result.Proof.Violations, "outcome", result.Proof.Outcome)
	return result, nil
}

// executeStep performs one step attempt. Every attempt consumes exactly
// one tick, whether it succeeds, errors, or names an unknown primitive.
func (r *run) executeStep(step *plan.Step) error {
	tick := r.clock.Next()
	log := r.log.With("tick", tick, "step", step.ID, "primitive", step.Primitive)

	primitive, ok := r.engine.registry.Lookup(step.Primitive)
	if !ok {
		// Unknown primitive: a violation, not a crash. The attempt gets
		// no step ledger entry beyond the violation's own.
		log.Warn("unknown primitive")
		return r.recordViolation(Violation{
			Tick:      tick,
			Primitive: step.Primitive,
			Type:      ViolationType,
			Message:   fmt.Sprintf("Unknown primitive: %s", step.Primitive),
		})
	}

	input := r.resolveInputs(step)
	result := primitive(input, r.ectx)
	log.Debug("primitive invoked", "kind", result.Kind.String())

	inputSample := sanitizeObject(input)
	outputSample := result.sanitized()

	// A flagged result IS the violation: the primitive already classified
	// its own output, so the structural pass is skipped to keep exactly
	// one violation per flagged attempt.
	if result.Kind == ResultFlagged {
		if err := r.recordViolation(Violation{
			Tick:         tick,
			Primitive:    step.Primitive,
			Type:         ViolationType,
			Message:      result.FlagMsg,
			InputSample:  inputSample,
			OutputSample: outputSample,
		}); err != nil {
			return err
		}
	} else {
		// Fixed structural checks run for every unflagged result
		for _, msg := range structuralChecks(result) {
			if err := r.recordViolation(Violation{
				Tick:         tick,
				Primitive:    step.Primitive,
				Type:         ViolationType,
				Message:      msg,
				InputSample:  inputSample,
				OutputSample: outputSample,
			}); err != nil {
				return err
			}
		}
	}

	r.applyOutputs(step, result)
	r.metrics.RecordCall(step.Primitive)

	// Externally bound named checks
	failures, passed := runBoundChecks(r.engine.bindings, step.Primitive, result)
	r.metrics.RecordCheckPass(passed)
	for _, msg := range failures {
		if err := r.recordViolation(Violation{
			Tick:         tick,
			Primitive:    step.Primitive,
			Type:         ViolationType,
			Message:      msg,
			InputSample:  inputSample,
			OutputSample: outputSample,
		}); err != nil {
			return err
		}
	}

	// Step ledger entry summarizing input and output
	_, err := r.ledger.Append(tick, step.Primitive, ir.Object{
		"tick":      ir.Number(tick),
		"step_id":   ir.String(step.ID),
		"primitive": ir.String(step.Primitive),
		"status":    ir.String(result.Kind.String()),
		"input":     inputSample,
		"output":    outputSample,
	})
	if err != nil {
		return newUnhashableError(r.id, tick, step.Primitive, err)
	}
	return nil
}

// resolveInputs builds the combined input for a step: each declared input
// field resolved by key path (missing paths are absent, not errors; the
// "*" wildcard merges the whole record), then static params merged on top
// (params win on collision).
func (r *run) resolveInputs(step *plan.Step) ir.Object {
	input := make(ir.Object, len(step.InputFields)+len(step.Params))

	for _, field := range step.InputFields {
		if field == ir.Wildcard {
			for k, v := range r.ectx.Record {
				input[k] = v
			}
			continue
		}
		path, err := ir.ParsePath(field)
		if err != nil {
			continue
		}
		if v, ok := path.Get(r.ectx.Record); ok {
			input[path.Leaf()] = v
		}
	}

	for k, v := range step.Params {
		input[k] = v
	}
	return input
}

// applyOutputs writes declared output fields into the record. For each
// output field path, the LAST path segment names the key read from the
// primitive's output; output paths rename or relocate a single key, never
// whole nested shapes. Keys absent from the output leave the record
// untouched. This narrow behavior is load-bearing for existing plans.
func (r *run) applyOutputs(step *plan.Step, result Result) {
	for _, field := range step.OutputFields {
		if field == ir.Wildcard {
			continue
		}
		path, err := ir.ParsePath(field)
		if err != nil {
			continue
		}
		v, ok := result.Fields[path.Leaf()]
		if !ok {
			continue
		}
		// Record state only ever carries hashable values. A NaN output is
		// already recorded as a violation; it never reaches the record.
		if unhashableNumber(v) {
			continue
		}
		if err := path.Set(r.ectx.Record, v); err != nil {
			r.log.Warn("output field apply failed", "field", field, "error", err)
		}
	}
}

// unhashableNumber reports whether v is a NaN or infinite number, which
// canonical marshaling rejects.
func unhashableNumber(v ir.Value) bool {
	n, ok := v.(ir.Number)
	if !ok {
		return false
	}
	f := float64(n)
	return math.IsNaN(f) || math.IsInf(f, 0)
}

// recordViolation stamps, appends, and ledgers one violation.
func (r *run) recordViolation(v Violation) error {
	v.Timestamp = r.engine.time.Now()
	r.trail = append(r.trail, v)
	r.metrics.RecordViolation(v)
	r.log.Warn("violation recorded", "message", v.Message)

	payload := ir.Object{
		"tick":      ir.Number(v.Tick),
		"primitive": ir.String(v.Primitive),
		"type":      ir.String(v.Type),
		"message":   ir.String(v.Message),
	}
	if v.InputSample != nil {
		payload["inputSample"] = v.InputSample
	}
	if v.OutputSample != nil {
		payload["outputSample"] = v.OutputSample
	}
	if _, err := r.ledger.Append(v.Tick, "violation", payload); err != nil {
		return newUnhashableError(r.id, v.Tick, v.Primitive, err)
	}
	return nil
}
