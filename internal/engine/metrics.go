package engine

import "time"

// Metrics accumulates per-run counters while the interpreter executes and
// emits a single snapshot at completion. One Metrics belongs to exactly
// one run; nothing is shared across runs.
type Metrics struct {
	runID          string
	startedAt      time.Time
	primitiveCalls map[string]int64
	violations     int64
	byType         map[string]int64
	checksPassed   int64
}

// NewMetrics creates an accumulator for one run.
func NewMetrics(runID string, startedAt time.Time) *Metrics {
	return &Metrics{
		runID:          runID,
		startedAt:      startedAt,
		primitiveCalls: make(map[string]int64),
		byType:         make(map[string]int64),
	}
}

// RecordCall counts one invocation of a primitive.
func (m *Metrics) RecordCall(primitive string) {
	m.primitiveCalls[primitive]++
}

// RecordViolation counts one violation, grouped by its normalized type
// label (text before the first colon in the message).
func (m *Metrics) RecordViolation(v Violation) {
	m.violations++
	m.byType[v.TypeLabel()]++
}

// RecordCheckPass counts one passing bound check.
func (m *Metrics) RecordCheckPass(n int) {
	m.checksPassed += int64(n)
}

// Violations returns the total violation count so far. The interpreter
// consults this for the halt-on-violation checkpoint.
func (m *Metrics) Violations() int64 {
	return m.violations
}

// Snapshot is the immutable metrics report emitted at run end.
type Snapshot struct {
	RunID            string           `json:"run_id"`
	StartedAt        time.Time        `json:"started_at"`
	FinishedAt       time.Time        `json:"finished_at"`
	DurationMS       int64            `json:"duration_ms"`
	PrimitiveCalls   map[string]int64 `json:"primitive_calls"`
	TotalViolations  int64            `json:"total_violations"`
	ViolationsByType map[string]int64 `json:"violations_by_type"`
	ChecksPassed     int64            `json:"contract_checks_passed"`
	Outcome          string           `json:"outcome"`
}

// Run outcome labels.
const (
	OutcomeClean      = "clean"
	OutcomeViolations = "violations detected"
)

// Snapshot freezes the accumulated counters into a report.
func (m *Metrics) Snapshot(finishedAt time.Time) Snapshot {
	calls := make(map[string]int64, len(m.primitiveCalls))
	for k, v := range m.primitiveCalls {
		calls[k] = v
	}
	byType := make(map[string]int64, len(m.byType))
	for k, v := range m.byType {
		byType[k] = v
	}

	outcome := OutcomeClean
	if m.violations > 0 {
		outcome = OutcomeViolations
	}

	return Snapshot{
		RunID:            m.runID,
		StartedAt:        m.startedAt,
		FinishedAt:       finishedAt,
		DurationMS:       finishedAt.Sub(m.startedAt).Milliseconds(),
		PrimitiveCalls:   calls,
		TotalViolations:  m.violations,
		ViolationsByType: byType,
		ChecksPassed:     m.checksPassed,
		Outcome:          outcome,
	}
}
