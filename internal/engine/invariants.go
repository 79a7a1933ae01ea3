package engine

import (
	"fmt"
	"time"

	"github.com/veraxhq/verax/internal/ir"
	"github.com/veraxhq/verax/internal/plan"
)

// Violation is one recorded instance of an invariant failing: structural,
// bound, or a primitive-reported error. Immutable once created; appended
// to both the audit trail and the ledger.
type Violation struct {
	Tick         int64     `json:"tick"`
	Primitive    string    `json:"primitive"`
	Type         string    `json:"type"`
	Message      string    `json:"message"`
	InputSample  ir.Object `json:"inputSample,omitempty"`
	OutputSample ir.Object `json:"outputSample,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// ViolationType is the single violation type label; the grouping key for
// metrics is derived from the message text instead (see TypeLabel).
const ViolationType = "InvariantViolation"

// TypeLabel returns the normalized violation-type label: the text before
// the first colon in the message, or the whole message if it has none.
func (v Violation) TypeLabel() string {
	for i := 0; i < len(v.Message); i++ {
		if v.Message[i] == ':' {
			return v.Message[:i]
		}
	}
	return v.Message
}

// structuralChecks run unconditionally against every primitive's result,
// regardless of which primitive ran or what checks are bound to it.
// Each returned message becomes one violation.
func structuralChecks(r Result) []string {
	var msgs []string

	// Not-a-number check on the conventional score field
	if n, ok := r.Fields["normalized_score"].(ir.Number); ok && n.IsNaN() {
		msgs = append(msgs, "NaN result: normalized_score is not a number")
	}

	// Empty-output check
	if len(r.Fields) == 0 {
		msgs = append(msgs, "Empty output: primitive produced no output")
	}

	// Error-field check
	if r.Kind == ResultErrored {
		msgs = append(msgs, fmt.Sprintf("Primitive error: %q", r.Err))
	} else if errVal, ok := r.Fields["error"].(ir.String); ok {
		msgs = append(msgs, fmt.Sprintf("Primitive error: %q", string(errVal)))
	}

	return msgs
}

// boundCheck is one named predicate evaluated against a step's result.
// Returns true when the check passes.
type boundCheck func(r Result) bool

// boundCheckTable maps check identifiers from the external binding
// document to predicates. The binding table is untrusted configuration:
// identifiers not present here default to passing, never to an error.
var boundCheckTable = map[string]boundCheck{
	// Did the operation avoid reporting failure?
	"no_failure": func(r Result) bool {
		if r.Kind == ResultErrored {
			return false
		}
		if success, ok := r.Fields["success"].(ir.Bool); ok && !bool(success) {
			return false
		}
		return true
	},

	// Is the conventional condition-result field present?
	"has_result": func(r Result) bool {
		_, ok := r.Fields["result"]
		return ok
	},

	// Is the conventional expression-value field present?
	"has_value": func(r Result) bool {
		_, ok := r.Fields["value"]
		return ok
	},

	// Did a mutating primitive actually report a write?
	"state_updated": func(r Result) bool {
		if r.Kind == ResultSkipped {
			return true
		}
		success, ok := r.Fields["success"].(ir.Bool)
		if !ok || !bool(success) {
			return false
		}
		_, hasPath := r.Fields["updatedPath"]
		return hasPath
	},

	// Is the normalized score a real number in [0, 1]?
	"score_in_range": func(r Result) bool {
		n, ok := r.Fields["normalized_score"].(ir.Number)
		if !ok {
			return false
		}
		f := float64(n)
		return !n.IsNaN() && f >= 0 && f <= 1
	},
}

// runBoundChecks evaluates the checks bound to a primitive name.
// Returns the messages of failing checks and the count of passing ones.
func runBoundChecks(bindings plan.Bindings, primitive string, r Result) (failures []string, passed int) {
	for _, name := range bindings[primitive] {
		check, known := boundCheckTable[name]
		if !known {
			// Unrecognized identifiers come from untrusted external
			// configuration and must pass, not error.
			passed++
			continue
		}
		if check(r) {
			passed++
		} else {
			failures = append(failures, fmt.Sprintf("Contract failed: check %q failed for %s", name, primitive))
		}
	}
	return failures, passed
}
