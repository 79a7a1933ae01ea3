package engine

import (
	"fmt"
	"math"

	"github.com/veraxhq/verax/internal/ir"
)

// ResultKind classifies a primitive's output so the interpreter's
// branching is exhaustive rather than probing an untyped map for magic
// keys.
type ResultKind int

const (
	// ResultOK is a successful invocation with domain result fields.
	ResultOK ResultKind = iota
	// ResultSkipped means the primitive deliberately did nothing
	// (disabled rule, unmet condition). Never a violation by itself.
	ResultSkipped
	// ResultErrored is an expected failure surfaced as data: bad
	// expression, invalid mutation target. Converted to a violation by
	// the structural error check.
	ResultErrored
	// ResultFlagged carries a synthetic violation marker: the output is
	// structurally suspect (NaN score, rejected value) and must be
	// recorded as a violation even though the primitive did not fail.
	ResultFlagged
)

// String returns the kind label used in ledger payloads.
func (k ResultKind) String() string {
	switch k {
	case ResultOK:
		return "ok"
	case ResultSkipped:
		return "skipped"
	case ResultErrored:
		return "error"
	case ResultFlagged:
		return "violation"
	default:
		return "unknown"
	}
}

// Result is the tagged output of one primitive invocation.
//
// Fields always carries the full output mapping (including the error or
// skip markers) so output-field aliasing and ledger payloads see exactly
// what a caller probing the raw output would see; Kind is the authoritative
// classification.
type Result struct {
	Kind   ResultKind
	Fields ir.Object
	// Err holds the failure message for ResultErrored, mirrored into
	// Fields["error"].
	Err string
	// FlagMsg holds the synthetic-violation message for ResultFlagged.
	FlagMsg string
}

// OK builds a successful result.
func OK(fields ir.Object) Result {
	return Result{Kind: ResultOK, Fields: fields}
}

// Skipped builds a deliberate no-op result.
func Skipped(fields ir.Object) Result {
	return Result{Kind: ResultSkipped, Fields: fields}
}

// Errored builds an expected-failure result. The message is mirrored into
// the output fields under "error" so structural checks and ledger payloads
// observe it uniformly.
func Errored(fields ir.Object, format string, args ...any) Result {
	msg := fmt.Sprintf(format, args...)
	if fields == nil {
		fields = ir.Object{}
	}
	fields["error"] = ir.String(msg)
	return Result{Kind: ResultErrored, Fields: fields, Err: msg}
}

// Flagged builds a synthetic-violation result.
func Flagged(fields ir.Object, format string, args ...any) Result {
	return Result{Kind: ResultFlagged, Fields: fields, FlagMsg: fmt.Sprintf(format, args...)}
}

// sanitized returns the result fields with non-hashable numbers (NaN,
// infinities) replaced by marker strings. Ledger payloads must canonicalize
// cleanly even when an output deliberately carries NaN to signal a
// violation.
func (r Result) sanitized() ir.Object {
	if r.Fields == nil {
		return ir.Object{}
	}
	return sanitizeObject(r.Fields)
}

func sanitizeObject(obj ir.Object) ir.Object {
	out := make(ir.Object, len(obj))
	for k, v := range obj {
		out[k] = sanitizeValue(v)
	}
	return out
}

func sanitizeValue(v ir.Value) ir.Value {
	switch val := v.(type) {
	case ir.Number:
		f := float64(val)
		if math.IsNaN(f) {
			return ir.String("NaN")
		}
		if math.IsInf(f, 1) {
			return ir.String("Infinity")
		}
		if math.IsInf(f, -1) {
			return ir.String("-Infinity")
		}
		return val
	case ir.Array:
		out := make(ir.Array, len(val))
		for i, elem := range val {
			out[i] = sanitizeValue(elem)
		}
		return out
	case ir.Object:
		return sanitizeObject(val)
	default:
		return v
	}
}
