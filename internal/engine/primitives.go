package engine

import (
	"math"
	"strconv"
	"strings"

	"github.com/veraxhq/verax/internal/expr"
	"github.com/veraxhq/verax/internal/ir"
)

// evaluateCondition evaluates a boolean expression against the combined
// input. Returns {result: bool}; any evaluation failure is caught and
// reported as {result: false, error: msg}, never propagated.
func evaluateCondition(input ir.Object, ectx *Context) Result {
	src, ok := input["condition"].(ir.String)
	if !ok || src == "" {
		return Errored(ir.Object{"result": ir.Bool(false)}, "missing condition expression")
	}

	scope := expr.Scope{Record: input, Funcs: ectx.Funcs()}
	v, err := expr.EvalString(string(src), scope)
	if err != nil {
		return Errored(ir.Object{"result": ir.Bool(false)}, "condition evaluation failed: %v", err)
	}
	return OK(ir.Object{"result": ir.Bool(ir.Truthy(v))})
}

// evaluateExpression evaluates a value-producing expression against the
// combined input. Returns {value}; a NaN numeric result is tagged as a
// synthetic violation rather than silently passed through.
func evaluateExpression(input ir.Object, ectx *Context) Result {
	src, ok := input["expression"].(ir.String)
	if !ok || src == "" {
		return Errored(nil, "missing expression")
	}

	scope := expr.Scope{Record: input, Funcs: ectx.Funcs()}
	v, err := expr.EvalString(string(src), scope)
	if err != nil {
		return Errored(nil, "expression evaluation failed: %v", err)
	}

	if n, isNum := v.(ir.Number); isNum && n.IsNaN() {
		return Flagged(ir.Object{"value": n}, "NaN result: expression %q produced NaN", string(src))
	}
	return OK(ir.Object{"value": v})
}

// updateState writes a value into the record at a dotted path, creating
// intermediate mapping nodes as needed.
//
// Failure modes mutate NOTHING: an invalid path reports success:false, a
// null/absent value is tagged as a synthetic violation.
func updateState(input ir.Object, ectx *Context) Result {
	pathStr, ok := input["path"].(ir.String)
	if !ok || pathStr == "" {
		return Result{
			Kind: ResultErrored,
			Fields: ir.Object{
				"success": ir.Bool(false),
				"message": ir.String("Invalid path: path must be a non-empty string"),
			},
			Err: "Invalid path: path must be a non-empty string",
		}
	}

	value, present := input["value"]
	if !present || value == nil {
		return Flagged(ir.Object{"success": ir.Bool(false)},
			"Null value: refusing to write null to %s", string(pathStr))
	}
	if _, isNull := value.(ir.Null); isNull {
		return Flagged(ir.Object{"success": ir.Bool(false)},
			"Null value: refusing to write null to %s", string(pathStr))
	}

	path, err := ir.ParsePath(string(pathStr))
	if err != nil {
		return Result{
			Kind: ResultErrored,
			Fields: ir.Object{
				"success": ir.Bool(false),
				"message": ir.String("Invalid path: " + err.Error()),
			},
			Err: "Invalid path: " + err.Error(),
		}
	}

	if err := path.Set(ectx.Record, value); err != nil {
		return Errored(ir.Object{"success": ir.Bool(false)}, "state update failed: %v", err)
	}

	return OK(ir.Object{
		"success":     ir.Bool(true),
		"updatedPath": pathStr,
		"newValue":    value,
	})
}

// calculateScore returns the arithmetic mean of a numeric sequence as
// {normalized_score}. An empty sequence - or the explicit force_nan test
// flag - yields NaN tagged as a synthetic violation rather than a panic.
func calculateScore(input ir.Object, ectx *Context) Result {
	if ir.Truthy(input["force_nan"]) {
		return Flagged(ir.Object{"normalized_score": ir.Number(math.NaN())},
			"NaN score: forced not-a-number result")
	}

	scores, ok := input["scores"].(ir.Array)
	if !ok {
		return Errored(nil, "scores must be a sequence of numbers")
	}
	if len(scores) == 0 {
		return Flagged(ir.Object{"normalized_score": ir.Number(math.NaN())},
			"NaN score: cannot average an empty sequence")
	}

	var sum float64
	for i, v := range scores {
		n, isNum := v.(ir.Number)
		if !isNum {
			return Errored(nil, "scores[%d] is not a number", i)
		}
		sum += float64(n)
	}
	return OK(ir.Object{"normalized_score": ir.Number(sum / float64(len(scores)))})
}

// applyRule executes one declarative rule: an optional guard condition and
// an ordered set of field assignments.
//
// Disabled rules and unmet conditions skip without touching state. A
// failing assignment aborts the remaining assignments and reports the
// failing field; assignments already applied in the same invocation are
// NOT rolled back - execution is forward-only.
func applyRule(input ir.Object, ectx *Context) Result {
	ruleID := ir.String("")
	if id, ok := input["ruleId"].(ir.String); ok {
		ruleID = id
	}

	if enabled, present := input["enabled"]; present && !ir.Truthy(enabled) {
		return Skipped(ir.Object{
			"skipped": ir.Bool(true),
			"reason":  ir.String("Rule disabled"),
			"ruleId":  ruleID,
		})
	}

	funcs := ectx.Funcs()

	// Guard condition evaluates against the CURRENT record, not the
	// combined input: rules read live state.
	if cond, ok := input["condition"].(ir.String); ok && !trivialCondition(string(cond)) {
		scope := expr.Scope{Record: ectx.Record, Funcs: funcs}
		v, err := expr.EvalString(string(cond), scope)
		if err != nil {
			return Errored(ir.Object{"ruleId": ruleID},
				"rule condition failed: %v", err)
		}
		if !ir.Truthy(v) {
			return Skipped(ir.Object{
				"skipped": ir.Bool(true),
				"reason":  ir.String("Condition not met"),
				"ruleId":  ruleID,
			})
		}
	}

	assignments, ok := input["assignments"].(ir.Object)
	if !ok || len(assignments) == 0 {
		return OK(ir.Object{"success": ir.Bool(true), "ruleId": ruleID, "applied": ir.Number(0)})
	}

	// Assignment order must be deterministic; objects carry no order, so
	// field paths apply in canonical key order.
	applied := 0
	for _, fieldPath := range assignments.SortedKeys() {
		value, err := resolveAssignment(assignments[fieldPath], ectx.Record, funcs)
		if err != nil {
			return Errored(ir.Object{
				"ruleId":      ruleID,
				"failedField": ir.String(fieldPath),
				"applied":     ir.Number(applied),
			}, "assignment for %q failed: %v", fieldPath, err)
		}

		path, err := ir.ParsePath(fieldPath)
		if err != nil {
			return Errored(ir.Object{
				"ruleId":      ruleID,
				"failedField": ir.String(fieldPath),
				"applied":     ir.Number(applied),
			}, "assignment for %q failed: %v", fieldPath, err)
		}
		if err := path.Set(ectx.Record, value); err != nil {
			return Errored(ir.Object{
				"ruleId":      ruleID,
				"failedField": ir.String(fieldPath),
				"applied":     ir.Number(applied),
			}, "assignment for %q failed: %v", fieldPath, err)
		}
		applied++
	}

	return OK(ir.Object{
		"success": ir.Bool(true),
		"ruleId":  ruleID,
		"applied": ir.Number(applied),
	})
}

// trivialCondition reports whether a guard condition always passes and
// needs no evaluation.
func trivialCondition(cond string) bool {
	trimmed := strings.TrimSpace(cond)
	return trimmed == "" || trimmed == "true"
}

// resolveAssignment converts one assignment expression into the value to
// write:
//   - "{{expr}}" templates evaluate against the record with helper
//     functions (including now/uid)
//   - the literal strings "true"/"false" convert to booleans
//   - numeric-looking strings convert to numbers
//   - anything else is used verbatim
func resolveAssignment(raw ir.Value, record ir.Object, funcs map[string]expr.Func) (ir.Value, error) {
	s, isString := raw.(ir.String)
	if !isString {
		return raw, nil
	}
	text := string(s)

	if inner, ok := templateBody(text); ok {
		scope := expr.Scope{Record: record, Funcs: funcs}
		return expr.EvalString(inner, scope)
	}

	switch text {
	case "true":
		return ir.Bool(true), nil
	case "false":
		return ir.Bool(false), nil
	}

	if f, err := strconv.ParseFloat(text, 64); err == nil {
		return ir.Number(f), nil
	}
	return s, nil
}

// templateBody extracts the inner expression of a "{{...}}" template.
func templateBody(s string) (string, bool) {
	trimmed := strings.TrimSpace(s)
	if strings.HasPrefix(trimmed, "{{") && strings.HasSuffix(trimmed, "}}") && len(trimmed) > 4 {
		return strings.TrimSpace(trimmed[2 : len(trimmed)-2]), true
	}
	return "", false
}
