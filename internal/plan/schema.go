package plan

import (
	_ "embed"
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cuejson "cuelang.org/go/encoding/json"
)

//go:embed schema.cue
var schemaCUE string

// ValidateDocument checks raw JSON plan-document bytes against the embedded
// CUE schema. Returns nil when the document conforms.
//
// This runs BEFORE the engine sees the plan: schema validation is a
// collaborator at the loading boundary, and the interpreter itself assumes
// a well-formed step list. YAML documents are normalized to JSON by the
// caller before validation.
func ValidateDocument(raw []byte) error {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}

	expr, err := cuejson.Extract("plan.json", raw)
	if err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	data := ctx.BuildExpr(expr)
	if err := data.Err(); err != nil {
		return fmt.Errorf("build document: %w", err)
	}

	docSchema := schema.LookupPath(cue.ParsePath("#Document"))
	if err := docSchema.Err(); err != nil {
		return fmt.Errorf("schema missing #Document: %w", err)
	}

	unified := docSchema.Unify(data)
	if err := unified.Err(); err != nil {
		return fmt.Errorf("plan document invalid: %w", err)
	}
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("plan document invalid: %w", err)
	}
	return nil
}

// ValidatePlan validates the plan's raw document bytes when present.
// Plans built programmatically (no raw bytes) are trusted as-is.
func ValidatePlan(p *Plan) error {
	if len(p.Raw) == 0 {
		return nil
	}
	normalized, err := p.MarshalJSON()
	if err != nil {
		return fmt.Errorf("normalize plan: %w", err)
	}
	return ValidateDocument(normalized)
}
