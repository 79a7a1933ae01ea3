package plan

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veraxhq/verax/internal/ir"
)

const samplePlanJSON = `{
	"name": "underwriting",
	"version": "1.2.0",
	"transformation_pipeline": [
		{
			"id": "score",
			"primitive": "calculate_score",
			"input_fields": ["applicant.scores"],
			"output_fields": ["result.normalized_score"],
			"params": {"weight": 0.5}
		},
		{
			"id": "flag",
			"primitive": "update_state",
			"params": {"path": "result.flagged", "value": true}
		}
	]
}`

func TestParseJSON(t *testing.T) {
	p, err := ParseJSON([]byte(samplePlanJSON))
	require.NoError(t, err)

	assert.Equal(t, "underwriting", p.Name)
	assert.Equal(t, "1.2.0", p.Version)
	require.Len(t, p.Steps, 2)

	first := p.Steps[0]
	assert.Equal(t, "score", first.ID)
	assert.Equal(t, "calculate_score", first.Primitive)
	assert.Equal(t, []string{"applicant.scores"}, first.InputFields)
	assert.Equal(t, []string{"result.normalized_score"}, first.OutputFields)
	assert.Equal(t, ir.Number(0.5), first.Params["weight"])

	assert.Empty(t, p.Steps[1].InputFields)
	assert.NotEmpty(t, p.Hash())
}

func TestParseJSON_BareArrayFallback(t *testing.T) {
	p, err := ParseJSON([]byte(`[{"primitive": "evaluate_condition", "params": {"condition": "true"}}]`))
	require.NoError(t, err)
	require.Len(t, p.Steps, 1)
	assert.Equal(t, "evaluate_condition", p.Steps[0].Primitive)
}

func TestParseJSON_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"no pipeline", `{"name": "x"}`},
		{"pipeline not array", `{"transformation_pipeline": 5}`},
		{"step not object", `{"transformation_pipeline": [5]}`},
		{"missing primitive", `{"transformation_pipeline": [{"id": "a"}]}`},
		{"bad input fields", `{"transformation_pipeline": [{"primitive": "p", "input_fields": [1]}]}`},
		{"bad params", `{"transformation_pipeline": [{"primitive": "p", "params": []}]}`},
		{"scalar document", `"not a plan"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseJSON([]byte(tt.doc))
			assert.Error(t, err)
		})
	}
}

func TestParseYAML(t *testing.T) {
	doc := `
name: underwriting
transformation_pipeline:
  - id: score
    primitive: calculate_score
    input_fields:
      - applicant.scores
    params:
      threshold: 0.7
`
	p, err := ParseYAML([]byte(doc))
	require.NoError(t, err)
	require.Len(t, p.Steps, 1)
	assert.Equal(t, "calculate_score", p.Steps[0].Primitive)
	assert.Equal(t, ir.Number(0.7), p.Steps[0].Params["threshold"])
}

func TestLoadFile_ByExtension(t *testing.T) {
	dir := t.TempDir()

	jsonPath := filepath.Join(dir, "plan.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(samplePlanJSON), 0o644))

	yamlPath := filepath.Join(dir, "plan.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte("transformation_pipeline:\n  - primitive: apply_rule\n"), 0o644))

	p, err := LoadFile(jsonPath)
	require.NoError(t, err)
	assert.Len(t, p.Steps, 2)

	p, err = LoadFile(yamlPath)
	require.NoError(t, err)
	assert.Len(t, p.Steps, 1)

	_, err = LoadFile(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}

func TestLoadRecord(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "record.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"applicant": {"income": 52000}}`), 0o644))

	rec, err := LoadRecord(path)
	require.NoError(t, err)
	v, ok := rec["applicant"].(ir.Object)
	require.True(t, ok)
	assert.Equal(t, ir.Number(52000), v["income"])
}

func TestParseBindings(t *testing.T) {
	doc := ir.Object{
		"contracts": ir.Object{
			"primitiveBindings": ir.Object{
				"calculate_score": ir.Array{ir.String("score_in_range"), ir.String("has_result")},
				"update_state":    ir.Array{ir.String("no_failure")},
			},
		},
	}

	b, err := ParseBindings(doc)
	require.NoError(t, err)
	assert.Equal(t, []string{"score_in_range", "has_result"}, b["calculate_score"])
	assert.Equal(t, []string{"no_failure"}, b["update_state"])
}

func TestParseBindings_TopLevelFallbacks(t *testing.T) {
	b, err := ParseBindings(ir.Object{
		"primitiveBindings": ir.Object{"apply_rule": ir.Array{ir.String("no_failure")}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"no_failure"}, b["apply_rule"])

	b, err = ParseBindings(ir.Object{
		"apply_rule": ir.Array{ir.String("no_failure")},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"no_failure"}, b["apply_rule"])
}

func TestParseBindings_Errors(t *testing.T) {
	_, err := ParseBindings(ir.Array{})
	assert.Error(t, err)

	_, err = ParseBindings(ir.Object{"p": ir.Number(1)})
	assert.Error(t, err)

	_, err = ParseBindings(ir.Object{"p": ir.Array{ir.Number(1)}})
	assert.Error(t, err)
}

func TestValidateDocument(t *testing.T) {
	assert.NoError(t, ValidateDocument([]byte(samplePlanJSON)))
	assert.NoError(t, ValidateDocument([]byte(`[{"primitive": "update_state"}]`)))

	assert.Error(t, ValidateDocument([]byte(`{"transformation_pipeline": [{"id": 5}]}`)))
	assert.Error(t, ValidateDocument([]byte(`{"transformation_pipeline": "nope"}`)))
	assert.Error(t, ValidateDocument([]byte(`not json`)))
}

func TestValidatePlan_NormalizesYAML(t *testing.T) {
	p, err := ParseYAML([]byte("transformation_pipeline:\n  - primitive: apply_rule\n"))
	require.NoError(t, err)
	assert.NoError(t, ValidatePlan(p))

	// Programmatic plans with no raw bytes are trusted
	assert.NoError(t, ValidatePlan(&Plan{Steps: []Step{{Primitive: "x"}}}))
}
