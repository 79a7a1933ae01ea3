package plan

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/veraxhq/verax/internal/ir"
)

// Plan is an ordered sequence of steps defining one execution.
// Immutable for the duration of a run: the engine consumes it read-only.
type Plan struct {
	Name    string
	Version string
	Steps   []Step

	// Raw holds the document bytes the plan was loaded from, used to
	// compute the plan hash for store versioning. Nil for plans built
	// programmatically in tests.
	Raw []byte
}

// Step is one declarative unit of work: which primitive to invoke, which
// record fields feed it, where its outputs land, and its static parameters.
// Steps are never mutated after construction.
type Step struct {
	ID           string
	Primitive    string
	InputFields  []string
	OutputFields []string
	Params       ir.Object
}

// Hash returns the content hash of the raw plan document.
// Empty for programmatic plans with no raw bytes.
func (p *Plan) Hash() string {
	if len(p.Raw) == 0 {
		return ""
	}
	return ir.PlanHash(p.Raw)
}

// LoadFile reads a plan document from disk. The format is chosen by file
// extension: .yaml/.yml parse as YAML, everything else as JSON.
func LoadFile(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plan: %w", err)
	}
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		return ParseYAML(data)
	default:
		return ParseJSON(data)
	}
}

// ParseJSON parses a JSON plan document.
func ParseJSON(data []byte) (*Plan, error) {
	doc, err := ir.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("parse plan: %w", err)
	}
	p, err := fromDocument(doc)
	if err != nil {
		return nil, err
	}
	p.Raw = data
	return p, nil
}

// ParseYAML parses a YAML plan document by decoding to plain Go values
// first, then converting through the same ir pipeline as JSON.
func ParseYAML(data []byte) (*Plan, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse plan: %w", err)
	}
	doc, err := ir.FromAny(raw)
	if err != nil {
		return nil, fmt.Errorf("parse plan: %w", err)
	}
	p, err := fromDocument(doc)
	if err != nil {
		return nil, err
	}
	p.Raw = data
	return p, nil
}

// fromDocument builds a Plan from a parsed document. The step list lives
// in the ordered "transformation_pipeline" field; as a fallback the
// document itself may be that ordered sequence.
func fromDocument(doc ir.Value) (*Plan, error) {
	p := &Plan{}

	var steps ir.Array
	switch d := doc.(type) {
	case ir.Object:
		pipeline, ok := d["transformation_pipeline"]
		if !ok {
			return nil, fmt.Errorf("plan document has no transformation_pipeline field")
		}
		arr, ok := pipeline.(ir.Array)
		if !ok {
			return nil, fmt.Errorf("transformation_pipeline must be a sequence, got %T", pipeline)
		}
		steps = arr
		if name, ok := d["name"].(ir.String); ok {
			p.Name = string(name)
		}
		if version, ok := d["version"].(ir.String); ok {
			p.Version = string(version)
		}
	case ir.Array:
		// Fallback: the document itself is the step sequence
		steps = d
	default:
		return nil, fmt.Errorf("plan document must be an object or sequence, got %T", doc)
	}

	p.Steps = make([]Step, 0, len(steps))
	for i, raw := range steps {
		step, err := parseStep(raw)
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
		p.Steps = append(p.Steps, step)
	}
	return p, nil
}

func parseStep(v ir.Value) (Step, error) {
	obj, ok := v.(ir.Object)
	if !ok {
		return Step{}, fmt.Errorf("step must be an object, got %T", v)
	}

	var s Step
	if id, ok := obj["id"].(ir.String); ok {
		s.ID = string(id)
	}
	prim, ok := obj["primitive"].(ir.String)
	if !ok || prim == "" {
		return Step{}, fmt.Errorf("step %q: missing primitive name", s.ID)
	}
	s.Primitive = string(prim)

	var err error
	if s.InputFields, err = parseFieldList(obj["input_fields"]); err != nil {
		return Step{}, fmt.Errorf("step %q: input_fields: %w", s.ID, err)
	}
	if s.OutputFields, err = parseFieldList(obj["output_fields"]); err != nil {
		return Step{}, fmt.Errorf("step %q: output_fields: %w", s.ID, err)
	}

	if params, ok := obj["params"]; ok {
		paramsObj, ok := params.(ir.Object)
		if !ok {
			return Step{}, fmt.Errorf("step %q: params must be an object, got %T", s.ID, params)
		}
		s.Params = paramsObj
	} else {
		s.Params = ir.Object{}
	}
	return s, nil
}

func parseFieldList(v ir.Value) ([]string, error) {
	if v == nil {
		return nil, nil
	}
	arr, ok := v.(ir.Array)
	if !ok {
		return nil, fmt.Errorf("must be a sequence of key-path strings, got %T", v)
	}
	fields := make([]string, 0, len(arr))
	for i, elem := range arr {
		s, ok := elem.(ir.String)
		if !ok {
			return nil, fmt.Errorf("element %d must be a string, got %T", i, elem)
		}
		fields = append(fields, string(s))
	}
	return fields, nil
}

// LoadRecord reads an initial record document (JSON object) from disk.
// The engine deep-copies it before mutation, so callers may reuse it.
func LoadRecord(path string) (ir.Object, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read record: %w", err)
	}
	obj, err := ir.UnmarshalObject(data)
	if err != nil {
		return nil, fmt.Errorf("parse record: %w", err)
	}
	return obj, nil
}

// MarshalJSON renders the plan back to a normalized JSON document.
// Used by the store to persist plan versions independent of source format.
func (p *Plan) MarshalJSON() ([]byte, error) {
	steps := make([]any, len(p.Steps))
	for i, s := range p.Steps {
		step := map[string]any{
			"id":        s.ID,
			"primitive": s.Primitive,
		}
		if len(s.InputFields) > 0 {
			step["input_fields"] = s.InputFields
		}
		if len(s.OutputFields) > 0 {
			step["output_fields"] = s.OutputFields
		}
		if len(s.Params) > 0 {
			step["params"] = ir.ToAny(s.Params)
		}
		steps[i] = step
	}
	doc := map[string]any{"transformation_pipeline": steps}
	if p.Name != "" {
		doc["name"] = p.Name
	}
	if p.Version != "" {
		doc["version"] = p.Version
	}
	return json.Marshal(doc)
}
