package plan

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/veraxhq/verax/internal/ir"
)

// Bindings is the named-check binding table: primitive name to the list of
// check identifiers evaluated after each invocation of that primitive.
//
// The table comes from untrusted external configuration, so consumers must
// treat unrecognized check identifiers as passing, never as errors.
type Bindings map[string][]string

// LoadBindings reads an invariant binding document from disk.
// Format is chosen by extension like LoadFile.
func LoadBindings(path string) (Bindings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read bindings: %w", err)
	}

	var doc ir.Value
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		var raw any
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("parse bindings: %w", err)
		}
		doc, err = ir.FromAny(raw)
		if err != nil {
			return nil, fmt.Errorf("parse bindings: %w", err)
		}
	default:
		doc, err = ir.Unmarshal(data)
		if err != nil {
			return nil, fmt.Errorf("parse bindings: %w", err)
		}
	}
	return ParseBindings(doc)
}

// ParseBindings extracts the binding table from a parsed document.
// The table conventionally nests under contracts.primitiveBindings; a
// top-level primitiveBindings field or the bare table itself also work.
func ParseBindings(doc ir.Value) (Bindings, error) {
	obj, ok := doc.(ir.Object)
	if !ok {
		return nil, fmt.Errorf("binding document must be an object, got %T", doc)
	}

	table := obj
	if contracts, ok := obj["contracts"].(ir.Object); ok {
		if pb, ok := contracts["primitiveBindings"].(ir.Object); ok {
			table = pb
		}
	} else if pb, ok := obj["primitiveBindings"].(ir.Object); ok {
		table = pb
	}

	bindings := make(Bindings, len(table))
	for primitive, v := range table {
		arr, ok := v.(ir.Array)
		if !ok {
			return nil, fmt.Errorf("bindings for %q must be a list, got %T", primitive, v)
		}
		checks := make([]string, 0, len(arr))
		for i, elem := range arr {
			s, ok := elem.(ir.String)
			if !ok {
				return nil, fmt.Errorf("bindings for %q: element %d must be a string, got %T", primitive, i, elem)
			}
			checks = append(checks, string(s))
		}
		bindings[primitive] = checks
	}
	return bindings, nil
}
