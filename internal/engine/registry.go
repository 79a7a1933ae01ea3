package engine

import (
	"time"

	"github.com/veraxhq/verax/internal/expr"
	"github.com/veraxhq/verax/internal/ir"
)

// Primitive is a named operation invoked by the interpreter.
//
// Contract: the combined input is the union of the step's resolved input
// fields and its static parameters (parameters win on key collision). The
// context exposes only the run's mutable record tree and its time/ID
// sources - no other engine internals. Primitives never panic or return a
// Go error for expected failure modes; they signal failure via the result
// kind.
type Primitive func(input ir.Object, ectx *Context) Result

// Context is the engine context handed to a primitive: the record tree it
// may mutate plus the run's deterministic-in-tests sources. Primitives are
// trusted not to retain the record reference after returning.
type Context struct {
	Record ir.Object
	Time   TimeSource
	IDs    TokenSource
}

// Funcs returns the expression function set for this run: the fixed base
// set plus the timestamp and unique-id helpers backed by the run's sources.
func (c *Context) Funcs() map[string]expr.Func {
	funcs := expr.BaseFuncs()
	funcs["now"] = func(args []ir.Value) (ir.Value, error) {
		return ir.String(c.Time.Now().Format(time.RFC3339)), nil
	}
	funcs["uid"] = func(args []ir.Value) (ir.Value, error) {
		return ir.String(c.IDs.NewID()), nil
	}
	return funcs
}

// Registry is the fixed mapping from operation name to primitive.
// Populated once before a run; the interpreter only reads it.
type Registry struct {
	primitives map[string]Primitive
	names      []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{primitives: make(map[string]Primitive)}
}

// Register binds a primitive under a name, replacing any previous binding.
// Registration order is preserved for introspection.
func (r *Registry) Register(name string, p Primitive) {
	if _, exists := r.primitives[name]; !exists {
		r.names = append(r.names, name)
	}
	r.primitives[name] = p
}

// Lookup returns the primitive registered under name.
func (r *Registry) Lookup(name string) (Primitive, bool) {
	p, ok := r.primitives[name]
	return p, ok
}

// Names returns registered primitive names in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// Builtins returns a registry populated with the standard primitive set.
func Builtins() *Registry {
	r := NewRegistry()
	r.Register("evaluate_condition", evaluateCondition)
	r.Register("evaluate_expression", evaluateExpression)
	r.Register("update_state", updateState)
	r.Register("calculate_score", calculateScore)
	r.Register("apply_rule", applyRule)
	return r
}
