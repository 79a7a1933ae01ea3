package expr

import (
	"fmt"
	"math"

	"github.com/veraxhq/verax/internal/ir"
)

// Func is an allow-listed function callable from expressions.
// Implementations must be pure with respect to the record: they may not
// mutate their arguments or reach outside the scope.
type Func func(args []ir.Value) (ir.Value, error)

// Scope is the read-only evaluation environment for one expression.
// Record supplies dotted field references; Funcs supplies the callable set.
type Scope struct {
	Record ir.Object
	Funcs  map[string]Func
}

// Eval evaluates the compiled expression against a scope. All expected
// failure modes (bad operand types, unknown functions, division by zero)
// are returned as errors, never panics.
func (c *Compiled) Eval(scope Scope) (ir.Value, error) {
	v, err := evalNode(c.root, scope)
	if err != nil {
		return nil, fmt.Errorf("eval %q: %w", c.src, err)
	}
	return v, nil
}

// EvalString parses and evaluates in one step. Used for rule text that is
// evaluated exactly once.
func EvalString(src string, scope Scope) (ir.Value, error) {
	compiled, err := Parse(src)
	if err != nil {
		return nil, err
	}
	return compiled.Eval(scope)
}

func evalNode(n node, scope Scope) (ir.Value, error) {
	switch nd := n.(type) {
	case literalNode:
		return nd.value, nil

	case fieldNode:
		v, ok := nd.path.Get(scope.Record)
		if !ok {
			// Missing record fields are absence, not an error
			return ir.Null{}, nil
		}
		return v, nil

	case unaryNode:
		return evalUnary(nd, scope)

	case binaryNode:
		return evalBinary(nd, scope)

	case callNode:
		return evalCall(nd, scope)

	default:
		return nil, fmt.Errorf("unknown AST node %T", n)
	}
}

func evalUnary(n unaryNode, scope Scope) (ir.Value, error) {
	v, err := evalNode(n.operand, scope)
	if err != nil {
		return nil, err
	}
	switch n.op {
	case "-":
		num, ok := v.(ir.Number)
		if !ok {
			return nil, fmt.Errorf("operator '-' requires a number, got %T", v)
		}
		return ir.Number(-float64(num)), nil
	case "!":
		return ir.Bool(!ir.Truthy(v)), nil
	default:
		return nil, fmt.Errorf("unknown unary operator %q", n.op)
	}
}

func evalBinary(n binaryNode, scope Scope) (ir.Value, error) {
	// Short-circuit boolean operators evaluate the right side lazily.
	switch n.op {
	case "&&":
		left, err := evalNode(n.left, scope)
		if err != nil {
			return nil, err
		}
		if !ir.Truthy(left) {
			return ir.Bool(false), nil
		}
		right, err := evalNode(n.right, scope)
		if err != nil {
			return nil, err
		}
		return ir.Bool(ir.Truthy(right)), nil

	case "||":
		left, err := evalNode(n.left, scope)
		if err != nil {
			return nil, err
		}
		if ir.Truthy(left) {
			return ir.Bool(true), nil
		}
		right, err := evalNode(n.right, scope)
		if err != nil {
			return nil, err
		}
		return ir.Bool(ir.Truthy(right)), nil
	}

	left, err := evalNode(n.left, scope)
	if err != nil {
		return nil, err
	}
	right, err := evalNode(n.right, scope)
	if err != nil {
		return nil, err
	}

	switch n.op {
	case "==":
		return ir.Bool(ir.Equal(left, right)), nil
	case "!=":
		return ir.Bool(!ir.Equal(left, right)), nil
	case "<", "<=", ">", ">=":
		return compareOrdered(n.op, left, right)
	case "+":
		return evalAdd(left, right)
	case "-", "*", "/", "%":
		return evalArithmetic(n.op, left, right)
	default:
		return nil, fmt.Errorf("unknown operator %q", n.op)
	}
}

// compareOrdered handles <, <=, >, >= over two numbers or two strings.
func compareOrdered(op string, left, right ir.Value) (ir.Value, error) {
	if ln, ok := left.(ir.Number); ok {
		rn, ok := right.(ir.Number)
		if !ok {
			return nil, fmt.Errorf("operator %q: cannot compare number with %T", op, right)
		}
		return ir.Bool(applyOrdering(op, float64(ln), float64(rn))), nil
	}
	if ls, ok := left.(ir.String); ok {
		rs, ok := right.(ir.String)
		if !ok {
			return nil, fmt.Errorf("operator %q: cannot compare string with %T", op, right)
		}
		switch op {
		case "<":
			return ir.Bool(ls < rs), nil
		case "<=":
			return ir.Bool(ls <= rs), nil
		case ">":
			return ir.Bool(ls > rs), nil
		default:
			return ir.Bool(ls >= rs), nil
		}
	}
	return nil, fmt.Errorf("operator %q: unsupported operand type %T", op, left)
}

func applyOrdering(op string, a, b float64) bool {
	switch op {
	case "<":
		return a < b
	case "<=":
		return a <= b
	case ">":
		return a > b
	default:
		return a >= b
	}
}

// evalAdd adds numbers or concatenates when either operand is a string.
func evalAdd(left, right ir.Value) (ir.Value, error) {
	if ln, ok := left.(ir.Number); ok {
		if rn, ok := right.(ir.Number); ok {
			return ir.Number(float64(ln) + float64(rn)), nil
		}
	}
	ls, lok := left.(ir.String)
	rs, rok := right.(ir.String)
	if lok && rok {
		return ls + rs, nil
	}
	return nil, fmt.Errorf("operator \"+\": unsupported operands %T and %T", left, right)
}

func evalArithmetic(op string, left, right ir.Value) (ir.Value, error) {
	ln, ok := left.(ir.Number)
	if !ok {
		return nil, fmt.Errorf("operator %q requires numbers, got %T", op, left)
	}
	rn, ok := right.(ir.Number)
	if !ok {
		return nil, fmt.Errorf("operator %q requires numbers, got %T", op, right)
	}
	a, b := float64(ln), float64(rn)
	switch op {
	case "-":
		return ir.Number(a - b), nil
	case "*":
		return ir.Number(a * b), nil
	case "/":
		if b == 0 {
			return nil, fmt.Errorf("division by zero")
		}
		return ir.Number(a / b), nil
	case "%":
		if b == 0 {
			return nil, fmt.Errorf("modulo by zero")
		}
		return ir.Number(math.Mod(a, b)), nil
	default:
		return nil, fmt.Errorf("unknown arithmetic operator %q", op)
	}
}

func evalCall(n callNode, scope Scope) (ir.Value, error) {
	fn, ok := scope.Funcs[n.name]
	if !ok {
		return nil, fmt.Errorf("unknown function %q", n.name)
	}
	args := make([]ir.Value, len(n.args))
	for i, argNode := range n.args {
		v, err := evalNode(argNode, scope)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	result, err := fn(args)
	if err != nil {
		return nil, fmt.Errorf("function %q: %w", n.name, err)
	}
	return result, nil
}
