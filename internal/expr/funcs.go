package expr

import (
	"fmt"
	"math"

	"github.com/veraxhq/verax/internal/ir"
)

// BaseFuncs returns the fixed numeric/utility function set available to
// every expression. The engine extends this map per run with its own
// timestamp and unique-id helpers; the base set never changes between runs,
// so expressions using only these functions are fully deterministic.
func BaseFuncs() map[string]Func {
	return map[string]Func{
		"abs":   numericFunc1(math.Abs),
		"floor": numericFunc1(math.Floor),
		"ceil":  numericFunc1(math.Ceil),
		"round": numericFunc1(math.Round),
		"min":   foldFunc(math.Min),
		"max":   foldFunc(math.Max),
		"len":   lenFunc,
	}
}

// numericFunc1 wraps a float64 function as a single-argument Func.
func numericFunc1(fn func(float64) float64) Func {
	return func(args []ir.Value) (ir.Value, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("expects 1 argument, got %d", len(args))
		}
		n, ok := args[0].(ir.Number)
		if !ok {
			return nil, fmt.Errorf("expects a number, got %T", args[0])
		}
		return ir.Number(fn(float64(n))), nil
	}
}

// foldFunc wraps a binary float64 function as a variadic reduction over
// two or more numbers.
func foldFunc(fn func(float64, float64) float64) Func {
	return func(args []ir.Value) (ir.Value, error) {
		if len(args) < 2 {
			return nil, fmt.Errorf("expects at least 2 arguments, got %d", len(args))
		}
		first, ok := args[0].(ir.Number)
		if !ok {
			return nil, fmt.Errorf("argument 1 must be a number, got %T", args[0])
		}
		acc := float64(first)
		for i, arg := range args[1:] {
			n, ok := arg.(ir.Number)
			if !ok {
				return nil, fmt.Errorf("argument %d must be a number, got %T", i+2, arg)
			}
			acc = fn(acc, float64(n))
		}
		return ir.Number(acc), nil
	}
}

// lenFunc returns the length of a string, array, or object.
func lenFunc(args []ir.Value) (ir.Value, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("expects 1 argument, got %d", len(args))
	}
	switch v := args[0].(type) {
	case ir.String:
		return ir.Number(len(v)), nil
	case ir.Array:
		return ir.Number(len(v)), nil
	case ir.Object:
		return ir.Number(len(v)), nil
	default:
		return nil, fmt.Errorf("expects string, array, or object, got %T", args[0])
	}
}
