package engine

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRuntimeErrorFormatting(t *testing.T) {
	withPrimitive := &RuntimeError{
		Code:      ErrCodeUnhashablePayload,
		Message:   "NaN in payload",
		RunID:     "run-1",
		Tick:      3,
		Primitive: "calculate_score",
	}
	assert.Equal(t,
		"UNHASHABLE_PAYLOAD: NaN in payload (run=run-1, tick=3, primitive=calculate_score)",
		withPrimitive.Error())

	bare := &RuntimeError{Code: ErrCodeBadPlan, Message: "nil plan"}
	assert.Equal(t, "BAD_PLAN: nil plan", bare.Error())
}

func TestIsUnhashableErrorMatchesWrapped(t *testing.T) {
	inner := newUnhashableError("run-1", 1, "op", errors.New("cannot marshal NaN"))
	wrapped := fmt.Errorf("execute: %w", inner)

	assert.True(t, IsUnhashableError(wrapped))
	assert.False(t, IsUnhashableError(errors.New("plain")))
}

func TestExecuteNilPlanIsBadPlanError(t *testing.T) {
	_, err := fixedEngine().Execute(nil, nil)

	var re *RuntimeError
	assert.ErrorAs(t, err, &re)
	assert.Equal(t, ErrCodeBadPlan, re.Code)
}
