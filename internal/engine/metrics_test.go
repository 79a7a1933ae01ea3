package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMetricsSnapshotClean(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	m := NewMetrics("run-1", start)

	m.RecordCall("update_state")
	m.RecordCall("update_state")
	m.RecordCall("apply_rule")
	m.RecordCheckPass(3)

	snap := m.Snapshot(start.Add(250 * time.Millisecond))

	assert.Equal(t, "run-1", snap.RunID)
	assert.Equal(t, int64(250), snap.DurationMS)
	assert.Equal(t, int64(2), snap.PrimitiveCalls["update_state"])
	assert.Equal(t, int64(1), snap.PrimitiveCalls["apply_rule"])
	assert.Equal(t, int64(3), snap.ChecksPassed)
	assert.Zero(t, snap.TotalViolations)
	assert.Equal(t, OutcomeClean, snap.Outcome)
}

func TestMetricsGroupsViolationsByTypeLabel(t *testing.T) {
	m := NewMetrics("run-2", time.Now())

	m.RecordViolation(Violation{Message: "NaN result: normalized_score is not a number"})
	m.RecordViolation(Violation{Message: "NaN result: expression produced NaN"})
	m.RecordViolation(Violation{Message: "Empty output: primitive produced no output"})

	assert.Equal(t, int64(3), m.Violations())

	snap := m.Snapshot(time.Now())
	assert.Equal(t, int64(3), snap.TotalViolations)
	assert.Equal(t, int64(2), snap.ViolationsByType["NaN result"])
	assert.Equal(t, int64(1), snap.ViolationsByType["Empty output"])
	assert.Equal(t, OutcomeViolations, snap.Outcome)
}

func TestMetricsSnapshotIsDetachedCopy(t *testing.T) {
	m := NewMetrics("run-3", time.Now())
	m.RecordCall("apply_rule")

	snap := m.Snapshot(time.Now())
	m.RecordCall("apply_rule")

	assert.Equal(t, int64(1), snap.PrimitiveCalls["apply_rule"])
}
