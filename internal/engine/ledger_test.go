package engine

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veraxhq/verax/internal/ir"
)

func testLedger() *Ledger {
	return NewLedger(
		NewFixedTokenSource("entry"),
		FixedTime{Instant: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)},
	)
}

func TestLedgerAppendStampsAndHashes(t *testing.T) {
	l := testLedger()

	entry, err := l.Append(1, "update_state", ir.Object{"tick": ir.Number(1)})
	require.NoError(t, err)

	assert.Equal(t, "entry-1", entry.ID)
	assert.Equal(t, int64(1), entry.Tick)
	assert.Equal(t, "update_state", entry.Operation)
	assert.Len(t, entry.Hash, 64)
	assert.Equal(t, 1, l.Len())
}

func TestLedgerHashDependsOnlyOnPayload(t *testing.T) {
	a := testLedger()
	b := NewLedger(
		NewFixedTokenSource("other"),
		FixedTime{Instant: time.Date(1999, 1, 1, 0, 0, 0, 0, time.UTC)},
	)

	payload := ir.Object{"tick": ir.Number(3), "primitive": ir.String("apply_rule")}
	ea, err := a.Append(3, "apply_rule", payload)
	require.NoError(t, err)
	eb, err := b.Append(3, "apply_rule", ir.Clone(payload).(ir.Object))
	require.NoError(t, err)

	// Different IDs and timestamps, identical payload: identical hash.
	assert.NotEqual(t, ea.ID, eb.ID)
	assert.Equal(t, ea.Hash, eb.Hash)
}

func TestLedgerRejectsNaNPayload(t *testing.T) {
	l := testLedger()

	_, err := l.Append(1, "calculate_score", ir.Object{"score": ir.Number(math.NaN())})
	require.Error(t, err)
	assert.Zero(t, l.Len())
}

func TestLedgerEntriesReturnsCopy(t *testing.T) {
	l := testLedger()
	_, err := l.Append(1, "op", ir.Object{"k": ir.Number(1)})
	require.NoError(t, err)

	entries := l.Entries()
	entries[0].Hash = "tampered"

	assert.NotEqual(t, "tampered", l.Entries()[0].Hash)
}

func TestVerifyEntriesAcceptsUntampered(t *testing.T) {
	l := testLedger()
	for i := int64(1); i <= 5; i++ {
		_, err := l.Append(i, "op", ir.Object{"tick": ir.Number(i)})
		require.NoError(t, err)
	}

	idx, err := VerifyEntries(l.Entries())
	assert.NoError(t, err)
	assert.Equal(t, -1, idx)
}

func TestVerifyEntriesDetectsPayloadTampering(t *testing.T) {
	l := testLedger()
	for i := int64(1); i <= 3; i++ {
		_, err := l.Append(i, "op", ir.Object{"tick": ir.Number(i)})
		require.NoError(t, err)
	}

	entries := l.Entries()
	entries[1].Payload["tick"] = ir.Number(99)

	idx, err := VerifyEntries(entries)
	assert.Error(t, err)
	assert.Equal(t, 1, idx)
	assert.Contains(t, err.Error(), "hash mismatch")
}

func TestVerifyEntriesDetectsHashTampering(t *testing.T) {
	l := testLedger()
	_, err := l.Append(1, "op", ir.Object{"tick": ir.Number(1)})
	require.NoError(t, err)

	entries := l.Entries()
	entries[0].Hash = "deadbeef"

	idx, err := VerifyEntries(entries)
	assert.Error(t, err)
	assert.Equal(t, 0, idx)
}
