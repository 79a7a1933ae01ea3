package engine

import (
	"fmt"
	"time"

	"github.com/veraxhq/verax/internal/ir"
)

// LedgerEntry is one hash-stamped record in the append-only audit ledger:
// one entry per step invocation and one per detected violation.
//
// Hash is a pure function of Payload's canonical JSON. The entry ID and
// timestamp exist for audit display and storage, and are deliberately
// excluded from the hashed material so that identical payloads always
// produce identical hashes across replays.
type LedgerEntry struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Tick      int64     `json:"tick"`
	Operation string    `json:"operation"`
	Payload   ir.Object `json:"payload"`
	Hash      string    `json:"hash"`
}

// Ledger is the append-only entry sequence for one run. Entries are
// appended strictly in execution order; nothing reorders, deduplicates,
// or compacts them.
type Ledger struct {
	entries []LedgerEntry
	ids     TokenSource
	time    TimeSource
}

// NewLedger creates an empty ledger stamping entries from the given
// sources.
func NewLedger(ids TokenSource, ts TimeSource) *Ledger {
	return &Ledger{ids: ids, time: ts}
}

// Append hashes the payload and appends a new entry.
// The payload must already be sanitized: NaN values are a hashing error.
func (l *Ledger) Append(tick int64, operation string, payload ir.Object) (LedgerEntry, error) {
	hash, err := ir.LedgerHash(payload)
	if err != nil {
		return LedgerEntry{}, fmt.Errorf("ledger append %q: %w", operation, err)
	}
	entry := LedgerEntry{
		ID:        l.ids.NewID(),
		Timestamp: l.time.Now(),
		Tick:      tick,
		Operation: operation,
		Payload:   payload,
		Hash:      hash,
	}
	l.entries = append(l.entries, entry)
	return entry, nil
}

// Entries returns the entries in append order. The returned slice is a
// copy; the ledger itself stays append-only.
func (l *Ledger) Entries() []LedgerEntry {
	out := make([]LedgerEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len returns the number of entries.
func (l *Ledger) Len() int {
	return len(l.entries)
}

// VerifyEntries recomputes every entry's payload hash and checks it
// against the stored hash. Returns the index and an error for the first
// mismatch, or (-1, nil) when all entries verify.
//
// This is the replay-verification half of the tamper-evidence design: the
// ledger plus the final record hash together form the run's proof.
func VerifyEntries(entries []LedgerEntry) (int, error) {
	for i, e := range entries {
		recomputed, err := ir.LedgerHash(e.Payload)
		if err != nil {
			return i, fmt.Errorf("entry %d (%s): payload not hashable: %w", i, e.ID, err)
		}
		if recomputed != e.Hash {
			return i, fmt.Errorf("entry %d (%s): hash mismatch: stored %s, recomputed %s",
				i, e.ID, e.Hash, recomputed)
		}
	}
	return -1, nil
}
