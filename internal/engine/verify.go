package engine

import (
	"fmt"

	"github.com/veraxhq/verax/internal/ir"
)

// VerifyTicks checks that ledger ticks form a contiguous run 1..N with no
// gaps. Violations share the tick of the attempt that raised them, so the
// check is over the set of distinct ticks, not the entry count.
func VerifyTicks(entries []LedgerEntry) error {
	if len(entries) == 0 {
		return nil
	}
	seen := make(map[int64]bool)
	var max int64
	for _, e := range entries {
		if e.Tick < 1 {
			return fmt.Errorf("entry %s: tick %d out of range", e.ID, e.Tick)
		}
		seen[e.Tick] = true
		if e.Tick > max {
			max = e.Tick
		}
	}
	for t := int64(1); t <= max; t++ {
		if !seen[t] {
			return fmt.Errorf("tick sequence has a gap: no entry for tick %d (max %d)", t, max)
		}
	}
	return nil
}

// VerifyRun performs full replay verification of a persisted run: every
// payload hash recomputes, ticks are contiguous, and the stored final
// record hashes to the stored final hash. Any failure means the artifacts
// were tampered with or recorded by a buggy engine.
func VerifyRun(entries []LedgerEntry, finalState ir.Object, wantFinalHash string) error {
	if idx, err := VerifyEntries(entries); err != nil {
		return fmt.Errorf("ledger entry %d: %w", idx, err)
	}
	if err := VerifyTicks(entries); err != nil {
		return err
	}
	if finalState != nil || wantFinalHash != "" {
		got, err := ir.RecordHash(finalState)
		if err != nil {
			return fmt.Errorf("final state not hashable: %w", err)
		}
		if got != wantFinalHash {
			return fmt.Errorf("final record hash mismatch: stored %s, recomputed %s",
				wantFinalHash, got)
		}
	}
	return nil
}
