// Package engine implements the deterministic step interpreter.
//
// An Engine executes a plan's ordered step list exactly once against a
// mutable record, producing the final record, a hash-stamped audit ledger,
// a violation trail, and a metrics snapshot. Execution is single-threaded
// and strictly sequential: steps run one at a time in plan order with no
// reordering and no retries.
//
// All per-run state (record tree, tick counter, ledger, metrics) lives in
// one owned run context threaded through every call, so concurrent runs of
// the same Engine are fully independent.
//
// INVARIANTS:
//   - Record state is touched only through ir.Path get/set
//   - The tick counter increases by exactly 1 per step attempt, including
//     steps that error or are skipped, and is never reset mid-run
//   - The ledger is append-only; violations never roll back a mutation
//   - Every ledger entry hash is a pure function of its payload
package engine
