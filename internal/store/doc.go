// Package store provides SQLite-backed durable storage for run artifacts.
//
// The store is an append-only archive of completed executions:
//   - Plan Versions: every distinct plan document, keyed by content hash
//   - Executions: one row per run with its proof fields
//   - Ledger Entries: the hash-stamped audit ledger
//   - Violations: the violation report
//   - Metrics: the per-run counter snapshot
//   - State Snapshots: the final record tree and its hash
//
// # Invariants
//
//   - A run is persisted in a single transaction: either every artifact
//     of the run is stored or none is.
//   - Ordering uses seq INTEGER (position in the ledger), never
//     timestamps, so read-back reproduces exact execution order.
//   - Payloads and record trees are stored as RFC 8785 canonical JSON;
//     re-verification recomputes hashes from the stored bytes.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL: balance durability/performance
//   - busy_timeout=5000: wait for locks up to 5 seconds
//   - foreign_keys=ON: enforce referential integrity
package store
