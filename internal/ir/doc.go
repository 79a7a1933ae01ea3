// Package ir defines the value representation shared by every part of the
// engine: a sealed, tagged-variant JSON value type, dotted key paths for
// reading and writing nested record state, canonical JSON serialization,
// and SHA-256 content hashing with domain separation.
//
// All record state, step parameters, primitive outputs, and ledger payloads
// are ir values. The engine never traverses untyped map[string]any trees.
package ir
