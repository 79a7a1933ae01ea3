// Package plan loads and validates the documents consumed by the engine:
// the plan document (an ordered transformation pipeline of steps), the
// invariant binding document (named checks bound per primitive), and the
// initial record.
//
// Plan documents are accepted as JSON or YAML. Untrusted plan documents can
// additionally be validated against the embedded CUE schema before a run.
package plan
