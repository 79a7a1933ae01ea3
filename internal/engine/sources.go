package engine

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// TokenSource generates unique identifiers for run IDs, ledger entry IDs,
// and the uid() expression helper.
// Implemented by UUIDv7Source (production) and FixedTokenSource (tests).
type TokenSource interface {
	NewID() string
}

// TimeSource supplies timestamps for ledger entries, violations, and the
// now() expression helper. Production uses wall-clock time; tests pin a
// fixed instant so run output is byte-for-byte reproducible.
type TimeSource interface {
	Now() time.Time
}

// UUIDv7Source generates time-sortable UUIDv7 identifiers.
//
// UUIDv7 embeds a timestamp in the most significant bits, so ledger entry
// IDs sort by creation time, which helps when eyeballing persisted runs.
//
// Thread-safety: stateless and safe for concurrent use.
type UUIDv7Source struct{}

// NewID creates a new UUIDv7 as a hyphenated string.
// Panics if UUID generation fails (should never happen in practice).
func (UUIDv7Source) NewID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// SystemTime returns wall-clock time in UTC.
type SystemTime struct{}

// Now implements TimeSource.
func (SystemTime) Now() time.Time {
	return time.Now().UTC()
}

// FixedTokenSource returns predetermined identifiers for testing, enabling
// deterministic run output and golden-file comparison.
//
// Thread-safety: safe for concurrent use via internal mutex.
type FixedTokenSource struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewFixedTokenSource creates a source yielding "<prefix>-1", "<prefix>-2", ...
func NewFixedTokenSource(prefix string) *FixedTokenSource {
	return &FixedTokenSource{prefix: prefix}
}

// NewID returns the next predetermined identifier.
func (s *FixedTokenSource) NewID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return fmt.Sprintf("%s-%d", s.prefix, s.n)
}

// FixedTime returns the same instant on every call.
type FixedTime struct {
	Instant time.Time
}

// Now implements TimeSource.
func (f FixedTime) Now() time.Time {
	return f.Instant
}
