package engine

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClockStartsAtZero(t *testing.T) {
	c := NewClock()
	assert.Equal(t, int64(0), c.Current())
}

func TestClockTicksAreContiguous(t *testing.T) {
	c := NewClock()
	for want := int64(1); want <= 100; want++ {
		assert.Equal(t, want, c.Next())
	}
	assert.Equal(t, int64(100), c.Current())
}

func TestClockConcurrentNextNeverDuplicates(t *testing.T) {
	c := NewClock()

	const goroutines = 8
	const perGoroutine = 1000

	var mu sync.Mutex
	seen := make(map[int64]bool, goroutines*perGoroutine)

	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perGoroutine; i++ {
				tick := c.Next()
				mu.Lock()
				assert.False(t, seen[tick], "tick %d issued twice", tick)
				seen[tick] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(goroutines*perGoroutine), c.Current())
}
