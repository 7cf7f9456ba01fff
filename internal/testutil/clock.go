package testutil

import (
	"sync"
	"time"

	"github.com/roach88/revdel/internal/queryir"
)

// DefaultEpoch is where a TimestampClock starts when given the zero time.
var DefaultEpoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// TimestampClock hands out 14-digit row timestamps one second apart.
//
// Fixtures that build many rows use it so timestamps are unique and the same
// on every run.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type TimestampClock struct {
	mu    sync.Mutex
	start time.Time
	n     int64
}

// NewTimestampClock creates a clock whose first Next() returns start.
func NewTimestampClock(start time.Time) *TimestampClock {
	if start.IsZero() {
		start = DefaultEpoch
	}
	return &TimestampClock{start: start.UTC()}
}

// Next returns the next timestamp.
func (c *TimestampClock) Next() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	ts := queryir.FormatTimestamp(c.start.Add(time.Duration(c.n) * time.Second))
	c.n++
	return ts
}

// Issued returns how many timestamps have been handed out.
func (c *TimestampClock) Issued() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

// Reset rewinds the clock so the next call returns the start again.
func (c *TimestampClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n = 0
}
