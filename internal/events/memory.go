package events

import (
	"context"
	"sync"
	"sync/atomic"
)

// MemoryOptions configures a Memory notifier.
type MemoryOptions struct {
	// Buffer is the per-subscriber channel size. Defaults to 16.
	Buffer int
}

// Memory delivers values to subscribers in the same process.
type Memory[T any] struct {
	mu      sync.Mutex
	nextID  uint64
	subs    map[uint64]chan T
	buffer  int
	dropped atomic.Int64
}

// NewMemory creates an in-process notifier.
func NewMemory[T any](opts MemoryOptions) *Memory[T] {
	buffer := opts.Buffer
	if buffer <= 0 {
		buffer = 16
	}
	return &Memory[T]{subs: make(map[uint64]chan T), buffer: buffer}
}

func (m *Memory[T]) Subscribe() (<-chan T, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextID
	m.nextID++
	ch := make(chan T, m.buffer)
	m.subs[id] = ch

	return ch, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if sub, ok := m.subs[id]; ok {
			delete(m.subs, id)
			close(sub)
		}
	}
}

func (m *Memory[T]) Notify(_ context.Context, v T) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.broadcastLocked(v)
	return nil
}

// Dropped is the number of deliveries skipped because a buffer was full.
func (m *Memory[T]) Dropped() int64 {
	return m.dropped.Load()
}

func (m *Memory[T]) broadcastLocked(v T) {
	for _, ch := range m.subs {
		select {
		case ch <- v:
		default:
			m.dropped.Add(1)
		}
	}
}
