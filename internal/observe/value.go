// Package observe publishes immutable snapshots to concurrent readers.
package observe

import (
	"sync"
	"sync/atomic"
)

// Value holds the latest published snapshot of T. Readers never block the
// writer; they get the snapshot as of the last Set. Published values must not
// be mutated afterwards.
type Value[T any] struct {
	cur atomic.Pointer[T]

	mu   sync.Mutex
	subs map[int]chan struct{}
	next int
}

// NewValue creates a Value holding initial.
func NewValue[T any](initial T) *Value[T] {
	v := &Value[T]{subs: make(map[int]chan struct{})}
	v.cur.Store(&initial)
	return v
}

// Load returns the current snapshot.
func (v *Value[T]) Load() T {
	return *v.cur.Load()
}

// Set publishes a new snapshot and signals subscribers.
func (v *Value[T]) Set(next T) {
	v.cur.Store(&next)

	v.mu.Lock()
	defer v.mu.Unlock()
	for _, ch := range v.subs {
		select {
		case ch <- struct{}{}:
		default:
			// A signal is already pending; the reader will Load the latest value.
		}
	}
}

// Changes returns a channel signalled after each Set. Signals coalesce, so a
// slow reader sees at least the most recent snapshot, not every one.
func (v *Value[T]) Changes() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	v.mu.Lock()
	id := v.next
	v.next++
	v.subs[id] = ch
	v.mu.Unlock()

	return ch, func() {
		v.mu.Lock()
		delete(v.subs, id)
		v.mu.Unlock()
	}
}
