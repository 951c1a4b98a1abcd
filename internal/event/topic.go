// Package event provides fire-and-forget broadcast channels.
//
// A Topic fans each published value out to every subscriber through a
// buffered channel. Sends never block: when a subscriber's buffer is full the
// value is dropped for that subscriber. Publishing with no subscriber is a no-op.
package event

import "sync"

// BufferSize is the per-subscriber channel capacity.
const BufferSize = 16

// Topic is a many-producer, many-consumer broadcast point.
type Topic[T any] struct {
	mu     sync.RWMutex
	subs   map[uint64]chan T
	nextID uint64
	closed bool
}

// NewTopic creates a topic with no subscribers.
func NewTopic[T any]() *Topic[T] {
	return &Topic[T]{subs: make(map[uint64]chan T)}
}

// Subscribe returns a receive channel and a cancel function. Cancel closes the
// channel and is safe to call more than once.
func (t *Topic[T]) Subscribe() (<-chan T, func()) {
	t.mu.Lock()
	defer t.mu.Unlock()

	ch := make(chan T, BufferSize)
	if t.closed {
		close(ch)
		return ch, func() {}
	}

	id := t.nextID
	t.nextID++
	t.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			t.mu.Lock()
			defer t.mu.Unlock()
			if c, ok := t.subs[id]; ok {
				delete(t.subs, id)
				close(c)
			}
		})
	}
	return ch, cancel
}

// Publish delivers v to every subscriber without blocking.
func (t *Topic[T]) Publish(v T) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, ch := range t.subs {
		select {
		case ch <- v:
		default:
			// Drop if buffer full
		}
	}
}

// Subscribers returns the number of active subscribers.
func (t *Topic[T]) Subscribers() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.subs)
}

// Close closes every subscriber channel. Later publishes are dropped and
// later subscriptions receive an already closed channel.
func (t *Topic[T]) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	t.closed = true
	for id, ch := range t.subs {
		close(ch)
		delete(t.subs, id)
	}
}
