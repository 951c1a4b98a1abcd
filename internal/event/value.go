package event

import "sync"

// Value is an observable state value. Set publishes to Changed only when the
// value actually changes.
type Value[T comparable] struct {
	mu      sync.RWMutex
	v       T
	Changed *Topic[T]
}

// NewValue creates a value holding initial.
func NewValue[T comparable](initial T) *Value[T] {
	return &Value[T]{v: initial, Changed: NewTopic[T]()}
}

// Get returns the current value.
func (s *Value[T]) Get() T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.v
}

// Set stores v and reports whether it differed from the previous value.
func (s *Value[T]) Set(v T) bool {
	s.mu.Lock()
	if s.v == v {
		s.mu.Unlock()
		return false
	}
	s.v = v
	s.mu.Unlock()

	s.Changed.Publish(v)
	return true
}
