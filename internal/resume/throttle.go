package resume

import (
	"sync"
	"time"
)

// Throttle lets an action through at most once per interval per key.
type Throttle struct {
	interval time.Duration
	now      func() time.Time

	mu   sync.Mutex
	last map[string]time.Time
}

// NewThrottle creates a throttle. A non-positive interval never throttles.
func NewThrottle(interval time.Duration) *Throttle {
	return &Throttle{
		interval: interval,
		now:      time.Now,
		last:     make(map[string]time.Time),
	}
}

// Allow reports whether key may run now, and records the run if so.
func (t *Throttle) Allow(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	if last, ok := t.last[key]; ok && t.interval > 0 && now.Sub(last) < t.interval {
		return false
	}
	t.last[key] = now
	return true
}

// Mark records a run of key that bypassed Allow.
func (t *Throttle) Mark(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.last[key] = t.now()
}

// Reset forgets every key.
func (t *Throttle) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	clear(t.last)
}
