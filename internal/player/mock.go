// internal/player/mock.go
package player

import (
	"slices"
	"sync"
	"time"
)

// Mock is an in-memory Engine. It keeps a playlist and a current index the way
// a native engine does, without decoding anything.
type Mock struct {
	mu       sync.Mutex
	items    []*MediaItem
	current  int
	position time.Duration
	shuffle  bool
	repeat   RepeatMode

	seekCalls []int
}

// NewMock creates an empty engine.
func NewMock() *Mock {
	return &Mock{current: -1}
}

func (m *Mock) MediaItemCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

func (m *Mock) MediaItemAt(index int) *MediaItem {
	m.mu.Lock()
	defer m.mu.Unlock()
	if index < 0 || index >= len(m.items) {
		return nil
	}
	return m.items[index]
}

func (m *Mock) MediaItems() []*MediaItem {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.items)
}

func (m *Mock) CurrentIndex() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

func (m *Mock) HasNext() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.items) == 0 {
		return false
	}
	if m.repeat != RepeatOff {
		return true
	}
	return m.current < len(m.items)-1
}

func (m *Mock) AddMediaItems(index int, items []*MediaItem) {
	m.mu.Lock()
	defer m.mu.Unlock()
	index = max(0, min(index, len(m.items)))
	m.items = slices.Insert(m.items, index, items...)
	switch {
	case m.current < 0:
		if len(m.items) > 0 {
			m.current = 0
		}
	case m.current >= index:
		m.current += len(items)
	}
}

func (m *Mock) RemoveMediaItems(from, to int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	from = max(0, from)
	to = min(to, len(m.items))
	if from >= to {
		return
	}
	m.items = slices.Delete(m.items, from, to)

	switch {
	case len(m.items) == 0:
		m.current = -1
		m.position = 0
	case m.current >= to:
		m.current -= to - from
	case m.current >= from:
		// Removed current item: the next one becomes current
		m.current = min(from, len(m.items)-1)
		m.position = 0
	}
}

func (m *Mock) MoveMediaItem(from, to int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if from < 0 || from >= len(m.items) || to < 0 || to >= len(m.items) || from == to {
		return
	}
	item := m.items[from]
	m.items = slices.Delete(m.items, from, from+1)
	m.items = slices.Insert(m.items, to, item)

	switch {
	case m.current == from:
		m.current = to
	case from < m.current && to >= m.current:
		m.current--
	case from > m.current && to <= m.current:
		m.current++
	}
}

func (m *Mock) ReplaceMediaItem(index int, item *MediaItem) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if index < 0 || index >= len(m.items) {
		return
	}
	m.items[index] = item
}

func (m *Mock) SetMediaItems(items []*MediaItem, startIndex int, position time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = slices.Clone(items)
	switch {
	case len(m.items) == 0:
		m.current = -1
	case startIndex < 0 || startIndex >= len(m.items):
		m.current = 0
	default:
		m.current = startIndex
	}
	m.position = position
}

func (m *Mock) ClearMediaItems() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = nil
	m.current = -1
	m.position = 0
}

func (m *Mock) ShuffleModeEnabled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.shuffle
}

func (m *Mock) SetShuffleModeEnabled(enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shuffle = enabled
}

func (m *Mock) RepeatMode() RepeatMode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.repeat
}

func (m *Mock) SetRepeatMode(mode RepeatMode) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.repeat = mode
}

func (m *Mock) Position() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.position
}

func (m *Mock) SeekTo(index int, position time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seekCalls = append(m.seekCalls, index)
	if index >= 0 && index < len(m.items) {
		m.current = index
	}
	m.position = position
}

// Test helpers

// SetPosition sets the playback position.
func (m *Mock) SetPosition(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.position = d
}

// Advance moves to the next item as if the current one finished.
// Returns false at the end of the playlist with repeat off.
func (m *Mock) Advance() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.items) == 0 {
		return false
	}
	m.position = 0
	switch {
	case m.repeat == RepeatOne:
		return true
	case m.current < len(m.items)-1:
		m.current++
		return true
	case m.repeat == RepeatAll:
		m.current = 0
		return true
	default:
		return false
	}
}

// SeekCalls returns the indices passed to SeekTo.
func (m *Mock) SeekCalls() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.seekCalls)
}
