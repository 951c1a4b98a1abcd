// Package playlist holds the authoritative, extension-aware playback queue.
//
// The queue never calls into the native engine. Mutations return the native
// items the caller must apply and are broadcast on the queue's topics so that
// persistence and radio can react. UpdateQueue reconciles the queue with the
// engine's own playlist after the engine changes it.
package playlist

import (
	"slices"
	"sync"

	"github.com/samber/lo"

	"github.com/llehouerou/tides/internal/event"
	"github.com/llehouerou/tides/internal/player"
	"github.com/llehouerou/tides/internal/streamable"
)

// AddEvent is broadcast after tracks are inserted.
type AddEvent struct {
	Position int
	Items    []*player.MediaItem
	Entries  []*Entry
}

// RemoveEvent is broadcast after an entry is removed.
type RemoveEvent struct {
	Index int
	Entry *Entry
}

// MoveEvent is broadcast after an entry is moved.
type MoveEvent struct {
	From, To int
}

// ClearEvent is broadcast when the queue becomes empty.
type ClearEvent struct{}

// Queue is the ordered list of entries being played.
type Queue struct {
	mu      sync.RWMutex
	entries []*Entry

	// CurrentIndex is the engine's current position, -1 if nothing plays.
	CurrentIndex *event.Value[int]

	Added   *event.Topic[AddEvent]
	Removed *event.Topic[RemoveEvent]
	Moved   *event.Topic[MoveEvent]
	Cleared *event.Topic[ClearEvent]
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{
		CurrentIndex: event.NewValue(-1),
		Added:        event.NewTopic[AddEvent](),
		Removed:      event.NewTopic[RemoveEvent](),
		Moved:        event.NewTopic[MoveEvent](),
		Cleared:      event.NewTopic[ClearEvent](),
	}
}

// AddTracks inserts tracks after the current one, offset positions further.
// It returns the insert position and the native items to add there.
func (q *Queue) AddTracks(
	extensionID string,
	context *streamable.Item,
	tracks []streamable.Track,
	offset int,
) (int, []*player.MediaItem) {
	entries := lo.Map(tracks, func(t streamable.Track, _ int) *Entry {
		return NewEntry(extensionID, t, context)
	})
	return q.Insert(entries, offset)
}

// Insert adds prebuilt entries after the current one, offset positions further.
func (q *Queue) Insert(entries []*Entry, offset int) (int, []*player.MediaItem) {
	q.mu.Lock()
	pos := max(0, min(q.CurrentIndex.Get()+1+offset, len(q.entries)))
	q.entries = slices.Insert(q.entries, pos, entries...)
	q.mu.Unlock()

	items := nativeItems(entries)
	if len(entries) > 0 {
		q.Added.Publish(AddEvent{Position: pos, Items: items, Entries: entries})
	}
	return pos, items
}

// Replace swaps the whole queue for entries and sets the current index.
// It returns the native items in order.
func (q *Queue) Replace(entries []*Entry, current int) []*player.MediaItem {
	q.mu.Lock()
	old := q.entries
	q.entries = slices.Clone(entries)
	q.mu.Unlock()

	for _, e := range old {
		if !slices.Contains(entries, e) {
			e.markRemoved()
		}
	}
	if len(old) > 0 {
		q.Cleared.Publish(ClearEvent{})
	}

	items := nativeItems(entries)
	if len(entries) == 0 {
		q.CurrentIndex.Set(-1)
		return items
	}
	q.CurrentIndex.Set(max(0, min(current, len(entries)-1)))
	q.Added.Publish(AddEvent{Position: 0, Items: items, Entries: slices.Clone(entries)})
	return items
}

// RemoveTrack removes the entry at index. It returns false if index is out
// of range.
func (q *Queue) RemoveTrack(index int) bool {
	q.mu.Lock()
	if index < 0 || index >= len(q.entries) {
		q.mu.Unlock()
		return false
	}
	e := q.entries[index]
	q.entries = slices.Delete(q.entries, index, index+1)
	remaining := len(q.entries)
	q.mu.Unlock()

	e.markRemoved()

	cur := q.CurrentIndex.Get()
	switch {
	case remaining == 0:
		q.CurrentIndex.Set(-1)
	case cur > index:
		q.CurrentIndex.Set(cur - 1)
	case cur >= remaining:
		q.CurrentIndex.Set(remaining - 1)
	}

	q.Removed.Publish(RemoveEvent{Index: index, Entry: e})
	if remaining == 0 {
		q.Cleared.Publish(ClearEvent{})
	}
	return true
}

// MoveTrack moves the entry at from to to.
func (q *Queue) MoveTrack(from, to int) bool {
	q.mu.Lock()
	n := len(q.entries)
	if from < 0 || from >= n || to < 0 || to >= n {
		q.mu.Unlock()
		return false
	}
	if from == to {
		q.mu.Unlock()
		return true
	}
	e := q.entries[from]
	q.entries = slices.Delete(q.entries, from, from+1)
	q.entries = slices.Insert(q.entries, to, e)
	q.mu.Unlock()

	cur := q.CurrentIndex.Get()
	switch {
	case cur == from:
		q.CurrentIndex.Set(to)
	case from < cur && to >= cur:
		q.CurrentIndex.Set(cur - 1)
	case from > cur && to <= cur:
		q.CurrentIndex.Set(cur + 1)
	}

	q.Moved.Publish(MoveEvent{From: from, To: to})
	return true
}

// Clear removes every entry.
func (q *Queue) Clear() {
	q.mu.Lock()
	old := q.entries
	q.entries = nil
	q.mu.Unlock()

	for _, e := range old {
		e.markRemoved()
	}
	q.CurrentIndex.Set(-1)
	q.Cleared.Publish(ClearEvent{})
}

// UpdateQueue rebuilds the queue from the engine's playlist ids. Duplicate
// ids are matched to entries in queue order. Ids the queue cannot map are
// dropped, and entries no id maps to are marked removed.
func (q *Queue) UpdateQueue(ids []string) {
	q.mu.Lock()
	byID := make(map[string][]*Entry, len(q.entries))
	for _, e := range q.entries {
		byID[e.ID()] = append(byID[e.ID()], e)
	}

	rebuilt := make([]*Entry, 0, len(ids))
	for _, id := range ids {
		candidates := byID[id]
		if len(candidates) == 0 {
			continue
		}
		rebuilt = append(rebuilt, candidates[0])
		byID[id] = candidates[1:]
	}
	q.entries = rebuilt
	q.mu.Unlock()

	for _, rest := range byID {
		for _, e := range rest {
			e.markRemoved()
		}
	}
}

// Entry returns the first live entry with the given native id, or nil.
func (q *Queue) Entry(id string) *Entry {
	q.mu.RLock()
	defer q.mu.RUnlock()
	e, _ := lo.Find(q.entries, func(e *Entry) bool { return e.ID() == id })
	return e
}

// EntryForItem returns the entry whose native item is item, falling back to
// the id lookup.
func (q *Queue) EntryForItem(item *player.MediaItem) *Entry {
	if item == nil {
		return nil
	}
	q.mu.RLock()
	for _, e := range q.entries {
		if e.Item() == item {
			q.mu.RUnlock()
			return e
		}
	}
	q.mu.RUnlock()
	return q.Entry(item.ID)
}

// At returns the entry at index, or nil.
func (q *Queue) At(index int) *Entry {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if index < 0 || index >= len(q.entries) {
		return nil
	}
	return q.entries[index]
}

// Entries returns a copy of the entries in order.
func (q *Queue) Entries() []*Entry {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return slices.Clone(q.entries)
}

// Len returns the number of entries.
func (q *Queue) Len() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.entries)
}

// SetCurrentIndex records the engine's current position.
func (q *Queue) SetCurrentIndex(index int) {
	q.CurrentIndex.Set(index)
}

// Current returns the current entry, or nil.
func (q *Queue) Current() *Entry {
	return q.At(q.CurrentIndex.Get())
}

// Close closes every topic.
func (q *Queue) Close() {
	q.Added.Close()
	q.Removed.Close()
	q.Moved.Close()
	q.Cleared.Close()
	q.CurrentIndex.Changed.Close()
}

func nativeItems(entries []*Entry) []*player.MediaItem {
	return lo.Map(entries, func(e *Entry, _ int) *player.MediaItem { return e.Item() })
}
