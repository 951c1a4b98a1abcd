package playlist

import (
	"sync"
	"sync/atomic"

	"github.com/llehouerou/tides/internal/event"
	"github.com/llehouerou/tides/internal/player"
	"github.com/llehouerou/tides/internal/streamable"
)

// Entry is the queue's record of one track.
//
// The unresolved track, owning extension and context are fixed at creation.
// The loaded slot, liked flag and selected stream indices change as
// resolution completes. Once the loaded slot is set it is only replaced after
// Invalidate.
type Entry struct {
	ExtensionID string
	Track       streamable.Track
	Context     *streamable.Item

	// Loaded fires once when the loaded slot goes from empty to set.
	Loaded *event.Topic[streamable.Track]
	// Liked fires whenever the liked flag changes.
	Liked *event.Topic[bool]

	mu      sync.Mutex
	item    *player.MediaItem
	loaded  *streamable.Track
	liked   bool
	indices [3]int

	resolving sync.Mutex
	removed   atomic.Bool
}

// NewEntry creates an entry and its native item.
func NewEntry(extensionID string, track streamable.Track, context *streamable.Item) *Entry {
	track = track.Unloaded()
	e := &Entry{
		ExtensionID: extensionID,
		Track:       track,
		Context:     context,
		Loaded:      event.NewTopic[streamable.Track](),
		Liked:       event.NewTopic[bool](),
		liked:       track.IsLiked,
		indices:     [3]int{-1, -1, -1},
	}
	e.item = player.NewMediaItem(e.metaLocked())
	return e
}

// ID returns the native id, which is the track id.
func (e *Entry) ID() string {
	return e.Track.ID
}

// Item returns the native item currently representing this entry.
func (e *Entry) Item() *player.MediaItem {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.item
}

// Rebuild returns a new native item reflecting the entry's current state and
// makes it the entry's item.
func (e *Entry) Rebuild() *player.MediaItem {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.item = e.item.With(e.metaLocked())
	return e.item
}

// LoadedTrack returns the loaded track, if any.
func (e *Entry) LoadedTrack() (streamable.Track, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.loaded == nil {
		return streamable.Track{}, false
	}
	return *e.loaded, true
}

// IsLiked returns the liked flag.
func (e *Entry) IsLiked() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.liked
}

// SetLiked updates the liked flag and publishes on change.
func (e *Entry) SetLiked(liked bool) {
	e.mu.Lock()
	changed := e.liked != liked
	e.liked = liked
	if e.loaded != nil {
		e.loaded.IsLiked = liked
	}
	e.mu.Unlock()

	if changed {
		e.Liked.Publish(liked)
	}
}

// Index returns the selected candidate index for st, -1 if none.
func (e *Entry) Index(st streamable.StreamType) int {
	if st < streamable.Audio || st > streamable.Subtitle {
		return -1
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.indices[st]
}

// Install stores a loaded track and the candidate index selected for st.
// It does nothing and returns false once the entry has been removed.
// The Loaded topic fires when the slot was previously empty; the Liked topic
// fires when the loaded data changes the liked flag.
func (e *Entry) Install(loaded streamable.Track, st streamable.StreamType, index int) bool {
	if e.Removed() {
		return false
	}

	e.mu.Lock()
	first := e.loaded == nil
	if first {
		t := loaded
		e.loaded = &t
	}
	if st >= streamable.Audio && st <= streamable.Subtitle && index >= 0 {
		e.indices[st] = index
	}
	likedChanged := first && e.liked != loaded.IsLiked
	if first {
		e.liked = loaded.IsLiked
	}
	e.mu.Unlock()

	if first {
		e.Loaded.Publish(loaded)
	}
	if likedChanged {
		e.Liked.Publish(loaded.IsLiked)
	}
	return true
}

// Invalidate empties the loaded slot and stream selection so the next
// resolution loads the track again.
func (e *Entry) Invalidate() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.loaded = nil
	e.indices = [3]int{-1, -1, -1}
}

// LockResolution serializes resolution of this entry.
func (e *Entry) LockResolution() { e.resolving.Lock() }

// UnlockResolution releases the resolution lock.
func (e *Entry) UnlockResolution() { e.resolving.Unlock() }

// Removed reports whether the entry left the queue. In-flight resolution
// checks it before installing results.
func (e *Entry) Removed() bool {
	return e.removed.Load()
}

func (e *Entry) markRemoved() {
	e.removed.Store(true)
}

func (e *Entry) metaLocked() player.Meta {
	track := e.Track
	track.IsLiked = e.liked
	return player.Meta{
		Track:         track,
		ExtensionID:   e.ExtensionID,
		Context:       e.Context,
		Loaded:        e.loaded != nil,
		AudioIndex:    e.indices[streamable.Audio],
		VideoIndex:    e.indices[streamable.Video],
		SubtitleIndex: e.indices[streamable.Subtitle],
	}
}
