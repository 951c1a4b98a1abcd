// internal/extension/mock.go
package extension

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/llehouerou/tides/internal/streamable"
)

// Mock is an in-memory extension implementing every capability.
// Tracks are served from a map; unset hooks fall back to simple defaults.
type Mock struct {
	ExtID   string
	ExtName string

	mu     sync.Mutex
	tracks map[string]streamable.Track
	radios map[string][][]streamable.Track
	liked  map[string]bool

	// Optional hooks overriding the defaults.
	OnLoadTrack func(ctx context.Context, t streamable.Track) (streamable.Track, error)
	OnLoadMedia func(ctx context.Context, s streamable.Streamable) (streamable.Media, error)

	loadCalls  atomic.Int32
	mediaCalls atomic.Int32
	radioCalls atomic.Int32
}

// NewMock creates an empty mock extension.
func NewMock(id string) *Mock {
	return &Mock{
		ExtID:   id,
		ExtName: id,
		tracks:  make(map[string]streamable.Track),
		radios:  make(map[string][][]streamable.Track),
		liked:   make(map[string]bool),
	}
}

func (m *Mock) ID() string   { return m.ExtID }
func (m *Mock) Name() string { return m.ExtName }

// AddTrack registers the loaded form of a track.
func (m *Mock) AddTrack(t streamable.Track) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tracks[t.ID] = t
}

// SetRadio registers the pages returned for a radio seeded from seedID.
func (m *Mock) SetRadio(seedID string, pages ...[]streamable.Track) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.radios[seedID] = pages
}

func (m *Mock) LoadTrack(ctx context.Context, t streamable.Track) (streamable.Track, error) {
	m.loadCalls.Add(1)
	if m.OnLoadTrack != nil {
		return m.OnLoadTrack(ctx, t)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	loaded, ok := m.tracks[t.ID]
	if !ok {
		return streamable.Track{}, fmt.Errorf("unknown track %q", t.ID)
	}
	return loaded, nil
}

func (m *Mock) LoadStreamableMedia(ctx context.Context, s streamable.Streamable, _ bool) (streamable.Media, error) {
	m.mediaCalls.Add(1)
	if m.OnLoadMedia != nil {
		return m.OnLoadMedia(ctx, s)
	}
	return streamable.Media{
		Streamable: s,
		Payload:    streamable.HTTP{URL: "https://" + m.ExtID + "/" + s.ID},
	}, nil
}

func (m *Mock) radioItem(seed streamable.Item) streamable.Item {
	m.radioCalls.Add(1)
	return streamable.Item{Kind: streamable.ItemPlaylist, ID: "radio:" + seed.ID, Title: "Radio " + seed.Title}
}

func (m *Mock) RadioFromTrack(_ context.Context, t streamable.Track, _ *streamable.Item) (streamable.Item, error) {
	return m.radioItem(streamable.TrackItem(t)), nil
}

func (m *Mock) RadioFromAlbum(_ context.Context, album streamable.Item) (streamable.Item, error) {
	return m.radioItem(album), nil
}

func (m *Mock) RadioFromArtist(_ context.Context, artist streamable.Item) (streamable.Item, error) {
	return m.radioItem(artist), nil
}

func (m *Mock) RadioFromPlaylist(_ context.Context, playlist streamable.Item) (streamable.Item, error) {
	return m.radioItem(playlist), nil
}

// LoadRadioTracks serves the registered pages. Continuation tokens are page
// numbers.
func (m *Mock) LoadRadioTracks(_ context.Context, radio streamable.Item, continuation string) (Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	pages := m.radios[strings.TrimPrefix(radio.ID, "radio:")]
	page := 0
	if continuation != "" {
		if _, err := fmt.Sscanf(continuation, "%d", &page); err != nil {
			return Page{}, fmt.Errorf("bad continuation %q", continuation)
		}
	}
	if page >= len(pages) {
		return Page{}, nil
	}
	p := Page{Tracks: pages[page]}
	if page+1 < len(pages) {
		p.Continuation = fmt.Sprintf("%d", page+1)
	}
	return p, nil
}

func (m *Mock) LikeTrack(_ context.Context, t streamable.Track, liked bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.liked[t.ID] = liked
	return nil
}

// Test helpers

// LoadCalls returns the number of LoadTrack calls.
func (m *Mock) LoadCalls() int { return int(m.loadCalls.Load()) }

// MediaCalls returns the number of LoadStreamableMedia calls.
func (m *Mock) MediaCalls() int { return int(m.mediaCalls.Load()) }

// RadioCalls returns the number of radio playlists created.
func (m *Mock) RadioCalls() int { return int(m.radioCalls.Load()) }

// Liked reports the liked state recorded for a track.
func (m *Mock) Liked(trackID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.liked[trackID]
}

// Bare is an extension without any capability.
type Bare struct {
	ExtID   string
	ExtName string
}

func (b Bare) ID() string   { return b.ExtID }
func (b Bare) Name() string { return b.ExtName }

// Verify implementations at compile time.
var (
	_ TrackClient = (*Mock)(nil)
	_ RadioClient = (*Mock)(nil)
	_ LikeClient  = (*Mock)(nil)
	_ Extension   = Bare{}
)
