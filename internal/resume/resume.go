// Package resume persists the queue and playback position so a later
// session can pick up where the last one stopped.
//
// Every value is stored under its own key and is independently optional.
// Recovery tolerates any of them being missing or malformed.
package resume

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/llehouerou/tides/internal/log"
	"github.com/llehouerou/tides/internal/player"
	"github.com/llehouerou/tides/internal/playlist"
	"github.com/llehouerou/tides/internal/state"
	"github.com/llehouerou/tides/internal/streamable"
)

// Persisted keys.
const (
	KeyTracks     = "tracks"
	KeyExtensions = "extensions"
	KeyContexts   = "contexts"
	KeyIndex      = "index"
	KeyPosition   = "position"
	KeyShuffle    = "shuffle"
	KeyRepeat     = "repeat"
	KeyCleared    = "cleared"
)

// Saved is one recovered queue entry.
type Saved struct {
	ExtensionID string
	Track       streamable.Track
	Context     *streamable.Item
}

// Entry builds a fresh queue entry for s.
func (s Saved) Entry() *playlist.Entry {
	return playlist.NewEntry(s.ExtensionID, s.Track, s.Context)
}

// Recovered is the state read back by Recover.
type Recovered struct {
	Tracks   []Saved
	Index    int
	Position time.Duration
	Shuffle  bool
	Repeat   player.RepeatMode
}

// Entries builds queue entries for every recovered track.
func (r Recovered) Entries() []*playlist.Entry {
	return lo.Map(r.Tracks, func(s Saved, _ int) *playlist.Entry { return s.Entry() })
}

// Store reads and writes resumption state.
type Store struct {
	state    state.Interface
	throttle *Throttle
}

// New creates a store over s. Index and position writes are throttled to one
// per interval unless forced.
func New(s state.Interface, interval time.Duration) *Store {
	return &Store{state: s, throttle: NewThrottle(interval)}
}

// SaveQueue stores the queue shape. Loaded metadata is kept but stream
// lists are dropped since they expire.
func (s *Store) SaveQueue(ctx context.Context, entries []*playlist.Entry, cleared bool) error {
	tracks := lo.Map(entries, func(e *playlist.Entry, _ int) streamable.Track {
		if loaded, ok := e.LoadedTrack(); ok {
			return loaded.Unloaded()
		}
		return e.Track.Unloaded()
	})
	exts := lo.Map(entries, func(e *playlist.Entry, _ int) string { return e.ExtensionID })
	contexts := lo.Map(entries, func(e *playlist.Entry, _ int) *streamable.Item { return e.Context })

	values := make(map[string][]byte, 4)
	for key, v := range map[string]any{
		KeyTracks:     tracks,
		KeyExtensions: exts,
		KeyContexts:   contexts,
		KeyCleared:    cleared,
	} {
		b, err := state.Encode(v)
		if err != nil {
			return fmt.Errorf("encoding %s: %w", key, err)
		}
		values[key] = b
	}
	return s.state.PutMany(ctx, values)
}

// SaveIndex stores the current index. Unforced writes are throttled.
func (s *Store) SaveIndex(index int, force bool) {
	s.save(KeyIndex, index, force)
}

// SavePosition stores the playback position. Unforced writes are throttled.
func (s *Store) SavePosition(pos time.Duration, force bool) {
	s.save(KeyPosition, pos.Milliseconds(), force)
}

// SaveModes stores shuffle and repeat.
func (s *Store) SaveModes(ctx context.Context, shuffle bool, repeat player.RepeatMode) error {
	sb, err := state.Encode(shuffle)
	if err != nil {
		return err
	}
	rb, err := state.Encode(int(repeat))
	if err != nil {
		return err
	}
	return s.state.PutMany(ctx, map[string][]byte{KeyShuffle: sb, KeyRepeat: rb})
}

func (s *Store) save(key string, v any, force bool) {
	if force {
		s.throttle.Mark(key)
	} else if !s.throttle.Allow(key) {
		return
	}

	b, err := state.Encode(v)
	if err != nil {
		log.WithError(err).WithField("key", key).Warn("encoding resume value failed")
		return
	}
	if force {
		if err := s.state.Put(key, b); err != nil {
			log.WithError(err).WithField("key", key).Warn("saving resume value failed")
		}
		return
	}
	s.state.PutLater(key, b)
}

// Recover reads the saved session. It reports false when the queue was
// cleared, when tracks or extension ids are missing, or when no track
// survives. Tracks without an extension id are dropped; the current index is
// re-based onto the survivors and the position is reset if the current track
// itself was dropped.
func (s *Store) Recover() (Recovered, bool) {
	if state.GetJSON[bool](s.state, KeyCleared).OrElse(false) {
		return Recovered{}, false
	}
	tracks, ok := state.GetJSON[[]streamable.Track](s.state, KeyTracks).Get()
	if !ok {
		return Recovered{}, false
	}
	exts, ok := state.GetJSON[[]string](s.state, KeyExtensions).Get()
	if !ok {
		return Recovered{}, false
	}
	contexts := state.GetJSON[[]*streamable.Item](s.state, KeyContexts).OrEmpty()
	index := state.GetJSON[int](s.state, KeyIndex).OrElse(0)
	position := time.Duration(state.GetJSON[int64](s.state, KeyPosition).OrElse(0)) * time.Millisecond

	var (
		kept           []Saved
		newIndex       = 0
		currentDropped = false
	)
	for i, t := range tracks {
		ext := ""
		if i < len(exts) {
			ext = strings.TrimSpace(exts[i])
		}
		if ext == "" {
			if i == index {
				currentDropped = true
			}
			continue
		}
		if i < index {
			newIndex++
		}
		var c *streamable.Item
		if i < len(contexts) {
			c = contexts[i]
		}
		kept = append(kept, Saved{ExtensionID: ext, Track: t, Context: c})
	}
	if len(kept) == 0 {
		return Recovered{}, false
	}
	if index < 0 || index >= len(tracks) {
		newIndex = 0
		position = 0
	}
	if currentDropped {
		position = 0
	}
	if dropped := len(tracks) - len(kept); dropped > 0 {
		log.Warnf("resume: dropped %d tracks without an extension", dropped)
	}

	return Recovered{
		Tracks:   kept,
		Index:    min(newIndex, len(kept)-1),
		Position: max(0, position),
		Shuffle:  state.GetJSON[bool](s.state, KeyShuffle).OrElse(false),
		Repeat:   player.RepeatMode(state.GetJSON[int](s.state, KeyRepeat).OrElse(int(player.RepeatOff))),
	}, true
}

// Flush writes any pending throttled values.
func (s *Store) Flush() error {
	return s.state.Flush()
}
