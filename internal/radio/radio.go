// Package radio continues playback with extension-provided radio playlists
// when the queue runs out.
//
// A radio is seeded from a track, album, artist or playlist. Its tracks are
// appended to the queue one at a time as playback reaches the end of the
// queue. When the radio playlist is exhausted the next page is loaded if the
// extension offered one; otherwise the radio re-seeds itself from the last
// played track.
package radio

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/llehouerou/tides/internal/browse"
	"github.com/llehouerou/tides/internal/errmsg"
	"github.com/llehouerou/tides/internal/event"
	"github.com/llehouerou/tides/internal/extension"
	"github.com/llehouerou/tides/internal/log"
	"github.com/llehouerou/tides/internal/player"
	"github.com/llehouerou/tides/internal/playlist"
	"github.com/llehouerou/tides/internal/streamable"
)

// Status is the radio state machine's position.
type Status int

const (
	Empty Status = iota
	Loading
	Loaded
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case Empty:
		return "empty"
	case Loading:
		return "loading"
	case Loaded:
		return "loaded"
	default:
		return "unknown"
	}
}

// State is a snapshot of the radio.
type State struct {
	Status      Status
	ExtensionID string
	Seed        streamable.Item
	Radio       streamable.Item // the radio playlist
	Tracks      []streamable.Track
	Played      int // index of the last track appended to the queue
	NextPage    int // page LoadRadioTracks returns next, 0 when none remains
}

// Queue is where radio tracks go. The radio never touches the engine.
type Queue interface {
	AddTracks(extensionID string, context *streamable.Item, tracks []streamable.Track, offset int) (int, []*player.MediaItem)
	Len() int
}

// Radio is the per-session radio engine.
type Radio struct {
	gateway   extension.Gateway
	queue     Queue
	pages     *browse.Pages
	messages  *event.Topic[error]
	autoStart func() bool

	mu    sync.Mutex
	state State
	gen   uint64 // bumped by Start and Clear to discard stale results

	Changed *event.Topic[State]
}

// New creates an empty radio. User-facing failures are published on
// messages; autoStart gates the end-of-queue trigger.
func New(gw extension.Gateway, q Queue, pages *browse.Pages, messages *event.Topic[error], autoStart func() bool) *Radio {
	if pages == nil {
		pages = browse.New(64)
	}
	if autoStart == nil {
		autoStart = func() bool { return true }
	}
	return &Radio{
		gateway:   gw,
		queue:     q,
		pages:     pages,
		messages:  messages,
		autoStart: autoStart,
		state:     State{Status: Empty, Played: -1},
		Changed:   event.NewTopic[State](),
	}
}

// State returns a snapshot of the radio.
func (r *Radio) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshot()
}

func (r *Radio) snapshot() State {
	s := r.state
	s.Tracks = slices.Clone(s.Tracks)
	return s
}

// set replaces the state if gen is still current and publishes it.
func (r *Radio) set(gen uint64, s State) bool {
	r.mu.Lock()
	if gen != r.gen {
		r.mu.Unlock()
		return false
	}
	r.state = s
	snap := r.snapshot()
	r.mu.Unlock()

	r.Changed.Publish(snap)
	return true
}

// Start seeds a radio from seed and loads its first page. startIndex is the
// played index to start from, -1 to start before the first track.
func (r *Radio) Start(ctx context.Context, extensionID string, seed streamable.Item, startIndex int) error {
	r.mu.Lock()
	r.gen++
	gen := r.gen
	r.mu.Unlock()

	fail := func(err error) error {
		r.set(gen, State{Status: Empty, Played: -1})
		r.report(err)
		return err
	}

	client, ext, err := extension.Radios(r.gateway, extensionID)
	if err != nil {
		return fail(err)
	}
	if seed.Kind == streamable.ItemUser {
		return fail(errmsg.ErrUserRadioUnsupported)
	}

	r.set(gen, State{Status: Loading, ExtensionID: extensionID, Seed: seed, Played: -1})

	radio, err := r.createRadio(ctx, client, seed)
	if err != nil {
		return fail(errmsg.Upstream(ext.Name(), errmsg.OpRadioStart, err))
	}

	page, err := client.LoadRadioTracks(ctx, radio, "")
	if err != nil {
		return fail(errmsg.Upstream(ext.Name(), errmsg.OpRadioStart, err))
	}
	if len(page.Tracks) == 0 {
		return fail(errmsg.ErrRadioPlaylistEmpty)
	}

	r.pages.Forget(radio.ID)
	next := 0
	if page.Continuation != "" {
		r.pages.Put(radio.ID, 1, page.Continuation)
		next = 1
	}

	startIndex = max(-1, min(startIndex, len(page.Tracks)-1))
	r.set(gen, State{
		Status:      Loaded,
		ExtensionID: extensionID,
		Seed:        seed,
		Radio:       radio,
		Tracks:      page.Tracks,
		Played:      startIndex,
		NextPage:    next,
	})
	log.WithFields(log.Fields{"extension": extensionID, "radio": radio.ID, "tracks": len(page.Tracks)}).
		Info("radio started")
	return nil
}

func (r *Radio) createRadio(ctx context.Context, client extension.RadioClient, seed streamable.Item) (streamable.Item, error) {
	switch seed.Kind {
	case streamable.ItemTrack:
		track := streamable.Track{ID: seed.ID, Title: seed.Title}
		if seed.Track != nil {
			track = *seed.Track
		}
		return client.RadioFromTrack(ctx, track, nil)
	case streamable.ItemAlbum:
		return client.RadioFromAlbum(ctx, seed)
	case streamable.ItemArtist:
		return client.RadioFromArtist(ctx, seed)
	case streamable.ItemPlaylist:
		return client.RadioFromPlaylist(ctx, seed)
	default:
		return streamable.Item{}, errmsg.ErrUserRadioUnsupported
	}
}

// Advance appends the next radio track to the queue. When the loaded tracks
// are exhausted it loads the next page, or re-seeds from the last played track.
func (r *Radio) Advance(ctx context.Context) error {
	r.mu.Lock()
	if r.state.Status != Loaded {
		r.mu.Unlock()
		return nil
	}
	if r.state.Played+1 < len(r.state.Tracks) {
		r.state.Played++
		s := r.snapshot()
		r.mu.Unlock()

		r.Changed.Publish(s)
		radio := s.Radio
		r.queue.AddTracks(s.ExtensionID, &radio, []streamable.Track{s.Tracks[s.Played]}, r.queue.Len())
		return nil
	}
	s := r.snapshot()
	gen := r.gen
	r.mu.Unlock()

	if s.NextPage > 0 {
		more, err := r.loadPage(ctx, s)
		if err != nil {
			log.WithError(err).Warn("loading next radio page failed, re-seeding")
		} else if len(more.Tracks) > len(s.Tracks) {
			if !r.set(gen, more) {
				return nil
			}
			return r.Advance(ctx)
		}
	}

	last := s.Tracks[max(0, s.Played)]
	if err := r.Start(ctx, s.ExtensionID, streamable.TrackItem(last), -1); err != nil {
		return err
	}
	return r.Advance(ctx)
}

// loadPage fetches s.NextPage and returns s with its tracks appended.
func (r *Radio) loadPage(ctx context.Context, s State) (State, error) {
	token, ok := r.pages.Get(s.Radio.ID, s.NextPage).Get()
	if !ok {
		return s, errPageForgotten
	}
	client, ext, err := extension.Radios(r.gateway, s.ExtensionID)
	if err != nil {
		return s, err
	}
	page, err := client.LoadRadioTracks(ctx, s.Radio, token)
	if err != nil {
		return s, errmsg.Upstream(ext.Name(), errmsg.OpRadioContinue, err)
	}

	s.Tracks = append(s.Tracks, page.Tracks...)
	if page.Continuation != "" {
		r.pages.Put(s.Radio.ID, s.NextPage+1, page.Continuation)
		s.NextPage++
	} else {
		s.NextPage = 0
	}
	return s, nil
}

// OnTransition is called when playback moves to a new track. When the
// engine has nothing queued after it and auto-start is on, the radio
// continues, starting from current if no radio is loaded.
func (r *Radio) OnTransition(ctx context.Context, current *playlist.Entry, hasNext bool) error {
	if hasNext || !r.autoStart() {
		return nil
	}

	switch r.State().Status {
	case Loaded:
		return r.Advance(ctx)
	case Empty:
		if current == nil {
			return nil
		}
		track := current.Track
		if loaded, ok := current.LoadedTrack(); ok {
			track = loaded
		}
		if err := r.Start(ctx, current.ExtensionID, streamable.TrackItem(track), -1); err != nil {
			return err
		}
		return r.Advance(ctx)
	default:
		// Already loading
		return nil
	}
}

// Clear stops the radio.
func (r *Radio) Clear() {
	r.mu.Lock()
	r.gen++
	gen := r.gen
	radioID := r.state.Radio.ID
	r.mu.Unlock()

	if radioID != "" {
		r.pages.Forget(radioID)
	}
	r.set(gen, State{Status: Empty, Played: -1})
}

func (r *Radio) report(err error) {
	log.WithError(err).Warn("radio failed")
	if r.messages != nil && errmsg.IsUserFacing(err) {
		r.messages.Publish(err)
	}
}

var errPageForgotten = errors.New("radio page token no longer cached")
