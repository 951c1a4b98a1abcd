// Package resolve turns queue entries into loaded tracks and concrete payloads.
//
// Resolution has three steps: load the track through its extension (or reuse
// a fresh cached copy), select one candidate streamable by quality
// preference, and ask the extension to materialize it. The loaded track and
// selected index are installed into the entry only once all three succeed.
package resolve

import (
	"context"
	"time"

	"github.com/llehouerou/tides/internal/errmsg"
	"github.com/llehouerou/tides/internal/extension"
	"github.com/llehouerou/tides/internal/log"
	"github.com/llehouerou/tides/internal/playlist"
	"github.com/llehouerou/tides/internal/streamable"
)

// Preferences returns the quality preference for a stream type. It is read
// on every resolution so configuration reloads apply to the next one.
type Preferences func(st streamable.StreamType) streamable.Quality

// Resolved is the outcome of a successful resolution.
type Resolved struct {
	Track streamable.Track // loaded track
	Type  streamable.StreamType
	Index int // selected candidate index
	Media streamable.Media
}

// Resolver resolves entries through the extension gateway.
type Resolver struct {
	gateway extension.Gateway
	cache   *Cache
	prefs   Preferences
	now     func() time.Time
}

// New creates a resolver. A nil cache disables caching; nil prefs select the
// first candidate.
func New(gw extension.Gateway, cache *Cache, prefs Preferences) *Resolver {
	if prefs == nil {
		prefs = func(streamable.StreamType) streamable.Quality { return streamable.QualityDefault }
	}
	return &Resolver{gateway: gw, cache: cache, prefs: prefs, now: time.Now}
}

// LoadTrack returns the entry's loaded track, loading it if needed, and
// installs it into the entry.
func (r *Resolver) LoadTrack(ctx context.Context, e *playlist.Entry) (streamable.Track, error) {
	e.LockResolution()
	defer e.UnlockResolution()

	loaded, stale, err := r.load(ctx, e)
	if err != nil {
		return streamable.Track{}, err
	}
	r.install(e, loaded, stale, streamable.Audio, -1)
	return loaded, nil
}

// LoadTrackByID loads a track by id outside of any queue entry.
func (r *Resolver) LoadTrackByID(ctx context.Context, extensionID, trackID string) (streamable.Track, error) {
	if r.cache != nil {
		if t, ok := r.cache.Get(extensionID, trackID); ok {
			return t, nil
		}
	}
	return r.fetch(ctx, extensionID, streamable.Track{ID: trackID})
}

// Resolve loads the entry's track, selects a candidate of type st and
// materializes it. A non-negative index overrides the quality preference.
//
// Concurrent calls for the same entry are serialized. If the entry was
// removed while resolving, the result is returned but not installed.
func (r *Resolver) Resolve(
	ctx context.Context,
	e *playlist.Entry,
	st streamable.StreamType,
	index int,
) (Resolved, error) {
	e.LockResolution()
	defer e.UnlockResolution()

	loaded, stale, err := r.load(ctx, e)
	if err != nil {
		return Resolved{}, err
	}

	if index < 0 {
		index = e.Index(st)
	}
	s, index, err := r.selectStream(loaded, st, index)
	if err != nil {
		return Resolved{}, err
	}

	media, err := r.materialize(ctx, e.ExtensionID, s)
	if err != nil {
		return Resolved{}, err
	}

	res := Resolved{Track: loaded, Type: st, Index: index, Media: media}
	if !r.install(e, loaded, stale, st, index) {
		log.WithFields(log.Fields{"track": e.ID(), "type": st.String()}).
			Debug("entry removed during resolution, result not installed")
	}
	return res, nil
}

// Refresh drops cached data for the entry and loads it again.
func (r *Resolver) Refresh(ctx context.Context, e *playlist.Entry) (streamable.Track, error) {
	e.LockResolution()
	defer e.UnlockResolution()

	if r.cache != nil {
		r.cache.Delete(e.ExtensionID, e.ID())
	}
	loaded, err := r.fetch(ctx, e.ExtensionID, e.Track)
	if err != nil {
		return streamable.Track{}, err
	}
	r.install(e, loaded, true, streamable.Audio, -1)
	return loaded, nil
}

// load returns a fresh loaded track for e. stale reports whether the
// entry's slot holds an outdated track that must be replaced.
func (r *Resolver) load(ctx context.Context, e *playlist.Entry) (loaded streamable.Track, stale bool, err error) {
	if t, ok := e.LoadedTrack(); ok {
		if !t.Expired(r.now()) {
			return t, false, nil
		}
		stale = true
	}

	if r.cache != nil {
		if t, ok := r.cache.Get(e.ExtensionID, e.ID()); ok {
			return t, stale, nil
		}
	}

	loaded, err = r.fetch(ctx, e.ExtensionID, e.Track)
	return loaded, stale, err
}

func (r *Resolver) fetch(ctx context.Context, extensionID string, track streamable.Track) (streamable.Track, error) {
	client, ext, err := extension.Tracks(r.gateway, extensionID)
	if err != nil {
		return streamable.Track{}, err
	}

	loaded, err := client.LoadTrack(ctx, track)
	if err != nil {
		return streamable.Track{}, errmsg.Upstream(ext.Name(), errmsg.OpTrackLoad, err)
	}
	if loaded.ID == "" {
		return streamable.Track{}, &errmsg.TrackNotFoundError{TrackID: track.ID}
	}

	if r.cache != nil {
		if err := r.cache.Put(extensionID, loaded); err != nil {
			log.WithError(err).WithField("track", loaded.ID).Warn("caching loaded track failed")
		}
	}
	return loaded, nil
}

func (r *Resolver) selectStream(loaded streamable.Track, st streamable.StreamType, index int) (streamable.Streamable, int, error) {
	list := loaded.Streams(st)
	if index >= 0 && index < len(list) {
		return list[index], index, nil
	}
	s, i, ok := streamable.Select(list, r.prefs(st))
	if !ok {
		return streamable.Streamable{}, -1, &errmsg.NoStreamsFoundError{TrackID: loaded.ID, Type: st.String()}
	}
	return s, i, nil
}

func (r *Resolver) materialize(ctx context.Context, extensionID string, s streamable.Streamable) (streamable.Media, error) {
	client, ext, err := extension.Tracks(r.gateway, extensionID)
	if err != nil {
		return streamable.Media{}, err
	}

	media, err := client.LoadStreamableMedia(ctx, s, false)
	if err != nil {
		return streamable.Media{}, errmsg.Upstream(ext.Name(), errmsg.OpStreamLoad, err)
	}
	if media.Payload == nil {
		return streamable.Media{}, errmsg.Upstream(ext.Name(), errmsg.OpStreamLoad, errNoPayload)
	}
	if media.Streamable.ID == "" {
		media.Streamable = s
	}
	return media, nil
}

func (r *Resolver) install(e *playlist.Entry, loaded streamable.Track, stale bool, st streamable.StreamType, index int) bool {
	if e.Removed() {
		return false
	}
	if stale {
		e.Invalidate()
	}
	return e.Install(loaded, st, index)
}
