// Package mediasource represents one queue position to the native engine.
//
// A Source resolves its entry lazily, the first time the engine needs data,
// and then decides how the item is delivered. The engine's data callback is
// synchronous, so Await and Payload block on the asynchronous resolution.
package mediasource

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/llehouerou/tides/internal/errmsg"
	"github.com/llehouerou/tides/internal/event"
	"github.com/llehouerou/tides/internal/log"
	"github.com/llehouerou/tides/internal/player"
	"github.com/llehouerou/tides/internal/playlist"
	"github.com/llehouerou/tides/internal/resolve"
	"github.com/llehouerou/tides/internal/streamable"
)

// State is the resolution state of a Source.
type State int

const (
	Unresolved State = iota
	Resolving
	Resolved
	Failed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Unresolved:
		return "unresolved"
	case Resolving:
		return "resolving"
	case Resolved:
		return "resolved"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Resolver is the subset of resolve.Resolver a Source needs.
type Resolver interface {
	LoadTrack(ctx context.Context, e *playlist.Entry) (streamable.Track, error)
	Resolve(ctx context.Context, e *playlist.Entry, st streamable.StreamType, index int) (resolve.Resolved, error)
}

// Resolution is a completed resolution.
type Resolution struct {
	RequestID uuid.UUID
	Track     streamable.Track
	Audio     *resolve.Resolved
	Video     *resolve.Resolved
	Subtitle  *resolve.Resolved
	Path      Path
}

// Tracks lists the feeds the engine must consume for this resolution.
func (r Resolution) Tracks() []Feed {
	var feeds []Feed
	switch r.Path {
	case AudioOnly:
		if r.Audio != nil {
			feeds = append(feeds, Feed{Media: r.Audio.Media, Type: streamable.Audio})
		}
	case AudioThroughVideo:
		feeds = append(feeds, Feed{Media: r.Video.Media, Type: streamable.Video})
	case AudioWithVisual:
		if r.Audio != nil {
			feeds = append(feeds, Feed{Media: r.Audio.Media, Type: streamable.Audio})
		}
		feeds = append(feeds, Feed{Media: r.Video.Media, Type: streamable.Video, Muted: true, Loop: r.Video.Media.Looping})
	case Merged:
		feeds = append(feeds,
			Feed{Media: r.Audio.Media, Type: streamable.Audio},
			Feed{Media: r.Video.Media, Type: streamable.Video, Muted: true},
		)
	}
	if r.Subtitle != nil {
		feeds = append(feeds, Feed{Media: r.Subtitle.Media, Type: streamable.Subtitle})
	}
	return feeds
}

// ErrClosed is returned for payload requests on a closed source.
var ErrClosed = errors.New("media source closed")

// Source is the engine-facing handle of one queue entry.
type Source struct {
	entry    *playlist.Entry
	resolver Resolver
	errs     *event.Topic[error]

	mu     sync.Mutex
	item   *player.MediaItem
	state  State
	last   *attempt
	res    Resolution
	closed bool
}

// attempt is one resolution run. res and err are written before done is
// closed.
type attempt struct {
	done chan struct{}
	res  Resolution
	err  error
}

// New creates an unresolved source. Resolution failures are published on errs.
func New(entry *playlist.Entry, resolver Resolver, errs *event.Topic[error]) *Source {
	return &Source{
		entry:    entry,
		resolver: resolver,
		errs:     errs,
		item:     entry.Item(),
	}
}

// Entry returns the queue entry.
func (s *Source) Entry() *playlist.Entry {
	return s.entry
}

// Item returns the native item the source currently represents.
func (s *Source) Item() *player.MediaItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.item
}

// State returns the resolution state.
func (s *Source) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Prepare starts resolution if it has not started yet. It does not block;
// the returned channel is closed once the current attempt completes.
func (s *Source) Prepare(ctx context.Context) <-chan struct{} {
	return s.start(ctx).done
}

func (s *Source) start(ctx context.Context) *attempt {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		a := &attempt{done: make(chan struct{}), err: ErrClosed}
		close(a.done)
		return a
	}
	if s.state != Unresolved {
		return s.last
	}
	s.state = Resolving
	s.last = &attempt{done: make(chan struct{})}
	meta := s.item.Meta()
	go s.run(context.WithoutCancel(ctx), meta, s.last)
	return s.last
}

func (s *Source) run(ctx context.Context, meta player.Meta, a *attempt) {
	defer close(a.done)

	res, err := s.resolve(ctx, meta)

	s.mu.Lock()
	closed := s.closed
	switch {
	case closed:
		s.state = Unresolved
		a.err = ErrClosed
	case err != nil:
		s.state = Failed
		a.err = err
	default:
		s.state = Resolved
		s.res = res
		a.res = res
	}
	s.mu.Unlock()

	fields := log.Fields{"request": res.RequestID.String(), "track": s.entry.ID()}
	if closed || err != nil {
		if cerr := release(res); cerr != nil {
			log.WithFields(fields).WithError(cerr).Debug("releasing payloads failed")
		}
	}
	if closed {
		log.WithFields(fields).Debug("source closed during resolution")
		return
	}
	if err != nil {
		log.WithFields(fields).WithError(err).Warn("resolution failed")
		if s.errs != nil {
			s.errs.Publish(err)
		}
		return
	}
	log.WithFields(fields).WithField("path", res.Path.String()).Debug("resolved")
}

// resolve runs audio, then video, then subtitle resolution. The first error
// wins.
func (s *Source) resolve(ctx context.Context, meta player.Meta) (Resolution, error) {
	res := Resolution{RequestID: uuid.New()}

	track, err := s.resolver.LoadTrack(ctx, s.entry)
	if err != nil {
		return res, err
	}
	res.Track = track

	if len(track.Audio) == 0 && len(track.Video) == 0 {
		return res, &errmsg.NoStreamsFoundError{TrackID: track.ID, Type: streamable.Audio.String()}
	}

	steps := []struct {
		st    streamable.StreamType
		index int
		out   **resolve.Resolved
	}{
		{streamable.Audio, meta.AudioIndex, &res.Audio},
		{streamable.Video, meta.VideoIndex, &res.Video},
		{streamable.Subtitle, meta.SubtitleIndex, &res.Subtitle},
	}
	for _, step := range steps {
		if len(track.Streams(step.st)) == 0 {
			continue
		}
		r, err := s.resolver.Resolve(ctx, s.entry, step.st, step.index)
		if err != nil {
			return res, err
		}
		*step.out = &r
	}

	res.Path = Decide(media(res.Audio), media(res.Video))
	return res, nil
}

func media(r *resolve.Resolved) *streamable.Media {
	if r == nil {
		return nil
	}
	return &r.Media
}

// Await starts resolution if needed and blocks until it completes or ctx ends.
func (s *Source) Await(ctx context.Context) (Resolution, error) {
	a := s.start(ctx)

	select {
	case <-a.done:
	case <-ctx.Done():
		return Resolution{}, ctx.Err()
	}
	if a.err != nil {
		return Resolution{}, a.err
	}
	return a.res, nil
}

// Payload returns the media the engine should read for st.
func (s *Source) Payload(ctx context.Context, st streamable.StreamType) (streamable.Media, error) {
	res, err := s.Await(ctx)
	if err != nil {
		return streamable.Media{}, err
	}

	var r *resolve.Resolved
	switch st {
	case streamable.Audio:
		r = res.Audio
		if res.Path == AudioThroughVideo {
			r = res.Video
		}
	case streamable.Video:
		r = res.Video
	case streamable.Subtitle:
		r = res.Subtitle
	}
	if r == nil {
		return streamable.Media{}, &errmsg.NoStreamsFoundError{TrackID: s.entry.ID(), Type: st.String()}
	}
	return r.Media, nil
}

// CanUpdate reports whether item can replace the current one in place: its
// audio, video and subtitle indices must match the current selection, which
// is the resolved one once resolution succeeded.
func (s *Source) CanUpdate(item *player.MediaItem) bool {
	if item == nil {
		return false
	}
	s.mu.Lock()
	trackID := s.item.Meta().Track.ID
	cur := s.indicesLocked()
	s.mu.Unlock()

	next := item.Meta()
	return next.Track.ID == trackID &&
		next.AudioIndex == cur[streamable.Audio] &&
		next.VideoIndex == cur[streamable.Video] &&
		next.SubtitleIndex == cur[streamable.Subtitle]
}

func (s *Source) indicesLocked() [3]int {
	if s.state == Resolved {
		return [3]int{selected(s.res.Audio), selected(s.res.Video), selected(s.res.Subtitle)}
	}
	m := s.item.Meta()
	return [3]int{m.AudioIndex, m.VideoIndex, m.SubtitleIndex}
}

func selected(r *resolve.Resolved) int {
	if r == nil {
		return -1
	}
	return r.Index
}

// Update re-points the source to item without touching its resolution. It
// returns false when the caller must insert a fresh item instead.
func (s *Source) Update(item *player.MediaItem) bool {
	if !s.CanUpdate(item) {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.item = item
	return true
}

// Retry makes a failed source resolvable again.
func (s *Source) Retry() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Failed {
		return false
	}
	s.state = Unresolved
	return true
}

// Close releases the resolved payloads. A resolution still in flight
// releases its own payloads when it completes.
func (s *Source) Close() error {
	s.mu.Lock()
	s.closed = true
	res := s.res
	s.res = Resolution{}
	if s.state == Resolved {
		s.state = Unresolved
	}
	s.mu.Unlock()

	return release(res)
}

func release(res Resolution) error {
	var errs []error
	for _, r := range []*resolve.Resolved{res.Audio, res.Video, res.Subtitle} {
		if r != nil {
			errs = append(errs, streamable.Close(r.Media.Payload))
		}
	}
	return errors.Join(errs...)
}

// HandleRefreshError applies the refresh error policy with the source's
// error topic.
func (s *Source) HandleRefreshError(err error) error {
	return HandleRefreshError(s.errs, err)
}
