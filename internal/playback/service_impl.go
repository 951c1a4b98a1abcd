// internal/playback/service_impl.go
package playback

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/llehouerou/tides/internal/browse"
	"github.com/llehouerou/tides/internal/config"
	"github.com/llehouerou/tides/internal/errmsg"
	"github.com/llehouerou/tides/internal/event"
	"github.com/llehouerou/tides/internal/extension"
	"github.com/llehouerou/tides/internal/log"
	"github.com/llehouerou/tides/internal/mediasource"
	"github.com/llehouerou/tides/internal/player"
	"github.com/llehouerou/tides/internal/playlist"
	"github.com/llehouerou/tides/internal/radio"
	"github.com/llehouerou/tides/internal/resolve"
	"github.com/llehouerou/tides/internal/resume"
	"github.com/llehouerou/tides/internal/streamable"
)

// Resolver loads and resolves queue entries.
type Resolver interface {
	mediasource.Resolver
	Refresh(ctx context.Context, e *playlist.Entry) (streamable.Track, error)
}

// Verify implementations at compile time.
var (
	_ Service  = (*serviceImpl)(nil)
	_ Resolver = (*resolve.Resolver)(nil)
)

// Deps are the service's collaborators. Resume, Pages, Config and Errors are
// optional.
type Deps struct {
	Engine   player.Engine
	Queue    *playlist.Queue
	Resolver Resolver
	Gateway  extension.Gateway
	Resume   *resume.Store
	Pages    *browse.Pages
	Config   *config.Live
	Errors   *event.Topic[error]
}

type serviceImpl struct {
	mu sync.RWMutex

	// queueMu keeps the queue and the engine index-aligned: every queue
	// mutation and the matching engine mutation happen under it.
	queueMu sync.Mutex

	engine   *player.Shuffler
	queue    *playlist.Queue
	resolver Resolver
	gateway  extension.Gateway
	radio    *radio.Radio
	resume   *resume.Store
	config   *config.Live
	errors   *event.Topic[error]

	session   uuid.UUID
	sources   map[*playlist.Entry]*mediasource.Source
	lastEntry *playlist.Entry
	lastIndex int

	subs   []*Subscription
	subsMu sync.RWMutex

	done   chan struct{}
	closed bool
}

// New creates a new playback service. The engine is wrapped in a
// player.Shuffler unless it already is one.
func New(d Deps) Service {
	engine, ok := d.Engine.(*player.Shuffler)
	if !ok {
		engine = player.NewShuffler(d.Engine)
	}
	if d.Config == nil {
		d.Config = config.NewLive(nil)
	}
	if d.Errors == nil {
		d.Errors = event.NewTopic[error]()
	}

	s := &serviceImpl{
		engine:    engine,
		queue:     d.Queue,
		resolver:  d.Resolver,
		gateway:   d.Gateway,
		resume:    d.Resume,
		config:    d.Config,
		errors:    d.Errors,
		session:   uuid.New(),
		sources:   make(map[*playlist.Entry]*mediasource.Source),
		lastIndex: -1,
		done:      make(chan struct{}),
	}
	s.radio = radio.New(d.Gateway, radioQueue{s}, d.Pages, d.Errors, func() bool {
		return s.config.Get().AutoStartRadio()
	})
	return s
}

// radioQueue lets the radio append through the service so the engine
// receives the same items as the queue.
type radioQueue struct{ s *serviceImpl }

func (q radioQueue) AddTracks(extensionID string, context *streamable.Item, tracks []streamable.Track, offset int) (int, []*player.MediaItem) {
	return q.s.enqueue(extensionID, context, tracks, offset)
}

func (q radioQueue) Len() int { return q.s.queue.Len() }

func (s *serviceImpl) logger() *log.Entry {
	return log.WithField("session", s.session.String())
}

// PayloadFor returns the media the engine should read for the item at index,
// blocking until it is resolved. A source that failed earlier is retried.
func (s *serviceImpl) PayloadFor(ctx context.Context, index int, st streamable.StreamType) (streamable.Media, error) {
	item := s.engine.MediaItemAt(index)
	if item == nil {
		return streamable.Media{}, &errmsg.TrackNotFoundError{TrackID: "#" + strconv.Itoa(index)}
	}
	e := s.queue.EntryForItem(item)
	if e == nil {
		return streamable.Media{}, &errmsg.TrackNotFoundError{TrackID: item.ID}
	}

	src := s.source(e)
	src.Retry()
	media, err := src.Payload(ctx, st)
	if err != nil {
		return streamable.Media{}, err
	}

	if index == s.engine.CurrentIndex() {
		s.prefetch(ctx, index+1)
	}
	return media, nil
}

func (s *serviceImpl) source(e *playlist.Entry) *mediasource.Source {
	s.mu.Lock()
	defer s.mu.Unlock()
	src, ok := s.sources[e]
	if !ok {
		src = mediasource.New(e, s.resolver, s.errors)
		s.sources[e] = src
	}
	return src
}

func (s *serviceImpl) lookupSource(e *playlist.Entry) *mediasource.Source {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sources[e]
}

// prefetch starts resolving the item at index without waiting for it.
func (s *serviceImpl) prefetch(ctx context.Context, index int) {
	e := s.queue.EntryForItem(s.engine.MediaItemAt(index))
	if e == nil {
		return
	}
	s.source(e).Prepare(ctx)
}

func (s *serviceImpl) dropSource(e *playlist.Entry) {
	s.mu.Lock()
	src, ok := s.sources[e]
	delete(s.sources, e)
	s.mu.Unlock()

	if ok {
		if err := src.Close(); err != nil {
			s.logger().WithError(err).Debug("closing source failed")
		}
	}
}

// pruneSources drops the sources of entries that left the queue.
func (s *serviceImpl) pruneSources() {
	s.mu.Lock()
	var gone []*playlist.Entry
	for e := range s.sources {
		if e.Removed() {
			gone = append(gone, e)
		}
	}
	s.mu.Unlock()

	for _, e := range gone {
		s.dropSource(e)
	}
}

// PlaylistChanged rebuilds the queue from the engine's playlist.
func (s *serviceImpl) PlaylistChanged() {
	s.queueMu.Lock()
	s.syncQueue()
	s.saveQueue(false)
	s.queueMu.Unlock()

	s.pruneSources()
	s.broadcastQueue()
}

// syncQueue aligns the queue with the engine's playlist order. Callers hold
// queueMu.
func (s *serviceImpl) syncQueue() {
	s.queue.UpdateQueue(player.IDs(s.engine.MediaItems()))
	s.queue.SetCurrentIndex(s.engine.CurrentIndex())
}

// Transition records the engine's new current item, saves progress, lets
// the radio continue an exhausted queue and emits a TrackChange.
func (s *serviceImpl) Transition(ctx context.Context) {
	s.queueMu.Lock()
	idx := s.engine.CurrentIndex()
	s.queue.SetCurrentIndex(idx)
	cur := s.queue.At(idx)
	s.queueMu.Unlock()

	s.mu.Lock()
	prev, prevIdx := s.lastEntry, s.lastIndex
	s.lastEntry, s.lastIndex = cur, idx
	s.mu.Unlock()

	s.saveProgress(true)
	if cur != nil {
		s.source(cur).Prepare(ctx)
	}

	if err := s.radio.OnTransition(ctx, cur, s.engine.HasNext()); err != nil {
		s.logger().WithError(err).Debug("radio did not continue")
	}

	s.broadcast(TrackChange{
		Previous:      trackFromEntry(prev),
		Current:       trackFromEntry(cur),
		PreviousIndex: prevIdx,
		Index:         idx,
	})
}

// Tick saves progress, throttled, and emits the position.
func (s *serviceImpl) Tick() {
	s.saveProgress(false)
	s.broadcast(PositionChange{Position: s.engine.Position()})
}

// Play inserts tracks offset positions after the current one and starts
// playing the first of them.
func (s *serviceImpl) Play(_ context.Context, extensionID string, context *streamable.Item, tracks []streamable.Track, offset int) {
	pos, items := s.enqueue(extensionID, context, tracks, offset)
	if len(items) == 0 {
		return
	}
	s.engine.SeekTo(pos, 0)
}

// Enqueue inserts tracks offset positions after the current one.
func (s *serviceImpl) Enqueue(extensionID string, context *streamable.Item, tracks []streamable.Track, offset int) {
	s.enqueue(extensionID, context, tracks, offset)
}

func (s *serviceImpl) enqueue(extensionID string, context *streamable.Item, tracks []streamable.Track, offset int) (int, []*player.MediaItem) {
	if len(tracks) == 0 {
		return 0, nil
	}
	s.queueMu.Lock()
	defer s.queueMu.Unlock()
	s.queue.SetCurrentIndex(s.engine.CurrentIndex())
	pos, items := s.queue.AddTracks(extensionID, context, tracks, offset)
	s.engine.AddMediaItems(pos, items)
	s.saveQueue(false)
	return pos, items
}

// Replace swaps the whole queue for tracks, starting at start. Any radio
// stops.
func (s *serviceImpl) Replace(extensionID string, context *streamable.Item, tracks []streamable.Track, start int) {
	entries := lo.Map(tracks, func(t streamable.Track, _ int) *playlist.Entry {
		return playlist.NewEntry(extensionID, t, context)
	})
	s.radio.Clear()

	s.queueMu.Lock()
	items := s.queue.Replace(entries, start)
	s.engine.SetMediaItems(items, start, 0)
	s.syncQueue()
	s.saveQueue(false)
	s.queueMu.Unlock()

	s.pruneSources()
}

// Remove deletes the item at index from the engine and the queue.
func (s *serviceImpl) Remove(index int) bool {
	s.queueMu.Lock()
	e := s.queue.At(index)
	if e == nil {
		s.queueMu.Unlock()
		return false
	}
	s.engine.RemoveMediaItems(index, index+1)
	s.queue.RemoveTrack(index)
	s.queue.SetCurrentIndex(s.engine.CurrentIndex())
	s.saveQueue(s.queue.Len() == 0)
	s.queueMu.Unlock()

	s.dropSource(e)
	return true
}

// Move moves the item at from to to in the engine and the queue.
func (s *serviceImpl) Move(from, to int) bool {
	s.queueMu.Lock()
	defer s.queueMu.Unlock()
	if !s.queue.MoveTrack(from, to) {
		return false
	}
	s.engine.MoveMediaItem(from, to)
	s.queue.SetCurrentIndex(s.engine.CurrentIndex())
	s.saveQueue(false)
	return true
}

// Clear empties the engine and the queue and stops the radio.
func (s *serviceImpl) Clear() {
	s.radio.Clear()

	s.queueMu.Lock()
	s.engine.ClearMediaItems()
	s.queue.Clear()
	s.saveQueue(true)
	s.queueMu.Unlock()

	s.mu.Lock()
	entries := lo.Keys(s.sources)
	s.mu.Unlock()
	for _, e := range entries {
		s.dropSource(e)
	}
}

// Refresh loads the track at index again. The engine item is updated in
// place when the previous stream selection is still valid; otherwise a fresh
// item replaces it and resolves again.
func (s *serviceImpl) Refresh(ctx context.Context, index int) (RefreshResult, error) {
	e := s.queue.At(index)
	if e == nil {
		return RefreshReplaced, &errmsg.TrackNotFoundError{TrackID: "#" + strconv.Itoa(index)}
	}

	var prev [3]int
	for st := streamable.Audio; st <= streamable.Subtitle; st++ {
		prev[st] = e.Index(st)
	}

	loaded, err := s.resolver.Refresh(ctx, e)
	if err != nil {
		return RefreshReplaced, err
	}
	for st := streamable.Audio; st <= streamable.Subtitle; st++ {
		if i := prev[st]; i >= 0 && i < len(loaded.Streams(st)) {
			e.Install(loaded, st, i)
		}
	}

	item := e.Rebuild()
	result := RefreshReplaced
	if src := s.lookupSource(e); src != nil && src.Update(item) {
		result = RefreshInPlace
	} else {
		s.dropSource(e)
	}
	if !s.replaceItem(e, item) {
		return result, &errmsg.TrackNotFoundError{TrackID: e.ID()}
	}

	s.logger().WithFields(log.Fields{"track": e.ID(), "result": result.String()}).Debug("track refreshed")
	return result, nil
}

// SetLiked likes or unlikes the track at index through its extension.
func (s *serviceImpl) SetLiked(ctx context.Context, index int, liked bool) error {
	e := s.queue.At(index)
	if e == nil {
		return &errmsg.TrackNotFoundError{TrackID: "#" + strconv.Itoa(index)}
	}
	client, ext, err := extension.Likes(s.gateway, e.ExtensionID)
	if err != nil {
		return err
	}

	track := e.Track
	if loaded, ok := e.LoadedTrack(); ok {
		track = loaded
	}
	if err := client.LikeTrack(ctx, track, liked); err != nil {
		return errmsg.Upstream(ext.Name(), errmsg.OpTrackLike, err)
	}

	e.SetLiked(liked)
	item := e.Rebuild()
	if src := s.lookupSource(e); src != nil {
		src.Update(item)
	}
	s.replaceItem(e, item)
	return nil
}

// replaceItem swaps the engine item of e, wherever e sits now. It reports
// false when e left the queue in the meantime.
func (s *serviceImpl) replaceItem(e *playlist.Entry, item *player.MediaItem) bool {
	s.queueMu.Lock()
	defer s.queueMu.Unlock()
	index := lo.IndexOf(s.queue.Entries(), e)
	if index < 0 {
		return false
	}
	s.engine.ReplaceMediaItem(index, item)
	return true
}

// StartRadio replaces any running radio with one seeded from seed and
// appends its first track.
func (s *serviceImpl) StartRadio(ctx context.Context, extensionID string, seed streamable.Item) error {
	if err := s.radio.Start(ctx, extensionID, seed, -1); err != nil {
		return err
	}
	return s.radio.Advance(ctx)
}

// Radio returns the radio state.
func (s *serviceImpl) Radio() radio.State {
	return s.radio.State()
}

// RepeatMode returns the current repeat mode.
func (s *serviceImpl) RepeatMode() player.RepeatMode {
	return s.engine.RepeatMode()
}

// SetRepeatMode changes the repeat mode.
func (s *serviceImpl) SetRepeatMode(mode player.RepeatMode) {
	s.engine.SetRepeatMode(mode)
	s.modesChanged()
}

// Shuffle returns whether shuffle is enabled.
func (s *serviceImpl) Shuffle() bool {
	return s.engine.ShuffleModeEnabled()
}

// SetShuffle toggles shuffle. Turning it off restores the original order.
func (s *serviceImpl) SetShuffle(enabled bool) {
	if s.engine.ShuffleModeEnabled() == enabled {
		return
	}
	s.queueMu.Lock()
	s.engine.SetShuffleModeEnabled(enabled)
	s.syncQueue()
	s.saveQueue(false)
	s.queueMu.Unlock()

	s.broadcastQueue()
	s.modesChanged()
}

func (s *serviceImpl) modesChanged() {
	e := ModeChange{RepeatMode: s.engine.RepeatMode(), Shuffle: s.engine.ShuffleModeEnabled()}
	if s.resume != nil {
		if err := s.resume.SaveModes(context.Background(), e.Shuffle, e.RepeatMode); err != nil {
			s.logger().WithError(err).Warn("saving modes failed")
		}
	}
	s.broadcast(e)
}

// CurrentTrack returns the current track, or nil if none.
func (s *serviceImpl) CurrentTrack() *Track {
	return trackFromEntry(s.queue.At(s.engine.CurrentIndex()))
}

// QueueTracks returns a copy of all tracks in the queue.
func (s *serviceImpl) QueueTracks() []Track {
	return tracksFromEntries(s.queue.Entries())
}

// QueueCurrentIndex returns the current queue index (-1 if none).
func (s *serviceImpl) QueueCurrentIndex() int {
	return s.queue.CurrentIndex.Get()
}

// Position returns the current playback position.
func (s *serviceImpl) Position() time.Duration {
	return s.engine.Position()
}

// Restore loads the saved session into the engine. It reports false when
// there is nothing to resume.
func (s *serviceImpl) Restore(ctx context.Context) bool {
	if s.resume == nil {
		return false
	}
	rec, ok := s.resume.Recover()
	if !ok {
		return false
	}

	s.queueMu.Lock()
	items := s.queue.Replace(rec.Entries(), rec.Index)
	s.engine.SetMediaItems(items, rec.Index, rec.Position)
	s.engine.SetRepeatMode(rec.Repeat)
	if rec.Shuffle {
		s.engine.SetShuffleModeEnabled(true)
	}
	s.syncQueue()
	s.queueMu.Unlock()

	s.mu.Lock()
	s.lastEntry = s.queue.Current()
	s.lastIndex = s.engine.CurrentIndex()
	s.mu.Unlock()

	if cur := s.queue.Current(); cur != nil {
		s.source(cur).Prepare(ctx)
	}
	s.logger().WithFields(log.Fields{
		"tracks":   len(rec.Tracks),
		"index":    rec.Index,
		"position": rec.Position.String(),
	}).Info("session restored")
	s.broadcastQueue()
	return true
}

// ShouldCloseOnTaskRemoved reports whether the host should stop playback
// when its task goes away.
func (s *serviceImpl) ShouldCloseOnTaskRemoved() bool {
	return s.config.Get().CloseOnTaskRemoved()
}

// saveQueue persists the queue in unshuffled order.
func (s *serviceImpl) saveQueue(cleared bool) {
	if s.resume == nil {
		return
	}
	entries := lo.FilterMap(s.engine.Original(), func(it *player.MediaItem, _ int) (*playlist.Entry, bool) {
		e := s.queue.EntryForItem(it)
		return e, e != nil
	})
	if err := s.resume.SaveQueue(context.Background(), entries, cleared); err != nil {
		s.logger().WithError(err).Warn(errmsg.Format(errmsg.OpQueueSave, err))
	}
	s.saveProgress(true)
}

func (s *serviceImpl) saveProgress(force bool) {
	if s.resume == nil {
		return
	}
	s.resume.SaveIndex(s.originalIndex(), force)
	s.resume.SavePosition(s.engine.Position(), force)
}

// originalIndex is the current item's position in the unshuffled order.
func (s *serviceImpl) originalIndex() int {
	cur := s.engine.MediaItemAt(s.engine.CurrentIndex())
	if cur == nil {
		return 0
	}
	return max(0, lo.IndexOf(s.engine.Original(), cur))
}

// broadcast offers e to every subscriber.
func (s *serviceImpl) broadcast(e any) {
	s.subsMu.RLock()
	defer s.subsMu.RUnlock()
	for _, sub := range s.subs {
		sub.publish(e)
	}
}

func (s *serviceImpl) broadcastQueue() {
	s.broadcast(QueueChange{Tracks: s.QueueTracks(), Index: s.queue.CurrentIndex.Get()})
}

func (s *serviceImpl) broadcastError(err error) {
	op := errmsg.OpPlaybackStart
	var up *errmsg.UpstreamError
	if errors.As(err, &up) {
		op = up.Op
	}
	s.broadcast(ErrorEvent{Op: op, Message: errmsg.Format(op, err), Err: err})
}

// Run forwards queue broadcasts and user-facing errors to subscribers until
// ctx ends or the service closes.
func (s *serviceImpl) Run(ctx context.Context) error {
	errs, cancelErrs := s.errors.Subscribe()
	defer cancelErrs()
	added, cancelAdded := s.queue.Added.Subscribe()
	defer cancelAdded()
	removed, cancelRemoved := s.queue.Removed.Subscribe()
	defer cancelRemoved()
	moved, cancelMoved := s.queue.Moved.Subscribe()
	defer cancelMoved()
	cleared, cancelCleared := s.queue.Cleared.Subscribe()
	defer cancelCleared()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.done:
			return nil
		case err, ok := <-errs:
			if !ok {
				return nil
			}
			if errmsg.IsUserFacing(err) {
				s.broadcastError(err)
			}
		case <-added:
			s.broadcastQueue()
		case <-removed:
			s.broadcastQueue()
		case <-moved:
			s.broadcastQueue()
		case <-cleared:
			s.broadcastQueue()
		}
	}
}

// Subscribe creates a new event subscription.
func (s *serviceImpl) Subscribe() *Subscription {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	sub := newSubscription()
	s.subs = append(s.subs, sub)
	return sub
}

// Close flushes resumption state and shuts down the service.
func (s *serviceImpl) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.done)
	entries := lo.Keys(s.sources)
	s.mu.Unlock()

	for _, e := range entries {
		s.dropSource(e)
	}

	var err error
	if s.resume != nil {
		s.saveProgress(true)
		err = s.resume.Flush()
	}

	s.subsMu.Lock()
	for _, sub := range s.subs {
		sub.close()
	}
	s.subs = nil
	s.subsMu.Unlock()

	return err
}
