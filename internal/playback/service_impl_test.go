// internal/playback/service_impl_test.go
package playback

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"testing/synctest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llehouerou/tides/internal/config"
	"github.com/llehouerou/tides/internal/errmsg"
	"github.com/llehouerou/tides/internal/event"
	"github.com/llehouerou/tides/internal/extension"
	"github.com/llehouerou/tides/internal/player"
	"github.com/llehouerou/tides/internal/playlist"
	"github.com/llehouerou/tides/internal/resolve"
	"github.com/llehouerou/tides/internal/resume"
	"github.com/llehouerou/tides/internal/state"
	"github.com/llehouerou/tides/internal/streamable"
)

type harness struct {
	engine *player.Mock
	queue  *playlist.Queue
	ext    *extension.Mock
	reg    *extension.Registry
	state  *state.Mock
	errors *event.Topic[error]
	svc    Service
}

func playable(id string) streamable.Track {
	return streamable.Track{
		ID:    id,
		Title: "Track " + id,
		Audio: []streamable.Streamable{{ID: id + "-audio", Type: streamable.Audio, Quality: 1}},
	}
}

// tracks registers playable tracks with the extension and returns their
// unloaded form, the way search results arrive.
func (h *harness) tracks(ids ...string) []streamable.Track {
	out := make([]streamable.Track, len(ids))
	for i, id := range ids {
		t := playable(id)
		h.ext.AddTrack(t)
		out[i] = t.Unloaded()
	}
	return out
}

func newHarness(t *testing.T, cfg *config.Config) *harness {
	t.Helper()
	h := &harness{
		engine: player.NewMock(),
		queue:  playlist.NewQueue(),
		ext:    extension.NewMock("ext"),
		reg:    extension.NewRegistry(),
		state:  state.NewMock(),
		errors: event.NewTopic[error](),
	}
	h.reg.Register(h.ext)
	h.svc = New(Deps{
		Engine:   h.engine,
		Queue:    h.queue,
		Resolver: resolve.New(h.reg, nil, nil),
		Gateway:  h.reg,
		Resume:   resume.New(h.state, 0),
		Config:   config.NewLive(cfg),
		Errors:   h.errors,
	})
	t.Cleanup(func() { _ = h.svc.Close() })
	return h
}

func engineIDs(e player.Engine) []string {
	return player.IDs(e.MediaItems())
}

func queueIDs(q *playlist.Queue) []string {
	var ids []string
	for _, e := range q.Entries() {
		ids = append(ids, e.ID())
	}
	return ids
}

func TestService_PlayInsertsAfterCurrent(t *testing.T) {
	h := newHarness(t, nil)

	h.svc.Play(context.Background(), "ext", nil, h.tracks("a", "b"), 0)
	if got := h.engine.CurrentIndex(); got != 0 {
		t.Fatalf("CurrentIndex() = %d, want 0", got)
	}

	h.svc.Play(context.Background(), "ext", nil, h.tracks("c"), 0)

	assert.Equal(t, []string{"a", "c", "b"}, engineIDs(h.engine))
	assert.Equal(t, engineIDs(h.engine), queueIDs(h.queue))
	assert.Equal(t, 1, h.engine.CurrentIndex())
	assert.Equal(t, []int{0, 1}, h.engine.SeekCalls())
}

func TestService_EnqueueDoesNotSeek(t *testing.T) {
	h := newHarness(t, nil)
	h.svc.Play(context.Background(), "ext", nil, h.tracks("a"), 0)

	h.svc.Enqueue("ext", nil, h.tracks("b", "c"), 0)
	h.svc.Enqueue("ext", nil, h.tracks("d"), 0)

	assert.Equal(t, []string{"a", "d", "b", "c"}, engineIDs(h.engine))
	assert.Equal(t, engineIDs(h.engine), queueIDs(h.queue))
	assert.Equal(t, 0, h.engine.CurrentIndex())
	assert.Len(t, h.engine.SeekCalls(), 1)
}

func TestService_ConcurrentEnqueueStaysAligned(t *testing.T) {
	h := newHarness(t, nil)
	h.svc.Play(context.Background(), "ext", nil, h.tracks("a", "b", "c"), 0)

	const workers, calls = 4, 30
	batches := make([][]streamable.Track, workers*calls)
	for i := range batches {
		batches[i] = h.tracks(fmt.Sprintf("g%d-%d", i/calls, i%calls))
	}

	var wg sync.WaitGroup
	for w := range workers {
		wg.Go(func() {
			offset := 0
			if w%2 == 1 {
				offset = 1000
			}
			for i := range calls {
				h.svc.Enqueue("ext", nil, batches[w*calls+i], offset)
			}
		})
	}
	wg.Wait()

	require.Len(t, engineIDs(h.engine), 3+workers*calls)
	assert.Equal(t, engineIDs(h.engine), queueIDs(h.queue))
}

func TestService_PayloadFor(t *testing.T) {
	h := newHarness(t, nil)
	h.svc.Play(context.Background(), "ext", nil, h.tracks("a", "b"), 0)

	media, err := h.svc.PayloadFor(context.Background(), 0, streamable.Audio)
	require.NoError(t, err)
	assert.Equal(t, streamable.HTTP{URL: "https://ext/a-audio"}, media.Payload)

	e := h.queue.At(0)
	assert.Equal(t, 0, e.Index(streamable.Audio))
	loaded, ok := e.LoadedTrack()
	require.True(t, ok)
	assert.True(t, loaded.IsLoaded())
}

func TestService_PayloadForUnknownIndex(t *testing.T) {
	h := newHarness(t, nil)

	_, err := h.svc.PayloadFor(context.Background(), 3, streamable.Audio)

	var notFound *errmsg.TrackNotFoundError
	assert.True(t, errors.As(err, &notFound), "got %v", err)
}

func TestService_PayloadForRetriesFailedSource(t *testing.T) {
	h := newHarness(t, nil)
	h.svc.Play(context.Background(), "ext", nil, h.tracks("a"), 0)

	fail := true
	h.ext.OnLoadTrack = func(_ context.Context, t streamable.Track) (streamable.Track, error) {
		if fail {
			return streamable.Track{}, errors.New("offline")
		}
		return playable(t.ID), nil
	}

	_, err := h.svc.PayloadFor(context.Background(), 0, streamable.Audio)
	require.Error(t, err)

	fail = false
	media, err := h.svc.PayloadFor(context.Background(), 0, streamable.Audio)
	require.NoError(t, err)
	assert.NotNil(t, media.Payload)
}

func TestService_TransitionEmitsAndSaves(t *testing.T) {
	h := newHarness(t, nil)
	sub := h.svc.Subscribe()
	ctx := context.Background()

	h.svc.Play(ctx, "ext", nil, h.tracks("a", "b"), 0)
	h.svc.Transition(ctx)

	h.engine.Advance()
	h.engine.SetPosition(12 * time.Second)
	h.svc.Transition(ctx)

	first := <-sub.TrackChanged
	assert.Nil(t, first.Previous)
	assert.Equal(t, "a", first.Current.ID)

	second := <-sub.TrackChanged
	assert.Equal(t, "a", second.Previous.ID)
	assert.Equal(t, "b", second.Current.ID)
	assert.Equal(t, 0, second.PreviousIndex)
	assert.Equal(t, 1, second.Index)

	assert.Equal(t, 1, h.queue.CurrentIndex.Get())
	assert.Equal(t, 1, state.GetJSON[int](h.state, resume.KeyIndex).OrElse(-1))
	assert.Equal(t, int64(12000), state.GetJSON[int64](h.state, resume.KeyPosition).OrElse(-1))
}

func TestService_TransitionStartsRadio(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	h.ext.SetRadio("a", h.tracks("r1", "r2"))

	h.svc.Play(ctx, "ext", nil, h.tracks("a"), 0)
	h.svc.Transition(ctx)

	assert.Equal(t, []string{"a", "r1"}, engineIDs(h.engine))
	assert.Equal(t, engineIDs(h.engine), queueIDs(h.queue))

	h.engine.Advance()
	h.svc.Transition(ctx)

	assert.Equal(t, []string{"a", "r1", "r2"}, engineIDs(h.engine))
	assert.Equal(t, 1, h.svc.Radio().Played)
}

func TestService_TransitionRadioDisabled(t *testing.T) {
	off := false
	h := newHarness(t, &config.Config{Playback: config.PlaybackConfig{AutoStartRadio: &off}})
	ctx := context.Background()
	h.ext.SetRadio("a", h.tracks("r1"))

	h.svc.Play(ctx, "ext", nil, h.tracks("a"), 0)
	h.svc.Transition(ctx)

	assert.Equal(t, []string{"a"}, engineIDs(h.engine))
	assert.Equal(t, 0, h.ext.RadioCalls())
}

func TestService_StartRadio(t *testing.T) {
	h := newHarness(t, nil)
	h.ext.SetRadio("al1", h.tracks("x", "y"))

	err := h.svc.StartRadio(context.Background(), "ext", streamable.Item{Kind: streamable.ItemAlbum, ID: "al1"})
	require.NoError(t, err)

	assert.Equal(t, []string{"x"}, engineIDs(h.engine))
	ctxItem := h.queue.At(0).Context
	require.NotNil(t, ctxItem)
	assert.Equal(t, "radio:al1", ctxItem.ID)
}

func TestService_RemoveAndMoveStayAligned(t *testing.T) {
	h := newHarness(t, nil)
	h.svc.Play(context.Background(), "ext", nil, h.tracks("a", "b", "c", "d"), 0)

	require.True(t, h.svc.Move(3, 0))
	assert.Equal(t, []string{"d", "a", "b", "c"}, engineIDs(h.engine))
	assert.Equal(t, engineIDs(h.engine), queueIDs(h.queue))

	require.True(t, h.svc.Remove(2))
	assert.Equal(t, []string{"d", "a", "c"}, engineIDs(h.engine))
	assert.Equal(t, engineIDs(h.engine), queueIDs(h.queue))
	assert.Equal(t, h.engine.CurrentIndex(), h.queue.CurrentIndex.Get())

	assert.False(t, h.svc.Remove(9))
	assert.False(t, h.svc.Move(0, 9))

	saved := state.GetJSON[[]streamable.Track](h.state, resume.KeyTracks).OrEmpty()
	assert.Len(t, saved, 3)
}

func TestService_ClearMarksCleared(t *testing.T) {
	h := newHarness(t, nil)
	h.svc.Play(context.Background(), "ext", nil, h.tracks("a", "b"), 0)
	first := h.queue.At(0)

	h.svc.Clear()

	assert.Zero(t, h.engine.MediaItemCount())
	assert.Zero(t, h.queue.Len())
	assert.True(t, first.Removed())
	assert.True(t, state.GetJSON[bool](h.state, resume.KeyCleared).OrElse(false))
}

func TestService_Replace(t *testing.T) {
	h := newHarness(t, nil)
	h.svc.Play(context.Background(), "ext", nil, h.tracks("a"), 0)
	old := h.queue.At(0)

	album := &streamable.Item{Kind: streamable.ItemAlbum, ID: "al"}
	h.svc.Replace("ext", album, h.tracks("x", "y", "z"), 1)

	assert.Equal(t, []string{"x", "y", "z"}, engineIDs(h.engine))
	assert.Equal(t, 1, h.engine.CurrentIndex())
	assert.Equal(t, 1, h.queue.CurrentIndex.Get())
	assert.True(t, old.Removed())
	assert.Equal(t, "al", h.queue.At(2).Context.ID)
}

func TestService_ShuffleRoundTrip(t *testing.T) {
	h := newHarness(t, nil)
	sub := h.svc.Subscribe()
	ids := []string{"a", "b", "c", "d", "e", "f"}
	h.svc.Play(context.Background(), "ext", nil, h.tracks(ids...), 0)

	h.svc.SetShuffle(true)
	assert.True(t, h.svc.Shuffle())
	assert.ElementsMatch(t, ids, engineIDs(h.engine))
	assert.Equal(t, engineIDs(h.engine), queueIDs(h.queue))
	assert.Equal(t, "a", h.engine.MediaItemAt(h.engine.CurrentIndex()).ID)

	h.svc.SetShuffle(false)
	assert.Equal(t, ids, engineIDs(h.engine))
	assert.Equal(t, ids, queueIDs(h.queue))

	m := <-sub.ModeChanged
	assert.True(t, m.Shuffle)
	m = <-sub.ModeChanged
	assert.False(t, m.Shuffle)
}

func TestService_RepeatModeSaved(t *testing.T) {
	h := newHarness(t, nil)

	h.svc.SetRepeatMode(player.RepeatOne)

	assert.Equal(t, player.RepeatOne, h.svc.RepeatMode())
	assert.Equal(t, int(player.RepeatOne), state.GetJSON[int](h.state, resume.KeyRepeat).OrElse(-1))
}

func TestService_Restore(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	album := &streamable.Item{Kind: streamable.ItemAlbum, ID: "al"}
	h.svc.Play(ctx, "ext", album, h.tracks("a", "b", "c"), 0)
	h.engine.SeekTo(2, 30*time.Second)
	h.svc.Transition(ctx)
	h.svc.SetRepeatMode(player.RepeatAll)

	engine := player.NewMock()
	queue := playlist.NewQueue()
	restored := New(Deps{
		Engine:   engine,
		Queue:    queue,
		Resolver: resolve.New(h.reg, nil, nil),
		Gateway:  h.reg,
		Resume:   resume.New(h.state, 0),
	})
	defer restored.Close()

	require.True(t, restored.Restore(ctx))
	assert.Equal(t, []string{"a", "b", "c"}, engineIDs(engine))
	assert.Equal(t, 2, engine.CurrentIndex())
	assert.Equal(t, 30*time.Second, engine.Position())
	assert.Equal(t, player.RepeatAll, engine.RepeatMode())
	assert.Equal(t, "al", queue.At(0).Context.ID)
	assert.Equal(t, "c", restored.CurrentTrack().ID)
}

func TestService_RestoreNothingSaved(t *testing.T) {
	h := newHarness(t, nil)

	assert.False(t, h.svc.Restore(context.Background()))
	assert.Zero(t, h.engine.MediaItemCount())
}

func TestService_RestoreShuffledKeepsOriginalOrder(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	ids := []string{"a", "b", "c", "d", "e"}
	h.svc.Play(ctx, "ext", nil, h.tracks(ids...), 0)
	h.svc.SetShuffle(true)

	saved := state.GetJSON[[]streamable.Track](h.state, resume.KeyTracks).OrEmpty()
	savedIDs := make([]string, len(saved))
	for i, tr := range saved {
		savedIDs[i] = tr.ID
	}
	assert.Equal(t, ids, savedIDs, "the unshuffled order is persisted")

	engine := player.NewMock()
	queue := playlist.NewQueue()
	restored := New(Deps{
		Engine:   engine,
		Queue:    queue,
		Resolver: resolve.New(h.reg, nil, nil),
		Gateway:  h.reg,
		Resume:   resume.New(h.state, 0),
	})
	defer restored.Close()

	require.True(t, restored.Restore(ctx))
	assert.True(t, restored.Shuffle())
	assert.Equal(t, engineIDs(engine), queueIDs(queue))

	restored.SetShuffle(false)
	assert.Equal(t, ids, engineIDs(engine))
}

func TestService_RefreshInPlace(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	h.svc.Play(ctx, "ext", nil, h.tracks("a"), 0)
	_, err := h.svc.PayloadFor(ctx, 0, streamable.Audio)
	require.NoError(t, err)

	result, err := h.svc.Refresh(ctx, 0)
	require.NoError(t, err)

	assert.Equal(t, RefreshInPlace, result)
	assert.Same(t, h.queue.At(0).Item(), h.engine.MediaItemAt(0))
	assert.Equal(t, 0, h.queue.At(0).Index(streamable.Audio))
}

func TestService_RefreshReplaced(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	h.svc.Play(ctx, "ext", nil, h.tracks("a"), 0)
	_, err := h.svc.PayloadFor(ctx, 0, streamable.Audio)
	require.NoError(t, err)

	// The extension now only offers a video stream
	h.ext.AddTrack(streamable.Track{
		ID:    "a",
		Title: "Track a",
		Video: []streamable.Streamable{{ID: "a-video", Type: streamable.Video}},
	})

	result, err := h.svc.Refresh(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, RefreshReplaced, result)
	assert.Same(t, h.queue.At(0).Item(), h.engine.MediaItemAt(0))

	media, err := h.svc.PayloadFor(ctx, 0, streamable.Video)
	require.NoError(t, err)
	assert.Equal(t, streamable.HTTP{URL: "https://ext/a-video"}, media.Payload)
}

func TestService_RefreshUnknownIndex(t *testing.T) {
	h := newHarness(t, nil)

	_, err := h.svc.Refresh(context.Background(), 0)

	var notFound *errmsg.TrackNotFoundError
	assert.True(t, errors.As(err, &notFound), "got %v", err)
}

func TestService_SetLiked(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	h.svc.Play(ctx, "ext", nil, h.tracks("a"), 0)
	liked, cancel := h.queue.At(0).Liked.Subscribe()
	defer cancel()

	require.NoError(t, h.svc.SetLiked(ctx, 0, true))

	assert.True(t, h.ext.Liked("a"))
	assert.True(t, <-liked)
	assert.True(t, h.engine.MediaItemAt(0).Meta().Track.IsLiked)
	assert.True(t, h.svc.CurrentTrack().Liked)
}

func TestService_SetLikedUnsupported(t *testing.T) {
	h := newHarness(t, nil)
	h.reg.Register(extension.Bare{ExtID: "bare", ExtName: "Bare"})
	h.svc.Play(context.Background(), "bare", nil, []streamable.Track{{ID: "a"}}, 0)

	err := h.svc.SetLiked(context.Background(), 0, true)

	var capErr *errmsg.CapabilityNotSupportedError
	assert.True(t, errors.As(err, &capErr), "got %v", err)
}

func TestService_RunForwardsUserFacingErrors(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		h := newHarness(t, nil)
		sub := h.svc.Subscribe()
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- h.svc.Run(ctx) }()
		synctest.Wait()

		h.errors.Publish(&errmsg.NoStreamsFoundError{TrackID: "a", Type: "audio"})
		h.errors.Publish(errmsg.Upstream("Ext", errmsg.OpStreamLoad, errors.New("403")))
		synctest.Wait()

		ev := <-sub.Error
		if ev.Op != errmsg.OpStreamLoad {
			t.Errorf("Error.Op = %q, want %q", ev.Op, errmsg.OpStreamLoad)
		}
		if ev.Message != "Failed to load stream: Ext: load stream: 403" {
			t.Errorf("Error.Message = %q", ev.Message)
		}
		select {
		case extra := <-sub.Error:
			t.Errorf("unexpected error event %v", extra.Err)
		default:
		}

		cancel()
		if err := <-done; !errors.Is(err, context.Canceled) {
			t.Errorf("Run() = %v, want context.Canceled", err)
		}
	})
}

func TestService_RunForwardsQueueChanges(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		h := newHarness(t, nil)
		sub := h.svc.Subscribe()
		done := make(chan error, 1)
		go func() { done <- h.svc.Run(context.Background()) }()
		synctest.Wait()

		h.svc.Enqueue("ext", nil, h.tracks("a", "b"), 0)
		synctest.Wait()

		qc := <-sub.QueueChanged
		if len(qc.Tracks) != 2 || qc.Tracks[0].ID != "a" {
			t.Errorf("QueueChanged.Tracks = %+v, want [a b]", qc.Tracks)
		}

		_ = h.svc.Close()
		if err := <-done; err != nil {
			t.Errorf("Run() after Close() = %v, want nil", err)
		}
	})
}

func TestService_Tick(t *testing.T) {
	h := newHarness(t, nil)
	sub := h.svc.Subscribe()
	h.engine.SetPosition(5 * time.Second)

	h.svc.Tick()

	pos := <-sub.PositionChanged
	assert.Equal(t, 5*time.Second, pos.Position)
	assert.Equal(t, 5*time.Second, h.svc.Position())
}

func TestService_ShouldCloseOnTaskRemoved(t *testing.T) {
	h := newHarness(t, nil)
	assert.True(t, h.svc.ShouldCloseOnTaskRemoved())

	off := false
	h = newHarness(t, &config.Config{Playback: config.PlaybackConfig{CloseOnTaskRemoved: &off}})
	assert.False(t, h.svc.ShouldCloseOnTaskRemoved())
}

func TestService_CloseIdempotent(t *testing.T) {
	h := newHarness(t, nil)
	sub := h.svc.Subscribe()

	require.NoError(t, h.svc.Close())
	require.NoError(t, h.svc.Close())

	select {
	case <-sub.Done:
	default:
		t.Error("Done should be closed after Close()")
	}
}

func TestRefreshResult_String(t *testing.T) {
	if got := RefreshInPlace.String(); got != "in place" {
		t.Errorf("RefreshInPlace.String() = %q, want %q", got, "in place")
	}
	if got := RefreshReplaced.String(); got != "replaced" {
		t.Errorf("RefreshReplaced.String() = %q, want %q", got, "replaced")
	}
}
