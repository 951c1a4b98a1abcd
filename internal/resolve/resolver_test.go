package resolve

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llehouerou/tides/internal/errmsg"
	"github.com/llehouerou/tides/internal/extension"
	"github.com/llehouerou/tides/internal/playlist"
	"github.com/llehouerou/tides/internal/streamable"
)

func loadedTrack(id string, ranks ...int) streamable.Track {
	t := streamable.Track{ID: id, Title: "Track " + id}
	for i, r := range ranks {
		t.Audio = append(t.Audio, streamable.Streamable{
			ID:      id + "-a" + string(rune('0'+i)),
			Quality: r,
			Type:    streamable.Audio,
		})
	}
	return t
}

func setup(t *testing.T) (*extension.Mock, *extension.Registry) {
	t.Helper()
	ext := extension.NewMock("ext")
	reg := extension.NewRegistry()
	reg.Register(ext)
	return ext, reg
}

func TestResolve_SelectsByPreference(t *testing.T) {
	ext, reg := setup(t)
	ext.AddTrack(loadedTrack("t1", 1, 5, 9))
	r := New(reg, nil, func(streamable.StreamType) streamable.Quality { return streamable.QualityHighest })
	e := playlist.NewEntry("ext", streamable.Track{ID: "t1"}, nil)

	res, err := r.Resolve(context.Background(), e, streamable.Audio, -1)

	require.NoError(t, err)
	assert.Equal(t, 2, res.Index)
	assert.Equal(t, 9, res.Media.Streamable.Quality)
	assert.Equal(t, streamable.HTTP{URL: "https://ext/t1-a2"}, res.Media.Payload)
	assert.Equal(t, 2, e.Index(streamable.Audio))
	_, ok := e.LoadedTrack()
	assert.True(t, ok, "loaded track should be installed")
}

func TestResolve_ExplicitIndexWins(t *testing.T) {
	ext, reg := setup(t)
	ext.AddTrack(loadedTrack("t1", 1, 5, 9))
	r := New(reg, nil, func(streamable.StreamType) streamable.Quality { return streamable.QualityHighest })
	e := playlist.NewEntry("ext", streamable.Track{ID: "t1"}, nil)

	res, err := r.Resolve(context.Background(), e, streamable.Audio, 0)

	require.NoError(t, err)
	assert.Equal(t, 0, res.Index)
	assert.Equal(t, 1, res.Media.Streamable.Quality)
}

func TestResolve_ConcurrentSingleLoad(t *testing.T) {
	ext, reg := setup(t)
	ext.AddTrack(loadedTrack("t1", 3))
	ext.OnLoadTrack = func(ctx context.Context, tr streamable.Track) (streamable.Track, error) {
		time.Sleep(10 * time.Millisecond)
		return loadedTrack(tr.ID, 3), nil
	}
	r := New(reg, nil, nil)
	e := playlist.NewEntry("ext", streamable.Track{ID: "t1"}, nil)
	loaded, cancel := e.Loaded.Subscribe()
	defer cancel()

	var wg sync.WaitGroup
	results := make([]Resolved, 8)
	for i := range results {
		wg.Go(func() {
			res, err := r.Resolve(context.Background(), e, streamable.Audio, -1)
			assert.NoError(t, err)
			results[i] = res
		})
	}
	wg.Wait()

	assert.Equal(t, 1, ext.LoadCalls(), "track should be loaded once")
	assert.Len(t, loaded, 1, "exactly one load broadcast")
	for _, res := range results {
		assert.Equal(t, results[0].Track.ID, res.Track.ID)
	}
}

func TestResolve_ExpiredReloads(t *testing.T) {
	ext, reg := setup(t)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	stale := loadedTrack("t1", 1)
	stale.Title = "stale"
	stale.ExpiresAt = now.Add(-time.Minute)
	fresh := loadedTrack("t1", 1)
	fresh.Title = "fresh"
	fresh.ExpiresAt = now.Add(time.Hour)
	ext.AddTrack(fresh)

	r := New(reg, nil, nil)
	r.now = func() time.Time { return now }
	e := playlist.NewEntry("ext", streamable.Track{ID: "t1"}, nil)
	e.Install(stale, streamable.Audio, 0)

	res, err := r.Resolve(context.Background(), e, streamable.Audio, -1)

	require.NoError(t, err)
	assert.Equal(t, "fresh", res.Track.Title)
	got, _ := e.LoadedTrack()
	assert.Equal(t, "fresh", got.Title, "stale slot should be replaced")
	assert.Equal(t, 1, ext.LoadCalls())
}

func TestResolve_NoStreams(t *testing.T) {
	ext, reg := setup(t)
	ext.AddTrack(streamable.Track{ID: "t1"})
	r := New(reg, nil, nil)
	e := playlist.NewEntry("ext", streamable.Track{ID: "t1"}, nil)

	_, err := r.Resolve(context.Background(), e, streamable.Audio, -1)

	var noStreams *errmsg.NoStreamsFoundError
	require.ErrorAs(t, err, &noStreams)
	assert.Equal(t, "t1", noStreams.TrackID)
	_, ok := e.LoadedTrack()
	assert.False(t, ok, "failed resolution must leave the entry untouched")
}

func TestResolve_MaterializeFailureLeavesEntry(t *testing.T) {
	ext, reg := setup(t)
	ext.AddTrack(loadedTrack("t1", 1))
	cause := errors.New("stream gone")
	ext.OnLoadMedia = func(context.Context, streamable.Streamable) (streamable.Media, error) {
		return streamable.Media{}, cause
	}
	r := New(reg, nil, nil)
	e := playlist.NewEntry("ext", streamable.Track{ID: "t1"}, nil)

	_, err := r.Resolve(context.Background(), e, streamable.Audio, -1)

	var up *errmsg.UpstreamError
	require.ErrorAs(t, err, &up)
	assert.Equal(t, errmsg.OpStreamLoad, up.Op)
	assert.ErrorIs(t, err, cause)
	_, ok := e.LoadedTrack()
	assert.False(t, ok)
	assert.Equal(t, -1, e.Index(streamable.Audio))

	// Retry succeeds once the extension recovers
	ext.OnLoadMedia = nil
	_, err = r.Resolve(context.Background(), e, streamable.Audio, -1)
	require.NoError(t, err)
	assert.Equal(t, 2, ext.MediaCalls())
}

func TestResolve_UpstreamLoadError(t *testing.T) {
	ext, reg := setup(t)
	ext.ExtName = "Provider"
	r := New(reg, nil, nil)
	e := playlist.NewEntry("ext", streamable.Track{ID: "missing"}, nil)

	_, err := r.LoadTrack(context.Background(), e)

	var up *errmsg.UpstreamError
	require.ErrorAs(t, err, &up)
	assert.Equal(t, "Provider", up.Extension)
	assert.Equal(t, errmsg.OpTrackLoad, up.Op)
	assert.True(t, errmsg.IsUserFacing(err))
}

func TestResolve_LoadedTrackWithoutID(t *testing.T) {
	ext, reg := setup(t)
	ext.OnLoadTrack = func(context.Context, streamable.Track) (streamable.Track, error) {
		return streamable.Track{Title: "nameless"}, nil
	}
	r := New(reg, nil, nil)
	e := playlist.NewEntry("ext", streamable.Track{ID: "t1"}, nil)

	_, err := r.LoadTrack(context.Background(), e)

	var notFound *errmsg.TrackNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "t1", notFound.TrackID)
	_, ok := e.LoadedTrack()
	assert.False(t, ok, "nothing is installed")
}

func TestResolve_GatewayErrors(t *testing.T) {
	reg := extension.NewRegistry()
	reg.Register(extension.Bare{ExtID: "bare", ExtName: "Bare"})
	r := New(reg, nil, nil)

	_, err := r.LoadTrack(context.Background(), playlist.NewEntry("nope", streamable.Track{ID: "t"}, nil))
	var noClient *errmsg.NoClientError
	assert.ErrorAs(t, err, &noClient)

	_, err = r.LoadTrack(context.Background(), playlist.NewEntry("bare", streamable.Track{ID: "t"}, nil))
	var capErr *errmsg.CapabilityNotSupportedError
	require.ErrorAs(t, err, &capErr)
	assert.Equal(t, "Bare", capErr.Extension)
}

func TestResolve_RemovedEntryNotInstalled(t *testing.T) {
	ext, reg := setup(t)
	ext.AddTrack(loadedTrack("t1", 1))
	q := playlist.NewQueue()
	q.AddTracks("ext", nil, []streamable.Track{{ID: "t1"}}, 0)
	e := q.At(0)

	ext.OnLoadMedia = func(_ context.Context, s streamable.Streamable) (streamable.Media, error) {
		q.RemoveTrack(0) // removed while in flight
		return streamable.Media{Streamable: s, Payload: streamable.HTTP{URL: "u"}}, nil
	}
	loaded, cancel := e.Loaded.Subscribe()
	defer cancel()
	r := New(reg, nil, nil)

	res, err := r.Resolve(context.Background(), e, streamable.Audio, -1)

	require.NoError(t, err)
	assert.Equal(t, "t1", res.Track.ID, "result is still returned to the caller")
	_, ok := e.LoadedTrack()
	assert.False(t, ok, "removed entry must not be resurrected")
	assert.Empty(t, loaded, "no load broadcast for a removed entry")
}

func TestResolve_CacheSharedAcrossEntries(t *testing.T) {
	ext, reg := setup(t)
	ext.AddTrack(loadedTrack("t1", 1))
	r := New(reg, NewCache(nil, 8, time.Hour), nil)

	for range 3 {
		e := playlist.NewEntry("ext", streamable.Track{ID: "t1"}, nil)
		_, err := r.Resolve(context.Background(), e, streamable.Audio, -1)
		require.NoError(t, err)
	}

	assert.Equal(t, 1, ext.LoadCalls())
	assert.Equal(t, 3, ext.MediaCalls(), "payloads are materialized every time")

	got, err := r.LoadTrackByID(context.Background(), "ext", "t1")
	require.NoError(t, err)
	assert.Equal(t, "t1", got.ID)
	assert.Equal(t, 1, ext.LoadCalls())
}

func TestRefresh(t *testing.T) {
	ext, reg := setup(t)
	first := loadedTrack("t1", 1)
	first.Title = "v1"
	ext.AddTrack(first)
	r := New(reg, NewCache(nil, 8, time.Hour), nil)
	e := playlist.NewEntry("ext", streamable.Track{ID: "t1"}, nil)
	_, err := r.LoadTrack(context.Background(), e)
	require.NoError(t, err)

	second := loadedTrack("t1", 1)
	second.Title = "v2"
	ext.AddTrack(second)
	got, err := r.Refresh(context.Background(), e)

	require.NoError(t, err)
	assert.Equal(t, "v2", got.Title)
	installed, _ := e.LoadedTrack()
	assert.Equal(t, "v2", installed.Title)
	assert.Equal(t, 2, ext.LoadCalls())
}
