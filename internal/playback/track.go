package playback

import (
	"time"

	"github.com/llehouerou/tides/internal/playlist"
)

// Track represents a track in the queue.
// This is a copy of the data, not a reference to playlist.Entry.
type Track struct {
	ID          string
	ExtensionID string
	Title       string
	Artists     []string
	Album       string
	Duration    time.Duration
	Liked       bool
	Loaded      bool
}

func trackFromEntry(e *playlist.Entry) *Track {
	if e == nil {
		return nil
	}
	t := e.Track
	loaded, ok := e.LoadedTrack()
	if ok {
		t = loaded
	}
	return &Track{
		ID:          e.ID(),
		ExtensionID: e.ExtensionID,
		Title:       t.Title,
		Artists:     t.Artists,
		Album:       t.Album,
		Duration:    t.Duration,
		Liked:       e.IsLiked(),
		Loaded:      ok,
	}
}

func tracksFromEntries(entries []*playlist.Entry) []Track {
	out := make([]Track, len(entries))
	for i, e := range entries {
		out[i] = *trackFromEntry(e)
	}
	return out
}
