// Package streamable describes tracks and the candidate sources they can be played from.
package streamable

import (
	"slices"
	"time"
)

// Track is a track as supplied by an extension.
//
// A track produced by search or browse carries metadata only. After the owning
// extension loads it, the same struct also holds its candidate streamables and
// an expiry after which it must be loaded again.
type Track struct {
	ID       string            `json:"id"`
	Title    string            `json:"title"`
	Artists  []string          `json:"artists,omitempty"`
	Album    string            `json:"album,omitempty"`
	Cover    string            `json:"cover,omitempty"`
	Duration time.Duration     `json:"duration,omitempty"`
	IsLiked  bool              `json:"is_liked,omitempty"`
	Extras   map[string]string `json:"extras,omitempty"`

	Audio     []Streamable `json:"audio,omitempty"`
	Video     []Streamable `json:"video,omitempty"`
	Subtitles []Streamable `json:"subtitles,omitempty"`
	ExpiresAt time.Time    `json:"expires_at,omitzero"`
}

// IsLoaded returns true if the track carries any streamable.
func (t Track) IsLoaded() bool {
	return len(t.Audio) > 0 || len(t.Video) > 0 || len(t.Subtitles) > 0
}

// Expired reports whether the loaded data is stale at now.
// A zero ExpiresAt never expires.
func (t Track) Expired(now time.Time) bool {
	return !t.ExpiresAt.IsZero() && !now.Before(t.ExpiresAt)
}

// Streams returns the candidates of the given type.
func (t Track) Streams(st StreamType) []Streamable {
	switch st {
	case Audio:
		return t.Audio
	case Video:
		return t.Video
	case Subtitle:
		return t.Subtitles
	default:
		return nil
	}
}

// Unloaded returns a copy of the track without streamables and expiry.
func (t Track) Unloaded() Track {
	t.Audio = nil
	t.Video = nil
	t.Subtitles = nil
	t.ExpiresAt = time.Time{}
	t.Artists = slices.Clone(t.Artists)
	return t
}
