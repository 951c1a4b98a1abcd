package player

import (
	"encoding/json"
	"maps"

	"github.com/llehouerou/tides/internal/streamable"
)

// Extras keys carried by a MediaItem.
const (
	keyTrack         = "track"
	keyExtensionID   = "extension_id"
	keyContext       = "context"
	keyLoaded        = "loaded"
	keyAudioIndex    = "audio_index"
	keyVideoIndex    = "video_index"
	keySubtitleIndex = "subtitle_index"
)

// MediaItem is the engine's opaque playlist entry. Its ID is the track id; the
// rest of the metadata rides along in Extras as JSON so that keys written by a
// newer version survive a round trip through an older one.
//
// Identity matters: the engine and the shuffle wrapper compare items by
// pointer, so the same track queued twice yields two distinct items.
type MediaItem struct {
	ID     string
	Extras map[string]json.RawMessage
}

// Meta is the decoded view of a MediaItem's extras.
type Meta struct {
	Track       streamable.Track
	ExtensionID string
	Context     *streamable.Item
	Loaded      bool

	// Selected candidate per stream type, -1 when chosen by preference.
	AudioIndex    int
	VideoIndex    int
	SubtitleIndex int
}

// NewMediaItem builds an item for an unresolved track.
func NewMediaItem(m Meta) *MediaItem {
	it := &MediaItem{ID: m.Track.ID, Extras: make(map[string]json.RawMessage)}
	it.encode(m)
	return it
}

// Meta decodes the item's extras. Missing or malformed keys decode to defaults.
func (it *MediaItem) Meta() Meta {
	m := Meta{AudioIndex: -1, VideoIndex: -1, SubtitleIndex: -1}
	if it == nil {
		return m
	}
	decode(it.Extras, keyTrack, &m.Track)
	decode(it.Extras, keyExtensionID, &m.ExtensionID)
	decode(it.Extras, keyContext, &m.Context)
	decode(it.Extras, keyLoaded, &m.Loaded)
	decode(it.Extras, keyAudioIndex, &m.AudioIndex)
	decode(it.Extras, keyVideoIndex, &m.VideoIndex)
	decode(it.Extras, keySubtitleIndex, &m.SubtitleIndex)
	if m.Track.ID == "" {
		m.Track.ID = it.ID
	}
	return m
}

// With returns a new item carrying m. Extras unknown to this version are kept.
func (it *MediaItem) With(m Meta) *MediaItem {
	out := &MediaItem{ID: m.Track.ID, Extras: maps.Clone(it.Extras)}
	if out.Extras == nil {
		out.Extras = make(map[string]json.RawMessage)
	}
	if out.ID == "" {
		out.ID = it.ID
	}
	out.encode(m)
	return out
}

// ExtensionID returns the owning extension id.
func (it *MediaItem) ExtensionID() string {
	var id string
	decode(it.Extras, keyExtensionID, &id)
	return id
}

func (it *MediaItem) encode(m Meta) {
	// Loaded items keep only metadata: streamables are re-resolved on demand.
	encode(it.Extras, keyTrack, m.Track.Unloaded())
	encode(it.Extras, keyExtensionID, m.ExtensionID)
	if m.Context != nil {
		encode(it.Extras, keyContext, m.Context)
	} else {
		delete(it.Extras, keyContext)
	}
	encode(it.Extras, keyLoaded, m.Loaded)
	encode(it.Extras, keyAudioIndex, m.AudioIndex)
	encode(it.Extras, keyVideoIndex, m.VideoIndex)
	encode(it.Extras, keySubtitleIndex, m.SubtitleIndex)
}

func encode(extras map[string]json.RawMessage, key string, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	extras[key] = b
}

func decode(extras map[string]json.RawMessage, key string, v any) {
	raw, ok := extras[key]
	if !ok {
		return
	}
	_ = json.Unmarshal(raw, v) //nolint:errcheck // malformed keys keep their defaults
}

// IDs returns the ids of items in order.
func IDs(items []*MediaItem) []string {
	ids := make([]string, len(items))
	for i, it := range items {
		ids[i] = it.ID
	}
	return ids
}
