// Package extension defines the capabilities an extension can offer and a
// gateway to look extensions up by id.
//
// Extensions implement Extension plus any subset of the capability interfaces.
// Callers probe a capability with Client, which returns a typed error instead
// of panicking when the extension is missing or lacks it.
package extension

import (
	"context"

	"github.com/llehouerou/tides/internal/errmsg"
	"github.com/llehouerou/tides/internal/streamable"
)

// Extension is the metadata every extension exposes.
type Extension interface {
	ID() string
	Name() string
}

// TrackClient loads tracks and materializes their streamables.
type TrackClient interface {
	// LoadTrack returns the track with its streamables and expiry filled.
	LoadTrack(ctx context.Context, track streamable.Track) (streamable.Track, error)
	// LoadStreamableMedia turns a descriptor into a concrete payload.
	LoadStreamableMedia(ctx context.Context, s streamable.Streamable, isDownload bool) (streamable.Media, error)
}

// Page is one page of a paginated track list.
type Page struct {
	Tracks       []streamable.Track
	Continuation string // empty when there is no next page
}

// RadioClient builds radio playlists from a seed.
type RadioClient interface {
	RadioFromTrack(ctx context.Context, track streamable.Track, from *streamable.Item) (streamable.Item, error)
	RadioFromAlbum(ctx context.Context, album streamable.Item) (streamable.Item, error)
	RadioFromArtist(ctx context.Context, artist streamable.Item) (streamable.Item, error)
	RadioFromPlaylist(ctx context.Context, playlist streamable.Item) (streamable.Item, error)
	// LoadRadioTracks returns a page of the radio playlist. An empty
	// continuation requests the first page.
	LoadRadioTracks(ctx context.Context, radio streamable.Item, continuation string) (Page, error)
}

// LikeClient toggles a track's liked state upstream.
type LikeClient interface {
	LikeTrack(ctx context.Context, track streamable.Track, liked bool) error
}

// Gateway resolves extensions by id.
type Gateway interface {
	Get(id string) (Extension, bool)
}

// Client looks up an extension and downcasts it to capability T.
func Client[T any](gw Gateway, id, capability string) (T, Extension, error) {
	var zero T
	ext, ok := gw.Get(id)
	if !ok || ext == nil {
		return zero, nil, &errmsg.NoClientError{ExtensionID: id}
	}
	c, ok := ext.(T)
	if !ok {
		return zero, ext, &errmsg.CapabilityNotSupportedError{Capability: capability, Extension: ext.Name()}
	}
	return c, ext, nil
}

// Tracks returns the extension's TrackClient.
func Tracks(gw Gateway, id string) (TrackClient, Extension, error) {
	return Client[TrackClient](gw, id, errmsg.CapabilityTrack)
}

// Radios returns the extension's RadioClient.
func Radios(gw Gateway, id string) (RadioClient, Extension, error) {
	return Client[RadioClient](gw, id, errmsg.CapabilityRadio)
}

// Likes returns the extension's LikeClient.
func Likes(gw Gateway, id string) (LikeClient, Extension, error) {
	return Client[LikeClient](gw, id, errmsg.CapabilityLike)
}
