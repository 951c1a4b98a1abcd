// Package playback connects the queue, resolution, radio and resumption to
// the native engine.
//
// The engine drives the service through three signals: it asks for payloads
// of the item it is about to play (PayloadFor), reports playlist edits it made
// on its own (PlaylistChanged), and reports track transitions and periodic
// progress (Transition, Tick). Everything else is a command from the host.
package playback

import (
	"context"
	"time"

	"github.com/llehouerou/tides/internal/player"
	"github.com/llehouerou/tides/internal/radio"
	"github.com/llehouerou/tides/internal/streamable"
)

// Service defines the playback service contract.
type Service interface {
	// Engine signals
	PayloadFor(ctx context.Context, index int, st streamable.StreamType) (streamable.Media, error)
	PlaylistChanged()
	Transition(ctx context.Context)
	Tick()

	// Queue manipulation
	Play(ctx context.Context, extensionID string, context *streamable.Item, tracks []streamable.Track, offset int)
	Enqueue(extensionID string, context *streamable.Item, tracks []streamable.Track, offset int)
	Replace(extensionID string, context *streamable.Item, tracks []streamable.Track, start int)
	Remove(index int) bool
	Move(from, to int) bool
	Clear()

	// Track actions
	Refresh(ctx context.Context, index int) (RefreshResult, error)
	SetLiked(ctx context.Context, index int, liked bool) error

	// Radio
	StartRadio(ctx context.Context, extensionID string, seed streamable.Item) error
	Radio() radio.State

	// Mode control
	RepeatMode() player.RepeatMode
	SetRepeatMode(mode player.RepeatMode)
	Shuffle() bool
	SetShuffle(enabled bool)

	// State queries
	CurrentTrack() *Track
	QueueTracks() []Track
	QueueCurrentIndex() int
	Position() time.Duration

	// Resumption
	Restore(ctx context.Context) bool

	// Host integration
	ShouldCloseOnTaskRemoved() bool

	// Event subscription
	Subscribe() *Subscription
	Run(ctx context.Context) error

	// Lifecycle
	Close() error
}

// RefreshResult tells how a refreshed item reached the engine.
type RefreshResult int

const (
	// RefreshInPlace kept the current resolution and playback position.
	RefreshInPlace RefreshResult = iota
	// RefreshReplaced inserted a fresh item that resolves again.
	RefreshReplaced
)

// String returns the result name.
func (r RefreshResult) String() string {
	switch r {
	case RefreshInPlace:
		return "in place"
	case RefreshReplaced:
		return "replaced"
	default:
		return "unknown"
	}
}
