// Package player defines the boundary with the native media engine.
//
// The engine owns the actual playlist, buffering and rendering. This package
// only describes the playlist and transport surface the core drives, provides
// an in-memory engine for tests and headless use, and the shuffle wrapper that
// keeps the original order across shuffle toggles.
package player

import "time"

// RepeatMode defines the repeat behavior.
type RepeatMode int

const (
	RepeatOff RepeatMode = iota
	RepeatAll
	RepeatOne
)

// String returns the repeat mode name.
func (m RepeatMode) String() string {
	switch m {
	case RepeatOff:
		return "Off"
	case RepeatAll:
		return "All"
	case RepeatOne:
		return "One"
	default:
		return "Unknown"
	}
}

// Engine is the native engine's playlist and transport surface.
type Engine interface {
	MediaItemCount() int
	MediaItemAt(index int) *MediaItem
	MediaItems() []*MediaItem
	CurrentIndex() int // -1 if nothing is current
	HasNext() bool

	AddMediaItems(index int, items []*MediaItem)
	RemoveMediaItems(from, to int) // half-open [from, to)
	MoveMediaItem(from, to int)
	ReplaceMediaItem(index int, item *MediaItem)
	SetMediaItems(items []*MediaItem, startIndex int, position time.Duration)
	ClearMediaItems()

	ShuffleModeEnabled() bool
	SetShuffleModeEnabled(enabled bool)
	RepeatMode() RepeatMode
	SetRepeatMode(mode RepeatMode)

	Position() time.Duration
	SeekTo(index int, position time.Duration)
}

// Verify implementations at compile time.
var (
	_ Engine = (*Mock)(nil)
	_ Engine = (*Shuffler)(nil)
)
