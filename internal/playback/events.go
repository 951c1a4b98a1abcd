package playback

import (
	"time"

	"github.com/llehouerou/tides/internal/errmsg"
	"github.com/llehouerou/tides/internal/player"
)

// TrackChange is emitted when the engine transitions to a different item.
//
// Emitted by Transition only. Repeat-one restarts the same index and still
// emits, with Previous equal to Current.
type TrackChange struct {
	Previous      *Track
	Current       *Track
	PreviousIndex int
	Index         int
}

// QueueChange is emitted when the queue contents change.
type QueueChange struct {
	Tracks []Track
	Index  int
}

// ModeChange is emitted when repeat or shuffle mode changes.
type ModeChange struct {
	RepeatMode player.RepeatMode
	Shuffle    bool
}

// PositionChange is emitted on every Tick.
type PositionChange struct {
	Position time.Duration
}

// ErrorEvent carries a user-facing failure.
type ErrorEvent struct {
	Op      errmsg.Op
	Message string
	Err     error
}
