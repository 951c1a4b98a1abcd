// Package errmsg defines the player's error taxonomy and formats errors for user-facing messages.
package errmsg

import "fmt"

// Op represents an operation that can fail.
type Op string

// Operation constants - grouped by domain.
const (
	// Resolution
	OpTrackLoad   Op = "load track"
	OpStreamLoad  Op = "load stream"
	OpTrackLike   Op = "update like"
	OpTrackReload Op = "refresh track"

	// Queue
	OpQueueAdd     Op = "add to queue"
	OpQueueSave    Op = "save queue"
	OpQueueRecover Op = "restore queue"

	// Radio
	OpRadioStart    Op = "start radio"
	OpRadioContinue Op = "continue radio"

	// Playback
	OpPlaybackStart Op = "start playback"

	// Initialization
	OpInitialize Op = "initialize player"
)

// Format creates a user-friendly error message.
func Format(op Op, err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf("Failed to %s: %v", op, err)
}

// FormatWith creates an error message with additional context.
func FormatWith(op Op, context string, err error) string {
	if err == nil {
		return ""
	}
	if context == "" {
		return Format(op, err)
	}
	return fmt.Sprintf("Failed to %s '%s': %v", op, context, err)
}
