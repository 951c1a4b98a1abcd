package errmsg

import (
	"errors"
	"fmt"
)

var (
	// ErrRadioPlaylistEmpty is returned when a radio resolves to no tracks.
	ErrRadioPlaylistEmpty = errors.New("radio playlist is empty")
	// ErrUserRadioUnsupported is returned when a radio is seeded from a user.
	ErrUserRadioUnsupported = errors.New("radio cannot be started from a user")
)

// Capability names used in CapabilityNotSupportedError.
const (
	CapabilityTrack = "track"
	CapabilityRadio = "radio"
	CapabilityLike  = "like"
)

// NoClientError is returned when an extension is missing or disabled.
type NoClientError struct {
	ExtensionID string
}

func (e *NoClientError) Error() string {
	return fmt.Sprintf("extension %q is not available", e.ExtensionID)
}

// CapabilityNotSupportedError is returned when an extension lacks a capability.
type CapabilityNotSupportedError struct {
	Capability string
	Extension  string // display name
}

func (e *CapabilityNotSupportedError) Error() string {
	return fmt.Sprintf("%s does not support %s", e.Extension, e.Capability)
}

// NoStreamsFoundError aborts a resolution attempt when a loaded track has no
// candidate of the requested type.
type NoStreamsFoundError struct {
	TrackID string
	Type    string
}

func (e *NoStreamsFoundError) Error() string {
	return fmt.Sprintf("no %s streams found for track %q", e.Type, e.TrackID)
}

// TrackNotFoundError is returned when a track id cannot be mapped to a queue entry
// or the extension reports no such track.
type TrackNotFoundError struct {
	TrackID string
}

func (e *TrackNotFoundError) Error() string {
	return fmt.Sprintf("track %q not found", e.TrackID)
}

// UpstreamError wraps an error returned by an extension.
type UpstreamError struct {
	Extension string
	Op        Op
	Err       error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Extension, e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// Upstream wraps err as an UpstreamError unless it already belongs to the taxonomy.
func Upstream(extension string, op Op, err error) error {
	if err == nil || IsTaxonomy(err) {
		return err
	}
	return &UpstreamError{Extension: extension, Op: op, Err: err}
}

// IsTaxonomy reports whether err is one of the typed errors of this package.
func IsTaxonomy(err error) bool {
	var (
		noClient *NoClientError
		capErr   *CapabilityNotSupportedError
		noStream *NoStreamsFoundError
		notFound *TrackNotFoundError
		up       *UpstreamError
	)
	return errors.As(err, &noClient) ||
		errors.As(err, &capErr) ||
		errors.As(err, &noStream) ||
		errors.As(err, &notFound) ||
		errors.As(err, &up) ||
		errors.Is(err, ErrRadioPlaylistEmpty) ||
		errors.Is(err, ErrUserRadioUnsupported)
}

// IsUserFacing reports whether err should be shown to the user on the message
// channel. NoStreamsFound and TrackNotFound only abort the current attempt.
func IsUserFacing(err error) bool {
	var (
		noClient *NoClientError
		capErr   *CapabilityNotSupportedError
		up       *UpstreamError
	)
	return errors.As(err, &noClient) ||
		errors.As(err, &capErr) ||
		errors.As(err, &up) ||
		errors.Is(err, ErrRadioPlaylistEmpty) ||
		errors.Is(err, ErrUserRadioUnsupported)
}
