package mediasource

import "github.com/llehouerou/tides/internal/streamable"

// Path is how a resolved item is delivered to the engine.
type Path int

const (
	// AudioOnly plays the audio stream alone.
	AudioOnly Path = iota
	// AudioThroughVideo plays the video stream, whose audio track is the
	// item's audio.
	AudioThroughVideo
	// AudioWithVisual plays the audio with a muted visual driven on its own,
	// looping when the visual is a short clip.
	AudioWithVisual
	// Merged combines separately fetched audio and video, each filtered to
	// its own track type.
	Merged
)

// String returns the path name.
func (p Path) String() string {
	switch p {
	case AudioOnly:
		return "audio-only"
	case AudioThroughVideo:
		return "audio-through-video"
	case AudioWithVisual:
		return "audio-with-visual"
	case Merged:
		return "merged"
	default:
		return "unknown"
	}
}

// Decide picks the delivery path for the resolved audio and video. Either
// may be nil.
func Decide(audio, video *streamable.Media) Path {
	switch {
	case video == nil:
		return AudioOnly
	case video.Looping || !video.HasAudio:
		return AudioWithVisual
	case audio == nil || streamable.SameSource(audio.Payload, video.Payload):
		return AudioThroughVideo
	default:
		return Merged
	}
}

// Feed is one payload the engine must consume and the track type it is
// filtered to.
type Feed struct {
	Media streamable.Media
	Type  streamable.StreamType
	Muted bool // drop the feed's own audio
	Loop  bool
}
