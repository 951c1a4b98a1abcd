package streamable

import (
	"io"
)

// StreamType is the kind of media a streamable delivers.
type StreamType int

const (
	Audio StreamType = iota
	Video
	Subtitle
)

// String returns the stream type name.
func (s StreamType) String() string {
	switch s {
	case Audio:
		return "audio"
	case Video:
		return "video"
	case Subtitle:
		return "subtitle"
	default:
		return "unknown"
	}
}

// SourceKind tags how a streamable's bytes are delivered once materialized.
type SourceKind int

const (
	// KindHTTP is a URL plus request headers.
	KindHTTP SourceKind = iota
	// KindByteStream is an open, seekable byte source.
	KindByteStream
	// KindChannel is a one-shot sequential byte source, not seekable.
	KindChannel
)

// String returns the source kind name.
func (k SourceKind) String() string {
	switch k {
	case KindHTTP:
		return "http"
	case KindByteStream:
		return "bytestream"
	case KindChannel:
		return "channel"
	default:
		return "unknown"
	}
}

// Streamable is a ranked candidate source descriptor. It is not a live byte
// source: the owning extension turns it into a Payload on demand.
type Streamable struct {
	ID      string            `json:"id"`
	Title   string            `json:"title,omitempty"`
	Quality int               `json:"quality"`
	Type    StreamType        `json:"type"`
	Source  SourceKind        `json:"source"`
	Extras  map[string]string `json:"extras,omitempty"`
}

// Payload is a concrete, materialized source. Exactly one of ByteStream,
// Channel or HTTP.
type Payload interface {
	Kind() SourceKind
}

// ByteStream is an open seekable source.
type ByteStream struct {
	Reader io.ReadSeekCloser
	Size   int64 // -1 if unknown
}

func (ByteStream) Kind() SourceKind { return KindByteStream }

// Channel is a one-shot sequential source.
type Channel struct {
	Reader io.ReadCloser
}

func (Channel) Kind() SourceKind { return KindChannel }

// HTTP is a request the engine performs itself.
type HTTP struct {
	URL     string
	Headers map[string]string
}

func (HTTP) Kind() SourceKind { return KindHTTP }

// Media is a materialized streamable.
type Media struct {
	Streamable Streamable
	Payload    Payload

	// Video only: whether the video carries an audio track, and whether it is
	// a short silent visual meant to loop under the audio.
	HasAudio bool
	Looping  bool
}

// SameSource reports whether two payloads point at the same bytes.
// Only HTTP payloads and identical readers can be compared.
func SameSource(a, b Payload) bool {
	switch pa := a.(type) {
	case HTTP:
		pb, ok := b.(HTTP)
		return ok && pa.URL == pb.URL
	case ByteStream:
		pb, ok := b.(ByteStream)
		return ok && pa.Reader != nil && pa.Reader == pb.Reader
	case Channel:
		pb, ok := b.(Channel)
		return ok && pa.Reader != nil && pa.Reader == pb.Reader
	default:
		return false
	}
}

// Close releases the payload's reader, if any.
func Close(p Payload) error {
	switch v := p.(type) {
	case ByteStream:
		if v.Reader != nil {
			return v.Reader.Close()
		}
	case Channel:
		if v.Reader != nil {
			return v.Reader.Close()
		}
	}
	return nil
}
