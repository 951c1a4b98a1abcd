package mediasource

import (
	"errors"
	"io"
	"io/fs"
	"net"
	"net/url"
	"syscall"

	"github.com/llehouerou/tides/internal/event"
)

// ErrNilMedia is the transient error an engine reports when it refreshes an
// item whose media is momentarily unset.
var ErrNilMedia = errors.New("media not available")

// HandleRefreshError applies the refresh error policy. ErrNilMedia is
// swallowed. I/O errors are returned so the engine can retry with its own
// backoff. Anything else is published on errs and swallowed.
func HandleRefreshError(errs *event.Topic[error], err error) error {
	switch {
	case err == nil, errors.Is(err, ErrNilMedia):
		return nil
	case IsIOError(err):
		return err
	default:
		if errs != nil {
			errs.Publish(err)
		}
		return nil
	}
}

// IsIOError reports whether err comes from reading or fetching bytes.
func IsIOError(err error) bool {
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.ErrClosedPipe) {
		return true
	}
	var (
		pathErr *fs.PathError
		netErr  net.Error
		urlErr  *url.Error
		errno   syscall.Errno
	)
	return errors.As(err, &pathErr) ||
		errors.As(err, &netErr) ||
		errors.As(err, &urlErr) ||
		errors.As(err, &errno)
}
