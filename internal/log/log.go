// Package log wraps logrus with a file sink in the XDG state directory.
// When logging is disabled every call is discarded.
package log

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/adrg/xdg"
	"github.com/sirupsen/logrus"

	"github.com/llehouerou/tides/internal/config"
)

const appName = "tides"

var (
	logger  = logrus.New()
	enabled atomic.Bool
)

func init() {
	logger.SetOutput(io.Discard)
}

// Setup configures logging from cfg. It opens (or creates) a dated log file
// when cfg.Write is set and returns a function closing it.
func Setup(cfg config.LogConfig) (func() error, error) {
	if !cfg.Write {
		enabled.Store(false)
		logger.SetOutput(io.Discard)
		return func() error { return nil }, nil
	}

	path, err := xdg.StateFile(filepath.Join(appName, fmt.Sprintf("%s.log", time.Now().Format("2006-01-02"))))
	if err != nil {
		return nil, fmt.Errorf("log path: %w", err)
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	SetupWriter(f, cfg)
	return f.Close, nil
}

// SetupWriter enables logging to w.
func SetupWriter(w io.Writer, cfg config.LogConfig) {
	logger.SetOutput(w)

	if cfg.JSON {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{DisableColors: true, FullTimestamp: true})
	}

	lvl, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logger.SetLevel(lvl)
	enabled.Store(true)
}

// Fields is an alias of logrus.Fields.
type Fields = logrus.Fields

// Entry is an alias of logrus.Entry.
type Entry = logrus.Entry

// WithField returns an entry carrying one field.
func WithField(key string, value any) *logrus.Entry {
	return logger.WithField(key, value)
}

// WithFields returns an entry carrying fields.
func WithFields(fields Fields) *logrus.Entry {
	return logger.WithFields(fields)
}

// WithError returns an entry carrying err.
func WithError(err error) *logrus.Entry {
	return logger.WithError(err)
}

func Errorf(format string, args ...any) {
	if enabled.Load() {
		logger.Errorf(format, args...)
	}
}

func Warnf(format string, args ...any) {
	if enabled.Load() {
		logger.Warnf(format, args...)
	}
}

func Infof(format string, args ...any) {
	if enabled.Load() {
		logger.Infof(format, args...)
	}
}

func Debugf(format string, args ...any) {
	if enabled.Load() {
		logger.Debugf(format, args...)
	}
}
