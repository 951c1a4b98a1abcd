package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/adrg/xdg"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/llehouerou/tides/internal/streamable"
)

const appName = "tides"

type Config struct {
	// DBPath overrides the state database location (default: XDG data dir).
	DBPath string `koanf:"db_path"`

	Playback PlaybackConfig `koanf:"playback"`
	Cache    CacheConfig    `koanf:"cache"`
	Resume   ResumeConfig   `koanf:"resume"`
	Browse   BrowseConfig   `koanf:"browse"`
	Log      LogConfig      `koanf:"log"`
}

// PlaybackConfig holds stream selection and player behaviour options.
type PlaybackConfig struct {
	StreamQuality      string `koanf:"stream_quality"`        // "highest", "medium", "lowest" or empty for the extension's order
	VideoQuality       string `koanf:"video_quality"`         // same values, for video streams
	SubtitleQuality    string `koanf:"subtitle_quality"`      // same values, for subtitles
	AutoStartRadio     *bool  `koanf:"auto_start_radio"`      // continue with radio when the queue ends (default: true)
	CloseOnTaskRemoved *bool  `koanf:"close_on_task_removed"` // stop the player with its host (default: true)
}

// CacheConfig holds the loaded track cache settings.
type CacheConfig struct {
	TrackTTLMinutes int `koanf:"track_ttl_minutes"` // max age of a cached loaded track (default: 60)
	MemoryEntries   int `koanf:"memory_entries"`    // in-memory cache size (default: 128)
}

// ResumeConfig holds the resumption store settings.
type ResumeConfig struct {
	SaveIntervalMs int `koanf:"save_interval_ms"` // position save throttle (default: 1000)
}

// BrowseConfig holds pagination state settings.
type BrowseConfig struct {
	PageCacheSize int `koanf:"page_cache_size"` // remembered continuation pages (default: 256)
}

// LogConfig holds logging settings.
type LogConfig struct {
	Write bool   `koanf:"write"` // write a log file in the XDG state dir
	Level string `koanf:"level"` // logrus level name (default: "info")
	JSON  bool   `koanf:"json"`  // JSON formatter instead of text
}

// Load reads the config files in priority order.
func Load() (*Config, error) {
	return LoadFrom(getConfigPaths()...)
}

// LoadFrom reads the given files in order (last wins). Missing files are skipped.
func LoadFrom(paths ...string) (*Config, error) {
	k := koanf.New(".")

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
				return nil, err
			}
		}
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, err
	}

	// Expand ~ in db_path
	if cfg.DBPath != "" {
		cfg.DBPath = expandPath(cfg.DBPath)
	}

	cfg.Playback.StreamQuality = strings.ToLower(strings.TrimSpace(cfg.Playback.StreamQuality))
	cfg.Playback.VideoQuality = strings.ToLower(strings.TrimSpace(cfg.Playback.VideoQuality))
	cfg.Playback.SubtitleQuality = strings.ToLower(strings.TrimSpace(cfg.Playback.SubtitleQuality))

	return cfg, nil
}

func getConfigPaths() []string {
	return []string{
		// 1. $XDG_CONFIG_HOME/tides/config.toml
		filepath.Join(xdg.ConfigHome, appName, "config.toml"),
		// 2. ./config.toml (pwd, highest priority)
		"config.toml",
	}
}

// ConfigPaths returns the files Load reads, lowest priority first.
func ConfigPaths() []string {
	return getConfigPaths()
}

func expandPath(path string) string {
	if path != "" && path[0] == '~' {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}

// Quality returns the preference for a stream type.
func (p PlaybackConfig) Quality(st streamable.StreamType) streamable.Quality {
	switch st {
	case streamable.Video:
		return streamable.ParseQuality(p.VideoQuality)
	case streamable.Subtitle:
		return streamable.ParseQuality(p.SubtitleQuality)
	default:
		return streamable.ParseQuality(p.StreamQuality)
	}
}

// GetPlaybackConfig returns the playback configuration with defaults applied.
func (c *Config) GetPlaybackConfig() PlaybackConfig {
	cfg := c.Playback

	// Apply defaults
	if cfg.AutoStartRadio == nil {
		cfg.AutoStartRadio = boolPtr(true)
	}
	if cfg.CloseOnTaskRemoved == nil {
		cfg.CloseOnTaskRemoved = boolPtr(true)
	}

	return cfg
}

// AutoStartRadio reports whether radio should continue an exhausted queue.
func (c *Config) AutoStartRadio() bool {
	return *c.GetPlaybackConfig().AutoStartRadio
}

// CloseOnTaskRemoved reports whether the player stops with its host task.
func (c *Config) CloseOnTaskRemoved() bool {
	return *c.GetPlaybackConfig().CloseOnTaskRemoved
}

// GetCacheConfig returns the cache configuration with defaults applied.
func (c *Config) GetCacheConfig() CacheConfig {
	cfg := c.Cache

	if cfg.TrackTTLMinutes <= 0 {
		cfg.TrackTTLMinutes = 60
	}
	if cfg.MemoryEntries <= 0 {
		cfg.MemoryEntries = 128
	}

	return cfg
}

// TrackTTL returns the loaded track cache lifetime.
func (c CacheConfig) TrackTTL() time.Duration {
	return time.Duration(c.TrackTTLMinutes) * time.Minute
}

// GetResumeConfig returns the resume configuration with defaults applied.
func (c *Config) GetResumeConfig() ResumeConfig {
	cfg := c.Resume

	if cfg.SaveIntervalMs <= 0 {
		cfg.SaveIntervalMs = 1000
	}

	return cfg
}

// SaveInterval returns the position save throttle.
func (c ResumeConfig) SaveInterval() time.Duration {
	return time.Duration(c.SaveIntervalMs) * time.Millisecond
}

// GetBrowseConfig returns the browse configuration with defaults applied.
func (c *Config) GetBrowseConfig() BrowseConfig {
	cfg := c.Browse

	if cfg.PageCacheSize <= 0 {
		cfg.PageCacheSize = 256
	}

	return cfg
}

// GetLogConfig returns the log configuration with defaults applied.
func (c *Config) GetLogConfig() LogConfig {
	cfg := c.Log

	if cfg.Level == "" {
		cfg.Level = "info"
	}

	return cfg
}

func boolPtr(b bool) *bool { return &b }

// Live holds the current configuration and swaps it on reload.
type Live struct {
	cfg atomic.Pointer[Config]
}

// NewLive creates a holder starting at cfg.
func NewLive(cfg *Config) *Live {
	l := &Live{}
	if cfg == nil {
		cfg = &Config{}
	}
	l.cfg.Store(cfg)
	return l
}

// Get returns the current configuration.
func (l *Live) Get() *Config {
	return l.cfg.Load()
}

// Store replaces the current configuration.
func (l *Live) Store(cfg *Config) {
	if cfg != nil {
		l.cfg.Store(cfg)
	}
}

// Watch reloads the config whenever one of paths changes and stores it in l.
// onReload is called after each successful reload, onError after a failed one.
// The returned function stops watching.
func (l *Live) Watch(paths []string, onReload func(*Config), onError func(error)) (func(), error) {
	var providers []*file.File
	stop := func() {
		for _, p := range providers {
			_ = p.Unwatch()
		}
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		p := file.Provider(path)
		err := p.Watch(func(_ any, err error) {
			if err != nil {
				if onError != nil {
					onError(err)
				}
				return
			}
			cfg, err := LoadFrom(paths...)
			if err != nil {
				if onError != nil {
					onError(err)
				}
				return
			}
			l.Store(cfg)
			if onReload != nil {
				onReload(cfg)
			}
		})
		if err != nil {
			stop()
			return nil, err
		}
		providers = append(providers, p)
	}

	if len(providers) == 0 {
		return stop, ErrNoConfigFile
	}
	return stop, nil
}

// ErrNoConfigFile is returned by Watch when none of the paths exist.
var ErrNoConfigFile = errors.New("no config file to watch")
