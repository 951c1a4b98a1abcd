package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/llehouerou/tides/internal/browse"
	"github.com/llehouerou/tides/internal/config"
	"github.com/llehouerou/tides/internal/errmsg"
	"github.com/llehouerou/tides/internal/extension"
	"github.com/llehouerou/tides/internal/log"
	"github.com/llehouerou/tides/internal/playback"
	"github.com/llehouerou/tides/internal/player"
	"github.com/llehouerou/tides/internal/playlist"
	"github.com/llehouerou/tides/internal/resolve"
	"github.com/llehouerou/tides/internal/resume"
	"github.com/llehouerou/tides/internal/state"
	"github.com/llehouerou/tides/internal/streamable"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6"))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("244")).Width(12)
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	boxStyle   = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render(errmsg.Format(errmsg.OpInitialize, err)))
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	closeLog, err := log.Setup(cfg.GetLogConfig())
	if err != nil {
		return err
	}
	defer closeLog()

	live := config.NewLive(cfg)
	stopWatch, err := live.Watch(config.ConfigPaths(),
		func(*config.Config) { log.Infof("config reloaded") },
		func(err error) { log.WithError(err).Warn("config reload failed") },
	)
	switch {
	case err == nil:
		defer stopWatch()
	case !errors.Is(err, config.ErrNoConfigFile):
		log.WithError(err).Warn("watching config failed")
	}

	dbPath := cfg.DBPath
	if dbPath == "" {
		if dbPath, err = state.DefaultPath(); err != nil {
			return err
		}
	}
	st, err := state.OpenPath(dbPath)
	if err != nil {
		return err
	}
	defer st.Close()

	cacheCfg := cfg.GetCacheConfig()
	cache := resolve.NewCache(st.DB(), cacheCfg.MemoryEntries, cacheCfg.TrackTTL())
	pruned, err := cache.Prune(ctx)
	if err != nil {
		log.WithError(err).Warn("pruning track cache failed")
	}

	registry := extension.NewRegistry()
	resolver := resolve.New(registry, cache, func(t streamable.StreamType) streamable.Quality {
		return live.Get().GetPlaybackConfig().Quality(t)
	})

	engine := player.NewMock()
	svc := playback.New(playback.Deps{
		Engine:   engine,
		Queue:    playlist.NewQueue(),
		Resolver: resolver,
		Gateway:  registry,
		Resume:   resume.New(st, cfg.GetResumeConfig().SaveInterval()),
		Pages:    browse.New(cfg.GetBrowseConfig().PageCacheSize),
		Config:   live,
	})
	defer svc.Close()

	restored := svc.Restore(ctx)
	printSummary(os.Stdout, summary{
		restored: restored,
		current:  svc.CurrentTrack(),
		tracks:   svc.QueueTracks(),
		position: svc.Position(),
		repeat:   svc.RepeatMode(),
		shuffle:  svc.Shuffle(),
		pruned:   pruned,
		dbPath:   dbPath,
	})
	return nil
}

type summary struct {
	restored bool
	current  *playback.Track
	tracks   []playback.Track
	position time.Duration
	repeat   player.RepeatMode
	shuffle  bool
	pruned   int64
	dbPath   string
}

func printSummary(w io.Writer, s summary) {
	row := func(label, value string) string {
		return lipgloss.JoinHorizontal(lipgloss.Top, labelStyle.Render(label), value)
	}

	rows := []string{titleStyle.Render("tides")}
	if !s.restored {
		rows = append(rows, row("queue", "nothing to resume"))
	} else {
		rows = append(rows, row("queue", humanize.Comma(int64(len(s.tracks)))+" tracks"))
		if s.current != nil {
			rows = append(rows, row("current", trackLine(*s.current)))
		}
		rows = append(rows,
			row("position", formatDuration(s.position)),
			row("repeat", s.repeat.String()),
			row("shuffle", onOff(s.shuffle)),
		)
	}

	db := s.dbPath
	if fi, err := os.Stat(s.dbPath); err == nil {
		db += " (" + humanize.Bytes(uint64(fi.Size())) + ", " + humanize.Time(fi.ModTime()) + ")"
	}
	rows = append(rows,
		row("database", db),
		row("cache", "pruned "+humanize.Comma(s.pruned)+" expired tracks"),
	)

	fmt.Fprintln(w, boxStyle.Render(strings.Join(rows, "\n")))
}

func trackLine(t playback.Track) string {
	line := t.Title
	if line == "" {
		line = t.ID
	}
	if len(t.Artists) > 0 {
		line = strings.Join(t.Artists, ", ") + " - " + line
	}
	return line + " [" + t.ExtensionID + "]"
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	m := int(d.Minutes())
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%d:%02d", m, s)
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
