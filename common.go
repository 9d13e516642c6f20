// ABOUTME: Shared setup for every command: config, logging, colours and the track sources
// ABOUTME: Opens the library, preset store and constraint registry the commands work on

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"

	"playlist-generator/config"
	"playlist-generator/constraint"
	"playlist-generator/domain"
	"playlist-generator/library"
	"playlist-generator/playlist"
	"playlist-generator/preset"
)

const debugLogFile = "playlist-generator-debug.log"

// Output palette
var (
	colorInfo    = color.New(color.FgCyan)
	colorSuccess = color.New(color.FgGreen)
	colorWarning = color.New(color.FgYellow)
	colorError   = color.New(color.FgRed)
	colorHeader  = color.New(color.FgBlue, color.Bold)
)

// isTTY reports whether f is an interactive terminal
func isTTY(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// initColors disables colour output when stdout is not a terminal
func initColors() {
	color.NoColor = !isTTY(os.Stdout)
}

// app holds the state shared by all commands
type app struct {
	// Flags
	configPath string
	cpuprofile string
	memprofile string
	debug      bool
	logLevel   string

	cfg       config.Config
	logger    zerolog.Logger
	fileLog   zerolog.Logger // debug file only, for when the terminal is taken
	debugFile *os.File
	stopCPU   func()
}

// setup loads the config and builds the loggers
func (a *app) setup(levelChanged bool) error {
	initColors()

	path := a.configPath
	if path == "" {
		path = config.GetConfigPath()
	}

	cfg, err := config.LoadConfig(path)
	if err != nil {
		return err
	}

	a.cfg = cfg

	level := cfg.Log.Level
	if levelChanged {
		level = a.logLevel
	}

	var debugOut io.Writer

	if a.debug {
		f, err := os.Create(debugLogFile)
		if err != nil {
			return fmt.Errorf("failed to create debug log file: %w", err)
		}

		a.debugFile = f
		debugOut = f

		if isTTY(os.Stdout) {
			colorInfo.Printf("Debug logging enabled: %s\n", debugLogFile)
		}
	}

	a.logger, err = newLogger(os.Stderr, debugOut, level)
	if err != nil {
		return err
	}

	a.fileLog = zerolog.Nop()
	if debugOut != nil {
		a.fileLog = zerolog.New(debugOut).Level(zerolog.DebugLevel).With().Timestamp().Logger()
	}

	a.logger.Debug().Str("config", path).Msg("configuration loaded")

	if a.cpuprofile != "" {
		stop, err := startCPUProfile(a.cpuprofile)
		if err != nil {
			return err
		}

		a.stopCPU = stop
	}

	return nil
}

// teardown flushes profiles and closes the debug log
func (a *app) teardown() {
	if a.stopCPU != nil {
		a.stopCPU()
	}

	if a.memprofile != "" {
		writeMemoryProfile(a.memprofile, a.logger)
	}

	if a.debugFile != nil {
		if err := a.debugFile.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close debug log: %v\n", err)
		}
	}
}

// newLogger writes human-readable logs to console at level. When debugOut is
// set it also receives every debug message as JSON.
func newLogger(console, debugOut io.Writer, level string) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("invalid log level %q: %w", level, err)
	}

	if lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	cw := zerolog.ConsoleWriter{Out: console, TimeFormat: time.TimeOnly, NoColor: color.NoColor}

	if debugOut == nil {
		return zerolog.New(cw).Level(lvl).With().Timestamp().Logger(), nil
	}

	w := zerolog.MultiLevelWriter(
		&zerolog.FilteredLevelWriter{Writer: zerolog.LevelWriterAdapter{Writer: cw}, Level: lvl},
		debugOut,
	)

	return zerolog.New(w).Level(zerolog.DebugLevel).With().Timestamp().Logger(), nil
}

// component returns a child logger tagged with name
func component(logger zerolog.Logger, name string) zerolog.Logger {
	return logger.With().Str("component", name).Logger()
}

// openLibrary opens the configured track database
func (a *app) openLibrary(ctx context.Context, logger zerolog.Logger) (*library.Store, error) {
	return library.Open(ctx, a.cfg.Library.Database,
		library.WithBatchSize(a.cfg.Library.BatchSize),
		library.WithLogger(component(logger, "library")),
	)
}

// openPresets opens the preset directory with a registry resolving through r,
// which may be nil.
func (a *app) openPresets(r constraint.Resolver, logger zerolog.Logger) (*preset.Store, *constraint.Registry, error) {
	reg := constraint.NewRegistry(r)

	store, err := preset.NewStore(a.cfg.Presets.Directory, reg, component(logger, "presets"))
	if err != nil {
		return nil, nil, err
	}

	return store, reg, nil
}

// loadPreset reads ref from the preset store, or from disk when ref names a file
func loadPreset(store *preset.Store, reg *constraint.Registry, ref string, logger zerolog.Logger) (*preset.Preset, error) {
	if strings.HasSuffix(strings.ToLower(ref), ".xml") || strings.ContainsRune(ref, filepath.Separator) {
		return preset.Load(ref, reg, logger)
	}

	return store.Get(ref)
}

// trackIndex resolves checkpoint anchors against tracks loaded from playlist files
type trackIndex map[string]*playlist.Track

func newTrackIndex(tracks []playlist.Track) trackIndex {
	idx := make(trackIndex, len(tracks))
	for i := range tracks {
		idx[tracks[i].URL] = &tracks[i]
	}

	return idx
}

func (t trackIndex) TrackForURL(url string) (*playlist.Track, bool) {
	track, ok := t[url]
	if !ok {
		return nil, false
	}

	cp := *track

	return &cp, true
}

// playlistCollections loads each playlist file as its own collection
func playlistCollections(paths []string, logger zerolog.Logger) ([]domain.Collection, trackIndex, error) {
	collections := make([]domain.Collection, 0, len(paths))

	var all []playlist.Track

	for _, path := range paths {
		tracks, err := playlist.LoadPlaylistWithMetadata(path, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load playlist %s: %w", path, err)
		}

		collections = append(collections, domain.NewMemoryCollection(filepath.Base(path), tracks))
		all = append(all, tracks...)
	}

	return collections, newTrackIndex(all), nil
}

// consoleNotifier prints user notices from the loader and generator
type consoleNotifier struct {
	out    io.Writer
	logger zerolog.Logger
}

func (n consoleNotifier) ShortMessage(msg string) {
	n.logger.Debug().Str("notice", msg).Msg("short message")
	colorWarning.Fprintf(n.out, "! %s\n", msg)
}

func (n consoleNotifier) LongMessage(msg string) {
	n.logger.Debug().Str("notice", msg).Msg("long message")
	colorWarning.Fprintf(n.out, "\n%s\n\n", msg)
}
