// ABOUTME: A named constraint tree and the orchestration that turns it into a playlist
// ABOUTME: Generate runs the solver on the job queue and hands the result to a sink

// Package preset stores constraint trees and generates playlists from them.
package preset

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"playlist-generator/constraint"
	"playlist-generator/domain"
	"playlist-generator/playlist"
	"playlist-generator/pool"
	"playlist-generator/solver"
)

// MsgNotSatisfied is shown when the best playlist found misses the threshold.
const MsgNotSatisfied = "The playlist generator created a playlist which does not meet all " +
	"of your constraints. If you are not satisfied with the results, try loosening or removing some constraints and then generating a new playlist."

// ErrAborted is returned by Generate when the run was cancelled.
var ErrAborted = errors.New("playlist generation aborted")

// ErrBusy is returned when the preset is already generating.
var ErrBusy = errors.New("preset is already generating")

// Preset is a titled constraint tree.
type Preset struct {
	Title string

	mu      sync.Mutex
	root    *constraint.Group
	running bool
}

// New creates a preset with an empty match-all tree.
func New(title string) *Preset {
	return &Preset{Title: title, root: constraint.NewGroup(constraint.MatchAll)}
}

// Root returns the tree root. It is never nil.
func (p *Preset) Root() *constraint.Group {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.root
}

// SetRoot replaces the tree. A nil root becomes an empty match-all group.
func (p *Preset) SetRoot(g *constraint.Group) {
	if g == nil {
		g = constraint.NewGroup(constraint.MatchAll)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.root = g
}

// Sink receives generated playlists.
type Sink interface {
	Replace(tracks []playlist.Track) error
}

// Result summarises a finished generation.
type Result struct {
	Tracks       []playlist.Track
	Satisfaction float64
	Satisfied    bool
	Generations  int
	SolverID     string
}

// Env wires Generate to its collaborators. Only Loader is required.
type Env struct {
	Loader        solver.Loader
	Queue         *pool.WorkerPool
	Sink          Sink
	Notifier      domain.Notifier
	Logger        zerolog.Logger
	SolverOptions []solver.Option
	OnLock        func(locked bool)
	Updates       chan<- solver.Update
}

// Generate solves the tree and delivers the playlist to env.Sink. The tree
// is locked for editing while the solver runs. Cancelling ctx aborts.
func (p *Preset) Generate(ctx context.Context, env Env) (Result, error) {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return Result{}, ErrBusy
	}

	p.running = true
	root := p.root
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.running = false
		p.mu.Unlock()
	}()

	notifier := env.Notifier
	if notifier == nil {
		notifier = domain.NopNotifier{}
	}

	logger := env.Logger.With().Str("preset", p.Title).Logger()

	opts := append([]solver.Option{solver.WithLogger(logger)}, env.SolverOptions...)
	if env.Updates != nil {
		opts = append(opts, solver.WithUpdates(env.Updates))
	}

	s := solver.New(ctx, root, env.Loader, opts...)

	lock(env, true)
	defer lock(env, false)

	select {
	case <-s.Ready():
	case <-ctx.Done():
		s.RequestAbort()
		s.CloseUpdates()
		logger.Info().Msg("generation cancelled while loading tracks")

		return Result{}, ErrAborted
	}

	// The spreader is removed whatever the outcome.
	spreader := constraint.NewTrackSpreader()
	root.Insert(0, spreader)

	defer root.Remove(spreader)

	var runErr error

	task := func() { runErr = s.Run(ctx) }

	if env.Queue != nil {
		<-env.Queue.Submit(task)
	} else {
		task()
	}

	if runErr != nil {
		return Result{}, fmt.Errorf("run solver: %w", runErr)
	}

	if !s.Success() {
		logger.Info().Str("solver", s.ID()).Msg("generation aborted, discarding result")
		return Result{}, ErrAborted
	}

	res := Result{
		Tracks:       s.Solution(),
		Satisfaction: s.FinalSatisfaction(),
		Satisfied:    s.Satisfied(),
		Generations:  s.Generations(),
		SolverID:     s.ID(),
	}

	if !res.Satisfied {
		notifier.LongMessage(MsgNotSatisfied)
	}

	if env.Sink != nil {
		if err := env.Sink.Replace(res.Tracks); err != nil {
			return res, fmt.Errorf("deliver playlist: %w", err)
		}
	}

	logger.Info().
		Int("tracks", len(res.Tracks)).
		Float64("satisfaction", res.Satisfaction).
		Msg("playlist generated")

	return res, nil
}

func lock(env Env, locked bool) {
	if env.OnLock != nil {
		env.OnLock(locked)
	}
}

// M3USink writes generated playlists to an M3U8 file.
type M3USink struct {
	Path string
}

// Replace overwrites the file with tracks.
func (m M3USink) Replace(tracks []playlist.Track) error {
	return playlist.WritePlaylist(m.Path, tracks)
}

// MemorySink keeps the last playlist it received.
type MemorySink struct {
	mu     sync.Mutex
	tracks []playlist.Track
}

// Replace stores tracks.
func (m *MemorySink) Replace(tracks []playlist.Track) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.tracks = append(m.tracks[:0:0], tracks...)

	return nil
}

// Tracks returns the stored playlist.
func (m *MemorySink) Tracks() []playlist.Track {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]playlist.Track(nil), m.tracks...)
}
