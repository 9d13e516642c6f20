// ABOUTME: Genetic-algorithm solver that searches for a playlist satisfying a constraint tree
// ABOUTME: Owns the domain future, the population and the abort flag of a single run

// Package solver builds playlists with a genetic algorithm.
//
// A Solver is created with a constraint tree and a domain loader. It starts
// loading the candidate tracks immediately and refuses to run until they
// arrive. Each generation:
//  1. Re-derives the suggested playlist size from the tree
//  2. Fills the population with Poisson-length random playlists from the domain
//  3. Finds the best individual and stops at the satisfaction threshold or generation cap
//  4. Lets each other individual survive with probability 1/(1+exp(-30(s-0.8)))
//  5. Refills up to 35% of the population with mutated or recombined survivors
package solver

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"playlist-generator/constraint"
	"playlist-generator/domain"
	"playlist-generator/playlist"
)

// ErrNotReady is returned by Run before the domain has loaded.
var ErrNotReady = errors.New("solver is not ready to run")

// Config holds the tunables of the search.
type Config struct {
	PopulationSize        int
	SatisfactionThreshold float64
	MaxGenerations        int
	DefaultPlaylistSize   int
	MutationFraction      float64
	Seed                  uint64 // 0 picks a random seed
	MaxPlaylistSize       int
}

// DefaultConfig returns the standard search parameters.
func DefaultConfig() Config {
	return Config{
		PopulationSize:        40,
		SatisfactionThreshold: 0.95,
		MaxGenerations:        100,
		DefaultPlaylistSize:   15,
		MutationFraction:      0.35,
		MaxPlaylistSize:       1000,
	}
}

// normalized replaces unusable values with defaults.
func (c Config) normalized() Config {
	def := DefaultConfig()

	if c.PopulationSize < 2 {
		c.PopulationSize = def.PopulationSize
	}

	if c.SatisfactionThreshold <= 0 || c.SatisfactionThreshold > 1 {
		c.SatisfactionThreshold = def.SatisfactionThreshold
	}

	if c.MaxGenerations <= 0 {
		c.MaxGenerations = def.MaxGenerations
	}

	if c.DefaultPlaylistSize <= 0 {
		c.DefaultPlaylistSize = def.DefaultPlaylistSize
	}

	if c.MutationFraction <= 0 || c.MutationFraction > 1 {
		c.MutationFraction = def.MutationFraction
	}

	if c.MaxPlaylistSize <= 0 {
		c.MaxPlaylistSize = def.MaxPlaylistSize
	}

	return c
}

// State is the lifecycle position of a solver.
type State int32

// Solver states.
const (
	Idle State = iota
	AwaitingDomain
	Ready
	Running
	Completed
	Aborted
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case AwaitingDomain:
		return "awaiting domain"
	case Ready:
		return "ready"
	case Running:
		return "running"
	case Completed:
		return "completed"
	case Aborted:
		return "aborted"
	}

	return fmt.Sprintf("state(%d)", int(s))
}

// Loader produces the candidate domain.
type Loader interface {
	Load(ctx context.Context, hint domain.Hint) *domain.Handle
}

// Option configures a Solver.
type Option func(*Solver)

// WithConfig sets the search parameters.
func WithConfig(cfg Config) Option {
	return func(s *Solver) { s.cfg = cfg.normalized() }
}

// WithLogger sets the solver's logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Solver) { s.logger = logger }
}

// WithUpdates makes the solver report progress on ch. The channel is closed
// when the run ends.
func WithUpdates(ch chan<- Update) Option {
	return func(s *Solver) { s.updates = ch }
}

// individual is one candidate playlist and its score.
type individual struct {
	tracks       []playlist.Track
	satisfaction float64
}

// Solver runs one search. Create a new one per generated playlist.
type Solver struct {
	id      uuid.UUID
	cfg     Config
	logger  zerolog.Logger
	root    constraint.Node
	rng     *rand.Rand
	updates chan<- Update

	mu       sync.Mutex
	state    State
	domain   []playlist.Track
	handle   *domain.Handle
	ready    chan struct{}
	readyOne sync.Once
	stopCtx  func() bool

	abort       atomic.Bool
	solution    []playlist.Track
	finalSat    float64
	generations int

	progress *progressTracker
}

// New creates a solver for root and starts loading its domain. A nil root
// yields a solver that is ready and already aborted.
func New(ctx context.Context, root constraint.Node, loader Loader, opts ...Option) *Solver {
	s := &Solver{
		id:     uuid.New(),
		cfg:    DefaultConfig(),
		logger: zerolog.Nop(),
		root:   root,
		state:  Idle,
		ready:  make(chan struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}

	seed := s.cfg.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}

	s.rng = rand.New(rand.NewPCG(seed, seed^0x5851f42d4c957f2d))
	s.logger = s.logger.With().Str("solver", s.id.String()).Logger()
	s.progress = newProgressTracker(s.updates, s.cfg.MaxGenerations)

	if isNilNode(root) || loader == nil {
		s.logger.Error().Msg("no constraint tree or loader passed to the solver, aborting")
		s.abort.Store(true)
		s.setState(Aborted)
		s.markReady()

		return s
	}

	s.setState(AwaitingDomain)
	s.stopCtx = context.AfterFunc(ctx, s.RequestAbort)

	s.mu.Lock()
	s.handle = loader.Load(ctx, root)
	h := s.handle
	s.mu.Unlock()

	// An abort may have landed before the handle existed.
	if s.abort.Load() {
		h.Abort()
	}

	go s.awaitDomain(h)

	s.logger.Debug().Msg("new solver, loading domain")

	return s
}

func isNilNode(n constraint.Node) bool {
	if n == nil {
		return true
	}

	g, ok := n.(*constraint.Group)

	return ok && g == nil
}

func (s *Solver) awaitDomain(h *domain.Handle) {
	<-h.Done()

	tracks, err := h.Wait(context.Background())

	s.mu.Lock()
	s.handle = nil

	switch {
	case err != nil && errors.Is(err, domain.ErrAborted):
		s.state = Aborted
	case err != nil:
		s.logger.Error().Err(err).Msg("failed to load domain")
		s.abort.Store(true)
		s.state = Aborted
	case s.abort.Load():
		s.state = Aborted
	default:
		s.domain = tracks
		s.state = Ready
	}
	s.mu.Unlock()

	s.logger.Debug().Int("tracks", len(tracks)).Msg("domain ready")
	s.markReady()
}

func (s *Solver) markReady() {
	s.readyOne.Do(func() { close(s.ready) })
}

func (s *Solver) setState(st State) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = st
}

// ID identifies the solver in logs.
func (s *Solver) ID() string {
	return s.id.String()
}

// State returns the current lifecycle state.
func (s *Solver) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state
}

// Ready is closed once the domain query has resolved, successfully or not.
func (s *Solver) Ready() <-chan struct{} {
	return s.ready
}

// CanBeExecuted reports whether Run may start.
func (s *Solver) CanBeExecuted() bool {
	return s.State() == Ready
}

// RequestAbort stops the solver at its next check. It is safe from any
// goroutine and cancels an in-flight domain query.
func (s *Solver) RequestAbort() {
	s.abort.Store(true)

	s.mu.Lock()
	h := s.handle
	s.mu.Unlock()

	if h != nil {
		h.Abort()
	}
}

// Success reports whether the solver finished without being aborted.
func (s *Solver) Success() bool {
	return !s.abort.Load()
}

// IterationCount is the generation cap, for progress displays.
func (s *Solver) IterationCount() int {
	return s.cfg.MaxGenerations
}

// Generations returns how many generations the last run completed.
func (s *Solver) Generations() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.generations
}

// Solution returns the resulting playlist; empty after an abort.
func (s *Solver) Solution() []playlist.Track {
	s.mu.Lock()
	defer s.mu.Unlock()

	return slices.Clone(s.solution)
}

// FinalSatisfaction is the score of Solution, or 0 after an abort.
func (s *Solver) FinalSatisfaction() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.finalSat
}

// Satisfied reports whether the result met the satisfaction threshold.
func (s *Solver) Satisfied() bool {
	return s.FinalSatisfaction() >= s.cfg.SatisfactionThreshold
}

// Threshold returns the satisfaction the search aims for.
func (s *Solver) Threshold() float64 {
	return s.cfg.SatisfactionThreshold
}

// CloseUpdates closes the progress channel for a solver that will never run.
func (s *Solver) CloseUpdates() {
	s.progress.close()
}

// Run performs the search. It refuses to start unless the solver is Ready,
// marking it aborted. Cancelling ctx is the same as RequestAbort.
func (s *Solver) Run(ctx context.Context) error {
	defer s.progress.close()

	s.mu.Lock()
	if s.state == Aborted {
		// Aborted before running: a no-op run with no solution.
		s.solution = nil
		s.finalSat = 0
		s.mu.Unlock()

		return nil
	}

	if s.state != Ready {
		state := s.state
		s.abort.Store(true)
		s.state = Aborted
		s.mu.Unlock()

		s.logger.Error().Stringer("state", state).Msg("solver tried to run before its domain query finished")

		return ErrNotReady
	}

	s.state = Running
	domainTracks := s.domain
	s.mu.Unlock()

	if s.stopCtx != nil {
		defer s.stopCtx()
	}

	stop := context.AfterFunc(ctx, s.RequestAbort)
	defer stop()

	if len(domainTracks) == 0 {
		s.logger.Info().Msg("the domain is empty, nothing to do")
		s.finish(nil, 0)

		return nil
	}

	s.logger.Info().Int("domain", len(domainTracks)).Msg("running solver")

	if r, ok := s.root.(constraint.RandomUser); ok {
		r.UseRand(s.rng)
	}

	best, gens := s.evolve(domainTracks)

	if s.abort.Load() {
		s.logger.Info().Int("generations", gens).Msg("solver aborted")
		s.finish(nil, gens)

		return nil
	}

	solution := slices.Clone(best.tracks)
	s.finish(solution, gens)

	s.logger.Info().
		Int("generations", gens).
		Int("tracks", len(solution)).
		Float64("satisfaction", s.FinalSatisfaction()).
		Msg("solver finished")

	return nil
}

// finish records the result. A nil solution after an abort clears everything.
func (s *Solver) finish(solution []playlist.Track, gens int) {
	sat := 0.0
	if len(solution) > 0 && !s.abort.Load() {
		sat = s.root.Satisfaction(solution)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.generations = gens

	if s.abort.Load() {
		s.solution = nil
		s.finalSat = 0
		s.state = Aborted

		return
	}

	s.solution = solution
	s.finalSat = sat
	s.state = Completed
}

// evolve runs the generation loop and returns the best individual seen.
func (s *Solver) evolve(domainTracks []playlist.Track) (individual, int) {
	popSize := s.cfg.PopulationSize
	population := make([]individual, 0, popSize)

	var (
		best     individual
		bestSeen = -1.0
		gen      int
	)

	for !s.abort.Load() {
		suggested := s.root.SuggestPlaylistSize()
		if suggested <= 0 {
			suggested = s.cfg.DefaultPlaylistSize
		}

		population = s.fill(population, domainTracks, suggested)
		if s.abort.Load() {
			break
		}

		bestIdx := bestOf(population)
		best = population[bestIdx]

		improved := best.satisfaction > bestSeen
		if improved {
			bestSeen = best.satisfaction
		}

		done := best.satisfaction >= s.cfg.SatisfactionThreshold || gen >= s.cfg.MaxGenerations
		s.progress.sendUpdate(gen, best, len(population), improved, done)

		if done {
			break
		}

		population = s.selectSurvivors(population, bestIdx)
		if s.abort.Load() {
			break
		}

		population = s.mutate(population, domainTracks)
		if s.abort.Load() {
			break
		}

		gen++

		s.logger.Debug().Int("generation", gen).Float64("best", best.satisfaction).Int("size", len(best.tracks)).Msg("generation done")
	}

	// Release the population.
	clear(population)

	return best, gen
}

// fill tops the population up with random playlists of Poisson length.
func (s *Solver) fill(population []individual, domainTracks []playlist.Track, mean int) []individual {
	for len(population) < s.cfg.PopulationSize {
		if s.abort.Load() {
			return population
		}

		n := max(1, min(poisson(s.rng, float64(mean)), s.cfg.MaxPlaylistSize, len(domainTracks)))

		idx := sampleDistinct(s.rng, len(domainTracks), n)
		tracks := make([]playlist.Track, n)
		for i, j := range idx {
			tracks[i] = domainTracks[j]
		}

		population = append(population, s.score(tracks))
	}

	return population
}

// score rates a candidate. An empty candidate never wins, whatever the tree
// says about empty playlists.
func (s *Solver) score(tracks []playlist.Track) individual {
	if len(tracks) == 0 {
		return individual{tracks: tracks}
	}

	return individual{tracks: tracks, satisfaction: s.root.Satisfaction(tracks)}
}

// sampleDistinct picks n distinct indices from [0, size) in random order.
func sampleDistinct(rng *rand.Rand, size, n int) []int {
	n = min(n, size)
	if n*2 >= size {
		return rng.Perm(size)[:n]
	}

	seen := make(map[int]struct{}, n)
	out := make([]int, 0, n)

	for len(out) < n {
		i := rng.IntN(size)
		if _, ok := seen[i]; ok {
			continue
		}

		seen[i] = struct{}{}
		out = append(out, i)
	}

	return out
}

func bestOf(population []individual) int {
	idx := 0
	for i := 1; i < len(population); i++ {
		if population[i].satisfaction > population[idx].satisfaction {
			idx = i
		}
	}

	return idx
}

// survivalProbability is a logistic curve centred on 0.8.
func survivalProbability(satisfaction float64) float64 {
	return 1 / (1 + math.Exp(-30*(satisfaction-0.8)))
}

// selectSurvivors keeps the best and lets the others survive by chance.
func (s *Solver) selectSurvivors(population []individual, bestIdx int) []individual {
	survivors := make([]individual, 0, len(population))
	survivors = append(survivors, population[bestIdx])

	for i, ind := range population {
		if i == bestIdx {
			continue
		}

		if survivalProbability(ind.satisfaction) > s.rng.Float64() {
			survivors = append(survivors, ind)
		}
	}

	return survivors
}

// mutate refills the population up to the mutation fraction with altered
// copies of random survivors.
func (s *Solver) mutate(population []individual, domainTracks []playlist.Track) []individual {
	target := int(s.cfg.MutationFraction * float64(s.cfg.PopulationSize))
	parents := len(population)

	for len(population) < target {
		if s.abort.Load() {
			return population
		}

		parent := population[s.rng.IntN(parents)].tracks
		child := slices.Clone(parent)

		switch s.rng.IntN(5) {
		case 0: // delete a random track
			if len(child) > 0 {
				i := s.rng.IntN(len(child))
				child = slices.Delete(child, i, i+1)
			}
		case 1: // insert a random domain track
			if len(child) < s.cfg.MaxPlaylistSize {
				child = slices.Insert(child, s.rng.IntN(len(child)+1), domainTracks[s.rng.IntN(len(domainTracks))])
			}
		case 2: // replace a random track
			if len(child) > 0 {
				child[s.rng.IntN(len(child))] = domainTracks[s.rng.IntN(len(domainTracks))]
			}
		case 3: // swap two tracks
			if len(child) > 1 {
				i, j := s.rng.IntN(len(child)), s.rng.IntN(len(child))
				child[i], child[j] = child[j], child[i]
			}
		case 4: // midpoint crossover with another survivor
			other := population[s.rng.IntN(parents)].tracks
			child = crossover(parent, other)
		}

		population = append(population, s.score(child))
	}

	return population
}

// crossover joins the first half of a with the second half of b.
func crossover(a, b []playlist.Track) []playlist.Track {
	child := make([]playlist.Track, 0, len(a)/2+len(b)-len(b)/2)
	child = append(child, a[:len(a)/2]...)
	child = append(child, b[len(b)/2:]...)

	return child
}

// poisson draws from a Poisson distribution by counting unit-rate
// exponential arrivals before mean.
func poisson(rng *rand.Rand, mean float64) int {
	if mean <= 0 {
		return 0
	}

	k := 0
	t := 0.0

	for {
		t += rng.ExpFloat64()
		if t > mean {
			return k
		}

		k++
	}
}
