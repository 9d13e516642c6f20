// ABOUTME: Tests for the genetic-algorithm solver lifecycle and search
// ABOUTME: Uses in-memory collections so the domain resolves immediately

package solver

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"testing"
	"time"

	"playlist-generator/constraint"
	"playlist-generator/domain"
	"playlist-generator/playlist"
)

func testTracks(n int) []playlist.Track {
	out := make([]playlist.Track, n)
	for i := range out {
		out[i] = playlist.Track{
			URL:    fmt.Sprintf("file:///music/%02d.flac", i),
			Title:  fmt.Sprintf("Track %d", i),
			Artist: fmt.Sprintf("Artist %d", i%4),
			Genre:  []string{"rock", "jazz", "dnb"}[i%3],
			Length: int64(120000 + 15000*i),
		}
	}

	return out
}

func loaderFor(tracks []playlist.Track) *domain.Loader {
	return domain.NewLoader(
		[]domain.Collection{domain.NewMemoryCollection("test", tracks)},
		domain.WithShuffleSeed(7),
	)
}

func waitReady(t *testing.T, s *Solver) {
	t.Helper()

	select {
	case <-s.Ready():
	case <-time.After(5 * time.Second):
		t.Fatal("solver never became ready")
	}
}

func seededConfig(seed uint64) Config {
	cfg := DefaultConfig()
	cfg.Seed = seed

	return cfg
}

func TestSolverConverges(t *testing.T) {
	root := constraint.NewGroup(constraint.MatchAll)
	root.Add(constraint.NewPlaylistLength(5, constraint.Equal))

	s := New(context.Background(), root, loaderFor(testTracks(24)), WithConfig(seededConfig(1)))
	waitReady(t, s)

	if !s.CanBeExecuted() {
		t.Fatalf("state = %v, want ready", s.State())
	}

	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if !s.Success() {
		t.Fatal("expected success")
	}

	if s.FinalSatisfaction() < 0.95 || !s.Satisfied() {
		t.Errorf("final satisfaction %v below threshold", s.FinalSatisfaction())
	}

	if got := len(s.Solution()); got != 5 {
		t.Errorf("solution has %d tracks, want 5", got)
	}

	if s.State() != Completed {
		t.Errorf("state = %v, want completed", s.State())
	}
}

func TestSolverAbortBeforeRun(t *testing.T) {
	root := constraint.NewGroup(constraint.MatchAll)
	root.Add(constraint.NewPlaylistLength(5, constraint.Equal))

	s := New(context.Background(), root, loaderFor(testTracks(10)))
	waitReady(t, s)

	s.RequestAbort()

	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("abort must not surface as an error: %v", err)
	}

	if s.Success() {
		t.Error("aborted solver reported success")
	}

	if len(s.Solution()) != 0 || s.FinalSatisfaction() != 0 {
		t.Error("aborted solver must not expose a solution")
	}

	if s.State() != Aborted {
		t.Errorf("state = %v, want aborted", s.State())
	}
}

func TestSolverContextCancel(t *testing.T) {
	root := constraint.NewGroup(constraint.MatchAll)
	root.Add(constraint.NewPlaylistLength(5, constraint.Equal))

	s := New(context.Background(), root, loaderFor(testTracks(10)))
	waitReady(t, s)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := s.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if s.Success() {
		t.Error("cancelled run reported success")
	}
}

func TestSolverNilRoot(t *testing.T) {
	s := New(context.Background(), nil, loaderFor(testTracks(3)))

	select {
	case <-s.Ready():
	default:
		t.Fatal("nil root should be ready immediately")
	}

	if s.Success() {
		t.Error("nil root should be aborted")
	}

	if err := s.Run(context.Background()); err != nil {
		t.Errorf("nil root run should be a no-op, got %v", err)
	}

	if len(s.Solution()) != 0 {
		t.Error("nil root produced a solution")
	}
}

func TestSolverEmptyDomain(t *testing.T) {
	root := constraint.NewGroup(constraint.MatchAll)

	s := New(context.Background(), root, loaderFor(nil))
	waitReady(t, s)

	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if !s.Success() {
		t.Error("empty domain is not a failure")
	}

	if len(s.Solution()) != 0 || s.FinalSatisfaction() != 0 {
		t.Error("empty domain must give an empty solution")
	}
}

// stalledLoader never resolves until aborted.
type stalledLoader struct{}

func (stalledLoader) Load(ctx context.Context, _ domain.Hint) *domain.Handle {
	return domain.NewQueryMaker(nil, blockingCollection{}).Run(ctx)
}

type blockingCollection struct{}

func (blockingCollection) Name() string { return "blocking" }

func (blockingCollection) Query(ctx context.Context, _ *domain.Filter, _ func([]playlist.Track)) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestSolverRunBeforeReady(t *testing.T) {
	s := New(context.Background(), constraint.NewGroup(constraint.MatchAll), stalledLoader{})

	if err := s.Run(context.Background()); !errors.Is(err, ErrNotReady) {
		t.Fatalf("expected ErrNotReady, got %v", err)
	}

	if s.Success() {
		t.Error("refused run must be marked aborted")
	}

	s.RequestAbort()
	waitReady(t, s)

	if s.State() != Aborted {
		t.Errorf("state = %v, want aborted", s.State())
	}
}

func TestSolverDeterministic(t *testing.T) {
	tracks := testTracks(30)

	run := func() []string {
		root := constraint.NewGroup(constraint.MatchAll)
		root.Add(constraint.NewPlaylistDuration(3600000, constraint.Equal))
		root.Add(constraint.NewPreventDuplicates(constraint.DuplicateTrack))

		s := New(context.Background(), root, loaderFor(tracks), WithConfig(seededConfig(42)))
		waitReady(t, s)

		if err := s.Run(context.Background()); err != nil {
			t.Fatalf("Run: %v", err)
		}

		var urls []string
		for _, tr := range s.Solution() {
			urls = append(urls, tr.URL)
		}

		return urls
	}

	first, second := run(), run()
	if fmt.Sprint(first) != fmt.Sprint(second) {
		t.Errorf("same seed gave different playlists:\n%v\n%v", first, second)
	}
}

func TestSolverUpdates(t *testing.T) {
	root := constraint.NewGroup(constraint.MatchAll)
	root.Add(constraint.NewPlaylistLength(5, constraint.Equal))

	ch := make(chan Update, 256)
	s := New(context.Background(), root, loaderFor(testTracks(12)), WithUpdates(ch), WithConfig(seededConfig(3)))
	waitReady(t, s)

	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	var last Update
	for u := range ch {
		last = u
	}

	if !last.Done {
		t.Error("final update should be marked done")
	}

	if last.MaxGenerations != s.IterationCount() {
		t.Errorf("MaxGenerations = %d, want %d", last.MaxGenerations, s.IterationCount())
	}
}

func TestPoissonMean(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))

	for _, mean := range []float64{3, 15, 200} {
		sum := 0
		const n = 4000

		for range n {
			sum += poisson(rng, mean)
		}

		got := float64(sum) / n
		if got < mean*0.9 || got > mean*1.1 {
			t.Errorf("mean %v: sample mean %v", mean, got)
		}
	}

	if poisson(rng, 0) != 0 {
		t.Error("zero mean must give zero")
	}
}

func TestSurvivalProbability(t *testing.T) {
	tests := []struct {
		sat  float64
		low  float64
		high float64
	}{
		{0.8, 0.49, 0.51},
		{1.0, 0.99, 1.0},
		{0.3, 0, 0.001},
	}

	for _, tt := range tests {
		if p := survivalProbability(tt.sat); p < tt.low || p > tt.high {
			t.Errorf("survival(%v) = %v", tt.sat, p)
		}
	}
}

func TestCrossover(t *testing.T) {
	a := testTracks(4)
	b := testTracks(6)[2:]

	child := crossover(a, b)
	if len(child) != 4 {
		t.Fatalf("len = %d", len(child))
	}

	if child[0].URL != a[0].URL || child[3].URL != b[3].URL {
		t.Errorf("unexpected crossover %v", child)
	}
}

func TestSolverNeverReturnsEmpty(t *testing.T) {
	tests := []struct {
		name string
		size int
	}{
		{"two tracks", 2},
		{"five tracks", 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for seed := uint64(1); seed <= 40; seed++ {
				root := constraint.NewGroup(constraint.MatchAll)
				root.Add(constraint.NewPlaylistLength(tt.size, constraint.Equal))

				s := New(context.Background(), root, loaderFor(testTracks(24)), WithConfig(seededConfig(seed)))
				waitReady(t, s)

				if err := s.Run(context.Background()); err != nil {
					t.Fatalf("seed %d: Run: %v", seed, err)
				}

				sol := s.Solution()
				if len(sol) == 0 {
					t.Fatalf("seed %d: empty solution", seed)
				}

				if s.Satisfied() && len(sol) != tt.size {
					t.Errorf("seed %d: satisfied with %d tracks, want %d", seed, len(sol), tt.size)
				}
			}
		})
	}
}

func TestFillDrawsDistinctTracks(t *testing.T) {
	root := constraint.NewGroup(constraint.MatchAll)
	s := &Solver{cfg: DefaultConfig(), root: root, rng: rand.New(rand.NewPCG(3, 4))}

	domainTracks := testTracks(6)

	population := s.fill(nil, domainTracks, 20)
	if len(population) != s.cfg.PopulationSize {
		t.Fatalf("population = %d, want %d", len(population), s.cfg.PopulationSize)
	}

	for _, ind := range population {
		if n := len(ind.tracks); n < 1 || n > len(domainTracks) {
			t.Fatalf("candidate has %d tracks, want 1..%d", n, len(domainTracks))
		}

		seen := make(map[string]bool)
		for _, tr := range ind.tracks {
			if seen[tr.URL] {
				t.Fatalf("track %s drawn twice", tr.URL)
			}

			seen[tr.URL] = true
		}
	}
}

func TestScoreEmptyCandidate(t *testing.T) {
	s := &Solver{cfg: DefaultConfig(), root: constraint.NewGroup(constraint.MatchAll)}

	if got := s.score(nil).satisfaction; got != 0 {
		t.Errorf("empty candidate scored %v, want 0", got)
	}

	if got := s.score(testTracks(1)).satisfaction; got != 1 {
		t.Errorf("one-track candidate under empty group scored %v, want 1", got)
	}
}

func TestSampleDistinct(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))

	tests := []struct {
		size, n, want int
	}{
		{100, 5, 5},
		{10, 8, 8},
		{4, 9, 4},
	}

	for _, tt := range tests {
		got := sampleDistinct(rng, tt.size, tt.n)
		if len(got) != tt.want {
			t.Errorf("sampleDistinct(%d, %d) len = %d, want %d", tt.size, tt.n, len(got), tt.want)
		}

		seen := make(map[int]bool)
		for _, i := range got {
			if i < 0 || i >= tt.size || seen[i] {
				t.Errorf("sampleDistinct(%d, %d) = %v", tt.size, tt.n, got)
				break
			}

			seen[i] = true
		}
	}
}
