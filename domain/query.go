// ABOUTME: Runs a filter against several collections concurrently and resolves a cancellable handle
// ABOUTME: Handle is the future the solver waits on before it may run

package domain

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"playlist-generator/playlist"
)

// ErrAborted is returned by Handle.Wait after Abort.
var ErrAborted = errors.New("domain query aborted")

// QueryMaker binds a filter to the collections it will run against.
type QueryMaker struct {
	collections []Collection
	filter      *Filter
	seed        uint64
}

// NewQueryMaker creates a query over the given collections.
// A nil filter returns every track.
func NewQueryMaker(filter *Filter, collections ...Collection) *QueryMaker {
	return &QueryMaker{collections: collections, filter: filter}
}

// WithSeed fixes the shuffle applied to the result. Zero keeps it random.
func (q *QueryMaker) WithSeed(seed uint64) *QueryMaker {
	q.seed = seed
	return q
}

// Run starts the query in the background and returns its handle.
func (q *QueryMaker) Run(ctx context.Context) *Handle {
	h := newHandle(ctx)

	go func() {
		tracks, err := q.collect(h.ctx)
		h.resolve(tracks, err)
	}()

	return h
}

// collect queries every collection concurrently. Results are kept per
// collection so the merged order does not depend on goroutine scheduling.
func (q *QueryMaker) collect(ctx context.Context) ([]playlist.Track, error) {
	var mu sync.Mutex

	found := make([][]playlist.Track, len(q.collections))

	g, gctx := errgroup.WithContext(ctx)

	for i, c := range q.collections {
		g.Go(func() error {
			err := c.Query(gctx, q.filter, func(batch []playlist.Track) {
				mu.Lock()
				found[i] = append(found[i], batch...)
				mu.Unlock()
			})
			if err != nil {
				return fmt.Errorf("failed to query %s: %w", c.Name(), err)
			}

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	var tracks []playlist.Track
	for _, part := range found {
		tracks = append(tracks, part...)
	}

	rng := rand.New(rand.NewPCG(q.seed, q.seed^0x9e3779b97f4a7c15))
	if q.seed == 0 {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	rng.Shuffle(len(tracks), func(i, j int) {
		tracks[i], tracks[j] = tracks[j], tracks[i]
	})

	return tracks, nil
}

// Handle is a cancellable future resolving to a track list.
type Handle struct {
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
	once     sync.Once
	aborted  atomic.Bool
	fellBack atomic.Bool

	tracks []playlist.Track
	err    error
}

func newHandle(parent context.Context) *Handle {
	ctx, cancel := context.WithCancel(parent)

	return &Handle{ctx: ctx, cancel: cancel, done: make(chan struct{})}
}

// resolve stores the result and releases waiters. Only the first call counts.
func (h *Handle) resolve(tracks []playlist.Track, err error) {
	h.once.Do(func() {
		if h.aborted.Load() {
			tracks, err = nil, ErrAborted
		}

		h.tracks = tracks
		h.err = err
		h.cancel()
		close(h.done)
	})
}

// Done is closed once the query has resolved.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Wait blocks until the query resolves or ctx ends.
func (h *Handle) Wait(ctx context.Context) ([]playlist.Track, error) {
	select {
	case <-h.done:
		return h.tracks, h.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Abort cancels the in-flight query. It is safe to call more than once and
// after the handle has resolved.
func (h *Handle) Abort() {
	select {
	case <-h.done:
		return
	default:
	}

	h.aborted.Store(true)
	h.cancel()
}

// Aborted reports whether Abort was called before resolution.
func (h *Handle) Aborted() bool {
	return h.aborted.Load()
}

// UsedFallback reports whether the filtered query came back empty and the
// unfiltered query was used instead.
func (h *Handle) UsedFallback() bool {
	return h.fellBack.Load()
}
