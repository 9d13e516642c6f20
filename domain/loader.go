// ABOUTME: Loads the candidate domain for a solve from constraint query hints
// ABOUTME: Falls back once to an unfiltered query when the hints exclude every track

package domain

import (
	"context"

	"github.com/rs/zerolog"

	"playlist-generator/playlist"
)

// Messages surfaced through the Notifier.
const (
	MsgFallback = "There are no tracks that match all constraints. The playlist generator will find " +
		"the tracks that match best, but you may want to consider loosening the constraints to find more tracks."
	MsgNoTracks = "The playlist generator failed to load any tracks from the collection."
)

// Hint is anything that can narrow the domain, normally a constraint tree root.
type Hint interface {
	InitQuery(b FilterBuilder)
}

// Loader fetches candidate tracks from a set of collections.
type Loader struct {
	collections []Collection
	notifier    Notifier
	logger      zerolog.Logger
	seed        uint64
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithNotifier sets where fallback notices go.
func WithNotifier(n Notifier) LoaderOption {
	return func(l *Loader) { l.notifier = n }
}

// WithLogger sets the loader's logger.
func WithLogger(logger zerolog.Logger) LoaderOption {
	return func(l *Loader) { l.logger = logger }
}

// WithShuffleSeed fixes the order of loaded domains.
func WithShuffleSeed(seed uint64) LoaderOption {
	return func(l *Loader) { l.seed = seed }
}

// NewLoader creates a loader over collections.
func NewLoader(collections []Collection, opts ...LoaderOption) *Loader {
	l := &Loader{
		collections: collections,
		notifier:    NopNotifier{},
		logger:      zerolog.Nop(),
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Load starts fetching the domain narrowed by hint (which may be nil).
// The returned handle resolves to the tracks; an empty library resolves to an
// empty slice with no error.
func (l *Loader) Load(ctx context.Context, hint Hint) *Handle {
	var filter *Filter

	if hint != nil {
		b := NewBuilder()
		hint.InitQuery(b)
		filter = b.Filter()
	}

	h := newHandle(ctx)

	go func() {
		tracks, err := l.load(h, filter)
		h.resolve(tracks, err)
	}()

	return h
}

func (l *Loader) load(h *Handle, filter *Filter) ([]playlist.Track, error) {
	l.logger.Debug().Stringer("filter", filter).Msg("loading domain")

	tracks, err := l.query(h.ctx, filter)
	if err != nil {
		return nil, err
	}

	if len(tracks) == 0 && filter != nil && !h.fellBack.Load() {
		h.fellBack.Store(true)
		l.notifier.LongMessage(MsgFallback)
		l.logger.Info().Msg("domain filter matched no tracks, retrying unfiltered")

		tracks, err = l.query(h.ctx, nil)
		if err != nil {
			return nil, err
		}
	}

	if len(tracks) == 0 {
		l.notifier.ShortMessage(MsgNoTracks)
		return []playlist.Track{}, nil
	}

	l.logger.Debug().Int("tracks", len(tracks)).Bool("fallback", h.fellBack.Load()).Msg("domain loaded")

	return tracks, nil
}

func (l *Loader) query(ctx context.Context, filter *Filter) ([]playlist.Track, error) {
	return NewQueryMaker(filter, l.collections...).WithSeed(l.seed).Run(ctx).Wait(ctx)
}
