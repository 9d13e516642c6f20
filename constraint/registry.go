// ABOUTME: Registry maps persisted constraint kind names to constructors
// ABOUTME: A registry is an explicit value created per caller rather than a process-wide singleton

package constraint

import (
	"errors"
	"fmt"
	"sort"
)

// ErrUnknownKind is returned for a kind the registry does not know.
var ErrUnknownKind = errors.New("unknown constraint kind")

// Entry describes one constraint kind.
type Entry struct {
	Kind        string
	Title       string
	Description string
	Hidden      bool // readable from presets but not offered for new trees
	New         func() Constraint
	Parse       func(a Attributes) (Constraint, error)
}

// Registry holds the known constraint kinds.
type Registry struct {
	entries map[string]Entry
}

// NewRegistry returns a registry with every built-in kind. resolver may be
// nil; when set, checkpoints look up their anchor track on load.
func NewRegistry(resolver Resolver) *Registry {
	r := &Registry{entries: make(map[string]Entry)}

	r.Register(Entry{
		Kind:        "TagMatch",
		Title:       "Match Tags",
		Description: "Make all tracks in the playlist match the specified characteristic",
		New:         func() Constraint { return newDefaultTagMatch() },
		Parse:       tagMatchFromAttributes,
	})
	r.Register(Entry{
		Kind:        "PlaylistDuration",
		Title:       "Playlist Duration",
		Description: "Sets the preferred duration of the playlist",
		New:         func() Constraint { return NewPlaylistDuration(0, Equal) },
		Parse:       playlistDurationFromAttributes,
	})
	r.Register(Entry{
		Kind:        "PlaylistFileSize",
		Title:       "Total File Size of Playlist",
		Description: "Sets the preferred total file size of the playlist",
		New:         func() Constraint { return NewPlaylistFileSize(700, Megabytes, Equal) },
		Parse:       playlistFileSizeFromAttributes,
	})
	r.Register(Entry{
		Kind:        "PreventDuplicates",
		Title:       "Prevent Duplicates",
		Description: "Prevents duplicate tracks, albums, or artists from appearing in the playlist",
		New:         func() Constraint { return NewPreventDuplicates(DuplicateTrack) },
		Parse:       preventDuplicatesFromAttributes,
	})
	r.Register(Entry{
		Kind:        "Checkpoint",
		Title:       "Checkpoint",
		Description: "Fixes a track, album, or artist to a certain position in the playlist",
		New:         func() Constraint { return NewCheckpoint(0, CheckpointTrack, nil) },
		Parse:       checkpointFromAttributes(resolver),
	})
	r.Register(Entry{
		Kind:        "PlaylistLength",
		Title:       "Playlist Length",
		Description: "Sets the preferred number of tracks in the playlist",
		Hidden:      true,
		New:         func() Constraint { return NewPlaylistLength(15, Equal) },
		Parse:       playlistLengthFromAttributes,
	})

	return r
}

// Register adds or replaces a kind.
func (r *Registry) Register(e Entry) {
	r.entries[e.Kind] = e
}

// Lookup returns the entry for kind.
func (r *Registry) Lookup(kind string) (Entry, bool) {
	e, ok := r.entries[kind]
	return e, ok
}

// Kinds returns the visible kinds in sorted order.
func (r *Registry) Kinds() []string {
	kinds := make([]string, 0, len(r.entries))

	for k, e := range r.entries {
		if !e.Hidden {
			kinds = append(kinds, k)
		}
	}

	sort.Strings(kinds)

	return kinds
}

// New creates a kind with its default parameters.
func (r *Registry) New(kind string) (Constraint, error) {
	e, ok := r.entries[kind]
	if !ok || e.New == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}

	return e.New(), nil
}

// FromAttributes builds a kind from persisted attributes. Missing attributes
// take the kind's defaults.
func (r *Registry) FromAttributes(kind string, a Attributes) (Constraint, error) {
	e, ok := r.entries[kind]
	if !ok || e.Parse == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}

	c, err := e.Parse(a)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", kind, err)
	}

	return c, nil
}
