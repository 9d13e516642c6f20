// ABOUTME: Collection interface for track sources and an in-memory implementation
// ABOUTME: Collections stream matching tracks in batches so large libraries never load at once

package domain

import (
	"context"

	"playlist-generator/playlist"
)

// Collection is a queryable source of tracks.
// Query calls batch zero or more times and returns once every match has been
// delivered or ctx is cancelled. batch must not retain the slice.
type Collection interface {
	Name() string
	Query(ctx context.Context, filter *Filter, batch func([]playlist.Track)) error
}

// DefaultBatchSize is the batch length used by MemoryCollection.
const DefaultBatchSize = 100

// MemoryCollection serves a fixed track list, e.g. a loaded playlist file.
type MemoryCollection struct {
	name   string
	tracks []playlist.Track
}

// NewMemoryCollection wraps tracks. The slice is not copied and must not be
// modified while queries run.
func NewMemoryCollection(name string, tracks []playlist.Track) *MemoryCollection {
	return &MemoryCollection{name: name, tracks: tracks}
}

// Name returns the collection name.
func (m *MemoryCollection) Name() string {
	return m.name
}

// Len returns the number of tracks held.
func (m *MemoryCollection) Len() int {
	return len(m.tracks)
}

// Query evaluates the filter against every track.
func (m *MemoryCollection) Query(ctx context.Context, filter *Filter, batch func([]playlist.Track)) error {
	buf := make([]playlist.Track, 0, DefaultBatchSize)

	for i := range m.tracks {
		if i%DefaultBatchSize == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}

		if !filter.Match(&m.tracks[i]) {
			continue
		}

		buf = append(buf, m.tracks[i])
		if len(buf) == DefaultBatchSize {
			batch(buf)
			buf = buf[:0]
		}
	}

	if len(buf) > 0 {
		batch(buf)
	}

	return nil
}
