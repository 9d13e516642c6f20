// ABOUTME: PreventDuplicates penalises repeated tracks, albums or artists
// ABOUTME: TrackSpreader is the internal constraint that pushes repeated tracks apart

package constraint

import (
	"math"
	"strconv"
	"strings"

	"playlist-generator/domain"
	"playlist-generator/playlist"
)

// DuplicateField selects what counts as a duplicate.
type DuplicateField int

// Duplicate identities.
const (
	DuplicateTrack DuplicateField = iota
	DuplicateAlbum
	DuplicateArtist
)

func (d DuplicateField) String() string {
	switch d {
	case DuplicateAlbum:
		return "albums"
	case DuplicateArtist:
		return "artists"
	default:
		return "tracks"
	}
}

// PreventDuplicates scores exp(-duplicates/3).
type PreventDuplicates struct {
	Field DuplicateField
}

// NewPreventDuplicates creates the constraint for field.
func NewPreventDuplicates(field DuplicateField) *PreventDuplicates {
	return &PreventDuplicates{Field: field}
}

func preventDuplicatesFromAttributes(a Attributes) (Constraint, error) {
	f := DuplicateField(a.Int("field", int64(DuplicateTrack)))
	if f < DuplicateTrack || f > DuplicateArtist {
		f = DuplicateTrack
	}

	return &PreventDuplicates{Field: f}, nil
}

func (p *PreventDuplicates) Kind() string { return "PreventDuplicates" }

func (p *PreventDuplicates) Name() string {
	return "Prevent duplicate " + p.Field.String()
}

func (p *PreventDuplicates) Attributes() Attributes {
	return Attributes{"field": strconv.Itoa(int(p.Field))}
}

// key returns the identity for a track, or "" when it can never duplicate.
func (p *PreventDuplicates) key(t *playlist.Track) string {
	switch p.Field {
	case DuplicateAlbum:
		if t.Album == "" {
			return ""
		}

		artist := t.AlbumArtist
		if artist == "" {
			artist = t.Artist
		}

		return strings.ToLower(artist) + "\x00" + strings.ToLower(t.Album)
	case DuplicateArtist:
		return strings.ToLower(t.Artist)
	default:
		return t.Key()
	}
}

// Duplicates counts occurrences beyond the first of each identity.
func (p *PreventDuplicates) Duplicates(tracks []playlist.Track) int {
	seen := make(map[string]int, len(tracks))
	dup := 0

	for i := range tracks {
		k := p.key(&tracks[i])
		if k == "" {
			continue
		}

		if seen[k] > 0 {
			dup++
		}

		seen[k]++
	}

	return dup
}

func (p *PreventDuplicates) Satisfaction(tracks []playlist.Track) float64 {
	return clamp(math.Exp(-float64(p.Duplicates(tracks)) / 3))
}

func (p *PreventDuplicates) SuggestPlaylistSize() int { return 0 }

func (p *PreventDuplicates) InitQuery(domain.FilterBuilder) {}

// TrackSpreader keeps repeated tracks far apart. It is added around a solve
// and never persisted.
type TrackSpreader struct{}

// NewTrackSpreader returns the spreader.
func NewTrackSpreader() *TrackSpreader {
	return &TrackSpreader{}
}

func (s *TrackSpreader) Kind() string { return "TrackSpreader" }

func (s *TrackSpreader) Name() string { return "Track spreader" }

func (s *TrackSpreader) Attributes() Attributes { return Attributes{} }

// Satisfaction is exp(-0.1·Σ exp(-0.05·(j-i-1))) over pairs of equal tracks.
func (s *TrackSpreader) Satisfaction(tracks []playlist.Track) float64 {
	positions := make(map[string][]int)
	for i := range tracks {
		k := tracks[i].Key()
		positions[k] = append(positions[k], i)
	}

	var dist float64

	for _, pos := range positions {
		for a := 0; a < len(pos); a++ {
			for b := a + 1; b < len(pos); b++ {
				dist += math.Exp(-0.05 * float64(pos[b]-pos[a]-1))
			}
		}
	}

	return clamp(math.Exp(-0.1 * dist))
}

func (s *TrackSpreader) SuggestPlaylistSize() int { return 0 }

func (s *TrackSpreader) InitQuery(domain.FilterBuilder) {}
