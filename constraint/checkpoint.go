// ABOUTME: Checkpoint anchors a track, album or artist to a time offset in the playlist
// ABOUTME: Scores the gap between the target time and the nearest matching occurrence

package constraint

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"playlist-generator/domain"
	"playlist-generator/playlist"
)

// CheckpointType selects what the checkpoint anchors.
type CheckpointType int

// Checkpoint anchors.
const (
	CheckpointTrack CheckpointType = iota
	CheckpointAlbum
	CheckpointArtist
)

// Resolver finds a library track by URL. It lets a checkpoint recover the
// album or artist of its anchor.
type Resolver interface {
	TrackForURL(url string) (*playlist.Track, bool)
}

// Checkpoint wants a matching track playing at Position milliseconds.
type Checkpoint struct {
	Position   int64
	Type       CheckpointType
	TrackURL   string
	Album      string
	Artist     string
	Title      string
	Strictness float64
}

// NewCheckpoint anchors the given track (or its album or artist) at position ms.
func NewCheckpoint(position int64, typ CheckpointType, anchor *playlist.Track) *Checkpoint {
	c := &Checkpoint{Position: position, Type: typ, Strictness: 1}
	if anchor != nil {
		c.SetAnchor(anchor)
	}

	return c
}

func checkpointFromAttributes(resolver Resolver) func(a Attributes) (Constraint, error) {
	return func(a Attributes) (Constraint, error) {
		typ := CheckpointType(a.Int("checkpointtype", int64(CheckpointTrack)))
		if typ < CheckpointTrack || typ > CheckpointArtist {
			typ = CheckpointTrack
		}

		c := &Checkpoint{
			Position:   a.Int("position", 0),
			Type:       typ,
			TrackURL:   a.String("trackurl", ""),
			Album:      a.String("album", ""),
			Artist:     a.String("artist", ""),
			Title:      a.String("title", ""),
			Strictness: clampStrictness(a.Float("strictness", 1)),
		}

		if resolver != nil && c.TrackURL != "" {
			if t, ok := resolver.TrackForURL(c.TrackURL); ok {
				c.SetAnchor(t)
			}
		}

		return c, nil
	}
}

// SetAnchor copies the identity of t.
func (c *Checkpoint) SetAnchor(t *playlist.Track) {
	c.TrackURL = t.URL
	c.Title = t.Title
	c.Album = t.Album

	c.Artist = t.Artist
	if c.Type == CheckpointAlbum && t.AlbumArtist != "" {
		c.Artist = t.AlbumArtist
	}
}

func (c *Checkpoint) Kind() string { return "Checkpoint" }

func (c *Checkpoint) Name() string {
	switch c.Type {
	case CheckpointAlbum:
		if c.Artist != "" {
			return fmt.Sprintf("Checkpoint: %q (album) by %s", c.Album, c.Artist)
		}

		return fmt.Sprintf("Checkpoint: %q (album)", c.Album)
	case CheckpointArtist:
		return fmt.Sprintf("Checkpoint: %q (artist)", c.Artist)
	}

	title := c.Title
	if title == "" {
		title = c.TrackURL
	}

	return fmt.Sprintf("Checkpoint: %q (track) by %s", title, c.Artist)
}

func (c *Checkpoint) Attributes() Attributes {
	a := Attributes{
		"position":       strconv.FormatInt(c.Position, 10),
		"checkpointtype": strconv.Itoa(int(c.Type)),
		"trackurl":       c.TrackURL,
		"strictness":     formatFloat(c.Strictness),
	}

	if c.Album != "" {
		a["album"] = c.Album
	}

	if c.Artist != "" {
		a["artist"] = c.Artist
	}

	if c.Title != "" {
		a["title"] = c.Title
	}

	return a
}

func (c *Checkpoint) matches(t *playlist.Track) bool {
	switch c.Type {
	case CheckpointAlbum:
		if c.Album == "" || !strings.EqualFold(t.Album, c.Album) {
			return false
		}

		if c.Artist == "" {
			return true
		}

		return strings.EqualFold(t.AlbumArtist, c.Artist) || strings.EqualFold(t.Artist, c.Artist)
	case CheckpointArtist:
		return c.Artist != "" && strings.EqualFold(t.Artist, c.Artist)
	}

	return c.TrackURL != "" && t.URL == c.TrackURL
}

// find returns the ascending positions of matching tracks.
func (c *Checkpoint) find(tracks []playlist.Track) []int {
	var pos []int

	for i := range tracks {
		if c.matches(&tracks[i]) {
			pos = append(pos, i)
		}
	}

	return pos
}

// Distance returns how far, in milliseconds, the nearest matching track is
// from the checkpoint position. ok is false when nothing matches.
func (c *Checkpoint) Distance(tracks []playlist.Track) (d int64, ok bool) {
	matches := c.find(tracks)
	if len(matches) == 0 {
		return 0, false
	}

	bt := newBoundaryTracker(tracks)
	target := bt.indexAtTime(c.Position)

	for _, m := range matches {
		if m == target {
			return 0, true
		}
	}

	first, last := matches[0], matches[len(matches)-1]

	if first > target {
		start, _ := bt.boundariesAt(first)
		return start - c.Position, true
	}

	if last < target {
		_, end := bt.boundariesAt(last)
		return c.Position - end, true
	}

	for i := 1; i < len(matches); i++ {
		below, above := matches[i-1], matches[i]
		if below < target && above > target {
			_, lowEnd := bt.boundariesAt(below)
			hiStart, _ := bt.boundariesAt(above)

			return min(c.Position-lowEnd, hiStart-c.Position), true
		}
	}

	return 0, false
}

// Satisfaction is exp(-d/(120000·(1+8·strictness))), or 0 when the anchor is absent.
func (c *Checkpoint) Satisfaction(tracks []playlist.Track) float64 {
	d, ok := c.Distance(tracks)
	if !ok {
		return 0
	}

	return clamp(math.Exp(-float64(max(d, 0)) / (120000 * (1 + 8*c.Strictness))))
}

func (c *Checkpoint) SuggestPlaylistSize() int {
	return int(c.Position/300000) + 1
}

func (c *Checkpoint) InitQuery(domain.FilterBuilder) {}

// boundaryTracker holds each track's [start,end) window in milliseconds.
type boundaryTracker struct {
	starts []int64
	ends   []int64
}

func newBoundaryTracker(tracks []playlist.Track) *boundaryTracker {
	bt := &boundaryTracker{
		starts: make([]int64, len(tracks)),
		ends:   make([]int64, len(tracks)),
	}

	var pos int64
	for i := range tracks {
		bt.starts[i] = pos
		pos += tracks[i].Length
		bt.ends[i] = pos
	}

	return bt
}

// indexAtTime returns the index playing at ms, or len when ms is past the end.
func (bt *boundaryTracker) indexAtTime(ms int64) int {
	for i := range bt.starts {
		if ms >= bt.starts[i] && ms < bt.ends[i] {
			return i
		}
	}

	return len(bt.starts)
}

func (bt *boundaryTracker) boundariesAt(i int) (int64, int64) {
	return bt.starts[i], bt.ends[i]
}
