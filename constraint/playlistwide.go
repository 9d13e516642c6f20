// ABOUTME: Constraints on whole-playlist totals: duration, file size and the legacy track count
// ABOUTME: Each scores the distance from its target with a logistic less/equal/greater shape

package constraint

import (
	"fmt"
	"math"
	"strconv"

	"playlist-generator/domain"
	"playlist-generator/playlist"
)

// PlaylistDuration constrains the total playing time.
type PlaylistDuration struct {
	Duration   int64 // milliseconds
	Comparison Comparison
	Strictness float64
}

// NewPlaylistDuration creates a duration constraint; ms is the target in milliseconds.
func NewPlaylistDuration(ms int64, cmp Comparison) *PlaylistDuration {
	return &PlaylistDuration{Duration: ms, Comparison: cmp, Strictness: 1}
}

// Older presets stored seconds. Without a unit, a duration under one second
// only makes sense as seconds.
const legacySecondsLimit = 1000

func playlistDurationFromAttributes(a Attributes) (Constraint, error) {
	d := a.Int("duration", 0)

	switch a.String("unit", "") {
	case "s":
		d *= 1000
	case "":
		if d > 0 && d < legacySecondsLimit {
			d *= 1000
		}
	}

	return &PlaylistDuration{
		Duration:   d,
		Comparison: parseComparison(int(a.Int("comparison", int64(Equal)))),
		Strictness: clampStrictness(a.Float("strictness", 1)),
	}, nil
}

func (p *PlaylistDuration) Kind() string { return "PlaylistDuration" }

func (p *PlaylistDuration) Name() string {
	return fmt.Sprintf("Playlist duration: %s %s", p.Comparison, playlist.FormatLength(p.Duration))
}

func (p *PlaylistDuration) Attributes() Attributes {
	return Attributes{
		"duration":   strconv.FormatInt(p.Duration, 10),
		"unit":       "ms",
		"comparison": strconv.Itoa(int(p.Comparison)),
		"strictness": formatFloat(p.Strictness),
	}
}

func (p *PlaylistDuration) Satisfaction(tracks []playlist.Track) float64 {
	x := float64(playlist.TotalLength(tracks) - p.Duration)
	return logistic(p.Comparison, x, 0.0003*p.Strictness)
}

func (p *PlaylistDuration) SuggestPlaylistSize() int {
	switch p.Comparison {
	case Less:
		return int(p.Duration / 300000)
	case Greater:
		return int(p.Duration / 180000)
	default:
		return int(p.Duration / 240000)
	}
}

func (p *PlaylistDuration) InitQuery(domain.FilterBuilder) {}

// PlaylistLength constrains the number of tracks. It survives only to read
// old presets and for programmatic use.
type PlaylistLength struct {
	Length     int
	Comparison Comparison
	Strictness float64
}

// NewPlaylistLength creates a track-count constraint.
func NewPlaylistLength(n int, cmp Comparison) *PlaylistLength {
	return &PlaylistLength{Length: n, Comparison: cmp, Strictness: 1}
}

func playlistLengthFromAttributes(a Attributes) (Constraint, error) {
	return &PlaylistLength{
		Length:     int(a.Int("length", 0)),
		Comparison: parseComparison(int(a.Int("comparison", int64(Equal)))),
		Strictness: clampStrictness(a.Float("strictness", 1)),
	}, nil
}

func (p *PlaylistLength) Kind() string { return "PlaylistLength" }

func (p *PlaylistLength) Name() string {
	return fmt.Sprintf("Playlist length: %s %d tracks", p.Comparison, p.Length)
}

func (p *PlaylistLength) Attributes() Attributes {
	return Attributes{
		"length":     strconv.Itoa(p.Length),
		"comparison": strconv.Itoa(int(p.Comparison)),
		"strictness": formatFloat(p.Strictness),
	}
}

func (p *PlaylistLength) Satisfaction(tracks []playlist.Track) float64 {
	x := float64(len(tracks) - p.Length)
	return logistic(p.Comparison, x, 2*p.Strictness)
}

func (p *PlaylistLength) SuggestPlaylistSize() int {
	return p.Length
}

func (p *PlaylistLength) InitQuery(domain.FilterBuilder) {}

// SizeUnit scales PlaylistFileSize targets.
type SizeUnit int

// Decimal size units.
const (
	Kilobytes SizeUnit = iota
	Megabytes
	Gigabytes
	Terabytes
)

func (u SizeUnit) multiplier() int64 {
	switch u {
	case Kilobytes:
		return 1000
	case Gigabytes:
		return 1000 * 1000 * 1000
	case Terabytes:
		return 1000 * 1000 * 1000 * 1000
	default:
		return 1000 * 1000
	}
}

func (u SizeUnit) String() string {
	return [...]string{"KB", "MB", "GB", "TB"}[max(0, min(int(u), 3))]
}

// PlaylistFileSize constrains the total size of the files.
type PlaylistFileSize struct {
	Size       int64
	Unit       SizeUnit
	Comparison Comparison
	Strictness float64
}

// NewPlaylistFileSize creates a size constraint of size units.
func NewPlaylistFileSize(size int64, unit SizeUnit, cmp Comparison) *PlaylistFileSize {
	return &PlaylistFileSize{Size: size, Unit: unit, Comparison: cmp, Strictness: 1}
}

func playlistFileSizeFromAttributes(a Attributes) (Constraint, error) {
	unit := SizeUnit(a.Int("unit", int64(Megabytes)))
	if unit < Kilobytes || unit > Terabytes {
		unit = Megabytes
	}

	return &PlaylistFileSize{
		Size:       a.Int("size", 700),
		Unit:       unit,
		Comparison: parseComparison(int(a.Int("comparison", int64(Equal)))),
		Strictness: clampStrictness(a.Float("strictness", 1)),
	}, nil
}

func (p *PlaylistFileSize) Kind() string { return "PlaylistFileSize" }

func (p *PlaylistFileSize) Name() string {
	return fmt.Sprintf("Total file size of playlist: %s %d %s", p.Comparison, p.Size, p.Unit)
}

func (p *PlaylistFileSize) Attributes() Attributes {
	return Attributes{
		"size":       strconv.FormatInt(p.Size, 10),
		"unit":       strconv.Itoa(int(p.Unit)),
		"comparison": strconv.Itoa(int(p.Comparison)),
		"strictness": formatFloat(p.Strictness),
	}
}

// Bytes returns the target in bytes.
func (p *PlaylistFileSize) Bytes() int64 {
	return p.Size * p.Unit.multiplier()
}

func (p *PlaylistFileSize) Satisfaction(tracks []playlist.Track) float64 {
	var total int64
	for i := range tracks {
		total += tracks[i].Filesize
	}

	x := float64(total - p.Bytes())

	return logistic(p.Comparison, x, 3e-9*p.Strictness)
}

func (p *PlaylistFileSize) SuggestPlaylistSize() int {
	b := float64(p.Bytes())

	switch p.Comparison {
	case Less:
		return int(math.Floor(b / 8e6))
	case Greater:
		return int(math.Floor(b / 4e6))
	default:
		return int(math.Floor(b / 6e6))
	}
}

func (p *PlaylistFileSize) InitQuery(domain.FilterBuilder) {}
