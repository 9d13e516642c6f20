// ABOUTME: Tests for TagMatch comparisons, fuzzy decisions and the match cache
// ABOUTME: Seeds every random source so stochastic decisions are reproducible

package constraint

import (
	"math"
	"math/rand/v2"
	"strconv"
	"testing"
	"time"

	"playlist-generator/domain"
	"playlist-generator/playlist"
)

func seeded(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed+1))
}

func tr(url, artist, genre string, year int) playlist.Track {
	return playlist.Track{URL: url, Artist: artist, Genre: genre, Year: year, Title: url}
}

func TestTagMatchHardComparisons(t *testing.T) {
	tracks := []playlist.Track{
		{URL: "1", Title: "Running", Artist: "Calibre", Year: 1999, Labels: []string{"liquid"}},
		{URL: "2", Title: "Inner City Life", Artist: "Goldie", Year: 2001},
		{URL: "3", Title: "Runaway", Artist: "calibre", Year: 2001, Comment: "night drive"},
	}

	tests := []struct {
		name   string
		field  playlist.Field
		cmp    int
		value  string
		invert bool
		want   []bool
	}{
		{"text equals", playlist.FieldArtist, TextEquals, "CALIBRE", false, []bool{true, false, true}},
		{"text starts", playlist.FieldTitle, TextStartsWith, "run", false, []bool{true, false, true}},
		{"text ends", playlist.FieldTitle, TextEndsWith, "life", false, []bool{false, true, false}},
		{"text contains", playlist.FieldTitle, TextContains, "city", false, []bool{false, true, false}},
		{"regex", playlist.FieldTitle, TextRegex, "^run(ning)?$", false, []bool{true, false, false}},
		{"invalid regex never matches", playlist.FieldTitle, TextRegex, "(", false, []bool{false, false, false}},
		{"inverted", playlist.FieldArtist, TextEquals, "calibre", true, []bool{false, true, false}},
		{"year less", playlist.FieldYear, NumLess, "2000", false, []bool{true, false, false}},
		{"year greater", playlist.FieldYear, NumGreater, "2000", false, []bool{false, true, true}},
		{"year equals within 1%", playlist.FieldYear, NumEquals, "2001", false, []bool{true, true, true}},
		{"label", playlist.FieldLabel, TextEquals, "liquid", false, []bool{true, false, false}},
		{"simple search", playlist.FieldAny, TextContains, "night", false, []bool{false, false, true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewTagMatch(tt.field, tt.cmp, tt.value)
			m.SetInvert(tt.invert)
			m.UseRand(seeded(1))

			got := m.WhatTracksMatch(tracks)
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("track %d: got %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestTagMatchSatisfaction(t *testing.T) {
	m := NewTagMatch(playlist.FieldGenre, TextEquals, "rock")

	if got := m.Satisfaction(nil); got != 1 {
		t.Errorf("empty playlist should be satisfied, got %v", got)
	}

	tracks := []playlist.Track{
		tr("a", "x", "rock", 0),
		tr("b", "x", "jazz", 0),
		tr("c", "x", "Rock", 0),
		tr("d", "x", "pop", 0),
	}

	if got := m.Satisfaction(tracks); got != 0.5 {
		t.Errorf("Satisfaction = %v, want 0.5", got)
	}
}

func TestTagMatchNumericEqualsBand(t *testing.T) {
	m := NewTagMatch(playlist.FieldLength, NumEquals, "200000")

	tracks := []playlist.Track{
		{URL: "in", Length: 201000},
		{URL: "out", Length: 203000},
	}

	got := m.WhatTracksMatch(tracks)
	if !got[0] || got[1] {
		t.Errorf("expected 1%% exact band, got %v", got)
	}
}

func TestTagMatchFuzzyKernel(t *testing.T) {
	m := NewTagMatch(playlist.FieldRating, NumEquals, "4")
	m.SetStrictness(0.5)

	track := playlist.Track{URL: "x", Rating: 7}

	got := m.quality(&track)
	want := math.Exp(-2)

	if math.Abs(got-want) > 1e-9 {
		t.Errorf("quality = %v, want %v", got, want)
	}

	m.SetInvert(true)

	if got := m.quality(&track); math.Abs(got-(1-want)) > 1e-9 {
		t.Errorf("inverted quality = %v, want %v", got, 1-want)
	}
}

func TestTagMatchDecisionsAreMemoised(t *testing.T) {
	tracks := make([]playlist.Track, 50)
	for i := range tracks {
		tracks[i] = playlist.Track{URL: string(rune('A' + i)), Rating: i % 11}
	}

	m := NewTagMatch(playlist.FieldRating, NumEquals, "5")
	m.SetStrictness(0.3)
	m.UseRand(seeded(42))

	first := m.WhatTracksMatch(tracks)
	second := m.WhatTracksMatch(tracks)

	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("decision for track %d changed between calls", i)
		}
	}

	other := NewTagMatch(playlist.FieldRating, NumEquals, "5")
	other.SetStrictness(0.3)
	other.UseRand(seeded(42))

	replay := other.WhatTracksMatch(tracks)
	for i := range first {
		if first[i] != replay[i] {
			t.Fatalf("same seed produced a different decision for track %d", i)
		}
	}
}

func TestTagMatchSettersInvalidateCache(t *testing.T) {
	tracks := []playlist.Track{{URL: "a", Artist: "Calibre"}}

	m := NewTagMatch(playlist.FieldArtist, TextEquals, "goldie")
	if m.Satisfaction(tracks) != 0 {
		t.Fatal("expected no match")
	}

	m.SetValue("calibre")

	if m.Satisfaction(tracks) != 1 {
		t.Error("SetValue did not invalidate cached decision")
	}

	m.SetInvert(true)

	if m.Satisfaction(tracks) != 0 {
		t.Error("SetInvert did not invalidate cached decision")
	}

	m.SetInvert(false)
	m.SetField(playlist.FieldTitle)

	if m.Satisfaction(tracks) != 0 {
		t.Error("SetField did not invalidate cached decision")
	}
}

func TestTagMatchDateWithin(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	m := NewTagMatch(playlist.FieldLastPlayed, DateWithin, "30 days")
	m.now = func() time.Time { return now }

	tracks := []playlist.Track{
		{URL: "recent", LastPlayed: now.AddDate(0, 0, -10)},
		{URL: "old", LastPlayed: now.AddDate(0, 0, -60)},
		{URL: "never"},
	}

	got := m.WhatTracksMatch(tracks)
	if !got[0] || got[1] || got[2] {
		t.Errorf("unexpected within decisions: %v", got)
	}

	if v := m.Attributes()["value"]; v != "30 days" {
		t.Errorf("within value persisted as %q", v)
	}
}

func TestTagMatchDateAbsolute(t *testing.T) {
	m := NewTagMatch(playlist.FieldCreateDate, NumLess, "2020-01-01")

	tracks := []playlist.Track{
		{URL: "a", CreateDate: time.Date(2019, 5, 1, 0, 0, 0, 0, time.UTC)},
		{URL: "b", CreateDate: time.Date(2021, 5, 1, 0, 0, 0, 0, time.UTC)},
	}

	got := m.WhatTracksMatch(tracks)
	if !got[0] || got[1] {
		t.Errorf("unexpected before decisions: %v", got)
	}

	if v := m.Attributes()["value"]; v != "2020-01-01" {
		t.Errorf("date persisted as %q", v)
	}
}

func TestTagMatchQueryHints(t *testing.T) {
	tests := []struct {
		name  string
		build func() *TagMatch
		want  string
	}{
		{
			name:  "strict equals",
			build: func() *TagMatch { return NewTagMatch(playlist.FieldYear, NumEquals, "50") },
			want:  "year=50",
		},
		{
			name: "fuzzy equals widened",
			build: func() *TagMatch {
				m := NewTagMatch(playlist.FieldYear, NumEquals, "2000")
				m.SetStrictness(0.5)
				return m
			},
			want: "(year>1968 AND year<2032)",
		},
		{
			name:  "greater",
			build: func() *TagMatch { return NewTagMatch(playlist.FieldRating, NumGreater, "6") },
			want:  "rating>6",
		},
		{
			name: "inverted less",
			build: func() *TagMatch {
				m := NewTagMatch(playlist.FieldRating, NumLess, "6")
				m.SetInvert(true)
				return m
			},
			want: "NOT rating<6",
		},
		{
			name:  "text",
			build: func() *TagMatch { return NewTagMatch(playlist.FieldGenre, TextContains, "jazz") },
			want:  `genre:"jazz"`,
		},
		{
			name:  "regex has no hint",
			build: func() *TagMatch { return NewTagMatch(playlist.FieldGenre, TextRegex, "ja+zz") },
			want:  "*",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := domain.NewBuilder()
			tt.build().InitQuery(b)

			if got := b.Filter().String(); got != tt.want {
				t.Errorf("hint = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTagMatchEqualsHintKeepsMatches(t *testing.T) {
	for _, target := range []int{50, 99, 160, 320, 1000} {
		m := NewTagMatch(playlist.FieldBitrate, NumEquals, strconv.Itoa(target))

		b := domain.NewBuilder()
		m.InitQuery(b)
		filter := b.Filter()

		for bitrate := target - target/20 - 2; bitrate <= target+target/20+2; bitrate++ {
			track := playlist.Track{URL: strconv.Itoa(bitrate), Bitrate: bitrate}

			passes := m.WhatTracksMatch([]playlist.Track{track})[0]
			if passes && !filter.Match(&track) {
				t.Errorf("equals %d: bitrate %d passes but hint %s drops it", target, bitrate, filter)
			}
		}
	}
}

func TestTagMatchDateRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		cmp   int
		value string
		want  string
	}{
		{"unix seconds keep time of day", NumGreater, "1700000000", "2023-11-14T22:13:20Z"},
		{"rfc3339", NumLess, "2021-03-04T05:06:07Z", "2021-03-04T05:06:07Z"},
		{"midnight stays a day", NumLess, "2020-01-01", "2020-01-01"},
		{"period in whole days", DateWithin, "2 months", "60 days"},
		{"period in seconds", DateWithin, "3600", "3600"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewTagMatch(playlist.FieldCreateDate, tt.cmp, tt.value)

			attrs := m.Attributes()
			if attrs["value"] != tt.want {
				t.Fatalf("value persisted as %q, want %q", attrs["value"], tt.want)
			}

			c, err := tagMatchFromAttributes(attrs)
			if err != nil {
				t.Fatal(err)
			}

			again := c.(*TagMatch)
			if again.num != m.num {
				t.Errorf("reloaded value %d, want %d", again.num, m.num)
			}
		})
	}

	before := NewTagMatch(playlist.FieldCreateDate, NumGreater, "1700000000")
	c, _ := tagMatchFromAttributes(before.Attributes())
	after := c.(*TagMatch)

	track := playlist.Track{URL: "a", CreateDate: time.Unix(1699990000, 0)}
	if before.WhatTracksMatch([]playlist.Track{track})[0] || after.WhatTracksMatch([]playlist.Track{track})[0] {
		t.Error("track created before the instant should fail both before and after reloading")
	}
}

func TestTagMatchName(t *testing.T) {
	m := NewTagMatch(playlist.FieldGenre, TextContains, "jazz")
	m.SetInvert(true)

	if got, want := m.Name(), `Match tag: not genre contains "jazz"`; got != want {
		t.Errorf("Name() = %q, want %q", got, want)
	}
}
