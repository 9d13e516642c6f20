// ABOUTME: Tests for the filter builder and in-memory filter evaluation
// ABOUTME: Covers nesting, negation, unbalanced groups and text match modes

package domain

import (
	"testing"

	"playlist-generator/playlist"
)

func testTrack() playlist.Track {
	return playlist.Track{
		URL:    "/music/Calibre/Spill/02 Running.mp3",
		Title:  "Running",
		Artist: "Calibre",
		Album:  "Spill",
		Genre:  "Drum & Bass",
		Year:   2008,
		Labels: []string{"liquid", "night"},
	}
}

func TestMatchText(t *testing.T) {
	tests := []struct {
		value, pattern string
		begin, end     bool
		want           bool
	}{
		{"Running", "running", true, true, true},
		{"Running", "run", true, true, false},
		{"Running", "RUN", true, false, true},
		{"Running", "ing", false, true, true},
		{"Running", "nni", false, false, true},
		{"Running", "walk", false, false, false},
	}

	for _, tt := range tests {
		if got := MatchText(tt.value, tt.pattern, tt.begin, tt.end); got != tt.want {
			t.Errorf("MatchText(%q, %q, %v, %v) = %v, want %v", tt.value, tt.pattern, tt.begin, tt.end, got, tt.want)
		}
	}
}

func TestBuilderFilters(t *testing.T) {
	track := testTrack()

	tests := []struct {
		name  string
		build func(b *Builder)
		want  bool
	}{
		{
			name:  "no hints matches everything",
			build: func(b *Builder) {},
			want:  true,
		},
		{
			name: "text equals",
			build: func(b *Builder) {
				b.AddFilter(playlist.FieldArtist, "calibre", true, true)
			},
			want: true,
		},
		{
			name: "exclude text",
			build: func(b *Builder) {
				b.ExcludeFilter(playlist.FieldGenre, "bass", false, false)
			},
			want: false,
		},
		{
			name: "number range",
			build: func(b *Builder) {
				b.BeginAnd()
				b.AddNumberFilter(playlist.FieldYear, 2000, GreaterThan)
				b.AddNumberFilter(playlist.FieldYear, 2010, LessThan)
				b.EndAndOr()
			},
			want: true,
		},
		{
			name: "exclude number",
			build: func(b *Builder) {
				b.ExcludeNumberFilter(playlist.FieldYear, 2008, Equals)
			},
			want: false,
		},
		{
			name: "or with one passing branch",
			build: func(b *Builder) {
				b.BeginOr()
				b.AddFilter(playlist.FieldArtist, "Goldie", true, true)
				b.AddFilter(playlist.FieldAlbum, "Spill", true, true)
				b.EndAndOr()
			},
			want: true,
		},
		{
			name: "and inside or fails",
			build: func(b *Builder) {
				b.BeginOr()
				b.BeginAnd()
				b.AddFilter(playlist.FieldArtist, "Calibre", true, true)
				b.AddNumberFilter(playlist.FieldYear, 2020, GreaterThan)
				b.EndAndOr()
				b.EndAndOr()
			},
			want: false,
		},
		{
			name: "empty groups contribute nothing",
			build: func(b *Builder) {
				b.BeginOr()
				b.EndAndOr()
				b.BeginAnd()
				b.EndAndOr()
			},
			want: true,
		},
		{
			name: "unbalanced end is ignored and open group closed",
			build: func(b *Builder) {
				b.EndAndOr()
				b.BeginOr()
				b.AddFilter(playlist.FieldTitle, "run", true, false)
			},
			want: true,
		},
		{
			name: "label matches any label",
			build: func(b *Builder) {
				b.AddFilter(playlist.FieldLabel, "night", true, true)
			},
			want: true,
		},
		{
			name: "simple search across text fields",
			build: func(b *Builder) {
				b.AddFilter(playlist.FieldAny, "liquid", false, false)
			},
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBuilder()
			tt.build(b)

			f := b.Filter()
			if got := f.Match(&track); got != tt.want {
				t.Errorf("Match() = %v, want %v (filter %s)", got, tt.want, f)
			}
		})
	}
}

func TestBuilderSimplifies(t *testing.T) {
	b := NewBuilder()
	b.BeginAnd()
	b.BeginOr()
	b.EndAndOr()
	b.EndAndOr()

	if f := b.Filter(); f != nil {
		t.Errorf("expected nil filter for empty groups, got %s", f)
	}

	b = NewBuilder()
	b.BeginAnd()
	b.AddNumberFilter(playlist.FieldRating, 6, GreaterThan)
	b.EndAndOr()

	f := b.Filter()
	if f == nil || f.Kind != KindNumber {
		t.Fatalf("expected a single number leaf, got %s", f)
	}

	if f.String() != "rating>6" {
		t.Errorf("String() = %q", f.String())
	}
}
