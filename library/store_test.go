// ABOUTME: Tests for the SQLite library store, filter compiler and scanner
// ABOUTME: Compares SQL query results against the in-memory filter matcher

package library

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"slices"
	"testing"
	"time"

	"playlist-generator/domain"
	"playlist-generator/playlist"
)

func sampleTracks() []playlist.Track {
	return []playlist.Track{
		{
			URL: "/music/a.flac", Title: "Shine", Artist: "Calibre", Album: "Even If", Genre: "Drum & Bass",
			Year: 2008, Length: 300000, Rating: 8, PlayCount: 3,
			LastPlayed: time.Unix(1700000000, 0), Labels: []string{"night", "50%_off"},
		},
		{
			URL: "/music/b.mp3", Title: "Blue in Green", Artist: "Miles Davis", Album: "Kind of Blue", Genre: "Jazz",
			Year: 1959, Length: 337000, Rating: 10,
		},
		{
			URL: "/music/c.mp3", Title: "Roundabout", Artist: "Yes", Album: "Fragile", Genre: "Progressive Rock",
			Year: 1971, Length: 508000, Rating: 6, Labels: []string{"morning"},
		},
	}
}

func openTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "lib", "library.db"), WithBatchSize(2))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	t.Cleanup(func() { _ = s.Close() })

	if err := s.Upsert(context.Background(), sampleTracks()); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	return s
}

func queryURLs(t *testing.T, c domain.Collection, f *domain.Filter) []string {
	t.Helper()

	var urls []string

	err := c.Query(context.Background(), f, func(batch []playlist.Track) {
		for _, tr := range batch {
			urls = append(urls, tr.URL)
		}
	})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}

	slices.Sort(urls)

	return urls
}

func TestStoreRoundTrip(t *testing.T) {
	s := openTestStore(t)

	n, err := s.Count(context.Background())
	if err != nil || n != 3 {
		t.Fatalf("Count = %d, %v", n, err)
	}

	got, ok := s.TrackForURL("/music/a.flac")
	if !ok {
		t.Fatal("TrackForURL missed")
	}

	want := sampleTracks()[0]
	if got.Title != want.Title || got.Year != want.Year || !got.LastPlayed.Equal(want.LastPlayed) {
		t.Errorf("got %+v", got)
	}

	if !got.FirstPlayed.IsZero() {
		t.Error("never played should stay zero")
	}

	labels := slices.Clone(got.Labels)
	slices.Sort(labels)

	if !reflect.DeepEqual(labels, []string{"50%_off", "night"}) {
		t.Errorf("labels = %v", labels)
	}

	if _, ok := s.TrackForURL("/missing"); ok {
		t.Error("missing URL should not resolve")
	}
}

func TestStoreUpsertReplaces(t *testing.T) {
	s := openTestStore(t)

	changed := sampleTracks()[2]
	changed.Rating = 2
	changed.Labels = nil

	if err := s.Upsert(context.Background(), []playlist.Track{changed}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	got, _ := s.TrackForURL(changed.URL)
	if got.Rating != 2 || len(got.Labels) != 0 {
		t.Errorf("upsert did not replace: %+v", got)
	}

	if err := s.Delete(context.Background(), changed.URL); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	if n, _ := s.Count(context.Background()); n != 2 {
		t.Errorf("Count after delete = %d", n)
	}
}

func TestQueryMatchesMemory(t *testing.T) {
	s := openTestStore(t)
	mem := domain.NewMemoryCollection("mem", sampleTracks())

	filters := map[string]func(b *domain.Builder){
		"nil":           nil,
		"genre contains": func(b *domain.Builder) { b.AddFilter(playlist.FieldGenre, "ROCK", false, false) },
		"title equals":   func(b *domain.Builder) { b.AddFilter(playlist.FieldTitle, "shine", true, true) },
		"artist prefix":  func(b *domain.Builder) { b.AddFilter(playlist.FieldArtist, "mi", true, false) },
		"album suffix":   func(b *domain.Builder) { b.AddFilter(playlist.FieldAlbum, "blue", false, true) },
		"excluded text":  func(b *domain.Builder) { b.ExcludeFilter(playlist.FieldGenre, "jazz", false, false) },
		"any field":      func(b *domain.Builder) { b.AddFilter(playlist.FieldAny, "fragile", false, false) },
		"label":          func(b *domain.Builder) { b.AddFilter(playlist.FieldLabel, "morn", true, false) },
		"label wildcard": func(b *domain.Builder) { b.AddFilter(playlist.FieldLabel, "50%_", false, false) },
		"literal percent": func(b *domain.Builder) {
			b.AddFilter(playlist.FieldLabel, "0%_", false, false)
		},
		"year range": func(b *domain.Builder) {
			b.AddNumberFilter(playlist.FieldYear, 1960, domain.GreaterThan)
			b.AddNumberFilter(playlist.FieldYear, 2000, domain.LessThan)
		},
		"or group": func(b *domain.Builder) {
			b.BeginOr()
			b.AddNumberFilter(playlist.FieldRating, 10, domain.Equals)
			b.AddFilter(playlist.FieldGenre, "drum", true, false)
			b.EndAndOr()
		},
		"not played since": func(b *domain.Builder) {
			b.ExcludeNumberFilter(playlist.FieldLastPlayed, 1600000000, domain.GreaterThan)
		},
		"year as text": func(b *domain.Builder) { b.AddFilter(playlist.FieldYear, "19", true, false) },
	}

	for name, build := range filters {
		t.Run(name, func(t *testing.T) {
			var f *domain.Filter
			if build != nil {
				b := domain.NewBuilder()
				build(b)
				f = b.Filter()
			}

			want := queryURLs(t, mem, f)
			got := queryURLs(t, s, f)

			if !reflect.DeepEqual(got, want) {
				t.Errorf("filter %s: sql %v, memory %v", f, got, want)
			}
		})
	}
}

func TestLikePattern(t *testing.T) {
	tests := []struct {
		text       string
		begin, end bool
		want       string
	}{
		{"Rock", false, false, "%rock%"},
		{"rock", true, false, "rock%"},
		{"rock", false, true, "%rock"},
		{"rock", true, true, "rock"},
		{`50%_\`, true, true, `50\%\_\\`},
	}

	for _, tt := range tests {
		if got := likePattern(tt.text, tt.begin, tt.end); got != tt.want {
			t.Errorf("likePattern(%q) = %q, want %q", tt.text, got, tt.want)
		}
	}
}

func TestCompileFilterDescribe(t *testing.T) {
	b := domain.NewBuilder()
	b.AddFilter(playlist.FieldGenre, "rock", true, true)
	b.ExcludeNumberFilter(playlist.FieldRating, 5, domain.LessThan)

	where, args := compileFilter(b.Filter())

	want := `(LOWER(t.genre) LIKE "rock" ESCAPE '\' AND NOT (t.rating < 5))`
	if got := describe(where, args); got != want {
		t.Errorf("describe = %s\nwant %s", got, want)
	}
}

func TestScanner(t *testing.T) {
	dir := t.TempDir()

	for _, name := range []string{"a.mp3", "b.FLAC", "broken.ogg", "cover.jpg", "sub/c.m4a"} {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}

		if err := os.WriteFile(path, nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}

	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "library.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer func() { _ = s.Close() }()

	reader := func(path string) (*playlist.Track, error) {
		if filepath.Base(path) == "broken.ogg" {
			return nil, errors.New("no tags")
		}

		return &playlist.Track{URL: path, Title: filepath.Base(path)}, nil
	}

	var last int

	sc := NewScanner(s, WithWorkers(2), withReader(reader), WithProgress(func(done, _ int) { last = done }))

	res, err := sc.Scan(context.Background(), dir)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}

	if res.Found != 4 || res.Added != 3 || res.Skipped != 1 {
		t.Errorf("result = %+v", res)
	}

	if last != 4 {
		t.Errorf("progress reached %d, want 4", last)
	}

	if n, _ := s.Count(context.Background()); n != 3 {
		t.Errorf("Count = %d, want 3", n)
	}
}
