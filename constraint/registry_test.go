// ABOUTME: Tests for the kind registry and attribute round-tripping
// ABOUTME: Also covers the audit report printed for generated playlists

package constraint

import (
	"bytes"
	"errors"
	"reflect"
	"strings"
	"testing"

	"playlist-generator/playlist"
)

func TestRegistryKinds(t *testing.T) {
	r := NewRegistry(nil)

	want := []string{"Checkpoint", "PlaylistDuration", "PlaylistFileSize", "PreventDuplicates", "TagMatch"}
	if got := r.Kinds(); !reflect.DeepEqual(got, want) {
		t.Errorf("Kinds() = %v, want %v", got, want)
	}

	if _, ok := r.Lookup("PlaylistLength"); !ok {
		t.Error("legacy PlaylistLength should still parse")
	}

	if _, ok := r.Lookup("TrackSpreader"); ok {
		t.Error("TrackSpreader must not be registered")
	}
}

func TestRegistryUnknown(t *testing.T) {
	r := NewRegistry(nil)

	if _, err := r.New("Nope"); !errors.Is(err, ErrUnknownKind) {
		t.Errorf("New: expected ErrUnknownKind, got %v", err)
	}

	if _, err := r.FromAttributes("Nope", nil); !errors.Is(err, ErrUnknownKind) {
		t.Errorf("FromAttributes: expected ErrUnknownKind, got %v", err)
	}
}

func TestRegistryRoundTrip(t *testing.T) {
	r := NewRegistry(nil)

	constraints := []Constraint{
		NewTagMatch(playlist.FieldGenre, TextStartsWith, "drum"),
		NewTagMatch(playlist.FieldLastPlayed, DateWithin, "3 months"),
		NewTagMatch(playlist.FieldFirstPlayed, NumGreater, "2015-06-30"),
		NewTagMatch(playlist.FieldAny, TextContains, "live"),
		NewPlaylistDuration(5400000, Greater),
		NewPlaylistLength(12, Less),
		NewPlaylistFileSize(4, Gigabytes, Less),
		NewPreventDuplicates(DuplicateAlbum),
		NewCheckpoint(600000, CheckpointArtist, &playlist.Track{URL: "u", Artist: "Calibre", Album: "Spill"}),
	}

	for _, c := range r.Kinds() {
		def, err := r.New(c)
		if err != nil {
			t.Fatalf("New(%s): %v", c, err)
		}

		constraints = append(constraints, def)
	}

	for _, c := range constraints {
		t.Run(c.Name(), func(t *testing.T) {
			first := c.Attributes()

			parsed, err := r.FromAttributes(c.Kind(), first)
			if err != nil {
				t.Fatalf("FromAttributes: %v", err)
			}

			if parsed.Kind() != c.Kind() {
				t.Errorf("kind changed: %s -> %s", c.Kind(), parsed.Kind())
			}

			if second := parsed.Attributes(); !reflect.DeepEqual(first, second) {
				t.Errorf("attributes changed:\n got %v\nwant %v", second, first)
			}
		})
	}
}

func TestAttributesDefaults(t *testing.T) {
	a := Attributes{"n": "12", "f": "0.5", "b": "true", "bad": "x"}

	if a.Int("n", 0) != 12 || a.Int("bad", 7) != 7 || a.Int("missing", 3) != 3 {
		t.Error("Int defaults wrong")
	}

	if a.Float("f", 0) != 0.5 || a.Float("bad", 1) != 1 {
		t.Error("Float defaults wrong")
	}

	if !a.Bool("b", false) || a.Bool("bad", true) || !a.Bool("missing", true) {
		t.Error("Bool defaults wrong")
	}

	if got := a.Keys(); !reflect.DeepEqual(got, []string{"b", "bad", "f", "n"}) {
		t.Errorf("Keys = %v", got)
	}
}

func TestAudit(t *testing.T) {
	root := NewGroup(MatchAll)
	root.Add(NewPlaylistLength(2, Equal))
	root.Add(NewPreventDuplicates(DuplicateTrack))

	tracks := []playlist.Track{{URL: "a"}, {URL: "b"}}

	entries := Audit(root, tracks)
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}

	for _, e := range entries {
		if e.Satisfaction != 1 {
			t.Errorf("%s scored %v", e.Name, e.Satisfaction)
		}
	}

	var buf bytes.Buffer
	if err := WriteAudit(&buf, entries); err != nil {
		t.Fatalf("WriteAudit: %v", err)
	}

	if !strings.Contains(buf.String(), "  Prevent duplicate tracks") {
		t.Errorf("unexpected audit output:\n%s", buf.String())
	}
}
