// ABOUTME: Tests for the Track attribute view and Field selectors
// ABOUTME: Covers name round-tripping, field classification and typed accessors

package playlist

import (
	"testing"
	"time"
)

func TestParseField(t *testing.T) {
	tests := []struct {
		name   string
		want   Field
		wantOK bool
	}{
		{"title", FieldTitle, true},
		{"ARTIST", FieldArtist, true},
		{" added ", FieldCreateDate, true},
		{"", FieldAny, true},
		{"label", FieldLabel, true},
		{"bpm", FieldAny, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseField(tt.name)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("ParseField(%q) = %v, %v; want %v, %v", tt.name, got, ok, tt.want, tt.wantOK)
			}
		})
	}

	for f := FieldAny; f <= FieldLabel; f++ {
		back, ok := ParseField(f.String())
		if !ok || back != f {
			t.Errorf("field %d does not round-trip through %q", f, f.String())
		}
	}
}

func TestFieldClassification(t *testing.T) {
	tests := []struct {
		field   Field
		numeric bool
		date    bool
	}{
		{FieldTitle, false, false},
		{FieldLabel, false, false},
		{FieldAny, false, false},
		{FieldYear, true, false},
		{FieldFilesize, true, false},
		{FieldLastPlayed, true, true},
		{FieldCreateDate, true, true},
	}

	for _, tt := range tests {
		if tt.field.IsNumeric() != tt.numeric {
			t.Errorf("%q IsNumeric = %v", tt.field, !tt.numeric)
		}

		if tt.field.IsDate() != tt.date {
			t.Errorf("%q IsDate = %v", tt.field, !tt.date)
		}

		if tt.field.IsText() == tt.numeric {
			t.Errorf("%q IsText should be the inverse of IsNumeric", tt.field)
		}
	}
}

func TestTrackAccessors(t *testing.T) {
	played := time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC)
	track := Track{
		URL:        "file:///music/a.mp3",
		Title:      "Song",
		Artist:     "Band",
		Year:       1999,
		Length:     185000,
		Rating:     7,
		LastPlayed: played,
		Labels:     []string{"chill", "night"},
	}

	if got := track.Text(FieldTitle); got != "Song" {
		t.Errorf("Text(title) = %q", got)
	}

	if got := track.Text(FieldLabel); got != "chill, night" {
		t.Errorf("Text(label) = %q", got)
	}

	if got := track.Text(FieldYear); got != "1999" {
		t.Errorf("Text(year) = %q", got)
	}

	if got := track.Number(FieldLength); got != 185000 {
		t.Errorf("Number(length) = %d", got)
	}

	if got := track.Number(FieldLastPlayed); got != played.Unix() {
		t.Errorf("Number(lastplayed) = %d", got)
	}

	if got := track.Number(FieldFirstPlayed); got != 0 {
		t.Errorf("never-played should be 0, got %d", got)
	}

	if track.Key() != track.URL {
		t.Errorf("Key() should be the URL")
	}
}

func TestFormatLength(t *testing.T) {
	tests := []struct {
		ms   int64
		want string
	}{
		{0, "0:00"},
		{65000, "1:05"},
		{3725000, "1:02:05"},
	}

	for _, tt := range tests {
		if got := FormatLength(tt.ms); got != tt.want {
			t.Errorf("FormatLength(%d) = %q, want %q", tt.ms, got, tt.want)
		}
	}
}

func TestReadTrackFileMissing(t *testing.T) {
	if _, err := ReadTrackFile("/nonexistent/track.mp3"); err == nil {
		t.Error("expected error for missing file")
	}
}
