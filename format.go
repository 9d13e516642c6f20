// ABOUTME: Output formatting for generated playlists and satisfaction values
// ABOUTME: Prints track tables and picks just enough digits to show a score change

package main

import (
	"fmt"
	"io"
	"math"
	"text/tabwriter"

	"playlist-generator/playlist"
	"playlist-generator/preset"
)

const (
	minPrecision = 2
	maxPrecision = 10
)

// formatMinimalPrecision returns curr with the fewest digits that tell it
// apart from prev, plus one for clarity.
func formatMinimalPrecision(prev, curr float64) (string, int) {
	if math.IsNaN(prev) || math.IsNaN(curr) || math.IsInf(prev, 0) || math.IsInf(curr, 0) || prev == curr {
		return fmt.Sprintf("%.*f", minPrecision, curr), minPrecision
	}

	for precision := 1; precision <= maxPrecision; precision++ {
		if fmt.Sprintf("%.*f", precision, prev) != fmt.Sprintf("%.*f", precision, curr) {
			p := min(precision+1, maxPrecision)
			return fmt.Sprintf("%.*f", p, curr), p
		}
	}

	return fmt.Sprintf("%.*f", maxPrecision, curr), maxPrecision
}

// formatWithMonotonicPrecision is formatMinimalPrecision with a precision that
// never drops below floor, so a column of values stays aligned.
func formatWithMonotonicPrecision(prev, curr float64, floor int) (string, int) {
	_, needed := formatMinimalPrecision(prev, curr)

	p := min(max(needed, floor, minPrecision), maxPrecision)

	return fmt.Sprintf("%.*f", p, curr), p
}

// writeTracks prints a numbered track table
func writeTracks(w io.Writer, tracks []playlist.Track) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	if _, err := fmt.Fprintln(tw, "#\tArtist\tTitle\tAlbum\tGenre\tYear\tLength"); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	if _, err := fmt.Fprintln(tw, "---\t------\t-----\t-----\t-----\t----\t------"); err != nil {
		return fmt.Errorf("failed to write separator: %w", err)
	}

	for i, t := range tracks {
		year := ""
		if t.Year > 0 {
			year = fmt.Sprint(t.Year)
		}

		if _, err := fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			i+1,
			truncate(t.Artist, 20),
			truncate(t.Title, 30),
			truncate(t.Album, 20),
			truncate(t.Genre, 15),
			year,
			playlist.FormatLength(t.Length),
		); err != nil {
			return fmt.Errorf("failed to write track %d: %w", i+1, err)
		}
	}

	if err := tw.Flush(); err != nil {
		return fmt.Errorf("failed to flush output: %w", err)
	}

	return nil
}

// summary describes a finished generation in one line
func summary(res preset.Result) string {
	return fmt.Sprintf("%d tracks, %s, satisfaction %.1f%% after %d generations",
		len(res.Tracks),
		playlist.FormatLength(playlist.TotalLength(res.Tracks)),
		res.Satisfaction*100,
		res.Generations,
	)
}

// truncate shortens s to maxLen runes, adding "..." if needed
func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}

	if maxLen <= 3 {
		return string(r[:max(maxLen, 0)])
	}

	return string(r[:maxLen-3]) + "..."
}
