// ABOUTME: Handles reading and writing M3U8 playlist files
// ABOUTME: Loads playlists as track lists with metadata and saves generated playlists with EXTINF lines

// Package playlist models library tracks and M3U8 playlist files.
// Tracks are read-only attribute views; metadata is read directly from audio
// file tags (ID3, Vorbis, etc.).
package playlist

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

// ReadPlaylist reads an M3U8 playlist file.
// Only URLs are filled in, plus title, artist and length when an #EXTINF line
// precedes the entry.
func ReadPlaylist(path string) ([]Track, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open playlist: %w", err)
	}

	defer func() {
		_ = file.Close() // Explicitly ignore error for read-only file
	}()

	var (
		tracks  []Track
		pending *Track
	)

	scanner := bufio.NewScanner(file)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "#EXTINF:") {
			pending = parseExtInf(strings.TrimPrefix(line, "#EXTINF:"))
			continue
		}

		// Other comments and directives
		if strings.HasPrefix(line, "#") {
			continue
		}

		track := Track{URL: line}
		if pending != nil {
			track.Title = pending.Title
			track.Artist = pending.Artist
			track.Length = pending.Length
			pending = nil
		}

		tracks = append(tracks, track)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading playlist: %w", err)
	}

	return tracks, nil
}

// parseExtInf reads "seconds,Artist - Title".
func parseExtInf(info string) *Track {
	t := &Track{}

	secs, rest, found := strings.Cut(info, ",")
	if !found {
		rest = ""
	}

	if n, err := strconv.ParseInt(strings.TrimSpace(secs), 10, 64); err == nil && n > 0 {
		t.Length = n * 1000
	}

	if artist, title, ok := strings.Cut(rest, " - "); ok {
		t.Artist = strings.TrimSpace(artist)
		t.Title = strings.TrimSpace(title)
	} else {
		t.Title = strings.TrimSpace(rest)
	}

	return t
}

// LoadPlaylistWithMetadata reads a playlist and reads tags for each track.
// Relative entries are resolved against the playlist's directory.
// Tracks whose files cannot be read are skipped and logged.
func LoadPlaylistWithMetadata(path string, logger zerolog.Logger) ([]Track, error) {
	tracks, err := ReadPlaylist(path)
	if err != nil {
		return nil, err
	}

	baseDir := filepath.Dir(path)

	logger.Debug().Int("tracks", len(tracks)).Str("playlist", path).Msg("loading metadata")

	validTracks := make([]Track, 0, len(tracks))
	skippedCount := 0

	for i := range tracks {
		fullPath := tracks[i].URL
		if !filepath.IsAbs(fullPath) {
			fullPath = filepath.Join(baseDir, fullPath)
		}

		metadata, err := ReadTrackFile(fullPath)
		if err != nil {
			logger.Warn().Err(err).Str("track", tracks[i].URL).Msg("skipping track, could not load metadata")

			skippedCount++

			continue
		}

		validTracks = append(validTracks, *metadata)
	}

	if skippedCount > 0 {
		logger.Info().Int("skipped", skippedCount).Msg("some playlist entries could not be read")
	}

	return validTracks, nil
}

// WritePlaylist writes tracks to an M3U8 playlist file with #EXTINF lines.
// Creates a backup (.bak) of the existing file before overwriting.
func WritePlaylist(path string, tracks []Track) (err error) {
	if _, statErr := os.Stat(path); statErr == nil {
		backupPath := path + ".bak"
		if err := os.Rename(path, backupPath); err != nil {
			return fmt.Errorf("failed to create backup: %w", err)
		}
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create playlist: %w", err)
	}

	defer func() {
		if closeErr := file.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("failed to close playlist file: %w", closeErr)
		}
	}()

	writer := bufio.NewWriter(file)

	if _, err := writer.WriteString("#EXTM3U\n"); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for i := range tracks {
		if _, err := writer.WriteString(extInf(&tracks[i]) + tracks[i].URL + "\n"); err != nil {
			return fmt.Errorf("failed to write track: %w", err)
		}
	}

	if err := writer.Flush(); err != nil {
		return fmt.Errorf("failed to flush writer: %w", err)
	}

	return nil
}

func extInf(t *Track) string {
	secs := int64(-1)
	if t.Length > 0 {
		secs = t.Length / 1000
	}

	name := t.Title
	if t.Artist != "" {
		name = t.Artist + " - " + t.Title
	}

	return fmt.Sprintf("#EXTINF:%d,%s\n", secs, name)
}
