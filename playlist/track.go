// ABOUTME: Defines the read-only Track view and the Field selectors constraints compare against
// ABOUTME: Provides typed accessors plus metadata and length reading directly from audio files

package playlist

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dhowden/tag"
	"github.com/go-flac/go-flac/v2"
	"github.com/tcolgate/mp3"
)

// Track is an immutable view of one library track.
// Length is in milliseconds, Filesize in bytes, Bitrate in kbps and Rating
// on the 0-10 half-star scale. A zero time means "never".
type Track struct {
	URL         string // Stable identity (file path or collection URL)
	Title       string
	Artist      string
	AlbumArtist string
	Album       string
	Genre       string
	Composer    string
	Comment     string
	Year        int
	Length      int64
	TrackNumber int
	DiscNumber  int
	Bitrate     int
	Filesize    int64
	Rating      int
	PlayCount   int
	FirstPlayed time.Time
	LastPlayed  time.Time
	CreateDate  time.Time
	Labels      []string
}

// Field selects one attribute of a Track.
type Field int

// Fields a constraint may compare against. FieldAny is the "simple search"
// across all text attributes.
const (
	FieldAny Field = iota
	FieldURL
	FieldTitle
	FieldArtist
	FieldAlbumArtist
	FieldAlbum
	FieldGenre
	FieldComposer
	FieldComment
	FieldYear
	FieldLength
	FieldTrackNumber
	FieldDiscNumber
	FieldBitrate
	FieldFilesize
	FieldRating
	FieldPlayCount
	FieldFirstPlayed
	FieldLastPlayed
	FieldCreateDate
	FieldLabel
)

var fieldNames = map[Field]string{
	FieldAny:         "",
	FieldURL:         "url",
	FieldTitle:       "title",
	FieldArtist:      "artist",
	FieldAlbumArtist: "albumartist",
	FieldAlbum:       "album",
	FieldGenre:       "genre",
	FieldComposer:    "composer",
	FieldComment:     "comment",
	FieldYear:        "year",
	FieldLength:      "length",
	FieldTrackNumber: "tracknumber",
	FieldDiscNumber:  "discnumber",
	FieldBitrate:     "bitrate",
	FieldFilesize:    "filesize",
	FieldRating:      "rating",
	FieldPlayCount:   "playcount",
	FieldFirstPlayed: "firstplayed",
	FieldLastPlayed:  "lastplayed",
	FieldCreateDate:  "added",
	FieldLabel:       "label",
}

// TextFields are the attributes searched by FieldAny.
var TextFields = []Field{FieldArtist, FieldTitle, FieldAlbum, FieldGenre, FieldURL, FieldComment, FieldLabel}

// String returns the persisted name of the field.
func (f Field) String() string {
	return fieldNames[f]
}

// ParseField maps a persisted name back to a Field.
func ParseField(name string) (Field, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for f, n := range fieldNames {
		if n == name {
			return f, true
		}
	}

	return FieldAny, false
}

// IsDate reports whether the field holds a timestamp.
func (f Field) IsDate() bool {
	return f == FieldFirstPlayed || f == FieldLastPlayed || f == FieldCreateDate
}

// IsNumeric reports whether the field compares as a number (dates included).
func (f Field) IsNumeric() bool {
	switch f {
	case FieldYear, FieldLength, FieldTrackNumber, FieldDiscNumber, FieldBitrate,
		FieldFilesize, FieldRating, FieldPlayCount:
		return true
	}

	return f.IsDate()
}

// IsText reports whether the field compares as a string.
func (f Field) IsText() bool {
	return !f.IsNumeric()
}

// Key returns the identity of the track.
func (t *Track) Key() string {
	return t.URL
}

// Text returns the string value of a text field.
func (t *Track) Text(f Field) string {
	switch f {
	case FieldURL:
		return t.URL
	case FieldTitle:
		return t.Title
	case FieldArtist:
		return t.Artist
	case FieldAlbumArtist:
		return t.AlbumArtist
	case FieldAlbum:
		return t.Album
	case FieldGenre:
		return t.Genre
	case FieldComposer:
		return t.Composer
	case FieldComment:
		return t.Comment
	case FieldLabel:
		return strings.Join(t.Labels, ", ")
	}

	if f.IsNumeric() {
		return fmt.Sprint(t.Number(f))
	}

	return ""
}

// Number returns the numeric value of a numeric field. Dates are Unix
// seconds, with "never" mapped to 0.
func (t *Track) Number(f Field) int64 {
	switch f {
	case FieldYear:
		return int64(t.Year)
	case FieldLength:
		return t.Length
	case FieldTrackNumber:
		return int64(t.TrackNumber)
	case FieldDiscNumber:
		return int64(t.DiscNumber)
	case FieldBitrate:
		return int64(t.Bitrate)
	case FieldFilesize:
		return t.Filesize
	case FieldRating:
		return int64(t.Rating)
	case FieldPlayCount:
		return int64(t.PlayCount)
	case FieldFirstPlayed:
		return unixOrZero(t.FirstPlayed)
	case FieldLastPlayed:
		return unixOrZero(t.LastPlayed)
	case FieldCreateDate:
		return unixOrZero(t.CreateDate)
	}

	return 0
}

func unixOrZero(ts time.Time) int64 {
	if ts.IsZero() {
		return 0
	}

	return ts.Unix()
}

// String returns a formatted string representation of the track
func (t *Track) String() string {
	return fmt.Sprintf("%-30s - %s (%s)", t.Artist, t.Title, FormatLength(t.Length))
}

// FormatLength renders milliseconds as m:ss or h:mm:ss.
func FormatLength(ms int64) string {
	d := time.Duration(ms) * time.Millisecond
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60

	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}

	return fmt.Sprintf("%d:%02d", m, s)
}

// TotalLength sums the lengths of the tracks in milliseconds.
func TotalLength(tracks []Track) int64 {
	var total int64
	for i := range tracks {
		total += tracks[i].Length
	}

	return total
}

// ReadTrackFile builds a Track by reading tags and stream length from the file.
// The path is used as the track URL.
func ReadTrackFile(path string) (*Track, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	metadata, err := tag.ReadFrom(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata: %w", err)
	}

	title := metadata.Title()
	if title == "" {
		title = filepath.Base(path)
	}

	trackNo, _ := metadata.Track()
	discNo, _ := metadata.Disc()

	t := &Track{
		URL:         path,
		Title:       title,
		Artist:      metadata.Artist(),
		AlbumArtist: metadata.AlbumArtist(),
		Album:       metadata.Album(),
		Genre:       metadata.Genre(),
		Composer:    metadata.Composer(),
		Comment:     metadata.Comment(),
		Year:        metadata.Year(),
		TrackNumber: trackNo,
		DiscNumber:  discNo,
		Filesize:    info.Size(),
		CreateDate:  info.ModTime(),
	}

	length, err := readLength(path, file, metadata.FileType())
	if err == nil {
		t.Length = length.Milliseconds()
		if length > 0 {
			t.Bitrate = int(info.Size() * 8 / 1000 / int64(length.Seconds()+1))
		}
	}

	return t, nil
}

// readLength measures the playing time of MP3 and FLAC files. Other formats
// report zero.
func readLength(path string, file *os.File, ft tag.FileType) (time.Duration, error) {
	switch ft {
	case tag.FLAC:
		f, err := flac.ParseFile(path)
		if err != nil {
			return 0, fmt.Errorf("failed to parse FLAC file: %w", err)
		}

		info, err := f.GetStreamInfo()
		if err != nil {
			return 0, fmt.Errorf("failed to get stream info: %w", err)
		}

		if info.SampleRate == 0 {
			return 0, nil
		}

		return time.Duration(float64(info.SampleCount) / float64(info.SampleRate) * float64(time.Second)), nil

	case tag.MP3:
		if _, err := file.Seek(0, io.SeekStart); err != nil {
			return 0, fmt.Errorf("failed to rewind file: %w", err)
		}

		decoder := mp3.NewDecoder(file)

		var (
			total   time.Duration
			frame   mp3.Frame
			skipped int
		)

		for {
			if err := decoder.Decode(&frame, &skipped); err != nil {
				if err == io.EOF {
					break
				}

				return total, nil
			}

			total += frame.Duration()
		}

		return total, nil
	}

	return 0, nil
}
