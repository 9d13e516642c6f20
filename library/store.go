// ABOUTME: SQLite-backed track library that serves as the main candidate collection
// ABOUTME: Stores track metadata and labels, resolves URLs and streams filtered queries

// Package library keeps scanned track metadata in an SQLite database and
// serves it as a domain.Collection.
package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"playlist-generator/domain"
	"playlist-generator/playlist"
)

// DefaultBatchSize is how many rows Query hands over at once.
const DefaultBatchSize = 500

// labelSep joins labels inside a single column.
const labelSep = "\x1f"

var schema = []string{
	`CREATE TABLE IF NOT EXISTS tracks (
		url TEXT PRIMARY KEY,
		title TEXT NOT NULL DEFAULT '',
		artist TEXT NOT NULL DEFAULT '',
		album_artist TEXT NOT NULL DEFAULT '',
		album TEXT NOT NULL DEFAULT '',
		genre TEXT NOT NULL DEFAULT '',
		composer TEXT NOT NULL DEFAULT '',
		comment TEXT NOT NULL DEFAULT '',
		year INTEGER NOT NULL DEFAULT 0,
		length_ms INTEGER NOT NULL DEFAULT 0,
		track_number INTEGER NOT NULL DEFAULT 0,
		disc_number INTEGER NOT NULL DEFAULT 0,
		bitrate INTEGER NOT NULL DEFAULT 0,
		filesize INTEGER NOT NULL DEFAULT 0,
		rating INTEGER NOT NULL DEFAULT 0,
		play_count INTEGER NOT NULL DEFAULT 0,
		first_played INTEGER NOT NULL DEFAULT 0,
		last_played INTEGER NOT NULL DEFAULT 0,
		create_date INTEGER NOT NULL DEFAULT 0
	);`,
	`CREATE TABLE IF NOT EXISTS labels (
		track_url TEXT NOT NULL REFERENCES tracks(url) ON DELETE CASCADE,
		label TEXT NOT NULL,
		PRIMARY KEY (track_url, label)
	);`,
	`CREATE INDEX IF NOT EXISTS idx_tracks_artist ON tracks(artist);`,
	`CREATE INDEX IF NOT EXISTS idx_tracks_album ON tracks(album_artist, album);`,
	`CREATE INDEX IF NOT EXISTS idx_labels_label ON labels(label);`,
}

const trackColumns = `url, title, artist, album_artist, album, genre, composer, comment,
	year, length_ms, track_number, disc_number, bitrate, filesize, rating, play_count,
	first_played, last_played, create_date`

// Store is a track library in an SQLite file.
type Store struct {
	db        *sql.DB
	name      string
	batchSize int
	logger    zerolog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithBatchSize sets the Query batch length.
func WithBatchSize(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// WithLogger sets the store's logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// Open opens or creates the database at path and migrates its schema.
func Open(ctx context.Context, path string, opts ...Option) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create library dir: %w", err)
		}
	}

	dsn := "file:" + path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open library db: %w", err)
	}

	s := &Store{
		db:        db,
		name:      filepath.Base(path),
		batchSize: DefaultBatchSize,
		logger:    zerolog.Nop(),
	}

	for _, opt := range opts {
		opt(s)
	}

	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate schema: %w", err)
		}
	}

	return nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Name identifies the collection in logs.
func (s *Store) Name() string {
	return s.name
}

// Count returns the number of tracks stored.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tracks`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count tracks: %w", err)
	}

	return n, nil
}

// Upsert inserts or replaces tracks keyed by URL, including their labels.
func (s *Store) Upsert(ctx context.Context, tracks []playlist.Track) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upsert: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	insert, err := tx.PrepareContext(ctx, `INSERT INTO tracks(`+trackColumns+`)
		VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(url) DO UPDATE SET
			title=excluded.title, artist=excluded.artist, album_artist=excluded.album_artist,
			album=excluded.album, genre=excluded.genre, composer=excluded.composer,
			comment=excluded.comment, year=excluded.year, length_ms=excluded.length_ms,
			track_number=excluded.track_number, disc_number=excluded.disc_number,
			bitrate=excluded.bitrate, filesize=excluded.filesize, rating=excluded.rating,
			play_count=excluded.play_count, first_played=excluded.first_played,
			last_played=excluded.last_played, create_date=excluded.create_date`)
	if err != nil {
		return fmt.Errorf("prepare track insert: %w", err)
	}
	defer func() { _ = insert.Close() }()

	clearLabels, err := tx.PrepareContext(ctx, `DELETE FROM labels WHERE track_url = ?`)
	if err != nil {
		return fmt.Errorf("prepare label delete: %w", err)
	}
	defer func() { _ = clearLabels.Close() }()

	addLabel, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO labels(track_url, label) VALUES(?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare label insert: %w", err)
	}
	defer func() { _ = addLabel.Close() }()

	for i := range tracks {
		t := &tracks[i]

		if _, err := insert.ExecContext(ctx,
			t.URL, t.Title, t.Artist, t.AlbumArtist, t.Album, t.Genre, t.Composer, t.Comment,
			t.Year, t.Length, t.TrackNumber, t.DiscNumber, t.Bitrate, t.Filesize, t.Rating, t.PlayCount,
			t.Number(playlist.FieldFirstPlayed), t.Number(playlist.FieldLastPlayed), t.Number(playlist.FieldCreateDate),
		); err != nil {
			return fmt.Errorf("insert %s: %w", t.URL, err)
		}

		if _, err := clearLabels.ExecContext(ctx, t.URL); err != nil {
			return fmt.Errorf("clear labels of %s: %w", t.URL, err)
		}

		for _, label := range t.Labels {
			if _, err := addLabel.ExecContext(ctx, t.URL, label); err != nil {
				return fmt.Errorf("label %s: %w", t.URL, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit upsert: %w", err)
	}

	return nil
}

// selectTracks returns the SELECT prefix that yields full rows, labels included.
func selectTracks() string {
	return `SELECT ` + trackColumns + `,
		COALESCE((SELECT group_concat(label, char(31)) FROM labels WHERE track_url = t.url), '')
		FROM tracks t`
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTrack(row rowScanner) (playlist.Track, error) {
	var (
		t                    playlist.Track
		first, last, created int64
		labels               string
	)

	err := row.Scan(
		&t.URL, &t.Title, &t.Artist, &t.AlbumArtist, &t.Album, &t.Genre, &t.Composer, &t.Comment,
		&t.Year, &t.Length, &t.TrackNumber, &t.DiscNumber, &t.Bitrate, &t.Filesize, &t.Rating, &t.PlayCount,
		&first, &last, &created, &labels,
	)
	if err != nil {
		return t, err
	}

	t.FirstPlayed = fromUnix(first)
	t.LastPlayed = fromUnix(last)
	t.CreateDate = fromUnix(created)

	if labels != "" {
		t.Labels = strings.Split(labels, labelSep)
	}

	return t, nil
}

func fromUnix(sec int64) time.Time {
	if sec == 0 {
		return time.Time{}
	}

	return time.Unix(sec, 0)
}

// TrackForURL looks a track up by URL. Errors are logged and reported as a miss.
func (s *Store) TrackForURL(url string) (*playlist.Track, bool) {
	row := s.db.QueryRowContext(context.Background(), selectTracks()+` WHERE t.url = ?`, url)

	t, err := scanTrack(row)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.logger.Warn().Err(err).Str("url", url).Msg("track lookup failed")
		}

		return nil, false
	}

	return &t, true
}

// Query streams tracks matching filter in batches.
func (s *Store) Query(ctx context.Context, filter *domain.Filter, batch func([]playlist.Track)) error {
	where, args := compileFilter(filter)
	query := selectTracks() + ` WHERE ` + where + ` ORDER BY t.url`

	s.logger.Debug().Str("filter", filter.String()).Str("where", describe(where, args)).Msg("library query")

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("query library: %w", err)
	}
	defer func() { _ = rows.Close() }()

	buf := make([]playlist.Track, 0, s.batchSize)

	for rows.Next() {
		t, err := scanTrack(rows)
		if err != nil {
			return fmt.Errorf("scan track: %w", err)
		}

		buf = append(buf, t)

		if len(buf) == s.batchSize {
			batch(buf)
			buf = buf[:0]
		}
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("read library rows: %w", err)
	}

	if len(buf) > 0 {
		batch(buf)
	}

	return nil
}

// Delete removes tracks by URL.
func (s *Store) Delete(ctx context.Context, urls ...string) error {
	for _, u := range urls {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM tracks WHERE url = ?`, u); err != nil {
			return fmt.Errorf("delete %s: %w", u, err)
		}
	}

	return nil
}
