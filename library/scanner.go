// ABOUTME: Walks music directories and loads tag metadata into the library store
// ABOUTME: Reads files concurrently on a worker pool and skips unreadable ones

package library

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"sync"

	"github.com/alitto/pond"
	"github.com/rs/zerolog"

	"playlist-generator/playlist"
)

// audioExtensions lists the file types the scanner reads.
var audioExtensions = map[string]bool{
	".mp3":  true,
	".flac": true,
	".m4a":  true,
	".ogg":  true,
	".opus": true,
	".wav":  true,
}

// ScanResult counts what a scan did.
type ScanResult struct {
	Found   int
	Added   int
	Skipped int
}

// Scanner fills a Store from directories on disk.
type Scanner struct {
	store      *Store
	workers    int
	logger     zerolog.Logger
	read       func(path string) (*playlist.Track, error)
	onProgress func(done, total int)
}

// ScannerOption configures a Scanner.
type ScannerOption func(*Scanner)

// WithWorkers sets how many files are read at once.
func WithWorkers(n int) ScannerOption {
	return func(s *Scanner) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithScanLogger sets the scanner's logger.
func WithScanLogger(logger zerolog.Logger) ScannerOption {
	return func(s *Scanner) { s.logger = logger }
}

// WithProgress reports each finished file.
func WithProgress(fn func(done, total int)) ScannerOption {
	return func(s *Scanner) { s.onProgress = fn }
}

// withReader replaces the metadata reader, for tests.
func withReader(fn func(path string) (*playlist.Track, error)) ScannerOption {
	return func(s *Scanner) { s.read = fn }
}

// NewScanner creates a scanner writing into store.
func NewScanner(store *Store, opts ...ScannerOption) *Scanner {
	s := &Scanner{
		store:   store,
		workers: 8,
		logger:  zerolog.Nop(),
		read:    playlist.ReadTrackFile,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Scan walks roots, reads every audio file and upserts the results.
func (s *Scanner) Scan(ctx context.Context, roots ...string) (ScanResult, error) {
	var result ScanResult

	paths, err := s.collect(ctx, roots)
	if err != nil {
		return result, err
	}

	result.Found = len(paths)
	s.logger.Info().Int("files", len(paths)).Strs("roots", roots).Msg("scanning library")

	pool := pond.New(s.workers, len(paths), pond.Context(ctx))

	var (
		mu     sync.Mutex
		tracks = make([]playlist.Track, 0, len(paths))
		done   int
	)

	for _, path := range paths {
		pool.Submit(func() {
			t, err := s.read(path)

			mu.Lock()
			defer mu.Unlock()

			done++

			if err != nil {
				result.Skipped++
				s.logger.Warn().Err(err).Str("path", path).Msg("skipping unreadable file")
			} else {
				tracks = append(tracks, *t)
			}

			if s.onProgress != nil {
				s.onProgress(done, len(paths))
			}
		})
	}

	pool.StopAndWait()

	if err := ctx.Err(); err != nil {
		return result, err
	}

	if err := s.store.Upsert(ctx, tracks); err != nil {
		return result, fmt.Errorf("store scanned tracks: %w", err)
	}

	result.Added = len(tracks)
	s.logger.Info().Int("added", result.Added).Int("skipped", result.Skipped).Msg("scan finished")

	return result, nil
}

func (s *Scanner) collect(ctx context.Context, roots []string) ([]string, error) {
	var paths []string

	for _, root := range roots {
		abs, err := filepath.Abs(root)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", root, err)
		}

		err = filepath.WalkDir(abs, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				s.logger.Warn().Err(err).Str("path", path).Msg("cannot walk")
				return nil
			}

			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}

			if d.IsDir() || !audioExtensions[strings.ToLower(filepath.Ext(path))] {
				return nil
			}

			paths = append(paths, path)

			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", root, err)
		}
	}

	return paths, nil
}
