// ABOUTME: Directory of preset XML files with list/get/save/delete and live reload
// ABOUTME: Watch uses fsnotify and debounces writes so editors' atomic saves reload once

package preset

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"playlist-generator/constraint"
)

const presetExt = ".xml"

// debounce is how long Watch waits for a burst of writes to settle.
const debounce = 100 * time.Millisecond

// ErrInvalidName is returned for names that cannot be file names.
var ErrInvalidName = errors.New("invalid preset name")

// Store keeps presets as <name>.xml files in one directory.
type Store struct {
	dir    string
	reg    *constraint.Registry
	logger zerolog.Logger
}

// NewStore opens dir, creating it if needed.
func NewStore(dir string, reg *constraint.Registry, logger zerolog.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create preset dir: %w", err)
	}

	return &Store{dir: dir, reg: reg, logger: logger}, nil
}

// Dir returns the preset directory.
func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) path(name string) (string, error) {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}

	return filepath.Join(s.dir, name+presetExt), nil
}

func nameOf(path string) (string, bool) {
	base := filepath.Base(path)
	if !strings.HasSuffix(base, presetExt) || strings.HasPrefix(base, ".") {
		return "", false
	}

	return strings.TrimSuffix(base, presetExt), true
}

// List returns the sorted preset names.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("list presets: %w", err)
	}

	var names []string

	for _, e := range entries {
		if e.IsDir() {
			continue
		}

		if name, ok := nameOf(e.Name()); ok {
			names = append(names, name)
		}
	}

	slices.Sort(names)

	return names, nil
}

// Get loads a preset by name.
func (s *Store) Get(name string) (*Preset, error) {
	path, err := s.path(name)
	if err != nil {
		return nil, err
	}

	return Load(path, s.reg, s.logger)
}

// Save writes p under name.
func (s *Store) Save(name string, p *Preset) error {
	path, err := s.path(name)
	if err != nil {
		return err
	}

	return p.Save(path)
}

// Delete removes a preset.
func (s *Store) Delete(name string) error {
	path, err := s.path(name)
	if err != nil {
		return err
	}

	if err := os.Remove(path); err != nil {
		return fmt.Errorf("delete preset: %w", err)
	}

	return nil
}

// Event reports a preset that changed on disk.
type Event struct {
	Name    string
	Preset  *Preset // nil when removed or unreadable
	Removed bool
	Err     error
}

// Watch reports preset changes to onChange until ctx is done. Bursts of
// events for one file are collapsed.
func (s *Store) Watch(ctx context.Context, onChange func(Event)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(s.dir); err != nil {
		return fmt.Errorf("failed to watch preset dir: %w", err)
	}

	var (
		mu      sync.Mutex
		pending = map[string]*time.Timer{}
		wg      sync.WaitGroup
	)

	defer func() {
		mu.Lock()
		for _, t := range pending {
			if t.Stop() {
				wg.Done()
			}
		}
		mu.Unlock()
		wg.Wait()
	}()

	schedule := func(name string) {
		mu.Lock()
		defer mu.Unlock()

		if t, ok := pending[name]; ok && t.Stop() {
			wg.Done()
		}

		wg.Add(1)

		var timer *time.Timer

		timer = time.AfterFunc(debounce, func() {
			defer wg.Done()

			mu.Lock()
			if pending[name] == timer {
				delete(pending, name)
			}
			mu.Unlock()

			if ctx.Err() != nil {
				return
			}

			onChange(s.reload(name))
		})

		pending[name] = timer
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}

			name, ok := nameOf(event.Name)
			if !ok {
				continue
			}

			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
				schedule(name)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}

			s.logger.Warn().Err(err).Msg("preset watcher error")
		}
	}
}

func (s *Store) reload(name string) Event {
	path, err := s.path(name)
	if err != nil {
		return Event{Name: name, Err: err}
	}

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		s.logger.Debug().Str("preset", name).Msg("preset removed")
		return Event{Name: name, Removed: true}
	}

	p, err := Load(path, s.reg, s.logger)
	if err != nil {
		s.logger.Warn().Err(err).Str("preset", name).Msg("failed to reload preset")
		return Event{Name: name, Err: err}
	}

	s.logger.Debug().Str("preset", name).Msg("preset reloaded")

	return Event{Name: name, Preset: p}
}
