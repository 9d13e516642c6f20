// ABOUTME: Unit tests for TUI model behavior
// ABOUTME: Drives Update() with messages directly instead of a running program

package tui

import (
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"playlist-generator/constraint"
	"playlist-generator/playlist"
	"playlist-generator/preset"
	"playlist-generator/solver"
)

func createTestTracks(count int) []playlist.Track {
	tracks := make([]playlist.Track, count)
	for i := range tracks {
		tracks[i] = playlist.Track{
			URL:    string(rune('a' + i)),
			Artist: "Artist " + string(rune('A'+i)),
			Title:  "Title " + string(rune('A'+i)),
			Length: 180000,
		}
	}

	return tracks
}

func createTestModel(opts Options) model {
	if opts.Generate == nil {
		opts.Generate = func(context.Context) (preset.Result, error) { return preset.Result{}, nil }
	}

	return newModel(context.Background(), opts)
}

func step(t *testing.T, m model, msg tea.Msg) model {
	t.Helper()

	next, _ := m.Update(msg)

	nm, ok := next.(model)
	if !ok {
		t.Fatalf("Update returned %T", next)
	}

	return nm
}

func keyMsg(s string) tea.KeyMsg {
	switch s {
	case "ctrl+r":
		return tea.KeyMsg{Type: tea.KeyCtrlR}
	case "ctrl+c":
		return tea.KeyMsg{Type: tea.KeyCtrlC}
	}

	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func doneWith(tracks []playlist.Track) doneMsg {
	return doneMsg{result: preset.Result{Tracks: tracks, Satisfaction: 0.97, Satisfied: true, Generations: 12}}
}

func TestPhases(t *testing.T) {
	m := createTestModel(Options{Title: "mix"})
	if m.phase != phaseLoading {
		t.Fatalf("initial phase = %v", m.phase)
	}

	if !strings.Contains(m.View(), "Loading candidate tracks") {
		t.Error("loading view missing")
	}

	m = step(t, m, solver.Update{Generation: 5, MaxGenerations: 100, BestSatisfaction: 0.5})
	if m.phase != phaseRunning || m.last.Generation != 5 {
		t.Fatalf("after update: phase %v gen %d", m.phase, m.last.Generation)
	}

	if !strings.Contains(m.View(), "Gen 5/100") {
		t.Errorf("progress view missing generation:\n%s", m.View())
	}

	m = step(t, m, doneWith(createTestTracks(3)))
	if m.phase != phaseDone || len(m.tracks) != 3 {
		t.Fatalf("after done: phase %v, %d tracks", m.phase, len(m.tracks))
	}

	if !strings.Contains(m.View(), "satisfaction 97.0%") {
		t.Errorf("summary missing:\n%s", m.View())
	}
}

func TestFailedAndAborted(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		aborted bool
		text    string
	}{
		{"aborted", preset.ErrAborted, true, "aborted"},
		{"failed", errors.New("disk on fire"), false, "disk on fire"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := step(t, createTestModel(Options{}), doneMsg{err: tt.err})

			if m.phase != phaseFailed || m.aborted != tt.aborted {
				t.Errorf("phase %v aborted %v", m.phase, m.aborted)
			}

			if !strings.Contains(m.View(), tt.text) {
				t.Errorf("view missing %q", tt.text)
			}
		})
	}
}

func TestQuitWhileRunningAborts(t *testing.T) {
	m := createTestModel(Options{})

	m = step(t, m, keyMsg("q"))
	if !m.quitting {
		t.Fatal("quit key should start aborting")
	}

	if m.ctx.Err() == nil {
		t.Error("generation context was not cancelled")
	}

	next, cmd := m.Update(doneMsg{err: preset.ErrAborted})
	if cmd == nil {
		t.Fatal("expected quit once the job finished")
	}

	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("expected tea.Quit")
	}

	if out := next.(model).outcome(); !out.Aborted {
		t.Error("outcome should be aborted")
	}
}

func TestEditAndUndo(t *testing.T) {
	var saved []playlist.Track

	m := createTestModel(Options{
		Save: func(tracks []playlist.Track) error {
			saved = tracks
			return nil
		},
		Explain: func(tracks []playlist.Track) []constraint.AuditEntry {
			return constraint.Audit(constraint.NewPlaylistLength(3, constraint.Equal), tracks)
		},
	})
	m = step(t, m, doneWith(createTestTracks(4)))

	if len(m.audit) != 1 {
		t.Fatalf("audit has %d entries", len(m.audit))
	}

	m = step(t, m, keyMsg("j"))
	m = step(t, m, keyMsg("d"))

	if len(m.tracks) != 3 || m.tracks[1].URL != "c" {
		t.Fatalf("delete removed the wrong track: %v", m.tracks)
	}

	if m.audit[0].Satisfaction != 1 {
		t.Errorf("audit not refreshed: %v", m.audit[0].Satisfaction)
	}

	m = step(t, m, keyMsg("u"))
	if len(m.tracks) != 4 {
		t.Fatalf("undo left %d tracks", len(m.tracks))
	}

	m = step(t, m, keyMsg("ctrl+r"))
	if len(m.tracks) != 3 {
		t.Fatalf("redo left %d tracks", len(m.tracks))
	}

	m = step(t, m, keyMsg("G"))
	if m.cursor != 2 {
		t.Errorf("end key cursor = %d", m.cursor)
	}

	m = step(t, m, keyMsg("s"))
	if !m.saved || len(saved) != 3 {
		t.Errorf("save: saved=%v tracks=%d", m.saved, len(saved))
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"short", 10, "short"},
		{"exactly", 7, "exactly"},
		{"much too long", 8, "much ..."},
		{"abc", 2, "ab"},
		{"any", 0, ""},
		{"ÅÄÖåäö", 5, "ÅÄ..."},
	}

	for _, tt := range tests {
		if got := truncate(tt.in, tt.n); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}
