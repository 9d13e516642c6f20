// ABOUTME: Event handling and state updates for the TUI
// ABOUTME: Implements the Bubble Tea Update() function and message handlers

package tui

import (
	"errors"
	"fmt"
	"slices"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"playlist-generator/preset"
	"playlist-generator/solver"
)

// Update handles messages and updates the model
//
//nolint:ireturn // Bubble Tea framework requires returning tea.Model interface
func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		m.viewport.Width = max(msg.Width-2, minViewportWidth)
		m.viewport.Height = max(msg.Height-totalUIChrome-m.auditHeight(), minViewportHeight)
		m.bar.Width = max(msg.Width-30, minViewportWidth/2)

		m.updateViewportContent()

		return m, nil

	case spinner.TickMsg:
		if m.phase != phaseLoading && m.phase != phaseRunning {
			return m, nil
		}

		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)

		return m, cmd

	case progress.FrameMsg:
		pm, cmd := m.bar.Update(msg)
		if bar, ok := pm.(progress.Model); ok {
			m.bar = bar
		}

		return m, cmd

	case solver.Update:
		if m.phase == phaseLoading {
			m.phase = phaseRunning
		}

		m.last = msg

		return m, waitForUpdate(m.opts.Updates)

	case updatesClosedMsg:
		return m, nil

	case doneMsg:
		return m.handleDone(msg)

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

func (m model) handleDone(msg doneMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		m.phase = phaseFailed
		m.aborted = errors.Is(msg.err, preset.ErrAborted)

		if !m.aborted {
			m.err = msg.err
		}
	} else {
		m.phase = phaseDone
		m.result = msg.result
		m.tracks = slices.Clone(msg.result.Tracks)
		m.refreshAudit()
		m.viewport.Height = max(m.height-totalUIChrome-m.auditHeight(), minViewportHeight)
		m.updateViewportContent()
	}

	if m.quitting {
		return m, tea.Quit
	}

	return m, nil
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, keys.Quit) {
		if m.phase == phaseLoading || m.phase == phaseRunning {
			// Wait for the job to notice so the tree is restored before exit.
			m.quitting = true
			m.cancel()
			m.setStatus("Aborting...")

			return m, nil
		}

		return m, tea.Quit
	}

	if m.phase != phaseDone {
		return m, nil
	}

	switch {
	case key.Matches(msg, keys.Up):
		m.moveCursor(-1)
	case key.Matches(msg, keys.Down):
		m.moveCursor(1)
	case key.Matches(msg, keys.PageUp):
		m.moveCursor(-pageJumpSize)
	case key.Matches(msg, keys.PageDown):
		m.moveCursor(pageJumpSize)
	case key.Matches(msg, keys.Home):
		m.moveCursor(-len(m.tracks))
	case key.Matches(msg, keys.End):
		m.moveCursor(len(m.tracks))
	case key.Matches(msg, keys.Delete):
		m.deleteTrack()
	case key.Matches(msg, keys.Undo):
		m.undo()
	case key.Matches(msg, keys.Redo):
		m.redo()
	case key.Matches(msg, keys.Save):
		m.save()
	}

	return m, nil
}

func (m *model) moveCursor(delta int) {
	if len(m.tracks) == 0 {
		m.cursor = 0
		return
	}

	m.cursor = max(0, min(m.cursor+delta, len(m.tracks)-1))
	m.updateViewportContent()
}

func (m *model) snapshot() Snapshot {
	return Snapshot{Tracks: m.tracks, Cursor: m.cursor}
}

func (m *model) restore(s Snapshot) {
	m.tracks = s.Tracks
	m.cursor = s.Cursor
	m.refreshAudit()
	m.moveCursor(0)
}

func (m *model) deleteTrack() {
	if len(m.tracks) == 0 {
		return
	}

	m.history.Record(m.snapshot())

	removed := m.tracks[m.cursor]
	m.tracks = slices.Delete(slices.Clone(m.tracks), m.cursor, m.cursor+1)
	m.refreshAudit()
	m.moveCursor(0)
	m.setStatus(fmt.Sprintf("Dropped %s - %s", removed.Artist, removed.Title))
}

func (m *model) undo() {
	if s, ok := m.history.Undo(m.snapshot()); ok {
		m.restore(s)
		m.setStatus("Undone")
	}
}

func (m *model) redo() {
	if s, ok := m.history.Redo(m.snapshot()); ok {
		m.restore(s)
		m.setStatus("Redone")
	}
}

func (m *model) save() {
	if m.opts.Save == nil {
		m.setStatus("Nowhere to save to")
		return
	}

	if err := m.opts.Save(m.tracks); err != nil {
		m.setStatus("Save failed: " + err.Error())
		return
	}

	m.saved = true
	m.setStatus(fmt.Sprintf("Saved %d tracks", len(m.tracks)))
}

// refreshAudit recomputes the per-constraint report for the current tracks
func (m *model) refreshAudit() {
	if m.opts.Explain != nil {
		m.audit = m.opts.Explain(m.tracks)
	}
}
