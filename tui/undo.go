// ABOUTME: Undo/redo history for trimming a generated playlist
// ABOUTME: Keeps bounded stacks of playlist snapshots with the cursor position

package tui

import (
	"slices"

	"playlist-generator/playlist"
)

// Snapshot captures the playlist and cursor for undo/redo
type Snapshot struct {
	Tracks []playlist.Track
	Cursor int
}

func (s Snapshot) clone() Snapshot {
	return Snapshot{Tracks: slices.Clone(s.Tracks), Cursor: s.Cursor}
}

// History manages undo/redo stacks with a maximum size
type History struct {
	undo  []Snapshot
	redo  []Snapshot
	limit int
}

// NewHistory creates a history holding at most limit entries per stack
func NewHistory(limit int) *History {
	return &History{limit: max(limit, 1)}
}

// push appends s, dropping the oldest entry past the limit
func (h *History) push(stack []Snapshot, s Snapshot) []Snapshot {
	stack = append(stack, s.clone())
	if len(stack) > h.limit {
		stack = stack[len(stack)-h.limit:]
	}

	return stack
}

// Record saves the state before an edit. New edits clear the redo stack.
func (h *History) Record(s Snapshot) {
	h.undo = h.push(h.undo, s)
	h.redo = nil
}

// Undo returns the previous state, remembering current for Redo
func (h *History) Undo(current Snapshot) (Snapshot, bool) {
	if len(h.undo) == 0 {
		return Snapshot{}, false
	}

	h.redo = h.push(h.redo, current)

	s := h.undo[len(h.undo)-1]
	h.undo = h.undo[:len(h.undo)-1]

	return s, true
}

// Redo returns the state Undo left, remembering current for Undo
func (h *History) Redo(current Snapshot) (Snapshot, bool) {
	if len(h.redo) == 0 {
		return Snapshot{}, false
	}

	h.undo = h.push(h.undo, current)

	s := h.redo[len(h.redo)-1]
	h.redo = h.redo[:len(h.redo)-1]

	return s, true
}

// UndoDepth returns the number of undoable edits
func (h *History) UndoDepth() int {
	return len(h.undo)
}

// RedoDepth returns the number of redoable edits
func (h *History) RedoDepth() int {
	return len(h.redo)
}
