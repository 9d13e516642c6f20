// ABOUTME: Rendering and display functions for the TUI
// ABOUTME: Implements the Bubble Tea View() function and all render helpers

package tui

import (
	"fmt"
	"strings"
	"time"

	"playlist-generator/playlist"
)

// maxAuditLines caps the constraint report under the playlist.
const maxAuditLines = 8

// View renders the TUI
func (m model) View() string {
	var b strings.Builder

	title := "Generating"
	if m.opts.Title != "" {
		title += ": " + m.opts.Title
	}

	b.WriteString(titleStyle.Render(title) + "\n\n")

	switch m.phase {
	case phaseLoading:
		b.WriteString(m.spin.View() + " Loading candidate tracks...\n")
	case phaseRunning:
		b.WriteString(m.renderProgress())
	case phaseDone:
		b.WriteString(m.renderPlaylist())
		b.WriteString(m.renderSummary())
		b.WriteString(m.renderAudit())
	case phaseFailed:
		b.WriteString(m.renderFailure())
	}

	b.WriteString("\n" + m.renderStatus() + "\n" + m.renderHelp())

	return b.String()
}

// renderProgress shows the generation counter and best score so far
func (m model) renderProgress() string {
	u := m.last

	percent := 0.0
	if u.MaxGenerations > 0 {
		percent = float64(u.Generation) / float64(u.MaxGenerations)
	}

	line := fmt.Sprintf("Gen %d/%d | best %.1f%% | %d tracks | pop %d | %.1f gen/s",
		u.Generation, u.MaxGenerations, u.BestSatisfaction*100, u.BestSize, u.PopulationSize, u.GenPerSec)

	return m.spin.View() + " " + m.bar.ViewAs(min(percent, 1)) + "\n\n" + line + "\n"
}

// renderPlaylist renders the result list with viewport scrolling
func (m model) renderPlaylist() string {
	header := fmt.Sprintf("%-3s %-25s %-30s %-20s %-12s %7s", "#", "Artist", "Title", "Album", "Genre", "Length")

	return playlistHeaderStyle.Render(header) + "\n" + m.viewport.View() + "\n"
}

// updateViewportContent builds and sets the viewport content
func (m *model) updateViewportContent() {
	var content strings.Builder

	for i, track := range m.tracks {
		line := fmt.Sprintf("%-3d %-25s %-30s %-20s %-12s %7s",
			i+1,
			truncate(track.Artist, 25),
			truncate(track.Title, 30),
			truncate(track.Album, 20),
			truncate(track.Genre, 12),
			playlist.FormatLength(track.Length),
		)

		if i == m.cursor {
			line = cursorStyle.Render(line)
		}

		content.WriteString(line + "\n")
	}

	m.viewport.SetContent(content.String())
	m.viewport.YOffset = scrollOffset(m.viewport.Height, m.cursor, len(m.tracks))
}

// renderSummary reports the score of the shown playlist
func (m model) renderSummary() string {
	score := fmt.Sprintf("%d tracks, %s, satisfaction %.1f%% after %d generations",
		len(m.tracks),
		playlist.FormatLength(playlist.TotalLength(m.tracks)),
		m.result.Satisfaction*100,
		m.result.Generations,
	)

	if m.result.Satisfied {
		return goodStyle.Render(score) + "\n"
	}

	return warnStyle.Render(score+" (constraints not fully met)") + "\n"
}

func (m model) auditHeight() int {
	if len(m.audit) == 0 {
		return 0
	}

	return min(len(m.audit), maxAuditLines) + 1
}

// renderAudit lists each constraint's satisfaction for the current tracks
func (m model) renderAudit() string {
	if len(m.audit) == 0 {
		return ""
	}

	var b strings.Builder

	b.WriteString("\n")

	for i, e := range m.audit {
		if i == maxAuditLines {
			break
		}

		line := fmt.Sprintf("%s%-50s %5.1f%%", strings.Repeat("  ", e.Depth), truncate(e.Name, 50-2*e.Depth), e.Satisfaction*100)
		b.WriteString(helpStyle.Render(line) + "\n")
	}

	return b.String()
}

func (m model) renderFailure() string {
	if m.aborted {
		return warnStyle.Render("Generation aborted, nothing was changed.") + "\n"
	}

	if m.err != nil {
		return errorStyle.Render("Generation failed: "+m.err.Error()) + "\n"
	}

	return ""
}

// renderStatus renders the status bar
func (m model) renderStatus() string {
	if m.statusMsg != "" && time.Since(m.statusMsgAge) < statusMessageDuration {
		return statusStyle.Width(m.width).Render(m.statusMsg)
	}

	elapsed := time.Since(m.started).Round(time.Second)

	var status string

	switch m.phase {
	case phaseDone:
		status = fmt.Sprintf("Track %d/%d | U:%d R:%d | %s",
			min(m.cursor+1, len(m.tracks)), len(m.tracks), m.history.UndoDepth(), m.history.RedoDepth(), elapsed)
	default:
		status = fmt.Sprintf("Elapsed %s", elapsed)
	}

	return statusStyle.Width(m.width).Render(status)
}

// renderHelp renders the help text
func (m model) renderHelp() string {
	if m.phase == phaseDone {
		return helpStyle.Render(" ↑/↓/j/k: navigate | d: drop track | u: undo | ctrl+r: redo | s: save | q: quit")
	}

	return helpStyle.Render(" q: abort")
}

// truncate shortens s to n runes with an ellipsis
func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 {
		return ""
	}

	if len(r) <= n {
		return s
	}

	if n <= 3 {
		return string(r[:n])
	}

	return string(r[:n-3]) + "..."
}
