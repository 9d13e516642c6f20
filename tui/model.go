// ABOUTME: Terminal UI model for watching a playlist generation and reviewing the result
// ABOUTME: Bubble Tea model wired to solver progress updates and the generate job

// Package tui shows solver progress while a preset generates and lets the user
// review, trim and save the resulting playlist.
package tui

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"playlist-generator/constraint"
	"playlist-generator/playlist"
	"playlist-generator/preset"
	"playlist-generator/solver"
)

// Layout constants for UI dimensions
const (
	titleHeight     = 2 // Title bar
	headerHeight    = 1 // Column headers for playlist
	summaryHeight   = 2 // Satisfaction summary
	statusBarHeight = 1 // Bottom status bar
	helpHeight      = 1 // Help text line
	totalUIChrome   = titleHeight + headerHeight + summaryHeight + statusBarHeight + helpHeight

	minViewportWidth  = 40
	minViewportHeight = 5
)

// Navigation and interaction constants
const (
	pageJumpSize          = 10
	statusMessageDuration = 5 * time.Second
	maxHistorySize        = 50
)

// phase is where the generation is.
type phase int

const (
	phaseLoading phase = iota // waiting for the domain
	phaseRunning              // solver generations arriving
	phaseDone                 // result available
	phaseFailed               // aborted or errored
)

// Options wires the UI to a generation.
type Options struct {
	Title    string
	Updates  <-chan solver.Update
	Generate func(ctx context.Context) (preset.Result, error)
	Explain  func(tracks []playlist.Track) []constraint.AuditEntry // optional
	Save     func(tracks []playlist.Track) error                    // optional, bound to "s"
}

// Outcome is what the user ended up with.
type Outcome struct {
	Tracks  []playlist.Track
	Result  preset.Result
	Aborted bool
	Saved   bool
	Err     error
}

// doneMsg carries the finished generate job.
type doneMsg struct {
	result preset.Result
	err    error
}

// updatesClosedMsg is sent once the progress channel is drained.
type updatesClosedMsg struct{}

// model holds the TUI state
type model struct {
	opts Options

	// Framework exception: Bubble Tea owns the model lifecycle, so the
	// generation context lives here to let the abort key cancel it.
	ctx    context.Context //nolint:containedctx // See framework exception above
	cancel context.CancelFunc

	phase    phase
	last     solver.Update
	started  time.Time
	result   preset.Result
	err      error
	aborted  bool
	quitting bool
	saved    bool

	tracks  []playlist.Track
	audit   []constraint.AuditEntry
	cursor  int
	history *History

	viewport viewport.Model
	bar      progress.Model
	spin     spinner.Model

	width        int
	height       int
	statusMsg    string
	statusMsgAge time.Time
}

// Key bindings
type keyMap struct {
	Up       key.Binding
	Down     key.Binding
	PageUp   key.Binding
	PageDown key.Binding
	Home     key.Binding
	End      key.Binding
	Delete   key.Binding
	Undo     key.Binding
	Redo     key.Binding
	Save     key.Binding
	Quit     key.Binding
}

var keys = keyMap{
	Up: key.NewBinding(
		key.WithKeys("up", "k"),
		key.WithHelp("↑/k", "navigate"),
	),
	Down: key.NewBinding(
		key.WithKeys("down", "j"),
		key.WithHelp("↓/j", "navigate"),
	),
	PageUp: key.NewBinding(
		key.WithKeys("pgup"),
		key.WithHelp("pgup", "page up"),
	),
	PageDown: key.NewBinding(
		key.WithKeys("pgdown"),
		key.WithHelp("pgdn", "page down"),
	),
	Home: key.NewBinding(
		key.WithKeys("home", "g"),
		key.WithHelp("home/g", "first track"),
	),
	End: key.NewBinding(
		key.WithKeys("end", "G"),
		key.WithHelp("end/G", "last track"),
	),
	Delete: key.NewBinding(
		key.WithKeys("d"),
		key.WithHelp("d", "drop track"),
	),
	Undo: key.NewBinding(
		key.WithKeys("u"),
		key.WithHelp("u", "undo"),
	),
	Redo: key.NewBinding(
		key.WithKeys("ctrl+r"),
		key.WithHelp("ctrl+r", "redo"),
	),
	Save: key.NewBinding(
		key.WithKeys("s"),
		key.WithHelp("s", "save"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "esc", "ctrl+c"),
		key.WithHelp("q", "abort/quit"),
	),
}

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("12"))

	playlistHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("10"))

	statusStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("236")).
			Foreground(lipgloss.Color("15")).
			Padding(0, 1)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	cursorStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("240")).
			Foreground(lipgloss.Color("15"))

	goodStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("10"))

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("11"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9")).
			Bold(true)
)

func newModel(ctx context.Context, opts Options) model {
	ctx, cancel := context.WithCancel(ctx)

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return model{
		opts:     opts,
		ctx:      ctx,
		cancel:   cancel,
		phase:    phaseLoading,
		started:  time.Now(),
		history:  NewHistory(maxHistorySize),
		viewport: viewport.New(minViewportWidth*2, minViewportHeight),
		bar:      progress.New(progress.WithDefaultGradient(), progress.WithWidth(minViewportWidth)),
		spin:     sp,
	}
}

// Run shows the generation until the user quits and returns what they kept.
func Run(ctx context.Context, opts Options) (Outcome, error) {
	if opts.Generate == nil {
		return Outcome{}, fmt.Errorf("tui: no generate job")
	}

	m := newModel(ctx, opts)
	defer m.cancel()

	p := tea.NewProgram(m, tea.WithAltScreen())

	finalModel, err := p.Run()
	if err != nil {
		return Outcome{}, fmt.Errorf("TUI error: %w", err)
	}

	fm, ok := finalModel.(model)
	if !ok {
		return Outcome{}, fmt.Errorf("TUI error: unexpected model %T", finalModel)
	}

	return fm.outcome(), nil
}

func (m model) outcome() Outcome {
	return Outcome{
		Tracks:  m.tracks,
		Result:  m.result,
		Aborted: m.aborted,
		Saved:   m.saved,
		Err:     m.err,
	}
}

// Init starts the spinner, the progress listener and the generate job
func (m model) Init() tea.Cmd {
	return tea.Batch(
		m.spin.Tick,
		waitForUpdate(m.opts.Updates),
		runGenerate(m.ctx, m.opts.Generate),
	)
}

// waitForUpdate returns a command that waits for the next solver update
func waitForUpdate(updates <-chan solver.Update) tea.Cmd {
	if updates == nil {
		return nil
	}

	return func() tea.Msg {
		update, ok := <-updates
		if !ok {
			return updatesClosedMsg{}
		}

		return update
	}
}

// runGenerate runs the job in the background and reports its result
func runGenerate(ctx context.Context, generate func(context.Context) (preset.Result, error)) tea.Cmd {
	return func() tea.Msg {
		res, err := generate(ctx)
		return doneMsg{result: res, err: err}
	}
}

// setStatus shows a transient status message
func (m *model) setStatus(msg string) {
	m.statusMsg = msg
	m.statusMsgAge = time.Now()
}
