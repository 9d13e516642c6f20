// ABOUTME: CLI progress display for a running generation
// ABOUTME: Draws a progress bar on terminals and prints improvement lines otherwise

package main

import (
	"fmt"
	"io"
	"time"

	"github.com/cheggaaa/pb/v3"

	"playlist-generator/solver"
)

const barTemplate = `{{ string . "prefix" }} {{ bar . }} {{ counters . }} | {{ string . "best" }} | {{ etime . }}`

// progressReporter consumes solver updates until the channel closes
type progressReporter struct {
	out       io.Writer
	tty       bool
	started   time.Time
	bar       *pb.ProgressBar
	best      float64
	precision int
	last      solver.Update
}

func newProgressReporter(out io.Writer, tty bool) *progressReporter {
	return &progressReporter{out: out, tty: tty, started: time.Now(), best: -1, precision: 2}
}

// run drains updates and returns the last one seen
func (r *progressReporter) run(updates <-chan solver.Update) solver.Update {
	for u := range updates {
		r.handle(u)
	}

	r.finish()

	return r.last
}

func (r *progressReporter) handle(u solver.Update) {
	r.last = u

	if r.tty {
		r.draw(u)
		return
	}

	if u.BestSatisfaction <= r.best && !u.Done {
		return
	}

	// Non-TTY: one line per improvement, no redraws
	var s string

	prev := r.best
	if prev < 0 {
		prev = 0
	}

	s, r.precision = formatWithMonotonicPrecision(prev*100, u.BestSatisfaction*100, r.precision)
	r.best = max(r.best, u.BestSatisfaction)

	fmt.Fprintf(r.out, "%s Gen %4d - satisfaction %s%% (%d tracks)\n",
		formatElapsed(time.Since(r.started)), u.Generation, s, u.BestSize)
}

func (r *progressReporter) draw(u solver.Update) {
	if r.bar == nil {
		r.bar = pb.New(u.MaxGenerations)
		r.bar.SetWriter(r.out)
		r.bar.SetTemplateString(barTemplate)
		r.bar.Set("prefix", "Generating")
		r.bar.Start()
	}

	r.bar.SetTotal(int64(u.MaxGenerations))
	r.bar.SetCurrent(int64(u.Generation))
	r.bar.Set("best", fmt.Sprintf("best %.1f%% / %d tracks", u.BestSatisfaction*100, u.BestSize))
}

func (r *progressReporter) finish() {
	if r.bar != nil {
		r.bar.Finish()
	}
}

// formatElapsed right-aligns a duration to 6 characters ("59m59s" at most)
func formatElapsed(d time.Duration) string {
	var s string
	if d >= time.Minute {
		s = fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	} else {
		s = fmt.Sprintf("%ds", int(d.Seconds()))
	}

	return fmt.Sprintf("%6s", s)
}
