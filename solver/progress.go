// ABOUTME: Progress tracking and update management for the constraint solver
// ABOUTME: Handles generation speed calculation and non-blocking update channel communication

package solver

import (
	"sync"
	"time"
)

// Update describes the solver state after one generation.
type Update struct {
	Generation       int
	MaxGenerations   int
	BestSatisfaction float64
	BestSize         int
	PopulationSize   int
	GenPerSec        float64
	Done             bool
}

// progressTracker tracks progress update state
type progressTracker struct {
	updateChan   chan<- Update
	maxGens      int
	lastGenTime  time.Time
	lastGenCount int
	closeOnce    sync.Once
}

func newProgressTracker(ch chan<- Update, maxGens int) *progressTracker {
	return &progressTracker{updateChan: ch, maxGens: maxGens, lastGenTime: time.Now()}
}

// sendUpdate sends a progress update to the channel if appropriate
func (pt *progressTracker) sendUpdate(gen int, best individual, popSize int, improved, done bool) {
	// Guard: skip if not time to update or no channel
	if (!improved && !done && gen%5 != 0) || pt.updateChan == nil {
		return
	}

	now := time.Now()
	elapsed := now.Sub(pt.lastGenTime).Seconds()
	genPerSec := 0.0

	if elapsed > 0 {
		genPerSec = float64(gen-pt.lastGenCount) / elapsed
	}

	select {
	case pt.updateChan <- Update{
		Generation:       gen,
		MaxGenerations:   pt.maxGens,
		BestSatisfaction: best.satisfaction,
		BestSize:         len(best.tracks),
		PopulationSize:   popSize,
		GenPerSec:        genPerSec,
		Done:             done,
	}:
	default:
		// Don't block if channel is full
	}

	pt.lastGenTime = now
	pt.lastGenCount = gen
}

// close ensures the update channel is closed exactly once
func (pt *progressTracker) close() {
	if pt.updateChan != nil {
		pt.closeOnce.Do(func() { close(pt.updateChan) })
	}
}
