// ABOUTME: Job queue that runs long tasks such as solver runs on background workers
// ABOUTME: Provides submit-and-wait with a per-job done signal for observers

package pool

import (
	"errors"
	"runtime"
	"sync"
)

// ErrClosed is returned by TrySubmit after Close.
var ErrClosed = errors.New("worker pool is closed")

type job struct {
	task func()
	done chan struct{}
}

// WorkerPool manages a pool of worker goroutines for background jobs
type WorkerPool struct {
	workers  int
	taskChan chan job
	workerWg sync.WaitGroup // tracks worker goroutines lifetime
	taskWg   sync.WaitGroup // tracks submitted tasks completion

	mu     sync.RWMutex
	closed bool
}

// NewWorkerPool starts workers goroutines; zero or less uses one per CPU.
// The bufferSize determines the task channel capacity
func NewWorkerPool(workers, bufferSize int) *WorkerPool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	pool := &WorkerPool{
		workers:  workers,
		taskChan: make(chan job, max(bufferSize, 0)),
	}

	for range workers {
		pool.workerWg.Add(1)

		go func() {
			defer pool.workerWg.Done()

			for j := range pool.taskChan {
				pool.run(j)
			}
		}()
	}

	return pool
}

// run executes one job, then closes its done channel and releases Wait.
// A panicking task is not recovered and ends the process.
func (p *WorkerPool) run(j job) {
	defer p.taskWg.Done()
	defer close(j.done)

	j.task()
}

// Workers returns the number of worker goroutines.
func (p *WorkerPool) Workers() int {
	return p.workers
}

// Submit queues a task and returns a channel closed once it has run.
// Blocks if the task channel is full. Submitting after Close panics.
func (p *WorkerPool) Submit(task func()) <-chan struct{} {
	done, err := p.TrySubmit(task)
	if err != nil {
		panic(err)
	}

	return done
}

// TrySubmit is Submit that reports a closed pool instead of panicking.
func (p *WorkerPool) TrySubmit(task func()) (<-chan struct{}, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return nil, ErrClosed
	}

	j := job{task: task, done: make(chan struct{})}

	p.taskWg.Add(1)
	p.taskChan <- j

	return j.done, nil
}

// Wait blocks until all submitted tasks have completed
func (p *WorkerPool) Wait() {
	p.taskWg.Wait()
}

// Close stops accepting jobs and waits for queued ones and the workers to exit
func (p *WorkerPool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}

	p.closed = true
	close(p.taskChan)
	p.mu.Unlock()

	p.workerWg.Wait()
}
