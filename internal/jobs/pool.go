// Package jobs runs fire-and-forget closures on a fixed set of worker goroutines.
package jobs

import (
	"fmt"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"runtime"
	"sync"
)

// Job is a unit of work. Results flow through state owned by the caller.
type Job func()

// ShutdownMode selects what Join does with jobs still queued.
type ShutdownMode int

const (
	shutdownNone ShutdownMode = iota
	// ShutdownImmediate makes workers exit as soon as they finish their current job, discarding the queue.
	ShutdownImmediate
	// ShutdownGraceful makes workers drain the queue before exiting.
	ShutdownGraceful
)

func (m ShutdownMode) String() string {
	switch m {
	case ShutdownImmediate:
		return "immediate"
	case ShutdownGraceful:
		return "graceful"
	default:
		return "running"
	}
}

// ErrClosed is returned by Enqueue once the pool has been joined.
var ErrClosed = errors.New("jobs: pool is closed")

// Pool is a FIFO job queue served by a fixed number of workers. A pool is single use: after Join it rejects jobs.
type Pool struct {
	logger  *zap.SugaredLogger
	workers int

	mu       sync.Mutex
	cond     *sync.Cond
	queue    []Job
	shutdown ShutdownMode
	joined   bool
	wg       sync.WaitGroup
}

// NewPool starts workers goroutines (runtime.NumCPU() when workers <= 0). A nil logger discards logs.
func NewPool(workers int, logger *zap.SugaredLogger) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	p := &Pool{logger: logger, workers: workers}
	p.cond = sync.NewCond(&p.mu)
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.work(i)
	}
	return p
}

// Workers is the number of worker goroutines.
func (p *Pool) Workers() int {
	return p.workers
}

// Enqueue appends a job and wakes one idle worker.
func (p *Pool) Enqueue(job Job) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.shutdown != shutdownNone {
		return ErrClosed
	}
	p.queue = append(p.queue, job)
	p.cond.Signal()
	return nil
}

// Join stops the pool with the given mode and blocks until every worker has exited.
// It returns the number of queued jobs that were never run. Calling Join again is a no-op returning 0.
func (p *Pool) Join(mode ShutdownMode) int {
	if mode != ShutdownImmediate && mode != ShutdownGraceful {
		panic(fmt.Sprintf("jobs: invalid shutdown mode %d", int(mode)))
	}
	p.mu.Lock()
	if p.joined {
		p.mu.Unlock()
		return 0
	}
	p.joined = true
	p.shutdown = mode
	p.cond.Broadcast()
	p.mu.Unlock()

	p.wg.Wait()

	p.mu.Lock()
	discarded := len(p.queue)
	p.queue = nil
	p.mu.Unlock()
	if discarded > 0 {
		p.logger.Debugw("discarded queued jobs", "count", discarded, "mode", mode)
	}
	return discarded
}

func (p *Pool) work(id int) {
	defer p.wg.Done()
	for {
		p.mu.Lock()
		for len(p.queue) == 0 && p.shutdown == shutdownNone {
			p.cond.Wait()
		}
		if p.shutdown == ShutdownImmediate || (p.shutdown == ShutdownGraceful && len(p.queue) == 0) {
			p.mu.Unlock()
			return
		}
		job := p.queue[0]
		p.queue[0] = nil
		p.queue = p.queue[1:]
		p.mu.Unlock()

		p.run(id, job)
	}
}

func (p *Pool) run(id int, job Job) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Errorw("job panicked", "worker", id, "panic", r, zap.Stack("stack"))
		}
	}()
	job()
}
