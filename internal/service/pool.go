package service

import (
	"context"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/raphaelgruber/nutristat/internal/models"
)

// ExecuteFunc runs one dequeued job to completion. It owns the job.
type ExecuteFunc func(ctx context.Context, job models.Job)

// Pool is a fixed set of workers draining a shared Queue.
//
// Stopping is single-shot and does not drain: each worker finishes at most
// the job it is executing, re-checks the accepting flag, and exits. Jobs
// still queued are abandoned.
type Pool struct {
	queue       *Queue
	execute     ExecuteFunc
	size        int
	pollTimeout time.Duration
	logger      *slog.Logger

	accepting atomic.Bool
	busy      atomic.Int64
	wg        sync.WaitGroup
	startOnce sync.Once
	stopOnce  sync.Once
}

// NewPool creates a pool of size workers. Workers wait at most pollTimeout
// on the queue before re-checking the accepting flag.
func NewPool(size int, pollTimeout time.Duration, execute ExecuteFunc, logger *slog.Logger) *Pool {
	if size <= 0 {
		size = 1
	}
	if pollTimeout <= 0 {
		pollTimeout = time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	p := &Pool{
		queue:       NewQueue(),
		execute:     execute,
		size:        size,
		pollTimeout: pollTimeout,
		logger:      logger,
	}
	p.accepting.Store(true)
	return p
}

// Start launches the workers. Calling it more than once has no effect.
func (p *Pool) Start() {
	p.startOnce.Do(func() {
		p.wg.Add(p.size)
		for i := range p.size {
			go p.worker(i)
		}
		p.logger.Info("worker pool started", "workers", p.size, "poll_timeout", p.pollTimeout)
	})
}

// Submit enqueues job if the pool still accepts work and reports whether it did.
func (p *Pool) Submit(job models.Job) bool {
	if !p.accepting.Load() {
		return false
	}
	p.queue.Enqueue(job)
	return true
}

// Close clears the accepting flag and returns without waiting. Workers exit
// after their current job or poll timeout.
func (p *Pool) Close() {
	p.stopOnce.Do(func() {
		p.accepting.Store(false)
		p.logger.Info("worker pool stopping", "queued", p.queue.Len())
	})
}

// Stop closes the pool and waits for every worker to exit.
// It may take up to one poll timeout plus the longest in-flight job.
func (p *Pool) Stop() {
	p.Close()
	p.wg.Wait()
}

// Accepting reports whether Submit still enqueues.
func (p *Pool) Accepting() bool {
	return p.accepting.Load()
}

// Size returns the number of workers.
func (p *Pool) Size() int {
	return p.size
}

// Queued returns the number of jobs waiting for a worker.
func (p *Pool) Queued() int {
	return p.queue.Len()
}

// Busy returns the number of workers currently executing a job.
func (p *Pool) Busy() int {
	return int(p.busy.Load())
}

func (p *Pool) worker(idx int) {
	defer p.wg.Done()
	log := p.logger.With("worker", idx)
	log.Debug("worker started")

	// The flag is checked once per iteration: after a timed-out dequeue or
	// after finishing a job, never in between.
	for p.accepting.Load() {
		job, ok := p.queue.Dequeue(context.Background(), p.pollTimeout)
		if !ok {
			continue
		}
		p.run(log, job)
	}

	log.Debug("worker stopped")
}

func (p *Pool) run(log *slog.Logger, job models.Job) {
	p.busy.Add(1)
	defer p.busy.Add(-1)

	defer func() {
		if r := recover(); r != nil {
			log.Error("worker recovered from panic",
				"job_id", job.ID.String(),
				"operation", job.Operation,
				"panic", r,
				"stack", string(debug.Stack()))
		}
	}()

	p.execute(context.Background(), job)
}
