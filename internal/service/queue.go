package service

import (
	"context"
	"sync"
	"time"

	"github.com/raphaelgruber/nutristat/internal/models"
)

// Queue is an unbounded FIFO of admitted jobs shared by all workers.
// Enqueue never blocks; Dequeue blocks up to a timeout.
type Queue struct {
	mu    sync.Mutex
	items []models.Job
	// wake is closed and replaced on every enqueue to release waiting workers.
	wake chan struct{}
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{wake: make(chan struct{})}
}

// Enqueue appends a job to the tail.
func (q *Queue) Enqueue(job models.Job) {
	q.mu.Lock()
	q.items = append(q.items, job)
	close(q.wake)
	q.wake = make(chan struct{})
	q.mu.Unlock()
}

// Len returns the number of queued jobs.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Dequeue pops the head of the queue, waiting up to timeout for one to arrive.
// ok is false when the timeout elapses or ctx is done with the queue still empty.
func (q *Queue) Dequeue(ctx context.Context, timeout time.Duration) (job models.Job, ok bool) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			job = q.items[0]
			q.items[0] = models.Job{}
			q.items = q.items[1:]
			q.mu.Unlock()
			return job, true
		}
		wake := q.wake
		q.mu.Unlock()

		select {
		case <-wake:
			// Another waiter may win the race; loop and re-check
		case <-timer.C:
			return models.Job{}, false
		case <-ctx.Done():
			return models.Job{}, false
		}
	}
}
