// Package service provides job admission, the worker pool that executes
// jobs, and status queries derived from the result store.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/raphaelgruber/nutristat/internal/metrics"
	"github.com/raphaelgruber/nutristat/internal/models"
	"github.com/raphaelgruber/nutristat/internal/store"
)

// JobState is the derived view of one job. Data is set only when done and
// holds the stored payload verbatim.
type JobState struct {
	ID     models.JobID
	Status models.JobStatus
	Data   json.RawMessage
}

// Stats is a point-in-time view of the pipeline.
type Stats struct {
	Workers     int              `json:"workers"`
	Accepting   bool             `json:"accepting"`
	Queued      int              `json:"queued"`
	Busy        int              `json:"busy"`
	NextJobID   int64            `json:"next_job_id"`
	Subscribers int              `json:"subscribers"`
	Metrics     metrics.Snapshot `json:"metrics"`
}

// Options configure a JobService.
type Options struct {
	Workers     int
	PollTimeout time.Duration
	// FirstID is the first id to assign; values below 1 mean 1.
	FirstID models.JobID
	Metrics *metrics.Collector
	Logger  *slog.Logger
}

// idCounter hands out dense, strictly increasing job ids.
type idCounter struct {
	next atomic.Int64
}

func newIDCounter(first models.JobID) *idCounter {
	c := &idCounter{}
	c.next.Store(int64(max(first, 1)))
	return c
}

// Next returns the next id and advances the counter.
func (c *idCounter) Next() models.JobID {
	return models.JobID(c.next.Add(1) - 1)
}

// Peek returns the id the next call to Next will return.
func (c *idCounter) Peek() models.JobID {
	return models.JobID(c.next.Load())
}

// JobService admits jobs, runs them on a worker pool and answers status
// queries. A job's status is derived solely from result presence in the store.
type JobService struct {
	// admit serializes id assignment with enqueue so queue order matches id order.
	admit sync.Mutex
	ids   *idCounter

	pool    *Pool
	store   store.Store
	table   map[models.Operation]handler
	metrics *metrics.Collector
	events  *Broadcaster
	logger  *slog.Logger
}

// NewJobService wires the provider, store and a worker pool. Call Start to
// launch the workers.
func NewJobService(provider Provider, st store.Store, opts Options) *JobService {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewCollector()
	}

	s := &JobService{
		ids:     newIDCounter(opts.FirstID),
		store:   st,
		table:   newDispatchTable(provider),
		metrics: opts.Metrics,
		events:  NewBroadcaster(),
		logger:  opts.Logger,
	}
	s.pool = NewPool(opts.Workers, opts.PollTimeout, s.execute, opts.Logger)
	return s
}

// Start launches the worker pool.
func (s *JobService) Start() {
	s.pool.Start()
}

// Submit reserves the next job id in the store and enqueues the job. It never
// blocks on execution. After shutdown the job is dropped but the id is still
// returned; that job will report running forever. An error means no id was
// assigned.
func (s *JobService) Submit(ctx context.Context, op models.Operation, params models.Params) (models.JobID, error) {
	s.admit.Lock()
	id := s.ids.Peek()
	if err := s.store.ReserveID(ctx, id); err != nil {
		s.admit.Unlock()
		return 0, fmt.Errorf("reserve job id %s: %w", id, err)
	}
	s.ids.Next()
	queued := s.pool.Submit(models.Job{
		ID:          id,
		Operation:   op,
		Params:      params,
		SubmittedAt: time.Now(),
	})
	s.admit.Unlock()

	s.metrics.RecordSubmitted()
	if !queued {
		s.metrics.RecordDropped()
		s.logger.WarnContext(ctx, "job dropped, pool is shut down", "job_id", id.String(), "operation", op)
		return id, nil
	}

	s.logger.InfoContext(ctx, "job created", "job_id", id.String(), "operation", op)
	return id, nil
}

// validate rejects ids that were never assigned.
func (s *JobService) validate(id models.JobID) error {
	if id < 1 || id >= s.ids.Peek() {
		return fmt.Errorf("%w: %s", models.ErrInvalidJobID, id)
	}
	return nil
}

// Status returns done plus the stored payload, or running when no result exists.
func (s *JobService) Status(ctx context.Context, id models.JobID) (JobState, error) {
	if err := s.validate(id); err != nil {
		return JobState{}, err
	}

	payload, err := s.store.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return JobState{ID: id, Status: models.JobStatusRunning}, nil
	}
	if err != nil {
		return JobState{}, fmt.Errorf("read result %s: %w", id, err)
	}
	return JobState{ID: id, Status: models.JobStatusDone, Data: payload}, nil
}

// CountRunning returns how many assigned ids have no stored result. Jobs
// that failed or were dropped at shutdown are included.
func (s *JobService) CountRunning(ctx context.Context) (int, error) {
	jobs, err := s.ListJobs(ctx)
	if err != nil {
		return 0, err
	}
	running := 0
	for _, j := range jobs {
		if j.Status == models.JobStatusRunning {
			running++
		}
	}
	return running, nil
}

// ListJobs returns the status of every assigned id, in id order. Ids from a
// previous run (see Options.FirstID) are included.
func (s *JobService) ListJobs(ctx context.Context) ([]JobState, error) {
	next := s.ids.Peek()
	jobs := make([]JobState, 0, int(next-1))

	for id := models.JobID(1); id < next; id++ {
		ok, err := s.store.Exists(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("check result %s: %w", id, err)
		}
		status := models.JobStatusRunning
		if ok {
			status = models.JobStatusDone
		}
		jobs = append(jobs, JobState{ID: id, Status: status})
	}
	return jobs, nil
}

// StopAccepting stops the pool from taking new work and returns at once.
// In-flight jobs finish in the background; queued jobs are abandoned.
func (s *JobService) StopAccepting() {
	s.pool.Close()
}

// Shutdown stops accepting work and waits for in-flight jobs. Queued jobs
// are abandoned. Safe to call more than once, also after StopAccepting.
func (s *JobService) Shutdown() {
	s.pool.Stop()
	s.logger.Info("job service shut down", "abandoned", s.pool.Queued())
}

// Accepting reports whether new submissions are still queued.
func (s *JobService) Accepting() bool {
	return s.pool.Accepting()
}

// Subscribe streams completion events. Call cancel to unsubscribe.
func (s *JobService) Subscribe(buffer int) (<-chan Event, func()) {
	return s.events.Subscribe(buffer)
}

// Stats returns pool and metrics state.
func (s *JobService) Stats() Stats {
	return Stats{
		Workers:     s.pool.Size(),
		Accepting:   s.pool.Accepting(),
		Queued:      s.pool.Queued(),
		Busy:        s.pool.Busy(),
		NextJobID:   int64(s.ids.Peek()),
		Subscribers: s.events.Subscribers(),
		Metrics:     s.metrics.Snapshot(),
	}
}

// execute runs on a worker. Every failure is logged and swallowed: the job
// simply never gets a result.
func (s *JobService) execute(ctx context.Context, job models.Job) {
	start := time.Now()
	log := s.logger.With("job_id", job.ID.String(), "operation", job.Operation)

	h, ok := s.table[job.Operation]
	if !ok {
		s.metrics.RecordFailed(string(job.Operation))
		log.Warn("unknown operation, job will not complete")
		return
	}

	result, err := compute(h, job.Params)
	if err != nil {
		s.metrics.RecordFailed(string(job.Operation))
		log.Error("job failed", "error", err)
		return
	}

	payload, err := json.Marshal(result)
	if err != nil {
		s.metrics.RecordFailed(string(job.Operation))
		log.Error("encode result", "error", err)
		return
	}

	if err := s.store.Put(ctx, job.ID, payload); err != nil {
		s.metrics.RecordFailed(string(job.Operation))
		log.Error("persist result", "error", err)
		return
	}

	elapsed := time.Since(start)
	s.metrics.RecordCompleted(string(job.Operation), elapsed)
	log.Info("job completed", "duration_ms", elapsed.Milliseconds(), "bytes", len(payload))

	s.events.Publish(Event{
		JobID:       job.ID.String(),
		Operation:   string(job.Operation),
		Status:      string(models.JobStatusDone),
		DurationMs:  elapsed.Milliseconds(),
		CompletedAt: time.Now(),
	})
}

// compute converts provider panics into errors.
func compute(h handler, params models.Params) (result *models.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("provider panic: %v", r)
		}
	}()
	return h.call(params)
}

// NextIDAfter returns the id following the highest id st has reserved or
// stored, so a restarted service keeps earlier results addressable and never
// reuses an id, finished or not. An empty store yields 1.
func NextIDAfter(ctx context.Context, st store.Store) (models.JobID, error) {
	maxID, err := st.MaxID(ctx)
	if err != nil {
		return 0, fmt.Errorf("read highest stored job id: %w", err)
	}
	return maxID + 1, nil
}
