package service

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/raphaelgruber/nutristat/internal/metrics"
	"github.com/raphaelgruber/nutristat/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T, workers int) (*JobService, *stubProvider, *memStore) {
	t.Helper()
	prov := newStubProvider()
	st := newMemStore()
	svc := NewJobService(prov, st, Options{
		Workers:     workers,
		PollTimeout: 10 * time.Millisecond,
		Logger:      testLogger(),
	})
	return svc, prov, st
}

func question(q string) models.Params {
	return models.Params{"question": q}
}

// submit admits a job and fails the test if no id could be reserved.
func submit(t *testing.T, svc *JobService, op models.Operation, params models.Params) models.JobID {
	t.Helper()
	id, err := svc.Submit(context.Background(), op, params)
	assert.NoError(t, err)
	return id
}

func waitDone(t *testing.T, svc *JobService, id models.JobID) JobState {
	t.Helper()
	var st JobState
	require.Eventually(t, func() bool {
		var err error
		st, err = svc.Status(context.Background(), id)
		return err == nil && st.Status == models.JobStatusDone
	}, 2*time.Second, 5*time.Millisecond, "job %s never completed", id)
	return st
}

func TestSubmitAssignsDenseIDs(t *testing.T) {
	svc, _, _ := newTestService(t, 1)

	for want := 1; want <= 5; want++ {
		id := submit(t, svc, models.OpGlobalMean, question("q"))
		assert.Equal(t, models.JobID(want), id)
	}
}

func TestSubmitConcurrentIDsAreDense(t *testing.T) {
	const n = 100
	svc, _, _ := newTestService(t, 2)

	var (
		mu  sync.Mutex
		ids = make(map[models.JobID]bool)
		wg  sync.WaitGroup
	)
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := submit(t, svc, models.OpGlobalMean, question("q"))
			mu.Lock()
			ids[id] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	require.Len(t, ids, n)
	for i := 1; i <= n; i++ {
		assert.True(t, ids[models.JobID(i)], "missing id %d", i)
	}
}

func TestQueueOrderMatchesIDOrder(t *testing.T) {
	svc, _, _ := newTestService(t, 1)
	ctx := context.Background()

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			submit(t, svc, models.OpGlobalMean, question("q"))
		}()
	}
	wg.Wait()

	for want := 1; want <= 20; want++ {
		job, ok := svc.pool.queue.Dequeue(ctx, 10*time.Millisecond)
		require.True(t, ok)
		assert.Equal(t, models.JobID(want), job.ID)
	}
}

func TestStatusDerivedFromStore(t *testing.T) {
	svc, prov, _ := newTestService(t, 1)
	ctx := context.Background()
	svc.Start()
	defer func() {
		close(prov.release)
		svc.Shutdown()
	}()

	blocked := submit(t, svc, models.OpGlobalMean, question("block"))
	<-prov.started

	st, err := svc.Status(ctx, blocked)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusRunning, st.Status)
	assert.Nil(t, st.Data)

	running, err := svc.CountRunning(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, running)
}

func TestStatusDonePayload(t *testing.T) {
	svc, _, _ := newTestService(t, 2)
	ctx := context.Background()
	svc.Start()
	defer svc.Shutdown()

	id := submit(t, svc, models.OpStateMean, models.Params{"question": "q1", "state": "Ohio"})
	st := waitDone(t, svc, id)

	assert.JSONEq(t, `{"operation":"state_mean","question":"q1","state":"Ohio"}`, string(st.Data))

	// Repeated reads return identical bytes.
	again, err := svc.Status(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, st.Data, again.Data)
}

func TestStatusInvalidIDs(t *testing.T) {
	svc, _, _ := newTestService(t, 1)
	ctx := context.Background()

	_, err := svc.Status(ctx, 1)
	assert.ErrorIs(t, err, models.ErrInvalidJobID)

	submit(t, svc, models.OpGlobalMean, question("q"))

	for _, id := range []models.JobID{0, -1, 2, 100} {
		_, err := svc.Status(ctx, id)
		assert.ErrorIs(t, err, models.ErrInvalidJobID, "id %d", id)
	}

	_, err = svc.Status(ctx, 1)
	assert.NoError(t, err)
}

func TestResultWrittenAtMostOnce(t *testing.T) {
	svc, _, st := newTestService(t, 4)
	svc.Start()

	var ids []models.JobID
	for range 30 {
		ids = append(ids, submit(t, svc, models.OpBest5, question("q")))
	}
	for _, id := range ids {
		waitDone(t, svc, id)
	}
	svc.Shutdown()

	for _, id := range ids {
		assert.Equal(t, 1, st.putCount(id), "job %s", id)
	}
}

func TestFailuresAreSwallowed(t *testing.T) {
	m := metrics.NewCollector()
	prov := newStubProvider()
	st := newMemStore()
	svc := NewJobService(prov, st, Options{
		Workers:     1,
		PollTimeout: 10 * time.Millisecond,
		Metrics:     m,
		Logger:      testLogger(),
	})
	svc.Start()
	defer svc.Shutdown()
	ctx := context.Background()

	failed := submit(t, svc, models.OpGlobalMean, question("fail"))
	panicked := submit(t, svc, models.OpGlobalMean, question("panic"))
	wrongForm := submit(t, svc, models.OpStateMean, question("q"))
	unknown := submit(t, svc, models.Operation("median"), question("q"))
	ok := submit(t, svc, models.OpGlobalMean, question("q"))

	// Jobs run in order on one worker, so the last one finishing means the
	// others were already handled.
	waitDone(t, svc, ok)

	for _, id := range []models.JobID{failed, panicked, wrongForm, unknown} {
		got, err := svc.Status(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, models.JobStatusRunning, got.Status, "job %s", id)
		assert.Equal(t, 0, st.putCount(id))
	}

	running, err := svc.CountRunning(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, running)

	snap := m.Snapshot()
	assert.Equal(t, int64(5), snap.Submitted)
	assert.Equal(t, int64(4), snap.Failed)
	assert.Equal(t, int64(1), snap.Completed)
}

func TestListJobs(t *testing.T) {
	svc, prov, _ := newTestService(t, 1)
	ctx := context.Background()

	jobs, err := svc.ListJobs(ctx)
	require.NoError(t, err)
	assert.Empty(t, jobs)

	svc.Start()
	first := submit(t, svc, models.OpWorst5, question("q"))
	waitDone(t, svc, first)
	submit(t, svc, models.OpGlobalMean, question("block"))
	<-prov.started // first job
	<-prov.started // blocked job

	jobs, err = svc.ListJobs(ctx)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, models.JobID(1), jobs[0].ID)
	assert.Equal(t, models.JobStatusDone, jobs[0].Status)
	assert.Equal(t, models.JobID(2), jobs[1].ID)
	assert.Equal(t, models.JobStatusRunning, jobs[1].Status)

	close(prov.release)
	svc.Shutdown()
}

func TestShutdownDoesNotDrain(t *testing.T) {
	svc, prov, st := newTestService(t, 1)
	ctx := context.Background()
	svc.Start()

	ids := []models.JobID{submit(t, svc, models.OpGlobalMean, question("block"))}
	<-prov.started
	for range 4 {
		ids = append(ids, submit(t, svc, models.OpGlobalMean, question("q")))
	}

	stopped := make(chan struct{})
	go func() {
		svc.Shutdown()
		close(stopped)
	}()
	require.Eventually(t, func() bool { return !svc.Accepting() }, time.Second, time.Millisecond)
	close(prov.release)

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("shutdown did not return")
	}

	got, err := svc.Status(ctx, ids[0])
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusDone, got.Status)

	for _, id := range ids[1:] {
		got, err := svc.Status(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, models.JobStatusRunning, got.Status, "job %s", id)
		assert.Equal(t, 0, st.putCount(id))
	}
}

func TestSubmitAfterShutdown(t *testing.T) {
	svc, _, _ := newTestService(t, 1)
	ctx := context.Background()
	svc.Start()
	svc.Shutdown()

	id := submit(t, svc, models.OpGlobalMean, question("q"))
	assert.Equal(t, models.JobID(1), id)

	time.Sleep(30 * time.Millisecond)
	got, err := svc.Status(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusRunning, got.Status)

	stats := svc.Stats()
	assert.False(t, stats.Accepting)
	assert.Equal(t, int64(1), stats.Metrics.Dropped)
	assert.Equal(t, 0, stats.Queued)
}

func TestFirstIDResumesAfterStoredResults(t *testing.T) {
	ctx := context.Background()
	st := newMemStore()
	require.NoError(t, st.Put(ctx, 1, []byte(`{"a":1}`)))
	require.NoError(t, st.Put(ctx, 3, []byte(`{"b":2}`)))

	first, err := NextIDAfter(ctx, st)
	require.NoError(t, err)
	assert.Equal(t, models.JobID(4), first)

	svc := NewJobService(newStubProvider(), st, Options{
		Workers:     1,
		PollTimeout: 10 * time.Millisecond,
		FirstID:     first,
		Logger:      testLogger(),
	})

	id := submit(t, svc, models.OpGlobalMean, question("q"))
	assert.Equal(t, models.JobID(4), id)

	old, err := svc.Status(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusDone, old.Status)
	assert.JSONEq(t, `{"b":2}`, string(old.Data))

	// Id 2 was assigned in the previous run but never finished.
	missing, err := svc.Status(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusRunning, missing.Status)
}

func TestRestartNeverReusesUnfinishedIDs(t *testing.T) {
	ctx := context.Background()
	st := newMemStore()

	first := NewJobService(newStubProvider(), st, Options{
		Workers:     1,
		PollTimeout: 10 * time.Millisecond,
		Logger:      testLogger(),
	})
	first.Start()
	finished := submit(t, first, models.OpGlobalMean, question("q"))
	waitDone(t, first, finished)
	first.Shutdown()
	dropped := submit(t, first, models.OpBest5, question("old-client"))
	require.Equal(t, models.JobID(2), dropped)

	next, err := NextIDAfter(ctx, st)
	require.NoError(t, err)
	assert.Equal(t, models.JobID(3), next)

	second := NewJobService(newStubProvider(), st, Options{
		Workers:     1,
		PollTimeout: 10 * time.Millisecond,
		FirstID:     next,
		Logger:      testLogger(),
	})
	second.Start()
	defer second.Shutdown()

	fresh := submit(t, second, models.OpBest5, question("new-client"))
	assert.Equal(t, models.JobID(3), fresh)
	got := waitDone(t, second, fresh)
	assert.JSONEq(t, `{"operation":"best5","question":"new-client"}`, string(got.Data))

	// The dropped job from the first run stays unfinished.
	old, err := second.Status(ctx, dropped)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusRunning, old.Status)
	assert.Equal(t, 0, st.putCount(dropped))
}

func TestSubmitReserveFailureAssignsNoID(t *testing.T) {
	svc, _, st := newTestService(t, 1)
	ctx := context.Background()

	st.reserveErr = errStub
	_, err := svc.Submit(ctx, models.OpGlobalMean, question("q"))
	require.ErrorIs(t, err, errStub)

	stats := svc.Stats()
	assert.EqualValues(t, 1, stats.NextJobID)
	assert.Equal(t, 0, stats.Queued)
	assert.Zero(t, stats.Metrics.Submitted)

	st.reserveErr = nil
	id, err := svc.Submit(ctx, models.OpGlobalMean, question("q"))
	require.NoError(t, err)
	assert.Equal(t, models.JobID(1), id)
}

func TestStopAcceptingReturnsWhileJobRuns(t *testing.T) {
	svc, prov, _ := newTestService(t, 1)
	svc.Start()

	blocked := submit(t, svc, models.OpGlobalMean, question("block"))
	<-prov.started

	svc.StopAccepting()
	assert.False(t, svc.Accepting())

	dropped := submit(t, svc, models.OpGlobalMean, question("q"))
	assert.Equal(t, models.JobID(2), dropped)
	assert.Equal(t, int64(1), svc.Stats().Metrics.Dropped)

	// The in-flight job still completes.
	close(prov.release)
	waitDone(t, svc, blocked)
	svc.Shutdown()
}

func TestNextIDAfterEmptyStore(t *testing.T) {
	first, err := NextIDAfter(context.Background(), newMemStore())
	require.NoError(t, err)
	assert.Equal(t, models.JobID(1), first)
}

func TestCompletionEvents(t *testing.T) {
	svc, _, _ := newTestService(t, 1)

	events, cancel := svc.Subscribe(4)
	defer cancel()
	assert.Equal(t, 1, svc.Stats().Subscribers)

	svc.Start()
	defer svc.Shutdown()
	id := submit(t, svc, models.OpDiffFromMean, question("q"))

	select {
	case ev := <-events:
		assert.Equal(t, id.String(), ev.JobID)
		assert.Equal(t, "diff_from_mean", ev.Operation)
		assert.Equal(t, "done", ev.Status)
	case <-time.After(2 * time.Second):
		t.Fatal("no completion event")
	}
}

func TestStatsJSON(t *testing.T) {
	svc, _, _ := newTestService(t, 3)
	submit(t, svc, models.OpGlobalMean, question("q"))

	raw, err := json.Marshal(svc.Stats())
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.EqualValues(t, 3, decoded["workers"])
	assert.EqualValues(t, 1, decoded["queued"])
	assert.EqualValues(t, 2, decoded["next_job_id"])
	assert.Equal(t, true, decoded["accepting"])
}
