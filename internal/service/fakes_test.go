package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/raphaelgruber/nutristat/internal/models"
	"github.com/raphaelgruber/nutristat/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// memStore is an in-memory Store that counts writes per id.
type memStore struct {
	mu      sync.Mutex
	results map[models.JobID][]byte
	puts    map[models.JobID]int
	putErr  error

	reserved   models.JobID
	reserveErr error
}

func newMemStore() *memStore {
	return &memStore{
		results: make(map[models.JobID][]byte),
		puts:    make(map[models.JobID]int),
	}
}

func (m *memStore) Put(_ context.Context, id models.JobID, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.putErr != nil {
		return m.putErr
	}
	m.puts[id]++
	m.results[id] = append([]byte(nil), payload...)
	return nil
}

func (m *memStore) ReserveID(_ context.Context, id models.JobID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.reserveErr != nil {
		return m.reserveErr
	}
	m.reserved = id
	return nil
}

func (m *memStore) Get(_ context.Context, id models.JobID) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.results[id]
	if !ok || len(p) == 0 {
		return nil, store.ErrNotFound
	}
	return append([]byte(nil), p...), nil
}

func (m *memStore) Exists(ctx context.Context, id models.JobID) (bool, error) {
	_, err := m.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (m *memStore) MaxID(context.Context) (models.JobID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	maxID := m.reserved
	for id := range m.results {
		maxID = max(maxID, id)
	}
	return maxID, nil
}

func (m *memStore) Wipe(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results = make(map[models.JobID][]byte)
	m.reserved = 0
	return nil
}

func (m *memStore) Close(context.Context) error { return nil }

func (m *memStore) putCount(id models.JobID) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.puts[id]
}

// stubProvider answers every operation with a result naming the operation and
// its inputs. A question of "block" waits on release; "fail" returns an
// error; "panic" panics.
type stubProvider struct {
	release chan struct{}
	started chan string
}

func newStubProvider() *stubProvider {
	return &stubProvider{
		release: make(chan struct{}),
		started: make(chan string, 64),
	}
}

var errStub = errors.New("stub failure")

func (p *stubProvider) answer(op, question, state string) (*models.Result, error) {
	select {
	case p.started <- question:
	default:
	}

	switch question {
	case "block":
		<-p.release
	case "fail":
		return nil, errStub
	case "panic":
		panic("stub panic")
	}

	r := models.NewResult().Set("operation", op).Set("question", question)
	if state != "" {
		r.Set("state", state)
	}
	return r, nil
}

func (p *stubProvider) StatesMean(q string) (*models.Result, error) {
	return p.answer("states_mean", q, "")
}
func (p *stubProvider) StateMean(q, s string) (*models.Result, error) {
	return p.answer("state_mean", q, s)
}
func (p *stubProvider) Best5(q string) (*models.Result, error) { return p.answer("best5", q, "") }
func (p *stubProvider) Worst5(q string) (*models.Result, error) { return p.answer("worst5", q, "") }
func (p *stubProvider) GlobalMean(q string) (*models.Result, error) {
	return p.answer("global_mean", q, "")
}
func (p *stubProvider) DiffFromMean(q string) (*models.Result, error) {
	return p.answer("diff_from_mean", q, "")
}
func (p *stubProvider) StateDiffFromMean(q, s string) (*models.Result, error) {
	return p.answer("state_diff_from_mean", q, s)
}
func (p *stubProvider) MeanByCategory(q string) (*models.Result, error) {
	return p.answer("mean_by_category", q, "")
}
func (p *stubProvider) StateMeanByCategory(q, s string) (*models.Result, error) {
	return p.answer("state_mean_by_category", q, s)
}
