package store

import (
	"context"

	"github.com/raphaelgruber/nutristat/internal/db"
	"github.com/raphaelgruber/nutristat/internal/models"
)

// SurrealStore adapts the SurrealDB client to the Store interface.
type SurrealStore struct {
	client *db.Client
}

// NewSurrealStore wraps an initialized client.
func NewSurrealStore(client *db.Client) *SurrealStore {
	return &SurrealStore{client: client}
}

func (s *SurrealStore) Put(ctx context.Context, id models.JobID, payload []byte) error {
	return s.client.PutResult(ctx, int64(id), payload)
}

func (s *SurrealStore) Get(ctx context.Context, id models.JobID) ([]byte, error) {
	payload, found, err := s.client.GetResult(ctx, int64(id))
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrNotFound
	}
	return payload, nil
}

func (s *SurrealStore) Exists(ctx context.Context, id models.JobID) (bool, error) {
	_, found, err := s.client.GetResult(ctx, int64(id))
	return found, err
}

func (s *SurrealStore) ReserveID(ctx context.Context, id models.JobID) error {
	return s.client.ReserveJobID(ctx, int64(id))
}

// MaxID is the larger of the highest stored result and the counter record.
func (s *SurrealStore) MaxID(ctx context.Context) (models.JobID, error) {
	stored, err := s.client.MaxResultID(ctx)
	if err != nil {
		return 0, err
	}
	reserved, err := s.client.LastReservedJobID(ctx)
	if err != nil {
		return 0, err
	}
	return models.JobID(max(stored, reserved)), nil
}

func (s *SurrealStore) Wipe(ctx context.Context) error {
	return s.client.WipeResults(ctx)
}

func (s *SurrealStore) Close(ctx context.Context) error {
	return s.client.Close(ctx)
}
