// Package store persists completed job results, one record per job id.
package store

import (
	"context"
	"errors"

	"github.com/raphaelgruber/nutristat/internal/models"
)

// ErrNotFound indicates no non-empty result exists for a job id.
// Callers treat it exactly like "not yet written".
var ErrNotFound = errors.New("result not found")

// Store is durable key-value persistence of job results.
//
// Each job id is written by exactly one worker, so implementations need no
// cross-key locking. Reads of one key may run concurrently with writes of
// another.
type Store interface {
	// Put persists payload under id, creating backing storage if needed.
	Put(ctx context.Context, id models.JobID, payload []byte) error

	// Get returns the stored payload or ErrNotFound. An empty payload counts as absent.
	Get(ctx context.Context, id models.JobID) ([]byte, error)

	// Exists reports whether Get would return a payload.
	Exists(ctx context.Context, id models.JobID) (bool, error)

	// ReserveID durably records id as handed out. It is called at admission,
	// before the job is queued, with strictly increasing ids.
	ReserveID(ctx context.Context, id models.JobID) error

	// MaxID returns the highest job id that was reserved or has a stored
	// result, or 0 when empty.
	MaxID(ctx context.Context) (models.JobID, error)

	// Wipe removes every stored result and the reservation mark.
	Wipe(ctx context.Context) error

	// Close releases connections held by the store.
	Close(ctx context.Context) error
}
