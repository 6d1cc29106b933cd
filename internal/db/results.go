package db

import (
	"context"
	"fmt"

	"github.com/surrealdb/surrealdb.go"
)

type resultRow struct {
	Payload string `json:"payload"`
}

type jobIDRow struct {
	JobID int64 `json:"job_id"`
}

type counterRow struct {
	LastID int64 `json:"last_id"`
}

// PutResult upserts the payload for a job id.
func (c *Client) PutResult(ctx context.Context, id int64, payload []byte) error {
	_, err := surrealdb.Query[any](ctx, c.db, `
		UPSERT type::record("job_result", $id) CONTENT {
			job_id: $id,
			payload: $payload
		}
	`, map[string]any{"id": id, "payload": string(payload)})
	if err != nil {
		return fmt.Errorf("put result: %w", wrapQueryError(err))
	}
	return nil
}

// GetResult returns the stored payload. found is false when the record is
// missing or its payload is empty.
func (c *Client) GetResult(ctx context.Context, id int64) (payload []byte, found bool, err error) {
	results, err := surrealdb.Query[[]resultRow](ctx, c.db, `
		SELECT payload FROM type::record("job_result", $id)
	`, map[string]any{"id": id})
	if err != nil {
		return nil, false, fmt.Errorf("get result: %w", wrapQueryError(err))
	}

	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, false, nil
	}
	p := (*results)[0].Result[0].Payload
	if p == "" {
		return nil, false, nil
	}
	return []byte(p), true, nil
}

// MaxResultID returns the highest stored job id, or 0 if there are none.
func (c *Client) MaxResultID(ctx context.Context) (int64, error) {
	results, err := surrealdb.Query[[]jobIDRow](ctx, c.db, `
		SELECT job_id FROM job_result ORDER BY job_id DESC LIMIT 1
	`, nil)
	if err != nil {
		return 0, fmt.Errorf("max result id: %w", wrapQueryError(err))
	}

	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return 0, nil
	}
	return (*results)[0].Result[0].JobID, nil
}

// ReserveJobID sets the counter record to id.
func (c *Client) ReserveJobID(ctx context.Context, id int64) error {
	_, err := surrealdb.Query[any](ctx, c.db, `
		UPSERT type::record("job_counter", "last") CONTENT { last_id: $id }
	`, map[string]any{"id": id})
	if err != nil {
		return fmt.Errorf("reserve job id: %w", wrapQueryError(err))
	}
	return nil
}

// LastReservedJobID returns the counter record, or 0 if none was written.
func (c *Client) LastReservedJobID(ctx context.Context) (int64, error) {
	results, err := surrealdb.Query[[]counterRow](ctx, c.db, `
		SELECT last_id FROM type::record("job_counter", "last")
	`, nil)
	if err != nil {
		return 0, fmt.Errorf("last reserved job id: %w", wrapQueryError(err))
	}

	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return 0, nil
	}
	return (*results)[0].Result[0].LastID, nil
}

// WipeResults deletes every stored result and the id counter while
// preserving the schema.
func (c *Client) WipeResults(ctx context.Context) error {
	c.logger.Warn("wiping all job results")
	if _, err := surrealdb.Query[any](ctx, c.db, "DELETE job_result; DELETE job_counter;", nil); err != nil {
		return fmt.Errorf("wipe results: %w", wrapQueryError(err))
	}
	return nil
}
