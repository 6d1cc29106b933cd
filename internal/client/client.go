// Package client provides an HTTP client for the nutristat server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/raphaelgruber/nutristat/internal/metrics"
	"github.com/raphaelgruber/nutristat/internal/models"
)

// Client talks to the nutristat HTTP API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a new client.
// If baseURL is empty, uses NUTRISTAT_SERVER_URL env var or defaults to localhost:5000.
// Timeout can be configured via NUTRISTAT_CLIENT_TIMEOUT env var (default 30s).
func New(baseURL string) *Client {
	if baseURL == "" {
		baseURL = os.Getenv("NUTRISTAT_SERVER_URL")
	}
	if baseURL == "" {
		baseURL = "http://localhost:5000"
	}

	timeout := 30 * time.Second
	if t := os.Getenv("NUTRISTAT_CLIENT_TIMEOUT"); t != "" {
		if d, err := time.ParseDuration(t); err == nil {
			timeout = d
		}
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// BaseURL returns the server address the client targets.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// APIError is a non-200 response from the server.
type APIError struct {
	StatusCode int
	Reason     string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server error: %d %s", e.StatusCode, e.Reason)
}

// Unwrap maps the server's invalid id reason back to models.ErrInvalidJobID.
func (e *APIError) Unwrap() error {
	if e.Reason == "Invalid job_id" {
		return models.ErrInvalidJobID
	}
	return nil
}

type errorBody struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
}

// do sends a request and decodes a 200 JSON response into out.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Request-Id", uuid.NewString())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var eb errorBody
		if json.Unmarshal(respBody, &eb) == nil && eb.Reason != "" {
			return &APIError{StatusCode: resp.StatusCode, Reason: eb.Reason}
		}
		return &APIError{StatusCode: resp.StatusCode, Reason: strings.TrimSpace(string(respBody))}
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}

// =============================================================================
// TYPES (matching the HTTP API)
// =============================================================================

// JobResult is the answer to a get_results query. Data is set only when done.
type JobResult struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// Done reports whether the job has a stored result.
func (r *JobResult) Done() bool {
	return r.Status == string(models.JobStatusDone)
}

// JobStatus is one entry of the jobs listing.
type JobStatus struct {
	ID     models.JobID
	Status string
}

// Stats mirrors the server's /api/stats response.
type Stats struct {
	Workers     int              `json:"workers"`
	Accepting   bool             `json:"accepting"`
	Queued      int              `json:"queued"`
	Busy        int              `json:"busy"`
	NextJobID   int64            `json:"next_job_id"`
	Subscribers int              `json:"subscribers"`
	Metrics     metrics.Snapshot `json:"metrics"`
}

// Event is a job completion pushed over the websocket stream.
type Event struct {
	JobID       string    `json:"job_id"`
	Operation   string    `json:"operation"`
	Status      string    `json:"status"`
	DurationMs  int64     `json:"duration_ms"`
	CompletedAt time.Time `json:"completed_at"`
}

// =============================================================================
// OPERATIONS
// =============================================================================

// Submit requests op for question, scoped to state when non-empty, and
// returns the job id in wire form.
func (c *Client) Submit(ctx context.Context, op models.Operation, question, state string) (string, error) {
	body := map[string]any{"question": question}
	if state != "" {
		body["state"] = state
	}

	var resp struct {
		JobID string `json:"job_id"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/"+string(op), body, &resp); err != nil {
		return "", err
	}
	return resp.JobID, nil
}

// GetResult fetches a job's status and, once done, its result.
func (c *Client) GetResult(ctx context.Context, jobID string) (*JobResult, error) {
	var resp JobResult
	if err := c.do(ctx, http.MethodGet, "/api/get_results/"+url.PathEscape(jobID), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// NumJobs returns how many jobs have no result yet.
func (c *Client) NumJobs(ctx context.Context) (int, error) {
	var resp struct {
		NumJobs int `json:"num_jobs"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/num_jobs", nil, &resp); err != nil {
		return 0, err
	}
	return resp.NumJobs, nil
}

// ListJobs returns every assigned job with its status, in id order.
func (c *Client) ListJobs(ctx context.Context) ([]JobStatus, error) {
	var resp struct {
		Status string            `json:"status"`
		Data   map[string]string `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/jobs", nil, &resp); err != nil {
		return nil, err
	}

	jobs := make([]JobStatus, 0, len(resp.Data))
	for key, status := range resp.Data {
		id, err := models.ParseJobID(key)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, JobStatus{ID: id, Status: status})
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].ID < jobs[j].ID })
	return jobs, nil
}

// Stats returns the server's pipeline statistics.
func (c *Client) Stats(ctx context.Context) (*Stats, error) {
	var resp Stats
	if err := c.do(ctx, http.MethodGet, "/api/stats", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Shutdown asks the server to stop its worker pool.
func (c *Client) Shutdown(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/api/graceful_shutdown", nil, nil)
}

// Health checks that the server answers.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return &APIError{StatusCode: resp.StatusCode, Reason: resp.Status}
	}
	return nil
}

// =============================================================================
// EVENT STREAM
// =============================================================================

// Watch streams job completion events until ctx is done, the server closes
// the stream, or onEvent returns an error. Context cancellation returns nil.
func (c *Client) Watch(ctx context.Context, onEvent func(Event) error) error {
	wsEndpoint := c.baseURL
	wsEndpoint = strings.Replace(wsEndpoint, "http://", "ws://", 1)
	wsEndpoint = strings.Replace(wsEndpoint, "https://", "wss://", 1)

	u, err := url.Parse(wsEndpoint + "/api/ws")
	if err != nil {
		return fmt.Errorf("parse endpoint: %w", err)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}
	conn, resp, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("websocket connect: %w", err)
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}

	// Track connection state for proper cleanup
	var mu sync.Mutex
	closed := false
	closeConn := func() {
		mu.Lock()
		defer mu.Unlock()
		if !closed {
			closed = true
			conn.Close()
		}
	}
	defer closeConn()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			closeConn()
		case <-done:
		}
	}()

	for {
		var ev Event
		if err := conn.ReadJSON(&ev); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) && closeErr.Code == websocket.CloseNormalClosure {
				return nil
			}
			return fmt.Errorf("read event: %w", err)
		}
		if err := onEvent(ev); err != nil {
			return err
		}
	}
}
