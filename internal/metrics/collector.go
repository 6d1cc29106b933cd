// Package metrics provides in-memory runtime statistics for the job pipeline.
package metrics

import (
	"math"
	"sort"
	"sync"
	"time"
)

// OperationMetrics holds aggregated execution timing for one operation.
type OperationMetrics struct {
	Count     int64
	Failures  int64
	TotalTime time.Duration
	MinTime   time.Duration
	MaxTime   time.Duration
}

// OperationSnapshot provides computed stats from raw metrics.
type OperationSnapshot struct {
	Operation   string  `json:"operation"`
	Count       int64   `json:"count"`
	Failures    int64   `json:"failures"`
	TotalTimeMs int64   `json:"total_time_ms"`
	AvgTimeMs   float64 `json:"avg_time_ms"`
	MinTimeMs   int64   `json:"min_time_ms"`
	MaxTimeMs   int64   `json:"max_time_ms"`
}

// Snapshot represents the job pipeline statistics at a point in time.
type Snapshot struct {
	UptimeSeconds float64             `json:"uptime_seconds"`
	Submitted     int64               `json:"submitted"`
	Completed     int64               `json:"completed"`
	Failed        int64               `json:"failed"`
	Dropped       int64               `json:"dropped"`
	Operations    []OperationSnapshot `json:"operations"`
}

// Collector aggregates in-memory runtime statistics.
// All methods are thread-safe.
type Collector struct {
	mu        sync.RWMutex
	startTime time.Time
	submitted int64
	completed int64
	failed    int64
	dropped   int64
	ops       map[string]*OperationMetrics
}

// NewCollector creates a new metrics collector.
func NewCollector() *Collector {
	return &Collector{
		startTime: time.Now(),
		ops:       make(map[string]*OperationMetrics),
	}
}

// getOrCreate returns existing metrics or creates new ones for an operation.
// Caller must hold write lock.
func (c *Collector) getOrCreate(op string) *OperationMetrics {
	m, ok := c.ops[op]
	if !ok {
		m = &OperationMetrics{MinTime: time.Duration(math.MaxInt64)}
		c.ops[op] = m
	}
	return m
}

// RecordSubmitted counts an admitted job.
func (c *Collector) RecordSubmitted() {
	c.mu.Lock()
	c.submitted++
	c.mu.Unlock()
}

// RecordDropped counts a job that was admitted after shutdown and never queued.
func (c *Collector) RecordDropped() {
	c.mu.Lock()
	c.dropped++
	c.mu.Unlock()
}

// RecordCompleted records a job whose result was persisted.
func (c *Collector) RecordCompleted(op string, duration time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.completed++
	m := c.getOrCreate(op)
	m.Count++
	m.TotalTime += duration

	if duration < m.MinTime {
		m.MinTime = duration
	}
	if duration > m.MaxTime {
		m.MaxTime = duration
	}
}

// RecordFailed records a job whose computation or persistence failed.
// The failure is swallowed by the pool; this is the only trace besides the log.
func (c *Collector) RecordFailed(op string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.failed++
	c.getOrCreate(op).Failures++
}

// snapshotOp creates a snapshot for an operation.
func snapshotOp(name string, m *OperationMetrics) OperationSnapshot {
	snap := OperationSnapshot{
		Operation: name,
		Count:     m.Count,
		Failures:  m.Failures,
	}
	if m.Count == 0 {
		return snap
	}

	snap.TotalTimeMs = m.TotalTime.Milliseconds()
	snap.AvgTimeMs = float64(m.TotalTime.Milliseconds()) / float64(m.Count)
	snap.MinTimeMs = m.MinTime.Milliseconds()
	snap.MaxTimeMs = m.MaxTime.Milliseconds()
	return snap
}

// Snapshot returns a point-in-time snapshot of all metrics, operations sorted by name.
func (c *Collector) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ops := make([]OperationSnapshot, 0, len(c.ops))
	for name, m := range c.ops {
		ops = append(ops, snapshotOp(name, m))
	}
	sort.Slice(ops, func(i, j int) bool { return ops[i].Operation < ops[j].Operation })

	return Snapshot{
		UptimeSeconds: time.Since(c.startTime).Seconds(),
		Submitted:     c.submitted,
		Completed:     c.completed,
		Failed:        c.failed,
		Dropped:       c.dropped,
		Operations:    ops,
	}
}
