// Package models defines the job, operation and result types shared by the
// nutristat server, workers and client.
package models

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Sentinel errors for job admission and lookup.
var (
	// ErrInvalidJobID indicates a malformed job id or one that was never assigned.
	ErrInvalidJobID = errors.New("invalid job_id")

	// ErrUnknownOperation indicates an operation name outside the fixed set.
	ErrUnknownOperation = errors.New("unknown operation")
)

// JobID identifies a job. IDs are assigned densely starting at 1.
type JobID int64

const jobIDPrefix = "job_id_"

// String returns the wire form of the id, e.g. "job_id_7".
func (id JobID) String() string {
	return jobIDPrefix + strconv.FormatInt(int64(id), 10)
}

// ParseJobID accepts both the wire form ("job_id_7") and a bare integer ("7").
// Range checks are left to the caller, which knows the next id to assign.
func ParseJobID(s string) (JobID, error) {
	n, err := strconv.ParseInt(strings.TrimPrefix(strings.TrimSpace(s), jobIDPrefix), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidJobID, s)
	}
	return JobID(n), nil
}

// JobStatus is derived from result presence; there is no stored status field.
type JobStatus string

const (
	JobStatusRunning JobStatus = "running"
	JobStatusDone    JobStatus = "done"
)

// Operation names one of the fixed set of computations a job can request.
type Operation string

const (
	OpStatesMean          Operation = "states_mean"
	OpStateMean           Operation = "state_mean"
	OpBest5               Operation = "best5"
	OpWorst5              Operation = "worst5"
	OpGlobalMean          Operation = "global_mean"
	OpDiffFromMean        Operation = "diff_from_mean"
	OpStateDiffFromMean   Operation = "state_diff_from_mean"
	OpMeanByCategory      Operation = "mean_by_category"
	OpStateMeanByCategory Operation = "state_mean_by_category"
)

var operations = []Operation{
	OpStatesMean,
	OpStateMean,
	OpBest5,
	OpWorst5,
	OpGlobalMean,
	OpDiffFromMean,
	OpStateDiffFromMean,
	OpMeanByCategory,
	OpStateMeanByCategory,
}

// Operations returns every known operation in route order.
func Operations() []Operation {
	out := make([]Operation, len(operations))
	copy(out, operations)
	return out
}

// Scoped reports whether op takes a state parameter in addition to the question.
func (op Operation) Scoped() bool {
	switch op {
	case OpStateMean, OpStateDiffFromMean, OpStateMeanByCategory:
		return true
	}
	return false
}

// ParseOperation validates an operation name against the fixed set.
func ParseOperation(s string) (Operation, error) {
	for _, op := range operations {
		if string(op) == s {
			return op, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownOperation, s)
}

// Params are the named inputs of a job. They are forwarded to the
// computation provider without validation.
type Params map[string]any

// Question returns the "question" parameter, or "" if missing or not a string.
func (p Params) Question() string {
	return p.str("question")
}

// State returns the "state" parameter, or "" if missing or not a string.
func (p Params) State() string {
	return p.str("state")
}

func (p Params) str(key string) string {
	if p == nil {
		return ""
	}
	s, _ := p[key].(string)
	return s
}

// Job is one admitted unit of work. A dequeued Job is owned by exactly one worker.
type Job struct {
	ID          JobID
	Operation   Operation
	Params      Params
	SubmittedAt time.Time
}
