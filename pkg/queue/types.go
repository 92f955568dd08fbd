package queue

import (
	"encoding/json"
	"slices"
	"time"
)

// Status is the lifecycle state of a job.
type Status string

const (
	StatusQueued     Status = "QUEUED"
	StatusRunning    Status = "RUNNING"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
	StatusDeadLetter Status = "DEAD_LETTER"
	StatusCancelled  Status = "CANCELLED"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusQueued, StatusRunning, StatusCompleted, StatusFailed, StatusDeadLetter, StatusCancelled:
		return true
	}
	return false
}

// ErrorEntry is one failed attempt in a job's error history.
type ErrorEntry struct {
	Attempt   int       `json:"attempt"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Job is a unit of asynchronous work owned by one organization.
// Priority is informational: it never reorders listing or dispatch.
type Job struct {
	ID             string          `json:"id"`
	OrganizationID string          `json:"organizationId"`
	Type           string          `json:"type"`
	Payload        json.RawMessage `json:"payload,omitempty"`
	Priority       int             `json:"priority"`
	Status         Status          `json:"status"`
	Attempts       int             `json:"attempts"`
	MaxAttempts    int             `json:"maxAttempts"`
	DedupeKey      *string         `json:"dedupeKey,omitempty"`
	WorkerID       string          `json:"workerId,omitempty"`
	Result         json.RawMessage `json:"result,omitempty"`
	LastError      string          `json:"lastError,omitempty"`
	ErrorHistory   []ErrorEntry    `json:"errorHistory"`
	CancelReason   string          `json:"cancelReason,omitempty"`
	CreatedBy      string          `json:"createdBy,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
	StartedAt      *time.Time      `json:"startedAt,omitempty"`
	CompletedAt    *time.Time      `json:"completedAt,omitempty"`
	CancelledAt    *time.Time      `json:"cancelledAt,omitempty"`
}

// Clone returns a deep copy of the job. Stores hand out clones only.
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	c := *j
	c.Payload = slices.Clone(j.Payload)
	c.Result = slices.Clone(j.Result)
	c.ErrorHistory = slices.Clone(j.ErrorHistory)
	if j.DedupeKey != nil {
		k := *j.DedupeKey
		c.DedupeKey = &k
	}
	c.StartedAt = cloneTime(j.StartedAt)
	c.CompletedAt = cloneTime(j.CompletedAt)
	c.CancelledAt = cloneTime(j.CancelledAt)
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// EnqueueParams describes a job submission.
type EnqueueParams struct {
	OrganizationID string
	Type           string
	Payload        json.RawMessage
	Priority       int
	// MaxAttempts of zero falls back to the engine default.
	MaxAttempts int
	DedupeKey   string
	CreatedBy   string
}

// ListOptions filters List results. Results are newest first.
type ListOptions struct {
	OrganizationID string
	Statuses       []Status
	Type           string
	Limit          int
}
