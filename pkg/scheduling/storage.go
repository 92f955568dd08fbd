package scheduling

import (
	"context"
	"encoding/json"

	"github.com/dmitrymomot/schedkit/pkg/availability"
	"github.com/dmitrymomot/schedkit/pkg/queue"
)

// Storage persists suggestions. UpdateSuggestion must not lose updates.
type Storage interface {
	CreateSuggestion(ctx context.Context, s *Suggestion) error

	// GetSuggestion returns ErrNotFound for unknown ids.
	GetSuggestion(ctx context.Context, id string) (*Suggestion, error)

	// UpdateSuggestion applies fn to a copy of the stored record and replaces it.
	// An error from fn aborts the update and is returned as is.
	UpdateSuggestion(ctx context.Context, id string, fn func(*Suggestion) error) (*Suggestion, error)

	// ListSuggestions returns the organization's suggestions newest first.
	ListSuggestions(ctx context.Context, organizationID string, opts ListOptions) ([]*Suggestion, error)
}

// WindowFinder is the availability lookup used during processing.
type WindowFinder interface {
	GetWindows(ctx context.Context, q availability.Query) (*availability.Result, error)
}

// JobQueue is the subset of the queue engine a suggestion job is mirrored to.
type JobQueue interface {
	Enqueue(ctx context.Context, params queue.EnqueueParams) (*queue.Job, error)
	Get(ctx context.Context, jobID string) (*queue.Job, error)
	Start(ctx context.Context, jobID, workerID string) (*queue.Job, error)
	Complete(ctx context.Context, jobID, workerID string, result json.RawMessage) (*queue.Job, error)
	Fail(ctx context.Context, jobID, workerID, message string, retryable bool) (*queue.Job, error)
	Cancel(ctx context.Context, jobID, reason string) (*queue.Job, error)
}

var _ JobQueue = (*queue.Engine)(nil)
