package queue

import "context"

// Storage persists jobs. Implementations must make UpdateJob a linearizable
// read-modify-write per job id and must never leave two QUEUED jobs of one
// organization sharing a dedupe key. UpdateJob reports such a collision with
// ErrDuplicateJob.
type Storage interface {
	// CreateJob stores job. When job has a dedupe key and a QUEUED job of the
	// same organization holds it, that job is returned unchanged with
	// created == false.
	CreateJob(ctx context.Context, job *Job) (stored *Job, created bool, err error)

	// GetJob returns ErrJobNotFound for unknown ids.
	GetJob(ctx context.Context, id string) (*Job, error)

	// UpdateJob loads the job, applies fn to a copy and replaces the record.
	// An error from fn aborts the update and is returned as is.
	UpdateJob(ctx context.Context, id string, fn func(*Job) error) (*Job, error)

	// ListJobs returns jobs newest first, at most opts.Limit of them.
	ListJobs(ctx context.Context, opts ListOptions) ([]*Job, error)

	// CountQueuedByType returns the number of QUEUED jobs per type. Types with no
	// queued jobs may be omitted.
	CountQueuedByType(ctx context.Context) (map[string]int, error)
}
