package queue

import "errors"

var (
	// ErrRepositoryNil is returned when a nil storage is provided.
	ErrRepositoryNil = errors.New("queue storage cannot be nil")

	// ErrInvalidArgument is returned for malformed input; it is never retried.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrJobNotFound is returned when a job id does not exist.
	ErrJobNotFound = errors.New("queue job not found")

	// ErrInvalidState is returned when an operation is not allowed from the job's current status.
	ErrInvalidState = errors.New("operation not allowed in current job state")

	// ErrDuplicateJob is returned by storage when a write would leave two queued jobs with one dedupe key.
	ErrDuplicateJob = errors.New("a queued job with this dedupe key already exists")

	// ErrFailedToCreateJob is returned when the job cannot be persisted.
	ErrFailedToCreateJob = errors.New("failed to create job in storage")

	// ErrFailedToUpdateJob is returned when a job mutation cannot be persisted.
	ErrFailedToUpdateJob = errors.New("failed to update job in storage")
)
