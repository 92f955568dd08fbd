package scheduling

import "errors"

var (
	ErrInvalidArgument = errors.New("invalid scheduling argument")
	ErrInvalidRange    = errors.New("invalid scheduling range")

	// ErrNotFound is returned for unknown suggestions and for suggestions of
	// another organization.
	ErrNotFound = errors.New("scheduling suggestion not found")

	// ErrNotReady is returned when committing a suggestion that is not READY.
	ErrNotReady = errors.New("scheduling suggestion is not ready")

	// ErrEmptyPlan is returned when committing a READY suggestion without draft events.
	ErrEmptyPlan = errors.New("scheduling suggestion plan has no events")

	// ErrQueueUnavailable is returned when a request requires a queue but none is attached.
	ErrQueueUnavailable = errors.New("job queue is not configured")

	// ErrDispatchRejected is returned when the processing work queue is full or closed.
	ErrDispatchRejected = errors.New("suggestion processing rejected")

	// ErrInvalidState is returned for lifecycle transitions the current status does not allow.
	ErrInvalidState = errors.New("operation not allowed in current suggestion state")

	// ErrConcurrentUpdate is returned by storage when a record changed under an update.
	ErrConcurrentUpdate = errors.New("suggestion was modified concurrently")

	ErrNilDependency   = errors.New("scheduling engine dependency is nil")
	ErrFailedToEnqueue = errors.New("failed to enqueue suggestion job")
	ErrFailedToCommit  = errors.New("failed to commit suggestion")
	ErrFailedToPersist = errors.New("failed to persist suggestion")
)
