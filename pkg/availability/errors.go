package availability

import "errors"

var (
	// ErrInvalidArgument is returned for missing or malformed query fields.
	ErrInvalidArgument = errors.New("invalid availability argument")

	// ErrInvalidRange is returned when an interval does not end after it starts.
	ErrInvalidRange = errors.New("invalid time range")

	// ErrInvalidDate is returned for missing or unparseable timestamps.
	ErrInvalidDate = errors.New("invalid date")

	// ErrCacheRecordNotFound is returned by CacheStore.GetCacheRecord.
	ErrCacheRecordNotFound = errors.New("busy cache record not found")

	// ErrNilDependency is returned by NewEngine for a nil event source or cache store.
	ErrNilDependency = errors.New("availability engine dependency is nil")

	// ErrFailedToLoadBusyTime wraps event source and cache store failures.
	ErrFailedToLoadBusyTime = errors.New("failed to load busy time")
)
