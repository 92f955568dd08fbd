package async

import "errors"

var (
	ErrTimeout          = errors.New("async: operation timed out waiting for future completion")
	ErrQueueFull        = errors.New("async: dispatcher queue is full")
	ErrDispatcherClosed = errors.New("async: dispatcher is shut down")
	ErrEmptyKey         = errors.New("async: task key is required")
)
