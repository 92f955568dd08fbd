package schedkit

import "errors"

var (
	ErrInvalidConfig   = errors.New("invalid schedkit configuration")
	ErrFailedToOpen    = errors.New("failed to open schedkit service")
	ErrUnhealthy       = errors.New("schedkit dependency is unhealthy")
	ErrAlreadyShutdown = errors.New("schedkit service already closed")
)
