package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrForbidden          = errors.New("caller does not own this resource")
	ErrAlreadyExists      = errors.New("entity already exists")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrUnavailable        = errors.New("required collaborator unavailable")
	ErrEmptyConversation  = errors.New("conversation has no messages")
	ErrJobNotCancelable   = errors.New("job is not in a cancelable state")
	ErrJobCancelled       = errors.New("job was cancelled")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
	ErrInvalidExecContext = errors.New("invalid executor context passed to repository")
)
