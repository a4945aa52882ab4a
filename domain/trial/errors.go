package trial

import "errors"

// Domain errors for trial store operations.
var (
	// ErrTrialNotFound is returned when a trial does not exist.
	ErrTrialNotFound = errors.New("trial not found")

	// ErrTrialExists is returned when attempting to create a trial that already exists.
	ErrTrialExists = errors.New("trial already exists")

	// ErrInvalidTrialID is returned when a trial ID is empty.
	ErrInvalidTrialID = errors.New("invalid trial ID")

	// ErrConnectionFailed is returned when connection to the store backend fails.
	ErrConnectionFailed = errors.New("store connection failed")

	// ErrOperationTimeout is returned when a store operation times out.
	ErrOperationTimeout = errors.New("store operation timeout")
)
