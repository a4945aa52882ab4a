package application

import (
	"errors"
	"fmt"
)

// Application errors.
var (
	// ErrNilMachine is returned when no machine is supplied.
	ErrNilMachine = errors.New("machine is required")

	// ErrFrontierLimit is returned when a level grows past the configured cap.
	ErrFrontierLimit = errors.New("frontier limit exceeded")

	// ErrPersistFailed is returned when a finished trial could not be stored.
	// The trial itself is still returned.
	ErrPersistFailed = errors.New("failed to persist trial")
)

func levelError(depth, size, limit int) error {
	return fmt.Errorf("level %d holds %d configurations (limit %d)", depth, size, limit)
}
