package app

import (
	"errors"
	"fmt"
)

// ErrAlreadyRunning indicates Run was called while the application runs.
var ErrAlreadyRunning = errors.New("application already running")

// InitError represents an error during component initialization.
type InitError struct {
	Component string
	Err       error
}

func (e *InitError) Error() string {
	return fmt.Sprintf("failed to initialize %s: %v", e.Component, e.Err)
}

func (e *InitError) Unwrap() error {
	return e.Err
}
