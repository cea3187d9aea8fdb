package lua

import "errors"

// Errors for Lua state operations.
var (
	// ErrStateClosed is returned when operating on a closed state.
	ErrStateClosed = errors.New("lua state is closed")

	// ErrExecutionTimeout is returned when execution times out.
	ErrExecutionTimeout = errors.New("lua execution timeout")

	// ErrSyntax is returned when source fails to parse or compile.
	ErrSyntax = errors.New("lua syntax error")

	// ErrScript is returned when plugin code raises an error.
	ErrScript = errors.New("lua script error")

	// ErrNotNumber is returned when a call yields a non-numeric result.
	ErrNotNumber = errors.New("lua result is not a number")
)
