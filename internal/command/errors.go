package command

import "errors"

// Command errors.
var (
	// ErrCommandNotFound is returned when no descriptor is registered under a name.
	ErrCommandNotFound = errors.New("command not found")

	// ErrArityMismatch is returned when the argument count differs from the declared arity.
	ErrArityMismatch = errors.New("wrong number of arguments")

	// ErrDomain is returned by a command's own logic (e.g. division by zero).
	ErrDomain = errors.New("domain error")
)
