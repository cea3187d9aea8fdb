package repl

import "errors"

// ErrMalformedInput is returned when a line is not "<command> <json-array>"
// or the array holds anything but numbers.
var ErrMalformedInput = errors.New("malformed input")
