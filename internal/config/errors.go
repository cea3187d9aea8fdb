package config

import (
	"errors"
	"fmt"
)

var (
	// ErrValidationFailed matches every ValidationError.
	ErrValidationFailed = errors.New("validation failed")

	// ErrUnsupportedFormat means the config file extension has no decoder.
	ErrUnsupportedFormat = errors.New("unsupported config format")
)

// ParseError reports a config file that could not be decoded. Line and
// Column are zero when the decoder gives no position.
type ParseError struct {
	Path    string
	Line    int
	Column  int
	Message string
	Err     error
}

func (e *ParseError) Error() string {
	pos := ""
	switch {
	case e.Line > 0 && e.Column > 0:
		pos = fmt.Sprintf(":%d:%d", e.Line, e.Column)
	case e.Line > 0:
		pos = fmt.Sprintf(":%d", e.Line)
	}
	return fmt.Sprintf("config %s%s: %s", e.Path, pos, e.Message)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ValidationError names one setting with an unusable value, by its dotted
// key (e.g. "plugins.dir").
type ValidationError struct {
	Key     string
	Message string
	Value   any
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s (got %v)", e.Key, e.Message, e.Value)
}

// Is makes every ValidationError match ErrValidationFailed.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidationFailed
}
