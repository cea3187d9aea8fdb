// Package command holds the calculator's command descriptors and the
// registry that maps command names to them.
package command

import "fmt"

// Source identifies where a descriptor came from.
type Source uint8

const (
	// SourceBuiltin is a descriptor compiled into the binary.
	SourceBuiltin Source = iota

	// SourcePlugin is a descriptor materialized from a plugin file.
	SourcePlugin
)

// String returns a string representation of the source.
func (s Source) String() string {
	switch s {
	case SourceBuiltin:
		return "builtin"
	case SourcePlugin:
		return "plugin"
	default:
		return "unknown"
	}
}

// Func is the invocable part of a descriptor. It receives exactly Arity
// arguments.
type Func func(args []float64) (float64, error)

// Descriptor describes one invocable calculator command.
// Descriptors are immutable once registered; replacing a command means
// registering a new descriptor under the same name.
type Descriptor struct {
	// Name is the unique command identifier (the plugin file stem).
	Name string

	// Arity is the number of numeric arguments the command requires.
	Arity int

	// Invoke runs the command.
	Invoke Func

	// Description is shown by the list command.
	Description string

	// Source tells built-ins and plugins apart.
	Source Source

	// Path is the plugin file the descriptor was loaded from.
	Path string

	// LoadID identifies the load generation of a plugin descriptor.
	LoadID string
}

// Call checks the argument count and invokes the command.
func (d *Descriptor) Call(args []float64) (float64, error) {
	if len(args) != d.Arity {
		return 0, fmt.Errorf("%s requires %d arguments, got %d: %w", d.Name, d.Arity, len(args), ErrArityMismatch)
	}
	if d.Invoke == nil {
		return 0, fmt.Errorf("%s has no implementation: %w", d.Name, ErrCommandNotFound)
	}
	return d.Invoke(args)
}

// IsBuiltin reports whether the descriptor is compiled in.
func (d *Descriptor) IsBuiltin() bool {
	return d.Source == SourceBuiltin
}
