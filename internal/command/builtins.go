package command

import "fmt"

// Builtins returns the descriptors seeded into every registry.
func Builtins() []*Descriptor {
	return []*Descriptor{
		{
			Name:        "add",
			Arity:       2,
			Description: "Add two numbers",
			Invoke:      func(args []float64) (float64, error) { return args[0] + args[1], nil },
		},
		{
			Name:        "subtract",
			Arity:       2,
			Description: "Subtract two numbers",
			Invoke:      func(args []float64) (float64, error) { return args[0] - args[1], nil },
		},
		{
			Name:        "multiply",
			Arity:       2,
			Description: "Multiply two numbers",
			Invoke:      func(args []float64) (float64, error) { return args[0] * args[1], nil },
		},
		{
			Name:        "divide",
			Arity:       2,
			Description: "Divide two numbers",
			Invoke:      divide,
		},
	}
}

// IsBuiltinName reports whether name belongs to a built-in command.
func IsBuiltinName(name string) bool {
	_, ok := Builtin(name)
	return ok
}

// Builtin returns a fresh copy of the named built-in descriptor.
func Builtin(name string) (*Descriptor, bool) {
	for _, d := range Builtins() {
		if d.Name == name {
			return d, true
		}
	}
	return nil, false
}

func divide(args []float64) (float64, error) {
	if args[1] == 0 {
		return 0, fmt.Errorf("division by zero not allowed: %w", ErrDomain)
	}
	return args[0] / args[1], nil
}
