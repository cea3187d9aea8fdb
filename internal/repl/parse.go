package repl

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Input is a parsed user command, checked against the registry before it
// runs.
type Input struct {
	Name  string
	Args  []float64
	Arity int
}

// Split separates a line into the command name and its raw argument
// literal. The line must hold exactly two tokens separated by a single
// space, so "add [1, 2]" is rejected; write "add [1,2]".
func Split(line string) (name, literal string, err error) {
	parts := strings.Split(strings.TrimSpace(line), " ")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("%w: expected <command> <arguments>, got %q", ErrMalformedInput, line)
	}
	return parts[0], parts[1], nil
}

// ParseArgs parses a JSON array of numbers such as [1,2.5,-3].
func ParseArgs(literal string) ([]float64, error) {
	if !gjson.Valid(literal) {
		return nil, fmt.Errorf("%w: %q is not a valid literal", ErrMalformedInput, literal)
	}

	value := gjson.Parse(literal)
	if !value.IsArray() {
		return nil, fmt.Errorf("%w: arguments must be a list, got %q", ErrMalformedInput, literal)
	}

	elems := value.Array()
	args := make([]float64, 0, len(elems))
	for i, elem := range elems {
		if elem.Type != gjson.Number {
			return nil, fmt.Errorf("%w: argument %d is not a number: %s", ErrMalformedInput, i+1, elem.Raw)
		}
		args = append(args, elem.Float())
	}
	return args, nil
}

// Parse parses a full command line.
func Parse(line string) (Input, error) {
	name, literal, err := Split(line)
	if err != nil {
		return Input{}, err
	}
	args, err := ParseArgs(literal)
	if err != nil {
		return Input{}, err
	}
	return Input{Name: name, Args: args}, nil
}

// FormatArgs renders finite args as the literal ParseArgs accepts.
func FormatArgs(args []float64) string {
	doc := `{"args":[]}`
	for _, arg := range args {
		var err error
		if doc, err = sjson.Set(doc, "args.-1", arg); err != nil {
			return fmt.Sprint(args)
		}
	}
	return gjson.Get(doc, "args").Raw
}
