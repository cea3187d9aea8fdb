package repl

import (
	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
	"github.com/tidwall/sjson"

	"github.com/dshills/hotcalc/internal/command"
)

// listOptions indents with two spaces and never folds arrays onto one line.
var listOptions = &pretty.Options{Indent: "  "}

// ListJSON renders commands as an indented JSON array of
// {"name", "description", "number_of_args"} objects, in the given order.
func ListJSON(commands []*command.Descriptor) ([]byte, error) {
	doc := []byte(`{"commands":[]}`)
	for _, d := range commands {
		entry := []byte(`{}`)
		var err error
		if entry, err = sjson.SetBytes(entry, "name", d.Name); err != nil {
			return nil, err
		}
		if entry, err = sjson.SetBytes(entry, "description", d.Description); err != nil {
			return nil, err
		}
		if entry, err = sjson.SetBytes(entry, "number_of_args", d.Arity); err != nil {
			return nil, err
		}
		if doc, err = sjson.SetRawBytes(doc, "commands.-1", entry); err != nil {
			return nil, err
		}
	}

	list := gjson.GetBytes(doc, "commands").Raw
	return pretty.PrettyOptions([]byte(list), listOptions), nil
}
