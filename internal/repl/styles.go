package repl

import (
	"io"

	"github.com/charmbracelet/lipgloss"
)

// Banner greets the user when the loop starts.
const Banner = `Welcome to the calculator! Type "list" to see the available commands.`

// Styles renders REPL output. Colors are dropped automatically when the
// writer is not a terminal.
type Styles struct {
	Banner lipgloss.Style
	Error  lipgloss.Style
}

// NewStyles creates styles bound to out.
func NewStyles(out io.Writer) Styles {
	r := lipgloss.NewRenderer(out)
	return Styles{
		Banner: r.NewStyle().Bold(true).Foreground(lipgloss.Color("86")),
		Error:  r.NewStyle().Foreground(lipgloss.Color("196")),
	}
}
