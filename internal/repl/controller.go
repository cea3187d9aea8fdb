// Package repl implements the interactive calculator loop.
package repl

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dshills/hotcalc/internal/command"
)

// Words the loop handles itself.
const (
	CmdList = "list"
	CmdHelp = "help"
	CmdExit = "exit"
	CmdQuit = "quit"
)

const helpText = `Usage:
  list                      show the available commands as JSON
  <command> <json-array>    run a command, e.g. add [1,2]
  help                      show this help
  exit, quit                leave the calculator`

// errQuit ends the loop without error.
var errQuit = errors.New("quit")

// Observer is notified of every command invocation.
type Observer interface {
	ObserveInvocation(name string, elapsed time.Duration, err error)
}

// Controller reads commands, runs them against the registry and prints
// results.
type Controller struct {
	registry *command.Registry
	log      *logrus.Logger
	observer Observer
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger.
func WithLogger(log *logrus.Logger) Option {
	return func(c *Controller) {
		if log != nil {
			c.log = log
		}
	}
}

// WithObserver sets the invocation observer.
func WithObserver(o Observer) Option {
	return func(c *Controller) {
		c.observer = o
	}
}

// NewController creates a controller reading from registry.
func NewController(registry *command.Registry, opts ...Option) *Controller {
	c := &Controller{
		registry: registry,
		log:      logrus.New(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run prints the banner and handles lines from in until EOF, an exit
// command or ctx cancellation. Command errors are printed and the loop
// continues; only read and write failures are returned.
func (c *Controller) Run(ctx context.Context, in io.Reader, out io.Writer) error {
	styles := NewStyles(out)
	if _, err := fmt.Fprintln(out, styles.Banner.Render(Banner)); err != nil {
		return err
	}

	lines := make(chan string)
	readErr := make(chan error, 1)
	done := make(chan struct{})
	defer close(done)
	go func() {
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-done:
				return
			}
		}
		readErr <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-readErr:
			return err
		case line := <-lines:
			c.log.Debugf("User input: %s", line)

			output, err := c.Handle(line)
			if errors.Is(err, errQuit) {
				c.log.Info("Exiting...")
				return nil
			}
			if err != nil {
				c.log.WithError(err).Error("Could not run command")
				output = styles.Error.Render("Error: " + err.Error())
			}
			if output == "" {
				continue
			}
			if _, err := fmt.Fprintln(out, output); err != nil {
				return err
			}
		}
	}
}

// Handle runs a single input line and returns what to print.
func (c *Controller) Handle(line string) (string, error) {
	line = strings.TrimSpace(line)

	switch line {
	case "":
		return "", nil
	case CmdList:
		list, err := ListJSON(c.registry.List())
		if err != nil {
			return "", err
		}
		return strings.TrimRight(string(list), "\n"), nil
	case CmdHelp:
		return helpText, nil
	case CmdExit, CmdQuit:
		return "", errQuit
	}

	start := time.Now()
	name, result, err := c.run(line)
	if name != "" && c.observer != nil {
		c.observer.ObserveInvocation(name, time.Since(start), err)
	}
	if err != nil {
		return "", err
	}
	return FormatResult(result), nil
}

// run validates line against the registry and invokes the command. The
// command is looked up before its arguments are parsed so an unknown
// command is reported as such whatever follows it.
func (c *Controller) run(line string) (string, float64, error) {
	name, literal, err := Split(line)
	if err != nil {
		return "", 0, err
	}

	d, err := c.registry.Lookup(name)
	if err != nil {
		return name, 0, err
	}

	args, err := ParseArgs(literal)
	if err != nil {
		return name, 0, err
	}

	input := Input{Name: name, Args: args, Arity: d.Arity}
	c.log.WithField("command", input.Name).Debugf("Running %s %s", input.Name, FormatArgs(input.Args))

	result, err := d.Call(input.Args)
	return name, result, err
}

// FormatResult prints a result in the shortest exact decimal form.
func FormatResult(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
