// Package watcher reports changes to files under a directory tree.
//
// FSNotifyWatcher follows a whole tree, picking up directories as they are
// created, and delivers one Event per file change that passes its Filter.
// DebouncedWatcher coalesces bursts of changes to the same file, and
// Dispatcher feeds events to handlers until a handler fails.
package watcher

import (
	"errors"
	"strings"
	"time"
)

// Errors returned by watchers.
var (
	ErrWatcherClosed = errors.New("watcher is closed")
	ErrNotDirectory  = errors.New("not a directory")
)

// Op is a set of file system operations.
type Op uint8

const (
	OpCreate Op = 1 << iota
	OpWrite
	OpRemove
	OpRename
	OpChmod
)

var opNames = []struct {
	op   Op
	name string
}{
	{OpCreate, "CREATE"},
	{OpWrite, "WRITE"},
	{OpRemove, "REMOVE"},
	{OpRename, "RENAME"},
	{OpChmod, "CHMOD"},
}

// String lists the operations in the set, e.g. "CREATE|WRITE".
func (op Op) String() string {
	var names []string
	for _, n := range opNames {
		if op.Has(n.op) {
			names = append(names, n.name)
		}
	}
	if len(names) == 0 {
		return "NONE"
	}
	return strings.Join(names, "|")
}

// Has reports whether every operation in o is in op.
func (op Op) Has(o Op) bool {
	return o != 0 && op&o == o
}

// Event is a change to one file.
type Event struct {
	// Path is the absolute path of the file.
	Path string

	// Op holds the operations seen. A debounced event may hold several.
	Op Op

	// Time is when the (last) change was seen.
	Time time.Time
}

// Watcher delivers file events for the trees it watches.
type Watcher interface {
	// WatchRecursive watches dir and every directory below it.
	WatchRecursive(dir string) error

	// Events is closed when the watcher is closed.
	Events() <-chan Event

	// Errors is closed when the watcher is closed.
	Errors() <-chan error

	// WatchedPaths returns the watched directories, sorted.
	WatchedPaths() []string

	// Close stops the watcher. It is safe to call more than once.
	Close() error
}

type options struct {
	patterns   []string
	bufferSize int
}

// Option configures an FSNotifyWatcher.
type Option func(*options)

// WithPatterns restricts events to files whose base name matches one of
// the glob patterns.
func WithPatterns(patterns ...string) Option {
	return func(o *options) {
		o.patterns = patterns
	}
}

// WithBufferSize sets the capacity of the event and error channels.
func WithBufferSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.bufferSize = n
		}
	}
}
