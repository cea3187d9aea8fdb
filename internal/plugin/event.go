package plugin

import (
	"context"
	"errors"
	"io/fs"
	"os"

	"github.com/dshills/hotcalc/internal/watcher"
)

// EventKind is the kind of change observed on a plugin file.
type EventKind int

const (
	// EventCreated means a new plugin file appeared.
	EventCreated EventKind = iota
	// EventModified means a plugin file's contents changed.
	EventModified
	// EventDeleted means a plugin file was removed.
	EventDeleted
	// EventMoved means a plugin file was renamed or moved.
	EventMoved
)

// String returns a string representation of the kind.
func (k EventKind) String() string {
	switch k {
	case EventCreated:
		return "created"
	case EventModified:
		return "modified"
	case EventDeleted:
		return "deleted"
	case EventMoved:
		return "moved"
	default:
		return "unknown"
	}
}

// Event is a change to a plugin file.
type Event struct {
	Kind EventKind
	Path string
}

// EventFromWatch converts a watcher event into a plugin event.
// Returns false for events that carry no plugin change, such as
// permission-only updates.
//
// Debounced events may carry several ops at once. When the file still
// exists after a remove or rename, it was replaced in place and is treated
// as modified.
func EventFromWatch(ev watcher.Event) (Event, bool) {
	out := Event{Path: ev.Path}

	switch {
	case ev.Op.Has(watcher.OpRemove):
		if exists(ev.Path) {
			out.Kind = EventModified
		} else {
			out.Kind = EventDeleted
		}
	case ev.Op.Has(watcher.OpRename):
		if exists(ev.Path) {
			out.Kind = EventModified
		} else {
			out.Kind = EventMoved
		}
	case ev.Op.Has(watcher.OpCreate):
		out.Kind = EventCreated
	case ev.Op.Has(watcher.OpWrite):
		out.Kind = EventModified
	default:
		return Event{}, false
	}

	return out, true
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return !errors.Is(err, fs.ErrNotExist)
}

// WatchHandler adapts m to a watcher dispatcher. Events are applied with
// ctx, so they are dropped once ctx is cancelled.
func (m *Manager) WatchHandler(ctx context.Context) watcher.Handler {
	return func(ev watcher.Event) error {
		event, ok := EventFromWatch(ev)
		if !ok {
			return nil
		}
		return m.HandleEvent(ctx, event)
	}
}
