package watcher

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const defaultBufferSize = 64

// FSNotifyWatcher watches directory trees with fsnotify.
type FSNotifyWatcher struct {
	fsw    *fsnotify.Watcher
	filter *Filter

	mu     sync.Mutex
	dirs   map[string]struct{}
	closed bool

	events chan Event
	errs   chan error

	done      chan struct{}
	loop      sync.WaitGroup
	closeOnce sync.Once
	closeErr  error
}

// NewFSNotifyWatcher creates a watcher with nothing watched yet.
func NewFSNotifyWatcher(opts ...Option) (*FSNotifyWatcher, error) {
	o := options{bufferSize: defaultBufferSize}
	for _, opt := range opts {
		opt(&o)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &FSNotifyWatcher{
		fsw:    fsw,
		filter: NewFilter(o.patterns...),
		dirs:   make(map[string]struct{}),
		events: make(chan Event, o.bufferSize),
		errs:   make(chan error, o.bufferSize),
		done:   make(chan struct{}),
	}
	w.loop.Add(1)
	go w.run()
	return w, nil
}

// WatchRecursive watches dir and every non-hidden directory below it.
// Failing to watch dir itself is an error; failures below it are reported
// on Errors and skipped.
func (w *FSNotifyWatcher) WatchRecursive(dir string) error {
	select {
	case <-w.done:
		return ErrWatcherClosed
	default:
	}

	root, err := filepath.Abs(dir)
	if err != nil {
		return err
	}
	info, err := os.Stat(root)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return &fs.PathError{Op: "watch", Path: root, Err: ErrNotDirectory}
	}

	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			if err != nil && path == root {
				return err
			}
			return nil
		}
		if path != root && w.filter.SkipDir(path) {
			return filepath.SkipDir
		}
		if err := w.add(path); err != nil {
			if path == root {
				return err
			}
			w.report(err)
		}
		return nil
	})
}

func (w *FSNotifyWatcher) add(dir string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.dirs[dir]; ok {
		return nil
	}
	if err := w.fsw.Add(dir); err != nil {
		return err
	}
	w.dirs[dir] = struct{}{}
	return nil
}

func (w *FSNotifyWatcher) forget(dir string) {
	w.mu.Lock()
	delete(w.dirs, dir)
	w.mu.Unlock()
}

func (w *FSNotifyWatcher) isDir(path string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.dirs[path]
	return ok
}

// Events returns the event channel.
func (w *FSNotifyWatcher) Events() <-chan Event {
	return w.events
}

// Errors returns the error channel.
func (w *FSNotifyWatcher) Errors() <-chan error {
	return w.errs
}

// WatchedPaths returns the watched directories, sorted.
func (w *FSNotifyWatcher) WatchedPaths() []string {
	w.mu.Lock()
	paths := make([]string, 0, len(w.dirs))
	for dir := range w.dirs {
		paths = append(paths, dir)
	}
	w.mu.Unlock()

	sort.Strings(paths)
	return paths
}

// Close stops the watcher and closes its channels.
func (w *FSNotifyWatcher) Close() error {
	w.closeOnce.Do(func() {
		close(w.done)
		w.closeErr = w.fsw.Close()
		w.loop.Wait()

		w.mu.Lock()
		w.closed = true
		close(w.events)
		close(w.errs)
		w.mu.Unlock()
	})
	return w.closeErr
}

func (w *FSNotifyWatcher) run() {
	defer w.loop.Done()

	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.report(err)
		}
	}
}

func (w *FSNotifyWatcher) handle(ev fsnotify.Event) {
	op := convertOp(ev.Op)
	if op == 0 {
		return
	}

	if op.Has(OpCreate) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			w.adopt(ev.Name)
			return
		}
	}
	if (op.Has(OpRemove) || op.Has(OpRename)) && w.isDir(ev.Name) {
		// fsnotify drops the watch itself.
		w.forget(ev.Name)
		return
	}

	if w.filter.Allow(ev.Name) {
		w.deliver(Event{Path: ev.Name, Op: op, Time: time.Now()})
	}
}

// adopt watches a directory that appeared under a watched tree and reports
// the files already inside it, since they were written before the watch
// existed (e.g. a directory moved in, or mkdir -p followed by a copy).
func (w *FSNotifyWatcher) adopt(dir string) {
	if w.filter.SkipDir(dir) {
		return
	}
	if err := w.WatchRecursive(dir); err != nil {
		w.report(err)
		return
	}
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		switch {
		case err != nil:
			return nil
		case d.IsDir():
			if path != dir && w.filter.SkipDir(path) {
				return filepath.SkipDir
			}
			return nil
		case w.filter.Allow(path):
			w.deliver(Event{Path: path, Op: OpCreate, Time: time.Now()})
		}
		return nil
	})
}

// deliver blocks until the event is taken or the watcher closes, so
// changes are never dropped.
func (w *FSNotifyWatcher) deliver(ev Event) {
	select {
	case w.events <- ev:
	case <-w.done:
	}
}

// report drops err when nobody is reading errors.
func (w *FSNotifyWatcher) report(err error) {
	if errors.Is(err, fsnotify.ErrClosed) {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	select {
	case w.errs <- err:
	default:
	}
}

func convertOp(in fsnotify.Op) Op {
	var op Op
	for _, m := range []struct {
		from fsnotify.Op
		to   Op
	}{
		{fsnotify.Create, OpCreate},
		{fsnotify.Write, OpWrite},
		{fsnotify.Remove, OpRemove},
		{fsnotify.Rename, OpRename},
		{fsnotify.Chmod, OpChmod},
	} {
		if in.Has(m.from) {
			op |= m.to
		}
	}
	return op
}
