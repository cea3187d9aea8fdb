package watcher

import (
	"sort"
	"sync"
	"time"
)

// DefaultDebounceDelay is used when NewDebouncedWatcher gets a
// non-positive delay.
const DefaultDebounceDelay = 100 * time.Millisecond

// DebouncedWatcher wraps a Watcher so that changes to one path arriving
// less than delay apart come out as a single event carrying the union of
// their operations. Events for different paths are independent.
type DebouncedWatcher struct {
	inner Watcher
	delay time.Duration

	events chan Event
	errs   chan error

	done      chan struct{}
	loop      sync.WaitGroup
	closeOnce sync.Once
	closeErr  error
}

// NewDebouncedWatcher starts debouncing inner. Closing the result closes
// inner.
func NewDebouncedWatcher(inner Watcher, delay time.Duration) *DebouncedWatcher {
	if delay <= 0 {
		delay = DefaultDebounceDelay
	}
	d := &DebouncedWatcher{
		inner:  inner,
		delay:  delay,
		events: make(chan Event, defaultBufferSize),
		errs:   make(chan error, defaultBufferSize),
		done:   make(chan struct{}),
	}
	d.loop.Add(1)
	go d.run()
	return d
}

// WatchRecursive delegates to the wrapped watcher.
func (d *DebouncedWatcher) WatchRecursive(dir string) error {
	return d.inner.WatchRecursive(dir)
}

// WatchedPaths delegates to the wrapped watcher.
func (d *DebouncedWatcher) WatchedPaths() []string {
	return d.inner.WatchedPaths()
}

// Events returns the coalesced events.
func (d *DebouncedWatcher) Events() <-chan Event {
	return d.events
}

// Errors forwards the wrapped watcher's errors.
func (d *DebouncedWatcher) Errors() <-chan error {
	return d.errs
}

// Close stops debouncing, drops pending events and closes the wrapped
// watcher.
func (d *DebouncedWatcher) Close() error {
	d.closeOnce.Do(func() {
		close(d.done)
		d.loop.Wait()
		d.closeErr = d.inner.Close()
	})
	return d.closeErr
}

type pending struct {
	ev  Event
	due time.Time
}

func (d *DebouncedWatcher) run() {
	defer d.loop.Done()
	defer close(d.errs)
	defer close(d.events)

	waiting := make(map[string]*pending)
	timer := time.NewTimer(d.delay)
	timer.Stop()
	var tick <-chan time.Time

	// rearm points the timer at the earliest due event.
	rearm := func() {
		timer.Stop()
		tick = nil
		var next time.Time
		for _, p := range waiting {
			if next.IsZero() || p.due.Before(next) {
				next = p.due
			}
		}
		if !next.IsZero() {
			timer.Reset(time.Until(next))
			tick = timer.C
		}
	}

	// emit sends events due by now, oldest first. It reports false once the
	// watcher is closing.
	emit := func(now time.Time, all bool) bool {
		var ready []*pending
		for path, p := range waiting {
			if all || !p.due.After(now) {
				ready = append(ready, p)
				delete(waiting, path)
			}
		}
		sort.Slice(ready, func(i, j int) bool {
			return ready[i].due.Before(ready[j].due)
		})
		for _, p := range ready {
			select {
			case d.events <- p.ev:
			case <-d.done:
				return false
			}
		}
		return true
	}

	innerEvents, innerErrs := d.inner.Events(), d.inner.Errors()
	for {
		select {
		case <-d.done:
			return

		case ev, ok := <-innerEvents:
			if !ok {
				emit(time.Now(), true)
				return
			}
			if p, exists := waiting[ev.Path]; exists {
				p.ev.Op |= ev.Op
				p.ev.Time = ev.Time
				p.due = time.Now().Add(d.delay)
			} else {
				waiting[ev.Path] = &pending{ev: ev, due: time.Now().Add(d.delay)}
			}
			rearm()

		case err, ok := <-innerErrs:
			if !ok {
				innerErrs = nil
				continue
			}
			select {
			case d.errs <- err:
			default:
			}

		case <-tick:
			tick = nil
			if !emit(time.Now(), false) {
				return
			}
			rearm()
		}
	}
}
