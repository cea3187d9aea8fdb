package watcher

import "context"

// Handler handles one event. A non-nil error stops Dispatcher.Run.
type Handler func(Event) error

// ErrorHandler handles a watcher error.
type ErrorHandler func(error)

// Dispatcher feeds watcher output to handlers, one event at a time, in
// arrival order.
type Dispatcher struct {
	onEvent []Handler
	onError []ErrorHandler
}

// NewDispatcher creates a dispatcher with no handlers.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{}
}

// OnEvent adds an event handler. Handlers run in the order added.
func (d *Dispatcher) OnEvent(h Handler) {
	d.onEvent = append(d.onEvent, h)
}

// OnError adds a handler for watcher errors.
func (d *Dispatcher) OnError(h ErrorHandler) {
	d.onError = append(d.onError, h)
}

// Dispatch runs the event handlers, stopping at the first error.
func (d *Dispatcher) Dispatch(ev Event) error {
	for _, h := range d.onEvent {
		if err := h(ev); err != nil {
			return err
		}
	}
	return nil
}

// Run dispatches from w until ctx is done, w is closed or a handler
// fails. Only a handler error is returned; watcher errors go to the
// error handlers.
func (d *Dispatcher) Run(ctx context.Context, w Watcher) error {
	events, errs := w.Events(), w.Errors()
	for events != nil {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if err := d.Dispatch(ev); err != nil {
				return err
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			for _, h := range d.onError {
				h(err)
			}
		}
	}
	return nil
}
