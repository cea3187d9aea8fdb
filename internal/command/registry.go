package command

import (
	"fmt"
	"sort"
	"sync"
)

// Registry maps command names to descriptors.
//
// The registry is a dumb store: it never validates descriptors. It is safe
// for concurrent use; every single-name mutation is atomic with respect to
// readers, so a reader observes either the old descriptor, the new one, or
// (between an Unregister and a later Register) none.
type Registry struct {
	mu       sync.RWMutex
	commands map[string]*Descriptor

	// onChange callbacks are called after commands are added/removed.
	onChange []func()
}

// NewRegistry creates a registry seeded with the given descriptors.
func NewRegistry(seed ...*Descriptor) *Registry {
	r := &Registry{
		commands: make(map[string]*Descriptor, len(seed)),
	}
	for _, d := range seed {
		if d != nil {
			r.commands[d.Name] = d
		}
	}
	return r
}

// NewDefaultRegistry creates a registry seeded with the built-in commands.
func NewDefaultRegistry() *Registry {
	return NewRegistry(Builtins()...)
}

// Register inserts or replaces the descriptor stored under d.Name.
func (r *Registry) Register(d *Descriptor) {
	if d == nil {
		return
	}

	r.mu.Lock()
	r.commands[d.Name] = d
	r.mu.Unlock()

	r.notifyChange()
}

// Unregister removes a command. Removing an absent name is a no-op.
func (r *Registry) Unregister(name string) bool {
	r.mu.Lock()
	_, exists := r.commands[name]
	if exists {
		delete(r.commands, name)
	}
	r.mu.Unlock()

	if exists {
		r.notifyChange()
	}
	return exists
}

// Lookup returns the descriptor registered under name.
func (r *Registry) Lookup(name string) (*Descriptor, error) {
	r.mu.RLock()
	d, ok := r.commands[name]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%q: %w", name, ErrCommandNotFound)
	}
	return d, nil
}

// Has checks if a command exists.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.commands[name]
	return exists
}

// List returns a snapshot of all descriptors sorted by name.
func (r *Registry) List() []*Descriptor {
	r.mu.RLock()
	result := make([]*Descriptor, 0, len(r.commands))
	for _, d := range r.commands {
		result = append(result, d)
	}
	r.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		return result[i].Name < result[j].Name
	})
	return result
}

// Names returns the sorted names of all registered commands.
func (r *Registry) Names() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.commands))
	for name := range r.commands {
		names = append(names, name)
	}
	r.mu.RUnlock()

	sort.Strings(names)
	return names
}

// Len returns the number of registered commands.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.commands)
}

// Invoke looks up a command and calls it with args.
func (r *Registry) Invoke(name string, args []float64) (float64, error) {
	d, err := r.Lookup(name)
	if err != nil {
		return 0, err
	}
	return d.Call(args)
}

// OnChange registers a callback for command list changes.
// Callbacks run without the registry lock held and may read the registry,
// but must not register or unregister commands.
func (r *Registry) OnChange(fn func()) {
	if fn == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onChange = append(r.onChange, fn)
}

// notifyChange calls all registered change callbacks.
func (r *Registry) notifyChange() {
	r.mu.RLock()
	callbacks := make([]func(), len(r.onChange))
	copy(callbacks, r.onChange)
	r.mu.RUnlock()

	for _, fn := range callbacks {
		fn()
	}
}
