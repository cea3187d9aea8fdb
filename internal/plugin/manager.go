package plugin

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/dshills/hotcalc/internal/command"
)

// Manager keeps the command registry consistent with the plugin directory.
// It implements the hot-swap protocol: create, modify and move events
// upsert a command, delete events remove it.
type Manager struct {
	mu sync.Mutex

	registry  *command.Registry
	validator *Validator

	// Live plugins by name, owned so their Lua states can be closed
	plugins map[string]*Plugin

	// Command names as of the last mutation, refreshed after every upsert
	names []string

	// Event handlers (protected by mu)
	eventHandlers []EventHandler

	config ManagerConfig
	log    *logrus.Logger
}

// ManagerConfig configures the plugin manager.
type ManagerConfig struct {
	// AllowShadowing lets a plugin file named after a built-in command
	// replace it. When false such files are ignored.
	AllowShadowing bool
}

// DefaultManagerConfig returns the default configuration.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		AllowShadowing: true,
	}
}

// EventHandler handles plugin manager events.
// Handlers must be non-blocking and should not call back into the Manager
// to avoid deadlocks. Panics in handlers are recovered.
type EventHandler func(event ManagerEvent)

// ManagerEvent represents a plugin manager event.
type ManagerEvent struct {
	Type    ManagerEventType
	Plugin  string
	Trigger EventKind
	Error   error
}

// ManagerEventType is the type of manager event.
type ManagerEventType int

const (
	// EventPluginLoaded is emitted when a new command is registered.
	EventPluginLoaded ManagerEventType = iota
	// EventPluginReloaded is emitted when a command is replaced.
	EventPluginReloaded
	// EventPluginUnloaded is emitted when a command is removed.
	EventPluginUnloaded
	// EventPluginInvalid is emitted when a plugin fails validation.
	EventPluginInvalid
	// EventPluginIgnored is emitted when an event is skipped by policy.
	EventPluginIgnored
	// EventPluginError is emitted when loading fails fatally.
	EventPluginError
)

// String returns a string representation of the event type.
func (t ManagerEventType) String() string {
	switch t {
	case EventPluginLoaded:
		return "loaded"
	case EventPluginReloaded:
		return "reloaded"
	case EventPluginUnloaded:
		return "unloaded"
	case EventPluginInvalid:
		return "invalid"
	case EventPluginIgnored:
		return "ignored"
	case EventPluginError:
		return "error"
	default:
		return "unknown"
	}
}

// NewManager creates a plugin manager mutating registry.
func NewManager(registry *command.Registry, validator *Validator, config ManagerConfig, log *logrus.Logger) *Manager {
	if log == nil {
		log = logrus.New()
	}

	return &Manager{
		registry:  registry,
		validator: validator,
		plugins:   make(map[string]*Plugin),
		names:     registry.Names(),
		config:    config,
		log:       log,
	}
}

// LoadAll registers every valid plugin found in the plugin directory.
// Invalid plugins are logged and skipped; the returned error is non-nil
// only for loader faults.
func (m *Manager) LoadAll(ctx context.Context) error {
	plugins, err := m.validator.loader.Discover()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrLoaderFault, err)
	}

	var faults []error
	for _, info := range plugins {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := m.HandleEvent(ctx, Event{Kind: EventCreated, Path: info.Path}); err != nil {
			faults = append(faults, err)
		}
	}

	if len(faults) > 0 {
		return fmt.Errorf("failed to load %d plugins: %w", len(faults), errors.Join(faults...))
	}
	return nil
}

// HandleEvent applies one filesystem event to the registry.
//
// Only loader faults are returned; invalid plugins are logged and leave the
// command absent. Events arriving after ctx is cancelled are dropped.
func (m *Manager) HandleEvent(ctx context.Context, event Event) error {
	if ctx.Err() != nil {
		return nil
	}

	if !m.validator.loader.IsPluginFile(event.Path) {
		return nil
	}
	name := NameFromPath(event.Path)

	if command.IsBuiltinName(name) && !m.config.AllowShadowing {
		m.log.WithField("path", event.Path).Warnf("Plugin %s shadows a built-in command, ignoring", name)
		m.emitEvent(ManagerEvent{Type: EventPluginIgnored, Plugin: name, Trigger: event.Kind, Error: ErrShadowingDisabled})
		return nil
	}

	switch event.Kind {
	case EventCreated, EventModified, EventMoved:
		m.log.Infof("%s %s", event.Path, event.Kind)
		return m.upsert(name, event)
	case EventDeleted:
		m.log.Infof("%s deleted", event.Path)
		return m.remove(name, event)
	default:
		return nil
	}
}

// upsert removes any current descriptor, then validates and registers the
// plugin. The removal stands when validation fails.
func (m *Manager) upsert(name string, event Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.upsertLocked(name, event)
}

// upsertLocked is upsert with mu held.
func (m *Manager) upsertLocked(name string, event Event) error {
	replaced := false
	if m.registry.Has(name) {
		m.log.Infof("Command %s already exists, deleting", name)
		m.registry.Unregister(name)
		m.closePlugin(name)
		replaced = true
	}

	m.log.Infof("Validating command %s", name)
	p, err := m.validator.Validate(name)
	if err != nil {
		m.refreshNames()
		if errors.Is(err, ErrInvalidPlugin) {
			m.log.WithError(err).Warnf("%s is not a valid command plugin", event.Path)
			m.emitEventLocked(ManagerEvent{Type: EventPluginInvalid, Plugin: name, Trigger: event.Kind, Error: err})
			return nil
		}
		m.log.WithError(err).Errorf("Error loading command %s", name)
		m.emitEventLocked(ManagerEvent{Type: EventPluginError, Plugin: name, Trigger: event.Kind, Error: err})
		return fmt.Errorf("loading plugin %q: %w", name, err)
	}

	m.log.Debugf("Command %s validated, adding it to calculator", name)
	m.registry.Register(p.Descriptor)
	m.plugins[name] = p
	m.refreshNames()

	m.log.WithField("load_id", p.Descriptor.LoadID).Infof("Command %s added", name)
	m.log.Debugf("New commands: %v", m.names)

	eventType := EventPluginLoaded
	if replaced {
		eventType = EventPluginReloaded
	}
	m.emitEventLocked(ManagerEvent{Type: eventType, Plugin: name, Trigger: event.Kind})
	return nil
}

// remove unregisters a plugin command. Deleting a file that does not back
// the registered command is a no-op. When the backing file goes away, the
// next file with the same stem takes over; with none left, a shadowed
// built-in is restored.
func (m *Manager) remove(name string, event Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, err := m.registry.Lookup(name)
	switch {
	case err == nil && d.IsBuiltin():
		// Built-in still in place, nothing backed by this file.
		return nil
	case err == nil && !samePath(d.Path, event.Path) && fileExists(d.Path):
		m.log.Debugf("Command %s is backed by %s, keeping it", name, d.Path)
		return nil
	case err == nil:
		m.log.Infof("Deleting command %s", name)
		m.registry.Unregister(name)
		m.closePlugin(name)
		m.emitEventLocked(ManagerEvent{Type: EventPluginUnloaded, Plugin: name, Trigger: event.Kind})
		m.log.Debugf("Command %s deleted", name)
	}

	info, err := m.validator.loader.FindPlugin(name)
	switch {
	case err == nil:
		m.log.Infof("Command %s is still provided by %s", name, info.Path)
		return m.upsertLocked(name, Event{Kind: event.Kind, Path: info.Path})
	case !errors.Is(err, ErrPluginNotFound):
		m.refreshNames()
		m.log.WithError(err).Errorf("Error resolving command %s", name)
		m.emitEventLocked(ManagerEvent{Type: EventPluginError, Plugin: name, Trigger: event.Kind, Error: err})
		return fmt.Errorf("%w: resolving %q: %v", ErrLoaderFault, name, err)
	}

	if builtin, ok := command.Builtin(name); ok && !m.registry.Has(name) {
		m.log.Infof("Restoring built-in command %s", name)
		m.registry.Register(builtin)
	}
	m.refreshNames()
	return nil
}

// samePath reports whether a and b name the same file once made absolute.
func samePath(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return filepath.Clean(a) == filepath.Clean(b)
	}
	return absA == absB
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// closePlugin releases the Lua state of a replaced or removed plugin.
// Must be called with mu held.
func (m *Manager) closePlugin(name string) {
	if p, ok := m.plugins[name]; ok {
		delete(m.plugins, name)
		if err := p.Close(); err != nil {
			m.log.WithError(err).Warnf("Failed to close plugin %s", name)
		}
	}
}

// refreshNames re-reads the command names from the registry.
// Must be called with mu held.
func (m *Manager) refreshNames() {
	m.names = m.registry.Names()
}

// Names returns the command names as of the last mutation.
func (m *Manager) Names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	names := make([]string, len(m.names))
	copy(names, m.names)
	return names
}

// Loaded returns the names of commands currently backed by plugins.
func (m *Manager) Loaded() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	names := make([]string, 0, len(m.plugins))
	for name := range m.plugins {
		names = append(names, name)
	}
	return names
}

// Close releases every plugin's Lua state. The registry keeps the
// descriptors, but invoking them afterwards fails.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	for name, p := range m.plugins {
		if err := p.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
		delete(m.plugins, name)
	}
	return errors.Join(errs...)
}

// Subscribe adds an event handler.
// Returns an unsubscribe function to remove the handler.
func (m *Manager) Subscribe(handler EventHandler) func() {
	if handler == nil {
		return func() {}
	}

	m.mu.Lock()
	m.eventHandlers = append(m.eventHandlers, handler)
	index := len(m.eventHandlers) - 1
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		// Set to nil instead of removing to avoid index shifting issues
		if index < len(m.eventHandlers) {
			m.eventHandlers[index] = nil
		}
	}
}

// emitEvent sends an event to all handlers.
func (m *Manager) emitEvent(event ManagerEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.emitEventLocked(event)
}

// emitEventLocked sends an event to all handlers with panics recovered.
// Must be called with mu held.
func (m *Manager) emitEventLocked(event ManagerEvent) {
	for _, handler := range m.eventHandlers {
		if handler == nil {
			continue
		}
		func() {
			defer func() {
				if r := recover(); r != nil {
					m.log.Errorf("plugin event handler panicked: %v", r)
				}
			}()
			handler(event)
		}()
	}
}
