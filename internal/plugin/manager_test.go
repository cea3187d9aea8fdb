package plugin

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/hotcalc/internal/command"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

type managerFixture struct {
	dir      string
	registry *command.Registry
	manager  *Manager

	mu     sync.Mutex
	events []ManagerEvent
}

func newManagerFixture(t *testing.T, config ManagerConfig) *managerFixture {
	t.Helper()
	return newManagerFixtureIn(t, t.TempDir(), config)
}

func newManagerFixtureIn(t *testing.T, dir string, config ManagerConfig) *managerFixture {
	t.Helper()
	log := quietLogger()
	registry := command.NewDefaultRegistry()
	validator := NewValidator(NewLoader(dir), WithValidatorLogger(log))

	f := &managerFixture{
		dir:      dir,
		registry: registry,
		manager:  NewManager(registry, validator, config, log),
	}
	f.manager.Subscribe(func(ev ManagerEvent) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.events = append(f.events, ev)
	})
	t.Cleanup(func() { _ = f.manager.Close() })
	return f
}

func (f *managerFixture) write(t *testing.T, rel, source string) string {
	t.Helper()
	return writePlugin(t, f.dir, rel, source)
}

func (f *managerFixture) handle(t *testing.T, kind EventKind, path string) {
	t.Helper()
	require.NoError(t, f.manager.HandleEvent(context.Background(), Event{Kind: kind, Path: path}))
}

func (f *managerFixture) eventTypes() []ManagerEventType {
	f.mu.Lock()
	defer f.mu.Unlock()
	types := make([]ManagerEventType, len(f.events))
	for i, ev := range f.events {
		types[i] = ev.Type
	}
	return types
}

func TestManagerCreateRegistersCommand(t *testing.T) {
	f := newManagerFixture(t, DefaultManagerConfig())
	path := f.write(t, "square.lua", squarePlugin)

	f.handle(t, EventCreated, path)

	got, err := f.registry.Invoke("square", []float64{4})
	require.NoError(t, err)
	assert.Equal(t, 16.0, got)
	assert.Contains(t, f.manager.Names(), "square")
	assert.Equal(t, []string{"square"}, f.manager.Loaded())
	assert.Equal(t, []ManagerEventType{EventPluginLoaded}, f.eventTypes())
}

func TestManagerUpsertIsIdempotent(t *testing.T) {
	f := newManagerFixture(t, DefaultManagerConfig())
	path := f.write(t, "square.lua", squarePlugin)

	f.handle(t, EventCreated, path)
	before := f.registry.Names()

	f.handle(t, EventModified, path)
	f.handle(t, EventModified, path)

	assert.Equal(t, before, f.registry.Names())
	got, err := f.registry.Invoke("square", []float64{5})
	require.NoError(t, err)
	assert.Equal(t, 25.0, got)
	assert.Equal(t,
		[]ManagerEventType{EventPluginLoaded, EventPluginReloaded, EventPluginReloaded},
		f.eventTypes())
}

func TestManagerModifiedPicksUpNewBehavior(t *testing.T) {
	f := newManagerFixture(t, DefaultManagerConfig())
	path := f.write(t, "square.lua", squarePlugin)
	f.handle(t, EventCreated, path)

	f.write(t, "square.lua", `command = { arity = 2, fn = function(a) return a[1] * a[2] end }`)
	f.handle(t, EventModified, path)

	d, err := f.registry.Lookup("square")
	require.NoError(t, err)
	assert.Equal(t, 2, d.Arity)

	got, err := f.registry.Invoke("square", []float64{3, 7})
	require.NoError(t, err)
	assert.Equal(t, 21.0, got)
}

func TestManagerInvalidEditFailsClosed(t *testing.T) {
	f := newManagerFixture(t, DefaultManagerConfig())
	path := f.write(t, "square.lua", squarePlugin)
	f.handle(t, EventCreated, path)
	require.True(t, f.registry.Has("square"))

	f.write(t, "square.lua", `command = {`)
	f.handle(t, EventModified, path)

	assert.False(t, f.registry.Has("square"))
	assert.NotContains(t, f.manager.Names(), "square")
	assert.Empty(t, f.manager.Loaded())

	_, err := f.registry.Invoke("square", []float64{2})
	assert.ErrorIs(t, err, command.ErrCommandNotFound)
	assert.Equal(t, EventPluginInvalid, f.eventTypes()[1])

	// The next valid edit restores it.
	f.write(t, "square.lua", squarePlugin)
	f.handle(t, EventModified, path)
	assert.True(t, f.registry.Has("square"))
}

func TestManagerInvalidCreateIsNotFatal(t *testing.T) {
	f := newManagerFixture(t, DefaultManagerConfig())
	path := f.write(t, "broken.lua", `local nothing = true`)

	f.handle(t, EventCreated, path)

	assert.False(t, f.registry.Has("broken"))
	assert.Equal(t, 4, f.registry.Len())
}

func TestManagerDeleteRemovesCommand(t *testing.T) {
	f := newManagerFixture(t, DefaultManagerConfig())
	path := f.write(t, "square.lua", squarePlugin)
	f.handle(t, EventCreated, path)

	require.NoError(t, os.Remove(path))
	f.handle(t, EventDeleted, path)

	assert.False(t, f.registry.Has("square"))
	assert.Empty(t, f.manager.Loaded())
	assert.Equal(t, EventPluginUnloaded, f.eventTypes()[1])
}

const cubePlugin = `
command = {
  arity = 1,
  description = "Cube a number",
  fn = function(args) return args[1] ^ 3 end,
}
`

func TestManagerDeleteShadowedDuplicateKeepsCommand(t *testing.T) {
	f := newManagerFixture(t, DefaultManagerConfig())
	active := f.write(t, "square.lua", squarePlugin)
	stale := f.write(t, "old/square.lua", cubePlugin)
	f.handle(t, EventCreated, active)
	f.handle(t, EventCreated, stale)

	d, err := f.registry.Lookup("square")
	require.NoError(t, err)
	require.Equal(t, active, d.Path)
	before := len(f.eventTypes())

	require.NoError(t, os.Remove(stale))
	f.handle(t, EventDeleted, stale)

	got, err := f.registry.Invoke("square", []float64{3})
	require.NoError(t, err)
	assert.Equal(t, 9.0, got)
	assert.Len(t, f.eventTypes(), before, "deleting a file that backs nothing emits no events")
}

func TestManagerDeleteBackingFileFallsBackToDuplicate(t *testing.T) {
	f := newManagerFixture(t, DefaultManagerConfig())
	active := f.write(t, "square.lua", squarePlugin)
	nested := f.write(t, "nested/square.lua", cubePlugin)
	f.handle(t, EventCreated, active)

	require.NoError(t, os.Remove(active))
	f.handle(t, EventDeleted, active)

	d, err := f.registry.Lookup("square")
	require.NoError(t, err)
	assert.Equal(t, nested, d.Path)
	got, err := f.registry.Invoke("square", []float64{3})
	require.NoError(t, err)
	assert.Equal(t, 27.0, got)
	assert.Equal(t, []string{"square"}, f.manager.Loaded())
	assert.Equal(t,
		[]ManagerEventType{EventPluginLoaded, EventPluginUnloaded, EventPluginLoaded},
		f.eventTypes())
}

func TestSamePath(t *testing.T) {
	wd, err := os.Getwd()
	require.NoError(t, err)

	assert.True(t, samePath("plugins/square.lua", filepath.Join(wd, "plugins", "square.lua")))
	assert.True(t, samePath("./plugins/../plugins/square.lua", "plugins/square.lua"))
	assert.False(t, samePath("plugins/square.lua", "plugins/old/square.lua"))
}

func TestManagerDeleteUnknownIsNoop(t *testing.T) {
	f := newManagerFixture(t, DefaultManagerConfig())
	before := f.registry.Names()

	f.handle(t, EventDeleted, filepath.Join(f.dir, "never.lua"))

	assert.Equal(t, before, f.registry.Names())
	assert.Empty(t, f.eventTypes())
}

func TestManagerDeleteKeepsBuiltin(t *testing.T) {
	f := newManagerFixture(t, DefaultManagerConfig())

	f.handle(t, EventDeleted, filepath.Join(f.dir, "add.lua"))

	got, err := f.registry.Invoke("add", []float64{1, 2})
	require.NoError(t, err)
	assert.Equal(t, 3.0, got)
}

func TestManagerMovedAwayLeavesCommandAbsent(t *testing.T) {
	f := newManagerFixture(t, DefaultManagerConfig())
	path := f.write(t, "square.lua", squarePlugin)
	f.handle(t, EventCreated, path)

	require.NoError(t, os.Rename(path, filepath.Join(f.dir, "square.txt")))
	f.handle(t, EventMoved, path)

	assert.False(t, f.registry.Has("square"))
}

func TestManagerShadowingAllowed(t *testing.T) {
	f := newManagerFixture(t, DefaultManagerConfig())
	path := f.write(t, "add.lua", `
command = {
  arity = 2,
  description = "Add and double",
  fn = function(a) return (a[1] + a[2]) * 2 end,
}
`)

	f.handle(t, EventCreated, path)

	got, err := f.registry.Invoke("add", []float64{1, 2})
	require.NoError(t, err)
	assert.Equal(t, 6.0, got)

	// Deleting the shadowing plugin brings the built-in back.
	require.NoError(t, os.Remove(path))
	f.handle(t, EventDeleted, path)

	d, err := f.registry.Lookup("add")
	require.NoError(t, err)
	assert.True(t, d.IsBuiltin())
	got, err = f.registry.Invoke("add", []float64{1, 2})
	require.NoError(t, err)
	assert.Equal(t, 3.0, got)
}

func TestManagerInvalidShadowRestoredOnDelete(t *testing.T) {
	f := newManagerFixture(t, DefaultManagerConfig())
	path := f.write(t, "divide.lua", `command = "nope"`)

	f.handle(t, EventCreated, path)
	assert.False(t, f.registry.Has("divide"))

	require.NoError(t, os.Remove(path))
	f.handle(t, EventDeleted, path)
	assert.True(t, f.registry.Has("divide"))
}

func TestManagerShadowingDisabled(t *testing.T) {
	f := newManagerFixture(t, ManagerConfig{AllowShadowing: false})
	path := f.write(t, "add.lua", `command = { arity = 2, fn = function(a) return 0 end }`)

	f.handle(t, EventCreated, path)

	got, err := f.registry.Invoke("add", []float64{1, 2})
	require.NoError(t, err)
	assert.Equal(t, 3.0, got)
	assert.Equal(t, []ManagerEventType{EventPluginIgnored}, f.eventTypes())

	f.handle(t, EventDeleted, path)
	assert.True(t, f.registry.Has("add"))
}

func TestManagerIgnoresNonPluginPaths(t *testing.T) {
	f := newManagerFixture(t, DefaultManagerConfig())
	notes := f.write(t, "notes.txt", "hello")
	helper := f.write(t, "_util.lua", squarePlugin)

	f.handle(t, EventCreated, notes)
	f.handle(t, EventCreated, helper)

	assert.Equal(t, 4, f.registry.Len())
	assert.Empty(t, f.eventTypes())
}

func TestManagerCancelledContextDropsEvents(t *testing.T) {
	f := newManagerFixture(t, DefaultManagerConfig())
	path := f.write(t, "square.lua", squarePlugin)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, f.manager.HandleEvent(ctx, Event{Kind: EventCreated, Path: path}))
	assert.False(t, f.registry.Has("square"))
}

func TestManagerLoaderFaultPropagates(t *testing.T) {
	f := newManagerFixtureIn(t, "bad\x00dir", DefaultManagerConfig())

	err := f.manager.HandleEvent(context.Background(), Event{Kind: EventCreated, Path: "square.lua"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrLoaderFault)
	assert.NotErrorIs(t, err, ErrInvalidPlugin)
	assert.Equal(t, []ManagerEventType{EventPluginError}, f.eventTypes())

	err = f.manager.LoadAll(context.Background())
	assert.ErrorIs(t, err, ErrLoaderFault)
}

func TestManagerLoadAll(t *testing.T) {
	f := newManagerFixture(t, DefaultManagerConfig())
	f.write(t, "square.lua", squarePlugin)
	f.write(t, "geometry/circle.lua", `
command = {
  arity = 1,
  description = "Area of a circle",
  fn = function(a) return math.pi * a[1] * a[1] end,
}
`)
	f.write(t, "broken.lua", `command = {}`)
	f.write(t, "README.md", "docs")

	require.NoError(t, f.manager.LoadAll(context.Background()))

	assert.Equal(t,
		[]string{"add", "circle", "divide", "multiply", "square", "subtract"},
		f.registry.Names())

	loaded := f.manager.Loaded()
	sort.Strings(loaded)
	assert.Equal(t, []string{"circle", "square"}, loaded)
}

func TestManagerCloseReleasesStates(t *testing.T) {
	f := newManagerFixture(t, DefaultManagerConfig())
	path := f.write(t, "square.lua", squarePlugin)
	f.handle(t, EventCreated, path)

	require.NoError(t, f.manager.Close())

	_, err := f.registry.Invoke("square", []float64{2})
	assert.ErrorIs(t, err, command.ErrDomain)
	assert.Empty(t, f.manager.Loaded())
}

func TestManagerSubscribe(t *testing.T) {
	f := newManagerFixture(t, DefaultManagerConfig())

	var got []ManagerEvent
	unsubscribe := f.manager.Subscribe(func(ev ManagerEvent) {
		got = append(got, ev)
	})
	f.manager.Subscribe(func(ManagerEvent) {
		panic("handler bug")
	})
	assert.NotNil(t, f.manager.Subscribe(nil))

	path := f.write(t, "square.lua", squarePlugin)
	f.handle(t, EventCreated, path)

	require.Len(t, got, 1)
	assert.Equal(t, EventPluginLoaded, got[0].Type)
	assert.Equal(t, "square", got[0].Plugin)
	assert.Equal(t, EventCreated, got[0].Trigger)

	unsubscribe()
	f.handle(t, EventModified, path)
	assert.Len(t, got, 1)
}

func TestManagerEventTypeString(t *testing.T) {
	tests := map[ManagerEventType]string{
		EventPluginLoaded:    "loaded",
		EventPluginReloaded:  "reloaded",
		EventPluginUnloaded:  "unloaded",
		EventPluginInvalid:   "invalid",
		EventPluginIgnored:   "ignored",
		EventPluginError:     "error",
		ManagerEventType(99): "unknown",
	}
	for typ, want := range tests {
		assert.Equal(t, want, typ.String())
	}
}
