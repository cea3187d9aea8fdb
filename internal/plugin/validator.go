package plugin

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	glua "github.com/yuin/gopher-lua"

	"github.com/dshills/hotcalc/internal/command"
	"github.com/dshills/hotcalc/internal/plugin/lua"
)

// Names of the fields a plugin's command table must expose.
const (
	CommandGlobal    = "command"
	FieldFunction    = "fn"
	FieldFunctionAlt = "run"
	FieldArity       = "arity"
	FieldDescription = "description"
)

// Plugin is a validated plugin: its descriptor plus the Lua state that
// backs the descriptor's Invoke function.
type Plugin struct {
	Descriptor *command.Descriptor

	state *lua.State
}

// Close releases the plugin's Lua state. Invoking the descriptor after
// Close fails with lua.ErrStateClosed.
func (p *Plugin) Close() error {
	if p == nil || p.state == nil {
		return nil
	}
	return p.state.Close()
}

// Validator materializes plugin files into command descriptors.
type Validator struct {
	loader  *Loader
	cache   *ChunkCache
	timeout time.Duration
	log     *logrus.Logger
}

// ValidatorOption configures a Validator.
type ValidatorOption func(*Validator)

// WithChunkCache sets the compiled chunk cache.
func WithChunkCache(cache *ChunkCache) ValidatorOption {
	return func(v *Validator) {
		v.cache = cache
	}
}

// WithCallTimeout sets the execution timeout of each command invocation.
func WithCallTimeout(d time.Duration) ValidatorOption {
	return func(v *Validator) {
		v.timeout = d
	}
}

// WithValidatorLogger sets the logger.
func WithValidatorLogger(log *logrus.Logger) ValidatorOption {
	return func(v *Validator) {
		if log != nil {
			v.log = log
		}
	}
}

// NewValidator creates a validator that finds plugin files with loader.
func NewValidator(loader *Loader, opts ...ValidatorOption) *Validator {
	v := &Validator{
		loader:  loader,
		timeout: lua.DefaultExecutionTimeout,
		log:     logrus.New(),
	}

	for _, opt := range opts {
		opt(v)
	}

	return v
}

// Validate loads the named plugin and checks that it exposes a command
// table with a function and a non-negative integer arity.
//
// Loading runs the file's top-level code. Malformed plugins fail with
// ErrInvalidPlugin; failures of the loading machinery itself fail with
// ErrLoaderFault.
func (v *Validator) Validate(name string) (p *Plugin, err error) {
	defer func() {
		if r := recover(); r != nil {
			p = nil
			err = fmt.Errorf("%w: validating %q: panic: %v", ErrLoaderFault, name, r)
		}
	}()

	info, err := v.loader.FindPlugin(name)
	if err != nil {
		if errors.Is(err, ErrPluginNotFound) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPlugin, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrLoaderFault, err)
	}

	source, err := os.ReadFile(info.Path)
	if err != nil {
		// The file may vanish between discovery and read.
		return nil, fmt.Errorf("%w: reading %s: %v", ErrInvalidPlugin, info.Path, err)
	}

	proto, err := v.compile(source, info.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidPlugin, info.Path, err)
	}

	state := lua.NewState(lua.WithExecutionTimeout(v.timeout))
	p, err = v.materialize(state, proto, info)
	if err != nil {
		state.Close()
		return nil, err
	}

	v.log.WithFields(logrus.Fields{
		"command": name,
		"path":    info.Path,
		"load_id": p.Descriptor.LoadID,
	}).Debug("Plugin validated")

	return p, nil
}

func (v *Validator) compile(source []byte, path string) (*glua.FunctionProto, error) {
	if v.cache != nil {
		return v.cache.Compile(source, path)
	}
	return lua.Compile(source, path)
}

// materialize runs the chunk and extracts the command table.
func (v *Validator) materialize(state *lua.State, proto *glua.FunctionProto, info *PluginInfo) (*Plugin, error) {
	if err := state.DoProto(proto); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidPlugin, info.Path, err)
	}

	tbl, ok := state.GetGlobal(CommandGlobal).(*glua.LTable)
	if !ok {
		return nil, fmt.Errorf("%w: %s does not define a %q table", ErrInvalidPlugin, info.Path, CommandGlobal)
	}

	fn, ok := tbl.RawGetString(FieldFunction).(*glua.LFunction)
	if !ok {
		fn, ok = tbl.RawGetString(FieldFunctionAlt).(*glua.LFunction)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s: %s.%s must be a function", ErrInvalidPlugin, info.Path, CommandGlobal, FieldFunction)
	}

	arity, ok := lua.ToInt(tbl.RawGetString(FieldArity))
	if !ok || arity < 0 {
		return nil, fmt.Errorf("%w: %s: %s.%s must be a non-negative integer", ErrInvalidPlugin, info.Path, CommandGlobal, FieldArity)
	}

	var description string
	if s, ok := tbl.RawGetString(FieldDescription).(glua.LString); ok {
		description = string(s)
	}

	name := info.Name
	descriptor := &command.Descriptor{
		Name:        name,
		Arity:       arity,
		Description: description,
		Source:      command.SourcePlugin,
		Path:        info.Path,
		LoadID:      uuid.NewString(),
		Invoke: func(args []float64) (float64, error) {
			result, err := state.CallNumeric(fn, args)
			if err != nil {
				return 0, fmt.Errorf("%s: %w: %w", name, command.ErrDomain, err)
			}
			return result, nil
		},
	}

	return &Plugin{Descriptor: descriptor, state: state}, nil
}
