package lua

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	lua "github.com/yuin/gopher-lua"
)

// DefaultExecutionTimeout bounds a single call into plugin code.
const DefaultExecutionTimeout = 5 * time.Second

// State is one plugin's Lua VM.
//
// gopher-lua's LState is not goroutine-safe, so every entry into the VM
// goes through the State's mutex: the watcher goroutine loads a plugin
// while the REPL goroutine may be calling the one it replaces.
type State struct {
	mu      sync.Mutex
	vm      *lua.LState
	timeout time.Duration
	closed  bool
}

// StateOption configures a State.
type StateOption func(*State)

// WithExecutionTimeout bounds each CallNumeric. Zero or less disables
// the bound.
func WithExecutionTimeout(d time.Duration) StateOption {
	return func(s *State) {
		s.timeout = d
	}
}

// NewState creates a VM with the full standard library opened. Plugins are
// trusted local files and are not sandboxed.
func NewState(opts ...StateOption) *State {
	s := &State{timeout: DefaultExecutionTimeout}
	for _, opt := range opts {
		opt(s)
	}
	s.vm = lua.NewState()
	return s
}

// locked runs fn holding the mutex, converting VM panics into errors.
func (s *State) locked(fn func(L *lua.LState) error) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStateClosed
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: lua panic: %v", ErrScript, r)
		}
	}()
	return fn(s.vm)
}

// DoString runs a chunk of source.
func (s *State) DoString(code string) error {
	return s.locked(func(L *lua.LState) error {
		return L.DoString(code)
	})
}

// DoProto runs a compiled chunk.
func (s *State) DoProto(proto *lua.FunctionProto) error {
	return s.locked(func(L *lua.LState) error {
		L.Push(L.NewFunctionFromProto(proto))
		return L.PCall(0, lua.MultRet, nil)
	})
}

// GetGlobal returns a global, or nil once the state is closed.
func (s *State) GetGlobal(name string) lua.LValue {
	v := lua.LValue(lua.LNil)
	_ = s.locked(func(L *lua.LState) error {
		v = L.GetGlobal(name)
		return nil
	})
	return v
}

// CallNumeric calls fn with args as a 1-based array and returns the number
// it yields.
//
// fn signals failure by raising an error or returning nil and a message;
// both give ErrScript. Any other non-number gives ErrNotNumber, and
// running past the execution timeout gives ErrExecutionTimeout.
func (s *State) CallNumeric(fn *lua.LFunction, args []float64) (result float64, err error) {
	err = s.locked(func(L *lua.LState) error {
		ctx, cancel := s.callContext()
		defer cancel()
		L.SetContext(ctx)
		defer L.RemoveContext()

		top := L.GetTop()
		defer L.SetTop(top)

		L.Push(fn)
		L.Push(FloatsToTable(L, args))
		if err := L.PCall(1, 2, nil); err != nil {
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return fmt.Errorf("%w after %v", ErrExecutionTimeout, s.timeout)
			}
			return fmt.Errorf("%w: %v", ErrScript, err)
		}

		ret, msg := L.Get(-2), L.Get(-1)
		switch {
		case ret == lua.LNil && msg != lua.LNil:
			return fmt.Errorf("%w: %s", ErrScript, msg.String())
		case ret == lua.LNil:
			return fmt.Errorf("%w: got nil", ErrNotNumber)
		}

		f, ok := ToFloat(ret)
		if !ok {
			return fmt.Errorf("%w: got %s", ErrNotNumber, ret.Type())
		}
		result = f
		return nil
	})
	return result, err
}

func (s *State) callContext() (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(context.Background())
	}
	return context.WithTimeout(context.Background(), s.timeout)
}

// Close releases the VM. Later calls fail with ErrStateClosed; closing
// twice is a no-op.
func (s *State) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.closed {
		s.vm.Close()
		s.closed = true
	}
	return nil
}
