package lua

import (
	"errors"
	"testing"
	"time"

	glua "github.com/yuin/gopher-lua"
)

func newTestState(t *testing.T, opts ...StateOption) *State {
	t.Helper()
	state := NewState(opts...)
	t.Cleanup(func() { state.Close() })
	return state
}

func globalFunc(t *testing.T, s *State, name string) *glua.LFunction {
	t.Helper()
	fn, ok := s.GetGlobal(name).(*glua.LFunction)
	if !ok {
		t.Fatalf("global %q is not a function", name)
	}
	return fn
}

func TestNewState(t *testing.T) {
	state := newTestState(t)

	if state.closed {
		t.Error("NewState() returned closed state")
	}
	if state.vm == nil {
		t.Error("NewState() vm is nil")
	}
}

func TestStateDoString(t *testing.T) {
	state := newTestState(t)

	if err := state.DoString(`x = 1 + 1`); err != nil {
		t.Fatalf("DoString() error = %v", err)
	}

	n, ok := ToFloat(state.GetGlobal("x"))
	if !ok || n != 2 {
		t.Errorf("x = %v, want 2", state.GetGlobal("x"))
	}
}

func TestStateDoStringSyntaxError(t *testing.T) {
	state := newTestState(t)

	if err := state.DoString(`invalid lua code !!!`); err == nil {
		t.Error("DoString() should return error for invalid code")
	}
}

func TestStateFullStdlib(t *testing.T) {
	state := newTestState(t)

	// Plugins are trusted; os and io are available.
	if err := state.DoString(`t = type(os.time)`); err != nil {
		t.Fatalf("DoString() error = %v", err)
	}
	if got := state.GetGlobal("t").String(); got != "function" {
		t.Errorf("type(os.time) = %q, want function", got)
	}
}

func TestCompileAndDoProto(t *testing.T) {
	proto, err := Compile([]byte(`y = 21 * 2`), "test.lua")
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}

	// A prototype runs independently in separate states.
	for i := 0; i < 2; i++ {
		state := newTestState(t)
		if err := state.DoProto(proto); err != nil {
			t.Fatalf("DoProto() error = %v", err)
		}
		if n, _ := ToFloat(state.GetGlobal("y")); n != 42 {
			t.Errorf("y = %v, want 42", n)
		}
	}
}

func TestCompileSyntaxError(t *testing.T) {
	_, err := Compile([]byte(`function (`), "bad.lua")
	if !errors.Is(err, ErrSyntax) {
		t.Errorf("Compile() error = %v, want ErrSyntax", err)
	}
}

func TestCallNumeric(t *testing.T) {
	state := newTestState(t)
	if err := state.DoString(`function sum(args) return args[1] + args[2] end`); err != nil {
		t.Fatal(err)
	}

	got, err := state.CallNumeric(globalFunc(t, state, "sum"), []float64{1.5, 2})
	if err != nil {
		t.Fatalf("CallNumeric() error = %v", err)
	}
	if got != 3.5 {
		t.Errorf("CallNumeric() = %v, want 3.5", got)
	}
}

func TestCallNumericErrors(t *testing.T) {
	tests := []struct {
		name string
		code string
		want error
	}{
		{"raises", `function f(args) error("boom") end`, ErrScript},
		{"nil with message", `function f(args) return nil, "negative input" end`, ErrScript},
		{"nil", `function f(args) return nil end`, ErrNotNumber},
		{"string", `function f(args) return "x" end`, ErrNotNumber},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := newTestState(t)
			if err := state.DoString(tt.code); err != nil {
				t.Fatal(err)
			}
			_, err := state.CallNumeric(globalFunc(t, state, "f"), nil)
			if !errors.Is(err, tt.want) {
				t.Errorf("CallNumeric() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestCallNumericTimeout(t *testing.T) {
	state := newTestState(t, WithExecutionTimeout(50*time.Millisecond))
	if err := state.DoString(`function spin(args) while true do end end`); err != nil {
		t.Fatal(err)
	}

	_, err := state.CallNumeric(globalFunc(t, state, "spin"), nil)
	if !errors.Is(err, ErrExecutionTimeout) {
		t.Errorf("CallNumeric() error = %v, want ErrExecutionTimeout", err)
	}
}

func TestCallNumericStackBalanced(t *testing.T) {
	state := newTestState(t)
	if err := state.DoString(`function one(args) return 1 end`); err != nil {
		t.Fatal(err)
	}
	fn := globalFunc(t, state, "one")

	top := state.vm.GetTop()
	for i := 0; i < 10; i++ {
		if _, err := state.CallNumeric(fn, []float64{float64(i)}); err != nil {
			t.Fatal(err)
		}
	}
	if got := state.vm.GetTop(); got != top {
		t.Errorf("stack top = %d after calls, want %d", got, top)
	}
}

func TestStateClose(t *testing.T) {
	state := NewState()

	if err := state.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if !state.closed {
		t.Error("closed = false after Close()")
	}
	if err := state.DoString(`x = 1`); !errors.Is(err, ErrStateClosed) {
		t.Errorf("DoString() after Close error = %v, want ErrStateClosed", err)
	}
	// Double close is a no-op.
	if err := state.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}

func TestToInt(t *testing.T) {
	tests := []struct {
		in     glua.LValue
		want   int
		wantOK bool
	}{
		{glua.LNumber(2), 2, true},
		{glua.LNumber(0), 0, true},
		{glua.LNumber(1.5), 0, false},
		{glua.LString("2"), 0, false},
		{glua.LNil, 0, false},
	}

	for _, tt := range tests {
		got, ok := ToInt(tt.in)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("ToInt(%v) = (%d, %v), want (%d, %v)", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}
