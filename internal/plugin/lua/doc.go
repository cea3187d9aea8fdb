// Package lua provides the Lua runtime integration for the plugin system.
//
// This package wraps the gopher-lua library to provide:
//   - Lua state management with serialized access
//   - Chunk compilation to reusable prototypes
//   - Conversion between Go float slices and Lua arrays
//   - Per-call execution timeouts
//
// # State
//
// The State type manages a Lua runtime:
//
//	state := lua.NewState(lua.WithExecutionTimeout(time.Second))
//	defer state.Close()
//
//	proto, err := lua.Compile(src, "square.lua")
//	if err != nil {
//	    return err
//	}
//	if err := state.DoProto(proto); err != nil {
//	    return err
//	}
//
// # Calling plugin functions
//
// CallNumeric passes arguments as a 1-based array and expects a number
// back:
//
//	fn := state.GetGlobal("f").(*glua.LFunction)
//	v, err := state.CallNumeric(fn, []float64{3})
//
// A function may report failure by raising an error or by returning
// nil and a message. Both surface as ErrScript.
package lua
