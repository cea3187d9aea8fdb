package lua

import (
	"bytes"
	"fmt"
	"math"

	lua "github.com/yuin/gopher-lua"
	"github.com/yuin/gopher-lua/parse"
)

// FloatsToTable converts a Go slice to a 1-based Lua array.
func FloatsToTable(L *lua.LState, values []float64) *lua.LTable {
	t := L.CreateTable(len(values), 0)
	for i, v := range values {
		t.RawSetInt(i+1, lua.LNumber(v))
	}
	return t
}

// ToFloat converts a Lua number to float64.
func ToFloat(lv lua.LValue) (float64, bool) {
	n, ok := lv.(lua.LNumber)
	if !ok {
		return 0, false
	}
	return float64(n), true
}

// ToInt converts a Lua number holding an integral value to int.
func ToInt(lv lua.LValue) (int, bool) {
	f, ok := ToFloat(lv)
	if !ok {
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	if f > math.MaxInt32 || f < math.MinInt32 {
		return 0, false
	}
	return int(f), true
}

// Compile parses and compiles Lua source into a reusable function prototype.
// The prototype can be executed in any number of states via State.DoProto.
func Compile(source []byte, chunkName string) (*lua.FunctionProto, error) {
	chunk, err := parse.Parse(bytes.NewReader(source), chunkName)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSyntax, err)
	}
	proto, err := lua.Compile(chunk, chunkName)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSyntax, err)
	}
	return proto, nil
}
