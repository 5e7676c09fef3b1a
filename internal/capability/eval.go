package capability

import (
	"context"
	"fmt"
	"io"
	"reflect"
	"sort"
	"strings"
	"time"

	lua "github.com/yuin/gopher-lua"
)

// DefaultEvalTimeout bounds a single print/eval command.
const DefaultEvalTimeout = 2 * time.Second

// Eval runs expr in a fresh sandboxed Lua state whose globals are the
// watched values.  expr is first tried as an expression ("return expr")
// and then as a statement block.  Lua's print writes to out.
func Eval(ctx context.Context, expr string, locals map[string]any, out io.Writer) (string, error) {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	defer L.Close()
	L.SetContext(ctx)

	openSafeLibraries(L)
	L.SetGlobal("print", L.NewFunction(func(L *lua.LState) int {
		n := L.GetTop()
		parts := make([]string, 0, n)
		for i := 1; i <= n; i++ {
			parts = append(parts, formatLValue(L.Get(i)))
		}
		fmt.Fprintln(out, strings.Join(parts, "\t"))
		return 0
	}))
	for name, v := range locals {
		L.SetGlobal(name, toLValue(L, reflect.ValueOf(v)))
	}

	fn, err := L.LoadString("return " + expr)
	if err != nil {
		if fn, err = L.LoadString(expr); err != nil {
			return "", err
		}
	}

	base := L.GetTop()
	L.Push(fn)
	if err := L.PCall(0, lua.MultRet, nil); err != nil {
		return "", err
	}

	n := L.GetTop() - base
	results := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		results = append(results, formatLValue(L.Get(base+i)))
	}
	L.Pop(n)
	return strings.Join(results, ", "), nil
}

// openSafeLibraries opens base, table, string and math only; io, os,
// debug and package stay closed.
func openSafeLibraries(L *lua.LState) {
	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)

	for _, name := range []string{"dofile", "loadfile", "load", "loadstring", "require", "module"} {
		L.SetGlobal(name, lua.LNil)
	}
}

func toLValue(L *lua.LState, v reflect.Value) lua.LValue {
	if !v.IsValid() {
		return lua.LNil
	}
	if (v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface) && v.IsNil() {
		return lua.LNil
	}
	if s, ok := v.Interface().(fmt.Stringer); ok && v.Kind() != reflect.String {
		return lua.LString(s.String())
	}

	switch v.Kind() {
	case reflect.Bool:
		return lua.LBool(v.Bool())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return lua.LNumber(v.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return lua.LNumber(v.Uint())
	case reflect.Float32, reflect.Float64:
		return lua.LNumber(v.Float())
	case reflect.String:
		return lua.LString(v.String())
	case reflect.Pointer, reflect.Interface:
		return toLValue(L, v.Elem())
	case reflect.Slice, reflect.Array:
		tbl := L.NewTable()
		for i := 0; i < v.Len(); i++ {
			tbl.Append(toLValue(L, v.Index(i)))
		}
		return tbl
	case reflect.Map:
		tbl := L.NewTable()
		iter := v.MapRange()
		for iter.Next() {
			tbl.RawSet(toLValue(L, iter.Key()), toLValue(L, iter.Value()))
		}
		return tbl
	default:
		return lua.LString(fmt.Sprintf("%v", v.Interface()))
	}
}

func formatLValue(lv lua.LValue) string {
	tbl, ok := lv.(*lua.LTable)
	if !ok {
		return lv.String()
	}

	var parts []string
	n := tbl.Len()
	for i := 1; i <= n; i++ {
		parts = append(parts, formatLValue(tbl.RawGetInt(i)))
	}
	var keyed []string
	tbl.ForEach(func(k, v lua.LValue) {
		if num, isNum := k.(lua.LNumber); isNum && float64(num) >= 1 && float64(num) <= float64(n) && float64(num) == float64(int(num)) {
			return
		}
		keyed = append(keyed, fmt.Sprintf("%s=%s", k.String(), formatLValue(v)))
	})
	sort.Strings(keyed)
	return "{" + strings.Join(append(parts, keyed...), ", ") + "}"
}
