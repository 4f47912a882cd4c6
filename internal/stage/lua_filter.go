package stage

import (
	"context"
	"fmt"
	"strings"
	"time"

	lua "github.com/yuin/gopher-lua"
	"github.com/yuin/gopher-lua/parse"

	"github.com/flarebyte/timewarp/internal/resource"
)

const luaFilterStage = "lua-filter"

// recordFilter evaluates the configured Lua predicate against resources of
// one file. The predicate sees the globals record, resourceType and locator;
// a truthy result keeps the resource. Not safe for concurrent use.
type recordFilter struct {
	L       *lua.LState
	fn      *lua.LFunction
	locator string
	timeout time.Duration
}

// newRecordFilter compiles code once per file. It returns nil when code is
// empty.
func newRecordFilter(code string, timeoutMs int, locator string) (*recordFilter, error) {
	if strings.TrimSpace(code) == "" {
		return nil, nil
	}
	proto, err := compilePredicate(code)
	if err != nil {
		return nil, err
	}
	L := newSandboxLuaState(luaFilterStage, locator)
	return &recordFilter{
		L:       L,
		fn:      L.NewFunctionFromProto(proto),
		locator: locator,
		timeout: time.Duration(timeoutMs) * time.Millisecond,
	}, nil
}

// Keep runs the predicate for res.
func (f *recordFilter) Keep(ctx context.Context, res *resource.Resource) (bool, error) {
	if f == nil {
		return true, nil
	}
	L := f.L
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}
	L.SetContext(ctx)
	defer L.RemoveContext()

	L.SetGlobal("record", toLValue(L, res.Data))
	L.SetGlobal("resourceType", lua.LString(res.Type))
	L.SetGlobal("locator", lua.LString(f.locator))

	top := L.GetTop()
	L.Push(f.fn)
	if err := L.PCall(0, 1, nil); err != nil {
		L.SetTop(top)
		if isTimeoutError(err) {
			return false, fmt.Errorf("%s: %s", luaFilterStage, sandboxTimeout)
		}
		if strings.Contains(strings.ToLower(err.Error()), "registry overflow") {
			return false, fmt.Errorf("%s: %s", luaFilterStage, sandboxMemory)
		}
		return false, fmt.Errorf("%s: %v", luaFilterStage, err)
	}
	ret := L.Get(-1)
	L.SetTop(top)
	return lua.LVAsBool(ret), nil
}

// Close releases the Lua state.
func (f *recordFilter) Close() {
	if f != nil {
		f.L.Close()
	}
}

// compilePredicate accepts either a bare expression or a statement block
// that returns a value. The expression form is tried first.
func compilePredicate(code string) (*lua.FunctionProto, error) {
	if proto, err := compileChunk("return (" + code + ")"); err == nil {
		return proto, nil
	}
	proto, err := compileChunk(code)
	if err != nil {
		return nil, fmt.Errorf("%s: %v", luaFilterStage, err)
	}
	return proto, nil
}

func compileChunk(src string) (*lua.FunctionProto, error) {
	chunk, err := parse.Parse(strings.NewReader(src), luaFilterStage)
	if err != nil {
		return nil, err
	}
	return lua.Compile(chunk, luaFilterStage)
}

// checkFilterSyntax compiles the predicate without running it.
func checkFilterSyntax(code string) error {
	_, err := compilePredicate(code)
	return err
}
