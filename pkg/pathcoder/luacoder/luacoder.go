// Package luacoder implements a pathcoder.Coder whose encode and decode
// steps are Lua functions.
//
// The script must define two global functions taking and returning a string:
//
//	function encode(path)
//	  if string.sub(path, 1, 1) ~= "/" then path = "/" .. path end
//	  return string.lower(path)
//	end
//
//	function decode(hash)
//	  return hash
//	end
//
// Only the base, table, string and math libraries are opened.
package luacoder

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	lua "github.com/yuin/gopher-lua"
)

const (
	encodeFunc = "encode"
	decodeFunc = "decode"
)

// ErrIncomplete is returned when a script lacks encode or decode.
var ErrIncomplete = errors.New("luacoder: script must define encode and decode")

// Coder runs a Lua script as a path coder. It is safe for concurrent use;
// calls into the interpreter are serialized.
type Coder struct {
	mu     sync.Mutex
	L      *lua.LState
	logger *slog.Logger
}

// Option configures a Coder.
type Option func(*Coder)

// WithLogger sets the logger used to report script failures.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coder) {
		c.logger = logger
	}
}

// New compiles source and checks that it defines encode and decode.
func New(source string, opts ...Option) (*Coder, error) {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	openSafeLibs(L)

	if err := L.DoString(source); err != nil {
		L.Close()
		return nil, fmt.Errorf("luacoder: load script: %w", err)
	}
	for _, name := range []string{encodeFunc, decodeFunc} {
		if _, ok := L.GetGlobal(name).(*lua.LFunction); !ok {
			L.Close()
			return nil, fmt.Errorf("%w: missing %q", ErrIncomplete, name)
		}
	}

	c := &Coder{L: L, logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Load reads and compiles the script at path.
func Load(path string, opts ...Option) (*Coder, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("luacoder: read script: %w", err)
	}
	return New(string(src), opts...)
}

// EncodePath calls the script's encode function. On a script error the path
// is returned unchanged.
func (c *Coder) EncodePath(path string) string {
	return c.call(encodeFunc, path)
}

// DecodePath calls the script's decode function. On a script error the hash
// is returned unchanged.
func (c *Coder) DecodePath(hash string) string {
	return c.call(decodeFunc, hash)
}

// Close releases the interpreter.
func (c *Coder) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.L != nil {
		c.L.Close()
		c.L = nil
	}
}

func (c *Coder) call(name, arg string) string {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.L == nil {
		return arg
	}

	err := c.L.CallByParam(lua.P{
		Fn:      c.L.GetGlobal(name),
		NRet:    1,
		Protect: true,
	}, lua.LString(arg))
	if err != nil {
		c.logger.Error("lua path coder failed", "function", name, "error", err)
		return arg
	}

	ret := c.L.Get(-1)
	c.L.Pop(1)

	s, ok := ret.(lua.LString)
	if !ok {
		c.logger.Error("lua path coder returned non-string", "function", name, "type", ret.Type().String())
		return arg
	}
	return string(s)
}

func openSafeLibs(L *lua.LState) {
	for _, lib := range []struct {
		name string
		fn   lua.LGFunction
	}{
		{lua.BaseLibName, lua.OpenBase},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
		{lua.MathLibName, lua.OpenMath},
	} {
		L.Push(L.NewFunction(lib.fn))
		L.Push(lua.LString(lib.name))
		L.Call(1, 0)
	}
}
