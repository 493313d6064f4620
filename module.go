package nativemod

import (
	"fmt"

	"github.com/ebitengine/purego"
)

// Module is the in-process handle for a loaded artifact. It exposes the
// artifact's exported entry points for invocation.
//
// A Module stays loaded for the life of the process; no unload is
// exposed. Deleting the backing file (as Cleanup does) leaves the mapped
// object in memory, but continued use of the handle after that is
// platform behavior, not a guarantee.
type Module struct {
	name string
	path string
	lib  uintptr
}

// openModule loads the artifact at path via the platform dynamic loader.
func openModule(name, path string) (*Module, error) {
	lib, err := purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_GLOBAL)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	return &Module{name: name, path: path, lib: lib}, nil
}

// Name returns the module name.
func (m *Module) Name() string {
	return m.name
}

// Path returns the artifact path the module was loaded from.
func (m *Module) Path() string {
	return m.path
}

// Lookup resolves a named entry point and returns its address, or a
// *LoadError when the symbol is not exported by the module.
func (m *Module) Lookup(symbol string) (uintptr, error) {
	addr, err := purego.Dlsym(m.lib, symbol)
	if err != nil {
		return 0, &LoadError{Path: m.path, Symbol: symbol, Err: err}
	}
	return addr, nil
}

// Invoke calls a niladic entry point, such as the demo's hello_world.
// The symbol must name a function taking no arguments; any return value
// is discarded.
func (m *Module) Invoke(symbol string) error {
	addr, err := m.Lookup(symbol)
	if err != nil {
		return err
	}
	purego.SyscallN(addr)
	return nil
}

// Bind resolves a named entry point and binds it to fptr, which must be a
// pointer to a function variable whose signature matches the C function.
//
//	var add func(int32, int32) int32
//	if err := module.Bind(&add, "add"); err != nil { ... }
//	sum := add(2, 3)
func (m *Module) Bind(fptr any, symbol string) (err error) {
	addr, err := m.Lookup(symbol)
	if err != nil {
		return err
	}

	// RegisterFunc panics on signature problems; surface them as errors.
	defer func() {
		if r := recover(); r != nil {
			err = &LoadError{Path: m.path, Symbol: symbol, Err: fmt.Errorf("binding entry point: %v", r)}
		}
	}()
	purego.RegisterFunc(fptr, addr)
	return err
}
