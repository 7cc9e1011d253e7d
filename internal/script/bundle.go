package script

import (
	"embed"
	"fmt"

	"github.com/dop251/goja"
)

//go:embed shims/*.js
var shimFS embed.FS

// shimOrder fixes the load order of the trusted shims; later shims may use
// earlier ones.
var shimOrder = []string{
	"shims/textencoder.js",
	"shims/webcrypto.js",
}

// Bundle holds the trusted host-API shims, compiled once into reusable
// programs. It never contains caller-supplied code and is immutable after
// NewBundle returns.
type Bundle struct {
	programs []*goja.Program
}

// NewBundle compiles the embedded shim sources. Called once at startup;
// a failure here is a build defect, not a user error.
func NewBundle() (*Bundle, error) {
	bundle := &Bundle{programs: make([]*goja.Program, 0, len(shimOrder))}
	for _, name := range shimOrder {
		src, err := shimFS.ReadFile(name)
		if err != nil {
			return nil, fmt.Errorf("reading embedded shim %s: %w", name, err)
		}
		program, err := goja.Compile(name, string(src), true)
		if err != nil {
			return nil, fmt.Errorf("compiling shim %s: %w", name, err)
		}
		bundle.programs = append(bundle.programs, program)
	}
	return bundle, nil
}

// load runs every shim program inside the given interpreter instance.
func (b *Bundle) load(vm *goja.Runtime) error {
	for _, program := range b.programs {
		if _, err := vm.RunProgram(program); err != nil {
			return fmt.Errorf("loading shim bundle: %w", err)
		}
	}
	return nil
}
