package vm

import (
	"strings"

	"github.com/wudi/ember/compiler"
	"github.com/wudi/ember/values"
)

// exportPrefix is the global-binding prefix OP_EXPORT writes under
// (see vm.go's OP_EXPORT/OP_EXPORT_DEFAULT case). RunModuleLocked
// harvests every global with this prefix into the module's exports.
const exportPrefix = "__export_"

// RunModuleLocked executes chunk as a module body and returns its
// exports object. It assumes the caller already holds vm.mu: every
// real call site is the module loader's Importer.Import, itself only
// ever invoked from OP_IMPORT inside the locked dispatch loop, so
// re-locking here would deadlock the same goroutine.
//
// Exported bindings are collected from globals by their OP_EXPORT
// prefix and then deleted from the shared global table, so two
// modules that both `export default ...` don't clobber each other's
// globals entry.
func (vm *VM) RunModuleLocked(chunk *compiler.Chunk) (*values.Value, error) {
	if _, err := vm.runChunkLocked(chunk); err != nil {
		return nil, err
	}

	exports := make(map[string]*values.Value)
	for k, v := range vm.globals {
		if name, ok := strings.CutPrefix(k, exportPrefix); ok {
			exports[name] = v
			delete(vm.globals, k)
		}
	}

	// A module's exports object is represented the same way a class
	// instance is, with no backing class so
	// GET_PROPERTY falls straight through to the Fields map.
	mod := values.NewInstance(nil)
	mod.Data.(*values.Instance).Fields = exports
	vm.gc.Track(mod.Data.(values.Object))
	return mod, nil
}
