// Embedding API: the surface host code drives a VM
// through — eval a source string, call a global function by name,
// install native callables, and retrieve the pending exception after
// a failed run.
package vm

import (
	"fmt"

	"github.com/wudi/ember/compiler"
	"github.com/wudi/ember/errors"
	"github.com/wudi/ember/internal/diag"
	"github.com/wudi/ember/values"
)

// Eval compiles and executes source in the VM's top-level context,
// returning the value of the final expression statement (or nil).
// Compile errors are returned as an errors.List without touching the
// VM's state.
func (vm *VM) Eval(source string) (*values.Value, error) {
	comp := compiler.New(source, vm.interns)
	chunk := comp.Compile()
	if comp.Errors().HasErrors() {
		return nil, comp.Errors()
	}
	return vm.Run(chunk)
}

// Call invokes a globally bound function by name. The result is
// returned (and, per the embedding contract, also left as the frame's
// final operand-stack value before being popped back to the caller).
func (vm *VM) Call(name string, args ...*values.Value) (*values.Value, error) {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	fnVal, ok := vm.globals[name]
	if !ok || fnVal.Type != values.TypeFunction {
		diag.Logf(diag.Call, "no callable global %q", name)
		return nil, fmt.Errorf("no function named %q", name)
	}
	fn := fnVal.Data.(*values.Function)
	diag.Logf(diag.Call, "call %s with %d args", name, len(args))

	baseFrames := len(vm.frames)
	baseStack := len(vm.stack)
	if err := vm.invokeFunction(fn, nil, args); err != nil {
		vm.pendingException = errToException(err)
		return nil, err
	}
	if fn.Native == nil {
		if err := vm.dispatch(len(vm.frames)); err != nil {
			vm.frames = vm.frames[:baseFrames]
			vm.stack = vm.stack[:baseStack]
			vm.pendingException = errToException(err)
			return nil, err
		}
	}
	if len(vm.stack) > baseStack {
		return vm.pop(), nil
	}
	return values.Nil(), nil
}

// RegisterFunc installs a native callable into globals. The function receives the evaluated arguments and
// its returned value is pushed as the call's result; a returned error
// becomes a RuntimeError exception at the call site.
func (vm *VM) RegisterFunc(name string, fn func(args []*values.Value) (*values.Value, error)) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	vm.globals[name] = values.NewNativeFunction(name, 0, fn)
}

// PendingException returns the exception value parked by the most
// recent uncaught throw, or nil. It stays set until the next Run/Eval
// so the embedder can inspect type, message, frames, and cause chain
// after receiving an error status.
func (vm *VM) PendingException() *values.Value {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.pendingException
}

// StackDepth reports the operand stack's current depth; tests use it
// to assert the stack discipline invariant.
func (vm *VM) StackDepth() int {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return len(vm.stack)
}

// Free releases everything the VM owns: stacks, globals, handler
// frames, the pending exception, and the intern table. The VM must
// not be used afterwards.
func (vm *VM) Free() {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	vm.stack = nil
	vm.frames = nil
	vm.handlers = nil
	vm.globals = map[string]*values.Value{}
	vm.pendingException = nil
	vm.interns = values.NewInternTable()
}

// StatusOf maps an error returned by Eval/Run/Call onto the
// return-code convention: success, compile error,
// runtime error, memory error, or security violation.
func StatusOf(err error) errors.ExitStatus {
	if err == nil {
		return errors.StatusSuccess
	}
	switch e := err.(type) {
	case errors.List:
		return errors.StatusCompileError
	case *execError:
		if exc, ok := e.exc.Data.(*values.Exception); ok {
			switch exc.TypeName {
			case values.ErrMemory:
				return errors.StatusMemoryError
			case values.ErrSecurity:
				return errors.StatusSecurityViolation
			}
		}
		return errors.StatusRuntimeError
	default:
		return errors.StatusRuntimeError
	}
}
