package vm

import "github.com/wudi/ember/values"

// execError wraps an Ember exception Value so it can travel through Go
// error returns until raiseException decides whether a handler catches
// it or it becomes the VM's final, uncaught error.
type execError struct {
	exc *values.Value
}

func (e *execError) Error() string {
	if exc, ok := e.exc.Data.(*values.Exception); ok {
		return exc.String()
	}
	return "uncaught exception"
}

// runtimeError builds a normalized Exception value and returns it
// as an error without yet consulting the handler stack.
func (vm *VM) runtimeError(line int, kind values.ErrorTaxonomy, msg string) error {
	exc := values.NewException(kind, msg, line, 0)
	exc.Data.(*values.Exception).Frames = vm.captureFrames()
	return &execError{exc: exc}
}

// runtimeErrorFrom is an alias used at sites wrapping a foreign error
// (e.g. a module load failure) rather than a VM-detected condition.
func (vm *VM) runtimeErrorFrom(line int, kind values.ErrorTaxonomy, msg string) error {
	return vm.runtimeError(line, kind, msg)
}

func (vm *VM) captureFrames() []values.Frame {
	out := make([]values.Frame, 0, len(vm.frames))
	for i := len(vm.frames) - 1; i >= 0; i-- {
		f := vm.frames[i]
		name := "<script>"
		if f.fn != nil {
			name = f.fn.Name
		}
		out = append(out, values.Frame{Function: name, Line: f.chunk.LineAt(f.ip)})
	}
	return out
}

func errToException(err error) *values.Value {
	if ee, ok := err.(*execError); ok {
		return ee.exc
	}
	return values.NewException(values.ErrRuntime, err.Error(), 0, 0)
}

// unwindOrReturn converts *err (a freshly raised error) into an
// exception value and asks raiseException to find a handler. It
// returns true when a handler was found (dispatch should continue, the
// handler's opcodes run next) or false when the exception escaped
// every frame, leaving the final error in *err.
func (vm *VM) unwindOrReturn(err *error) bool {
	exc := errToException(*err)
	if e2 := vm.raiseException(exc); e2 != nil {
		*err = e2
		return false
	}
	return true
}

// raiseException walks the handler stack from innermost outward,
// popping call frames that have no handler of their own, until it
// finds one whose catchIP it can jump the offending frame to. Returns
// nil once execution is repositioned at a handler; returns a non-nil
// error (the final, uncaught exception) once the handler stack and
// call stack are both exhausted.
func (vm *VM) raiseException(exc *values.Value) error {
	for {
		if len(vm.handlers) == 0 {
			return &execError{exc: exc}
		}
		h := vm.handlers[len(vm.handlers)-1]
		vm.handlers = vm.handlers[:len(vm.handlers)-1]

		if h.frameDepth >= len(vm.frames) {
			continue
		}
		if h.frameDepth < len(vm.frames)-1 {
			vm.frames = vm.frames[:h.frameDepth+1]
		}
		if h.stackDepth <= len(vm.stack) {
			vm.stack = vm.stack[:h.stackDepth]
		}
		vm.pendingException = exc
		vm.currentFrame().ip = h.catchIP
		return nil
	}
}
