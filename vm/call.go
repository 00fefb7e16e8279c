package vm

import (
	"github.com/wudi/ember/compiler"
	"github.com/wudi/ember/values"
)

// call implements OP_CALL: pop argc arguments and a callee, then
// invoke it. The callee may be a plain Function or a BoundMethod
// produced by property lookup, `super.x`, or GET_SUPER.
func (vm *VM) call(argc int) error {
	args := vm.popArgs(argc)
	callee := vm.pop()

	switch callee.Type {
	case values.TypeFunction:
		return vm.invokeFunction(callee.Data.(*values.Function), nil, args)
	case values.TypeBoundMethod:
		bm := callee.Data.(*values.BoundMethod)
		return vm.invokeFunction(bm.Method.Data.(*values.Function), bm.Receiver, args)
	default:
		return vm.runtimeError(vm.currentLine(), values.ErrType, "value is not callable")
	}
}

// invoke implements OP_INVOKE: pop argc arguments and a receiver, look
// up name on the receiver's class, and call it.
func (vm *VM) invoke(name string, argc int, line int) error {
	args := vm.popArgs(argc)
	receiver := vm.pop()

	var method *values.Function
	switch receiver.Type {
	case values.TypeRegex:
		return vm.regexInvoke(receiver, name, args, line)
	case values.TypeInstance:
		method, _ = receiver.Data.(*values.Instance).Class.LookupMethod(name)
	case values.TypeClass:
		// static dispatch: look up directly on the class's own method
		// table without walking to an instance.
		method = receiver.Data.(*values.Class).Methods[name]
	default:
		return vm.runtimeError(line, values.ErrType, "property access target is not an object")
	}

	if method == nil {
		if name == "__construct" {
			vm.push(values.Nil())
			return nil
		}
		return vm.runtimeError(line, values.ErrReference, "undefined method '"+name+"'")
	}
	return vm.invokeFunction(method, receiver, args)
}

func (vm *VM) popArgs(argc int) []*values.Value {
	args := make([]*values.Value, argc)
	for i := argc - 1; i >= 0; i-- {
		args[i] = vm.pop()
	}
	return args
}

func (vm *VM) currentLine() int {
	f := vm.currentFrame()
	return f.chunk.LineAt(f.ip - 1)
}

// invokeFunction pushes a new call frame for fn (or, for native
// functions, calls straight through) with receiver bound at local slot
// 0 and args filling the following slots, padding missing arguments
// with nil and ignoring extras past fn.Arity.
func (vm *VM) invokeFunction(fn *values.Function, receiver *values.Value, args []*values.Value) error {
	if fn.Native != nil {
		result, err := fn.Native(args)
		if err != nil {
			return vm.runtimeError(vm.currentLine(), values.ErrRuntime, err.Error())
		}
		if result == nil {
			result = values.Nil()
		}
		vm.push(result)
		return nil
	}

	if len(vm.frames) >= maxFrames {
		return vm.runtimeError(vm.currentLine(), values.ErrMemory, "call stack exceeded maximum depth")
	}

	chunk, _ := fn.Chunk.(*compiler.Chunk)
	base := len(vm.stack)

	if receiver != nil {
		vm.push(receiver)
	} else {
		vm.push(values.Nil())
	}
	for i := 0; i < fn.Arity; i++ {
		if i < len(args) {
			vm.push(args[i])
		} else {
			vm.push(values.Nil())
		}
	}

	vm.frames = append(vm.frames, &frame{fn: fn, chunk: chunk, basePointer: base, receiver: receiver})
	return nil
}
