// Package vm implements Ember's stack-based bytecode interpreter: the
// dispatch loop, call frames, globals, the exception-handler stack,
// and the hooks a module loader and native-function registry plug
// into. The VM is a single mutex-guarded struct; nothing about an
// interpreter instance lives in package-level state.
package vm

import (
	"fmt"
	"sync"

	"github.com/wudi/ember/compiler"
	"github.com/wudi/ember/gc"
	"github.com/wudi/ember/opcodes"
	"github.com/wudi/ember/values"
)

// Importer resolves a module path to its exported namespace object. It
// is implemented by the module package; the VM only depends on this
// narrow interface to avoid an import cycle.
type Importer interface {
	Import(path string) (*values.Value, error)
}

const maxFrames = 256
const stackGrowth = 256

// VM is one Ember virtual machine instance. Every piece of mutable
// interpreter state (stack, globals, intern table, GC) is owned here
// rather than in package-level variables, so a pool can
// run many VMs concurrently without cross-talk.
type VM struct {
	mu sync.Mutex

	stack []*values.Value
	sp    int

	frames []*frame

	globals map[string]*values.Value
	interns *values.InternTable

	handlers []handlerFrame
	pendingException *values.Value

	gc *gc.Collector

	Importer Importer

	lastValue *values.Value // most recently popped statement result, handed back to eval/REPL callers
}

// New creates a VM with its own globals, intern table, and collector.
func New() *VM {
	return &VM{
		stack:   make([]*values.Value, 0, stackGrowth),
		globals: make(map[string]*values.Value),
		interns: values.NewInternTable(),
		gc:      gc.New(),
	}
}

func (vm *VM) Interns() *values.InternTable { return vm.interns }
func (vm *VM) GC() *gc.Collector            { return vm.gc }

// Globals exposes the global binding table so a registry can install
// native functions before Run is called.
func (vm *VM) Globals() map[string]*values.Value { return vm.globals }

// Roots implements gc.RootProvider: globals, the operand stack, every
// call frame's locals window, the pending exception, and the intern
// table.
func (vm *VM) Roots() []*values.Value {
	out := make([]*values.Value, 0, len(vm.globals)+len(vm.stack)+1)
	for _, v := range vm.globals {
		out = append(out, v)
	}
	out = append(out, vm.stack...)
	if vm.pendingException != nil {
		out = append(out, vm.pendingException)
	}
	out = append(out, vm.interns.Roots()...)
	return out
}

func (vm *VM) push(v *values.Value) {
	vm.stack = append(vm.stack, v)
}

func (vm *VM) pop() *values.Value {
	n := len(vm.stack)
	v := vm.stack[n-1]
	vm.stack = vm.stack[:n-1]
	return v
}

func (vm *VM) peek(distanceFromTop int) *values.Value {
	return vm.stack[len(vm.stack)-1-distanceFromTop]
}

func (vm *VM) currentFrame() *frame { return vm.frames[len(vm.frames)-1] }

// Run executes chunk as a top-level script (or a loaded module body)
// to completion and returns the final popped value, if any remained on
// the stack.
func (vm *VM) Run(chunk *compiler.Chunk) (*values.Value, error) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	vm.pendingException = nil
	return vm.runChunkLocked(chunk)
}

// runChunkLocked pushes chunk as a new frame and dispatches until that
// frame (and anything it calls) returns, assuming the caller already
// holds vm.mu. It is also how nested execution — module bodies run by
// RunModuleLocked mid-import — happens without re-entering the mutex.
//
// On an uncaught exception the frame and operand stacks are unwound to
// their entry depth and the exception value is parked in the VM's
// pending-exception slot so the embedder can retrieve it after the
// error return.
func (vm *VM) runChunkLocked(chunk *compiler.Chunk) (*values.Value, error) {
	baseFrames := len(vm.frames)
	baseStack := len(vm.stack)
	vm.frames = append(vm.frames, &frame{chunk: chunk, basePointer: len(vm.stack)})
	stopDepth := len(vm.frames)
	vm.lastValue = nil

	if err := vm.dispatch(stopDepth); err != nil {
		vm.frames = vm.frames[:baseFrames]
		vm.stack = vm.stack[:baseStack]
		vm.pendingException = errToException(err)
		return nil, err
	}
	if len(vm.stack) > baseStack {
		return vm.pop(), nil
	}
	if vm.lastValue != nil {
		// The chunk ended with an expression statement whose result was
		// popped; hand that result back for eval/REPL callers.
		return vm.lastValue, nil
	}
	return values.Nil(), nil
}

// dispatch runs the fetch-decode-execute loop until the frame stack
// depth drops below stopDepth, i.e. until the frame pushed by the
// caller (and everything it transitively called) has completed.
func (vm *VM) dispatch(stopDepth int) error {
	for {
		if len(vm.frames) < stopDepth {
			return nil
		}
		f := vm.currentFrame()
		if f.ip >= len(f.chunk.Code) {
			// fell off the end of a chunk without an explicit RETURN/HALT
			vm.frames = vm.frames[:len(vm.frames)-1]
			if len(vm.frames) < stopDepth {
				return nil
			}
			vm.push(values.Nil())
			continue
		}
		op := opcodes.Op(f.chunk.Code[f.ip])
		line := f.chunk.LineAt(f.ip)
		f.ip++

		switch op {
		case opcodes.OP_PUSH_CONST:
			idx := vm.readByte()
			vm.push(f.chunk.Constants[idx])

		case opcodes.OP_POP:
			vm.lastValue = vm.pop()

		case opcodes.OP_DUP:
			vm.push(vm.peek(0))

		case opcodes.OP_GET_LOCAL:
			slot := vm.readByte()
			vm.push(vm.stack[f.basePointer+int(slot)])

		case opcodes.OP_SET_LOCAL:
			slot := vm.readByte()
			vm.stack[f.basePointer+int(slot)] = vm.peek(0)

		case opcodes.OP_GET_GLOBAL:
			name := vm.constantName()
			v, ok := vm.globals[name]
			if !ok {
				v = values.Nil()
			}
			vm.push(v)

		case opcodes.OP_SET_GLOBAL:
			name := vm.constantName()
			vm.globals[name] = vm.peek(0)

		case opcodes.OP_ADD, opcodes.OP_SUB, opcodes.OP_MUL, opcodes.OP_DIV, opcodes.OP_MOD:
			if err := vm.arithmetic(op, line); err != nil {
				if !vm.unwindOrReturn(&err) {
					return err
				}
			}

		case opcodes.OP_NEGATE:
			a := vm.pop()
			if !a.IsNumber() {
				if err := vm.runtimeError(line, values.ErrType, "cannot negate a non-number"); !vm.unwindOrReturn(&err) {
					return err
				}
				continue
			}
			vm.push(values.Number(-a.AsNumber()))

		case opcodes.OP_NOT:
			a := vm.pop()
			vm.push(values.Bool(!a.Truthy()))

		case opcodes.OP_AND:
			b, a := vm.pop(), vm.pop()
			vm.push(values.Bool(a.Truthy() && b.Truthy()))

		case opcodes.OP_OR:
			b, a := vm.pop(), vm.pop()
			vm.push(values.Bool(a.Truthy() || b.Truthy()))

		case opcodes.OP_EQUAL:
			b, a := vm.pop(), vm.pop()
			vm.push(values.Bool(values.Equal(a, b)))

		case opcodes.OP_NOT_EQUAL:
			b, a := vm.pop(), vm.pop()
			vm.push(values.Bool(!values.Equal(a, b)))

		case opcodes.OP_LESS, opcodes.OP_LESS_EQUAL, opcodes.OP_GREATER, opcodes.OP_GREATER_EQUAL:
			if err := vm.comparison(op, line); err != nil {
				if !vm.unwindOrReturn(&err) {
					return err
				}
			}

		case opcodes.OP_JUMP:
			offset := vm.readByte()
			f.ip += int(offset)

		case opcodes.OP_JUMP_IF_FALSE:
			offset := vm.readByte()
			if !vm.peek(0).Truthy() {
				f.ip += int(offset)
			}

		case opcodes.OP_LOOP:
			offset := vm.readByte()
			f.ip -= int(offset)

		case opcodes.OP_HALT:
			vm.frames = vm.frames[:len(vm.frames)-1]
			if len(vm.frames) < stopDepth {
				return nil
			}

		case opcodes.OP_RETURN:
			ret := vm.pop()
			if f.fn != nil && f.fn.IsGen {
				ret = values.NewArray(f.genYields...)
			}
			vm.stack = vm.stack[:f.basePointer]
			vm.frames = vm.frames[:len(vm.frames)-1]
			vm.push(ret)
			if len(vm.frames) < stopDepth {
				return nil
			}

		case opcodes.OP_CALL:
			argc := int(vm.readByte())
			if err := vm.call(argc); err != nil {
				if !vm.unwindOrReturn(&err) {
					return err
				}
			}

		case opcodes.OP_ARRAY_NEW:
			count := int(vm.readByte())
			elems := make([]*values.Value, count)
			for i := count - 1; i >= 0; i-- {
				elems[i] = vm.pop()
			}
			arr := values.NewArray(elems...)
			vm.gc.Track(arr.Data.(values.Object))
			vm.push(arr)
			vm.maybeCollect()

		case opcodes.OP_ARRAY_GET:
			// Subscript read: arrays index by number, maps by any key.
			idx, target := vm.pop(), vm.pop()
			switch target.Type {
			case values.TypeArray:
				a := target.Data.(*values.Array)
				v, ok := a.Get(int(idx.AsNumber()))
				if !ok {
					if err := vm.runtimeError(line, values.ErrRange, "array index out of range"); !vm.unwindOrReturn(&err) {
						return err
					}
					continue
				}
				vm.push(v)
			case values.TypeMap:
				v, ok := target.Data.(*values.Map).Get(idx)
				if !ok {
					v = values.Nil()
				}
				vm.push(v)
			default:
				if err := vm.runtimeError(line, values.ErrType, "subscript target is not an array or map"); !vm.unwindOrReturn(&err) {
					return err
				}
			}

		case opcodes.OP_ARRAY_SET:
			val, idx, target := vm.pop(), vm.pop(), vm.pop()
			switch target.Type {
			case values.TypeArray:
				if !target.Data.(*values.Array).Set(int(idx.AsNumber()), val) {
					if err := vm.runtimeError(line, values.ErrRange, "array index out of range"); !vm.unwindOrReturn(&err) {
						return err
					}
					continue
				}
			case values.TypeMap:
				target.Data.(*values.Map).Insert(idx, val)
			default:
				if err := vm.runtimeError(line, values.ErrType, "subscript target is not an array or map"); !vm.unwindOrReturn(&err) {
					return err
				}
				continue
			}
			vm.gc.WriteBarrier(target.Data.(values.Object))
			vm.push(val)

		case opcodes.OP_HASH_MAP_NEW:
			m := values.NewMap()
			vm.gc.Track(m.Data.(values.Object))
			vm.push(m)
			vm.maybeCollect()

		case opcodes.OP_HASH_MAP_SET:
			val, key, m := vm.pop(), vm.pop(), vm.peek(0)
			if m.Type == values.TypeMap {
				m.Data.(*values.Map).Insert(key, val)
				vm.gc.WriteBarrier(m.Data.(values.Object))
			}

		case opcodes.OP_HASH_MAP_GET:
			key, m := vm.pop(), vm.pop()
			if m.Type != values.TypeMap {
				vm.push(values.Nil())
				continue
			}
			v, ok := m.Data.(*values.Map).Get(key)
			if !ok {
				v = values.Nil()
			}
			vm.push(v)

		case opcodes.OP_CLASS_DEF:
			name := vm.constantName()
			cls := values.NewClass(name, nil)
			vm.gc.Track(cls.Data.(values.Object))
			vm.push(cls)

		case opcodes.OP_INHERIT:
			super, cls := vm.pop(), vm.peek(0)
			if super.Type != values.TypeClass {
				if err := vm.runtimeError(line, values.ErrType, "superclass must be a class"); !vm.unwindOrReturn(&err) {
					return err
				}
				continue
			}
			cls.Data.(*values.Class).Super = super.Data.(*values.Class)

		case opcodes.OP_METHOD_DEF:
			name := vm.constantName()
			fnVal, cls := vm.pop(), vm.peek(0)
			cls.Data.(*values.Class).Methods[name] = fnVal.Data.(*values.Function)

		case opcodes.OP_INSTANCE_NEW:
			clsVal := vm.pop()
			if clsVal.Type != values.TypeClass {
				if err := vm.runtimeError(line, values.ErrType, "'new' target is not a class"); !vm.unwindOrReturn(&err) {
					return err
				}
				continue
			}
			inst := values.NewInstance(clsVal.Data.(*values.Class))
			vm.gc.Track(inst.Data.(values.Object))
			vm.push(inst)
			vm.maybeCollect()

		case opcodes.OP_GET_PROPERTY:
			name := vm.constantName()
			obj := vm.pop()
			vm.push(vm.getProperty(obj, name))

		case opcodes.OP_SET_PROPERTY:
			name := vm.constantName()
			val, obj := vm.pop(), vm.peek(0)
			if obj.Type == values.TypeInstance {
				obj.Data.(*values.Instance).Fields[name] = val
				vm.gc.WriteBarrier(obj.Data.(values.Object))
			}
			vm.pop()
			vm.push(val)

		case opcodes.OP_GET_SUPER:
			name := vm.constantName()
			receiver := vm.pop()
			var super *values.Class
			if receiver.Type == values.TypeInstance {
				super = receiver.Data.(*values.Instance).Class.Super
			}
			if super == nil {
				if err := vm.runtimeError(line, values.ErrReference, "no superclass method '"+name+"'"); !vm.unwindOrReturn(&err) {
					return err
				}
				continue
			}
			method, _ := super.LookupMethod(name)
			if method == nil {
				if err := vm.runtimeError(line, values.ErrReference, "undefined superclass method '"+name+"'"); !vm.unwindOrReturn(&err) {
					return err
				}
				continue
			}
			vm.push(values.NewBoundMethod(receiver, &values.Value{Type: values.TypeFunction, Data: method}))

		case opcodes.OP_INVOKE:
			nameIdx := vm.readByte()
			name := stringConstant(f.chunk, int(nameIdx))
			argc := int(vm.readByte())
			if err := vm.invoke(name, argc, line); err != nil {
				if !vm.unwindOrReturn(&err) {
					return err
				}
			}

		case opcodes.OP_TRY_BEGIN:
			offset := int(vm.readByte())
			vm.handlers = append(vm.handlers, handlerFrame{
				catchIP:    f.ip + offset,
				stackDepth: len(vm.stack),
				frameDepth: len(vm.frames) - 1,
			})

		case opcodes.OP_TRY_END:
			if len(vm.handlers) > 0 {
				vm.handlers = vm.handlers[:len(vm.handlers)-1]
			}

		case opcodes.OP_CATCH_BEGIN:
			slot := vm.readByte()
			exc := vm.pendingException
			vm.pendingException = nil
			if slot != 0xff {
				if exc == nil {
					exc = values.Nil()
				}
				// The binding occupies a fresh local slot; the stack was
				// unwound to the handler's recorded depth, so the slot is
				// the next free position in this frame's window.
				idx := f.basePointer + int(slot)
				for len(vm.stack) <= idx {
					vm.push(values.Nil())
				}
				vm.stack[idx] = exc
			}

		case opcodes.OP_CATCH_END:
			// marker only

		case opcodes.OP_FINALLY_BEGIN:
			// marker only; vm.pendingException, if set, survives into the
			// finally block so FINALLY_END can decide whether to rethrow

		case opcodes.OP_FINALLY_END:
			if vm.pendingException != nil {
				exc := vm.pendingException
				vm.pendingException = nil
				if err := vm.raiseException(exc); err != nil {
					return err
				}
			}

		case opcodes.OP_THROW:
			exc := vm.pop()
			if err := vm.raiseException(exc); err != nil {
				return err
			}

		case opcodes.OP_CASE:
			caseVal, subject := vm.pop(), vm.peek(0)
			vm.push(values.Bool(values.Equal(subject, caseVal)))

		case opcodes.OP_DEFAULT:
			// marker only

		case opcodes.OP_STRING_INTERPOLATE:
			n := int(vm.readByte())
			vm.push(vm.interpolate(n))

		case opcodes.OP_IMPORT:
			idx := vm.readByte()
			path := f.chunk.Constants[idx].AsString()
			if vm.Importer == nil {
				if err := vm.runtimeError(line, values.ErrReference, "module system not configured"); !vm.unwindOrReturn(&err) {
					return err
				}
				continue
			}
			mod, err := vm.Importer.Import(path)
			if err != nil {
				if werr := vm.runtimeErrorFrom(line, values.ErrIO, err.Error()); !vm.unwindOrReturn(&werr) {
					return werr
				}
				continue
			}
			vm.push(mod)

		case opcodes.OP_EXPORT:
			name := vm.constantName()
			vm.globals[exportPrefix+name] = vm.peek(0)

		case opcodes.OP_EXPORT_DEFAULT:
			vm.globals[exportPrefix+"default"] = vm.peek(0)

		case opcodes.OP_AWAIT:
			p := vm.pop()
			if p.Type != values.TypePromise {
				vm.push(p) // awaiting a non-promise value simply yields it
				continue
			}
			promise := p.Data.(*values.Promise)
			if promise.State == values.PromisePending {
				if err := vm.runtimeError(line, values.ErrRuntime, "awaited promise never settled"); !vm.unwindOrReturn(&err) {
					return err
				}
				continue
			}
			if promise.State == values.PromiseRejected {
				if err := vm.raiseException(promise.Result); err != nil {
					return err
				}
				continue
			}
			vm.push(promise.Result)

		case opcodes.OP_YIELD:
			val := vm.pop()
			f.genYields = append(f.genYields, val)
			vm.push(values.Nil()) // a yield expression's own value is nil

		case opcodes.OP_REGEX_NEW, opcodes.OP_REGEX_TEST, opcodes.OP_REGEX_MATCH,
			opcodes.OP_REGEX_REPLACE, opcodes.OP_REGEX_SPLIT:
			if err := vm.regexOp(op, line); err != nil {
				if !vm.unwindOrReturn(&err) {
					return err
				}
			}

		default:
			if err := vm.runtimeError(line, values.ErrRuntime, fmt.Sprintf("unimplemented opcode %s", op)); !vm.unwindOrReturn(&err) {
				return err
			}
		}
	}
}

// maybeCollect runs a collection cycle when allocation pressure has
// crossed the collector's adaptive threshold. Called after each
// allocating opcode; the VM itself is the root provider.
func (vm *VM) maybeCollect() {
	if vm.gc.ShouldCollect() {
		vm.gc.Collect(vm)
	}
}

func (vm *VM) readByte() byte {
	f := vm.currentFrame()
	b := f.chunk.Code[f.ip]
	f.ip++
	return b
}

func (vm *VM) constantName() string {
	idx := vm.readByte()
	return stringConstant(vm.currentFrame().chunk, int(idx))
}

func stringConstant(chunk *compiler.Chunk, idx int) string {
	return chunk.Constants[idx].AsString()
}

func (vm *VM) getProperty(obj *values.Value, name string) *values.Value {
	switch obj.Type {
	case values.TypeInstance:
		inst := obj.Data.(*values.Instance)
		if v, ok := inst.Fields[name]; ok {
			return v
		}
		if method, _ := inst.Class.LookupMethod(name); method != nil {
			return values.NewBoundMethod(obj, &values.Value{Type: values.TypeFunction, Data: method})
		}
	case values.TypeClass:
		cls := obj.Data.(*values.Class)
		if v, ok := cls.Statics[name]; ok {
			return v
		}
	}
	return values.Nil()
}
