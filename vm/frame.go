package vm

import (
	"github.com/wudi/ember/compiler"
	"github.com/wudi/ember/values"
)

// frame is one activation record: the chunk currently executing, the
// instruction pointer into it, the stack index its locals start at,
// and (for methods) the bound receiver.
type frame struct {
	fn          *values.Function
	chunk       *compiler.Chunk
	ip          int
	basePointer int
	receiver    *values.Value

	// genYields accumulates OP_YIELD values when fn.IsGen; OP_RETURN
	// turns the collected sequence into the frame's result array.
	genYields []*values.Value
}

// handlerFrame is one entry of the exception-handler stack a TRY_BEGIN
// pushes and a TRY_END/exception unwind pops. It mirrors the
// compiler's tryCtx backpatch bookkeeping at runtime.
type handlerFrame struct {
	catchIP    int // instruction to transfer to when an exception is raised
	stackDepth int // operand stack depth to restore to on unwind
	frameDepth int // call-frame depth this handler belongs to
}
