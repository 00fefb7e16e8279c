package compiler

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wudi/ember/opcodes"
	"github.com/wudi/ember/values"
)

func compileSrc(t *testing.T, src string) (*Chunk, *Compiler) {
	t.Helper()
	c := New(src, values.NewInternTable())
	chunk := c.Compile()
	return chunk, c
}

// walkJumps decodes the instruction stream and asserts every forward
// and backward jump lands inside the chunk — i.e. every placeholder
// was backpatched before emission finished.
func walkJumps(t *testing.T, chunk *Chunk) {
	t.Helper()
	for offset := 0; offset < len(chunk.Code); {
		op := opcodes.Op(chunk.Code[offset])
		n := op.Operands()
		switch op {
		case opcodes.OP_JUMP, opcodes.OP_JUMP_IF_FALSE, opcodes.OP_TRY_BEGIN:
			operand := int(chunk.Code[offset+1])
			target := offset + 2 + operand
			require.LessOrEqual(t, target, len(chunk.Code),
				"forward jump at %d overshoots the chunk", offset)
		case opcodes.OP_LOOP:
			operand := int(chunk.Code[offset+1])
			target := offset + 2 - operand
			require.GreaterOrEqual(t, target, 0,
				"backward jump at %d undershoots the chunk", offset)
		}
		offset += 1 + n
	}
}

func TestArithmeticEmitsExpectedOpcodes(t *testing.T) {
	chunk, c := compileSrc(t, `1 + 2 * 3`)
	require.False(t, c.Errors().HasErrors())

	require.Contains(t, chunk.Code, byte(opcodes.OP_ADD))
	require.Contains(t, chunk.Code, byte(opcodes.OP_MUL))
	require.Equal(t, byte(opcodes.OP_HALT), chunk.Code[len(chunk.Code)-1])
	// 2 * 3 binds tighter, so MUL is emitted before ADD.
	mulAt := strings.IndexByte(string(chunk.Code), byte(opcodes.OP_MUL))
	addAt := strings.IndexByte(string(chunk.Code), byte(opcodes.OP_ADD))
	require.Less(t, mulAt, addAt)
}

func TestControlFlowJumpsArePatched(t *testing.T) {
	src := `
		x = 0
		if (x < 1) { x = 1 } else { x = 2 }
		while (x < 10) { x = x + 1  if (x == 5) break }
		for (i = 0; i < 3; i = i + 1) { if (i == 1) continue  x = x + i }
		switch (x) { case 1: x = 10 case 2: x = 20 default: x = 30 }
		try { throw "e" } catch (err) { x = 99 } finally { x = 100 }
	`
	chunk, c := compileSrc(t, src)
	require.False(t, c.Errors().HasErrors(), c.Errors().String())
	walkJumps(t, chunk)
}

func TestBreakOutsideLoopIsError(t *testing.T) {
	_, c := compileSrc(t, `break`)
	require.True(t, c.Errors().HasErrors())
	require.Contains(t, c.Errors().String(), "'break' outside")
}

func TestContinueOutsideLoopIsError(t *testing.T) {
	_, c := compileSrc(t, `continue`)
	require.True(t, c.Errors().HasErrors())
	require.Contains(t, c.Errors().String(), "'continue' outside")
}

func TestReturnOutsideFunctionIsError(t *testing.T) {
	_, c := compileSrc(t, `return 1`)
	require.True(t, c.Errors().HasErrors())
}

func TestTryRequiresCatchOrFinally(t *testing.T) {
	_, c := compileSrc(t, `try { x = 1 }`)
	require.True(t, c.Errors().HasErrors())
	require.Contains(t, c.Errors().String(), "catch")
}

func TestAwaitOutsideAsyncFunctionIsError(t *testing.T) {
	_, c := compileSrc(t, `function f() { return await 1 }`)
	require.True(t, c.Errors().HasErrors())
	require.Contains(t, c.Errors().String(), "async")

	_, c2 := compileSrc(t, `async function g() { return await 1 }`)
	require.False(t, c2.Errors().HasErrors())
}

func TestYieldAtScriptScopeIsError(t *testing.T) {
	_, c := compileSrc(t, `yield 1`)
	require.True(t, c.Errors().HasErrors())

	_, c2 := compileSrc(t, `function g() { yield 1 }`)
	require.False(t, c2.Errors().HasErrors())
}

func TestThisAndSuperOutsideMethodAreErrors(t *testing.T) {
	_, c := compileSrc(t, `x = this`)
	require.True(t, c.Errors().HasErrors())

	_, c2 := compileSrc(t, `function f() { return super.x() }`)
	require.True(t, c2.Errors().HasErrors())
}

func TestLoopNestingDepthIsBounded(t *testing.T) {
	var b strings.Builder
	for i := 0; i < maxLoopDepth+1; i++ {
		b.WriteString("while (true) { ")
	}
	b.WriteString("x = 1")
	for i := 0; i < maxLoopDepth+1; i++ {
		b.WriteString(" }")
	}
	_, c := compileSrc(t, b.String())
	require.True(t, c.Errors().HasErrors())
	require.Contains(t, c.Errors().String(), "nested too deeply")
}

func TestJumpOffsetTooLargeIsReported(t *testing.T) {
	var b strings.Builder
	b.WriteString("if (x) { ")
	for i := 0; i < 80; i++ {
		b.WriteString("y = 1 ")
	}
	b.WriteString("}")
	_, c := compileSrc(t, b.String())
	require.True(t, c.Errors().HasErrors())
	require.Contains(t, c.Errors().String(), "jump offset too large")
}

func TestConstantPoolIsCapped(t *testing.T) {
	chunk := NewChunk("<cap>")
	for i := 0; i < maxConstants; i++ {
		require.GreaterOrEqual(t, chunk.AddConstant(values.Number(float64(i))), 0)
	}
	require.Equal(t, -1, chunk.AddConstant(values.Number(1)))
}

func TestChunkLineTableTracksOffsets(t *testing.T) {
	chunk := NewChunk("<lines>")
	chunk.Write(byte(opcodes.OP_POP), 3)
	chunk.Write(byte(opcodes.OP_HALT), 7)
	require.Equal(t, 3, chunk.LineAt(0))
	require.Equal(t, 7, chunk.LineAt(1))
	require.Equal(t, -1, chunk.LineAt(9))

	chunk.Free()
	require.Nil(t, chunk.Code)
	require.Nil(t, chunk.Constants)
}

func TestImportFormsCompile(t *testing.T) {
	srcs := []string{
		`import "util"`,
		`import { a, b } from "util"`,
		`import * as u from "util"`,
		`import d from "util"`,
	}
	for _, src := range srcs {
		_, c := compileSrc(t, src)
		require.False(t, c.Errors().HasErrors(), "%s: %s", src, c.Errors().String())
	}
}

func TestImportRejectsMissingPath(t *testing.T) {
	_, c := compileSrc(t, `import { a } from 42`)
	require.True(t, c.Errors().HasErrors())
}

func TestExportFormsCompile(t *testing.T) {
	srcs := []string{
		`export fn f() { return 1 }`,
		`export default 42`,
		`export x = 1`,
		`export class C { m() { return 1 } }`,
	}
	for _, src := range srcs {
		chunk, c := compileSrc(t, src)
		require.False(t, c.Errors().HasErrors(), "%s: %s", src, c.Errors().String())
		require.Contains(t, chunk.Code, byte(opcodes.OP_EXPORT))
	}
}

func TestPanicModeRecoversAndKeepsReporting(t *testing.T) {
	_, c := compileSrc(t, `
		if (
		while [
	`)
	require.True(t, c.Errors().HasErrors())
	require.GreaterOrEqual(t, c.Errors().Count(), 2)
}

func TestFunctionValueCarriesArityAndFlags(t *testing.T) {
	chunk, c := compileSrc(t, `function pair(a, b) { yield a  yield b }`)
	require.False(t, c.Errors().HasErrors())

	var fn *values.Function
	for _, constant := range chunk.Constants {
		if constant.Type == values.TypeFunction {
			fn = constant.Data.(*values.Function)
		}
	}
	require.NotNil(t, fn)
	require.Equal(t, "pair", fn.Name)
	require.Equal(t, 2, fn.Arity)
	require.True(t, fn.IsGen)
	require.False(t, fn.IsAsync)
}

func TestDisassembleResolvesConstants(t *testing.T) {
	chunk, c := compileSrc(t, `x = "hello"`)
	require.False(t, c.Errors().HasErrors())
	out := chunk.Disassemble()
	require.Contains(t, out, "PUSH_CONST")
	require.Contains(t, out, "hello")
	require.Contains(t, out, "SET_GLOBAL")
}

func TestInterpolationSpansCompileInEnclosingScope(t *testing.T) {
	chunk, c := compileSrc(t, `function f(x) { return "v=${x}" }`)
	require.False(t, c.Errors().HasErrors(), c.Errors().String())

	var fn *values.Function
	for _, constant := range chunk.Constants {
		if constant.Type == values.TypeFunction {
			fn = constant.Data.(*values.Function)
		}
	}
	require.NotNil(t, fn)
	body := fn.Chunk.(*Chunk)
	require.Contains(t, body.Code, byte(opcodes.OP_GET_LOCAL),
		"${x} must read the parameter's local slot")
	require.Contains(t, body.Code, byte(opcodes.OP_STRING_INTERPOLATE))
	require.NotContains(t, body.Code, byte(opcodes.OP_GET_GLOBAL))
}

func TestInterpolatedStringIsDistinctToken(t *testing.T) {
	chunk, c := compileSrc(t, `x = "a ${1 + 1} b"`)
	require.False(t, c.Errors().HasErrors())
	require.Contains(t, chunk.Code, byte(opcodes.OP_STRING_INTERPOLATE))

	plain, c2 := compileSrc(t, `x = "a b"`)
	require.False(t, c2.Errors().HasErrors())
	require.NotContains(t, plain.Code, byte(opcodes.OP_STRING_INTERPOLATE))
}
