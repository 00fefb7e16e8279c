package compiler

import (
	"github.com/wudi/ember/lexer"
	"github.com/wudi/ember/opcodes"
	"github.com/wudi/ember/values"
)

// Prime fills the one-token lookahead before the first declaration is
// parsed.
func (c *Compiler) Prime() {
	c.advance()
}

// Compile consumes the entire token stream and emits a top-level
// script chunk terminated by OP_HALT. It is the compiler's single
// entry point from outside the package.
func (c *Compiler) Compile() *Chunk {
	c.Prime()
	for !c.check(lexer.TOKEN_EOF) {
		c.declaration()
	}
	c.emitOp(opcodes.OP_HALT)
	return c.chunk
}

func (c *Compiler) declaration() {
	switch {
	case c.matchTok(lexer.TOKEN_ASYNC):
		if c.matchTok(lexer.TOKEN_FUNCTION) || c.matchTok(lexer.TOKEN_FN) {
			c.functionDeclaration(true)
		} else {
			c.errorAtCurrent("expected 'function' after 'async'")
		}
	case c.matchTok(lexer.TOKEN_FUNCTION) || c.matchTok(lexer.TOKEN_FN):
		c.functionDeclaration(false)
	case c.matchTok(lexer.TOKEN_CLASS):
		c.classDeclaration()
	case c.matchTok(lexer.TOKEN_IMPORT):
		c.importStatement()
	case c.matchTok(lexer.TOKEN_EXPORT):
		c.exportStatement()
	default:
		c.statement()
	}
	if c.reporter.PanicMode {
		c.synchronize()
	}
}

func (c *Compiler) statement() {
	switch {
	case c.matchTok(lexer.TOKEN_IF):
		c.ifStatement()
	case c.matchTok(lexer.TOKEN_WHILE):
		c.whileStatement()
	case c.matchTok(lexer.TOKEN_FOR):
		c.forStatement()
	case c.matchTok(lexer.TOKEN_BREAK):
		c.breakStatement()
	case c.matchTok(lexer.TOKEN_CONTINUE):
		c.continueStatement()
	case c.matchTok(lexer.TOKEN_RETURN):
		c.returnStatement()
	case c.matchTok(lexer.TOKEN_TRY):
		c.tryStatement()
	case c.matchTok(lexer.TOKEN_THROW):
		c.throwStatement()
	case c.matchTok(lexer.TOKEN_SWITCH):
		c.switchStatement()
	case c.matchTok(lexer.TOKEN_LBRACE):
		c.beginScope()
		c.block()
		c.endScope()
	default:
		c.expressionStatement()
	}
}

func (c *Compiler) block() {
	for !c.check(lexer.TOKEN_RBRACE) && !c.check(lexer.TOKEN_EOF) {
		c.declaration()
	}
	c.consume(lexer.TOKEN_RBRACE, "expected '}' after block")
}

// expressionStatement compiles `expr ;` — the result is always discarded
// with POP. The VM remembers the most recently popped value, which is
// how Eval and the REPL get the value of a trailing expression statement.
func (c *Compiler) expressionStatement() {
	c.expression()
	c.optionalSemicolon()
	c.emitOp(opcodes.OP_POP)
}

// optionalSemicolon accepts a terminating ';'. Statements end at a
// newline or semicolon; since the lexer does not emit newline tokens,
// ';' is consumed when present and simply optional otherwise.
func (c *Compiler) optionalSemicolon() {
	c.matchTok(lexer.TOKEN_SEMICOLON)
}

// --- if / while / for -----------------------------------------------------

func (c *Compiler) ifStatement() {
	c.consume(lexer.TOKEN_LPAREN, "expected '(' after 'if'")
	c.expression()
	c.consume(lexer.TOKEN_RPAREN, "expected ')' after condition")

	thenJump := c.emitJump(opcodes.OP_JUMP_IF_FALSE)
	c.emitOp(opcodes.OP_POP)
	c.statement()

	elseJump := c.emitJump(opcodes.OP_JUMP)
	c.patchJump(thenJump)
	c.emitOp(opcodes.OP_POP)

	if c.matchTok(lexer.TOKEN_ELSE) {
		c.statement()
	}
	c.patchJump(elseJump)
}

func (c *Compiler) pushLoop(continueTarget int) {
	if len(c.loops) >= maxLoopDepth {
		c.errorAtPrevious("loops nested too deeply")
	}
	c.loops = append(c.loops, loopCtx{continueTarget: continueTarget})
}

func (c *Compiler) popLoop() loopCtx {
	l := c.loops[len(c.loops)-1]
	c.loops = c.loops[:len(c.loops)-1]
	return l
}

func (c *Compiler) patchLoopBreaks(l loopCtx) {
	for _, offset := range l.breakJumps {
		c.patchJump(offset)
	}
}

func (c *Compiler) whileStatement() {
	loopStart := len(c.chunk.Code)
	c.pushLoop(loopStart)

	c.consume(lexer.TOKEN_LPAREN, "expected '(' after 'while'")
	c.expression()
	c.consume(lexer.TOKEN_RPAREN, "expected ')' after condition")

	exitJump := c.emitJump(opcodes.OP_JUMP_IF_FALSE)
	c.emitOp(opcodes.OP_POP)
	c.statement()
	c.emitLoop(loopStart)

	c.patchJump(exitJump)
	c.emitOp(opcodes.OP_POP)
	c.patchLoopBreaks(c.popLoop())
}

func (c *Compiler) forStatement() {
	c.beginScope()
	c.consume(lexer.TOKEN_LPAREN, "expected '(' after 'for'")

	// init
	if !c.check(lexer.TOKEN_SEMICOLON) {
		c.expressionStatement()
	} else {
		c.advance()
	}

	loopStart := len(c.chunk.Code)
	exitJump := -1
	if !c.check(lexer.TOKEN_SEMICOLON) {
		c.expression()
		exitJump = c.emitJump(opcodes.OP_JUMP_IF_FALSE)
		c.emitOp(opcodes.OP_POP)
	}
	c.consume(lexer.TOKEN_SEMICOLON, "expected ';' after loop condition")

	bodyJump := -1
	incrStart := loopStart
	if !c.check(lexer.TOKEN_RPAREN) {
		bodyJump = c.emitJump(opcodes.OP_JUMP)
		incrStart = len(c.chunk.Code)
		c.expression()
		c.emitOp(opcodes.OP_POP)
		c.emitLoop(loopStart)
		c.patchJump(bodyJump)
	}
	c.consume(lexer.TOKEN_RPAREN, "expected ')' after for clauses")

	// The body's back-edge and `continue` both target the increment
	// clause when present (incrStart equals loopStart otherwise, so the
	// clauseless form re-checks the condition directly).
	c.pushLoop(incrStart)
	c.statement()
	c.emitLoop(incrStart)

	if exitJump != -1 {
		c.patchJump(exitJump)
		c.emitOp(opcodes.OP_POP)
	}
	c.patchLoopBreaks(c.popLoop())
	c.endScope()
}

func (c *Compiler) breakStatement() {
	if len(c.loops) == 0 {
		c.errorAtPrevious("'break' outside any loop")
		c.optionalSemicolon()
		return
	}
	c.optionalSemicolon()
	jump := c.emitJump(opcodes.OP_JUMP)
	top := &c.loops[len(c.loops)-1]
	top.breakJumps = append(top.breakJumps, jump)
}

func (c *Compiler) continueStatement() {
	if len(c.loops) == 0 {
		c.errorAtPrevious("'continue' outside any loop")
		c.optionalSemicolon()
		return
	}
	c.optionalSemicolon()
	target := c.loops[len(c.loops)-1].continueTarget
	if target < 0 {
		c.errorAtPrevious("'continue' inside a switch")
		return
	}
	c.emitLoop(target)
}

func (c *Compiler) returnStatement() {
	if c.fnType == TypeScript {
		c.errorAtPrevious("'return' outside any function")
	}
	if c.check(lexer.TOKEN_SEMICOLON) {
		c.emitConstant(values.Nil())
	} else {
		c.expression()
	}
	c.optionalSemicolon()
	c.emitOp(opcodes.OP_RETURN)
}

// --- try / catch / finally / throw ---------------------------------------

func (c *Compiler) pushTry() *tryCtx {
	if len(c.tries) >= maxTryDepth {
		c.errorAtPrevious("try blocks nested too deeply")
	}
	c.tries = append(c.tries, tryCtx{})
	return &c.tries[len(c.tries)-1]
}

func (c *Compiler) popTry() { c.tries = c.tries[:len(c.tries)-1] }

// tryStatement compiles try/catch/finally. The try body runs under a
// TRY_BEGIN handler pointing at the catch (or, with no catch, at the
// finally). The catch body runs under a second handler pointing past
// the catch, so a throw inside the catch still reaches the finally
// block before propagating; the closing FINALLY_END rethrows whatever
// exception is still pending once the finally body has completed.
func (c *Compiler) tryStatement() {
	t := c.pushTry()
	t.stackDepth = len(c.locals)

	handlerOffset := c.emitJump(opcodes.OP_TRY_BEGIN)
	t.handlerSlot = handlerOffset

	c.consume(lexer.TOKEN_LBRACE, "expected '{' after 'try'")
	c.beginScope()
	c.block()
	c.endScope()
	c.emitOp(opcodes.OP_TRY_END)
	endJump := c.emitJump(opcodes.OP_JUMP)

	c.patchJump(handlerOffset)

	hasCatch := false
	catchGuard := -1

	if c.matchTok(lexer.TOKEN_CATCH) {
		hasCatch = true
		t.catchStart = len(c.chunk.Code)
		catchGuard = c.emitJump(opcodes.OP_TRY_BEGIN)
		bindSlot := byte(0xff)
		c.beginScope()
		if c.matchTok(lexer.TOKEN_LPAREN) {
			c.consume(lexer.TOKEN_IDENT, "expected exception binding name")
			c.declareLocal(c.previous.Lexeme)
			bindSlot = byte(len(c.locals) - 1)
			c.consume(lexer.TOKEN_RPAREN, "expected ')' after catch binding")
		}
		c.emitOpByte(opcodes.OP_CATCH_BEGIN, bindSlot)
		c.consume(lexer.TOKEN_LBRACE, "expected '{' after catch clause")
		c.block()
		c.emitOp(opcodes.OP_CATCH_END)
		c.endScope()
		c.emitOp(opcodes.OP_TRY_END)
	}

	c.patchJump(endJump)
	if catchGuard != -1 {
		c.patchJump(catchGuard)
	}

	hasFinally := false
	if c.matchTok(lexer.TOKEN_FINALLY) {
		hasFinally = true
		t.finallyStart = len(c.chunk.Code)
		c.emitOp(opcodes.OP_FINALLY_BEGIN)
		c.consume(lexer.TOKEN_LBRACE, "expected '{' after 'finally'")
		c.beginScope()
		c.block()
		c.endScope()
	}
	// Always emitted: rethrows a still-pending exception (the
	// no-catch path, or a throw from inside the catch body) and is a
	// no-op otherwise.
	c.emitOp(opcodes.OP_FINALLY_END)

	if !hasCatch && !hasFinally {
		c.errorAtPrevious("'try' must have a 'catch' or a 'finally'")
	}
	c.popTry()
}

func (c *Compiler) throwStatement() {
	c.expression()
	c.optionalSemicolon()
	c.emitOp(opcodes.OP_THROW)
}

// --- switch ----------------------------------------------------------------

func (c *Compiler) switchStatement() {
	c.consume(lexer.TOKEN_LPAREN, "expected '(' after 'switch'")
	c.expression()
	c.consume(lexer.TOKEN_RPAREN, "expected ')' after switch expression")
	c.consume(lexer.TOKEN_LBRACE, "expected '{' before switch body")

	c.pushLoop(-1) // break targets the switch end; continueStatement rejects the -1 target
	var caseEndJumps []int
	nextCaseJump := -1

	for c.matchTok(lexer.TOKEN_CASE) {
		if nextCaseJump != -1 {
			c.patchJump(nextCaseJump)
			c.emitOp(opcodes.OP_POP) // comparison result of the untaken case
		}
		c.expression() // case value; duplicates the switch value implicitly via OP_CASE
		c.consume(lexer.TOKEN_COLON, "expected ':' after case value")
		c.emitOp(opcodes.OP_CASE)
		nextCaseJump = c.emitJump(opcodes.OP_JUMP_IF_FALSE)
		c.emitOp(opcodes.OP_POP) // comparison result of the taken case
		for !c.check(lexer.TOKEN_CASE) && !c.check(lexer.TOKEN_DEFAULT) && !c.check(lexer.TOKEN_RBRACE) {
			c.statement()
		}
		caseEndJumps = append(caseEndJumps, c.emitJump(opcodes.OP_JUMP))
	}
	if nextCaseJump != -1 {
		c.patchJump(nextCaseJump)
		c.emitOp(opcodes.OP_POP)
	}
	if c.matchTok(lexer.TOKEN_DEFAULT) {
		c.consume(lexer.TOKEN_COLON, "expected ':' after 'default'")
		c.emitOp(opcodes.OP_DEFAULT)
		for !c.check(lexer.TOKEN_RBRACE) {
			c.statement()
		}
	}
	c.consume(lexer.TOKEN_RBRACE, "expected '}' after switch body")
	// Taken-case exits and any `break` inside a case land on the same
	// subject-discarding POP.
	for _, j := range caseEndJumps {
		c.patchJump(j)
	}
	c.patchLoopBreaks(c.popLoop())
	c.emitOp(opcodes.OP_POP)
}

// --- functions & classes ---------------------------------------------------

func (c *Compiler) functionDeclaration(isAsync bool) {
	c.consume(lexer.TOKEN_IDENT, "expected function name")
	name := c.previous.Lexeme
	c.compileFunctionBody(name, TypeFunction, isAsync, false)
	idx := c.nameConstant(name)
	c.emitOpByte(opcodes.OP_SET_GLOBAL, byte(idx))
	c.emitOp(opcodes.OP_POP)
}

// compileFunctionBody parses `( params ) { body }` for a nested
// function/method, compiling it with its own Compiler + Chunk, and
// leaves a function Value constant pushed on the enclosing chunk.
func (c *Compiler) compileFunctionBody(name string, fnType FunctionType, isAsync, isGen bool) {
	nested := newNested(c, name, fnType)
	nested.isAsync = isAsync
	nested.isGen = isGen
	// Parameters and body share the function's own top scope, so they
	// resolve as locals rather than globals.
	nested.beginScope()

	nested.consume(lexer.TOKEN_LPAREN, "expected '(' after function name")
	arity := 0
	if !nested.check(lexer.TOKEN_RPAREN) {
		for {
			nested.consume(lexer.TOKEN_IDENT, "expected parameter name")
			nested.declareLocal(nested.previous.Lexeme)
			arity++
			if !nested.matchTok(lexer.TOKEN_COMMA) {
				break
			}
		}
	}
	nested.consume(lexer.TOKEN_RPAREN, "expected ')' after parameters")
	nested.consume(lexer.TOKEN_LBRACE, "expected '{' before function body")
	nested.block()
	nested.emitConstant(values.Nil())
	nested.emitOp(opcodes.OP_RETURN)

	// Resume the parent's token cursor from the nested compiler (they
	// share the same *lexer.Lexer, so only current/previous need
	// copying back).
	c.current = nested.current
	c.previous = nested.previous

	// A `yield` anywhere in the body marks the function as a generator
	// even when the caller didn't know that up front.
	fnVal := values.NewFunction(name, nested.chunk, arity)
	fnVal.Data.(*values.Function).IsAsync = isAsync || nested.isAsync
	fnVal.Data.(*values.Function).IsGen = isGen || nested.isGen
	c.emitConstant(fnVal)
}

func (c *Compiler) classDeclaration() {
	c.consume(lexer.TOKEN_IDENT, "expected class name")
	name := c.previous.Lexeme
	nameIdx := c.nameConstant(name)

	c.emitOpByte(opcodes.OP_CLASS_DEF, byte(nameIdx))

	if c.matchTok(lexer.TOKEN_EXTENDS) {
		c.consume(lexer.TOKEN_IDENT, "expected superclass name")
		superIdx := c.nameConstant(c.previous.Lexeme)
		c.emitOpByte(opcodes.OP_GET_GLOBAL, byte(superIdx))
		c.emitOp(opcodes.OP_INHERIT)
	}

	c.consume(lexer.TOKEN_LBRACE, "expected '{' before class body")
	for !c.check(lexer.TOKEN_RBRACE) && !c.check(lexer.TOKEN_EOF) {
		c.method()
	}
	c.consume(lexer.TOKEN_RBRACE, "expected '}' after class body")

	idx := c.nameConstant(name)
	c.emitOpByte(opcodes.OP_SET_GLOBAL, byte(idx))
	c.emitOp(opcodes.OP_POP)
}

func (c *Compiler) method() {
	isAsync := c.matchTok(lexer.TOKEN_ASYNC)
	c.consume(lexer.TOKEN_IDENT, "expected method name")
	name := c.previous.Lexeme
	nameIdx := c.nameConstant(name)
	c.compileFunctionBody(name, TypeMethod, isAsync, false)
	c.emitOpByte(opcodes.OP_METHOD_DEF, byte(nameIdx))
}

// --- imports / exports -------------------------------------------------

// importStatement handles all four import forms: `import "x"`, `import { a, b } from "x"`, `import * as n from "x"`,
// `import d from "x"`. Each emits OP_IMPORT with the module path
// constant; the bare form then discards the module object, and the
// other forms bind it (or its properties) as globals.
func (c *Compiler) importStatement() {
	switch {
	case c.check(lexer.TOKEN_STRING):
		c.advance()
		c.emitModulePath()
		c.emitOp(opcodes.OP_POP)
		c.optionalSemicolon()

	case c.matchTok(lexer.TOKEN_LBRACE):
		var names []string
		for !c.check(lexer.TOKEN_RBRACE) {
			c.consume(lexer.TOKEN_IDENT, "expected import name")
			names = append(names, c.previous.Lexeme)
			if !c.matchTok(lexer.TOKEN_COMMA) {
				break
			}
		}
		c.consume(lexer.TOKEN_RBRACE, "expected '}' after import list")
		c.consume(lexer.TOKEN_FROM, "expected 'from' after import list")
		c.consume(lexer.TOKEN_STRING, "expected module path string")
		c.recordModulePath()
		// Every bound name re-fetches the (cached, singleflight-loaded)
		// module object: module load is idempotent, so this only costs
		// a cache hit per name instead of keeping the object on the
		// operand stack across iterations.
		for _, n := range names {
			c.emitModulePathRepeat()
			propIdx := c.nameConstant(n)
			c.emitOpByte(opcodes.OP_GET_PROPERTY, byte(propIdx))
			gIdx := c.nameConstant(n)
			c.emitOpByte(opcodes.OP_SET_GLOBAL, byte(gIdx))
			c.emitOp(opcodes.OP_POP)
		}
		c.optionalSemicolon()

	case c.matchTok(lexer.TOKEN_STAR):
		c.consume(lexer.TOKEN_AS, "expected 'as' after '*'")
		c.consume(lexer.TOKEN_IDENT, "expected binding name")
		binding := c.previous.Lexeme
		c.consume(lexer.TOKEN_FROM, "expected 'from' after binding")
		c.consume(lexer.TOKEN_STRING, "expected module path string")
		c.emitModulePath()
		idx := c.nameConstant(binding)
		c.emitOpByte(opcodes.OP_SET_GLOBAL, byte(idx))
		c.emitOp(opcodes.OP_POP)
		c.optionalSemicolon()

	default:
		c.consume(lexer.TOKEN_IDENT, "expected default-import binding name")
		binding := c.previous.Lexeme
		c.consume(lexer.TOKEN_FROM, "expected 'from' after binding")
		c.consume(lexer.TOKEN_STRING, "expected module path string")
		c.emitModulePath()
		propIdx := c.nameConstant("default")
		c.emitOpByte(opcodes.OP_GET_PROPERTY, byte(propIdx))
		idx := c.nameConstant(binding)
		c.emitOpByte(opcodes.OP_SET_GLOBAL, byte(idx))
		c.emitOp(opcodes.OP_POP)
		c.optionalSemicolon()
	}
}

// recordModulePath interns the just-consumed string token as a module
// path constant without emitting an IMPORT, for call sites that need
// OP_IMPORT emitted once per bound name rather than once overall.
func (c *Compiler) recordModulePath() {
	if c.previous.Kind != lexer.TOKEN_STRING {
		c.lastModulePathConst = 0
		return
	}
	raw := c.previous.Lexeme
	path := unescapeString(raw[1 : len(raw)-1])
	idx := c.chunk.AddConstant(values.Str(path))
	if idx < 0 {
		c.errorAtPrevious("too many constants in one chunk")
		idx = 0
	}
	c.lastModulePathConst = idx
}

func (c *Compiler) emitModulePath() {
	c.recordModulePath()
	c.emitOpByte(opcodes.OP_IMPORT, byte(c.lastModulePathConst))
}

func (c *Compiler) emitModulePathRepeat() {
	c.emitOpByte(opcodes.OP_IMPORT, byte(c.lastModulePathConst))
}

func (c *Compiler) exportStatement() {
	if c.matchTok(lexer.TOKEN_DEFAULT) {
		c.expression()
		idx := c.nameConstant("default")
		c.emitOpByte(opcodes.OP_EXPORT, byte(idx))
		c.emitOp(opcodes.OP_POP)
		c.optionalSemicolon()
		return
	}
	switch {
	case c.matchTok(lexer.TOKEN_FUNCTION) || c.matchTok(lexer.TOKEN_FN):
		c.consume(lexer.TOKEN_IDENT, "expected function name")
		name := c.previous.Lexeme
		c.compileFunctionBody(name, TypeFunction, false, false)
		idx := c.nameConstant(name)
		c.emitOpByte(opcodes.OP_EXPORT, byte(idx))
		// exported functions are also bound as module-local globals so
		// later code in the same module can call them
		gIdx := c.nameConstant(name)
		c.emitOpByte(opcodes.OP_SET_GLOBAL, byte(gIdx))
		c.emitOp(opcodes.OP_POP)
	case c.matchTok(lexer.TOKEN_CLASS):
		c.classDeclarationExported()
	default:
		c.consume(lexer.TOKEN_IDENT, "expected identifier after 'export'")
		name := c.previous.Lexeme
		if c.matchTok(lexer.TOKEN_EQUAL) {
			c.expression()
		} else {
			idx := c.nameConstant(name)
			c.emitOpByte(opcodes.OP_GET_GLOBAL, byte(idx))
		}
		idx := c.nameConstant(name)
		c.emitOpByte(opcodes.OP_EXPORT, byte(idx))
		c.emitOp(opcodes.OP_POP)
		c.optionalSemicolon()
	}
}

// classDeclarationExported is export's thin wrapper: the CLASS keyword
// was already consumed by exportStatement's matchTok, so this mirrors
// classDeclaration without re-consuming it.
func (c *Compiler) classDeclarationExported() {
	c.consume(lexer.TOKEN_IDENT, "expected class name")
	name := c.previous.Lexeme
	nameIdx := c.nameConstant(name)
	c.emitOpByte(opcodes.OP_CLASS_DEF, byte(nameIdx))

	if c.matchTok(lexer.TOKEN_EXTENDS) {
		c.consume(lexer.TOKEN_IDENT, "expected superclass name")
		superIdx := c.nameConstant(c.previous.Lexeme)
		c.emitOpByte(opcodes.OP_GET_GLOBAL, byte(superIdx))
		c.emitOp(opcodes.OP_INHERIT)
	}

	c.consume(lexer.TOKEN_LBRACE, "expected '{' before class body")
	for !c.check(lexer.TOKEN_RBRACE) && !c.check(lexer.TOKEN_EOF) {
		c.method()
	}
	c.consume(lexer.TOKEN_RBRACE, "expected '}' after class body")

	idx := c.nameConstant(name)
	c.emitOpByte(opcodes.OP_EXPORT, byte(idx))
	gIdx := c.nameConstant(name)
	c.emitOpByte(opcodes.OP_SET_GLOBAL, byte(gIdx))
	c.emitOp(opcodes.OP_POP)
}
