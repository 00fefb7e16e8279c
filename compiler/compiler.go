package compiler

import (
	"github.com/wudi/ember/errors"
	"github.com/wudi/ember/lexer"
	"github.com/wudi/ember/opcodes"
	"github.com/wudi/ember/values"
)

// maxLoopDepth and maxTryDepth bound the compiler's per-instance loop
// and exception-handling context stacks. Both stacks are per-Compiler, never global.
const (
	maxLoopDepth = 8
	maxTryDepth  = 8
)

// local is one entry in the compiler's locals window for the function
// currently being compiled.
type local struct {
	name  string
	depth int
}

// loopCtx records the backpatch state for one active loop: where
// `continue` should jump to and the list of `break` jump offsets still
// waiting to be patched once the loop's end is known.
type loopCtx struct {
	continueTarget int
	breakJumps     []int
}

// tryCtx records one active try/catch/finally's backpatch state.
type tryCtx struct {
	handlerSlot int // offset of TRY_BEGIN's placeholder operand byte
	catchStart  int
	finallyStart int
	stackDepth  int
}

// FunctionType distinguishes the outermost script compile from a
// nested function or method compile; several scoping rules (return,
// yield, this, super) key off it.
type FunctionType int

const (
	TypeScript FunctionType = iota
	TypeFunction
	TypeMethod
)

// Compiler turns a token stream directly into chunk code. One
// Compiler instance exists per function body being compiled; nested
// function/class-method bodies get their own Compiler with `enclosing`
// set.
type Compiler struct {
	lexer    *lexer.Lexer
	current  lexer.Token
	previous lexer.Token

	reporter *errors.Reporter

	chunk *Chunk
	fnType FunctionType

	locals     []local
	scopeDepth int

	loops []loopCtx
	tries []tryCtx

	enclosing *Compiler

	interns *values.InternTable

	// currentFile is used for error messages and stack-trace frames.
	currentFile string

	isAsync bool
	isGen   bool

	// lastModulePathConst remembers the constant pool index of the most
	// recently compiled import path, so a `{a, b}` import list can
	// re-fetch the module for each bound name without re-parsing the
	// path token.
	lastModulePathConst int
}

// New creates a compiler for top-level script source.
func New(source string, interns *values.InternTable) *Compiler {
	c := &Compiler{
		lexer:   lexer.New(source),
		chunk:   NewChunk("<script>"),
		fnType:  TypeScript,
		interns: interns,
	}
	c.reporter = errors.NewReporter(source)
	// No reserved slot at script scope: the script frame's locals
	// window starts empty, so compile-time slot indices line up with
	// runtime stack offsets (catch bindings rely on this).
	return c
}

func newNested(parent *Compiler, name string, fnType FunctionType) *Compiler {
	c := &Compiler{
		lexer:       parent.lexer,
		current:     parent.current,
		previous:    parent.previous,
		reporter:    parent.reporter,
		chunk:       NewChunk(name),
		fnType:      fnType,
		enclosing:   parent,
		interns:     parent.interns,
		currentFile: parent.currentFile,
	}
	c.locals = append(c.locals, local{name: "", depth: 0})
	return c
}

// SetCurrentFile records the source path compiled, surfaced in
// exception frames and [MODULE]-tagged diagnostics.
func (c *Compiler) SetCurrentFile(path string) { c.currentFile = path }

// Chunk returns the chunk compiled so far.
func (c *Compiler) Chunk() *Chunk { return c.chunk }

// Errors returns every diagnostic collected during compilation.
func (c *Compiler) Errors() errors.List { return c.reporter.Errors() }

// --- token stream plumbing -------------------------------------------------

func (c *Compiler) advance() {
	c.previous = c.current
	for {
		c.current = c.lexer.Next()
		if c.current.Kind != lexer.TOKEN_ERROR {
			break
		}
		c.errorAtCurrent(c.current.Message)
	}
}

func (c *Compiler) check(k lexer.Kind) bool { return c.current.Kind == k }

func (c *Compiler) matchTok(k lexer.Kind) bool {
	if !c.check(k) {
		return false
	}
	c.advance()
	return true
}

func (c *Compiler) consume(k lexer.Kind, message string) {
	if c.current.Kind == k {
		c.advance()
		return
	}
	c.errorAtCurrent(message)
}

func (c *Compiler) errorAtCurrent(message string) {
	c.reporter.ReportSyntax(message, c.current.Line, 0)
}

func (c *Compiler) errorAtPrevious(message string) {
	c.reporter.ReportSemantic(message, c.previous.Line, 0)
}

// synchronize implements panic-mode recovery: skip tokens until a
// plausible statement boundary, then resume reporting errors normally
//.
func (c *Compiler) synchronize() {
	c.reporter.Synchronize()
	for c.current.Kind != lexer.TOKEN_EOF {
		if c.previous.Kind == lexer.TOKEN_SEMICOLON {
			return
		}
		switch c.current.Kind {
		case lexer.TOKEN_CLASS, lexer.TOKEN_FUNCTION, lexer.TOKEN_FN, lexer.TOKEN_IF,
			lexer.TOKEN_WHILE, lexer.TOKEN_FOR, lexer.TOKEN_RETURN, lexer.TOKEN_TRY,
			lexer.TOKEN_THROW, lexer.TOKEN_SWITCH, lexer.TOKEN_IMPORT, lexer.TOKEN_EXPORT:
			return
		}
		c.advance()
	}
}

// --- emission helpers --------------------------------------------------

func (c *Compiler) emit(b byte) int { return c.chunk.Write(b, c.previous.Line) }

func (c *Compiler) emitOp(op opcodes.Op) int { return c.emit(byte(op)) }

func (c *Compiler) emitOpByte(op opcodes.Op, operand byte) int {
	c.emitOp(op)
	return c.emit(operand)
}

func (c *Compiler) emitConstant(v *values.Value) {
	idx := c.chunk.AddConstant(v)
	if idx < 0 {
		c.errorAtPrevious("too many constants in one chunk")
		return
	}
	c.emitOpByte(opcodes.OP_PUSH_CONST, byte(idx))
}

// emitJump writes a jump opcode with a placeholder operand and returns
// the operand's offset for later patchJump backpatching.
func (c *Compiler) emitJump(op opcodes.Op) int {
	c.emitOp(op)
	return c.emit(0xff)
}

// patchJump backpatches the operand at offset to jump to the current
// code position. Offsets are single bytes; a distance over 255 is a
// compile error ("jump offset too large").
func (c *Compiler) patchJump(offset int) {
	dist := len(c.chunk.Code) - offset - 1
	if dist > 255 {
		c.errorAtPrevious("jump offset too large")
		return
	}
	c.chunk.Code[offset] = byte(dist)
}

// emitLoop writes a backward LOOP jump to loopStart.
func (c *Compiler) emitLoop(loopStart int) {
	c.emitOp(opcodes.OP_LOOP)
	dist := len(c.chunk.Code) - loopStart + 1
	if dist > 255 {
		c.errorAtPrevious("jump offset too large")
		return
	}
	c.emit(byte(dist))
}

// --- scopes & locals -----------------------------------------------------

func (c *Compiler) beginScope() { c.scopeDepth++ }

func (c *Compiler) endScope() {
	c.scopeDepth--
	for len(c.locals) > 0 && c.locals[len(c.locals)-1].depth > c.scopeDepth {
		c.emitOp(opcodes.OP_POP)
		c.locals = c.locals[:len(c.locals)-1]
	}
}

func (c *Compiler) declareLocal(name string) {
	if c.scopeDepth == 0 {
		return // globals are looked up by name, not slot
	}
	for i := len(c.locals) - 1; i >= 0; i-- {
		if c.locals[i].depth != -1 && c.locals[i].depth < c.scopeDepth {
			break
		}
		if c.locals[i].name == name {
			c.errorAtPrevious("variable '" + name + "' already declared in this scope")
			return
		}
	}
	c.locals = append(c.locals, local{name: name, depth: c.scopeDepth})
}

func (c *Compiler) resolveLocal(name string) int {
	for i := len(c.locals) - 1; i >= 0; i-- {
		if c.locals[i].name == name {
			return i
		}
	}
	return -1
}

// --- literal & primary expressions ---------------------------------------

func (c *Compiler) number(canAssign bool) {
	c.emitConstant(values.Number(c.previous.NumberValue))
}

func (c *Compiler) literal(canAssign bool) {
	switch c.previous.Kind {
	case lexer.TOKEN_TRUE:
		c.emitConstant(values.Bool(true))
	case lexer.TOKEN_FALSE:
		c.emitConstant(values.Bool(false))
	case lexer.TOKEN_NIL:
		c.emitConstant(values.Nil())
	}
}

func (c *Compiler) stringLit(canAssign bool) {
	raw := c.previous.Lexeme
	unquoted := unescapeString(raw[1 : len(raw)-1])
	c.emitConstant(values.StrInterned(unquoted, c.interns))
}

// interpString compiles a `"literal ${expr} literal"` template in
// place. Literal fragments become string constants; each ${ } span is
// parsed by this same compiler — the scanner's cursor is saved,
// seeked into the span (which lives in the same source buffer), and
// restored — so locals and parameters stay visible inside ${ }.
// STRING_INTERPOLATE then folds the pushed parts into one string.
func (c *Compiler) interpString(canAssign bool) {
	tok := c.previous
	template := tok.Lexeme[1 : len(tok.Lexeme)-1]
	base := tok.Start + 1 // source offset of template[0], past the opening quote

	parts := 0
	fragStart := 0
	i := 0
	for i < len(template) {
		if template[i] == '\\' && i+1 < len(template) {
			i += 2
			continue
		}
		if template[i] == '$' && i+1 < len(template) && template[i+1] == '{' {
			end, ok := matchingBrace(template, i+2)
			if !ok {
				c.errorAtPrevious("unterminated ${ } in interpolated string")
				return
			}
			if i > fragStart {
				c.emitConstant(values.StrInterned(unescapeString(template[fragStart:i]), c.interns))
				parts++
			}
			c.compileEmbeddedExpression(base+i+2, tok.Line)
			parts++
			i = end + 1
			fragStart = i
			continue
		}
		i++
	}
	if fragStart < len(template) || parts == 0 {
		c.emitConstant(values.StrInterned(unescapeString(template[fragStart:]), c.interns))
		parts++
	}
	if parts > 255 {
		c.errorAtPrevious("too many interpolation parts in one string")
		parts = 255
	}
	c.emitOpByte(opcodes.OP_STRING_INTERPOLATE, byte(parts))
}

// compileEmbeddedExpression parses one ${ } span in the enclosing
// scope: the scanner's cursor is saved, moved to the span's absolute
// source offset, the expression is compiled with this compiler's
// locals intact, and the cursor and token lookahead are restored.
func (c *Compiler) compileEmbeddedExpression(offset, line int) {
	saved := c.lexer.Save()
	savedCurrent, savedPrevious := c.current, c.previous

	c.lexer.Seek(offset, line)
	c.advance()
	c.expression()

	c.lexer.Restore(saved)
	c.current, c.previous = savedCurrent, savedPrevious
}

// matchingBrace returns the index of the '}' matching the '{' assumed
// to sit just before start, tracking nested braces and quoted strings
// so a literal '}' inside a nested string doesn't end the span early.
func matchingBrace(s string, start int) (int, bool) {
	depth := 1
	inString := false
	for i := start; i < len(s); i++ {
		ch := s[i]
		switch {
		case inString:
			if ch == '\\' {
				i++
			} else if ch == '"' {
				inString = false
			}
		case ch == '"':
			inString = true
		case ch == '{':
			depth++
		case ch == '}':
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}

func unescapeString(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			i++
			switch s[i] {
			case 'n':
				out = append(out, '\n')
			case 't':
				out = append(out, '\t')
			case '"':
				out = append(out, '"')
			case '\\':
				out = append(out, '\\')
			default:
				out = append(out, s[i])
			}
			continue
		}
		out = append(out, s[i])
	}
	return string(out)
}

func (c *Compiler) grouping(canAssign bool) {
	c.expression()
	c.consume(lexer.TOKEN_RPAREN, "expected ')' after expression")
}

func (c *Compiler) unary(canAssign bool) {
	opKind := c.previous.Kind
	c.parsePrecedence(PrecUnary)
	switch opKind {
	case lexer.TOKEN_MINUS:
		c.emitOp(opcodes.OP_NEGATE)
	case lexer.TOKEN_BANG, lexer.TOKEN_NOT:
		c.emitOp(opcodes.OP_NOT)
	}
}

func (c *Compiler) binary(canAssign bool) {
	opKind := c.previous.Kind
	r := getRule(opKind)
	c.parsePrecedence(r.precedence + 1)
	switch opKind {
	case lexer.TOKEN_PLUS:
		c.emitOp(opcodes.OP_ADD)
	case lexer.TOKEN_MINUS:
		c.emitOp(opcodes.OP_SUB)
	case lexer.TOKEN_STAR:
		c.emitOp(opcodes.OP_MUL)
	case lexer.TOKEN_SLASH:
		c.emitOp(opcodes.OP_DIV)
	case lexer.TOKEN_PERCENT:
		c.emitOp(opcodes.OP_MOD)
	case lexer.TOKEN_EQUAL_EQUAL:
		c.emitOp(opcodes.OP_EQUAL)
	case lexer.TOKEN_BANG_EQUAL:
		c.emitOp(opcodes.OP_NOT_EQUAL)
	case lexer.TOKEN_LESS:
		c.emitOp(opcodes.OP_LESS)
	case lexer.TOKEN_LESS_EQUAL:
		c.emitOp(opcodes.OP_LESS_EQUAL)
	case lexer.TOKEN_GREATER:
		c.emitOp(opcodes.OP_GREATER)
	case lexer.TOKEN_GREATER_EQUAL:
		c.emitOp(opcodes.OP_GREATER_EQUAL)
	}
}

// and_/or_ short-circuit via JUMP_IF_FALSE/JUMP rather than emitting
// OP_AND/OP_OR unconditionally, so the untaken operand is never
// evaluated.
func (c *Compiler) and_(canAssign bool) {
	endJump := c.emitJump(opcodes.OP_JUMP_IF_FALSE)
	c.emitOp(opcodes.OP_POP)
	c.parsePrecedence(PrecAnd)
	c.patchJump(endJump)
}

func (c *Compiler) or_(canAssign bool) {
	elseJump := c.emitJump(opcodes.OP_JUMP_IF_FALSE)
	endJump := c.emitJump(opcodes.OP_JUMP)
	c.patchJump(elseJump)
	c.emitOp(opcodes.OP_POP)
	c.parsePrecedence(PrecOr)
	c.patchJump(endJump)
}

func (c *Compiler) variable(canAssign bool) {
	name := c.previous.Lexeme
	slot := c.resolveLocal(name)

	if canAssign && c.matchTok(lexer.TOKEN_EQUAL) {
		c.expression()
		if slot != -1 {
			c.emitOpByte(opcodes.OP_SET_LOCAL, byte(slot))
		} else {
			idx := c.nameConstant(name)
			c.emitOpByte(opcodes.OP_SET_GLOBAL, byte(idx))
		}
		return
	}

	if slot != -1 {
		c.emitOpByte(opcodes.OP_GET_LOCAL, byte(slot))
	} else {
		idx := c.nameConstant(name)
		c.emitOpByte(opcodes.OP_GET_GLOBAL, byte(idx))
	}
}

func (c *Compiler) nameConstant(name string) int {
	idx := c.chunk.AddConstant(values.StrInterned(name, c.interns))
	if idx < 0 {
		c.errorAtPrevious("too many constants in one chunk")
		return 0
	}
	return idx
}

func (c *Compiler) this_(canAssign bool) {
	if c.fnType != TypeMethod {
		c.errorAtPrevious("'this' is only valid inside a method")
		return
	}
	c.emitOpByte(opcodes.OP_GET_LOCAL, 0)
}

func (c *Compiler) super_(canAssign bool) {
	if c.fnType != TypeMethod {
		c.errorAtPrevious("'super' is only valid inside a method")
	}
	c.consume(lexer.TOKEN_DOT, "expected '.' after 'super'")
	c.consume(lexer.TOKEN_IDENT, "expected superclass method name")
	idx := c.nameConstant(c.previous.Lexeme)
	c.emitOpByte(opcodes.OP_GET_LOCAL, 0)
	c.emitOpByte(opcodes.OP_GET_SUPER, byte(idx))
}

func (c *Compiler) call(canAssign bool) {
	argc := c.argumentList()
	c.emitOpByte(opcodes.OP_CALL, byte(argc))
}

func (c *Compiler) argumentList() int {
	count := 0
	if !c.check(lexer.TOKEN_RPAREN) {
		for {
			c.expression()
			count++
			if !c.matchTok(lexer.TOKEN_COMMA) {
				break
			}
		}
	}
	c.consume(lexer.TOKEN_RPAREN, "expected ')' after arguments")
	return count
}

func (c *Compiler) dot(canAssign bool) {
	c.consume(lexer.TOKEN_IDENT, "expected property name after '.'")
	name := c.previous.Lexeme
	idx := c.nameConstant(name)

	if c.matchTok(lexer.TOKEN_LPAREN) {
		argc := c.argumentList()
		c.emitOpByte(opcodes.OP_INVOKE, byte(idx))
		c.emit(byte(argc))
		return
	}

	if canAssign && c.matchTok(lexer.TOKEN_EQUAL) {
		c.expression()
		c.emitOpByte(opcodes.OP_SET_PROPERTY, byte(idx))
		return
	}
	c.emitOpByte(opcodes.OP_GET_PROPERTY, byte(idx))
}

func (c *Compiler) subscript(canAssign bool) {
	c.expression()
	c.consume(lexer.TOKEN_RBRACKET, "expected ']' after subscript")
	if canAssign && c.matchTok(lexer.TOKEN_EQUAL) {
		c.expression()
		c.emitOp(opcodes.OP_ARRAY_SET)
		return
	}
	c.emitOp(opcodes.OP_ARRAY_GET)
}

func (c *Compiler) arrayLiteral(canAssign bool) {
	count := 0
	if !c.check(lexer.TOKEN_RBRACKET) {
		for {
			c.expression()
			count++
			if !c.matchTok(lexer.TOKEN_COMMA) {
				break
			}
		}
	}
	c.consume(lexer.TOKEN_RBRACKET, "expected ']' after array literal")
	if count > 255 {
		c.errorAtPrevious("too many array literal elements")
		count = 255
	}
	c.emitOpByte(opcodes.OP_ARRAY_NEW, byte(count))
}

func (c *Compiler) mapLiteral(canAssign bool) {
	c.emitOp(opcodes.OP_HASH_MAP_NEW)
	if !c.check(lexer.TOKEN_RBRACE) {
		for {
			c.expression()
			c.consume(lexer.TOKEN_COLON, "expected ':' after map key")
			c.expression()
			c.emitOp(opcodes.OP_HASH_MAP_SET)
			if !c.matchTok(lexer.TOKEN_COMMA) {
				break
			}
		}
	}
	c.consume(lexer.TOKEN_RBRACE, "expected '}' after map literal")
}

// newExpr compiles `new ClassName(args)`. The expression's value is
// always the instance, never the constructor's return value, so the
// instance is duplicated before the OP_INVOKE (which consumes one copy
// as its receiver) and the constructor's return is discarded.
func (c *Compiler) newExpr(canAssign bool) {
	c.consume(lexer.TOKEN_IDENT, "expected class name after 'new'")
	name := c.previous.Lexeme
	idx := c.nameConstant(name)
	c.emitOpByte(opcodes.OP_GET_GLOBAL, byte(idx))
	c.emitOp(opcodes.OP_INSTANCE_NEW)
	if c.matchTok(lexer.TOKEN_LPAREN) {
		c.emitOp(opcodes.OP_DUP)
		argc := c.argumentList()
		ctorIdx := c.nameConstant("__construct")
		c.emitOpByte(opcodes.OP_INVOKE, byte(ctorIdx))
		c.emit(byte(argc))
		c.emitOp(opcodes.OP_POP)
	}
}

func (c *Compiler) await_(canAssign bool) {
	if !c.isAsync {
		c.errorAtPrevious("'await' is only valid inside an async function")
	}
	c.parsePrecedence(PrecUnary)
	c.emitOp(opcodes.OP_AWAIT)
}

// yield_ marks the enclosing function as a generator on first use;
// only a yield at script scope is a compile error.
func (c *Compiler) yield_(canAssign bool) {
	if c.fnType == TypeScript {
		c.errorAtPrevious("'yield' is only valid inside a generator function")
	}
	c.isGen = true
	if c.check(lexer.TOKEN_SEMICOLON) || c.check(lexer.TOKEN_RPAREN) || c.check(lexer.TOKEN_RBRACE) {
		c.emitConstant(values.Nil())
	} else {
		c.parsePrecedence(PrecAssignment)
	}
	c.emitOp(opcodes.OP_YIELD)
}

func (c *Compiler) functionLiteral(canAssign bool) {
	c.compileFunctionBody("<anonymous>", TypeFunction, false, false)
}

// --- Pratt driver --------------------------------------------------------

func (c *Compiler) parsePrecedence(prec Precedence) {
	c.advance()
	r := getRule(c.previous.Kind)
	if r.prefix == nil {
		c.errorAtPrevious("expected expression")
		return
	}
	canAssign := prec <= PrecAssignment
	r.prefix(c, canAssign)

	for prec <= getRule(c.current.Kind).precedence {
		c.advance()
		infix := getRule(c.previous.Kind).infix
		if infix == nil {
			break
		}
		infix(c, canAssign)
	}

	if canAssign && c.matchTok(lexer.TOKEN_EQUAL) {
		c.errorAtPrevious("invalid assignment target")
	}
}

func (c *Compiler) expression() { c.parsePrecedence(PrecAssignment) }
