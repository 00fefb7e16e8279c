package lexer

// State is the scanner's entire mutable cursor, captured as a plain
// value so it can be saved and restored around interpolated-string
// scanning. The Lexer is itself a value the compiler owns one of per
// parser instance, never a module-level mutable singleton.
type State struct {
	start   int
	current int
	line    int
}

// Save captures the current cursor so the compiler can scan an
// interpolated expression and come back.
func (l *Lexer) Save() State {
	return State{start: l.start, current: l.current, line: l.line}
}

// Restore resets the cursor to a previously saved State.
func (l *Lexer) Restore(s State) {
	l.start = s.start
	l.current = s.current
	l.line = s.line
}

// Seek moves the cursor to an absolute offset in the source buffer,
// so the compiler can scan a ${ } span embedded in an
// interpolated-string token it has already consumed. Pair with
// Save/Restore to come back to the outer scan position.
func (l *Lexer) Seek(offset, line int) {
	l.start = offset
	l.current = offset
	l.line = line
}
