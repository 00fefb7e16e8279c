// Package errors collects the compile-time diagnostic machinery:
// typed errors carrying a source position, an accumulating error list,
// and a reporter that the compiler's panic-mode recovery drives.
package errors

import (
	"fmt"
	"strings"
)

// Kind classifies a compile-time diagnostic.
type Kind int

const (
	SyntaxError Kind = iota
	LexicalError
	SemanticError
)

func (k Kind) String() string {
	switch k {
	case SyntaxError:
		return "Syntax Error"
	case LexicalError:
		return "Lexical Error"
	case SemanticError:
		return "Semantic Error"
	default:
		return "Error"
	}
}

// Error is one compile-time diagnostic.
type Error struct {
	Kind    Kind
	Message string
	Line    int
	Column  int
	Source  string
}

func New(kind Kind, message string, line, column int) *Error {
	return &Error{Kind: kind, Message: message, Line: line, Column: column}
}

func NewSyntaxError(message string, line, column int) *Error {
	return New(SyntaxError, message, line, column)
}

func NewLexicalError(message string, line, column int) *Error {
	return New(LexicalError, message, line, column)
}

func NewSemanticError(message string, line, column int) *Error {
	return New(SemanticError, message, line, column)
}

func (e *Error) String() string {
	return fmt.Sprintf("%s at line %d, column %d: %s", e.Kind, e.Line, e.Column, e.Message)
}

func (e *Error) Error() string { return e.String() }

func (e *Error) WithSource(source string) *Error {
	e.Source = source
	return e
}

// PrintFormatted renders the error plus the offending source line with
// a caret pointing at the column, when source text is available.
func (e *Error) PrintFormatted() string {
	if e.Source == "" {
		return e.String()
	}
	lines := strings.Split(e.Source, "\n")
	if e.Line <= 0 || e.Line > len(lines) {
		return e.String()
	}
	var b strings.Builder
	b.WriteString(e.String())
	b.WriteString("\n")
	fmt.Fprintf(&b, "  %d | %s\n", e.Line, lines[e.Line-1])
	b.WriteString("      | ")
	for i := 0; i < e.Column; i++ {
		b.WriteString(" ")
	}
	b.WriteString("^\n")
	return b.String()
}

// List is an ordered collection of diagnostics.
type List []*Error

func (l *List) Add(err *Error) { *l = append(*l, err) }

func (l List) HasErrors() bool { return len(l) > 0 }
func (l List) Count() int      { return len(l) }

func (l List) String() string {
	var b strings.Builder
	for i, err := range l {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(err.String())
	}
	return b.String()
}

func (l List) Error() string { return l.String() }

func (l List) FilterByKind(kind Kind) List {
	var out List
	for _, e := range l {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

// Reporter accumulates diagnostics during compilation. The compiler
// enters "panic mode" on the first error: it keeps reporting but code
// emission becomes best-effort.
type Reporter struct {
	errors   List
	source   string
	PanicMode bool
}

func NewReporter(source string) *Reporter {
	return &Reporter{source: source}
}

func (r *Reporter) Report(err *Error) {
	if r.source != "" {
		err.WithSource(r.source)
	}
	r.errors.Add(err)
	r.PanicMode = true
}

func (r *Reporter) ReportSyntax(message string, line, column int) {
	r.Report(NewSyntaxError(message, line, column))
}

func (r *Reporter) ReportSemantic(message string, line, column int) {
	r.Report(NewSemanticError(message, line, column))
}

func (r *Reporter) Errors() List    { return r.errors }
func (r *Reporter) HasErrors() bool { return r.errors.HasErrors() }
func (r *Reporter) Clear()          { r.errors = nil; r.PanicMode = false }

// Synchronize exits panic mode; the compiler calls this once it has
// skipped forward to the next statement boundary.
func (r *Reporter) Synchronize() { r.PanicMode = false }

// ExitStatus is the process-facing return-code convention: 0 success,
// distinct non-zero codes per failure category.
type ExitStatus int

const (
	StatusSuccess ExitStatus = iota
	StatusCompileError
	StatusRuntimeError
	StatusMemoryError
	StatusSecurityViolation
)
