package lexer

import "fmt"

// Kind identifies a token's grammatical category.
type Kind int

const (
	TOKEN_ERROR Kind = iota
	TOKEN_EOF

	TOKEN_NUMBER
	TOKEN_STRING          // plain double-quoted string, no interpolation
	TOKEN_INTERP_STRING   // contains ${ ... } — a distinct token kind
	TOKEN_IDENT

	// Keywords.
	TOKEN_AND
	TOKEN_OR
	TOKEN_NOT
	TOKEN_IF
	TOKEN_ELSE
	TOKEN_WHILE
	TOKEN_FOR
	TOKEN_DO
	TOKEN_BREAK
	TOKEN_CONTINUE
	TOKEN_RETURN
	TOKEN_FN
	TOKEN_FUNCTION
	TOKEN_CLASS
	TOKEN_EXTENDS
	TOKEN_THIS
	TOKEN_SUPER
	TOKEN_NEW
	TOKEN_IMPORT
	TOKEN_EXPORT
	TOKEN_FROM
	TOKEN_AS
	TOKEN_REQUIRE
	TOKEN_TRUE
	TOKEN_FALSE
	TOKEN_NIL
	TOKEN_ASYNC
	TOKEN_AWAIT
	TOKEN_YIELD
	TOKEN_TRY
	TOKEN_CATCH
	TOKEN_FINALLY
	TOKEN_THROW
	TOKEN_SWITCH
	TOKEN_CASE
	TOKEN_DEFAULT

	// Punctuation & operators.
	TOKEN_LPAREN
	TOKEN_RPAREN
	TOKEN_LBRACE
	TOKEN_RBRACE
	TOKEN_LBRACKET
	TOKEN_RBRACKET
	TOKEN_COMMA
	TOKEN_DOT
	TOKEN_SEMICOLON
	TOKEN_COLON
	TOKEN_PLUS
	TOKEN_MINUS
	TOKEN_STAR
	TOKEN_SLASH
	TOKEN_PERCENT
	TOKEN_BANG
	TOKEN_BANG_EQUAL
	TOKEN_EQUAL
	TOKEN_EQUAL_EQUAL
	TOKEN_GREATER
	TOKEN_GREATER_EQUAL
	TOKEN_LESS
	TOKEN_LESS_EQUAL
	TOKEN_AMP_AMP
	TOKEN_PIPE_PIPE
	TOKEN_ARROW // =>
	TOKEN_STAR_STAR

	TOKEN_NEWLINE
)

var keywords = map[string]Kind{
	"and": TOKEN_AND, "or": TOKEN_OR, "not": TOKEN_NOT,
	"if": TOKEN_IF, "else": TOKEN_ELSE, "while": TOKEN_WHILE, "for": TOKEN_FOR, "do": TOKEN_DO,
	"break": TOKEN_BREAK, "continue": TOKEN_CONTINUE, "return": TOKEN_RETURN,
	"fn": TOKEN_FN, "function": TOKEN_FUNCTION, "class": TOKEN_CLASS, "extends": TOKEN_EXTENDS,
	"this": TOKEN_THIS, "super": TOKEN_SUPER, "new": TOKEN_NEW,
	"import": TOKEN_IMPORT, "export": TOKEN_EXPORT, "from": TOKEN_FROM, "as": TOKEN_AS,
	"require": TOKEN_REQUIRE, "true": TOKEN_TRUE, "false": TOKEN_FALSE, "nil": TOKEN_NIL,
	"async": TOKEN_ASYNC, "await": TOKEN_AWAIT, "yield": TOKEN_YIELD,
	"try": TOKEN_TRY, "catch": TOKEN_CATCH, "finally": TOKEN_FINALLY, "throw": TOKEN_THROW,
	"switch": TOKEN_SWITCH, "case": TOKEN_CASE, "default": TOKEN_DEFAULT,
}

// LookupIdent returns the keyword Kind for ident, or TOKEN_IDENT if
// ident isn't a reserved word.
func LookupIdent(ident string) Kind {
	if k, ok := keywords[ident]; ok {
		return k
	}
	return TOKEN_IDENT
}

// Token carries everything the compiler needs to consume one lexeme:
// its kind, a slice view into the source (start+length, avoiding a
// copy), the source line, and the parsed numeric value when Kind is
// TOKEN_NUMBER.
type Token struct {
	Kind   Kind
	Start  int
	Length int
	Line   int
	Lexeme string // materialized view of source[Start:Start+Length]

	NumberValue float64 // valid when Kind == TOKEN_NUMBER
	Message     string  // valid when Kind == TOKEN_ERROR
}

func (t Token) String() string {
	return fmt.Sprintf("Token{%v %q line=%d}", t.Kind, t.Lexeme, t.Line)
}
