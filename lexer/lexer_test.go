package lexer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func collect(source string) []Token {
	l := New(source)
	var toks []Token
	for {
		tok := l.Next()
		toks = append(toks, tok)
		if tok.Kind == TOKEN_EOF || tok.Kind == TOKEN_ERROR {
			break
		}
	}
	return toks
}

func TestArithmeticTokens(t *testing.T) {
	toks := collect("(10 + 5) * 2")
	kinds := []Kind{TOKEN_LPAREN, TOKEN_NUMBER, TOKEN_PLUS, TOKEN_NUMBER, TOKEN_RPAREN, TOKEN_STAR, TOKEN_NUMBER, TOKEN_EOF}
	require.Len(t, toks, len(kinds))
	for i, k := range kinds {
		require.Equal(t, k, toks[i].Kind, "token %d", i)
	}
}

func TestKeywordRecognition(t *testing.T) {
	toks := collect("if else while for fn class try catch finally")
	want := []Kind{TOKEN_IF, TOKEN_ELSE, TOKEN_WHILE, TOKEN_FOR, TOKEN_FN, TOKEN_CLASS, TOKEN_TRY, TOKEN_CATCH, TOKEN_FINALLY, TOKEN_EOF}
	require.Len(t, toks, len(want))
	for i, k := range want {
		require.Equal(t, k, toks[i].Kind)
	}
}

func TestCommentsSkipped(t *testing.T) {
	toks := collect("1 # a comment\n+ 2 // another\n")
	require.Equal(t, TOKEN_NUMBER, toks[0].Kind)
	require.Equal(t, TOKEN_PLUS, toks[1].Kind)
	require.Equal(t, TOKEN_NUMBER, toks[2].Kind)
}

func TestDecimalNumber(t *testing.T) {
	toks := collect("5.5")
	require.Equal(t, TOKEN_NUMBER, toks[0].Kind)
	require.Equal(t, 5.5, toks[0].NumberValue)
}

func TestPlainStringToken(t *testing.T) {
	toks := collect(`"hello world"`)
	require.Equal(t, TOKEN_STRING, toks[0].Kind)
}

func TestInterpolatedStringToken(t *testing.T) {
	toks := collect(`"hello ${name}!"`)
	require.Equal(t, TOKEN_INTERP_STRING, toks[0].Kind)
}

func TestInterpolationWithNestedBracesAndString(t *testing.T) {
	toks := collect(`"x = ${ "${1}" }"`)
	require.Equal(t, TOKEN_INTERP_STRING, toks[0].Kind)
}

func TestUnterminatedStringIsError(t *testing.T) {
	toks := collect(`"oops`)
	require.Equal(t, TOKEN_ERROR, toks[0].Kind)
}

func TestSaveRestoreRoundtrip(t *testing.T) {
	l := New("abc def")
	first := l.Next()
	require.Equal(t, "abc", first.Lexeme)

	saved := l.Save()
	second := l.Next()
	require.Equal(t, "def", second.Lexeme)

	l.Restore(saved)
	replay := l.Next()
	require.Equal(t, "def", replay.Lexeme)
}
