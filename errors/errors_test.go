package errors

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestErrorStringCarriesPosition(t *testing.T) {
	e := NewSyntaxError("unexpected token", 3, 7)
	require.Contains(t, e.String(), "Syntax Error")
	require.Contains(t, e.String(), "line 3")
	require.Contains(t, e.String(), "unexpected token")
}

func TestPrintFormattedPointsAtColumn(t *testing.T) {
	e := NewSyntaxError("bad", 2, 4).WithSource("first line\nsecond line\n")
	out := e.PrintFormatted()
	require.Contains(t, out, "second line")
	require.Contains(t, out, "^")
}

func TestListAccumulatesAndFilters(t *testing.T) {
	var l List
	l.Add(NewSyntaxError("a", 1, 0))
	l.Add(NewSemanticError("b", 2, 0))
	l.Add(NewSyntaxError("c", 3, 0))

	require.True(t, l.HasErrors())
	require.Equal(t, 3, l.Count())
	require.Equal(t, 2, l.FilterByKind(SyntaxError).Count())
	require.Contains(t, l.String(), "a")
	require.Contains(t, l.String(), "c")
}

func TestReporterPanicModeAndSynchronize(t *testing.T) {
	r := NewReporter("x = 1")
	require.False(t, r.PanicMode)

	r.ReportSyntax("boom", 1, 0)
	require.True(t, r.PanicMode)
	require.True(t, r.HasErrors())

	r.Synchronize()
	require.False(t, r.PanicMode)
	require.True(t, r.HasErrors(), "synchronize clears panic mode, not the list")

	r.Clear()
	require.False(t, r.HasErrors())
}
