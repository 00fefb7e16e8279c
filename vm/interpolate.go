package vm

import (
	"strings"

	"github.com/wudi/ember/values"
)

// interpolate folds n already-evaluated parts from the operand stack
// into one interned string. The compiler evaluates literal fragments
// and ${ } spans in the enclosing scope and pushes them in source
// order; this is the run-time tail of STRING_INTERPOLATE.
func (vm *VM) interpolate(n int) *values.Value {
	parts := make([]*values.Value, n)
	for i := n - 1; i >= 0; i-- {
		parts[i] = vm.pop()
	}
	var b strings.Builder
	for _, p := range parts {
		b.WriteString(p.String())
	}
	return values.StrInterned(b.String(), vm.interns)
}
