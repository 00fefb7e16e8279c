package vm

import (
	"github.com/wudi/ember/opcodes"
	"github.com/wudi/ember/values"
)

// arithmetic handles ADD/SUB/MUL/DIV/MOD. ADD also concatenates two
// strings, the one polymorphic case the glossary calls out; every
// other combination is a TypeError.
func (vm *VM) arithmetic(op opcodes.Op, line int) error {
	b, a := vm.pop(), vm.pop()

	if op == opcodes.OP_ADD && a.IsString() && b.IsString() {
		vm.push(values.StrInterned(a.AsString()+b.AsString(), vm.interns))
		return nil
	}

	if !a.IsNumber() || !b.IsNumber() {
		return vm.runtimeError(line, values.ErrType, "operands must be numbers")
	}
	x, y := a.AsNumber(), b.AsNumber()

	switch op {
	case opcodes.OP_ADD:
		vm.push(values.Number(x + y))
	case opcodes.OP_SUB:
		vm.push(values.Number(x - y))
	case opcodes.OP_MUL:
		vm.push(values.Number(x * y))
	case opcodes.OP_DIV:
		if y == 0 {
			return vm.runtimeError(line, values.ErrRange, "division by zero")
		}
		vm.push(values.Number(x / y))
	case opcodes.OP_MOD:
		if y == 0 {
			return vm.runtimeError(line, values.ErrRange, "modulo by zero")
		}
		vm.push(values.Number(float64(int64(x) % int64(y))))
	}
	return nil
}

// comparison handles LESS/LESS_EQUAL/GREATER/GREATER_EQUAL over
// numbers or strings (lexicographic).
func (vm *VM) comparison(op opcodes.Op, line int) error {
	b, a := vm.pop(), vm.pop()

	var less, equal bool
	switch {
	case a.IsNumber() && b.IsNumber():
		x, y := a.AsNumber(), b.AsNumber()
		less, equal = x < y, x == y
	case a.IsString() && b.IsString():
		x, y := a.AsString(), b.AsString()
		less, equal = x < y, x == y
	default:
		return vm.runtimeError(line, values.ErrType, "operands must be both numbers or both strings")
	}

	switch op {
	case opcodes.OP_LESS:
		vm.push(values.Bool(less))
	case opcodes.OP_LESS_EQUAL:
		vm.push(values.Bool(less || equal))
	case opcodes.OP_GREATER:
		vm.push(values.Bool(!less && !equal))
	case opcodes.OP_GREATER_EQUAL:
		vm.push(values.Bool(!less))
	}
	return nil
}
