// Package opcodes defines the single-byte instruction set the
// compiler emits and the VM dispatches.
package opcodes

// Op is a single-byte bytecode instruction.
type Op byte

const (
	// Stack and constants.
	OP_PUSH_CONST Op = iota // operand: 1-byte constant pool index
	OP_POP
	OP_DUP // duplicates the top-of-stack value

	// Locals and globals.
	OP_GET_LOCAL  // operand: 1-byte local slot
	OP_SET_LOCAL  // operand: 1-byte local slot
	OP_GET_GLOBAL // operand: 1-byte constant pool index (name)
	OP_SET_GLOBAL // operand: 1-byte constant pool index (name)

	// Arithmetic.
	OP_ADD
	OP_SUB
	OP_MUL
	OP_DIV
	OP_MOD
	OP_NOT
	OP_AND
	OP_OR
	OP_NEGATE

	// Comparison.
	OP_EQUAL
	OP_NOT_EQUAL
	OP_LESS
	OP_LESS_EQUAL
	OP_GREATER
	OP_GREATER_EQUAL

	// Control flow. Jump targets are 1-byte forward/backward offsets
	//.
	OP_JUMP
	OP_JUMP_IF_FALSE
	OP_LOOP
	OP_BREAK
	OP_CONTINUE
	OP_HALT
	OP_RETURN
	OP_CALL // operand: 1-byte argument count

	// Containers.
	OP_ARRAY_NEW  // operand: 1-byte initial element count (popped off stack)
	OP_ARRAY_GET
	OP_ARRAY_SET
	OP_HASH_MAP_NEW
	OP_HASH_MAP_GET
	OP_HASH_MAP_SET

	// OOP.
	OP_CLASS_DEF // operand: 1-byte constant pool index (name)
	OP_INHERIT
	OP_METHOD_DEF // operand: 1-byte constant pool index (name)
	OP_INSTANCE_NEW
	OP_INVOKE // operand: 1-byte constant index (method name), 1-byte arg count
	OP_GET_PROPERTY // operand: 1-byte constant index (property name)
	OP_SET_PROPERTY // operand: 1-byte constant index (property name)
	OP_GET_SUPER

	// Exceptions. TRY_BEGIN's operand is a 1-byte forward offset to the
	// handler; CATCH_BEGIN's operand is a 1-byte local slot to bind the
	// caught exception into (0xFF = no binding).
	OP_TRY_BEGIN
	OP_TRY_END
	OP_CATCH_BEGIN
	OP_CATCH_END
	OP_FINALLY_BEGIN
	OP_FINALLY_END
	OP_THROW

	// Coroutines.
	OP_AWAIT
	OP_YIELD

	// Regex.
	OP_REGEX_NEW
	OP_REGEX_TEST
	OP_REGEX_MATCH
	OP_REGEX_REPLACE
	OP_REGEX_SPLIT

	// Strings.
	OP_STRING_INTERPOLATE // operand: 1-byte part count to fold into one string

	// Switch helpers.
	OP_CASE
	OP_DEFAULT

	// Modules.
	OP_IMPORT     // operand: 1-byte constant index (module path)
	OP_EXPORT     // operand: 1-byte constant index (export name)
	OP_EXPORT_DEFAULT
)

var names = map[Op]string{
	OP_PUSH_CONST: "PUSH_CONST", OP_POP: "POP", OP_DUP: "DUP",
	OP_GET_LOCAL: "GET_LOCAL", OP_SET_LOCAL: "SET_LOCAL",
	OP_GET_GLOBAL: "GET_GLOBAL", OP_SET_GLOBAL: "SET_GLOBAL",
	OP_ADD: "ADD", OP_SUB: "SUB", OP_MUL: "MUL", OP_DIV: "DIV", OP_MOD: "MOD",
	OP_NOT: "NOT", OP_AND: "AND", OP_OR: "OR", OP_NEGATE: "NEGATE",
	OP_EQUAL: "EQUAL", OP_NOT_EQUAL: "NOT_EQUAL", OP_LESS: "LESS",
	OP_LESS_EQUAL: "LESS_EQUAL", OP_GREATER: "GREATER", OP_GREATER_EQUAL: "GREATER_EQUAL",
	OP_JUMP: "JUMP", OP_JUMP_IF_FALSE: "JUMP_IF_FALSE", OP_LOOP: "LOOP",
	OP_BREAK: "BREAK", OP_CONTINUE: "CONTINUE", OP_HALT: "HALT",
	OP_RETURN: "RETURN", OP_CALL: "CALL",
	OP_ARRAY_NEW: "ARRAY_NEW", OP_ARRAY_GET: "ARRAY_GET", OP_ARRAY_SET: "ARRAY_SET",
	OP_HASH_MAP_NEW: "HASH_MAP_NEW", OP_HASH_MAP_GET: "HASH_MAP_GET", OP_HASH_MAP_SET: "HASH_MAP_SET",
	OP_CLASS_DEF: "CLASS_DEF", OP_INHERIT: "INHERIT", OP_METHOD_DEF: "METHOD_DEF",
	OP_INSTANCE_NEW: "INSTANCE_NEW", OP_INVOKE: "INVOKE",
	OP_GET_PROPERTY: "GET_PROPERTY", OP_SET_PROPERTY: "SET_PROPERTY", OP_GET_SUPER: "GET_SUPER",
	OP_TRY_BEGIN: "TRY_BEGIN", OP_TRY_END: "TRY_END",
	OP_CATCH_BEGIN: "CATCH_BEGIN", OP_CATCH_END: "CATCH_END",
	OP_FINALLY_BEGIN: "FINALLY_BEGIN", OP_FINALLY_END: "FINALLY_END", OP_THROW: "THROW",
	OP_AWAIT: "AWAIT", OP_YIELD: "YIELD",
	OP_REGEX_NEW: "REGEX_NEW", OP_REGEX_TEST: "REGEX_TEST", OP_REGEX_MATCH: "REGEX_MATCH",
	OP_REGEX_REPLACE: "REGEX_REPLACE", OP_REGEX_SPLIT: "REGEX_SPLIT",
	OP_STRING_INTERPOLATE: "STRING_INTERPOLATE",
	OP_CASE:                "CASE", OP_DEFAULT: "DEFAULT",
	OP_IMPORT: "IMPORT", OP_EXPORT: "EXPORT", OP_EXPORT_DEFAULT: "EXPORT_DEFAULT",
}

func (op Op) String() string {
	if n, ok := names[op]; ok {
		return n
	}
	return "UNKNOWN"
}

// Operands reports how many operand bytes follow this opcode in the
// instruction stream, so a disassembler or the dispatch loop can skip
// them uniformly.
func (op Op) Operands() int {
	switch op {
	case OP_PUSH_CONST, OP_GET_LOCAL, OP_SET_LOCAL, OP_GET_GLOBAL, OP_SET_GLOBAL,
		OP_JUMP, OP_JUMP_IF_FALSE, OP_LOOP, OP_CALL, OP_ARRAY_NEW,
		OP_CLASS_DEF, OP_METHOD_DEF, OP_GET_PROPERTY, OP_SET_PROPERTY,
		OP_TRY_BEGIN, OP_CATCH_BEGIN, OP_STRING_INTERPOLATE,
		OP_GET_SUPER, OP_IMPORT, OP_EXPORT:
		return 1
	case OP_INVOKE:
		return 2
	default:
		return 0
	}
}
