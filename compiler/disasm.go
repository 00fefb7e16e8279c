package compiler

import (
	"fmt"
	"strings"

	"github.com/wudi/ember/opcodes"
)

// Disassemble renders chunk's instruction stream as one mnemonic line
// per opcode, with resolved constant-pool operands, for the `--trace`
// compiler flag.
func (c *Chunk) Disassemble() string {
	var b strings.Builder
	fmt.Fprintf(&b, "== %s ==\n", c.Name)
	for offset := 0; offset < len(c.Code); {
		offset = c.disassembleInstruction(&b, offset)
	}
	return b.String()
}

func (c *Chunk) disassembleInstruction(b *strings.Builder, offset int) int {
	op := opcodes.Op(c.Code[offset])
	fmt.Fprintf(b, "%04d %4d %s", offset, c.LineAt(offset), op)

	n := op.Operands()
	for i := 0; i < n; i++ {
		idx := offset + 1 + i
		if idx >= len(c.Code) {
			break
		}
		operand := c.Code[idx]
		fmt.Fprintf(b, " %d", operand)
		if (op == opcodes.OP_PUSH_CONST || op == opcodes.OP_GET_GLOBAL || op == opcodes.OP_SET_GLOBAL ||
			op == opcodes.OP_CLASS_DEF || op == opcodes.OP_METHOD_DEF || op == opcodes.OP_GET_PROPERTY ||
			op == opcodes.OP_SET_PROPERTY || op == opcodes.OP_IMPORT || op == opcodes.OP_EXPORT) &&
			int(operand) < len(c.Constants) {
			fmt.Fprintf(b, " ; %s", c.Constants[operand].String())
		}
	}
	b.WriteString("\n")
	return offset + 1 + n
}
