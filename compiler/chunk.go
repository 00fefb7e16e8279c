// Package compiler implements Ember's single-pass Pratt compiler: it
// turns a token stream directly into a Chunk of bytecode, with
// backpatching for control flow, try/catch/finally, switch, classes,
// and imports.
package compiler

import "github.com/wudi/ember/values"

// maxConstants bounds the constant pool so pool indices fit in the
// single operand byte OP_PUSH_CONST and friends use.
const maxConstants = 256

// Chunk is a compiled code unit: a growable byte vector of
// instructions, its constant pool, and a parallel line table mapping
// code offset to source line. It has no dependency on the VM
//.
type Chunk struct {
	Code      []byte
	Constants []*values.Value
	Lines     []int
	Name      string
}

func NewChunk(name string) *Chunk {
	return &Chunk{Name: name}
}

// Write appends one instruction byte, amortized O(1) via Go's slice
// doubling growth.
func (c *Chunk) Write(b byte, line int) int {
	c.Code = append(c.Code, b)
	c.Lines = append(c.Lines, line)
	return len(c.Code) - 1
}

// AddConstant interns v into the pool and returns its index, or -1 if
// the pool has reached its fixed maximum size.
func (c *Chunk) AddConstant(v *values.Value) int {
	if len(c.Constants) >= maxConstants {
		return -1
	}
	c.Constants = append(c.Constants, v)
	return len(c.Constants) - 1
}

// LineAt returns the source line the instruction at offset was
// compiled from.
func (c *Chunk) LineAt(offset int) int {
	if offset < 0 || offset >= len(c.Lines) {
		return -1
	}
	return c.Lines[offset]
}

// Free releases the chunk's storage. The VM calls this during
// teardown of tracked function chunks.
func (c *Chunk) Free() {
	c.Code = nil
	c.Constants = nil
	c.Lines = nil
}
