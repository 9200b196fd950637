// Package memory owns the story image and the two runtime stacks.
//
// A Memory is the single mutable owner of the image bytes. Everything else
// in the interpreter (header, decoders, VM) reads and writes through it, so
// no second handle to the bytes ever exists.
package memory

import (
	"errors"
	"fmt"
)

// Error kinds shared by every layer of the interpreter.
var (
	// ErrMalformedImage reports an image whose layout is inconsistent or a
	// read/write that falls outside the image.
	ErrMalformedImage = errors.New("malformed image")

	// ErrStackUnderflow reports a pop or return with nothing to consume.
	ErrStackUnderflow = errors.New("stack underflow")

	// ErrUnsupportedOpcode reports execution of an opcode without a handler.
	ErrUnsupportedOpcode = errors.New("unsupported opcode")

	// ErrDivisionByZero reports div or mod with a zero divisor.
	ErrDivisionByZero = errors.New("division by zero")
)

// Memory is a byte-addressed story image plus the value and frame stacks.
type Memory struct {
	data []byte

	// Value stack shared by expression evaluation and frame locals.
	stack []uint16

	// Call stack
	frames []Frame
}

// New takes ownership of data. The caller must not retain or modify it.
func New(data []byte) *Memory {
	return &Memory{
		data:   data,
		stack:  make([]uint16, 0, DefaultStackSize),
		frames: make([]Frame, 0, 16),
	}
}

// Len returns the image length in bytes.
func (m *Memory) Len() int {
	return len(m.data)
}

// Byte reads the byte at addr.
func (m *Memory) Byte(addr int) (uint8, error) {
	if addr < 0 || addr >= len(m.data) {
		return 0, outOfBounds("read byte", addr)
	}
	return m.data[addr], nil
}

// Word reads the big-endian word at addr.
func (m *Memory) Word(addr int) (uint16, error) {
	if addr < 0 || addr+1 >= len(m.data) {
		return 0, outOfBounds("read word", addr)
	}
	return uint16(m.data[addr])<<8 | uint16(m.data[addr+1]), nil
}

// SetByte writes v at addr.
func (m *Memory) SetByte(addr int, v uint8) error {
	if addr < 0 || addr >= len(m.data) {
		return outOfBounds("write byte", addr)
	}
	m.data[addr] = v
	return nil
}

// SetWord writes v big-endian at addr.
func (m *Memory) SetWord(addr int, v uint16) error {
	if addr < 0 || addr+1 >= len(m.data) {
		return outOfBounds("write word", addr)
	}
	m.data[addr] = uint8(v >> 8)
	m.data[addr+1] = uint8(v)
	return nil
}

// Sum returns the 16-bit wrapping sum of the bytes in [start, end).
// end is clamped to the image length.
func (m *Memory) Sum(start, end int) uint16 {
	if end > len(m.data) {
		end = len(m.data)
	}
	var sum uint16
	for i := start; i < end; i++ {
		sum += uint16(m.data[i])
	}
	return sum
}

func outOfBounds(what string, addr int) error {
	return fmt.Errorf("%w: %s at 0x%04x out of bounds", ErrMalformedImage, what, addr)
}
