// Package zasm assembles small version-3 story images.
//
// It exists to build synthetic programs for tests: instructions are emitted
// in order, labels may be referenced before they are defined, and Bytes
// lays out a header that the interpreter accepts.
//
//	a := zasm.New()
//	a.Inst(opcode.Print).Text("HI")
//	a.Inst(opcode.Quit)
//	img := a.Bytes()
package zasm

import (
	"fmt"

	"github.com/kolkov/zvm/internal/opcode"
	"github.com/kolkov/zvm/internal/zstring"
)

// Image layout.
const (
	GlobalsAddr = 0x040 // 240 words
	AbbrevsAddr = 0x220 // 96 words
	DataAddr    = 0x2e0 // abbreviation strings and other dynamic data
	StaticStart = 0x380
	CodeStart   = 0x400
)

type operandKind uint8

const (
	large operandKind = iota
	small
	variable
)

// Operand is an instruction operand, possibly a label reference.
type Operand struct {
	kind  operandKind
	value uint16
	label string
	scale int // divide the label address by scale
}

// Large is a 16-bit constant operand.
func Large(v uint16) Operand { return Operand{kind: large, value: v} }

// Small is an 8-bit constant operand.
func Small(v uint8) Operand { return Operand{kind: small, value: uint16(v)} }

// Var is a variable operand: 0 stack, 1-15 locals, 16-255 globals.
func Var(v uint8) Operand { return Operand{kind: variable, value: uint16(v)} }

// Local is the variable operand for 0-based local i.
func Local(i uint8) Operand { return Var(i + 1) }

// Global is the variable operand for global i.
func Global(i uint8) Operand { return Var(i + 16) }

// Packed is a large operand holding the packed address of label.
func Packed(label string) Operand { return Operand{kind: large, label: label, scale: 2} }

// Addr is a large operand holding the byte address of label.
func Addr(label string) Operand { return Operand{kind: large, label: label, scale: 1} }

type fixupKind uint8

const (
	fixAbsolute fixupKind = iota // word = label address / scale
	fixBranch                    // 14-bit branch offset, two bytes
	fixJump                      // signed jump offset word
)

type fixup struct {
	kind  fixupKind
	pos   int // where the field starts
	end   int // end of the instruction for relative fixups
	label string
	scale int
	upper uint8 // polarity bit for branches
}

// Assembler accumulates an image.
type Assembler struct {
	buf    []byte
	data   int // next free byte in the dynamic data area
	start  int
	labels map[string]int
	fixups []fixup
}

// New returns an assembler positioned at CodeStart.
func New() *Assembler {
	return &Assembler{
		buf:    make([]byte, CodeStart),
		data:   DataAddr,
		start:  CodeStart,
		labels: make(map[string]int),
	}
}

// PC returns the address of the next emitted byte.
func (a *Assembler) PC() int {
	return len(a.buf)
}

// SetStart sets the initial program counter (default CodeStart).
func (a *Assembler) SetStart(addr int) *Assembler {
	a.start = addr
	return a
}

// Label defines name at the current address.
func (a *Assembler) Label(name string) *Assembler {
	if _, ok := a.labels[name]; ok {
		panic(fmt.Sprintf("zasm: label %q defined twice", name))
	}
	a.labels[name] = a.PC()
	return a
}

// Emit appends raw bytes.
func (a *Assembler) Emit(b ...byte) *Assembler {
	a.buf = append(a.buf, b...)
	return a
}

// Words appends big-endian words.
func (a *Assembler) Words(w ...uint16) *Assembler {
	for _, v := range w {
		a.buf = append(a.buf, byte(v>>8), byte(v))
	}
	return a
}

// Align pads to an even address.
func (a *Assembler) Align() *Assembler {
	if len(a.buf)%2 != 0 {
		a.buf = append(a.buf, 0)
	}
	return a
}

// Routine aligns, labels and emits a routine header with one default
// value per local.
func (a *Assembler) Routine(name string, defaults ...uint16) *Assembler {
	if len(defaults) > 15 {
		panic("zasm: routine declares more than 15 locals")
	}
	a.Align().Label(name)
	a.Emit(byte(len(defaults)))
	return a.Words(defaults...)
}

// String aligns, labels and emits encoded text.
func (a *Assembler) String(name, s string) *Assembler {
	a.Align().Label(name)
	return a.Words(zstring.Encode(s)...)
}

// SetGlobal sets the initial value of global i.
func (a *Assembler) SetGlobal(i int, v uint16) *Assembler {
	a.put(GlobalsAddr+2*i, v)
	return a
}

// SetAbbrev stores s in dynamic data and points abbreviation slot at it.
func (a *Assembler) SetAbbrev(slot int, s string) *Assembler {
	words := zstring.Encode(s)
	if a.data+2*len(words) > StaticStart {
		panic("zasm: abbreviation data overflows dynamic memory")
	}
	a.put(AbbrevsAddr+2*slot, uint16(a.data/2))
	for _, w := range words {
		a.put(a.data, w)
		a.data += 2
	}
	return a
}

// SetAbbrevAddr points abbreviation slot at an arbitrary word address.
func (a *Assembler) SetAbbrevAddr(slot int, wordAddr uint16) *Assembler {
	a.put(AbbrevsAddr+2*slot, wordAddr)
	return a
}

// Inst emits op with its operands, choosing the shortest encoding.
// Store, branch and text fields are appended with To, Branch, Text.
func (a *Assembler) Inst(op opcode.Op, operands ...Operand) *Assembler {
	class, number, ok := opcode.Encoding(op)
	if !ok {
		panic(fmt.Sprintf("zasm: no encoding for %v", op))
	}

	switch class {
	case opcode.ZeroOp:
		a.Emit(0xb0 | number)
	case opcode.OneOp:
		if len(operands) != 1 {
			panic(fmt.Sprintf("zasm: %v takes one operand", op))
		}
		a.Emit(0x80 | byte(operands[0].kind)<<4 | number)
		a.operand(operands[0])
	case opcode.TwoOp:
		if len(operands) == 2 && operands[0].kind != large && operands[1].kind != large {
			b := number
			if operands[0].kind == variable {
				b |= 0x40
			}
			if operands[1].kind == variable {
				b |= 0x20
			}
			a.Emit(b)
			a.operand(operands[0])
			a.operand(operands[1])
		} else {
			a.Emit(0xc0 | number)
			a.varOperands(operands)
		}
	case opcode.VarOp:
		a.Emit(0xe0 | number)
		a.varOperands(operands)
	}
	return a
}

func (a *Assembler) varOperands(operands []Operand) {
	if len(operands) > 4 {
		panic("zasm: more than four operands")
	}
	types := byte(0xff)
	for i, o := range operands {
		shift := 6 - 2*i
		types &^= 0b11 << shift
		types |= byte(o.kind) << shift
	}
	a.Emit(types)
	for _, o := range operands {
		a.operand(o)
	}
}

func (a *Assembler) operand(o Operand) {
	if o.label != "" {
		a.fixups = append(a.fixups, fixup{kind: fixAbsolute, pos: a.PC(), label: o.label, scale: o.scale})
		a.Words(0)
		return
	}
	if o.kind == large {
		a.Words(o.value)
		return
	}
	a.Emit(byte(o.value))
}

// To appends a result byte naming variable v.
func (a *Assembler) To(v uint8) *Assembler {
	return a.Emit(v)
}

// Branch appends a branch field with a raw offset. Offsets 0-63 use the
// one-byte form.
func (a *Assembler) Branch(onTrue bool, offset int) *Assembler {
	var upper byte
	if onTrue {
		upper = 0x80
	}
	if offset >= 0 && offset < 64 {
		return a.Emit(upper | 0x40 | byte(offset))
	}
	v := uint16(offset) & 0x3fff
	return a.Emit(upper|byte(v>>8), byte(v))
}

// BranchTo appends a two-byte branch field jumping to label.
func (a *Assembler) BranchTo(onTrue bool, label string) *Assembler {
	var upper byte
	if onTrue {
		upper = 0x80
	}
	pos := a.PC()
	a.fixups = append(a.fixups, fixup{kind: fixBranch, pos: pos, end: pos + 2, label: label, upper: upper})
	return a.Emit(0, 0)
}

// Text appends encoded literal text.
func (a *Assembler) Text(s string) *Assembler {
	return a.Words(zstring.Encode(s)...)
}

// JumpTo emits an unconditional jump to label.
func (a *Assembler) JumpTo(label string) *Assembler {
	_, number, _ := opcode.Encoding(opcode.Jump)
	a.Emit(0x80 | number)
	pos := a.PC()
	a.fixups = append(a.fixups, fixup{kind: fixJump, pos: pos, end: pos + 2, label: label})
	return a.Words(0)
}

// Bytes resolves labels, writes the header and returns the image.
// It panics on undefined labels.
func (a *Assembler) Bytes() []byte {
	a.Align()
	for _, f := range a.fixups {
		target, ok := a.labels[f.label]
		if !ok {
			panic(fmt.Sprintf("zasm: undefined label %q", f.label))
		}
		switch f.kind {
		case fixAbsolute:
			a.put(f.pos, uint16(target/f.scale))
		case fixBranch:
			v := uint16(target-f.end+2) & 0x3fff
			a.buf[f.pos] = f.upper | byte(v>>8)
			a.buf[f.pos+1] = byte(v)
		case fixJump:
			a.put(f.pos, uint16(int16(target-f.end+2)))
		}
	}

	a.buf[0x00] = 3
	a.put(0x04, CodeStart)
	a.put(0x06, uint16(a.start))
	a.put(0x0c, GlobalsAddr)
	a.put(0x0e, StaticStart)
	a.put(0x18, AbbrevsAddr)
	a.put(0x1a, uint16(len(a.buf)/2))

	var sum uint16
	for _, b := range a.buf[0x40:] {
		sum += uint16(b)
	}
	a.put(0x1c, sum)

	out := make([]byte, len(a.buf))
	copy(out, a.buf)
	return out
}

func (a *Assembler) put(addr int, v uint16) {
	a.buf[addr] = byte(v >> 8)
	a.buf[addr+1] = byte(v)
}
