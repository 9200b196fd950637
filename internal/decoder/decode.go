package decoder

import (
	"fmt"

	"github.com/kolkov/zvm/internal/memory"
	"github.com/kolkov/zvm/internal/opcode"
	"github.com/kolkov/zvm/internal/zstring"
)

// Decoder decodes instructions from one image.
type Decoder struct {
	mem  *memory.Memory
	text *zstring.Decoder
}

// New returns a decoder over mem. abbrevs is the abbreviation table address
// used for inline text.
func New(mem *memory.Memory, abbrevs int) *Decoder {
	return &Decoder{mem: mem, text: zstring.NewDecoder(mem, abbrevs)}
}

// Decode is a convenience wrapper around Decoder.Decode.
func Decode(mem *memory.Memory, abbrevs, ip int) (*Instruction, error) {
	return New(mem, abbrevs).Decode(ip)
}

// Decode decodes the instruction at ip. Unknown opcodes decode normally
// with Op set to opcode.Unknown; only reads past the image fail.
func (d *Decoder) Decode(ip int) (*Instruction, error) {
	r := reader{mem: d.mem, pos: ip}
	op := r.byte()

	in := &Instruction{Offset: ip}
	switch op >> 6 {
	case 0b11:
		d.decodeVar(&r, in, op)
	case 0b10:
		d.decodeShort(&r, in, op)
	default:
		d.decodeLong(&r, in, op)
	}
	in.Op = opcode.Lookup(in.Class, in.Number)

	if opcode.Stores(in.Class, in.Number) {
		in.Store = memory.Dest{Kind: memory.DestVariable, Var: r.byte()}
	}
	if opcode.Branches(in.Class, in.Number) {
		in.Branch = decodeBranch(&r)
	}
	if r.err != nil {
		return nil, fmt.Errorf("decode instruction at 0x%04x: %w", ip, r.err)
	}

	if opcode.HasText(in.Class, in.Number) {
		text, n, err := d.text.Decode(r.pos, 0)
		if err != nil {
			return nil, fmt.Errorf("decode instruction at 0x%04x: %w", ip, err)
		}
		in.Text = Literal{Present: true, Text: text}
		r.pos += n
	}

	in.Length = r.pos - ip
	return in, nil
}

// decodeShort handles 10xxxxxx: bits 5-4 give the operand type,
// 11 meaning no operand.
func (d *Decoder) decodeShort(r *reader, in *Instruction, op uint8) {
	in.Number = op & 0x0f
	switch (op >> 4) & 0b11 {
	case 0b11:
		in.Class = opcode.ZeroOp
	case 0b10:
		in.Class = opcode.OneOp
		in.Operands = []Operand{{Kind: Variable, Value: uint16(r.byte())}}
	case 0b01:
		in.Class = opcode.OneOp
		in.Operands = []Operand{{Kind: Small, Value: uint16(r.byte())}}
	default:
		in.Class = opcode.OneOp
		in.Operands = []Operand{{Kind: Large, Value: r.word()}}
	}
}

// decodeLong handles 0abxxxxx: two one-byte operands, a and b selecting
// variable (1) or small constant (0).
func (d *Decoder) decodeLong(r *reader, in *Instruction, op uint8) {
	in.Class = opcode.TwoOp
	in.Number = op & 0x1f

	kind := func(bit uint8) OperandKind {
		if op&bit != 0 {
			return Variable
		}
		return Small
	}
	k1, k2 := kind(0x40), kind(0x20)
	in.Operands = []Operand{
		{Kind: k1, Value: uint16(r.byte())},
		{Kind: k2, Value: uint16(r.byte())},
	}
}

// decodeVar handles 11axxxxx followed by a type byte of four 2-bit fields.
func (d *Decoder) decodeVar(r *reader, in *Instruction, op uint8) {
	in.Number = op & 0x1f
	if op&0x20 != 0 {
		in.Class = opcode.VarOp
	} else {
		in.Class = opcode.TwoOp
	}

	types := r.byte()
	operands := make([]Operand, 0, 4)
	for i := 0; i < 4; i++ {
		switch OperandKind((types >> (6 - 2*i)) & 0b11) {
		case Large:
			operands = append(operands, Operand{Kind: Large, Value: r.word()})
		case Small:
			operands = append(operands, Operand{Kind: Small, Value: uint16(r.byte())})
		case Variable:
			operands = append(operands, Operand{Kind: Variable, Value: uint16(r.byte())})
		case Omitted:
			// Filtered out; later fields are still read.
		}
	}
	in.Operands = operands
}

// decodeBranch reads a one- or two-byte branch field.
func decodeBranch(r *reader) Branch {
	b1 := r.byte()
	br := Branch{OnTrue: b1&0x80 != 0}
	if b1&0x40 != 0 {
		br.Offset = int(b1 & 0x3f)
	} else {
		offset := int(b1&0x3f)<<8 | int(r.byte())
		if offset&0x2000 != 0 {
			offset -= 0x4000
		}
		br.Offset = offset
	}

	switch br.Offset {
	case 0:
		br.Kind = ReturnFalse
	case 1:
		br.Kind = ReturnTrue
	default:
		br.Kind = Jump
	}
	return br
}

// reader reads sequential bytes, remembering the first error.
type reader struct {
	mem *memory.Memory
	pos int
	err error
}

func (r *reader) byte() uint8 {
	if r.err != nil {
		return 0
	}
	b, err := r.mem.Byte(r.pos)
	if err != nil {
		r.err = err
		return 0
	}
	r.pos++
	return b
}

func (r *reader) word() uint16 {
	hi := r.byte()
	lo := r.byte()
	return uint16(hi)<<8 | uint16(lo)
}
