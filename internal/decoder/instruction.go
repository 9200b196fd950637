// Package decoder decodes variable-length instructions from a story image.
package decoder

import (
	"fmt"
	"strings"

	"github.com/kolkov/zvm/internal/memory"
	"github.com/kolkov/zvm/internal/opcode"
)

// OperandKind is the encoding of one operand.
type OperandKind uint8

const (
	Large    OperandKind = iota // 16-bit constant
	Small                       // 8-bit constant
	Variable                    // variable reference
	Omitted                     // absent (variable form only, filtered out)
)

// String returns the operand kind name.
func (k OperandKind) String() string {
	switch k {
	case Large:
		return "large"
	case Small:
		return "small"
	case Variable:
		return "variable"
	case Omitted:
		return "omitted"
	default:
		return fmt.Sprintf("OperandKind(%d)", k)
	}
}

// Operand is one decoded operand.
type Operand struct {
	Kind  OperandKind
	Value uint16
}

// BranchKind tags the branch field of an instruction.
type BranchKind uint8

const (
	NoBranch    BranchKind = iota // instruction has no branch field
	ReturnFalse                   // offset 0: return false from the routine
	ReturnTrue                    // offset 1: return true from the routine
	Jump                          // any other offset: relative jump
)

// Branch is the optional branch descriptor.
type Branch struct {
	Kind BranchKind

	// OnTrue is the polarity: branch when the condition holds (true) or
	// when it fails (false).
	OnTrue bool

	// Offset is the signed branch offset as encoded.
	Offset int
}

// Literal is optional inline text following print and print_ret.
type Literal struct {
	Present bool
	Text    string
}

// Instruction is one decoded instruction. Instructions are decoded fresh
// for every execution step and never cached.
type Instruction struct {
	Offset   int          // Address of the opcode byte
	Class    opcode.Class // Operand-count class
	Number   uint8        // Opcode number within Class
	Op       opcode.Op    // Resolved identity (opcode.Unknown if none)
	Operands []Operand
	Store    memory.Dest // Result destination (DestOmitted if none)
	Branch   Branch
	Text     Literal
	Length   int // Total encoded length in bytes
}

// Next returns the address of the following instruction.
func (in *Instruction) Next() int {
	return in.Offset + in.Length
}

// BranchTarget returns the address a taken Jump branch continues at.
func (in *Instruction) BranchTarget() int {
	return in.Offset + in.Length + in.Branch.Offset - 2
}

// String renders the instruction as a single disassembly line.
func (in *Instruction) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%05x: %s", in.Offset, in.Op)
	if in.Op == opcode.Unknown {
		fmt.Fprintf(&sb, "(%s:%d)", in.Class, in.Number)
	}

	for i, o := range in.Operands {
		sb.WriteByte(' ')
		if i == 0 && in.Op.TakesVarRef() && o.Kind != Variable {
			// A constant naming a variable, such as `inc G10`.
			sb.WriteString(varName(uint8(o.Value)))
			continue
		}
		sb.WriteString(o.String())
	}

	if in.Store.Kind != memory.DestOmitted {
		sb.WriteString(" -> ")
		sb.WriteString(varName(in.Store.Var))
	}

	switch in.Branch.Kind {
	case ReturnFalse:
		sb.WriteString(polarity(in.Branch.OnTrue) + "rfalse")
	case ReturnTrue:
		sb.WriteString(polarity(in.Branch.OnTrue) + "rtrue")
	case Jump:
		fmt.Fprintf(&sb, "%s%05x", polarity(in.Branch.OnTrue), in.BranchTarget())
	}

	if in.Text.Present {
		fmt.Fprintf(&sb, " %q", in.Text.Text)
	}
	return sb.String()
}

// String formats an operand for disassembly.
func (o Operand) String() string {
	switch o.Kind {
	case Large:
		return fmt.Sprintf("#%04x", o.Value)
	case Small:
		return fmt.Sprintf("#%02x", o.Value)
	case Variable:
		return varName(uint8(o.Value))
	default:
		return "_"
	}
}

func polarity(onTrue bool) string {
	if onTrue {
		return " ?"
	}
	return " ?~"
}

// varName formats a variable number: sp, L00-L0e, G00-Gef.
func varName(v uint8) string {
	switch {
	case v == 0:
		return "sp"
	case v < 16:
		return fmt.Sprintf("L%02x", v-1)
	default:
		return fmt.Sprintf("G%02x", v-16)
	}
}
