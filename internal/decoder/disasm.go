package decoder

import (
	"slices"
	"strings"

	"github.com/kolkov/zvm/internal/memory"
	"github.com/kolkov/zvm/internal/opcode"
)

// Disassemble decodes instructions back to back from start until the next
// instruction would begin at or after end. It returns everything decoded
// before the first error along with that error.
func (d *Decoder) Disassemble(start, end int) ([]*Instruction, error) {
	var out []*Instruction
	for ip := start; ip < end; {
		in, err := d.Decode(ip)
		if err != nil {
			return out, err
		}
		out = append(out, in)
		ip = in.Next()
	}
	return out, nil
}

// Walk disassembles the code reachable from entry. It follows branches,
// jumps and calls whose routine operand is a constant; routine converts a
// packed address to a byte address. Instructions are returned in address
// order. A path stops at its first decode error; the first such error is
// returned with everything decoded.
func (d *Decoder) Walk(entry int, routine func(packed uint16) int) ([]*Instruction, error) {
	seen := make(map[int]*Instruction)
	work := []int{entry}
	var firstErr error

	for len(work) > 0 {
		ip := work[len(work)-1]
		work = work[:len(work)-1]

		for seen[ip] == nil {
			in, err := d.Decode(ip)
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				break
			}
			seen[ip] = in

			if in.Branch.Kind == Jump {
				work = append(work, in.BranchTarget())
			}
			if target, ok := d.flowTarget(in, routine); ok {
				work = append(work, target)
			}
			if endsFlow(in.Op) {
				break
			}
			ip = in.Next()
		}
	}

	out := make([]*Instruction, 0, len(seen))
	for _, in := range seen {
		out = append(out, in)
	}
	slices.SortFunc(out, func(a, b *Instruction) int { return a.Offset - b.Offset })
	return out, firstErr
}

// flowTarget returns the address a jump or call transfers to when it can be
// known without running the program.
func (d *Decoder) flowTarget(in *Instruction, routine func(uint16) int) (int, bool) {
	if len(in.Operands) == 0 || in.Operands[0].Kind == Variable {
		return 0, false
	}
	v := in.Operands[0].Value

	switch in.Op {
	case opcode.Jump:
		return in.Next() + int(int16(v)) - 2, true
	case opcode.Call:
		if v == 0 || routine == nil {
			return 0, false
		}
		addr := routine(v)
		n, err := d.mem.Byte(addr)
		if err != nil || n > memory.MaxLocals {
			return 0, false
		}
		return addr + 1 + 2*int(n), true
	}
	return 0, false
}

// endsFlow reports whether execution never falls through op.
func endsFlow(op opcode.Op) bool {
	switch op {
	case opcode.Rtrue, opcode.Rfalse, opcode.Ret, opcode.RetPopped,
		opcode.PrintRet, opcode.Quit, opcode.Jump, opcode.Restart,
		opcode.Unknown:
		return true
	}
	return false
}

// Listing renders instructions one per line.
func Listing(instrs []*Instruction) string {
	var sb strings.Builder
	for _, in := range instrs {
		sb.WriteString(in.String())
		sb.WriteByte('\n')
	}
	return sb.String()
}
