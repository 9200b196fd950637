package vm

import (
	"github.com/kolkov/zvm/internal/decoder"
	"github.com/kolkov/zvm/internal/memory"
)

// Variable numbers: 0 is the stack top, 1-15 are locals 0-14 of the
// current frame, 16-255 are globals 0-239.

// value evaluates an operand. A variable operand naming the stack pops it.
func (vm *VM) value(o decoder.Operand) (uint16, error) {
	if o.Kind != decoder.Variable {
		return o.Value, nil
	}
	return vm.readVar(uint8(o.Value))
}

// operands evaluates all operands in order.
func (vm *VM) operands(in *decoder.Instruction) ([]uint16, error) {
	args := make([]uint16, len(in.Operands))
	for i, o := range in.Operands {
		v, err := vm.value(o)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	return args, nil
}

// readVar reads variable v, popping when v is the stack.
func (vm *VM) readVar(v uint8) (uint16, error) {
	switch {
	case v == 0:
		return vm.mem.Pop()
	case v < 16:
		return vm.mem.Local(int(v) - 1)
	default:
		return vm.mem.Word(vm.hdr.GlobalAddr(int(v) - 16))
	}
}

// peekVar reads variable v without consuming the stack. Opcodes that name
// a variable rather than take its value read this way.
func (vm *VM) peekVar(v uint8) (uint16, error) {
	if v == 0 {
		return vm.mem.Peek()
	}
	return vm.readVar(v)
}

// store writes val to d.
func (vm *VM) store(d memory.Dest, val uint16) error {
	switch d.Kind {
	case memory.DestOmitted:
		return nil
	case memory.DestIndirect:
		if d.Var == 0 {
			// Replaces the top in place; with nothing on the current
			// frame's stack the value goes nowhere.
			vm.mem.SetTop(val)
			return nil
		}
	case memory.DestVariable:
		if d.Var == 0 {
			vm.mem.Push(val)
			return nil
		}
	}

	if d.Var < 16 {
		return vm.mem.SetLocal(int(d.Var)-1, val)
	}
	return vm.mem.SetWord(vm.hdr.GlobalAddr(int(d.Var)-16), val)
}

// indirect names variable v as an in-place destination.
func indirect(v uint16) memory.Dest {
	return memory.Dest{Kind: memory.DestIndirect, Var: uint8(v)}
}
