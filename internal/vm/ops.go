package vm

import (
	"fmt"
	"strconv"

	"github.com/kolkov/zvm/internal/decoder"
	"github.com/kolkov/zvm/internal/memory"
	"github.com/kolkov/zvm/internal/opcode"
	"github.com/kolkov/zvm/internal/zstring"
)

// arity is the minimum operand count of every opcode with a handler.
var arity = map[opcode.Op]int{
	opcode.Rtrue: 0, opcode.Rfalse: 0, opcode.Print: 0, opcode.PrintRet: 0,
	opcode.Nop: 0, opcode.RetPopped: 0, opcode.Pop: 0, opcode.Quit: 0,
	opcode.NewLine: 0, opcode.Verify: 0,

	opcode.Jz: 1, opcode.Inc: 1, opcode.Dec: 1, opcode.PrintAddr: 1,
	opcode.Ret: 1, opcode.Jump: 1, opcode.PrintPaddr: 1, opcode.Load: 1,
	opcode.Not: 1,

	opcode.Je: 1, opcode.Jl: 2, opcode.Jg: 2, opcode.DecChk: 2,
	opcode.IncChk: 2, opcode.Test: 2, opcode.Or: 2, opcode.And: 2,
	opcode.Store: 2, opcode.Loadw: 2, opcode.Loadb: 2, opcode.Add: 2,
	opcode.Sub: 2, opcode.Mul: 2, opcode.Div: 2, opcode.Mod: 2,

	opcode.Call: 1, opcode.Storew: 3, opcode.Storeb: 3,
	opcode.PrintChar: 1, opcode.PrintNum: 1, opcode.Push: 1, opcode.Pull: 1,
}

// execute dispatches one decoded instruction.
func (vm *VM) execute(in *decoder.Instruction) error {
	n, ok := arity[in.Op]
	if !ok {
		return vm.unsupported(in)
	}
	args, err := vm.operands(in)
	if err != nil {
		return err
	}
	if len(args) < n {
		return fmt.Errorf("%w: %s needs %d operands, has %d",
			memory.ErrMalformedImage, in.Op, n, len(args))
	}

	switch in.Op {
	// 0OP
	case opcode.Rtrue:
		return vm.ret(1)
	case opcode.Rfalse:
		return vm.ret(0)
	case opcode.Print:
		vm.print(in.Text.Text)
	case opcode.PrintRet:
		vm.print(in.Text.Text)
		vm.print("\n")
		return vm.ret(1)
	case opcode.Nop:
	case opcode.RetPopped:
		v, err := vm.mem.Pop()
		if err != nil {
			return err
		}
		return vm.ret(v)
	case opcode.Pop:
		_, err := vm.mem.Pop()
		return err
	case opcode.Quit:
		log.Debugf("quit at 0x%04x after %d steps", in.Offset, vm.steps)
		vm.halted = true
	case opcode.NewLine:
		vm.print("\n")
	case opcode.Verify:
		return vm.branch(in, vm.loadSum == vm.hdr.Checksum)

	// 1OP
	case opcode.Jz:
		return vm.branch(in, args[0] == 0)
	case opcode.Inc:
		_, err := vm.adjust(args[0], 1)
		return err
	case opcode.Dec:
		_, err := vm.adjust(args[0], -1)
		return err
	case opcode.PrintAddr:
		return vm.printText(int(args[0]))
	case opcode.Ret:
		return vm.ret(args[0])
	case opcode.Jump:
		vm.next = in.Offset + in.Length + int(int16(args[0])) - 2
	case opcode.PrintPaddr:
		return vm.printText(vm.hdr.StringAddr(args[0]))
	case opcode.Load:
		ref, err := varRef(args[0])
		if err != nil {
			return err
		}
		v, err := vm.peekVar(ref)
		if err != nil {
			return err
		}
		return vm.store(in.Store, v)
	case opcode.Not:
		return vm.store(in.Store, ^args[0])

	// 2OP
	case opcode.Je:
		eq := false
		for _, b := range args[1:] {
			if args[0] == b {
				eq = true
				break
			}
		}
		return vm.branch(in, eq)
	case opcode.Jl:
		return vm.branch(in, int16(args[0]) < int16(args[1]))
	case opcode.Jg:
		return vm.branch(in, int16(args[0]) > int16(args[1]))
	case opcode.DecChk:
		v, err := vm.adjust(args[0], -1)
		if err != nil {
			return err
		}
		return vm.branch(in, int16(v) < int16(args[1]))
	case opcode.IncChk:
		v, err := vm.adjust(args[0], 1)
		if err != nil {
			return err
		}
		return vm.branch(in, int16(v) > int16(args[1]))
	case opcode.Test:
		return vm.branch(in, args[0]&args[1] == args[1])
	case opcode.Or:
		return vm.store(in.Store, args[0]|args[1])
	case opcode.And:
		return vm.store(in.Store, args[0]&args[1])
	case opcode.Store:
		ref, err := varRef(args[0])
		if err != nil {
			return err
		}
		return vm.store(indirect(uint16(ref)), args[1])
	case opcode.Loadw:
		v, err := vm.mem.Word(int(args[0] + 2*args[1]))
		if err != nil {
			return err
		}
		return vm.store(in.Store, v)
	case opcode.Loadb:
		v, err := vm.mem.Byte(int(args[0] + args[1]))
		if err != nil {
			return err
		}
		return vm.store(in.Store, uint16(v))
	case opcode.Add:
		return vm.store(in.Store, uint16(int16(args[0])+int16(args[1])))
	case opcode.Sub:
		return vm.store(in.Store, uint16(int16(args[0])-int16(args[1])))
	case opcode.Mul:
		return vm.store(in.Store, uint16(int16(args[0])*int16(args[1])))
	case opcode.Div:
		if args[1] == 0 {
			return memory.ErrDivisionByZero
		}
		return vm.store(in.Store, uint16(int16(args[0])/int16(args[1])))
	case opcode.Mod:
		if args[1] == 0 {
			return memory.ErrDivisionByZero
		}
		return vm.store(in.Store, uint16(int16(args[0])%int16(args[1])))

	// VAR
	case opcode.Call:
		return vm.call(in, args)
	case opcode.Storew:
		addr := int(args[0] + 2*args[1])
		if !vm.hdr.Writable(addr, 2) {
			return readOnly(addr)
		}
		return vm.mem.SetWord(addr, args[2])
	case opcode.Storeb:
		addr := int(args[0] + args[1])
		if !vm.hdr.Writable(addr, 1) {
			return readOnly(addr)
		}
		return vm.mem.SetByte(addr, uint8(args[2]))
	case opcode.PrintChar:
		vm.print(string(zstring.ZSCIIToRune(args[0])))
	case opcode.PrintNum:
		vm.print(strconv.Itoa(int(int16(args[0]))))
	case opcode.Push:
		vm.mem.Push(args[0])
	case opcode.Pull:
		ref, err := varRef(args[0])
		if err != nil {
			return err
		}
		v, err := vm.mem.Pop()
		if err != nil {
			return err
		}
		return vm.store(indirect(uint16(ref)), v)

	default:
		return vm.unsupported(in)
	}
	return nil
}

// unsupported halts on an instruction with no handler.
func (vm *VM) unsupported(in *decoder.Instruction) error {
	name := in.Op.String()
	if in.Op == opcode.Unknown {
		name = fmt.Sprintf("%s:0x%02x", in.Class, in.Number)
	}
	log.Errorf("unsupported opcode %s at 0x%04x", name, in.Offset)
	return &UnsupportedOpcodeError{Name: name, Offset: in.Offset}
}

// adjust adds delta to the variable named by ref in place and returns the
// new value.
func (vm *VM) adjust(ref uint16, delta int16) (uint16, error) {
	v, err := varRef(ref)
	if err != nil {
		return 0, err
	}
	old, err := vm.peekVar(v)
	if err != nil {
		return 0, err
	}
	val := uint16(int16(old) + delta)
	return val, vm.store(indirect(uint16(v)), val)
}

// printText prints the string at byte address addr.
func (vm *VM) printText(addr int) error {
	s, _, err := vm.text.Decode(addr, 0)
	if err != nil {
		return err
	}
	vm.print(s)
	return nil
}

// call enters the routine at packed address args[0], passing the rest of
// args as its first locals.
func (vm *VM) call(in *decoder.Instruction, args []uint16) error {
	addr := vm.hdr.RoutineAddr(args[0])
	if addr == vm.hdr.DynamicStart {
		return vm.store(in.Store, 0)
	}

	n, err := vm.mem.Byte(addr)
	if err != nil {
		return err
	}
	if n > memory.MaxLocals {
		return fmt.Errorf("%w: routine at 0x%04x declares %d locals",
			memory.ErrMalformedImage, addr, n)
	}

	locals := make([]uint16, n)
	for i := range locals {
		if i+1 < len(args) {
			locals[i] = args[i+1]
			continue
		}
		if locals[i], err = vm.mem.Word(addr + 1 + 2*i); err != nil {
			return err
		}
	}

	base := vm.mem.Depth()
	for _, v := range locals {
		vm.mem.Push(v)
	}
	vm.mem.PushFrame(memory.Frame{
		Routine:    addr,
		Base:       base,
		NumLocals:  int(n),
		Result:     in.Store,
		ReturnAddr: in.Next(),
	})
	vm.next = addr + 1 + 2*int(n)
	return nil
}

// ret leaves the current routine with value v.
func (vm *VM) ret(v uint16) error {
	f, err := vm.mem.PopFrame()
	if err != nil {
		return err
	}
	vm.mem.Truncate(f.Base)
	vm.next = f.ReturnAddr
	return vm.store(f.Result, v)
}

// branch takes in's branch when cond matches its polarity.
func (vm *VM) branch(in *decoder.Instruction, cond bool) error {
	if cond != in.Branch.OnTrue {
		return nil
	}
	switch in.Branch.Kind {
	case decoder.ReturnFalse:
		return vm.ret(0)
	case decoder.ReturnTrue:
		return vm.ret(1)
	case decoder.Jump:
		vm.next = in.BranchTarget()
	}
	return nil
}

// varRef checks that an operand naming a variable fits a variable number.
func varRef(v uint16) (uint8, error) {
	if v > 0xff {
		return 0, fmt.Errorf("%w: variable reference %d", memory.ErrMalformedImage, v)
	}
	return uint8(v), nil
}

func readOnly(addr int) error {
	return fmt.Errorf("%w: write to read-only memory at 0x%04x", memory.ErrMalformedImage, addr)
}
