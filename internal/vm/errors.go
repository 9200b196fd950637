package vm

import (
	"errors"
	"fmt"

	"github.com/kolkov/zvm/internal/memory"
	"github.com/kolkov/zvm/internal/opcode"
)

// ErrStepLimit reports a run stopped by Config.MaxSteps.
var ErrStepLimit = errors.New("step limit reached")

// UnsupportedOpcodeError reports execution of an instruction the machine
// has no handler for.
type UnsupportedOpcodeError struct {
	Name   string // Opcode name, or class and number for unknown opcodes
	Offset int    // Address of the instruction
}

func (e *UnsupportedOpcodeError) Error() string {
	return fmt.Sprintf("unsupported opcode %s at 0x%04x", e.Name, e.Offset)
}

// Is matches memory.ErrUnsupportedOpcode.
func (e *UnsupportedOpcodeError) Is(target error) bool {
	return target == memory.ErrUnsupportedOpcode
}

// RuntimeError is a failure while executing the instruction at Offset.
type RuntimeError struct {
	Offset int
	Op     opcode.Op // opcode.Unknown if the instruction did not decode
	Err    error
}

func (e *RuntimeError) Error() string {
	if e.Op == opcode.Unknown {
		return fmt.Sprintf("at 0x%04x: %v", e.Offset, e.Err)
	}
	return fmt.Sprintf("%s at 0x%04x: %v", e.Op, e.Offset, e.Err)
}

func (e *RuntimeError) Unwrap() error {
	return e.Err
}
