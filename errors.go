package zvm

import (
	"errors"
	"fmt"

	"github.com/kolkov/zvm/internal/loader"
	"github.com/kolkov/zvm/internal/memory"
	"github.com/kolkov/zvm/internal/opcode"
	"github.com/kolkov/zvm/internal/vm"
)

// Sentinel errors. Every error returned by this package wraps one of these
// or an I/O error.
var (
	ErrMalformedImage    = memory.ErrMalformedImage
	ErrStackUnderflow    = memory.ErrStackUnderflow
	ErrUnsupportedOpcode = memory.ErrUnsupportedOpcode
	ErrDivisionByZero    = memory.ErrDivisionByZero
	ErrChecksum          = loader.ErrChecksum
	ErrStepLimit         = vm.ErrStepLimit
)

// LoadError reports a story that cannot be run.
type LoadError struct {
	Path string // File name, empty for in-memory images
	Err  error
}

func (e *LoadError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("load error: %v", e.Err)
	}
	return fmt.Sprintf("load error: %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// ConfigError reports an invalid configuration value.
type ConfigError struct {
	Key string // Configuration key, such as "trace.format"
	Err error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error: %s: %v", e.Key, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// RuntimeError represents an error during story execution.
type RuntimeError struct {
	Offset int    // Address of the failing instruction
	Op     string // Opcode name, empty if the instruction did not decode
	Err    error
}

func (e *RuntimeError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("runtime error at 0x%04x: %v", e.Offset, e.Err)
	}
	return fmt.Sprintf("runtime error in %s at 0x%04x: %v", e.Op, e.Offset, e.Err)
}

func (e *RuntimeError) Unwrap() error {
	return e.Err
}

// runtimeError converts an error from the VM to the public type.
func runtimeError(err error) error {
	var unsupported *vm.UnsupportedOpcodeError
	if errors.As(err, &unsupported) {
		return &RuntimeError{Offset: unsupported.Offset, Op: unsupported.Name, Err: ErrUnsupportedOpcode}
	}
	var re *vm.RuntimeError
	if errors.As(err, &re) {
		op := ""
		if re.Op != opcode.Unknown {
			op = re.Op.String()
		}
		return &RuntimeError{Offset: re.Offset, Op: op, Err: re.Err}
	}
	return &RuntimeError{Err: err}
}
