// Package vm executes story images one decoded instruction at a time.
package vm

import (
	"io"

	"github.com/tliron/commonlog"

	"github.com/kolkov/zvm/internal/decoder"
	"github.com/kolkov/zvm/internal/header"
	"github.com/kolkov/zvm/internal/memory"
	"github.com/kolkov/zvm/internal/zstring"
)

var log = commonlog.GetLogger("zvm.vm")

// Event describes one instruction about to execute.
type Event struct {
	Step        uint64
	Instruction *decoder.Instruction
	StackDepth  int
	FrameDepth  int
}

// Tracer observes every instruction before it executes. A tracer error
// halts the machine.
type Tracer interface {
	Trace(ev Event) error
}

// Config holds VM configuration options.
type Config struct {
	// Output receives all printed text. Defaults to io.Discard.
	Output io.Writer

	// Tracer, if set, sees each instruction before execution.
	Tracer Tracer

	// MaxSteps stops the run with ErrStepLimit after this many
	// instructions. Zero means no limit.
	MaxSteps uint64
}

// VM is the interpreter state: the image with its stacks, the header it
// was derived from, and the program counter.
type VM struct {
	mem  *memory.Memory
	hdr  *header.Header
	dec  *decoder.Decoder
	text *zstring.Decoder

	pc     int
	next   int // where execution continues after the current instruction
	halted bool
	steps  uint64

	output   io.Writer
	outErr   error
	tracer   Tracer
	maxSteps uint64

	// Checksum of the image as loaded, before any dynamic writes.
	loadSum uint16
}

// New creates a VM positioned at the header's initial program counter.
func New(mem *memory.Memory, hdr *header.Header) *VM {
	return NewWithConfig(mem, hdr, Config{})
}

// NewWithConfig creates a VM with the given configuration.
func NewWithConfig(mem *memory.Memory, hdr *header.Header, config Config) *VM {
	out := config.Output
	if out == nil {
		out = io.Discard
	}
	return &VM{
		mem:      mem,
		hdr:      hdr,
		dec:      decoder.New(mem, hdr.Abbrevs),
		text:     zstring.NewDecoder(mem, hdr.Abbrevs),
		pc:       hdr.InitialPC,
		output:   out,
		tracer:   config.Tracer,
		maxSteps: config.MaxSteps,
		loadSum:  mem.Sum(header.Size, hdr.ChecksumEnd()),
	}
}

// SetOutput replaces the output writer.
func (vm *VM) SetOutput(w io.Writer) {
	vm.output = w
}

// SetTracer installs t, or removes tracing when t is nil.
func (vm *VM) SetTracer(t Tracer) {
	vm.tracer = t
}

// PC returns the address of the next instruction.
func (vm *VM) PC() int {
	return vm.pc
}

// Halted reports whether the machine has stopped.
func (vm *VM) Halted() bool {
	return vm.halted
}

// Steps returns the number of instructions executed.
func (vm *VM) Steps() uint64 {
	return vm.steps
}

// Run executes instructions until the program quits or an error occurs.
// A program that never quits runs forever unless Config.MaxSteps is set.
func (vm *VM) Run() error {
	log.Debugf("run from 0x%04x", vm.pc)
	for !vm.halted {
		if err := vm.Step(); err != nil {
			return err
		}
	}
	return nil
}

// Step decodes and executes one instruction. Every error halts the
// machine; stepping a halted machine does nothing.
func (vm *VM) Step() error {
	if vm.halted {
		return nil
	}
	if vm.maxSteps > 0 && vm.steps >= vm.maxSteps {
		vm.halted = true
		return &RuntimeError{Offset: vm.pc, Err: ErrStepLimit}
	}

	in, err := vm.dec.Decode(vm.pc)
	if err != nil {
		vm.halted = true
		return &RuntimeError{Offset: vm.pc, Err: err}
	}

	if vm.tracer != nil {
		ev := Event{
			Step:        vm.steps,
			Instruction: in,
			StackDepth:  vm.mem.Depth(),
			FrameDepth:  vm.mem.FrameDepth(),
		}
		if err := vm.tracer.Trace(ev); err != nil {
			vm.halted = true
			return &RuntimeError{Offset: in.Offset, Op: in.Op, Err: err}
		}
	}
	vm.steps++

	vm.next = in.Next()
	if err := vm.execute(in); err != nil {
		vm.halted = true
		if _, ok := err.(*UnsupportedOpcodeError); ok {
			return err
		}
		return &RuntimeError{Offset: in.Offset, Op: in.Op, Err: err}
	}
	vm.pc = vm.next
	return nil
}

// print writes s to the output. Output is fire-and-forget: a failing
// writer is logged once and otherwise ignored.
func (vm *VM) print(s string) {
	if _, err := io.WriteString(vm.output, s); err != nil && vm.outErr == nil {
		vm.outErr = err
		log.Warningf("output: %v", err)
	}
}
