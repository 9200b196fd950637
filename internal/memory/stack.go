package memory

import "fmt"

// DefaultStackSize is the initial value stack capacity.
const DefaultStackSize = 1024

// MaxLocals is the largest number of locals a routine may declare.
const MaxLocals = 15

// DestKind distinguishes how a result destination is written.
type DestKind uint8

const (
	// DestOmitted means the result is discarded.
	DestOmitted DestKind = iota
	// DestVariable writes through a variable number; 0 pushes.
	DestVariable
	// DestIndirect writes in place; 0 replaces the stack top without pushing.
	DestIndirect
)

// String returns a short name for the destination kind.
func (k DestKind) String() string {
	switch k {
	case DestOmitted:
		return "omitted"
	case DestVariable:
		return "variable"
	case DestIndirect:
		return "indirect"
	default:
		return fmt.Sprintf("DestKind(%d)", k)
	}
}

// Dest is a tagged result destination.
type Dest struct {
	Kind DestKind
	Var  uint8
}

// Frame is one routine activation.
type Frame struct {
	Routine    int  // Routine byte address
	Base       int  // Stack index of local 0
	NumLocals  int  // Declared local count
	Result     Dest // Where the return value goes
	ReturnAddr int  // Address to resume at after return
}

// floor returns the lowest stack index the evaluation stack may pop to.
func (m *Memory) floor() int {
	if len(m.frames) == 0 {
		return 0
	}
	f := &m.frames[len(m.frames)-1]
	return f.Base + f.NumLocals
}

// Push pushes v onto the value stack.
func (m *Memory) Push(v uint16) {
	m.stack = append(m.stack, v)
}

// Pop removes and returns the top of the current frame's evaluation stack.
func (m *Memory) Pop() (uint16, error) {
	if len(m.stack) <= m.floor() {
		return 0, fmt.Errorf("%w: pop from empty stack", ErrStackUnderflow)
	}
	v := m.stack[len(m.stack)-1]
	m.stack = m.stack[:len(m.stack)-1]
	return v, nil
}

// Peek returns the top of the current frame's evaluation stack.
func (m *Memory) Peek() (uint16, error) {
	if len(m.stack) <= m.floor() {
		return 0, fmt.Errorf("%w: peek at empty stack", ErrStackUnderflow)
	}
	return m.stack[len(m.stack)-1], nil
}

// SetTop replaces the top of the evaluation stack in place.
// It reports false and writes nothing when the current frame's
// evaluation stack is empty.
func (m *Memory) SetTop(v uint16) bool {
	if len(m.stack) <= m.floor() {
		return false
	}
	m.stack[len(m.stack)-1] = v
	return true
}

// Depth returns the number of values on the stack, locals included.
func (m *Memory) Depth() int {
	return len(m.stack)
}

// Truncate drops stack values above depth n.
func (m *Memory) Truncate(n int) {
	if n < len(m.stack) {
		m.stack = m.stack[:n]
	}
}

// PushFrame enters a routine. The frame's locals must already be on the
// stack starting at f.Base.
func (m *Memory) PushFrame(f Frame) {
	m.frames = append(m.frames, f)
}

// PopFrame leaves the innermost routine and returns its frame.
func (m *Memory) PopFrame() (Frame, error) {
	if len(m.frames) == 0 {
		return Frame{}, fmt.Errorf("%w: return with no active frame", ErrStackUnderflow)
	}
	f := m.frames[len(m.frames)-1]
	m.frames = m.frames[:len(m.frames)-1]
	return f, nil
}

// Frame returns the innermost frame, or false at top level.
func (m *Memory) Frame() (Frame, bool) {
	if len(m.frames) == 0 {
		return Frame{}, false
	}
	return m.frames[len(m.frames)-1], true
}

// FrameDepth returns the number of active frames.
func (m *Memory) FrameDepth() int {
	return len(m.frames)
}

// Local reads local slot i (0-based) of the current frame.
// With no active frame every local reads as 0.
func (m *Memory) Local(i int) (uint16, error) {
	if len(m.frames) == 0 {
		return 0, nil
	}
	f := &m.frames[len(m.frames)-1]
	if i < 0 || i >= f.NumLocals {
		return 0, fmt.Errorf("%w: local %d of routine 0x%04x with %d locals",
			ErrMalformedImage, i, f.Routine, f.NumLocals)
	}
	return m.stack[f.Base+i], nil
}

// SetLocal writes local slot i (0-based) of the current frame.
// With no active frame the write is dropped.
func (m *Memory) SetLocal(i int, v uint16) error {
	if len(m.frames) == 0 {
		return nil
	}
	f := &m.frames[len(m.frames)-1]
	if i < 0 || i >= f.NumLocals {
		return fmt.Errorf("%w: local %d of routine 0x%04x with %d locals",
			ErrMalformedImage, i, f.Routine, f.NumLocals)
	}
	m.stack[f.Base+i] = v
	return nil
}
