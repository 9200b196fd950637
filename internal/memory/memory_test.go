package memory

import (
	"errors"
	"testing"
)

func TestByteWordAccess(t *testing.T) {
	m := New([]byte{0x12, 0x34, 0x56, 0x78})

	if b, err := m.Byte(1); err != nil || b != 0x34 {
		t.Errorf("Byte(1) = 0x%02x, %v; want 0x34", b, err)
	}
	if w, err := m.Word(2); err != nil || w != 0x5678 {
		t.Errorf("Word(2) = 0x%04x, %v; want 0x5678", w, err)
	}

	if err := m.SetWord(0, 0xbeef); err != nil {
		t.Fatalf("SetWord: %v", err)
	}
	if w, _ := m.Word(0); w != 0xbeef {
		t.Errorf("Word(0) after SetWord = 0x%04x, want 0xbeef", w)
	}
	if err := m.SetByte(3, 0xff); err != nil {
		t.Fatalf("SetByte: %v", err)
	}
	if b, _ := m.Byte(3); b != 0xff {
		t.Errorf("Byte(3) after SetByte = 0x%02x, want 0xff", b)
	}
}

func TestOutOfBounds(t *testing.T) {
	m := New(make([]byte, 4))

	tests := []struct {
		name string
		fn   func() error
	}{
		{"byte negative", func() error { _, err := m.Byte(-1); return err }},
		{"byte past end", func() error { _, err := m.Byte(4); return err }},
		{"word straddles end", func() error { _, err := m.Word(3); return err }},
		{"set byte past end", func() error { return m.SetByte(4, 0) }},
		{"set word straddles end", func() error { return m.SetWord(3, 0) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.fn()
			if !errors.Is(err, ErrMalformedImage) {
				t.Errorf("err = %v, want ErrMalformedImage", err)
			}
		})
	}
}

func TestSum(t *testing.T) {
	m := New([]byte{0xff, 0xff, 0x02, 0x01})
	if got := m.Sum(0, 4); got != 0x0201 {
		t.Errorf("Sum(0, 4) = 0x%04x, want 0x0201", got)
	}
	if got := m.Sum(2, 100); got != 3 {
		t.Errorf("Sum(2, 100) = %d, want 3", got)
	}
}

func TestStackPushPop(t *testing.T) {
	m := New(nil)
	m.Push(1)
	m.Push(2)

	if v, err := m.Peek(); err != nil || v != 2 {
		t.Errorf("Peek() = %d, %v; want 2", v, err)
	}
	if v, _ := m.Pop(); v != 2 {
		t.Errorf("Pop() = %d, want 2", v)
	}
	if v, _ := m.Pop(); v != 1 {
		t.Errorf("Pop() = %d, want 1", v)
	}
	if _, err := m.Pop(); !errors.Is(err, ErrStackUnderflow) {
		t.Errorf("Pop() on empty stack err = %v, want ErrStackUnderflow", err)
	}
}

func TestPopNeverCrossesFrameLocals(t *testing.T) {
	m := New(nil)
	m.Push(99) // caller value

	base := m.Depth()
	m.Push(7) // local 0
	m.Push(8) // local 1
	m.PushFrame(Frame{Routine: 0x100, Base: base, NumLocals: 2})

	if _, err := m.Pop(); !errors.Is(err, ErrStackUnderflow) {
		t.Fatalf("Pop() into locals err = %v, want ErrStackUnderflow", err)
	}
	if m.SetTop(5) {
		t.Error("SetTop() on empty frame stack reported a write")
	}

	m.Push(42)
	if v, err := m.Pop(); err != nil || v != 42 {
		t.Errorf("Pop() = %d, %v; want 42", v, err)
	}

	if v, _ := m.Local(1); v != 8 {
		t.Errorf("Local(1) = %d, want 8", v)
	}
	if err := m.SetLocal(0, 70); err != nil {
		t.Fatalf("SetLocal: %v", err)
	}
	if v, _ := m.Local(0); v != 70 {
		t.Errorf("Local(0) = %d, want 70", v)
	}
	if _, err := m.Local(2); !errors.Is(err, ErrMalformedImage) {
		t.Errorf("Local(2) err = %v, want ErrMalformedImage", err)
	}

	f, err := m.PopFrame()
	if err != nil {
		t.Fatalf("PopFrame: %v", err)
	}
	m.Truncate(f.Base)
	if v, _ := m.Pop(); v != 99 {
		t.Errorf("caller value = %d, want 99", v)
	}
}

func TestLocalsWithoutFrame(t *testing.T) {
	m := New(nil)
	if v, err := m.Local(3); err != nil || v != 0 {
		t.Errorf("Local(3) at top level = %d, %v; want 0, nil", v, err)
	}
	if err := m.SetLocal(3, 1); err != nil {
		t.Errorf("SetLocal(3) at top level err = %v, want nil", err)
	}
	if _, err := m.PopFrame(); !errors.Is(err, ErrStackUnderflow) {
		t.Errorf("PopFrame() err = %v, want ErrStackUnderflow", err)
	}
}

func TestDestKindString(t *testing.T) {
	tests := []struct {
		kind DestKind
		want string
	}{
		{DestOmitted, "omitted"},
		{DestVariable, "variable"},
		{DestIndirect, "indirect"},
		{DestKind(9), "DestKind(9)"},
	}
	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.want {
			t.Errorf("DestKind(%d).String() = %q, want %q", tt.kind, got, tt.want)
		}
	}
}
