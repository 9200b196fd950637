package trace

import (
	"fmt"
	"io"
	"strings"

	"github.com/fxamacker/cbor/v2"

	"github.com/kolkov/zvm/internal/vm"
)

// Format selects how records are written.
type Format int

const (
	Text Format = iota // one disassembly line per instruction
	CBOR               // a stream of canonical CBOR records
)

// ParseFormat parses "text" or "cbor".
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "", "text":
		return Text, nil
	case "cbor":
		return CBOR, nil
	default:
		return 0, fmt.Errorf("unknown trace format %q (want text or cbor)", s)
	}
}

// String returns the format name.
func (f Format) String() string {
	switch f {
	case Text:
		return "text"
	case CBOR:
		return "cbor"
	default:
		return fmt.Sprintf("Format(%d)", int(f))
	}
}

// Record is one traced instruction as written in CBOR form.
type Record struct {
	Step     uint64   `cbor:"1,keyasint"`
	Offset   int      `cbor:"2,keyasint"`
	Op       string   `cbor:"3,keyasint"`
	Operands []uint16 `cbor:"4,keyasint,omitempty"` // raw operand fields
	Stack    int      `cbor:"5,keyasint"`           // value stack depth
	Frames   int      `cbor:"6,keyasint"`           // call depth
	Text     string   `cbor:"7,keyasint,omitempty"` // inline literal text
}

var encMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("trace: failed to create CBOR enc mode: %v", err))
	}
	encMode = em
}

// Tracer writes selected instructions to a writer. It implements
// vm.Tracer.
type Tracer struct {
	w      io.Writer
	format Format
	filter *Filter
	enc    *cbor.Encoder
	count  int
}

// New returns a Tracer writing to w. A nil filter traces everything.
func New(w io.Writer, format Format, filter *Filter) *Tracer {
	t := &Tracer{w: w, format: format, filter: filter}
	if format == CBOR {
		t.enc = encMode.NewEncoder(w)
	}
	return t
}

// Count returns the number of records written.
func (t *Tracer) Count() int {
	return t.count
}

// Trace implements vm.Tracer.
func (t *Tracer) Trace(ev vm.Event) error {
	in := ev.Instruction
	if !t.filter.Match(in.Op) {
		return nil
	}
	t.count++

	if t.format == CBOR {
		return t.enc.Encode(NewRecord(ev))
	}
	_, err := fmt.Fprintf(t.w, "%6d %2d %3d  %s\n", ev.Step, ev.FrameDepth, ev.StackDepth, in)
	return err
}

// NewRecord converts a VM event to its CBOR record.
func NewRecord(ev vm.Event) Record {
	in := ev.Instruction
	rec := Record{
		Step:   ev.Step,
		Offset: in.Offset,
		Op:     in.Op.String(),
		Stack:  ev.StackDepth,
		Frames: ev.FrameDepth,
	}
	if len(in.Operands) > 0 {
		rec.Operands = make([]uint16, len(in.Operands))
		for i, o := range in.Operands {
			rec.Operands[i] = o.Value
		}
	}
	if in.Text.Present {
		rec.Text = in.Text.Text
	}
	return rec
}

// ReadRecords decodes a CBOR trace stream.
func ReadRecords(r io.Reader) ([]Record, error) {
	dec := cbor.NewDecoder(r)
	var recs []Record
	for {
		var rec Record
		if err := dec.Decode(&rec); err != nil {
			if err == io.EOF {
				return recs, nil
			}
			return recs, err
		}
		recs = append(recs, rec)
	}
}

var _ vm.Tracer = (*Tracer)(nil)
