package decoder

import (
	"testing"

	"github.com/kolkov/zvm/internal/memory"
)

// FuzzDecode checks that arbitrary bytes decode without panicking and that
// a successful decode never claims bytes past the end of the image.
func FuzzDecode(f *testing.F) {
	seeds := [][]byte{
		{0xb0},                         // rtrue
		{0xb2, 0x8d, 0x51},             // print "hi"
		{0x14, 0x01, 0x02, 0x00},       // add -> sp
		{0xe0, 0x3f, 0x01, 0x00, 0x00}, // call -> sp
		{0xe8, 0b01_11_10_11, 7, 0x12}, // push with a gap
		{0xa0, 0x00, 0x3f, 0xf0},       // jz, long backward branch
		{0xc1, 0x00, 0x00, 0x01},       // je cut off by the end
		{0x00, 0x01, 0x02},             // unknown 2OP
	}
	for _, s := range seeds {
		f.Add(s, 0)
	}

	f.Fuzz(func(t *testing.T, data []byte, ip int) {
		if ip < 0 || ip > len(data) {
			return
		}
		in, err := Decode(memory.New(data), 0, ip)
		if err != nil {
			return
		}
		if in.Length < 1 {
			t.Fatalf("Length = %d", in.Length)
		}
		if in.Next() > len(data) {
			t.Errorf("instruction at %d claims %d bytes of a %d-byte image", ip, in.Length, len(data))
		}
		if len(in.Operands) > 4 {
			t.Errorf("%d operands", len(in.Operands))
		}
		_ = in.String()
	})
}
