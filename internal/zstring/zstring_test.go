package zstring

import (
	"errors"
	"testing"

	"github.com/kolkov/zvm/internal/memory"
)

const (
	testAbbrevs = 0x40
	testText    = 0x100
)

// image returns a 512-byte image with words placed at the given addresses.
func image(placements map[int][]uint16) *memory.Memory {
	data := make([]byte, 0x200)
	for addr, words := range placements {
		for i, w := range words {
			data[addr+2*i] = byte(w >> 8)
			data[addr+2*i+1] = byte(w)
		}
	}
	return memory.New(data)
}

// pack builds one text word from three Z-characters.
func pack(a, b, c uint8, end bool) uint16 {
	w := uint16(a)<<10 | uint16(b)<<5 | uint16(c)
	if end {
		w |= 0x8000
	}
	return w
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name      string
		words     []uint16
		want      string
		wantBytes int
	}{
		{
			name:      "lowercase",
			words:     []uint16{pack(13, 10, 17, false), pack(17, 20, 5, true)},
			want:      "hello",
			wantBytes: 4,
		},
		{
			name:      "space",
			words:     []uint16{pack(6, 0, 7, true)},
			want:      "a b",
			wantBytes: 2,
		},
		{
			name:      "shift applies to one character",
			words:     []uint16{pack(4, 13, 14, true)},
			want:      "Hi",
			wantBytes: 2,
		},
		{
			name:      "punctuation alphabet",
			words:     []uint16{pack(5, 8, 5, false), pack(20, 5, 5, true)},
			want:      "0!",
			wantBytes: 4,
		},
		{
			name:      "newline",
			words:     []uint16{pack(5, 7, 5, true)},
			want:      "\n",
			wantBytes: 2,
		},
		{
			name:      "ten-bit escape",
			words:     []uint16{pack(5, 6, 1, false), pack(30, 5, 5, true)}, // 0x3e '>'
			want:      ">",
			wantBytes: 4,
		},
		{
			name:      "escape to extra character",
			words:     []uint16{pack(5, 6, 4, false), pack(27, 5, 5, true)}, // 155 'ä'
			want:      "ä",
			wantBytes: 4,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mem := image(map[int][]uint16{testText: tt.words})
			got, n, err := Decode(mem, testAbbrevs, testText, 0)
			if err != nil {
				t.Fatalf("Decode error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Decode = %q, want %q", got, tt.want)
			}
			if n != tt.wantBytes {
				t.Errorf("bytes consumed = %d, want %d", n, tt.wantBytes)
			}
		})
	}
}

func TestDecodeMaxChars(t *testing.T) {
	// No end bit anywhere: only the limit stops the decoder.
	mem := image(map[int][]uint16{
		testText: {pack(6, 7, 8, false), pack(9, 10, 11, false), pack(12, 13, 14, false)},
	})

	got, n, err := Decode(mem, testAbbrevs, testText, 6)
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	if got != "abcdef" {
		t.Errorf("Decode = %q, want %q", got, "abcdef")
	}
	if n != 4 {
		t.Errorf("bytes consumed = %d, want 4", n)
	}
}

func TestDecodeMaxCharsMidWord(t *testing.T) {
	mem := image(map[int][]uint16{
		testText: {pack(6, 7, 8, false), pack(9, 10, 11, false)},
	})

	tests := []struct {
		max       int
		want      string
		wantBytes int
	}{
		{1, "a", 2},
		{2, "ab", 2},
		{4, "abcd", 4},
	}
	for _, tt := range tests {
		got, n, err := Decode(mem, testAbbrevs, testText, tt.max)
		if err != nil {
			t.Fatalf("Decode(max %d) error: %v", tt.max, err)
		}
		if got != tt.want || n != tt.wantBytes {
			t.Errorf("Decode(max %d) = %q, %d; want %q, %d", tt.max, got, n, tt.want, tt.wantBytes)
		}
	}
}

func TestDecodeAbbreviation(t *testing.T) {
	const abbrevText = 0x180
	mem := image(map[int][]uint16{
		// Slot 32*(2-1)+3 = 35 points at "the" (word address 0xc0).
		testAbbrevs + 35*2: {abbrevText / 2},
		abbrevText:         {pack(25, 13, 10, true)},
		testText:           {pack(2, 3, 0, false), pack(4, 6, 5, true)},
	})

	got, n, err := Decode(mem, testAbbrevs, testText, 0)
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	if got != "the A" {
		t.Errorf("Decode = %q, want %q", got, "the A")
	}
	if n != 4 {
		t.Errorf("bytes consumed = %d, want 4", n)
	}
}

func TestDecodeSelfReferentialAbbreviation(t *testing.T) {
	mem := image(map[int][]uint16{
		// Slot 0 points at text that references slot 0 again.
		testAbbrevs: {testText / 2},
		testText:    {pack(1, 0, 6, true)},
	})

	_, _, err := Decode(mem, testAbbrevs, testText, 0)
	if !errors.Is(err, ErrAbbreviationDepth) {
		t.Fatalf("err = %v, want ErrAbbreviationDepth", err)
	}
	if !errors.Is(err, memory.ErrMalformedImage) {
		t.Errorf("err = %v, want it to wrap ErrMalformedImage", err)
	}
}

func TestDecodeRunsOffImage(t *testing.T) {
	mem := image(nil)
	if _, _, err := Decode(mem, testAbbrevs, 0x1fe+2, 0); !errors.Is(err, memory.ErrMalformedImage) {
		t.Errorf("err = %v, want ErrMalformedImage", err)
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	tests := []string{
		"",
		"hello",
		"Hello, World!",
		"HI",
		"line one\nline two",
		"x = 42; y <> z",
		"naïve café",
	}

	for _, s := range tests {
		t.Run(s, func(t *testing.T) {
			mem := image(map[int][]uint16{testText: Encode(s)})
			got, n, err := Decode(mem, testAbbrevs, testText, 0)
			if err != nil {
				t.Fatalf("Decode error: %v", err)
			}
			if got != s {
				t.Errorf("Decode(Encode(%q)) = %q", s, got)
			}
			if n != 2*len(Encode(s)) {
				t.Errorf("bytes consumed = %d, want %d", n, 2*len(Encode(s)))
			}
		})
	}
}

func TestZSCII(t *testing.T) {
	tests := []struct {
		z    uint16
		want rune
	}{
		{13, '\n'},
		{'A', 'A'},
		{155, 'ä'},
		{223, '¿'},
		{224, '?'},
		{7, '?'},
	}
	for _, tt := range tests {
		if got := ZSCIIToRune(tt.z); got != tt.want {
			t.Errorf("ZSCIIToRune(%d) = %q, want %q", tt.z, got, tt.want)
		}
	}

	if z, ok := RuneToZSCII('é'); !ok || ZSCIIToRune(z) != 'é' {
		t.Errorf("RuneToZSCII('é') = %d, %v", z, ok)
	}
	if _, ok := RuneToZSCII('☃'); ok {
		t.Error("RuneToZSCII('☃') reported a code")
	}
}
