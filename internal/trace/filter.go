// Package trace records executed instructions for debugging.
//
// A Tracer plugs into the VM, selects instructions with an optional
// Filter and writes one record per instruction as text or CBOR.
package trace

import (
	"github.com/coregx/coregex"

	"github.com/kolkov/zvm/internal/opcode"
)

// Filter selects instructions by opcode name.
// A nil Filter selects every instruction.
type Filter struct {
	pattern string
	re      *coregex.Regexp

	// Match results per opcode: 0 unknown, 1 match, 2 no match.
	// Opcode names are a fixed set, so each is matched at most once.
	memo [256]uint8
}

// Compile creates a Filter from a regular expression over opcode names,
// such as "^(call|ret)" or "print".
func Compile(pattern string) (*Filter, error) {
	re, err := coregex.Compile(pattern)
	if err != nil {
		return nil, err
	}
	return &Filter{pattern: pattern, re: re}, nil
}

// MustCompile creates a Filter, panicking on error.
func MustCompile(pattern string) *Filter {
	f, err := Compile(pattern)
	if err != nil {
		panic(err)
	}
	return f
}

// Pattern returns the original pattern string.
func (f *Filter) Pattern() string {
	if f == nil {
		return ""
	}
	return f.pattern
}

// Match reports whether instructions with opcode op are selected.
func (f *Filter) Match(op opcode.Op) bool {
	if f == nil {
		return true
	}
	switch f.memo[op] {
	case 1:
		return true
	case 2:
		return false
	}
	ok := f.re.MatchString(op.String())
	if ok {
		f.memo[op] = 1
	} else {
		f.memo[op] = 2
	}
	return ok
}
