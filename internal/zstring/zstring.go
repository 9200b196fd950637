// Package zstring decodes the compressed 5-bit text encoding.
//
// Text is stored as big-endian words, each packing three Z-characters in
// bits [14:10], [9:5] and [4:0]. A word with bit 15 set ends the string.
// Z-characters are mapped through one of three alphabets; codes 1-3 splice
// in an abbreviation and code 6 in the punctuation alphabet starts a 10-bit
// ZSCII escape.
package zstring

import (
	"errors"
	"fmt"
	"strings"

	"github.com/kolkov/zvm/internal/memory"
)

// MaxAbbrevDepth bounds abbreviation nesting.
const MaxAbbrevDepth = 10

// MaxCodes bounds the Z-characters one Decode call may process, abbreviation
// expansions included.
const MaxCodes = 1 << 16

// ErrAbbreviationDepth reports abbreviation nesting beyond MaxAbbrevDepth,
// which only a self-referential or otherwise malformed table can cause.
var ErrAbbreviationDepth = fmt.Errorf("%w: abbreviation nesting exceeds %d",
	memory.ErrMalformedImage, MaxAbbrevDepth)

// ErrTextTooLong reports a string whose expansion exceeds MaxCodes.
var ErrTextTooLong = fmt.Errorf("%w: text expands beyond %d characters",
	memory.ErrMalformedImage, MaxCodes)

// Alphabet selects the character set for the next Z-character.
type Alphabet uint8

const (
	A0 Alphabet = iota // lowercase
	A1                 // uppercase
	A2                 // punctuation and digits
)

// Positions 0-5 are never looked up: they are space, abbreviations and shifts.
var alphabets = [3]string{
	"______abcdefghijklmnopqrstuvwxyz",
	"______ABCDEFGHIJKLMNOPQRSTUVWXYZ",
	"______^\n0123456789.,!?_#'\"/\\-:()",
}

// Decoder decodes strings from a Memory using a fixed abbreviation table.
type Decoder struct {
	mem     *memory.Memory
	abbrevs int

	budget int // Z-characters left for the current Decode call
}

// NewDecoder returns a decoder reading abbreviations from the table at
// byte address abbrevs.
func NewDecoder(mem *memory.Memory, abbrevs int) *Decoder {
	return &Decoder{mem: mem, abbrevs: abbrevs}
}

// Decode decodes the string at offset. When maxChars > 0, at most that many
// Z-characters are decoded even without an end marker; the byte count still
// covers every word read.
// It returns the text and the number of bytes the encoded form occupies.
func (d *Decoder) Decode(offset, maxChars int) (string, int, error) {
	var sb strings.Builder
	d.budget = MaxCodes
	n, err := d.decode(&sb, offset, maxChars, 0)
	if err != nil {
		return "", 0, err
	}
	return sb.String(), n, nil
}

// Decode is a convenience wrapper around Decoder.Decode.
func Decode(mem *memory.Memory, abbrevs, offset, maxChars int) (string, int, error) {
	return NewDecoder(mem, abbrevs).Decode(offset, maxChars)
}

func (d *Decoder) decode(sb *strings.Builder, offset, maxChars, depth int) (int, error) {
	if depth > MaxAbbrevDepth {
		return 0, ErrAbbreviationDepth
	}

	codes, length, err := d.readCodes(offset, maxChars)
	if err != nil {
		return 0, err
	}
	d.budget -= len(codes)
	if d.budget < 0 {
		return 0, ErrTextTooLong
	}

	shift := A0
	for i := 0; i < len(codes); i++ {
		c := codes[i]
		switch {
		case c == 0:
			sb.WriteByte(' ')
			shift = A0

		case c <= 3:
			if i+1 >= len(codes) {
				// Reference cut off by the end of the string.
				return length, nil
			}
			i++
			if err := d.abbreviation(sb, int(c), int(codes[i]), depth); err != nil {
				return 0, err
			}
			shift = A0

		case c == 4:
			shift = A1

		case c == 5:
			shift = A2

		case c == 6 && shift == A2:
			if i+2 >= len(codes) {
				return length, nil
			}
			z := uint16(codes[i+1])<<5 | uint16(codes[i+2])
			i += 2
			sb.WriteRune(ZSCIIToRune(z))
			shift = A0

		default:
			sb.WriteByte(alphabets[shift][c])
			shift = A0
		}
	}
	return length, nil
}

// readCodes unpacks Z-characters from consecutive words at offset.
func (d *Decoder) readCodes(offset, maxChars int) ([]uint8, int, error) {
	codes := make([]uint8, 0, 24)
	length := 0
	for {
		if maxChars > 0 && len(codes) >= maxChars {
			break
		}
		w, err := d.mem.Word(offset + length)
		if err != nil {
			return nil, 0, fmt.Errorf("decode text at 0x%04x: %w", offset, err)
		}
		length += 2

		codes = append(codes,
			uint8(w>>10)&0x1f,
			uint8(w>>5)&0x1f,
			uint8(w)&0x1f,
		)
		if w&0x8000 != 0 {
			break
		}
	}
	if maxChars > 0 && len(codes) > maxChars {
		codes = codes[:maxChars]
	}
	return codes, length, nil
}

// abbreviation splices abbreviation (32*(code-1) + index) into sb.
func (d *Decoder) abbreviation(sb *strings.Builder, code, index, depth int) error {
	slot := 32*(code-1) + index
	entry, err := d.mem.Word(d.abbrevs + slot*2)
	if err != nil {
		return fmt.Errorf("abbreviation %d: %w", slot, err)
	}
	_, err = d.decode(sb, int(entry)*2, 0, depth+1)
	if err != nil && !errors.Is(err, ErrAbbreviationDepth) && !errors.Is(err, ErrTextTooLong) {
		return fmt.Errorf("abbreviation %d: %w", slot, err)
	}
	return err
}
