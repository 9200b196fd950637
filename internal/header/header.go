// Package header derives the fixed-offset layout fields of a story image.
package header

import (
	"fmt"

	"github.com/kolkov/zvm/internal/memory"
)

// Size is the length of the header block at the start of every image.
const Size = 64

// Fixed header offsets.
const (
	offVersion    = 0x00
	offRelease    = 0x02
	offHighStart  = 0x04
	offInitialPC  = 0x06
	offDictionary = 0x08
	offObjects    = 0x0a
	offGlobals    = 0x0c
	offStatic     = 0x0e
	offSerial     = 0x12
	offAbbrevs    = 0x18
	offFileLength = 0x1a
	offChecksum   = 0x1c
)

// Header holds the numbers derived from an image header.
// It never references the image bytes.
type Header struct {
	Version    uint8
	Release    uint16
	Serial     string
	InitialPC  int
	Dictionary int
	Objects    int
	Globals    int
	Abbrevs    int
	Checksum   uint16

	// FileLength is the declared story length in bytes (0 if unset).
	FileLength int

	DynamicStart int
	DynamicEnd   int
	StaticStart  int
	StaticEnd    int
	HighStart    int
	HighEnd      int
}

// Derive reads the header fields from m and validates the region layout.
func Derive(m *memory.Memory) (*Header, error) {
	if m.Len() < Size {
		return nil, fmt.Errorf("%w: image is %d bytes, header needs %d",
			memory.ErrMalformedImage, m.Len(), Size)
	}

	// Every offset below is inside the header, so reads cannot fail.
	word := func(off int) int {
		w, _ := m.Word(off)
		return int(w)
	}
	version, _ := m.Byte(offVersion)

	serial := make([]byte, 6)
	for i := range serial {
		serial[i], _ = m.Byte(offSerial + i)
	}

	h := &Header{
		Version:    version,
		Release:    uint16(word(offRelease)),
		Serial:     string(serial),
		InitialPC:  word(offInitialPC),
		Dictionary: word(offDictionary),
		Objects:    word(offObjects),
		Globals:    word(offGlobals),
		Abbrevs:    word(offAbbrevs),
		Checksum:   uint16(word(offChecksum)),
		FileLength: word(offFileLength) * lengthScale(version),

		DynamicStart: 0,
		DynamicEnd:   word(offStatic),
		StaticStart:  word(offStatic),
		HighStart:    word(offHighStart),
		HighEnd:      m.Len(),
	}
	h.StaticEnd = min(h.StaticStart+0xffff, m.Len())

	if err := h.validate(m.Len()); err != nil {
		return nil, err
	}
	return h, nil
}

func (h *Header) validate(length int) error {
	switch {
	case h.DynamicEnd > h.StaticEnd || h.StaticEnd > length:
		return fmt.Errorf("%w: static memory starts at 0x%04x beyond image length 0x%04x",
			memory.ErrMalformedImage, h.DynamicEnd, length)
	case h.HighStart > length:
		return fmt.Errorf("%w: high memory starts at 0x%04x beyond image length 0x%04x",
			memory.ErrMalformedImage, h.HighStart, length)
	}
	return nil
}

// lengthScale returns the multiplier for the file length field.
func lengthScale(version uint8) int {
	switch {
	case version <= 3:
		return 2
	case version <= 5:
		return 4
	default:
		return 8
	}
}

// GlobalAddr returns the byte address of global slot i (0..239).
func (h *Header) GlobalAddr(i int) int {
	return h.Globals + h.DynamicStart + 2*i
}

// RoutineAddr converts a packed routine address to a byte address.
func (h *Header) RoutineAddr(packed uint16) int {
	return int(packed)*2 + h.DynamicStart
}

// StringAddr converts a packed string address to a byte address.
func (h *Header) StringAddr(packed uint16) int {
	return int(packed) * 2
}

// ChecksumEnd returns the end of the checksummed region: the declared file
// length when it fits the image, otherwise the whole image.
func (h *Header) ChecksumEnd() int {
	if h.FileLength == 0 || h.FileLength > h.HighEnd {
		return h.HighEnd
	}
	return h.FileLength
}

// Writable reports whether [addr, addr+n) lies in dynamic memory.
func (h *Header) Writable(addr, n int) bool {
	return addr >= h.DynamicStart && addr+n <= h.DynamicEnd
}

// String renders the header the way the -info flag prints it.
func (h *Header) String() string {
	return fmt.Sprintf("version %d release %d serial %s\n"+
		"  initial pc   0x%04x\n"+
		"  globals      0x%04x\n"+
		"  abbrevs      0x%04x\n"+
		"  dynamic      0x%04x-0x%04x\n"+
		"  static       0x%04x-0x%04x\n"+
		"  high         0x%04x-0x%04x\n"+
		"  file length  %d\n"+
		"  checksum     0x%04x",
		h.Version, h.Release, h.Serial,
		h.InitialPC, h.Globals, h.Abbrevs,
		h.DynamicStart, h.DynamicEnd,
		h.StaticStart, h.StaticEnd,
		h.HighStart, h.HighEnd,
		h.FileLength, h.Checksum)
}
