package zstring

// extraChars is the default Unicode translation for ZSCII 155-223.
var extraChars = []rune("äöüÄÖÜß»«ëïÿËÏáéíóúýÁÉÍÓÚÝàèìòùÀÈÌÒÙâêîôûÂÊÎÔÛåÅøØãñõÃÑÕæÆçÇþðÞÐ£œŒ¡¿")

const firstExtra = 155

// ZSCIIToRune converts an output ZSCII code to a rune.
// Codes with no printable meaning become '?'.
func ZSCIIToRune(z uint16) rune {
	switch {
	case z == 0:
		return 0
	case z == 13:
		return '\n'
	case z >= 32 && z <= 126:
		return rune(z)
	case z >= firstExtra && int(z) < firstExtra+len(extraChars):
		return extraChars[z-firstExtra]
	default:
		return '?'
	}
}

// RuneToZSCII converts r to a ZSCII code, reporting false if r has none.
func RuneToZSCII(r rune) (uint16, bool) {
	switch {
	case r == '\n':
		return 13, true
	case r >= 32 && r <= 126:
		return uint16(r), true
	}
	for i, e := range extraChars {
		if e == r {
			return uint16(firstExtra + i), true
		}
	}
	return 0, false
}

// Encode packs s into Z-character words with the end bit set on the last
// word. Characters outside the alphabets use the 10-bit escape; runes with
// no ZSCII code encode as '?'.
func Encode(s string) []uint16 {
	var codes []uint8
	for _, r := range s {
		codes = appendCodes(codes, r)
	}
	if len(codes) == 0 {
		codes = append(codes, 5)
	}
	for len(codes)%3 != 0 {
		codes = append(codes, 5)
	}

	words := make([]uint16, 0, len(codes)/3)
	for i := 0; i < len(codes); i += 3 {
		words = append(words, uint16(codes[i])<<10|uint16(codes[i+1])<<5|uint16(codes[i+2]))
	}
	words[len(words)-1] |= 0x8000
	return words
}

func appendCodes(codes []uint8, r rune) []uint8 {
	if r == ' ' {
		return append(codes, 0)
	}
	for a, alpha := range alphabets {
		for i := 6; i < len(alpha); i++ {
			// A2 position 6 is the escape, not a literal '^'.
			if a == int(A2) && i == 6 {
				continue
			}
			if rune(alpha[i]) != r {
				continue
			}
			switch Alphabet(a) {
			case A0:
				return append(codes, uint8(i))
			case A1:
				return append(codes, 4, uint8(i))
			default:
				return append(codes, 5, uint8(i))
			}
		}
	}
	z, ok := RuneToZSCII(r)
	if !ok {
		z = '?'
	}
	return append(codes, 5, 6, uint8(z>>5)&0x1f, uint8(z)&0x1f)
}
