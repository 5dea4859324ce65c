// Package zstring implements the ZSCII text codec: packed-string decoding
// and dictionary-token encoding, the three-alphabet shift/shift-lock state
// machine, abbreviation expansion, the A2 escape to a 10-bit literal ZSCII
// character, and Unicode translation for codes above the printable ASCII
// range.
//
// Grounded on zstring.ReadZString and the root zstring.go/zstring/unicode.go/
// zstring/abbreviations.go in the teacher repository. Those three files are
// mutually inconsistent drafts of the same refactor in progress (the
// top-level Decode/Encode/LoadAlphabets signatures they call are never
// actually defined anywhere in the checkout) — this package designs one
// coherent API grounded on their shape and intent rather than reconciling
// them line by line. See DESIGN.md.
package zstring

import (
	"encoding/binary"

	"github.com/tmarlowe/zgo/zerr"
	"github.com/tmarlowe/zgo/zmem"
)

var a0Default = [26]byte{'a', 'b', 'c', 'd', 'e', 'f', 'g', 'h', 'i', 'j', 'k', 'l', 'm', 'n', 'o', 'p', 'q', 'r', 's', 't', 'u', 'v', 'w', 'x', 'y', 'z'}
var a1Default = [26]byte{'A', 'B', 'C', 'D', 'E', 'F', 'G', 'H', 'I', 'J', 'K', 'L', 'M', 'N', 'O', 'P', 'Q', 'R', 'S', 'T', 'U', 'V', 'W', 'X', 'Y', 'Z'}
var a2V1 = [26]byte{'0', '1', '2', '3', '4', '5', '6', '7', '8', '9', '.', ',', '!', '?', '_', '#', '\'', '"', '/', '\\', '<', '-', ':', '(', ')'}
var a2Default = [26]byte{'\n', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9', '.', ',', '!', '?', '_', '#', '\'', '"', '/', '\\', '-', ':', '(', ')'}

// DefaultUnicodeTranslationTable maps the Latin-1-ish characters the Z-machine
// standard assigns to ZSCII codes 155-223 when no custom translation table
// is present in the story file.
var DefaultUnicodeTranslationTable = map[uint8]rune{
	155: 'ä', 156: 'ö', 157: 'ü', 158: 'Ä', 159: 'Ö', 160: 'Ü', 161: 'ß',
	162: '»', 163: '«', 164: 'ë', 165: 'ï', 166: 'ÿ', 167: 'Ë', 168: 'Ï',
	169: 'á', 170: 'é', 171: 'í', 172: 'ó', 173: 'ú', 174: 'ý', 175: 'Á',
	176: 'É', 177: 'Í', 178: 'Ó', 179: 'Ú', 180: 'Ý', 181: 'à', 182: 'è',
	183: 'ì', 184: 'ò', 185: 'ù', 186: 'À', 187: 'È', 188: 'Ì', 189: 'Ò',
	190: 'Ù', 191: 'â', 192: 'ê', 193: 'î', 194: 'ô', 195: 'û', 196: 'Â',
	197: 'Ê', 198: 'Î', 199: 'Ô', 200: 'Û', 201: 'å', 202: 'Å', 203: 'ø',
	204: 'Ø', 205: 'ã', 206: 'ñ', 207: 'õ', 208: 'Ã', 209: 'Ñ', 210: 'Õ',
	211: 'æ', 212: 'Æ', 213: 'ç', 214: 'Ç', 215: 'þ', 216: 'ð', 217: 'Þ',
	218: 'Ð', 219: '£', 220: 'œ', 221: 'Œ', 222: '¡', 223: '¿',
}

// Alphabets holds the three 26-entry character tables A0/A1/A2 that the
// five-bit "zchar" stream is looked up against. A0[zchr-6] and A1[zchr-6]
// are indexed directly; A2[zchr-7] skips the reserved escape slot at zchr 6.
type Alphabets struct {
	A0, A1, A2 [26]byte
}

// LoadAlphabets returns the alphabet tables for mem's version: the custom
// tables at Header().AlphabetTableBase when the story file supplies one
// (permitted from v5 onward), otherwise the version-appropriate defaults.
func LoadAlphabets(mem *zmem.Memory) (Alphabets, error) {
	h := mem.Header()
	if h.Version >= 5 && h.AlphabetTableBase != 0 {
		var a Alphabets
		base := uint32(h.AlphabetTableBase)
		for i := 0; i < 26; i++ {
			b, err := mem.GetByte(base + uint32(i))
			if err != nil {
				return Alphabets{}, err
			}
			a.A0[i] = b
		}
		for i := 0; i < 26; i++ {
			b, err := mem.GetByte(base + 26 + uint32(i))
			if err != nil {
				return Alphabets{}, err
			}
			a.A1[i] = b
		}
		for i := 0; i < 26; i++ {
			b, err := mem.GetByte(base + 52 + uint32(i))
			if err != nil {
				return Alphabets{}, err
			}
			a.A2[i] = b
		}
		return a, nil
	}
	return DefaultAlphabets(h.Version), nil
}

// DefaultAlphabets returns the standard alphabet tables for the given
// story version, without consulting the story file for a custom table.
func DefaultAlphabets(version uint8) Alphabets {
	a := Alphabets{A0: a0Default, A1: a1Default}
	if version == 1 {
		a.A2 = a2V1
	} else {
		a.A2 = a2Default
	}
	return a
}

// unicodeTable resolves the Unicode translation table mem declares, falling
// back to DefaultUnicodeTranslationTable when it declares none.
func unicodeTable(mem *zmem.Memory) (map[uint8]rune, error) {
	base := mem.Header().UnicodeTableBase
	if base == 0 {
		return DefaultUnicodeTranslationTable, nil
	}
	n, err := mem.GetByte(uint32(base))
	if err != nil {
		return nil, err
	}
	table := make(map[uint8]rune, n)
	for i := 0; i < int(n); i++ {
		cp, err := mem.GetWord(uint32(base) + 1 + uint32(i)*2)
		if err != nil {
			return nil, err
		}
		table[uint8(155+i)] = rune(cp)
	}
	return table, nil
}

// zsciiToRune converts a ZSCII code (as decoded from the five-bit stream or
// produced by the A2 0x06 escape) into the rune it represents.
func zsciiToRune(code uint16, table map[uint8]rune) rune {
	switch {
	case code == 13:
		return '\n'
	case code >= 32 && code <= 126:
		return rune(code)
	case code >= 155 && code <= 251:
		if r, ok := table[uint8(code)]; ok {
			return r
		}
		return '?'
	default:
		return '?'
	}
}

// DecodeString decodes the packed Z-character string starting at addr and
// returns the text, the number of bytes consumed (always a multiple of 2),
// and an error only if the string never terminates within the image.
// Grounded on zstring.ReadZString, generalized to resolve abbreviations
// (never themselves recursive, per the standard) and the Unicode escape.
func DecodeString(mem *zmem.Memory, addr uint32, alphabets Alphabets) (string, uint32, error) {
	return decode(mem, addr, alphabets, true)
}

func decode(mem *zmem.Memory, addr uint32, alphabets Alphabets, allowAbbreviations bool) (string, uint32, error) {
	version := mem.Header().Version
	unicode, err := unicodeTable(mem)
	if err != nil {
		return "", 0, err
	}

	var zchars []uint8
	var bytesRead uint32
	ptr := addr
	for {
		word, err := mem.GetWord(ptr)
		if err != nil {
			return "", 0, zerr.New(zerr.InvalidString, "unterminated string at 0x%x: %v", addr, err)
		}
		ptr += 2
		bytesRead += 2
		zchars = append(zchars,
			uint8((word>>10)&0b11111),
			uint8((word>>5)&0b11111),
			uint8(word&0b11111),
		)
		if word&0x8000 != 0 {
			break
		}
	}

	var out []rune
	baseAlphabet, currentAlphabet, nextAlphabet := 0, 0, 0

	for i := 0; i < len(zchars); i++ {
		zchr := zchars[i]
		currentAlphabet = nextAlphabet
		nextAlphabet = baseAlphabet

		switch zchr {
		case 0:
			out = append(out, ' ')
			continue
		case 1:
			if version == 1 {
				out = append(out, '\n')
				continue
			}
			if !allowAbbreviations || i+1 >= len(zchars) {
				return "", 0, zerr.New(zerr.InvalidString, "truncated abbreviation reference at zchar %d", i)
			}
			i++
			str, abbrErr := abbreviation(mem, alphabets, 1, zchars[i])
			if abbrErr != nil {
				return "", 0, abbrErr
			}
			out = append(out, []rune(str)...)
			continue
		case 2, 3:
			if version >= 3 {
				if !allowAbbreviations || i+1 >= len(zchars) {
					return "", 0, zerr.New(zerr.InvalidString, "truncated abbreviation reference at zchar %d", i)
				}
				i++
				str, abbrErr := abbreviation(mem, alphabets, zchr, zchars[i])
				if abbrErr != nil {
					return "", 0, abbrErr
				}
				out = append(out, []rune(str)...)
				continue
			}
			if zchr == 2 {
				nextAlphabet = (currentAlphabet + 1) % 3
			} else {
				nextAlphabet = (currentAlphabet + 2) % 3
			}
			continue
		case 4, 5:
			if version >= 3 {
				if zchr == 4 {
					nextAlphabet = (currentAlphabet + 1) % 3
				} else {
					nextAlphabet = (currentAlphabet + 2) % 3
				}
			} else {
				if zchr == 4 {
					baseAlphabet = (baseAlphabet + 1) % 3
				} else {
					baseAlphabet = (baseAlphabet + 2) % 3
				}
				nextAlphabet = baseAlphabet
			}
			continue
		}

		if currentAlphabet == 2 && zchr == 6 {
			if i+2 >= len(zchars) {
				return "", 0, zerr.New(zerr.InvalidString, "truncated ZSCII escape at zchar %d", i)
			}
			code := uint16(zchars[i+1])<<5 | uint16(zchars[i+2])
			i += 2
			out = append(out, zsciiToRune(code, unicode))
			continue
		}

		var table [26]byte
		switch currentAlphabet {
		case 0:
			table = alphabets.A0
		case 1:
			table = alphabets.A1
		default:
			table = alphabets.A2
		}

		var ix int
		if currentAlphabet == 2 {
			ix = int(zchr) - 7
		} else {
			ix = int(zchr) - 6
		}
		if ix < 0 || ix >= 26 {
			return "", 0, zerr.New(zerr.InvalidString, "zchar %d out of range for alphabet %d", zchr, currentAlphabet)
		}
		out = append(out, rune(table[ix]))
	}

	return string(out), bytesRead, nil
}

// abbreviation expands abbreviation entry (set, index) per spec.md §4.5:
// set 1 uses z=1, sets 2/3 use z=2/3; the stored 16-bit word address is
// itself a byte-address divided by two. Abbreviation strings are never
// themselves allowed to reference further abbreviations.
func abbreviation(mem *zmem.Memory, alphabets Alphabets, z, x uint8) (string, error) {
	base := mem.Header().AbbreviationTableBase
	if base == 0 {
		return "", zerr.New(zerr.InvalidString, "abbreviation referenced but story declares no abbreviation table")
	}
	ix := 32*(uint16(z)-1) + uint16(x)
	entryAddr := uint32(base) + 2*uint32(ix)
	packed, err := mem.GetWord(entryAddr)
	if err != nil {
		return "", err
	}
	str, _, err := decode(mem, 2*uint32(packed), alphabets, false)
	return str, err
}

// EncodeToken encodes s into a fixed-length dictionary token: numWords
// 16-bit words (6 z-characters for v1-3, 9 for v4+ by convention, but the
// caller supplies numWords so callers can match their dictionary header),
// using only shifts into the supplied alphabets' A0/A1/A2 (no
// abbreviations) as mandated for dictionary entries, padded with shift-5
// characters and with the high bit of the final word set.
func EncodeToken(s string, version uint8, alphabets Alphabets, numWords int) []byte {
	zchars := make([]uint8, 0, numWords*3)
	for _, r := range s {
		zchars = append(zchars, encodeRune(r, alphabets)...)
		if len(zchars) >= numWords*3 {
			break
		}
	}
	for len(zchars) < numWords*3 {
		zchars = append(zchars, 5)
	}
	zchars = zchars[:numWords*3]

	out := make([]byte, numWords*2)
	for w := 0; w < numWords; w++ {
		word := uint16(zchars[w*3])<<10 | uint16(zchars[w*3+1])<<5 | uint16(zchars[w*3+2])
		if w == numWords-1 {
			word |= 0x8000
		}
		binary.BigEndian.PutUint16(out[w*2:w*2+2], word)
	}
	return out
}

// encodeRune maps a single rune to the zchar(s) needed to emit it: a plain
// A0 letter, a shift-then-letter pair for A1/A2, or a shift-then-escape
// sequence (0x06 plus a 10-bit ZSCII code split into two 5-bit halves) for
// anything outside the three alphabets.
func encodeRune(r rune, alphabets Alphabets) []uint8 {
	if ix := indexOf(alphabets.A0, r); ix >= 0 {
		return []uint8{uint8(ix + 6)}
	}
	if ix := indexOf(alphabets.A1, r); ix >= 0 {
		return []uint8{4, uint8(ix + 6)}
	}
	if ix := indexOf(alphabets.A2, r); ix >= 0 {
		return []uint8{5, uint8(ix + 7)}
	}

	code := runeToZscii(r)
	return []uint8{5, 6, uint8(code >> 5), uint8(code & 0b11111)}
}

func indexOf(table [26]byte, r rune) int {
	if r < 0 || r > 255 {
		return -1
	}
	b := byte(r)
	for i, c := range table {
		if c == b {
			return i
		}
	}
	return -1
}

// runeToZscii maps r to its ZSCII code for encoding: printable ASCII is
// identity, everything else is looked up (reversed) in the default Unicode
// translation table, falling back to '?' when unrepresentable.
func runeToZscii(r rune) uint8 {
	if r >= 32 && r <= 126 {
		return uint8(r)
	}
	for code, rr := range DefaultUnicodeTranslationTable {
		if rr == r {
			return code
		}
	}
	return '?'
}
