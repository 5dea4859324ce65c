package zstring

import (
	"errors"
	"testing"

	"github.com/tmarlowe/zgo/zerr"
	"github.com/tmarlowe/zgo/zmem"
)

// v3Image builds a minimal v3 memory image with no abbreviation table
// (base left at 0) so abbreviation zchars can be tested as an error path.
func v3Image(t *testing.T, size int) *zmem.Memory {
	t.Helper()
	b := make([]byte, size)
	b[0x00] = 3
	b[0x0e] = uint8(size >> 8)
	b[0x0f] = uint8(size)
	mem, err := zmem.New(b)
	if err != nil {
		t.Fatalf("zmem.New: %v", err)
	}
	return mem
}

func putWord(mem *zmem.Memory, addr uint32, v uint16) {
	_ = mem.WriteWord(addr, v)
}

func TestDecodeStringThreeAlphabets(t *testing.T) {
	mem := v3Image(t, 0x100)
	alphabets := DefaultAlphabets(3)

	// "Hi" - zchar 4 (shift to A1), 13 ('H' = A1[7], zchr 13), then 'i' (A0[8], zchr 14), pad with 5s.
	putWord(mem, 0x10, uint16(4)<<10|uint16(13)<<5|uint16(14))
	putWord(mem, 0x12, uint16(5)<<10|uint16(5)<<5|uint16(5)|0x8000)

	str, n, err := DecodeString(mem, 0x10, alphabets)
	if err != nil {
		t.Fatalf("DecodeString: %v", err)
	}
	if n != 4 {
		t.Fatalf("bytesRead: got %d, want 4", n)
	}
	if str != "Hi" {
		t.Fatalf("str: got %q, want %q", str, "Hi")
	}
}

func TestDecodeStringSpace(t *testing.T) {
	mem := v3Image(t, 0x100)
	alphabets := DefaultAlphabets(3)

	// zchar 0 = space, then two more zeros, terminated.
	putWord(mem, 0x10, 0|0x8000)

	str, _, err := DecodeString(mem, 0x10, alphabets)
	if err != nil {
		t.Fatalf("DecodeString: %v", err)
	}
	if str != "   " {
		t.Fatalf("str: got %q, want 3 spaces", str)
	}
}

func TestDecodeStringZsciiEscape(t *testing.T) {
	mem := v3Image(t, 0x100)
	alphabets := DefaultAlphabets(3)

	// shift to A2 (5), escape (6), then hi/lo halves of ZSCII '>' (62 = 0b00001_11110)
	code := uint16(62)
	hi := uint8(code >> 5)
	lo := uint8(code & 0b11111)
	putWord(mem, 0x10, uint16(5)<<10|uint16(6)<<5|uint16(hi))
	putWord(mem, 0x12, uint16(lo)<<10|uint16(5)<<5|uint16(5)|0x8000)

	str, _, err := DecodeString(mem, 0x10, alphabets)
	if err != nil {
		t.Fatalf("DecodeString: %v", err)
	}
	if str != ">" {
		t.Fatalf("str: got %q, want %q", str, ">")
	}
}

func TestDecodeStringUnterminated(t *testing.T) {
	mem := v3Image(t, 0x40) // smallest image zmem.New accepts; no word from 0x10 to its end has the terminator bit
	alphabets := DefaultAlphabets(3)

	if _, _, err := DecodeString(mem, 0x10, alphabets); !errors.Is(err, zerr.Sentinel(zerr.InvalidString)) {
		t.Fatalf("expected InvalidString for unterminated string, got %v", err)
	}
}

func TestAbbreviationExpansion(t *testing.T) {
	// Build the abbreviation table base into the header before parsing,
	// since zmem.Memory snapshots the header once at New() time.
	b := make([]byte, 0x100)
	b[0x00] = 3
	b[0x0e] = 0x01 // static memory base, unused here
	b[0x18] = 0x00 // abbreviation table base = 0x40
	b[0x19] = 0x40
	mem, err := zmem.New(b)
	if err != nil {
		t.Fatalf("zmem.New: %v", err)
	}
	alphabets := DefaultAlphabets(3)

	// Abbreviation entry for z=1,x=0 points (packed, /2) at byte address 0x60.
	putWord(mem, 0x40, 0x30)

	// "Hi" at 0x60, same encoding as TestDecodeStringThreeAlphabets.
	putWord(mem, 0x60, uint16(4)<<10|uint16(13)<<5|uint16(14))
	putWord(mem, 0x62, uint16(5)<<10|uint16(5)<<5|uint16(5)|0x8000)

	// Main string: zchar 1 (abbreviation set 1), then x=0, then pad, terminated.
	putWord(mem, 0x10, uint16(1)<<10|uint16(0)<<5|uint16(5)|0x8000)

	str, _, err := DecodeString(mem, 0x10, alphabets)
	if err != nil {
		t.Fatalf("DecodeString: %v", err)
	}
	if str != "Hi" {
		t.Fatalf("str: got %q, want %q", str, "Hi")
	}
}

func TestEncodeTokenPadsAndTerminates(t *testing.T) {
	alphabets := DefaultAlphabets(3)
	out := EncodeToken("a", 3, alphabets, 2)
	if len(out) != 4 {
		t.Fatalf("len: got %d, want 4", len(out))
	}
	// First zchar should be 'a' = A0[0] -> zchr 6.
	first := uint16(out[0])<<8 | uint16(out[1])
	if (first>>10)&0b11111 != 6 {
		t.Fatalf("first zchar: got %d, want 6", (first>>10)&0b11111)
	}
	last := uint16(out[2])<<8 | uint16(out[3])
	if last&0x8000 == 0 {
		t.Fatal("final word must have the terminator bit set")
	}
}

func TestEncodeTokenRoundTripsThroughDecode(t *testing.T) {
	mem := v3Image(t, 0x100)
	alphabets := DefaultAlphabets(3)
	encoded := EncodeToken("cab", 3, alphabets, 2)
	for i, b := range encoded {
		_ = mem.WriteByte(uint32(0x10+i), b)
	}
	str, _, err := DecodeString(mem, 0x10, alphabets)
	if err != nil {
		t.Fatalf("DecodeString: %v", err)
	}
	if str != "cab" {
		t.Fatalf("str: got %q, want %q", str, "cab")
	}
}
