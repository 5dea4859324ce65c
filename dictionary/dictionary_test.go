package dictionary

import (
	"testing"

	"github.com/tmarlowe/zgo/zmem"
	"github.com/tmarlowe/zgo/zstring"
)

func testMemory(t *testing.T) *zmem.Memory {
	t.Helper()
	b := make([]byte, 0x100)
	b[0x00] = 3
	b[0x08] = 0x00 // dictionary base = 0x40
	b[0x09] = 0x40
	b[0x0e] = 0x01 // static memory base, unused here

	const base = 0x40
	b[base] = 3          // 3 input codes
	b[base+1] = ' '
	b[base+2] = '.'
	b[base+3] = ','
	b[base+4] = 6 // entry length: 4-byte encoded word + 2 data bytes
	b[base+5] = 0x00
	b[base+6] = 0x01 // entry count = 1

	alphabets := zstring.DefaultAlphabets(3)
	encoded := zstring.EncodeToken("cab", 3, alphabets, 2)
	copy(b[base+7:base+11], encoded)
	b[base+11] = 0xaa // data byte 1 (a grammar/flag byte the story would define)
	b[base+12] = 0xbb // data byte 2

	mem, err := zmem.New(b)
	if err != nil {
		t.Fatalf("zmem.New: %v", err)
	}
	return mem
}

func TestParseDictionaryReadsHeaderAndEntry(t *testing.T) {
	mem := testMemory(t)
	alphabets := zstring.DefaultAlphabets(3)

	d, err := Parse(mem, alphabets)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(d.Header.InputCodes) != 3 || d.Header.InputCodes[1] != '.' {
		t.Fatalf("input codes: got %v", d.Header.InputCodes)
	}
	if d.Header.EntryCount != 1 {
		t.Fatalf("entry count: got %d, want 1", d.Header.EntryCount)
	}
	if len(d.Entries) != 1 {
		t.Fatalf("entries: got %d, want 1", len(d.Entries))
	}
	entry := d.Entries[0]
	if entry.DecodedWord != "cab" {
		t.Fatalf("decoded word: got %q, want %q", entry.DecodedWord, "cab")
	}
	if len(entry.Data) != 2 || entry.Data[0] != 0xaa || entry.Data[1] != 0xbb {
		t.Fatalf("data bytes: got %v", entry.Data)
	}
}

func TestFindMatchesEncodedWord(t *testing.T) {
	mem := testMemory(t)
	alphabets := zstring.DefaultAlphabets(3)

	d, err := Parse(mem, alphabets)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	encoded := EncodeWord("cab", 3, alphabets)
	addr := d.Find(encoded)
	if addr != d.Entries[0].Address {
		t.Fatalf("Find: got 0x%x, want 0x%x", addr, d.Entries[0].Address)
	}
}

func TestFindMissingWordReturnsZero(t *testing.T) {
	mem := testMemory(t)
	alphabets := zstring.DefaultAlphabets(3)

	d, err := Parse(mem, alphabets)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	encoded := EncodeWord("zzz", 3, alphabets)
	if addr := d.Find(encoded); addr != 0 {
		t.Fatalf("Find: got 0x%x, want 0 (not found)", addr)
	}
}
