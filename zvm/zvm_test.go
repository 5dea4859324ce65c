package zvm

import (
	"encoding/binary"
	"testing"

	"github.com/tmarlowe/zgo/zstring"
)

// minimalV3Image builds a small v3 story: a valid header, an empty
// dictionary, and whatever program bytes the caller appends starting at
// 0x40 (the conventional InitialPC used throughout these tests).
func minimalV3Image(t *testing.T, program []byte) []byte {
	t.Helper()
	const (
		initialPC  = 0x40
		dictBase   = 0x200
		objBase    = 0x1a0
		globalBase = 0x180
		staticBase = 0x180
		length     = 0x210
	)

	b := make([]byte, length)
	b[0x00] = 3
	binary.BigEndian.PutUint16(b[0x06:0x08], initialPC)
	binary.BigEndian.PutUint16(b[0x08:0x0a], dictBase)
	binary.BigEndian.PutUint16(b[0x0a:0x0c], objBase)
	binary.BigEndian.PutUint16(b[0x0c:0x0e], globalBase)
	binary.BigEndian.PutUint16(b[0x0e:0x10], staticBase)

	copy(b[initialPC:], program)

	// An empty, sorted dictionary: 0 input codes, an arbitrary entry
	// length, and a zero entry count.
	b[dictBase] = 0
	b[dictBase+1] = 7
	binary.BigEndian.PutUint16(b[dictBase+2:dictBase+4], 0)

	return b
}

// encodedHI is the literal string "HI" packed the way an inline print
// instruction's text immediately following its opcode byte must look. Both
// letters are uppercase, so each needs a shift into A1 plus the letter
// itself: 4 z-characters in all, which needs two 16-bit words.
func encodedHI(t *testing.T) []byte {
	t.Helper()
	return zstring.EncodeToken("HI", 3, zstring.DefaultAlphabets(3), 2)
}

func runToCompletion(t *testing.T, storyBytes []byte) []any {
	t.Helper()
	in := make(chan InputResponse)
	saveRestore := make(chan SaveRestoreResponse)
	out := make(chan any, 64)

	z := LoadRom(storyBytes, in, saveRestore, out)
	z.Run()
	close(out)

	var msgs []any
	for m := range out {
		msgs = append(msgs, m)
	}
	return msgs
}

func TestRunQuitStopsImmediately(t *testing.T) {
	program := []byte{0xba} // 0OP:10, quit
	msgs := runToCompletion(t, minimalV3Image(t, program))

	if len(msgs) == 0 {
		t.Fatal("expected at least the initial screen model message")
	}
	if _, ok := msgs[0].(ScreenModel); !ok {
		t.Fatalf("first message: got %T, want ScreenModel", msgs[0])
	}
	last := msgs[len(msgs)-1]
	if q, ok := last.(Quit); !ok || !bool(q) {
		t.Fatalf("last message: got %#v, want Quit(true)", last)
	}
}

func TestPrintThenQuitEmitsText(t *testing.T) {
	program := append([]byte{0xb2}, encodedHI(t)...) // 0OP:2, print "HI"
	program = append(program, 0xba)                  // quit
	msgs := runToCompletion(t, minimalV3Image(t, program))

	var sawText bool
	for _, m := range msgs {
		if s, ok := m.(string); ok {
			if s != "HI" {
				t.Fatalf("printed text: got %q, want %q", s, "HI")
			}
			sawText = true
		}
	}
	if !sawText {
		t.Fatal("expected the printed text to appear on the output channel")
	}
}

func TestUnrecognizedOpcodeReportsRuntimeErrorThenQuit(t *testing.T) {
	// 0OP form, opcode 14: undefined for version 3.
	program := []byte{0x80 | 0x30 | 0x0e} // short form, operand type 11 = omitted (0OP), opcode 14
	msgs := runToCompletion(t, minimalV3Image(t, program))

	var sawError bool
	for _, m := range msgs {
		if _, ok := m.(RuntimeError); ok {
			sawError = true
		}
	}
	if !sawError {
		t.Fatal("expected a RuntimeError message for an undefined opcode")
	}
	last := msgs[len(msgs)-1]
	if q, ok := last.(Quit); !ok || !bool(q) {
		t.Fatalf("last message: got %#v, want Quit(true)", last)
	}
}
