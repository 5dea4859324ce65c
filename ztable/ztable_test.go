package ztable

import (
	"errors"
	"testing"

	"github.com/tmarlowe/zgo/zerr"
	"github.com/tmarlowe/zgo/zmem"
)

func testMemory(t *testing.T) *zmem.Memory {
	t.Helper()
	b := make([]byte, 0x200)
	b[0x00] = 3
	b[0x0e] = 0x01 // static memory base = 0x100, keeps 0x00-0xff writable
	mem, err := zmem.New(b)
	if err != nil {
		t.Fatalf("zmem.New: %v", err)
	}
	return mem
}

func poke(t *testing.T, mem *zmem.Memory, addr uint32, bytes ...byte) {
	t.Helper()
	for i, b := range bytes {
		if err := mem.WriteByte(addr+uint32(i), b); err != nil {
			t.Fatalf("WriteByte: %v", err)
		}
	}
}

func TestPrintTableWraps(t *testing.T) {
	mem := testMemory(t)
	// 6 bytes, width 3: "abc\ndef"
	poke(t, mem, 0x10, 6, 'a', 'b', 'c', 'd', 'e', 'f')

	got, err := PrintTable(mem, 0x10, 3, 0, 0)
	if err != nil {
		t.Fatalf("PrintTable: %v", err)
	}
	if got != "abc\ndef" {
		t.Fatalf("got %q, want %q", got, "abc\\ndef")
	}
}

func TestPrintTableStopsAtHeight(t *testing.T) {
	mem := testMemory(t)
	poke(t, mem, 0x10, 9, 'a', 'b', 'c', 'd', 'e', 'f', 'g', 'h', 'i')

	got, err := PrintTable(mem, 0x10, 3, 2, 0)
	if err != nil {
		t.Fatalf("PrintTable: %v", err)
	}
	if got != "abc\ndef" {
		t.Fatalf("got %q, want %q", got, "abc\\ndef")
	}
}

func TestScanTableByteForm(t *testing.T) {
	mem := testMemory(t)
	poke(t, mem, 0x10, 1, 2, 3, 4)

	addr, err := ScanTable(mem, 3, 0x10, 4, 1)
	if err != nil {
		t.Fatalf("ScanTable: %v", err)
	}
	if addr != 0x12 {
		t.Fatalf("addr: got 0x%x, want 0x12", addr)
	}
}

func TestScanTableWordFormNotFound(t *testing.T) {
	mem := testMemory(t)
	poke(t, mem, 0x10, 0x00, 0x01, 0x00, 0x02)

	addr, err := ScanTable(mem, 0x0099, 0x10, 2, 0b1000_0010)
	if err != nil {
		t.Fatalf("ScanTable: %v", err)
	}
	if addr != 0 {
		t.Fatalf("addr: got 0x%x, want 0 (not found)", addr)
	}
}

func TestScanTableZeroFieldSizeIsError(t *testing.T) {
	mem := testMemory(t)
	if _, err := ScanTable(mem, 1, 0x10, 1, 0); !errors.Is(err, zerr.Sentinel(zerr.OutOfBounds)) {
		t.Fatalf("expected OutOfBounds, got %v", err)
	}
}

func TestCopyTableForwardCopy(t *testing.T) {
	mem := testMemory(t)
	poke(t, mem, 0x10, 1, 2, 3)

	if err := CopyTable(mem, 0x10, 0x20, 3); err != nil {
		t.Fatalf("CopyTable: %v", err)
	}
	for i, want := range []byte{1, 2, 3} {
		got, err := mem.GetByte(0x20 + uint32(i))
		if err != nil {
			t.Fatalf("GetByte: %v", err)
		}
		if got != want {
			t.Fatalf("byte %d: got %d, want %d", i, got, want)
		}
	}
}

func TestCopyTableZeroesWhenSecondIsZero(t *testing.T) {
	mem := testMemory(t)
	poke(t, mem, 0x10, 9, 9, 9)

	if err := CopyTable(mem, 0x10, 0, 3); err != nil {
		t.Fatalf("CopyTable: %v", err)
	}
	for i := 0; i < 3; i++ {
		got, err := mem.GetByte(0x10 + uint32(i))
		if err != nil {
			t.Fatalf("GetByte: %v", err)
		}
		if got != 0 {
			t.Fatalf("byte %d: got %d, want 0", i, got)
		}
	}
}
