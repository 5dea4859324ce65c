package zmem

import (
	"errors"
	"testing"

	"github.com/tmarlowe/zgo/zerr"
)

// minimalHeader builds a v3 story-file-shaped header of length l with
// static memory starting at d and high memory starting at h.
func minimalHeader(l int, d, h uint16) []byte {
	b := make([]byte, l)
	b[0x00] = 3
	b[0x04] = uint8(h >> 8)
	b[0x05] = uint8(h)
	b[0x0e] = uint8(d >> 8)
	b[0x0f] = uint8(d)
	return b
}

func TestWriteByteRegionRules(t *testing.T) {
	mem, err := New(minimalHeader(0x200, 0x100, 0x180))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := mem.WriteByte(0x50, 0x42); err != nil {
		t.Fatalf("write in dynamic region failed: %v", err)
	}
	got, err := mem.GetByte(0x50)
	if err != nil || got != 0x42 {
		t.Fatalf("got=%x err=%v, want 0x42", got, err)
	}

	err = mem.WriteByte(0x100, 0x99)
	if err == nil {
		t.Fatal("write at static-memory boundary should fail")
	}
	var zerrv *zerr.Error
	if !errors.As(err, &zerrv) || zerrv.Kind != zerr.ReadOnlyRegion {
		t.Fatalf("expected ReadOnlyRegion, got %v", err)
	}

	err = mem.WriteByte(0x1ff, 0x99)
	if err == nil || !errors.Is(err, zerr.Sentinel(zerr.ReadOnlyRegion)) {
		t.Fatalf("write in high memory should be ReadOnlyRegion, got %v", err)
	}
}

func TestGetByteOutOfBounds(t *testing.T) {
	mem, err := New(minimalHeader(0x80, 0x40, 0x60))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, err := mem.GetByte(0x7f); err != nil {
		t.Fatalf("last valid byte should read fine: %v", err)
	}
	if _, err := mem.GetByte(0x80); !errors.Is(err, zerr.Sentinel(zerr.OutOfBounds)) {
		t.Fatalf("expected OutOfBounds past end of image, got %v", err)
	}
	if _, err := mem.GetByte(0x10000); !errors.Is(err, zerr.Sentinel(zerr.OutOfBounds)) {
		t.Fatalf("expected OutOfBounds past addressable space, got %v", err)
	}
}

func TestWriteWordNoPartialWriteOnFailure(t *testing.T) {
	mem, err := New(minimalHeader(0x100, 0x40, 0x80))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	// addr = D-1 means the low byte of the word lands in static memory.
	addr := mem.DynamicEnd() - 1
	before, _ := mem.GetByte(addr)

	if err := mem.WriteWord(addr, 0xBEEF); err == nil {
		t.Fatal("expected failure writing word across the dynamic/static boundary")
	}

	after, _ := mem.GetByte(addr)
	if before != after {
		t.Fatalf("partial write occurred: before=%x after=%x", before, after)
	}
}

func TestWriteWordRoundTrip(t *testing.T) {
	mem, err := New(minimalHeader(0x100, 0x80, 0x90))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := mem.WriteWord(0x10, 0xCAFE); err != nil {
		t.Fatalf("WriteWord: %v", err)
	}
	got, err := mem.GetWord(0x10)
	if err != nil || got != 0xCAFE {
		t.Fatalf("got=%x err=%v, want 0xCAFE", got, err)
	}
}

func TestSnapshotReflectsWrites(t *testing.T) {
	mem, err := New(minimalHeader(0x100, 0x80, 0x90))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	snap := mem.Snapshot()
	if err := mem.WriteByte(0x20, 0x7A); err != nil {
		t.Fatalf("WriteByte: %v", err)
	}
	got, err := snap.Byte(0x20)
	if err != nil || got != 0x7A {
		t.Fatalf("snapshot did not reflect write: got=%x err=%v", got, err)
	}
}

func TestPackedAddress(t *testing.T) {
	b := minimalHeader(0x100, 0x80, 0x90)
	b[0x00] = 5 // v5: shift 2
	mem, err := New(b)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got := mem.PackedAddress(0x100, false); got != 0x400 {
		t.Fatalf("v5 packed address: got 0x%x, want 0x400", got)
	}

	b[0x00] = 8 // v8: shift 3
	mem8, err := New(b)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got := mem8.PackedAddress(0x100, false); got != 0x800 {
		t.Fatalf("v8 packed address: got 0x%x, want 0x800", got)
	}
}
