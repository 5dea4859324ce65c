package zobject

import (
	"errors"
	"testing"

	"github.com/tmarlowe/zgo/zerr"
	"github.com/tmarlowe/zgo/zmem"
)

// v3Image lays out a tiny v3 object table at 0x40: a 31-word defaults
// table, then three object entries (ids 1,2,3), each with a trivial
// empty-named property table that ends immediately after one property.
func v3Image(t *testing.T) *zmem.Memory {
	t.Helper()
	b := make([]byte, 0x200)
	b[0x00] = 3
	b[0x0a] = 0x00 // object table base = 0x40
	b[0x0b] = 0x40
	b[0x0e] = 0x02 // static memory base = 0x200: the property tables at
	b[0x0f] = 0x00 // 0x108 and above stay writable for PutProperty

	const base = 0x40
	const entriesStart = base + 31*2 // 0x7e

	// Property tables, placed after the entries: a 0-length name, one
	// property (number 5, length 1, value 0x42), terminated.
	propTableFor := func(id int) uint16 { return uint16(0x100 + id*8) }
	for id := 1; id <= 3; id++ {
		pt := propTableFor(id)
		b[pt] = 0 // name length 0 words
		b[pt+1] = (0 << 5) | 5 // length-1 property number 5
		b[pt+2] = 0x42
		b[pt+3] = 0 // terminator
	}

	// Object 1: parent 0, sibling 2, child 0.
	entry := func(id int) uint32 { return entriesStart + uint32(id-1)*9 }
	b[entry(1)+4] = 0
	b[entry(1)+5] = 2
	b[entry(1)+6] = 0
	b[entry(1)+7] = byte(propTableFor(1) >> 8)
	b[entry(1)+8] = byte(propTableFor(1))

	// Object 2: parent 0, sibling 0, child 3.
	b[entry(2)+4] = 0
	b[entry(2)+5] = 0
	b[entry(2)+6] = 3
	b[entry(2)+7] = byte(propTableFor(2) >> 8)
	b[entry(2)+8] = byte(propTableFor(2))

	// Object 3: parent 2, sibling 0, child 0.
	b[entry(3)+4] = 2
	b[entry(3)+5] = 0
	b[entry(3)+6] = 0
	b[entry(3)+7] = byte(propTableFor(3) >> 8)
	b[entry(3)+8] = byte(propTableFor(3))

	mem, err := zmem.New(b)
	if err != nil {
		t.Fatalf("zmem.New: %v", err)
	}
	return mem
}

// v4Image lays out a tiny v4 object table at 0x40: a 63-word defaults
// table, then one 14-byte object entry (id 1) with a trivial property
// table, matching the v4+ attribute/parent/sibling/child/prop-table layout.
func v4Image(t *testing.T) *zmem.Memory {
	t.Helper()
	b := make([]byte, 0x200)
	b[0x00] = 4
	b[0x0a] = 0x00 // object table base = 0x40
	b[0x0b] = 0x40
	b[0x0e] = 0x01 // static memory base, unused by these tests
	b[0x0f] = 0x00

	const base = 0x40
	const entriesStart = base + 63*2

	pt := uint16(0x100)
	b[pt] = 0              // name length 0 words
	b[pt+1] = (0 << 5) | 5 // length-1 property number 5
	b[pt+2] = 0x42
	b[pt+3] = 0 // terminator

	entry := entriesStart
	b[entry+6] = 0 // parent
	b[entry+7] = 0
	b[entry+8] = 0 // sibling
	b[entry+9] = 0
	b[entry+10] = 0 // child
	b[entry+11] = 0
	b[entry+12] = byte(pt >> 8)
	b[entry+13] = byte(pt)

	mem, err := zmem.New(b)
	if err != nil {
		t.Fatalf("zmem.New: %v", err)
	}
	return mem
}

func TestV4AttributeRoundTripHighBits(t *testing.T) {
	mem := v4Image(t)
	obj, err := Get(mem, 1)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	// Attribute 40 lives in the third attribute word (byte offsets
	// base+4/base+5, attributes 32-47) — the word a prior bug skipped on
	// read and never wrote back on mutation.
	if obj.TestAttribute(40) {
		t.Fatal("attribute 40 should start clear")
	}
	if err := obj.SetAttribute(mem, 40); err != nil {
		t.Fatalf("SetAttribute: %v", err)
	}
	if !obj.TestAttribute(40) {
		t.Fatal("SetAttribute did not take in the in-memory view")
	}

	reread, err := Get(mem, 1)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !reread.TestAttribute(40) {
		t.Fatal("attribute 40 did not persist to memory")
	}
	// Attribute 10 lives in the first word and must be unaffected.
	if reread.TestAttribute(10) {
		t.Fatal("unrelated attribute 10 should remain clear")
	}

	if err := reread.ClearAttribute(mem, 40); err != nil {
		t.Fatalf("ClearAttribute: %v", err)
	}
	cleared, err := Get(mem, 1)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if cleared.TestAttribute(40) {
		t.Fatal("ClearAttribute did not persist to memory")
	}
}

func TestGetObjectZeroIsError(t *testing.T) {
	mem := v3Image(t)
	if _, err := Get(mem, 0); !errors.Is(err, zerr.Sentinel(zerr.NoSuchObject)) {
		t.Fatalf("expected NoSuchObject, got %v", err)
	}
}

func TestGetObjectLinks(t *testing.T) {
	mem := v3Image(t)
	obj, err := Get(mem, 2)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if obj.Parent != 0 || obj.Sibling != 0 || obj.Child != 3 {
		t.Fatalf("object 2 links: got parent=%d sibling=%d child=%d", obj.Parent, obj.Sibling, obj.Child)
	}
}

func TestAttributeRoundTrip(t *testing.T) {
	mem := v3Image(t)
	obj, err := Get(mem, 1)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if obj.TestAttribute(10) {
		t.Fatal("attribute 10 should start clear")
	}
	if err := obj.SetAttribute(mem, 10); err != nil {
		t.Fatalf("SetAttribute: %v", err)
	}
	if !obj.TestAttribute(10) {
		t.Fatal("SetAttribute did not take")
	}

	reread, err := Get(mem, 1)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !reread.TestAttribute(10) {
		t.Fatal("attribute write did not persist to memory")
	}

	if err := reread.ClearAttribute(mem, 10); err != nil {
		t.Fatalf("ClearAttribute: %v", err)
	}
	if reread.TestAttribute(10) {
		t.Fatal("ClearAttribute did not take")
	}
}

func TestRemoveSplicesSiblingChain(t *testing.T) {
	mem := v3Image(t)
	// Give object 2 two children: 3 then (we reuse object 1 as a sibling of 3).
	three, err := Get(mem, 3)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if err := three.SetSibling(mem, 3, 1); err != nil {
		t.Fatalf("SetSibling: %v", err)
	}
	one, err := Get(mem, 1)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if err := one.SetParent(mem, 3, 2); err != nil {
		t.Fatalf("SetParent: %v", err)
	}
	if err := one.SetSibling(mem, 3, 0); err != nil {
		t.Fatalf("SetSibling: %v", err)
	}

	if err := Remove(mem, 3, 3); err != nil {
		t.Fatalf("Remove: %v", err)
	}

	two, err := Get(mem, 2)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if two.Child != 1 {
		t.Fatalf("object 2's child after removing 3: got %d, want 1", two.Child)
	}

	removed, err := Get(mem, 3)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if removed.Parent != 0 || removed.Sibling != 0 {
		t.Fatalf("removed object should have no parent/sibling, got parent=%d sibling=%d", removed.Parent, removed.Sibling)
	}
}

func TestMoveReparents(t *testing.T) {
	mem := v3Image(t)
	if err := Move(mem, 3, 1, 2); err != nil {
		t.Fatalf("Move: %v", err)
	}

	one, err := Get(mem, 1)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if one.Parent != 2 {
		t.Fatalf("object 1's parent: got %d, want 2", one.Parent)
	}

	two, err := Get(mem, 2)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if two.Child != 1 {
		t.Fatalf("object 2's child after Move: got %d, want 1", two.Child)
	}
	if one.Sibling != 3 {
		t.Fatalf("moved object should be linked in front of the existing child, got sibling=%d", one.Sibling)
	}
}

func TestGetPropertyFallsBackToDefault(t *testing.T) {
	mem := v3Image(t)
	obj, err := Get(mem, 1)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	p5, err := GetProperty(mem, 3, mem.Header().ObjectTableBase, obj, 5)
	if err != nil {
		t.Fatalf("GetProperty(5): %v", err)
	}
	if p5.Value != 0x42 {
		t.Fatalf("property 5 value: got 0x%x, want 0x42", p5.Value)
	}

	p7, err := GetProperty(mem, 3, mem.Header().ObjectTableBase, obj, 7)
	if err != nil {
		t.Fatalf("GetProperty(7): %v", err)
	}
	if p7.DataAddress != 0 {
		t.Fatal("absent property should report DataAddress 0")
	}
}

func TestPutPropertyRoundTrip(t *testing.T) {
	mem := v3Image(t)
	obj, err := Get(mem, 1)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if err := PutProperty(mem, 3, obj, 5, 0x11); err != nil {
		t.Fatalf("PutProperty: %v", err)
	}
	p, err := GetProperty(mem, 3, mem.Header().ObjectTableBase, obj, 5)
	if err != nil {
		t.Fatalf("GetProperty: %v", err)
	}
	if p.Value != 0x11 {
		t.Fatalf("property 5 after PutProperty: got 0x%x, want 0x11", p.Value)
	}
}

func TestPutPropertyMissingIsError(t *testing.T) {
	mem := v3Image(t)
	obj, err := Get(mem, 1)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if err := PutProperty(mem, 3, obj, 9, 1); !errors.Is(err, zerr.Sentinel(zerr.NoSuchProperty)) {
		t.Fatalf("expected NoSuchProperty, got %v", err)
	}
}

func TestGetNextPropertyFirstAndLast(t *testing.T) {
	mem := v3Image(t)
	obj, err := Get(mem, 1)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	first, err := GetNextProperty(mem, 3, obj, 0)
	if err != nil {
		t.Fatalf("GetNextProperty(0): %v", err)
	}
	if first != 5 {
		t.Fatalf("first property: got %d, want 5", first)
	}
	last, err := GetNextProperty(mem, 3, obj, 5)
	if err != nil {
		t.Fatalf("GetNextProperty(5): %v", err)
	}
	if last != 0 {
		t.Fatalf("property after the only one: got %d, want 0", last)
	}
}
