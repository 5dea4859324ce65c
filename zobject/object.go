// Package zobject implements the object table: the per-game tree of
// objects (rooms, items, the player), their attribute bits, property
// tables, and the parent/sibling/child forest invariant.
//
// Grounded on zobject.Object/Property and the RemoveObject/MoveObject
// tree-splice logic on ZMachine in the teacher repository, generalized to
// read and write directly through zmem.Memory (write-through rather than a
// copied struct) and to return *zerr.Error instead of panicking.
package zobject

import (
	"github.com/tmarlowe/zgo/zerr"
	"github.com/tmarlowe/zgo/zmem"
	"github.com/tmarlowe/zgo/zstring"
)

// defaultPropertyCountV3 and defaultPropertyCountV4 are the number of
// entries in the property-defaults table that precedes the object entries,
// one word each.
const (
	defaultPropertyCountV3 = 31
	defaultPropertyCountV4 = 63
	entrySizeV3             = 9
	entrySizeV4             = 14
)

// Object is a view over one object-table entry. BaseAddress anchors every
// accessor below; an Object is cheap to recreate, and its fields are copies
// read at Get time that go stale after a tree mutation, so callers should
// call Get again after one rather than reuse a held value across it.
type Object struct {
	ID              uint16
	BaseAddress     uint32
	Attributes      uint64 // bit 63 = attribute 0, bit 63-n = attribute n
	Parent          uint16
	Sibling         uint16
	Child           uint16
	PropertyTable   uint16
}

func isV4Plus(version uint8) bool { return version >= 4 }

func entrySize(version uint8) uint32 {
	if isV4Plus(version) {
		return entrySizeV4
	}
	return entrySizeV3
}

func defaultsTableSize(version uint8) uint32 {
	if isV4Plus(version) {
		return defaultPropertyCountV4 * 2
	}
	return defaultPropertyCountV3 * 2
}

// Get resolves object id against mem's object table, returning an Object
// view or NoSuchObject if id is 0 (the "null object" sentinel, which the
// standard forbids fetching directly) or past the table's implied range.
func Get(mem *zmem.Memory, id uint16) (Object, error) {
	if id == 0 {
		return Object{}, zerr.New(zerr.NoSuchObject, "object 0 is the null object sentinel")
	}

	h := mem.Header()
	base := uint32(h.ObjectTableBase) + defaultsTableSize(h.Version) + uint32(id-1)*entrySize(h.Version)

	if isV4Plus(h.Version) {
		w0, err := mem.GetWord(base)
		if err != nil {
			return Object{}, zerr.New(zerr.NoSuchObject, "object %d: %v", id, err)
		}
		w2, err := mem.GetWord(base + 2)
		if err != nil {
			return Object{}, zerr.New(zerr.NoSuchObject, "object %d: %v", id, err)
		}
		w4, err := mem.GetWord(base + 4)
		if err != nil {
			return Object{}, zerr.New(zerr.NoSuchObject, "object %d: %v", id, err)
		}
		parent, err := mem.GetWord(base + 6)
		if err != nil {
			return Object{}, err
		}
		sibling, err := mem.GetWord(base + 8)
		if err != nil {
			return Object{}, err
		}
		child, err := mem.GetWord(base + 10)
		if err != nil {
			return Object{}, err
		}
		propTable, err := mem.GetWord(base + 12)
		if err != nil {
			return Object{}, err
		}
		return Object{
			ID:            id,
			BaseAddress:   base,
			Attributes:    uint64(w0)<<48 | uint64(w2)<<32 | uint64(w4)<<16,
			Parent:        parent,
			Sibling:       sibling,
			Child:         child,
			PropertyTable: propTable,
		}, nil
	}

	attrHi, err := mem.GetWord(base)
	if err != nil {
		return Object{}, zerr.New(zerr.NoSuchObject, "object %d: %v", id, err)
	}
	attrLo, err := mem.GetWord(base + 2)
	if err != nil {
		return Object{}, err
	}
	parentB, err := mem.GetByte(base + 4)
	if err != nil {
		return Object{}, err
	}
	siblingB, err := mem.GetByte(base + 5)
	if err != nil {
		return Object{}, err
	}
	childB, err := mem.GetByte(base + 6)
	if err != nil {
		return Object{}, err
	}
	propTable, err := mem.GetWord(base + 7)
	if err != nil {
		return Object{}, err
	}
	return Object{
		ID:            id,
		BaseAddress:   base,
		Attributes:    uint64(attrHi)<<48 | uint64(attrLo)<<32,
		Parent:        uint16(parentB),
		Sibling:       uint16(siblingB),
		Child:         uint16(childB),
		PropertyTable: propTable,
	}, nil
}

// Name decodes the object's short name (the encoded text at the head of its
// property table, the byte at PropertyTable giving its length in words).
func (o Object) Name(mem *zmem.Memory, alphabets zstring.Alphabets) (string, error) {
	if o.PropertyTable == 0 {
		return "", nil
	}
	nameLen, err := mem.GetByte(uint32(o.PropertyTable))
	if err != nil {
		return "", err
	}
	if nameLen == 0 {
		return "", nil
	}
	str, _, err := zstring.DecodeString(mem, uint32(o.PropertyTable)+1, alphabets)
	return str, err
}

// TestAttribute reports whether attribute n is set.
func (o Object) TestAttribute(n uint16) bool {
	mask := uint64(1) << (63 - n)
	return o.Attributes&mask == mask
}

// SetAttribute sets attribute n and writes the change through to memory.
func (o *Object) SetAttribute(mem *zmem.Memory, n uint16) error {
	o.Attributes |= uint64(1) << (63 - n)
	return o.writeAttributes(mem)
}

// ClearAttribute clears attribute n and writes the change through to memory.
func (o *Object) ClearAttribute(mem *zmem.Memory, n uint16) error {
	o.Attributes &^= uint64(1) << (63 - n)
	return o.writeAttributes(mem)
}

func (o *Object) writeAttributes(mem *zmem.Memory) error {
	if err := mem.WriteWord(o.BaseAddress, uint16(o.Attributes>>48)); err != nil {
		return err
	}
	if err := mem.WriteWord(o.BaseAddress+2, uint16(o.Attributes>>32)); err != nil {
		return err
	}
	if !isV4Plus(mem.Header().Version) {
		return nil
	}
	return mem.WriteWord(o.BaseAddress+4, uint16(o.Attributes>>16))
}

// SetParent, SetSibling and SetChild write the relationship through to
// memory and update the in-memory view. They do not themselves preserve the
// forest invariant; Move and Remove below compose them correctly.
func (o *Object) SetParent(mem *zmem.Memory, version uint8, parent uint16) error {
	o.Parent = parent
	return o.writeLink(mem, version, 6, 4, parent)
}

func (o *Object) SetSibling(mem *zmem.Memory, version uint8, sibling uint16) error {
	o.Sibling = sibling
	return o.writeLink(mem, version, 8, 5, sibling)
}

func (o *Object) SetChild(mem *zmem.Memory, version uint8, child uint16) error {
	o.Child = child
	return o.writeLink(mem, version, 10, 6, child)
}

func (o *Object) writeLink(mem *zmem.Memory, version uint8, v4Offset, v3Offset uint32, value uint16) error {
	if isV4Plus(version) {
		return mem.WriteWord(o.BaseAddress+v4Offset, value)
	}
	return mem.WriteByte(o.BaseAddress+v3Offset, uint8(value))
}

// Remove detaches the object from its parent, splicing it out of the
// sibling chain, and clears its own parent/sibling links. Its children are
// left untouched (still attached to it), matching the standard's
// remove_obj semantics and preserving invariant (3) from the data model:
// no node is ever linked under two parents.
func Remove(mem *zmem.Memory, version uint8, id uint16) error {
	obj, err := Get(mem, id)
	if err != nil {
		return err
	}
	if obj.Parent == 0 {
		return nil
	}

	parent, err := Get(mem, obj.Parent)
	if err != nil {
		return err
	}

	if parent.Child == id {
		if err := parent.SetChild(mem, version, obj.Sibling); err != nil {
			return err
		}
	} else {
		cur, err := Get(mem, parent.Child)
		if err != nil {
			return err
		}
		for cur.Sibling != id {
			if cur.Sibling == 0 {
				return zerr.New(zerr.NoSuchObject, "object %d not found in parent %d's child chain", id, obj.Parent)
			}
			cur, err = Get(mem, cur.Sibling)
			if err != nil {
				return err
			}
		}
		if err := cur.SetSibling(mem, version, obj.Sibling); err != nil {
			return err
		}
	}

	if err := obj.SetParent(mem, version, 0); err != nil {
		return err
	}
	return obj.SetSibling(mem, version, 0)
}

// Move detaches id from its current parent (if any) and inserts it as the
// first child of destID, preserving invariant (3): an object has at most
// one parent, and a parent's children form a proper singly linked list with
// no cycles as long as the table itself is well-formed.
func Move(mem *zmem.Memory, version uint8, id, destID uint16) error {
	if err := Remove(mem, version, id); err != nil {
		return err
	}

	obj, err := Get(mem, id)
	if err != nil {
		return err
	}
	dest, err := Get(mem, destID)
	if err != nil {
		return err
	}

	if err := obj.SetSibling(mem, version, dest.Child); err != nil {
		return err
	}
	if err := obj.SetParent(mem, version, destID); err != nil {
		return err
	}
	return dest.SetChild(mem, version, id)
}
