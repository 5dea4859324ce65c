// Package zmem owns the Z-machine's byte-addressable memory image and
// enforces the dynamic/static/high region rules from the story file header.
//
// Grounded on zcore.Core in the teacher repository, generalized to return
// *zerr.Error from every accessor instead of indexing a bare []uint8 (which
// panics past the end of the image) and to enforce the write-region rule
// the teacher's WriteZByte/WriteHalfWord left as a TODO.
package zmem

import (
	"encoding/binary"

	"github.com/tmarlowe/zgo/zerr"
)

// addressSpace is the largest address the Z-machine can name: 64 KiB.
const addressSpace = 0x10000

// Header holds the story-file header fields the rest of the interpreter
// needs by name, per spec.md §4.1.
type Header struct {
	Version               uint8
	ReleaseNumber         uint16
	HighMemoryBase        uint16 // H: start of the high (read-only, may be shared) region
	InitialPC             uint16 // v1-5: first instruction; v6+: packed address of main routine
	DictionaryBase        uint16
	ObjectTableBase       uint16
	GlobalVariableBase    uint16
	StaticMemoryBase      uint16 // D: start of the static region, end of dynamic
	AbbreviationTableBase uint16
	FileChecksum          uint16
	RoutinesOffset        uint16 // v6/v7 only
	StringOffset          uint16 // v6/v7 only
	AlphabetTableBase     uint16 // v5+, 0 means use the default alphabets
	UnicodeTableBase      uint16 // resolved through the header extension table; 0 means use the default table
}

// Memory is the single owner of the story file's byte image. It is not
// safe for concurrent use; per spec.md §5 the interpreter is single-owner,
// single-threaded.
type Memory struct {
	bytes  []byte
	header Header
}

// New parses storyBytes into a Memory, copying the story file's header
// fields the way zcore.LoadCore does, including setting the interpreter
// number/version and claimed-feature flags bytes the format explicitly
// permits mutating at startup.
func New(storyBytes []byte) (*Memory, error) {
	if len(storyBytes) < 0x40 {
		return nil, zerr.New(zerr.OutOfBounds, "story file too short for header (%d bytes)", len(storyBytes))
	}

	b := make([]byte, len(storyBytes))
	copy(b, storyBytes)

	version := b[0x00]

	b[0x1e] = 0x06 // Interpreter number: treat ourselves as a generic ANSI terminal.
	b[0x1f] = 0x01 // Interpreter version.

	if version <= 3 {
		b[0x01] |= 0b0010_0000 // Split-screen available.
	} else {
		b[0x01] |= 0b0010_1101 // Colours, bold, italic, split-screen; no pictures/timed-input.
	}

	extensionTableBase := binary.BigEndian.Uint16(b[0x36:0x38])
	unicodeTableBase := uint16(0)
	if extensionTableBase != 0 && int(extensionTableBase)+8 <= len(b) {
		numEntries := binary.BigEndian.Uint16(b[extensionTableBase : extensionTableBase+2])
		if numEntries >= 3 {
			unicodeTableBase = binary.BigEndian.Uint16(b[extensionTableBase+6 : extensionTableBase+8])
		}
	}

	m := &Memory{
		bytes: b,
		header: Header{
			Version:               version,
			ReleaseNumber:         binary.BigEndian.Uint16(b[0x02:0x04]),
			HighMemoryBase:        binary.BigEndian.Uint16(b[0x04:0x06]),
			InitialPC:             binary.BigEndian.Uint16(b[0x06:0x08]),
			DictionaryBase:        binary.BigEndian.Uint16(b[0x08:0x0a]),
			ObjectTableBase:       binary.BigEndian.Uint16(b[0x0a:0x0c]),
			GlobalVariableBase:    binary.BigEndian.Uint16(b[0x0c:0x0e]),
			StaticMemoryBase:      binary.BigEndian.Uint16(b[0x0e:0x10]),
			AbbreviationTableBase: binary.BigEndian.Uint16(b[0x18:0x1a]),
			FileChecksum:          binary.BigEndian.Uint16(b[0x1c:0x1e]),
			RoutinesOffset:        binary.BigEndian.Uint16(b[0x28:0x2a]),
			StringOffset:          binary.BigEndian.Uint16(b[0x2a:0x2c]),
			AlphabetTableBase:     binary.BigEndian.Uint16(b[0x34:0x36]),
			UnicodeTableBase:      unicodeTableBase,
		},
	}

	return m, nil
}

// Header returns the parsed header fields.
func (m *Memory) Header() Header { return m.header }

// Length is L, the total length of the image in bytes.
func (m *Memory) Length() uint32 { return uint32(len(m.bytes)) }

// DynamicEnd is D: the exclusive end of the dynamic (writable) region.
func (m *Memory) DynamicEnd() uint32 { return uint32(m.header.StaticMemoryBase) }

// HighStart is H: the inclusive start of the high region.
func (m *Memory) HighStart() uint32 { return uint32(m.header.HighMemoryBase) }

// GetByte reads one byte. Reads are permitted anywhere in the addressable
// 64 KiB as long as it's within the image.
func (m *Memory) GetByte(addr uint32) (uint8, error) {
	if addr >= addressSpace || addr >= m.Length() {
		return 0, zerr.New(zerr.OutOfBounds, "read at 0x%x past end of image (length 0x%x)", addr, m.Length())
	}
	return m.bytes[addr], nil
}

// GetWord reads the big-endian word at addr and addr+1.
func (m *Memory) GetWord(addr uint32) (uint16, error) {
	hi, err := m.GetByte(addr)
	if err != nil {
		return 0, err
	}
	lo, err := m.GetByte(addr + 1)
	if err != nil {
		return 0, err
	}
	return uint16(hi)<<8 | uint16(lo), nil
}

// WriteByte writes one byte. Writes are permitted only in the dynamic
// region [0, D).
func (m *Memory) WriteByte(addr uint32, value uint8) error {
	if addr >= m.DynamicEnd() {
		return zerr.New(zerr.ReadOnlyRegion, "write at 0x%x is outside dynamic memory (ends at 0x%x)", addr, m.DynamicEnd())
	}
	if addr >= m.Length() {
		return zerr.New(zerr.OutOfBounds, "write at 0x%x past end of image", addr)
	}
	m.bytes[addr] = value
	return nil
}

// WriteWord writes a big-endian word. Both addr and addr+1 are
// region-checked before either byte is stored, so a failing write leaves
// memory unchanged (spec.md §4.1).
func (m *Memory) WriteWord(addr uint32, value uint16) error {
	if err := m.checkWrite(addr); err != nil {
		return err
	}
	if err := m.checkWrite(addr + 1); err != nil {
		return err
	}
	m.bytes[addr] = uint8(value >> 8)
	m.bytes[addr+1] = uint8(value)
	return nil
}

func (m *Memory) checkWrite(addr uint32) error {
	if addr >= m.DynamicEnd() {
		return zerr.New(zerr.ReadOnlyRegion, "write at 0x%x is outside dynamic memory (ends at 0x%x)", addr, m.DynamicEnd())
	}
	if addr >= m.Length() {
		return zerr.New(zerr.OutOfBounds, "write at 0x%x past end of image", addr)
	}
	return nil
}

// Slice returns the raw bytes in [start, end) for bulk consumers (the
// decoder, text codec, high-memory readers). The returned slice aliases
// Memory's backing array: mutations through WriteByte/WriteWord are visible
// through any previously returned slice, matching the Snapshot contract in
// spec.md §5.
func (m *Memory) Slice(start, end uint32) ([]byte, error) {
	if end > m.Length() || start > end {
		return nil, zerr.New(zerr.OutOfBounds, "slice [0x%x,0x%x) past end of image (length 0x%x)", start, end, m.Length())
	}
	return m.bytes[start:end], nil
}

// Snapshot is a read-only view over the full image, for bulk reads (the
// decoder, text codec, high memory). It aliases the same underlying bytes,
// so it reflects subsequent writes without needing to be refreshed.
type Snapshot struct {
	mem *Memory
}

// Snapshot returns a read-only view over all L bytes of the image.
func (m *Memory) Snapshot() Snapshot { return Snapshot{mem: m} }

// Byte reads one byte through the snapshot.
func (s Snapshot) Byte(addr uint32) (uint8, error) { return s.mem.GetByte(addr) }

// Word reads one big-endian word through the snapshot.
func (s Snapshot) Word(addr uint32) (uint16, error) { return s.mem.GetWord(addr) }

// Len is the length of the underlying image.
func (s Snapshot) Len() uint32 { return s.mem.Length() }

// Slice exposes a read range without copying.
func (s Snapshot) Slice(start, end uint32) ([]byte, error) { return s.mem.Slice(start, end) }

// PackedAddress resolves a packed routine or string address to a byte
// address, honoring the per-version packing shift and, for v6/v7, the
// routine/string offset fields. Grounded on ZMachine.packedAddress in the
// teacher.
func (m *Memory) PackedAddress(packed uint16, isString bool) uint32 {
	v := m.header.Version
	switch {
	case v < 4:
		return 2 * uint32(packed)
	case v < 6:
		return 4 * uint32(packed)
	case v < 8:
		offset := m.header.RoutinesOffset
		if isString {
			offset = m.header.StringOffset
		}
		return 4*uint32(packed) + 8*uint32(offset)
	default: // v == 8
		return 8 * uint32(packed)
	}
}
