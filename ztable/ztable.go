// Package ztable implements the table opcodes (print_table, scan_table,
// copy_table): bulk operations over a rectangular or linear byte/word
// region of memory, addressed directly rather than through the object or
// property abstractions.
//
// Grounded on the teacher's own ztable.PrintTable/ScanTable/CopyTable,
// adapted to read and write through zmem.Memory (bounds- and
// write-region-checked) instead of indexing a bare []uint8, and to return
// *zerr.Error instead of letting an out-of-range table panic the process.
package ztable

import (
	"strings"

	"github.com/tmarlowe/zgo/zerr"
	"github.com/tmarlowe/zgo/zmem"
)

// PrintTable renders a table as a character grid width columns wide. The
// byte at baddr gives how many character bytes follow it; rows are joined
// by newlines, skip extra bytes are skipped at the start of each row past
// the first, and when height is non-zero at most height rows are rendered
// (height 0 renders every byte the count covers).
func PrintTable(mem *zmem.Memory, baddr uint32, width, height, skip uint16) (string, error) {
	numBytes, err := mem.GetByte(baddr)
	if err != nil {
		return "", err
	}

	var s strings.Builder
	for i := uint16(0); i < uint16(numBytes); i++ {
		row := i / width
		col := i % width

		if col == 0 && row != 0 {
			if height != 0 && row == height {
				break
			}
			s.WriteByte('\n')
		}

		b, err := mem.GetByte(baddr + 1 + uint32(i) + uint32(skip*row))
		if err != nil {
			return "", err
		}
		s.WriteByte(b)
	}

	return s.String(), nil
}

// ScanTable searches a table of length fields, each fieldSize bytes wide per
// form's low 7 bits (form's top bit selects word comparison over byte
// comparison), for one equal to test. It returns the address of the first
// match, or 0 if none is found.
func ScanTable(mem *zmem.Memory, test uint16, baddr uint32, length uint16, form uint16) (uint32, error) {
	fieldSize := form & 0b0111_1111
	if fieldSize == 0 {
		return 0, zerr.New(zerr.OutOfBounds, "scan_table called with a zero field size")
	}
	checkWord := form&0b1000_0000 != 0

	ptr := baddr
	for i := uint16(0); i < length; i++ {
		if checkWord {
			w, err := mem.GetWord(ptr)
			if err != nil {
				return 0, err
			}
			if w == test {
				return ptr, nil
			}
		} else {
			b, err := mem.GetByte(ptr)
			if err != nil {
				return 0, err
			}
			if uint16(b) == test {
				return ptr, nil
			}
		}
		ptr += uint32(fieldSize)
	}

	return 0, nil
}

// CopyTable copies sizeAbs(size) bytes from first to second. A negative size
// permits the regions to overlap with the low addresses of the destination
// possibly corrupted by the copy (the standard's own semantics); a
// non-negative size copies via a temporary buffer so overlapping regions
// never see partially-copied data. second == 0 is the standard's special
// case for zeroing out the first table instead of copying anywhere.
func CopyTable(mem *zmem.Memory, first, second uint32, size int16) error {
	sizeAbs := uint32(size)
	if size < 0 {
		sizeAbs = uint32(-int32(size))
	}

	switch {
	case second == 0:
		for i := uint32(0); i < sizeAbs; i++ {
			if err := mem.WriteByte(first+i, 0); err != nil {
				return err
			}
		}
	case size >= 0:
		tmp := make([]uint8, sizeAbs)
		for i := uint32(0); i < sizeAbs; i++ {
			b, err := mem.GetByte(first + i)
			if err != nil {
				return err
			}
			tmp[i] = b
		}
		for i := uint32(0); i < sizeAbs; i++ {
			if err := mem.WriteByte(second+i, tmp[i]); err != nil {
				return err
			}
		}
	default:
		for i := uint32(0); i < sizeAbs; i++ {
			b, err := mem.GetByte(first + i)
			if err != nil {
				return err
			}
			if err := mem.WriteByte(second+i, b); err != nil {
				return err
			}
		}
	}

	return nil
}
