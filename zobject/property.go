package zobject

import (
	"github.com/tmarlowe/zgo/zerr"
	"github.com/tmarlowe/zgo/zmem"
)

// Property is a decoded property-table entry: its number, length, the
// address of its data, and (for GetProperty) the resolved value per the
// get_prop opcode's own convention — a 1-byte property zero-extends, a
// 2-byte property is read as a big-endian word, matching the teacher's
// behavior for properties of exactly those two lengths.
type Property struct {
	Number      uint8
	Length      uint8
	DataAddress uint32
	Value       uint16
}

func propertyTableStart(mem *zmem.Memory, o Object) (uint32, error) {
	if o.PropertyTable == 0 {
		return 0, zerr.New(zerr.NoSuchObject, "object %d has no property table", o.ID)
	}
	nameLen, err := mem.GetByte(uint32(o.PropertyTable))
	if err != nil {
		return 0, err
	}
	return uint32(o.PropertyTable) + 1 + uint32(nameLen)*2, nil
}

// propertyAt decodes the property-size byte(s) at addr: the size encoding
// differs between pre-v4 (3-bit length, 5-bit number) and v4+ (an optional
// second size byte, a 0 length meaning 64 per the format's special case).
func propertyAt(mem *zmem.Memory, addr uint32, version uint8) (Property, error) {
	sizeByte, err := mem.GetByte(addr)
	if err != nil {
		return Property{}, err
	}

	if !isV4Plus(version) {
		return Property{
			Number:      sizeByte & 0b11111,
			Length:      (sizeByte >> 5) + 1,
			DataAddress: addr + 1,
		}, nil
	}

	if sizeByte&0b1000_0000 != 0 {
		second, err := mem.GetByte(addr + 1)
		if err != nil {
			return Property{}, err
		}
		length := second & 0b0011_1111
		if length == 0 {
			length = 64
		}
		return Property{
			Number:      sizeByte & 0b0011_1111,
			Length:      length,
			DataAddress: addr + 2,
		}, nil
	}

	length := uint8(1)
	if sizeByte&0b0100_0000 != 0 {
		length = 2
	}
	return Property{
		Number:      sizeByte & 0b0011_1111,
		Length:      length,
		DataAddress: addr + 1,
	}, nil
}

// GetProperty returns object's property with the given number, resolved to
// a value per get_prop's own convention (1-byte properties zero-extend,
// 2-byte properties read as a word). If the object doesn't define it, the
// story's global default for that property number (a word from the
// defaults table preceding the object entries) is returned instead, with
// DataAddress left at 0 to signal "not actually present on this object" to
// callers.
func GetProperty(mem *zmem.Memory, version uint8, objectTableBase uint16, o Object, number uint8) (Property, error) {
	addr, err := propertyTableStart(mem, o)
	if err != nil {
		return Property{}, err
	}

	for {
		b, err := mem.GetByte(addr)
		if err != nil {
			return Property{}, err
		}
		if b == 0 {
			break
		}
		p, err := propertyAt(mem, addr, version)
		if err != nil {
			return Property{}, err
		}
		if p.Number == number {
			switch p.Length {
			case 1:
				v, err := mem.GetByte(p.DataAddress)
				if err != nil {
					return Property{}, err
				}
				p.Value = uint16(v)
			case 2:
				v, err := mem.GetWord(p.DataAddress)
				if err != nil {
					return Property{}, err
				}
				p.Value = v
			}
			return p, nil
		}
		if p.Number < number {
			break // properties are stored in descending order
		}
		addr = p.DataAddress + uint32(p.Length)
	}

	defaultAddr := uint32(objectTableBase) + 2*uint32(number-1)
	v, err := mem.GetWord(defaultAddr)
	if err != nil {
		return Property{}, err
	}
	return Property{Number: number, Length: 2, DataAddress: 0, Value: v}, nil
}

// GetPropertyAddr returns the byte address of property number's data, or 0
// if the object does not define it (per the standard's get_prop_addr).
func GetPropertyAddr(mem *zmem.Memory, version uint8, o Object, number uint8) (uint32, error) {
	addr, err := propertyTableStart(mem, o)
	if err != nil {
		return 0, err
	}
	for {
		b, err := mem.GetByte(addr)
		if err != nil {
			return 0, err
		}
		if b == 0 {
			return 0, nil
		}
		p, err := propertyAt(mem, addr, version)
		if err != nil {
			return 0, err
		}
		if p.Number == number {
			return p.DataAddress, nil
		}
		if p.Number < number {
			return 0, nil
		}
		addr = p.DataAddress + uint32(p.Length)
	}
}

// PropertyLength recovers a property's length from the address of its
// first data byte, per the standard's get_prop_len (which is called with
// exactly that address, not a property number). Address 0 is the
// special-cased "no property" input some story files pass, returning 0.
func PropertyLength(mem *zmem.Memory, dataAddr uint32, version uint8) (uint8, error) {
	if dataAddr == 0 {
		return 0, nil
	}
	prev, err := mem.GetByte(dataAddr - 1)
	if err != nil {
		return 0, err
	}
	if !isV4Plus(version) {
		return (prev >> 5) + 1, nil
	}
	if prev&0b1000_0000 != 0 {
		length := prev & 0b0011_1111
		if length == 0 {
			return 64, nil
		}
		return length, nil
	}
	if prev&0b0100_0000 != 0 {
		return 2, nil
	}
	return 1, nil
}

// PutProperty writes value into object's property, which must already
// exist on the object (the standard requires put_prop to be called only on
// properties the object actually has) and must be 1 or 2 bytes long.
func PutProperty(mem *zmem.Memory, version uint8, o Object, number uint8, value uint16) error {
	addr, err := propertyTableStart(mem, o)
	if err != nil {
		return err
	}
	for {
		b, err := mem.GetByte(addr)
		if err != nil {
			return err
		}
		if b == 0 {
			return zerr.New(zerr.NoSuchProperty, "object %d has no property %d", o.ID, number)
		}
		p, err := propertyAt(mem, addr, version)
		if err != nil {
			return err
		}
		if p.Number == number {
			switch p.Length {
			case 1:
				return mem.WriteByte(p.DataAddress, uint8(value))
			case 2:
				return mem.WriteWord(p.DataAddress, value)
			default:
				return zerr.New(zerr.NoSuchProperty, "property %d on object %d has length %d, not settable by put_prop", number, o.ID, p.Length)
			}
		}
		if p.Number < number {
			return zerr.New(zerr.NoSuchProperty, "object %d has no property %d", o.ID, number)
		}
		addr = p.DataAddress + uint32(p.Length)
	}
}

// GetNextProperty returns the property number following number on o's
// table, or 0 if number was the last. number == 0 means "return the first
// property" (the standard's own convention for get_next_prop).
func GetNextProperty(mem *zmem.Memory, version uint8, o Object, number uint8) (uint8, error) {
	addr, err := propertyTableStart(mem, o)
	if err != nil {
		return 0, err
	}

	if number == 0 {
		b, err := mem.GetByte(addr)
		if err != nil {
			return 0, err
		}
		if b == 0 {
			return 0, nil
		}
		p, err := propertyAt(mem, addr, version)
		return p.Number, err
	}

	for {
		b, err := mem.GetByte(addr)
		if err != nil {
			return 0, err
		}
		if b == 0 {
			return 0, zerr.New(zerr.NoSuchProperty, "object %d has no property %d", o.ID, number)
		}
		p, err := propertyAt(mem, addr, version)
		if err != nil {
			return 0, err
		}
		if p.Number == number {
			nextAddr := p.DataAddress + uint32(p.Length)
			nb, err := mem.GetByte(nextAddr)
			if err != nil {
				return 0, err
			}
			if nb == 0 {
				return 0, nil
			}
			next, err := propertyAt(mem, nextAddr, version)
			return next.Number, err
		}
		if p.Number < number {
			return 0, zerr.New(zerr.NoSuchProperty, "object %d has no property %d", o.ID, number)
		}
		addr = p.DataAddress + uint32(p.Length)
	}
}
