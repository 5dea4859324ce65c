// Package zdecode turns a byte address into a fully resolved Instruction
// record: operand form, operand kinds and values, the store variable (if
// any), the branch descriptor (if any), and the address of the next
// instruction. It does not execute anything.
//
// Grounded on zmachine.ParseOpcode and parseVariableOperands in the teacher
// repository (operand-type-byte decoding, the long/short/variable/extended
// form split, the 8-operand extra-type-byte case for the two "double VAR"
// call opcodes) and on the full switch in zmachine.StepMachine, read once
// for shape rather than effect to build opcodeInfo below: which opcodes
// store a result, which branch, and which carry an inline literal string.
//
// Unlike the teacher, which resolves store variables and branch bytes
// lazily, inline, during dispatch, Decode resolves both up front as part of
// the Instruction record, and only consumes (without decoding) the literal
// string payload of print/print_ret, leaving text decoding to the zstring
// package so this decoder never needs to know about alphabets.
package zdecode

import (
	"github.com/tmarlowe/zgo/zerr"
	"github.com/tmarlowe/zgo/zmem"
)

// Form is the instruction encoding form.
type Form uint8

const (
	LongForm Form = iota
	ShortForm
	VariableForm
	ExtendedForm
)

// OperandCount classifies an opcode by how many operands its form implies,
// independent of how many operand slots actually got filled in (VAR/EXT
// opcodes fill a variable number).
type OperandCount uint8

const (
	OP0 OperandCount = iota
	OP1
	OP2
	VAR
)

// OperandType is the 2-bit operand-type-byte encoding.
type OperandType uint8

const (
	LargeConstant OperandType = iota
	SmallConstant
	Variable
	Omitted
)

// Operand is one decoded operand: its type and raw value. Variable operands
// carry the variable number in Value, not the variable's contents; resolving
// that is the dispatcher's job, against the call-frame stack.
type Operand struct {
	Type  OperandType
	Value uint16
}

// BranchKind distinguishes an ordinary relative jump from the two special
// "return instead of branching" encodings the standard reserves for branch
// offsets 0 and 1.
type BranchKind uint8

const (
	BranchJump BranchKind = iota
	BranchReturnFalse
	BranchReturnTrue
)

// Branch is a resolved branch descriptor: whether the branch fires when the
// instruction's condition is true or false, and what happens when it fires.
type Branch struct {
	OnTrue bool
	Kind   BranchKind
	Offset int16 // only meaningful when Kind == BranchJump
}

// Instruction is the fully resolved, immutable decode of one instruction.
type Instruction struct {
	Addr         uint32
	Form         Form
	Count        OperandCount
	Opcode       uint8 // opcode number within its form/count class
	Operands     []Operand
	StoreVar     *uint8
	Branch       *Branch
	HasText      bool
	TextAddr     uint32 // valid when HasText; start of the still-undecoded literal string
	NextPC       uint32
}

// Decode reads the instruction at addr and returns its fully resolved form.
func Decode(mem *zmem.Memory, addr uint32) (Instruction, error) {
	version := mem.Header().Version
	opcodeByte, err := mem.GetByte(addr)
	if err != nil {
		return Instruction{}, err
	}
	ptr := addr + 1

	inst := Instruction{Addr: addr}

	if opcodeByte == 0xbe && version >= 5 {
		extNum, err := mem.GetByte(ptr)
		if err != nil {
			return Instruction{}, err
		}
		ptr++
		inst.Form = ExtendedForm
		inst.Count = VAR
		inst.Opcode = extNum
		operands, newPtr, err := readVariableOperands(mem, ptr, 4)
		if err != nil {
			return Instruction{}, err
		}
		ptr = newPtr
		inst.Operands = operands
	} else {
		top2 := opcodeByte >> 6
		switch {
		case top2 == 0b11: // variable form
			inst.Form = VariableForm
			opNum := opcodeByte & 0b0001_1111
			inst.Opcode = opNum
			if opcodeByte&0b0010_0000 != 0 {
				inst.Count = VAR
			} else {
				inst.Count = OP2
			}
			maxOperands := 4
			if inst.Count == VAR && (opNum == 12 || opNum == 26) {
				maxOperands = 8
			}
			operands, newPtr, err := readVariableOperands(mem, ptr, maxOperands)
			if err != nil {
				return Instruction{}, err
			}
			ptr = newPtr
			inst.Operands = operands

		case top2 == 0b10: // short form
			inst.Form = ShortForm
			inst.Opcode = opcodeByte & 0b0000_1111
			opType := OperandType((opcodeByte >> 4) & 0b11)
			if opType == Omitted {
				inst.Count = OP0
				inst.Operands = nil
			} else {
				inst.Count = OP1
				val, newPtr, err := readOperand(mem, ptr, opType)
				if err != nil {
					return Instruction{}, err
				}
				ptr = newPtr
				inst.Operands = []Operand{{Type: opType, Value: val}}
			}

		default: // long form: top bit clear
			inst.Form = LongForm
			inst.Count = OP2
			inst.Opcode = opcodeByte & 0b0001_1111
			types := [2]OperandType{SmallConstant, SmallConstant}
			if opcodeByte&0b0100_0000 != 0 {
				types[0] = Variable
			}
			if opcodeByte&0b0010_0000 != 0 {
				types[1] = Variable
			}
			operands := make([]Operand, 2)
			for i, t := range types {
				val, newPtr, err := readOperand(mem, ptr, t)
				if err != nil {
					return Instruction{}, err
				}
				ptr = newPtr
				operands[i] = Operand{Type: t, Value: val}
			}
			inst.Operands = operands
		}
	}

	info, ok := classify(inst.Form, inst.Count, inst.Opcode, version)
	if !ok {
		return Instruction{}, zerr.New(zerr.InvalidOpcode, "undefined opcode %d (form %d, count %d) at 0x%04x", inst.Opcode, inst.Form, inst.Count, addr)
	}

	if n := len(inst.Operands); n < info.minOperands || n > info.maxOperands {
		return Instruction{}, zerr.New(zerr.InvalidOperandCount, "opcode %d (form %d, count %d) at 0x%04x decoded %d operands, want %d..%d", inst.Opcode, inst.Form, inst.Count, addr, n, info.minOperands, info.maxOperands)
	}

	if info.stores {
		sv, err := mem.GetByte(ptr)
		if err != nil {
			return Instruction{}, err
		}
		ptr++
		inst.StoreVar = &sv
	}

	if info.branches {
		b, newPtr, err := readBranch(mem, ptr)
		if err != nil {
			return Instruction{}, err
		}
		ptr = newPtr
		inst.Branch = &b
	}

	if info.text {
		textAddr := ptr
		newPtr, err := skipString(mem, ptr)
		if err != nil {
			return Instruction{}, err
		}
		inst.HasText = true
		inst.TextAddr = textAddr
		ptr = newPtr
	}

	inst.NextPC = ptr
	return inst, nil
}

func readOperand(mem *zmem.Memory, ptr uint32, t OperandType) (uint16, uint32, error) {
	switch t {
	case LargeConstant:
		v, err := mem.GetWord(ptr)
		return v, ptr + 2, err
	case SmallConstant, Variable:
		v, err := mem.GetByte(ptr)
		return uint16(v), ptr + 1, err
	default:
		return 0, ptr, nil
	}
}

// readVariableOperands reads one or two operand-type bytes (two only for the
// 8-operand CALL_VS2/CALL_VN2 case), then the operands themselves, stopping
// at the first Omitted type slot.
func readVariableOperands(mem *zmem.Memory, ptr uint32, maxOperands int) ([]Operand, uint32, error) {
	typeBytes := 1
	if maxOperands == 8 {
		typeBytes = 2
	}

	types := make([]OperandType, 0, maxOperands)
	for i := 0; i < typeBytes; i++ {
		b, err := mem.GetByte(ptr)
		if err != nil {
			return nil, ptr, err
		}
		ptr++
		for shift := 6; shift >= 0; shift -= 2 {
			types = append(types, OperandType((b>>shift)&0b11))
		}
	}

	operands := make([]Operand, 0, maxOperands)
	for _, t := range types {
		if t == Omitted {
			break
		}
		val, newPtr, err := readOperand(mem, ptr, t)
		if err != nil {
			return nil, ptr, err
		}
		ptr = newPtr
		operands = append(operands, Operand{Type: t, Value: val})
	}
	return operands, ptr, nil
}

// readBranch decodes the branch byte(s) at ptr per the standard encoding:
// bit 7 of the first byte is the polarity, bit 6 selects a 6-bit unsigned
// offset in a single byte or a 14-bit signed offset across two bytes. An
// offset of 0 or 1 means "return false"/"return true" instead of jumping.
func readBranch(mem *zmem.Memory, ptr uint32) (Branch, uint32, error) {
	first, err := mem.GetByte(ptr)
	if err != nil {
		return Branch{}, ptr, err
	}
	ptr++

	onTrue := first&0b1000_0000 != 0
	var offset int16
	if first&0b0100_0000 != 0 {
		offset = int16(first & 0b0011_1111)
	} else {
		second, err := mem.GetByte(ptr)
		if err != nil {
			return Branch{}, ptr, err
		}
		ptr++
		raw := uint16(first&0b0011_1111)<<8 | uint16(second)
		if raw&0x2000 != 0 {
			raw |= 0xc000 // sign-extend the 14-bit value
		}
		offset = int16(raw)
	}

	switch offset {
	case 0:
		return Branch{OnTrue: onTrue, Kind: BranchReturnFalse}, ptr, nil
	case 1:
		return Branch{OnTrue: onTrue, Kind: BranchReturnTrue}, ptr, nil
	default:
		return Branch{OnTrue: onTrue, Kind: BranchJump, Offset: offset}, ptr, nil
	}
}

// skipString advances past a packed zchar string without decoding it,
// stopping at the first word with its terminator bit set.
func skipString(mem *zmem.Memory, ptr uint32) (uint32, error) {
	for {
		w, err := mem.GetWord(ptr)
		if err != nil {
			return ptr, zerr.New(zerr.InvalidString, "unterminated literal string at 0x%04x", ptr)
		}
		ptr += 2
		if w&0x8000 != 0 {
			return ptr, nil
		}
	}
}
