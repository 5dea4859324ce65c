package zdecode

import (
	"errors"
	"testing"

	"github.com/tmarlowe/zgo/zerr"
	"github.com/tmarlowe/zgo/zmem"
)

func testImage(t *testing.T, version uint8, size int) *zmem.Memory {
	t.Helper()
	b := make([]byte, size)
	b[0x00] = version
	b[0x0e] = uint8(size >> 8)
	b[0x0f] = uint8(size)
	mem, err := zmem.New(b)
	if err != nil {
		t.Fatalf("zmem.New: %v", err)
	}
	return mem
}

func poke(mem *zmem.Memory, addr uint32, bytes ...byte) {
	for i, b := range bytes {
		_ = mem.WriteByte(addr+uint32(i), b)
	}
}

func TestDecodeShortFormNoOperands(t *testing.T) {
	mem := testImage(t, 3, 0x100)
	poke(mem, 0x10, 0xb0) // short form, operand type omitted, opcode 0 (rtrue)

	inst, err := Decode(mem, 0x10)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if inst.Form != ShortForm || inst.Count != OP0 || inst.Opcode != 0 {
		t.Fatalf("got form=%v count=%v opcode=%d", inst.Form, inst.Count, inst.Opcode)
	}
	if len(inst.Operands) != 0 || inst.StoreVar != nil || inst.Branch != nil {
		t.Fatalf("rtrue should have no operands/store/branch, got %+v", inst)
	}
	if inst.NextPC != 0x11 {
		t.Fatalf("NextPC: got 0x%x, want 0x11", inst.NextPC)
	}
}

func TestDecodeLongFormBranches(t *testing.T) {
	mem := testImage(t, 3, 0x100)
	// je (opcode 1), two small constants, then a single-byte branch:
	// onTrue=1, single-byte form=1, offset=4 -> 0xC4.
	poke(mem, 0x10, 0x01, 0x05, 0x03, 0xc4)

	inst, err := Decode(mem, 0x10)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if inst.Form != LongForm || inst.Count != OP2 || inst.Opcode != 1 {
		t.Fatalf("got form=%v count=%v opcode=%d", inst.Form, inst.Count, inst.Opcode)
	}
	if len(inst.Operands) != 2 || inst.Operands[0].Value != 5 || inst.Operands[1].Value != 3 {
		t.Fatalf("operands: got %+v", inst.Operands)
	}
	if inst.Branch == nil {
		t.Fatal("je should resolve a branch")
	}
	if !inst.Branch.OnTrue || inst.Branch.Kind != BranchJump || inst.Branch.Offset != 4 {
		t.Fatalf("branch: got %+v", inst.Branch)
	}
	if inst.NextPC != 0x14 {
		t.Fatalf("NextPC: got 0x%x, want 0x14", inst.NextPC)
	}
}

func TestDecodeVariableFormStores(t *testing.T) {
	mem := testImage(t, 3, 0x100)
	// add (2OP opcode 20) in variable form: two small constants, store byte.
	poke(mem, 0x10, 0xd4, 0x5f, 0x02, 0x03, 0x05)

	inst, err := Decode(mem, 0x10)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if inst.Form != VariableForm || inst.Count != OP2 || inst.Opcode != 20 {
		t.Fatalf("got form=%v count=%v opcode=%d", inst.Form, inst.Count, inst.Opcode)
	}
	if len(inst.Operands) != 2 {
		t.Fatalf("operands: got %+v", inst.Operands)
	}
	if inst.StoreVar == nil || *inst.StoreVar != 5 {
		t.Fatalf("store var: got %+v", inst.StoreVar)
	}
	if inst.NextPC != 0x15 {
		t.Fatalf("NextPC: got 0x%x, want 0x15", inst.NextPC)
	}
}

func TestDecodeCallVS2UsesEightOperandForm(t *testing.T) {
	mem := testImage(t, 3, 0x100)
	// call_vs2 (VAR opcode 12): two type bytes, two small-constant operands
	// then omitted, a store byte.
	poke(mem, 0x10, 0xec, 0x5f, 0xff, 0x02, 0x03, 0x07)

	inst, err := Decode(mem, 0x10)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if inst.Form != VariableForm || inst.Count != VAR || inst.Opcode != 12 {
		t.Fatalf("got form=%v count=%v opcode=%d", inst.Form, inst.Count, inst.Opcode)
	}
	if len(inst.Operands) != 2 {
		t.Fatalf("operands: got %+v", inst.Operands)
	}
	if inst.StoreVar == nil || *inst.StoreVar != 7 {
		t.Fatalf("store var: got %+v", inst.StoreVar)
	}
	if inst.NextPC != 0x16 {
		t.Fatalf("NextPC: got 0x%x, want 0x16", inst.NextPC)
	}
}

func TestDecodePrintConsumesLiteralTextWithoutDecodingIt(t *testing.T) {
	mem := testImage(t, 3, 0x100)
	// print (0OP opcode 2), short form, omitted operand type; one packed
	// word of all-zero zchars with the terminator bit set.
	poke(mem, 0x10, 0xb2, 0x80, 0x00)

	inst, err := Decode(mem, 0x10)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !inst.HasText {
		t.Fatal("print should report HasText")
	}
	if inst.TextAddr != 0x11 {
		t.Fatalf("TextAddr: got 0x%x, want 0x11", inst.TextAddr)
	}
	if inst.NextPC != 0x13 {
		t.Fatalf("NextPC: got 0x%x, want 0x13", inst.NextPC)
	}
}

func TestDecodeExtendedFormStores(t *testing.T) {
	mem := testImage(t, 5, 0x100)
	// save_undo (EXT opcode 9): no operands, store byte.
	poke(mem, 0x10, 0xbe, 0x09, 0xff, 0x08)

	inst, err := Decode(mem, 0x10)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if inst.Form != ExtendedForm || inst.Opcode != 9 {
		t.Fatalf("got form=%v opcode=%d", inst.Form, inst.Opcode)
	}
	if inst.StoreVar == nil || *inst.StoreVar != 8 {
		t.Fatalf("store var: got %+v", inst.StoreVar)
	}
	if inst.NextPC != 0x14 {
		t.Fatalf("NextPC: got 0x%x, want 0x14", inst.NextPC)
	}
}

func TestDecodeUndefinedOpcodeIsError(t *testing.T) {
	mem := testImage(t, 3, 0x100)
	// long form, opcode number 0: not a defined 2OP opcode.
	poke(mem, 0x10, 0x00, 0x01, 0x02)

	_, err := Decode(mem, 0x10)
	if !errors.Is(err, zerr.Sentinel(zerr.InvalidOpcode)) {
		t.Fatalf("expected InvalidOpcode, got %v", err)
	}
}

func TestDecodeInvalidOperandCountForUndercountedJl(t *testing.T) {
	mem := testImage(t, 3, 0x100)
	// jl (2OP opcode 2) encoded in variable form with only one operand
	// supplied (the second type slot omitted): the opcode needs exactly 2.
	poke(mem, 0x10, 0xc2, 0x7f, 0x05)

	_, err := Decode(mem, 0x10)
	if !errors.Is(err, zerr.Sentinel(zerr.InvalidOperandCount)) {
		t.Fatalf("expected InvalidOperandCount, got %v", err)
	}
}

func TestDecodeJeAllowsUpToFourOperands(t *testing.T) {
	mem := testImage(t, 3, 0x100)
	// je (2OP opcode 1) encoded in variable form with four small-constant
	// operands, then a single-byte branch.
	poke(mem, 0x10, 0xc1, 0x55, 0x01, 0x02, 0x03, 0x04, 0xc0)

	inst, err := Decode(mem, 0x10)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(inst.Operands) != 4 {
		t.Fatalf("je operands: got %d, want 4", len(inst.Operands))
	}
}

func TestDecodeBranchReturnFalseShorthand(t *testing.T) {
	mem := testImage(t, 3, 0x100)
	// jz (1OP opcode 0), short form with a small-constant operand, then a
	// single-byte branch whose offset encodes "return false" (0).
	poke(mem, 0x10, 0x90, 0x00, 0x40)

	inst, err := Decode(mem, 0x10)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if inst.Branch == nil || inst.Branch.Kind != BranchReturnFalse {
		t.Fatalf("branch: got %+v", inst.Branch)
	}
}
