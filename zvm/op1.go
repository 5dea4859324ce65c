package zvm

import (
	"github.com/tmarlowe/zgo/zdecode"
	"github.com/tmarlowe/zgo/zerr"
	"github.com/tmarlowe/zgo/zobject"
	"github.com/tmarlowe/zgo/zstring"
)

func (z *ZMachine) stepOP1(inst zdecode.Instruction, args []uint16) (bool, error) {
	switch inst.Opcode {
	case 0: // jz
		pc, term, err := z.branch(inst, args[0] == 0)
		if err != nil {
			return false, err
		}
		return z.finishReturn(pc, term)

	case 1: // get_sibling
		obj, err := zobject.Get(z.mem, args[0])
		if err != nil {
			return false, err
		}
		if err := z.store(inst, obj.Sibling); err != nil {
			return false, err
		}
		pc, term, err := z.branch(inst, obj.Sibling != 0)
		if err != nil {
			return false, err
		}
		return z.finishReturn(pc, term)

	case 2: // get_child
		obj, err := zobject.Get(z.mem, args[0])
		if err != nil {
			return false, err
		}
		if err := z.store(inst, obj.Child); err != nil {
			return false, err
		}
		pc, term, err := z.branch(inst, obj.Child != 0)
		if err != nil {
			return false, err
		}
		return z.finishReturn(pc, term)

	case 3: // get_parent
		obj, err := zobject.Get(z.mem, args[0])
		if err != nil {
			return false, err
		}
		if err := z.store(inst, obj.Parent); err != nil {
			return false, err
		}
		z.pc = inst.NextPC
		return true, nil

	case 4: // get_prop_len
		length, err := zobject.PropertyLength(z.mem, uint32(args[0]), z.Version())
		if err != nil {
			return false, err
		}
		if err := z.store(inst, uint16(length)); err != nil {
			return false, err
		}
		z.pc = inst.NextPC
		return true, nil

	case 5: // inc
		v, err := z.frames.Peek(z.mem, uint8(args[0]))
		if err != nil {
			return false, err
		}
		if err := z.frames.Poke(z.mem, uint8(args[0]), v+1); err != nil {
			return false, err
		}
		z.pc = inst.NextPC
		return true, nil

	case 6: // dec
		v, err := z.frames.Peek(z.mem, uint8(args[0]))
		if err != nil {
			return false, err
		}
		if err := z.frames.Poke(z.mem, uint8(args[0]), v-1); err != nil {
			return false, err
		}
		z.pc = inst.NextPC
		return true, nil

	case 7: // print_addr
		text, _, err := zstring.DecodeString(z.mem, uint32(args[0]), z.alphabets)
		if err != nil {
			return false, err
		}
		if err := z.appendText(text); err != nil {
			return false, err
		}
		z.pc = inst.NextPC
		return true, nil

	case 8: // call_1s
		pc, err := z.doCall(args, inst.StoreVar, inst.NextPC)
		if err != nil {
			return false, err
		}
		z.pc = pc
		return true, nil

	case 9: // remove_obj
		if err := zobject.Remove(z.mem, z.Version(), args[0]); err != nil {
			return false, err
		}
		z.pc = inst.NextPC
		return true, nil

	case 10: // print_obj
		obj, err := zobject.Get(z.mem, args[0])
		if err != nil {
			return false, err
		}
		name, err := obj.Name(z.mem, z.alphabets)
		if err != nil {
			return false, err
		}
		if err := z.appendText(name); err != nil {
			return false, err
		}
		z.pc = inst.NextPC
		return true, nil

	case 11: // ret
		pc, term, err := z.doReturn(args[0])
		if err != nil {
			return false, err
		}
		return z.finishReturn(pc, term)

	case 12: // jump: an unconditional relative jump, not a branch-byte target
		z.pc = uint32(int32(inst.NextPC) + int32(int16(args[0])) - 2)
		return true, nil

	case 13: // print_paddr
		addr := z.mem.PackedAddress(args[0], true)
		text, _, err := zstring.DecodeString(z.mem, addr, z.alphabets)
		if err != nil {
			return false, err
		}
		if err := z.appendText(text); err != nil {
			return false, err
		}
		z.pc = inst.NextPC
		return true, nil

	case 14: // load
		v, err := z.frames.Peek(z.mem, uint8(args[0]))
		if err != nil {
			return false, err
		}
		if err := z.store(inst, v); err != nil {
			return false, err
		}
		z.pc = inst.NextPC
		return true, nil

	case 15: // not (v1-4) / call_1n (v5+)
		if z.Version() < 5 {
			if err := z.store(inst, ^args[0]); err != nil {
				return false, err
			}
			z.pc = inst.NextPC
			return true, nil
		}
		pc, err := z.doCall(args, nil, inst.NextPC)
		if err != nil {
			return false, err
		}
		z.pc = pc
		return true, nil
	}
	return false, zerr.New(zerr.InvalidOpcode, "unimplemented 1OP opcode %d", inst.Opcode)
}
