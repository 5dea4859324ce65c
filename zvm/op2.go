package zvm

import (
	"github.com/tmarlowe/zgo/zdecode"
	"github.com/tmarlowe/zgo/zerr"
	"github.com/tmarlowe/zgo/zobject"
)

func (z *ZMachine) stepOP2(inst zdecode.Instruction, args []uint16) (bool, error) {
	switch inst.Opcode {
	case 1: // je: true if any later operand equals the first
		result := false
		for _, b := range args[1:] {
			if args[0] == b {
				result = true
				break
			}
		}
		pc, term, err := z.branch(inst, result)
		if err != nil {
			return false, err
		}
		return z.finishReturn(pc, term)

	case 2: // jl
		pc, term, err := z.branch(inst, int16(args[0]) < int16(args[1]))
		if err != nil {
			return false, err
		}
		return z.finishReturn(pc, term)

	case 3: // jg
		pc, term, err := z.branch(inst, int16(args[0]) > int16(args[1]))
		if err != nil {
			return false, err
		}
		return z.finishReturn(pc, term)

	case 4: // dec_chk
		v, err := z.frames.Peek(z.mem, uint8(args[0]))
		if err != nil {
			return false, err
		}
		newVal := int16(v) - 1
		if err := z.frames.Poke(z.mem, uint8(args[0]), uint16(newVal)); err != nil {
			return false, err
		}
		pc, term, err := z.branch(inst, newVal < int16(args[1]))
		if err != nil {
			return false, err
		}
		return z.finishReturn(pc, term)

	case 5: // inc_chk
		v, err := z.frames.Peek(z.mem, uint8(args[0]))
		if err != nil {
			return false, err
		}
		newVal := int16(v) + 1
		if err := z.frames.Poke(z.mem, uint8(args[0]), uint16(newVal)); err != nil {
			return false, err
		}
		pc, term, err := z.branch(inst, newVal > int16(args[1]))
		if err != nil {
			return false, err
		}
		return z.finishReturn(pc, term)

	case 6: // jin
		var parent uint16
		if args[0] != 0 {
			obj, err := zobject.Get(z.mem, args[0])
			if err != nil {
				return false, err
			}
			parent = obj.Parent
		}
		pc, term, err := z.branch(inst, parent == args[1])
		if err != nil {
			return false, err
		}
		return z.finishReturn(pc, term)

	case 7: // test
		pc, term, err := z.branch(inst, args[0]&args[1] == args[1])
		if err != nil {
			return false, err
		}
		return z.finishReturn(pc, term)

	case 8: // or
		if err := z.store(inst, args[0]|args[1]); err != nil {
			return false, err
		}
		z.pc = inst.NextPC
		return true, nil

	case 9: // and
		if err := z.store(inst, args[0]&args[1]); err != nil {
			return false, err
		}
		z.pc = inst.NextPC
		return true, nil

	case 10: // test_attr
		obj, err := zobject.Get(z.mem, args[0])
		if err != nil {
			return false, err
		}
		pc, term, err := z.branch(inst, obj.TestAttribute(args[1]))
		if err != nil {
			return false, err
		}
		return z.finishReturn(pc, term)

	case 11: // set_attr
		obj, err := zobject.Get(z.mem, args[0])
		if err != nil {
			return false, err
		}
		if err := obj.SetAttribute(z.mem, args[1]); err != nil {
			return false, err
		}
		z.pc = inst.NextPC
		return true, nil

	case 12: // clear_attr
		obj, err := zobject.Get(z.mem, args[0])
		if err != nil {
			return false, err
		}
		if err := obj.ClearAttribute(z.mem, args[1]); err != nil {
			return false, err
		}
		z.pc = inst.NextPC
		return true, nil

	case 13: // store: an indirect variable reference, like inc/dec/load/pull
		if err := z.frames.Poke(z.mem, uint8(args[0]), args[1]); err != nil {
			return false, err
		}
		z.pc = inst.NextPC
		return true, nil

	case 14: // insert_obj
		if err := zobject.Move(z.mem, z.Version(), args[0], args[1]); err != nil {
			return false, err
		}
		z.pc = inst.NextPC
		return true, nil

	case 15: // loadw
		v, err := z.mem.GetWord(uint32(args[0]) + 2*uint32(args[1]))
		if err != nil {
			return false, err
		}
		if err := z.store(inst, v); err != nil {
			return false, err
		}
		z.pc = inst.NextPC
		return true, nil

	case 16: // loadb
		v, err := z.mem.GetByte(uint32(args[0]) + uint32(args[1]))
		if err != nil {
			return false, err
		}
		if err := z.store(inst, uint16(v)); err != nil {
			return false, err
		}
		z.pc = inst.NextPC
		return true, nil

	case 17: // get_prop
		obj, err := zobject.Get(z.mem, args[0])
		if err != nil {
			return false, err
		}
		prop, err := zobject.GetProperty(z.mem, z.Version(), z.mem.Header().ObjectTableBase, obj, uint8(args[1]))
		if err != nil {
			return false, err
		}
		if err := z.store(inst, prop.Value); err != nil {
			return false, err
		}
		z.pc = inst.NextPC
		return true, nil

	case 18: // get_prop_addr
		obj, err := zobject.Get(z.mem, args[0])
		if err != nil {
			return false, err
		}
		addr, err := zobject.GetPropertyAddr(z.mem, z.Version(), obj, uint8(args[1]))
		if err != nil {
			return false, err
		}
		if err := z.store(inst, uint16(addr)); err != nil {
			return false, err
		}
		z.pc = inst.NextPC
		return true, nil

	case 19: // get_next_prop
		obj, err := zobject.Get(z.mem, args[0])
		if err != nil {
			return false, err
		}
		next, err := zobject.GetNextProperty(z.mem, z.Version(), obj, uint8(args[1]))
		if err != nil {
			return false, err
		}
		if err := z.store(inst, uint16(next)); err != nil {
			return false, err
		}
		z.pc = inst.NextPC
		return true, nil

	case 20: // add
		if err := z.store(inst, uint16(int16(args[0])+int16(args[1]))); err != nil {
			return false, err
		}
		z.pc = inst.NextPC
		return true, nil

	case 21: // sub
		if err := z.store(inst, uint16(int16(args[0])-int16(args[1]))); err != nil {
			return false, err
		}
		z.pc = inst.NextPC
		return true, nil

	case 22: // mul
		if err := z.store(inst, uint16(int16(args[0])*int16(args[1]))); err != nil {
			return false, err
		}
		z.pc = inst.NextPC
		return true, nil

	case 23: // div
		if int16(args[1]) == 0 {
			return false, zerr.New(zerr.DivisionByZero, "div by zero at 0x%x", inst.Addr)
		}
		if err := z.store(inst, uint16(int16(args[0])/int16(args[1]))); err != nil {
			return false, err
		}
		z.pc = inst.NextPC
		return true, nil

	case 24: // mod
		if int16(args[1]) == 0 {
			return false, zerr.New(zerr.DivisionByZero, "mod by zero at 0x%x", inst.Addr)
		}
		if err := z.store(inst, uint16(int16(args[0])%int16(args[1]))); err != nil {
			return false, err
		}
		z.pc = inst.NextPC
		return true, nil

	case 25: // call_2s
		pc, err := z.doCall(args, inst.StoreVar, inst.NextPC)
		if err != nil {
			return false, err
		}
		z.pc = pc
		return true, nil

	case 26: // call_2n
		pc, err := z.doCall(args, nil, inst.NextPC)
		if err != nil {
			return false, err
		}
		z.pc = pc
		return true, nil

	case 27: // set_colour
		fg := z.screenModel.ZColor(args[0], true)
		bg := z.screenModel.ZColor(args[1], false)
		if z.screenModel.LowerWindowActive {
			z.screenModel.LowerWindowForeground = fg
			z.screenModel.LowerWindowBackground = bg
		} else {
			z.screenModel.UpperWindowForeground = fg
			z.screenModel.UpperWindowBackground = bg
		}
		z.outputChannel <- z.screenModel
		z.pc = inst.NextPC
		return true, nil

	case 28: // throw
		pc, term, err := z.doThrow(args[0], args[1])
		if err != nil {
			return false, err
		}
		return z.finishReturn(pc, term)
	}
	return false, zerr.New(zerr.InvalidOpcode, "unimplemented 2OP opcode %d", inst.Opcode)
}
