package zvm

import (
	"github.com/tmarlowe/zgo/zdecode"
	"github.com/tmarlowe/zgo/zerr"
)

func (z *ZMachine) stepEXT(inst zdecode.Instruction, args []uint16) (bool, error) {
	switch inst.Opcode {
	case 0: // save (extended form, v5+, always store convention)
		return z.stepSave(inst)

	case 1: // restore (extended form, v5+, always store convention)
		return z.stepRestore(inst)

	case 2: // log_shift
		places := int16(args[1])
		var result uint16
		if places >= 0 {
			result = args[0] << uint(places)
		} else {
			result = args[0] >> uint(-places)
		}
		if err := z.store(inst, result); err != nil {
			return false, err
		}
		z.pc = inst.NextPC
		return true, nil

	case 3: // art_shift
		num := int16(args[0])
		places := int16(args[1])
		var result int16
		if places >= 0 {
			result = num << uint(places)
		} else {
			result = num >> uint(-places)
		}
		if err := z.store(inst, uint16(result)); err != nil {
			return false, err
		}
		z.pc = inst.NextPC
		return true, nil

	case 4: // set_font: only the normal font is available
		prev := uint16(z.screenModel.CurrentFont)
		if args[0] == uint16(FontNormal) {
			z.screenModel.CurrentFont = FontNormal
			if err := z.store(inst, prev); err != nil {
				return false, err
			}
		} else {
			if err := z.store(inst, 0); err != nil {
				return false, err
			}
		}
		z.pc = inst.NextPC
		return true, nil

	case 9: // save_undo
		state, err := z.exportStateFor(inst.NextPC, inst.StoreVar)
		if err != nil {
			return false, err
		}
		if err := z.undo.Save("", state); err != nil {
			return false, err
		}
		if err := z.store(inst, 1); err != nil {
			return false, err
		}
		z.pc = inst.NextPC
		return true, nil

	case 10: // restore_undo
		state, err := z.undo.Load("")
		if err != nil {
			if err := z.store(inst, 0); err != nil {
				return false, err
			}
			z.pc = inst.NextPC
			return true, nil
		}
		if err := z.resumeFromState(state); err != nil {
			z.outputChannel <- Warning("restore_undo failed: " + err.Error())
			if err := z.store(inst, 0); err != nil {
				return false, err
			}
			z.pc = inst.NextPC
			return true, nil
		}
		return true, nil

	case 11: // print_unicode
		if err := z.appendText(string(rune(args[0]))); err != nil {
			return false, err
		}
		z.pc = inst.NextPC
		return true, nil

	case 12: // check_unicode: printable assumed always true, input capability unknown
		result := uint16(0)
		if args[0] != 0 {
			result = 0b11
		}
		if err := z.store(inst, result); err != nil {
			return false, err
		}
		z.pc = inst.NextPC
		return true, nil

	case 13: // set_true_colour: not supported by this non-V6 screen model
		z.outputChannel <- Warning("set_true_colour is not implemented")
		z.pc = inst.NextPC
		return true, nil
	}
	return false, zerr.New(zerr.InvalidOpcode, "unimplemented EXT opcode %d", inst.Opcode)
}
