package zvm

import (
	"github.com/tmarlowe/zgo/zdecode"
	"github.com/tmarlowe/zgo/zerr"
	"github.com/tmarlowe/zgo/zstring"
)

func (z *ZMachine) stepOP0(inst zdecode.Instruction, args []uint16) (bool, error) {
	switch inst.Opcode {
	case 0: // rtrue
		pc, term, err := z.doReturn(1)
		if err != nil {
			return false, err
		}
		return z.finishReturn(pc, term)

	case 1: // rfalse
		pc, term, err := z.doReturn(0)
		if err != nil {
			return false, err
		}
		return z.finishReturn(pc, term)

	case 2: // print
		text, _, err := zstring.DecodeString(z.mem, inst.TextAddr, z.alphabets)
		if err != nil {
			return false, err
		}
		if err := z.appendText(text); err != nil {
			return false, err
		}
		z.pc = inst.NextPC
		return true, nil

	case 3: // print_ret
		text, _, err := zstring.DecodeString(z.mem, inst.TextAddr, z.alphabets)
		if err != nil {
			return false, err
		}
		if err := z.appendText(text); err != nil {
			return false, err
		}
		if err := z.appendText("\n"); err != nil {
			return false, err
		}
		pc, term, err := z.doReturn(1)
		if err != nil {
			return false, err
		}
		return z.finishReturn(pc, term)

	case 4: // nop
		z.pc = inst.NextPC
		return true, nil

	case 5: // save
		return z.stepSave(inst)

	case 6: // restore
		return z.stepRestore(inst)

	case 7: // restart
		z.terminalMsg = Restart(true)
		return false, nil

	case 8: // ret_popped
		v, err := z.frames.PopEval()
		if err != nil {
			return false, err
		}
		pc, term, err := z.doReturn(v)
		if err != nil {
			return false, err
		}
		return z.finishReturn(pc, term)

	case 9: // pop (v1-4) / catch (v5+)
		if z.Version() >= 5 {
			if err := z.store(inst, uint16(z.frames.Depth())); err != nil {
				return false, err
			}
			z.pc = inst.NextPC
			return true, nil
		}
		if _, err := z.frames.PopEval(); err != nil {
			return false, err
		}
		z.pc = inst.NextPC
		return true, nil

	case 10: // quit
		return false, nil

	case 11: // new_line
		if err := z.appendText("\n"); err != nil {
			return false, err
		}
		z.pc = inst.NextPC
		return true, nil

	case 12: // show_status
		if err := z.emitStatusBar(); err != nil {
			return false, err
		}
		z.pc = inst.NextPC
		return true, nil

	case 13: // verify
		ok, err := z.verify()
		if err != nil {
			return false, err
		}
		pc, term, err := z.branch(inst, ok)
		if err != nil {
			return false, err
		}
		return z.finishReturn(pc, term)

	case 15: // piracy: this interpreter never claims to fail the check
		pc, term, err := z.branch(inst, true)
		if err != nil {
			return false, err
		}
		return z.finishReturn(pc, term)
	}
	return false, zerr.New(zerr.InvalidOpcode, "unimplemented 0OP opcode %d", inst.Opcode)
}
