package zdecode

// opcodeInfo records, for one opcode, whether it stores a result, branches,
// or carries an inline literal string. This is the generalization of the
// large switch on opcode.opcodeNumber in the teacher's StepMachine: read
// once for shape (does this opcode store/branch/embed text) rather than for
// the effect it has once dispatched.
//
// minOperands/maxOperands bound how many operands the opcode's arity
// actually allows, checked against the decoded operand count in Decode
// (spec.md §4.2's InvalidOperandCount failure mode, invariant 5 in §3).
// Every entry sets both bounds explicitly; most opcodes have a single
// fixed arity, but je and the VAR/EXT "optional trailing operand" opcodes
// (sread/aread, call_vs/call_vn and friends, output_stream, ...) accept a
// range the standard itself defines.
type opcodeInfo struct {
	stores      bool
	branches    bool
	text        bool
	minOperands int
	maxOperands int
}

// arity is a small constructor for the common "exactly n operands" case.
func arity(n int) (int, int) { return n, n }

// classify resolves an opcode's metadata for decoding purposes. Some
// entries are version-dependent (pre-v5 "not" stores, v5+ "call_1n" does
// not; pre-v4 0OP "save"/"restore" branch, v4 they store). Opcode numbers
// with no defined meaning report ok=false so Decode can report
// InvalidOpcode rather than silently guessing at trailing bytes.
func classify(form Form, count OperandCount, opcode uint8, version uint8) (opcodeInfo, bool) {
	if form == ExtendedForm {
		return classifyExt(opcode)
	}
	switch count {
	case OP0:
		return classifyOP0(opcode, version)
	case OP1:
		return classifyOP1(opcode, version)
	case OP2:
		return classifyOP2(opcode, version)
	case VAR:
		return classifyVAR(opcode, version)
	}
	return opcodeInfo{}, false
}

func classifyOP0(opcode uint8, version uint8) (opcodeInfo, bool) {
	min, max := arity(0)
	switch opcode {
	case 0, 1: // rtrue, rfalse
		return opcodeInfo{minOperands: min, maxOperands: max}, true
	case 2, 3: // print, print_ret
		return opcodeInfo{text: true, minOperands: min, maxOperands: max}, true
	case 4: // nop
		return opcodeInfo{minOperands: min, maxOperands: max}, true
	case 5: // save
		if version >= 4 {
			return opcodeInfo{stores: true, minOperands: min, maxOperands: max}, true
		}
		return opcodeInfo{branches: true, minOperands: min, maxOperands: max}, true
	case 6: // restore
		if version >= 4 {
			return opcodeInfo{stores: true, minOperands: min, maxOperands: max}, true
		}
		return opcodeInfo{branches: true, minOperands: min, maxOperands: max}, true
	case 7: // restart
		return opcodeInfo{minOperands: min, maxOperands: max}, true
	case 8: // ret_popped
		return opcodeInfo{minOperands: min, maxOperands: max}, true
	case 9: // pop (v1-4) / catch (v5+)
		if version >= 5 {
			return opcodeInfo{stores: true, minOperands: min, maxOperands: max}, true
		}
		return opcodeInfo{minOperands: min, maxOperands: max}, true
	case 10: // quit
		return opcodeInfo{minOperands: min, maxOperands: max}, true
	case 11: // new_line
		return opcodeInfo{minOperands: min, maxOperands: max}, true
	case 12: // show_status, v3 only
		return opcodeInfo{minOperands: min, maxOperands: max}, true
	case 13: // verify
		return opcodeInfo{branches: true, minOperands: min, maxOperands: max}, true
	case 15: // piracy, v5+
		return opcodeInfo{branches: true, minOperands: min, maxOperands: max}, true
	}
	return opcodeInfo{}, false
}

func classifyOP1(opcode uint8, version uint8) (opcodeInfo, bool) {
	min, max := arity(1)
	switch opcode {
	case 0: // jz
		return opcodeInfo{branches: true, minOperands: min, maxOperands: max}, true
	case 1, 2: // get_sibling, get_child
		return opcodeInfo{stores: true, branches: true, minOperands: min, maxOperands: max}, true
	case 3, 4: // get_parent, get_prop_len
		return opcodeInfo{stores: true, minOperands: min, maxOperands: max}, true
	case 5, 6: // inc, dec
		return opcodeInfo{minOperands: min, maxOperands: max}, true
	case 7: // print_addr
		return opcodeInfo{minOperands: min, maxOperands: max}, true
	case 8: // call_1s
		return opcodeInfo{stores: true, minOperands: min, maxOperands: max}, true
	case 9: // remove_obj
		return opcodeInfo{minOperands: min, maxOperands: max}, true
	case 10: // print_obj
		return opcodeInfo{minOperands: min, maxOperands: max}, true
	case 11: // ret
		return opcodeInfo{minOperands: min, maxOperands: max}, true
	case 12: // jump: unconditional relative jump, encoded as a plain operand, not a branch byte
		return opcodeInfo{minOperands: min, maxOperands: max}, true
	case 13: // print_paddr
		return opcodeInfo{minOperands: min, maxOperands: max}, true
	case 14: // load
		return opcodeInfo{stores: true, minOperands: min, maxOperands: max}, true
	case 15: // not (v1-4, stores) / call_1n (v5+, does not)
		if version >= 5 {
			return opcodeInfo{minOperands: min, maxOperands: max}, true
		}
		return opcodeInfo{stores: true, minOperands: min, maxOperands: max}, true
	}
	return opcodeInfo{}, false
}

func classifyOP2(opcode uint8, version uint8) (opcodeInfo, bool) {
	min, max := arity(2)
	switch opcode {
	case 1: // je: the one 2OP opcode the standard lets range up to 4 operands
		return opcodeInfo{branches: true, minOperands: 2, maxOperands: 4}, true
	case 2, 3: // jl, jg
		return opcodeInfo{branches: true, minOperands: min, maxOperands: max}, true
	case 4, 5: // dec_chk, inc_chk
		return opcodeInfo{branches: true, minOperands: min, maxOperands: max}, true
	case 6, 7: // jin, test
		return opcodeInfo{branches: true, minOperands: min, maxOperands: max}, true
	case 8, 9: // or, and
		return opcodeInfo{stores: true, minOperands: min, maxOperands: max}, true
	case 10: // test_attr
		return opcodeInfo{branches: true, minOperands: min, maxOperands: max}, true
	case 11, 12: // set_attr, clear_attr
		return opcodeInfo{minOperands: min, maxOperands: max}, true
	case 13: // store: the variable number is the first operand, not a store byte
		return opcodeInfo{minOperands: min, maxOperands: max}, true
	case 14: // insert_obj
		return opcodeInfo{minOperands: min, maxOperands: max}, true
	case 15, 16: // loadw, loadb
		return opcodeInfo{stores: true, minOperands: min, maxOperands: max}, true
	case 17, 18, 19: // get_prop, get_prop_addr, get_next_prop
		return opcodeInfo{stores: true, minOperands: min, maxOperands: max}, true
	case 20, 21, 22, 23, 24: // add, sub, mul, div, mod
		return opcodeInfo{stores: true, minOperands: min, maxOperands: max}, true
	case 25: // call_2s, v4+
		return opcodeInfo{stores: true, minOperands: min, maxOperands: max}, true
	case 26: // call_2n, v5+
		return opcodeInfo{minOperands: min, maxOperands: max}, true
	case 27: // set_colour
		return opcodeInfo{minOperands: min, maxOperands: max}, true
	case 28: // throw
		return opcodeInfo{minOperands: min, maxOperands: max}, true
	}
	return opcodeInfo{}, false
}

func classifyVAR(opcode uint8, version uint8) (opcodeInfo, bool) {
	switch opcode {
	case 0: // call / call_vs: routine address plus 0-3 args
		return opcodeInfo{stores: true, minOperands: 1, maxOperands: 4}, true
	case 1: // storew
		return opcodeInfo{minOperands: 3, maxOperands: 3}, true
	case 2: // storeb
		return opcodeInfo{minOperands: 3, maxOperands: 3}, true
	case 3: // put_prop
		return opcodeInfo{minOperands: 3, maxOperands: 3}, true
	case 4: // sread (v1-4, no store) / aread (v5+, stores terminator char)
		if version >= 5 {
			return opcodeInfo{stores: true, minOperands: 1, maxOperands: 4}, true
		}
		return opcodeInfo{minOperands: 1, maxOperands: 4}, true
	case 5: // print_char
		return opcodeInfo{minOperands: 1, maxOperands: 1}, true
	case 6: // print_num
		return opcodeInfo{minOperands: 1, maxOperands: 1}, true
	case 7: // random
		return opcodeInfo{stores: true, minOperands: 1, maxOperands: 1}, true
	case 8: // push
		return opcodeInfo{minOperands: 1, maxOperands: 1}, true
	case 9: // pull
		return opcodeInfo{minOperands: 1, maxOperands: 1}, true
	case 10: // split_window
		return opcodeInfo{minOperands: 1, maxOperands: 1}, true
	case 11: // set_window
		return opcodeInfo{minOperands: 1, maxOperands: 1}, true
	case 12: // call_vs2: routine address plus up to 7 args
		return opcodeInfo{stores: true, minOperands: 1, maxOperands: 8}, true
	case 13: // erase_window
		return opcodeInfo{minOperands: 1, maxOperands: 1}, true
	case 14: // erase_line
		return opcodeInfo{minOperands: 1, maxOperands: 1}, true
	case 15: // set_cursor: line, column, optional window (v6)
		return opcodeInfo{minOperands: 2, maxOperands: 3}, true
	case 16: // get_cursor
		return opcodeInfo{minOperands: 1, maxOperands: 1}, true
	case 17: // set_text_style
		return opcodeInfo{minOperands: 1, maxOperands: 1}, true
	case 18: // buffer_mode
		return opcodeInfo{minOperands: 1, maxOperands: 1}, true
	case 19: // output_stream: stream number, optional table address (stream 3)
		return opcodeInfo{minOperands: 1, maxOperands: 2}, true
	case 20: // input_stream
		return opcodeInfo{minOperands: 1, maxOperands: 1}, true
	case 21: // sound_effect: number, optional effect/volume, routine
		return opcodeInfo{minOperands: 1, maxOperands: 4}, true
	case 22: // read_char: always 1, optional time/routine pair
		return opcodeInfo{minOperands: 1, maxOperands: 3}, true
	case 23: // scan_table: x, table, len, optional form byte
		return opcodeInfo{stores: true, branches: true, minOperands: 3, maxOperands: 4}, true
	case 24: // not (VAR form)
		return opcodeInfo{stores: true, minOperands: 1, maxOperands: 1}, true
	case 25: // call_vn: routine address plus 0-3 args
		return opcodeInfo{minOperands: 1, maxOperands: 4}, true
	case 26: // call_vn2: routine address plus up to 7 args
		return opcodeInfo{minOperands: 1, maxOperands: 8}, true
	case 27: // tokenise: text, parse, optional dictionary, optional flag
		return opcodeInfo{minOperands: 1, maxOperands: 4}, true
	case 28: // encode_text
		return opcodeInfo{minOperands: 4, maxOperands: 4}, true
	case 29: // copy_table
		return opcodeInfo{minOperands: 3, maxOperands: 3}, true
	case 30: // print_table: table, width, optional height, optional skip
		return opcodeInfo{minOperands: 2, maxOperands: 4}, true
	case 31: // check_arg_count
		return opcodeInfo{branches: true, minOperands: 1, maxOperands: 1}, true
	}
	return opcodeInfo{}, false
}

// classifyExt covers the extended-form opcodes in common use (save/restore
// and friends under v5+, where they moved out of 0OP into their own form).
// Opcode numbers beyond these (the V6 screen-model extensions) are not
// covered: nothing in this interpreter's dispatcher implements the V6
// picture/menu model, so decoding them would only manufacture metadata
// nothing downstream consumes.
func classifyExt(opcode uint8) (opcodeInfo, bool) {
	switch opcode {
	case 0: // save: optional table/bytes/name (auxiliary save to table)
		return opcodeInfo{stores: true, minOperands: 0, maxOperands: 3}, true
	case 1: // restore: optional table/bytes/name
		return opcodeInfo{stores: true, minOperands: 0, maxOperands: 3}, true
	case 2: // log_shift
		return opcodeInfo{stores: true, minOperands: 2, maxOperands: 2}, true
	case 3: // art_shift
		return opcodeInfo{stores: true, minOperands: 2, maxOperands: 2}, true
	case 4: // set_font
		return opcodeInfo{stores: true, minOperands: 1, maxOperands: 1}, true
	case 9: // save_undo
		return opcodeInfo{stores: true, minOperands: 0, maxOperands: 0}, true
	case 10: // restore_undo
		return opcodeInfo{stores: true, minOperands: 0, maxOperands: 0}, true
	case 11: // print_unicode
		return opcodeInfo{minOperands: 1, maxOperands: 1}, true
	case 12: // check_unicode
		return opcodeInfo{stores: true, minOperands: 1, maxOperands: 1}, true
	case 13: // set_true_colour
		return opcodeInfo{minOperands: 2, maxOperands: 3}, true
	}
	return opcodeInfo{}, false
}
