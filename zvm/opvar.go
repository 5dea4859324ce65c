package zvm

import (
	"math/rand"
	"strconv"
	"time"

	"github.com/tmarlowe/zgo/dictionary"
	"github.com/tmarlowe/zgo/zdecode"
	"github.com/tmarlowe/zgo/zerr"
	"github.com/tmarlowe/zgo/zobject"
	"github.com/tmarlowe/zgo/zstring"
	"github.com/tmarlowe/zgo/ztable"
)

func (z *ZMachine) stepVAR(inst zdecode.Instruction, args []uint16) (bool, error) {
	switch inst.Opcode {
	case 0: // call / call_vs
		pc, err := z.doCall(args, inst.StoreVar, inst.NextPC)
		if err != nil {
			return false, err
		}
		z.pc = pc
		return true, nil

	case 1: // storew
		if err := z.mem.WriteWord(uint32(args[0])+2*uint32(args[1]), args[2]); err != nil {
			return false, err
		}
		z.pc = inst.NextPC
		return true, nil

	case 2: // storeb
		if err := z.mem.WriteByte(uint32(args[0])+uint32(args[1]), uint8(args[2])); err != nil {
			return false, err
		}
		z.pc = inst.NextPC
		return true, nil

	case 3: // put_prop
		obj, err := zobject.Get(z.mem, args[0])
		if err != nil {
			return false, err
		}
		if err := zobject.PutProperty(z.mem, z.Version(), obj, uint8(args[1]), args[2]); err != nil {
			return false, err
		}
		z.pc = inst.NextPC
		return true, nil

	case 4: // sread / aread
		if err := z.doRead(inst, args); err != nil {
			return false, err
		}
		z.pc = inst.NextPC
		return true, nil

	case 5: // print_char
		if err := z.appendText(zsciiCharToString(uint8(args[0]))); err != nil {
			return false, err
		}
		z.pc = inst.NextPC
		return true, nil

	case 6: // print_num
		if err := z.appendText(strconv.Itoa(int(int16(args[0])))); err != nil {
			return false, err
		}
		z.pc = inst.NextPC
		return true, nil

	case 7: // random
		n := int16(args[0])
		var result uint16
		switch {
		case n < 0:
			z.rng = rand.New(rand.NewSource(int64(n)))
		case n == 0:
			z.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
		default:
			result = uint16(z.rng.Int31n(int32(n)))
		}
		if err := z.store(inst, result); err != nil {
			return false, err
		}
		z.pc = inst.NextPC
		return true, nil

	case 8: // push
		if err := z.frames.PushEval(args[0]); err != nil {
			return false, err
		}
		z.pc = inst.NextPC
		return true, nil

	case 9: // pull
		v, err := z.frames.PopEval()
		if err != nil {
			return false, err
		}
		if err := z.frames.Poke(z.mem, uint8(args[0]), v); err != nil {
			return false, err
		}
		z.pc = inst.NextPC
		return true, nil

	case 10: // split_window
		z.screenModel.UpperWindowHeight = int(int16(args[0]))
		z.outputChannel <- z.screenModel
		z.pc = inst.NextPC
		return true, nil

	case 11: // set_window
		z.screenModel.LowerWindowActive = args[0] == 0
		z.outputChannel <- z.screenModel
		z.pc = inst.NextPC
		return true, nil

	case 12: // call_vs2
		pc, err := z.doCall(args, inst.StoreVar, inst.NextPC)
		if err != nil {
			return false, err
		}
		z.pc = pc
		return true, nil

	case 13: // erase_window
		window := int16(args[0])
		z.outputChannel <- EraseWindowRequest(window)
		if window == -1 {
			z.screenModel.LowerWindowActive = true
			z.screenModel.UpperWindowHeight = 0
			z.outputChannel <- z.screenModel
		}
		z.pc = inst.NextPC
		return true, nil

	case 14: // erase_line
		if args[0] == 1 {
			z.outputChannel <- EraseLineRequest{}
		}
		z.pc = inst.NextPC
		return true, nil

	case 15: // set_cursor
		if !z.screenModel.LowerWindowActive {
			z.screenModel.UpperWindowCursorY = int(args[0])
			z.screenModel.UpperWindowCursorX = int(args[1])
			z.outputChannel <- z.screenModel
		}
		z.pc = inst.NextPC
		return true, nil

	case 16: // get_cursor
		array := uint32(args[0])
		if err := z.mem.WriteWord(array, uint16(z.screenModel.UpperWindowCursorY)); err != nil {
			return false, err
		}
		if err := z.mem.WriteWord(array+2, uint16(z.screenModel.UpperWindowCursorX)); err != nil {
			return false, err
		}
		z.pc = inst.NextPC
		return true, nil

	case 17: // set_text_style
		style := TextStyle(args[0])
		if z.screenModel.LowerWindowActive {
			z.screenModel.LowerWindowTextStyle = style
		} else {
			z.screenModel.UpperWindowTextStyle = style
		}
		z.outputChannel <- z.screenModel
		z.pc = inst.NextPC
		return true, nil

	case 18: // buffer_mode: line wrapping is always on in this interpreter's text layer
		z.pc = inst.NextPC
		return true, nil

	case 19: // output_stream
		if err := z.outputStream(int16(args[0]), args); err != nil {
			return false, err
		}
		z.pc = inst.NextPC
		return true, nil

	case 20: // input_stream: no command-file input source is implemented
		z.outputChannel <- Warning("input_stream is not implemented")
		z.pc = inst.NextPC
		return true, nil

	case 21: // sound_effect
		req := SoundEffectRequest{SoundNumber: int(args[0])}
		if len(args) > 1 {
			req.Effect = int(args[1])
		}
		if len(args) > 3 {
			req.Routine = args[3]
		}
		z.outputChannel <- req
		z.pc = inst.NextPC
		return true, nil

	case 22: // read_char
		z.outputChannel <- StateChangeRequest(WaitForCharacter)
		resp := <-z.inputChannel
		z.outputChannel <- StateChangeRequest(Running)
		var v uint16
		if resp.TerminatingKey != 0 {
			v = uint16(resp.TerminatingKey)
		} else if len(resp.Text) > 0 {
			v = uint16(resp.Text[0])
		}
		if err := z.store(inst, v); err != nil {
			return false, err
		}
		z.pc = inst.NextPC
		return true, nil

	case 23: // scan_table
		form := uint16(0x82)
		if len(args) > 3 {
			form = args[3]
		}
		result, err := ztable.ScanTable(z.mem, args[0], uint32(args[1]), args[2], form)
		if err != nil {
			return false, err
		}
		if err := z.store(inst, uint16(result)); err != nil {
			return false, err
		}
		pc, term, err := z.branch(inst, result != 0)
		if err != nil {
			return false, err
		}
		return z.finishReturn(pc, term)

	case 24: // not
		if err := z.store(inst, ^args[0]); err != nil {
			return false, err
		}
		z.pc = inst.NextPC
		return true, nil

	case 25: // call_vn
		pc, err := z.doCall(args, nil, inst.NextPC)
		if err != nil {
			return false, err
		}
		z.pc = pc
		return true, nil

	case 26: // call_vn2
		pc, err := z.doCall(args, nil, inst.NextPC)
		if err != nil {
			return false, err
		}
		z.pc = pc
		return true, nil

	case 27: // tokenise
		if len(args) > 2 && args[2] != 0 {
			z.outputChannel <- Warning("tokenise with a custom dictionary address is not implemented; using the story's own dictionary")
		}
		leaveBlanks := len(args) > 3 && args[3] != 0
		if err := z.tokenise(uint32(args[0]), uint32(args[1]), leaveBlanks); err != nil {
			return false, err
		}
		z.pc = inst.NextPC
		return true, nil

	case 28: // encode_text
		textAddr := uint32(args[0])
		length := uint32(args[1])
		from := uint32(args[2])
		dest := uint32(args[3])
		raw, err := z.mem.Slice(textAddr+from, textAddr+from+length)
		if err != nil {
			return false, err
		}
		encoded := dictionary.EncodeWord(string(raw), z.Version(), z.alphabets)
		for i, b := range encoded {
			if err := z.mem.WriteByte(dest+uint32(i), b); err != nil {
				return false, err
			}
		}
		z.pc = inst.NextPC
		return true, nil

	case 29: // copy_table
		if err := ztable.CopyTable(z.mem, uint32(args[0]), uint32(args[1]), int16(args[2])); err != nil {
			return false, err
		}
		z.pc = inst.NextPC
		return true, nil

	case 30: // print_table
		width := args[1]
		height := uint16(1)
		skip := uint16(0)
		if len(args) > 2 {
			height = args[2]
		}
		if len(args) > 3 {
			skip = args[3]
		}
		text, err := ztable.PrintTable(z.mem, uint32(args[0]), width, height, skip)
		if err != nil {
			return false, err
		}
		if err := z.appendText(text); err != nil {
			return false, err
		}
		z.pc = inst.NextPC
		return true, nil

	case 31: // check_arg_count
		pc, term, err := z.branch(inst, int(args[0]) <= z.topArgCount())
		if err != nil {
			return false, err
		}
		return z.finishReturn(pc, term)
	}
	return false, zerr.New(zerr.InvalidOpcode, "unimplemented VAR opcode %d", inst.Opcode)
}

// outputStream implements the output_stream opcode's seven forms: enabling
// or disabling the screen (1/-1), transcript (2/-2), or command-script
// (4/-4) streams, and opening (3) or closing (-3) a redirect into a memory
// buffer. Grounded on zmachine.ZMachine's output_stream handling.
func (z *ZMachine) outputStream(n int16, args []uint16) error {
	switch n {
	case 1:
		z.streams.screen = true
	case -1:
		z.streams.screen = false
	case 2:
		if !z.streams.transcript {
			z.outputChannel <- Warning("the transcript output stream is not implemented; output_stream 2 is a no-op")
		}
		z.streams.transcript = true
	case -2:
		z.streams.transcript = false
	case 3:
		if len(args) < 2 {
			return zerr.New(zerr.InvalidOperandCount, "output_stream 3 requires a table address operand")
		}
		base := uint32(args[1])
		z.streams.memoryStreams = append(z.streams.memoryStreams, memoryStream{baseAddress: base, ptr: base + 2})
		z.streams.memory = true
	case -3:
		if len(z.streams.memoryStreams) > 0 {
			top := z.streams.memoryStreams[len(z.streams.memoryStreams)-1]
			z.streams.memoryStreams = z.streams.memoryStreams[:len(z.streams.memoryStreams)-1]
			size := top.ptr - top.baseAddress - 2
			if err := z.mem.WriteWord(top.baseAddress, uint16(size)); err != nil {
				return err
			}
		}
		z.streams.memory = len(z.streams.memoryStreams) > 0
	case 4:
		if !z.streams.commandScript {
			z.outputChannel <- Warning("the command-script output stream is not implemented; output_stream 4 is a no-op")
		}
		z.streams.commandScript = true
	case -4:
		z.streams.commandScript = false
	}
	return nil
}

// zsciiCharToString renders a single ZSCII character code for print_char,
// which (unlike the general text decoder) receives one already-resolved
// code rather than a packed zchar stream.
func zsciiCharToString(code uint8) string {
	switch {
	case code == 13:
		return "\n"
	case code >= 32 && code <= 126:
		return string(rune(code))
	default:
		if r, ok := zstring.DefaultUnicodeTranslationTable[code]; ok {
			return string(r)
		}
		return "?"
	}
}
