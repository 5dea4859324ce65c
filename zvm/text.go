// Text input and output: the stream-aware print sink every other opcode
// funnels through, and the SREAD/AREAD/tokenise trio that turns a line of
// collaborator-supplied input into dictionary lookups.
//
// Grounded on zmachine.ZMachine's appendText/read/Tokenise in the teacher
// repository.
package zvm

import (
	"strings"

	"github.com/tmarlowe/zgo/dictionary"
	"github.com/tmarlowe/zgo/zdecode"
)

// appendText routes s to whichever output streams are active. A memory
// redirect (output_stream 3) steals output entirely while on top of the
// stack; the screen stream forwards the text as-is and, when the upper
// window is active, advances the cursor the way the teacher's screen model
// does. The transcript and command-script streams have no collaborator-side
// implementation; output_stream already warned once when they were enabled,
// so writes here are a silent no-op rather than a warning per call.
func (z *ZMachine) appendText(s string) error {
	if z.streams.memory {
		top := &z.streams.memoryStreams[len(z.streams.memoryStreams)-1]
		for i := 0; i < len(s); i++ {
			if err := z.mem.WriteByte(top.ptr, s[i]); err != nil {
				return err
			}
			top.ptr++
		}
		return nil
	}

	if z.streams.screen {
		z.outputChannel <- s
		if !z.screenModel.LowerWindowActive {
			lines := strings.Split(s, "\n")
			z.screenModel.UpperWindowCursorY += len(lines)
			z.screenModel.UpperWindowCursorX += len(lines[len(lines)-1])
			z.outputChannel <- z.screenModel
		}
	}

	return nil
}

// allFunctionKeyTerminators is the v5+ terminating-character table's 255
// sentinel: every function key terminates input, in addition to newline.
var allFunctionKeyTerminators = []uint8{
	'\n', 129, 130, 131, 132, 133, 134, 135, 136, 137, 138, 139, 140, 141,
	142, 143, 144, 145, 146, 147, 148, 149, 150, 151, 152, 153, 154, 252,
	253, 254,
}

// doRead implements sread/aread (VAR opcode 4): it blocks for a line of
// input, writes it into the text buffer per the version's own encoding
// rules, tokenises it against the story's dictionary when a parse buffer
// address was given, and for v5+ stores the terminating character.
func (z *ZMachine) doRead(inst zdecode.Instruction, args []uint16) error {
	if z.Version() <= 3 {
		if err := z.emitStatusBar(); err != nil {
			return err
		}
	}

	validTerminators := []uint8{'\n'}
	if z.Version() >= 5 {
		tableAddr, err := z.mem.GetWord(0x2e)
		if err != nil {
			return err
		}
		if tableAddr != 0 {
		scan:
			for ptr := uint32(tableAddr); ; ptr++ {
				b, err := z.mem.GetByte(ptr)
				if err != nil {
					return err
				}
				switch {
				case b == 0:
					break scan
				case b == 255:
					validTerminators = allFunctionKeyTerminators
					break scan
				case (b >= 129 && b <= 154) || (b >= 252 && b <= 254):
					validTerminators = append(validTerminators, b)
				}
			}
		}
	}

	textBufferAddr := uint32(args[0])
	bufferSize, err := z.mem.GetByte(textBufferAddr)
	if err != nil {
		return err
	}

	z.outputChannel <- StateChangeRequest(WaitForInput)
	z.outputChannel <- InputRequest{MaxLength: int(bufferSize), ValidTerminators: validTerminators}
	resp := <-z.inputChannel
	z.outputChannel <- StateChangeRequest(Running)

	textPtr := textBufferAddr + 1
	if z.Version() >= 5 {
		existing, err := z.mem.GetByte(textPtr)
		if err != nil {
			return err
		}
		textPtr += 1 + uint32(existing)
	}

	rawText := []byte(strings.ToLower(resp.Text))
	ix := 0
	for ix < int(bufferSize) && ix < len(rawText) {
		chr := rawText[ix]
		if (chr >= 32 && chr <= 126) || (chr >= 155 && chr <= 251) {
			if err := z.mem.WriteByte(textPtr+uint32(ix), chr); err != nil {
				return err
			}
		} else {
			if err := z.mem.WriteByte(textPtr+uint32(ix), 32); err != nil {
				return err
			}
		}
		ix++
	}
	if err := z.mem.WriteByte(textPtr+uint32(ix), 0); err != nil {
		return err
	}
	if z.Version() >= 5 {
		if err := z.mem.WriteByte(textBufferAddr+1, uint8(ix)); err != nil {
			return err
		}
	}

	if len(args) > 1 && args[1] != 0 {
		if err := z.tokenise(textBufferAddr, uint32(args[1]), false); err != nil {
			return err
		}
	}

	if z.Version() >= 5 {
		term := uint16('\n')
		if resp.TerminatingKey != 0 {
			term = uint16(resp.TerminatingKey)
		}
		return z.store(inst, term)
	}
	return nil
}

// token is one word tokenise split textAddr's buffer into, before dictionary
// lookup: its raw text and its byte offset from the start of the typed text
// (not from textAddr itself -- the parse buffer records offsets relative to
// textAddr, which tokenise adds back in below).
type token struct {
	text   string
	offset uint32
}

// tokenise implements the tokenise opcode and sread/aread's own parsing
// step: split on spaces and the dictionary's input codes (each input code is
// its own one-character token), encode and look up each word, then write
// the parse buffer's word count followed by, per word, its dictionary
// address (0 if unknown unless leaveBlanks asks to leave it untouched),
// length, and start offset. Words beyond the parse buffer's declared
// capacity are dropped rather than overflowing it.
func (z *ZMachine) tokenise(textAddr, parseAddr uint32, leaveBlanks bool) error {
	start := textAddr + 1
	if z.Version() >= 5 {
		n, err := z.mem.GetByte(start)
		if err != nil {
			return err
		}
		start += 1 + uint32(n)
	}

	raw, err := z.mem.Slice(start, z.mem.Length())
	if err != nil {
		return err
	}

	isInputCode := func(b byte) bool {
		for _, c := range z.dict.Header.InputCodes {
			if c == b {
				return true
			}
		}
		return false
	}

	var tokens []token
	wordStart := uint32(0)
	flush := func(end uint32) {
		if end > wordStart {
			tokens = append(tokens, token{text: string(raw[wordStart:end]), offset: wordStart})
		}
	}

	var i uint32
	for ; i < uint32(len(raw)); i++ {
		b := raw[i]
		if b == 0 {
			break
		}
		if b == ' ' {
			flush(i)
			wordStart = i + 1
			continue
		}
		if isInputCode(b) {
			flush(i)
			tokens = append(tokens, token{text: string(b), offset: i})
			wordStart = i + 1
		}
	}
	flush(i)

	maxWords, err := z.mem.GetByte(parseAddr)
	if err != nil {
		return err
	}
	if len(tokens) > int(maxWords) {
		tokens = tokens[:maxWords]
	}

	if err := z.mem.WriteByte(parseAddr+1, uint8(len(tokens))); err != nil {
		return err
	}

	entryPtr := parseAddr + 2
	for _, t := range tokens {
		addr := z.dict.Find(dictionary.EncodeWord(t.text, z.Version(), z.alphabets))
		if !(leaveBlanks && addr == 0) {
			if err := z.mem.WriteWord(entryPtr, uint16(addr)); err != nil {
				return err
			}
		}
		if err := z.mem.WriteByte(entryPtr+2, uint8(len(t.text))); err != nil {
			return err
		}
		if err := z.mem.WriteByte(entryPtr+3, uint8(start+t.offset-textAddr)); err != nil {
			return err
		}
		entryPtr += 4
	}
	return nil
}
