// Package zvm is the opcode dispatcher: it decodes one instruction at a
// time via zdecode, resolves operands and effects against zmem/zframe/
// zobject/zstring/ztable/dictionary/zsave, and reports every user-visible
// effect or persistence request as a typed message over an output channel,
// leaving the actual screen, keyboard, and file system to an external
// collaborator (spec.md's narrow facade boundary).
//
// Grounded on zmachine.ZMachine and its StepMachine/call/retValue/
// handleBranch/appendText/read/Tokenise methods in the teacher repository.
// Unlike the teacher, which panics on an unrecognized opcode or a corrupt
// save and reads branch/store bytes lazily during dispatch, this package
// only ever returns a *zerr.Error (zdecode having already resolved the
// store variable and branch descriptor up front), and save/restore are
// fully implemented rather than left as a "not implemented" panic.
package zvm

import (
	"math/rand"
	"time"

	"github.com/tmarlowe/zgo/dictionary"
	"github.com/tmarlowe/zgo/zdecode"
	"github.com/tmarlowe/zgo/zerr"
	"github.com/tmarlowe/zgo/zframe"
	"github.com/tmarlowe/zgo/zmem"
	"github.com/tmarlowe/zgo/zobject"
	"github.com/tmarlowe/zgo/zsave"
	"github.com/tmarlowe/zgo/zstring"
)

// memoryStream is one entry in the stack output_stream 3 pushes: the base
// address the 2-byte length prefix lives at, and the write cursor just past
// it. Grounded on zmachine.MemoryStreamData.
type memoryStream struct {
	baseAddress uint32
	ptr         uint32
}

// streamState tracks which of the standard's four output streams are
// currently active. Grounded on zmachine.Streams.
type streamState struct {
	screen        bool
	transcript    bool
	memory        bool
	memoryStreams []memoryStream
	commandScript bool
}

// ZMachine is one running story's complete execution state.
type ZMachine struct {
	mem       *zmem.Memory
	frames    *zframe.Stack
	argCounts []int // parallel to the frame stack, for check_arg_count

	alphabets zstring.Alphabets
	dict      *dictionary.Dictionary

	screenModel ScreenModel
	streams     streamState
	rng         *rand.Rand
	undo        *zsave.Undo

	pc          uint32
	terminalMsg any

	// pendingResumePC/pendingResumeStoreVar are stashed by the save opcode
	// just before it blocks on saveRestoreChannel, so a later call to
	// ExportSaveState (made by the collaborator while this goroutine is
	// blocked) captures the continuation the save opcode itself committed
	// to, not whatever happens to be current when ExportSaveState runs.
	pendingResumePC       uint32
	pendingResumeStoreVar *uint8

	loadErr error

	inputChannel       <-chan InputResponse
	saveRestoreChannel <-chan SaveRestoreResponse
	outputChannel      chan<- any
}

// Version reports the story file's Z-machine version.
func (z *ZMachine) Version() uint8 { return z.mem.Header().Version }

// LoadRom parses storyBytes and returns a ZMachine ready for Run. A failure
// to parse the header, alphabets, or dictionary is not returned as an error
// (LoadRom's signature, matching its callers, has none to give); instead
// Run reports it as a RuntimeError on the first call, without attempting to
// execute anything.
func LoadRom(storyBytes []byte, inputChannel <-chan InputResponse, saveRestoreChannel <-chan SaveRestoreResponse, outputChannel chan<- any) *ZMachine {
	z := &ZMachine{
		inputChannel:       inputChannel,
		saveRestoreChannel: saveRestoreChannel,
		outputChannel:      outputChannel,
		terminalMsg:        Quit(true),
	}

	mem, err := zmem.New(storyBytes)
	if err != nil {
		z.loadErr = err
		return z
	}
	z.mem = mem

	alphabets, err := zstring.LoadAlphabets(mem)
	if err != nil {
		z.loadErr = err
		return z
	}
	z.alphabets = alphabets

	dict, err := dictionary.Parse(mem, alphabets)
	if err != nil {
		z.loadErr = err
		return z
	}
	z.dict = dict

	z.screenModel = newScreenModel(Color{R: 0, G: 0, B: 0}, Color{R: 255, G: 255, B: 255})
	z.streams = streamState{screen: true}
	z.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	z.undo = zsave.NewUndo(0)

	h := mem.Header()
	z.frames = zframe.NewStack(0, 0)
	if h.Version == 6 {
		addr := mem.PackedAddress(h.InitialPC, false)
		localCount, err := mem.GetByte(addr)
		if err != nil {
			z.loadErr = err
			return z
		}
		locals := make([]uint16, localCount)
		z.frames.PushMain(locals)
		z.pc = addr + 1
	} else {
		z.frames.PushMain(nil)
		z.pc = uint32(h.InitialPC)
	}
	z.argCounts = []int{0}

	return z
}

// Run drives the fetch-decode-execute loop until a quit/restart opcode
// fires, the main routine returns, or an unrecoverable error occurs,
// sending the appropriate terminal message exactly once before returning.
func (z *ZMachine) Run() {
	if z.loadErr != nil {
		z.outputChannel <- RuntimeError(z.loadErr.Error())
		z.outputChannel <- Quit(true)
		return
	}

	z.outputChannel <- z.screenModel

	for {
		cont, err := z.step()
		if err != nil {
			z.outputChannel <- RuntimeError(err.Error())
			z.outputChannel <- Quit(true)
			return
		}
		if !cont {
			z.outputChannel <- z.terminalMsg
			return
		}
	}
}

// step decodes and executes exactly one instruction, returning false when
// execution should stop (quit, restart, or the main routine returning).
func (z *ZMachine) step() (bool, error) {
	inst, err := zdecode.Decode(z.mem, z.pc)
	if err != nil {
		return false, err
	}

	args, err := z.operands(inst)
	if err != nil {
		return false, err
	}

	switch inst.Count {
	case zdecode.OP0:
		return z.stepOP0(inst, args)
	case zdecode.OP1:
		return z.stepOP1(inst, args)
	case zdecode.OP2:
		return z.stepOP2(inst, args)
	case zdecode.VAR:
		if inst.Form == zdecode.ExtendedForm {
			return z.stepEXT(inst, args)
		}
		return z.stepVAR(inst, args)
	}
	return false, zerr.New(zerr.InvalidOpcode, "instruction at 0x%x has no operand-count classification", inst.Addr)
}

func (z *ZMachine) operandValue(op zdecode.Operand) (uint16, error) {
	if op.Type == zdecode.Variable {
		return z.frames.Read(z.mem, uint8(op.Value))
	}
	return op.Value, nil
}

func (z *ZMachine) operands(inst zdecode.Instruction) ([]uint16, error) {
	vals := make([]uint16, len(inst.Operands))
	for i, op := range inst.Operands {
		v, err := z.operandValue(op)
		if err != nil {
			return nil, err
		}
		vals[i] = v
	}
	return vals, nil
}

func (z *ZMachine) store(inst zdecode.Instruction, value uint16) error {
	if inst.StoreVar == nil {
		return nil
	}
	return z.frames.Write(z.mem, *inst.StoreVar, value)
}

// finishReturn is the common tail of every opcode that may pop the frame
// stack down to nothing: pc advances normally when terminated is false,
// otherwise step itself reports termination up to Run.
func (z *ZMachine) finishReturn(pc uint32, terminated bool) (bool, error) {
	if terminated {
		return false, nil
	}
	z.pc = pc
	return true, nil
}

// doReturn pops the active frame, writing value to its caller's store
// variable if it expected one (zframe.Stack.Return already tracks which
// variable that is, baked in at Call time -- unlike the teacher, which
// rereads the store-destination byte lazily from the resumed caller's pc).
func (z *ZMachine) doReturn(value uint16) (uint32, bool, error) {
	nextPC, terminated, err := z.frames.Return(z.mem, value)
	if err != nil {
		return 0, false, err
	}
	z.popArgCount()
	return nextPC, terminated, nil
}

// doThrow unwinds the frame stack down to the depth catch recorded, then
// performs one real return of value from that frame, matching the
// standard's catch/throw pairing.
func (z *ZMachine) doThrow(value uint16, handle uint16) (uint32, bool, error) {
	for uint16(z.frames.Depth()) > handle {
		_, terminated, err := z.frames.Return(z.mem, 0)
		if err != nil {
			return 0, false, err
		}
		z.popArgCount()
		if terminated {
			return 0, true, nil
		}
	}
	return z.doReturn(value)
}

// branch resolves inst's branch descriptor (if any) against condition,
// returning the pc to resume at and whether that resumption terminated the
// program (the branch fired and resolved to BranchReturnFalse/True on the
// main routine's own frame).
func (z *ZMachine) branch(inst zdecode.Instruction, condition bool) (uint32, bool, error) {
	if inst.Branch == nil {
		return inst.NextPC, false, nil
	}
	b := inst.Branch
	if condition != b.OnTrue {
		return inst.NextPC, false, nil
	}
	switch b.Kind {
	case zdecode.BranchReturnFalse:
		return z.doReturn(0)
	case zdecode.BranchReturnTrue:
		return z.doReturn(1)
	default:
		return uint32(int32(inst.NextPC) + int32(b.Offset) - 2), false, nil
	}
}

// resumeTargetForBranch computes, without executing anything, where a
// branch-convention save opcode would resume if restore later succeeds: the
// address a branch taken with successCondition would jump to. It is only
// ever called at save time, against the still-intact frame stack, which is
// why (unlike branch above) it must not call doReturn -- that would pop a
// frame for real before the save has even completed. The BranchReturnFalse/
// True case (a save whose own branch offset is 0 or 1, vanishingly rare in
// practice) falls through to "resume after the instruction" rather than
// performing the return against a stack that may look entirely different
// after a future restore.
func resumeTargetForBranch(inst zdecode.Instruction, successCondition bool) uint32 {
	if inst.Branch == nil {
		return inst.NextPC
	}
	b := inst.Branch
	if successCondition != b.OnTrue {
		return inst.NextPC
	}
	if b.Kind == zdecode.BranchJump {
		return uint32(int32(inst.NextPC) + int32(b.Offset) - 2)
	}
	return inst.NextPC
}

func (z *ZMachine) pushArgCount(n int) { z.argCounts = append(z.argCounts, n) }

func (z *ZMachine) popArgCount() {
	if len(z.argCounts) > 0 {
		z.argCounts = z.argCounts[:len(z.argCounts)-1]
	}
}

func (z *ZMachine) topArgCount() int {
	if len(z.argCounts) == 0 {
		return 0
	}
	return z.argCounts[len(z.argCounts)-1]
}

// doCall resolves a call-family instruction's first operand as a packed
// routine address and the rest as arguments, delegating everything else
// (default locals, overlaying args, the address-0 no-op case) to
// zframe.Stack.Call.
func (z *ZMachine) doCall(args []uint16, store *uint8, returnPC uint32) (uint32, error) {
	packedAddr := args[0]
	var callArgs []uint16
	if len(args) > 1 {
		callArgs = args[1:]
	}
	pc, pushed, err := z.frames.Call(z.mem, packedAddr, callArgs, store, returnPC)
	if err != nil {
		return 0, err
	}
	if pushed {
		z.pushArgCount(len(callArgs))
	}
	return pc, nil
}

func (z *ZMachine) emitStatusBar() error {
	objID, err := z.frames.Read(z.mem, 16)
	if err != nil {
		return err
	}
	name := ""
	if objID != 0 {
		if obj, oerr := zobject.Get(z.mem, objID); oerr == nil {
			name, _ = obj.Name(z.mem, z.alphabets)
		}
	}
	score, err := z.frames.Read(z.mem, 17)
	if err != nil {
		return err
	}
	moves, err := z.frames.Read(z.mem, 18)
	if err != nil {
		return err
	}
	z.outputChannel <- StatusBar{PlaceName: name, Score: int(int16(score)), Moves: int(int16(moves))}
	return nil
}

// verify sums every byte from 0x40 to the end of the image and compares it
// against the header checksum, per the standard's verify opcode.
func (z *ZMachine) verify() (bool, error) {
	h := z.mem.Header()
	length := z.mem.Length()
	var actual uint16
	for addr := uint32(0x40); addr < length; addr++ {
		b, err := z.mem.GetByte(addr)
		if err != nil {
			return false, err
		}
		actual += uint16(b)
	}
	return actual == h.FileChecksum, nil
}

// ExportSaveState captures the current runtime state as a self-contained
// blob, setting ResumeStoreVar from whichever save opcode most recently
// blocked on the save-restore channel. It is meant to be called by the
// collaborator synchronously while Run is blocked on that channel, so "the
// current state" is exactly the state the save opcode captured.
func (z *ZMachine) ExportSaveState() []byte {
	state, err := zsave.Capture(z.mem, z.frames, z.pendingResumePC)
	if err != nil {
		return nil
	}
	state.ResumeStoreVar = z.pendingResumeStoreVar
	return zsave.Marshal(state)
}

// ImportSaveState replaces this ZMachine's frame stack, pc, and dynamic
// memory with the state encoded in data, reporting whether it succeeded.
func (z *ZMachine) ImportSaveState(data []byte) bool {
	return z.applyImportedState(data) == nil
}

func (z *ZMachine) applyImportedState(data []byte) error {
	state, err := zsave.Unmarshal(data, 0, 0)
	if err != nil {
		return err
	}
	frames, pc, err := zsave.Apply(z.mem, state)
	if err != nil {
		return err
	}
	z.frames = frames
	z.pc = pc
	z.argCounts = make([]int, z.frames.Depth())
	if state.ResumeStoreVar != nil {
		if err := z.frames.Write(z.mem, *state.ResumeStoreVar, 2); err != nil {
			return err
		}
	}
	return nil
}
