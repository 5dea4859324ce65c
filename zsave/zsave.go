// Package zsave is the interpreter's persistence facade: a narrow interface
// for saving and restoring a story's complete runtime state, plus two
// concrete implementations (an in-memory undo ring and a disk-backed file
// cache).
//
// Grounded on zmachine.SaveState/captureState/applyState and the
// serialize/deserializeSaveState/CallStackFrame.serialize functions in
// savestates.go, generalized from one hard-coded blob format wired directly
// into ZMachine into a Facade interface the dispatcher depends on instead
// of a storage mechanism, per spec.md §4.6 and §9's "narrow facade" note.
package zsave

import (
	"encoding/binary"

	"github.com/tmarlowe/zgo/zerr"
	"github.com/tmarlowe/zgo/zframe"
	"github.com/tmarlowe/zgo/zmem"
)

const (
	magic         = "GOZM"
	formatVersion = uint8(1)
)

// RuntimeState is everything needed to resume execution exactly where a
// save was taken: the story's release number and checksum (to detect a
// save file from a different story or edition before touching anything
// else), the current program counter, the dynamic-memory region, and the
// frame stack.
type RuntimeState struct {
	ReleaseNumber uint16
	Checksum      uint16
	PC            uint32
	DynamicMemory []byte
	Frames        *zframe.Stack

	// ResumeStoreVar is set by a caller capturing state from inside the
	// store-result convention of save/restore (v4+ and the extended-form
	// opcodes): the variable the *original* save call's result should be
	// written to once a later restore succeeds. nil means the capturing
	// opcode used the pre-v4 branch convention instead, where PC alone
	// (already resolved to the branch-taken target) is enough.
	ResumeStoreVar *uint8
}

// Facade is the interpreter's only dependency on a storage mechanism.
// Dispatchers never assume a backing store beyond this interface, matching
// spec.md §4.6's "persistence facade narrowness" design note.
type Facade interface {
	Save(key string, state RuntimeState) error
	Load(key string) (RuntimeState, error)
}

// Capture snapshots mem's dynamic region and the current frame stack into a
// RuntimeState. The dynamic memory is copied (not aliased), so later writes
// through mem do not retroactively change a captured state, matching
// zmachine.captureState's own copy-out behavior.
func Capture(mem *zmem.Memory, frames *zframe.Stack, pc uint32) (RuntimeState, error) {
	dyn, err := mem.Slice(0, mem.DynamicEnd())
	if err != nil {
		return RuntimeState{}, err
	}
	cp := make([]byte, len(dyn))
	copy(cp, dyn)

	h := mem.Header()
	return RuntimeState{
		ReleaseNumber: h.ReleaseNumber,
		Checksum:      h.FileChecksum,
		PC:            pc,
		DynamicMemory: cp,
		Frames:        frames,
	}, nil
}

// Apply restores state's dynamic memory into mem and returns the frame
// stack and pc execution should resume from. It refuses to proceed if state
// was captured against a different story (release number or checksum
// mismatch) or a dynamic-memory region of a different size, matching
// zmachine.applyState's staticMemoryBase guard but reporting the mismatch
// as an error instead of a bare false.
func Apply(mem *zmem.Memory, state RuntimeState) (*zframe.Stack, uint32, error) {
	h := mem.Header()
	if state.ReleaseNumber != h.ReleaseNumber || state.Checksum != h.FileChecksum {
		return nil, 0, zerr.New(zerr.IncompatibleSave,
			"save is for release %d checksum 0x%04x, story is release %d checksum 0x%04x",
			state.ReleaseNumber, state.Checksum, h.ReleaseNumber, h.FileChecksum)
	}

	dyn, err := mem.Slice(0, mem.DynamicEnd())
	if err != nil {
		return nil, 0, err
	}
	if len(state.DynamicMemory) != len(dyn) {
		return nil, 0, zerr.New(zerr.IncompatibleSave,
			"save has %d bytes of dynamic memory, story expects %d", len(state.DynamicMemory), len(dyn))
	}
	copy(dyn, state.DynamicMemory)

	return state.Frames, state.PC, nil
}

// Marshal serializes state into the self-describing blob format
// savestates.go calls "GOZM": magic, a format version byte (new here, so
// Unmarshal can reject a blob from an incompatible future revision rather
// than misreading it), release number, checksum, pc, the dynamic memory
// region length-prefixed, and the frame stack (zframe.Stack.Marshal).
func Marshal(state RuntimeState) []byte {
	frameBytes := state.Frames.Marshal()
	size := 4 + 1 + 2 + 2 + 4 + 4 + len(state.DynamicMemory) + len(frameBytes) + 2
	out := make([]byte, size)
	offset := 0

	copy(out[offset:], magic)
	offset += 4

	out[offset] = formatVersion
	offset++

	binary.BigEndian.PutUint16(out[offset:], state.ReleaseNumber)
	offset += 2
	binary.BigEndian.PutUint16(out[offset:], state.Checksum)
	offset += 2
	binary.BigEndian.PutUint32(out[offset:], state.PC)
	offset += 4

	binary.BigEndian.PutUint32(out[offset:], uint32(len(state.DynamicMemory)))
	offset += 4
	copy(out[offset:], state.DynamicMemory)
	offset += len(state.DynamicMemory)

	copy(out[offset:], frameBytes)
	offset += len(frameBytes)

	if state.ResumeStoreVar != nil {
		out[offset] = 1
		out[offset+1] = *state.ResumeStoreVar
	}
	return out
}

// Unmarshal parses a blob Marshal produced. Any structural problem --
// wrong magic, an unsupported format version, or truncated data -- is
// reported as IncompatibleSave so a caller can detect it before touching
// the frame stack, per spec.md §6.
func Unmarshal(data []byte, maxFrames, maxEvalDepth int) (RuntimeState, error) {
	const headerLen = 4 + 1 + 2 + 2 + 4 + 4
	if len(data) < headerLen || string(data[0:4]) != magic {
		return RuntimeState{}, zerr.New(zerr.IncompatibleSave, "not a recognized save (missing %q magic)", magic)
	}
	offset := 4

	version := data[offset]
	offset++
	if version != formatVersion {
		return RuntimeState{}, zerr.New(zerr.IncompatibleSave, "save format version %d not supported (want %d)", version, formatVersion)
	}

	release := binary.BigEndian.Uint16(data[offset:])
	offset += 2
	checksum := binary.BigEndian.Uint16(data[offset:])
	offset += 2
	pc := binary.BigEndian.Uint32(data[offset:])
	offset += 4

	dynLen := binary.BigEndian.Uint32(data[offset:])
	offset += 4
	if len(data) < offset+int(dynLen) {
		return RuntimeState{}, zerr.New(zerr.IncompatibleSave, "truncated save: dynamic memory region")
	}
	dyn := make([]byte, dynLen)
	copy(dyn, data[offset:offset+int(dynLen)])
	offset += int(dynLen)

	frames, consumed, err := zframe.UnmarshalStack(data[offset:], maxFrames, maxEvalDepth)
	if err != nil {
		return RuntimeState{}, zerr.New(zerr.IncompatibleSave, "truncated save: frame stack: %v", err)
	}
	offset += consumed

	var resumeStoreVar *uint8
	if len(data) >= offset+2 && data[offset] == 1 {
		v := data[offset+1]
		resumeStoreVar = &v
	}

	return RuntimeState{
		ReleaseNumber:  release,
		Checksum:       checksum,
		PC:             pc,
		DynamicMemory:  dyn,
		Frames:         frames,
		ResumeStoreVar: resumeStoreVar,
	}, nil
}
