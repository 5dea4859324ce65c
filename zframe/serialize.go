package zframe

import (
	"encoding/binary"

	"github.com/tmarlowe/zgo/zerr"
)

// Marshal serializes the full frame stack: a frame count followed by each
// frame's return pc, optional store variable, locals, and evaluation stack.
// Grounded on zmachine.CallStack.serialize/CallStackFrame.serialize in the
// teacher, adapted to this package's Frame/Stack shape (a StoreVar pointer
// rather than a routineType/numValuesPassed pair, an eval stack instead of a
// routineStack field of the same role).
func (s *Stack) Marshal() []byte {
	out := make([]byte, 2)
	binary.BigEndian.PutUint16(out, uint16(len(s.frames)))
	for _, f := range s.frames {
		out = append(out, f.marshal()...)
	}
	return out
}

func (f *Frame) marshal() []byte {
	size := 4 + 2 + 2 + len(f.Locals)*2 + 2 + len(f.eval)*2
	out := make([]byte, size)
	offset := 0

	binary.BigEndian.PutUint32(out[offset:], f.ReturnPC)
	offset += 4

	if f.StoreVar != nil {
		out[offset] = 1
		out[offset+1] = *f.StoreVar
	}
	offset += 2

	binary.BigEndian.PutUint16(out[offset:], uint16(len(f.Locals)))
	offset += 2
	for _, v := range f.Locals {
		binary.BigEndian.PutUint16(out[offset:], v)
		offset += 2
	}

	binary.BigEndian.PutUint16(out[offset:], uint16(len(f.eval)))
	offset += 2
	for _, v := range f.eval {
		binary.BigEndian.PutUint16(out[offset:], v)
		offset += 2
	}

	return out
}

// UnmarshalStack rebuilds a Stack from the bytes Marshal produced, returning
// the number of bytes consumed so callers can locate whatever follows it in
// a larger blob (zsave's RuntimeState appends this after the dynamic-memory
// region).
func UnmarshalStack(data []byte, maxFrames, maxEvalDepth int) (*Stack, int, error) {
	if len(data) < 2 {
		return nil, 0, zerr.New(zerr.OutOfBounds, "truncated frame stack: missing frame count")
	}
	count := int(binary.BigEndian.Uint16(data))
	offset := 2

	frames := make([]*Frame, 0, count)
	for i := 0; i < count; i++ {
		f, n, err := unmarshalFrame(data[offset:])
		if err != nil {
			return nil, 0, err
		}
		offset += n
		frames = append(frames, f)
	}

	s := NewStack(maxFrames, maxEvalDepth)
	s.frames = frames
	return s, offset, nil
}

func unmarshalFrame(data []byte) (*Frame, int, error) {
	if len(data) < 4+2+2 {
		return nil, 0, zerr.New(zerr.OutOfBounds, "truncated frame stack: frame header")
	}
	offset := 0
	f := &Frame{}

	f.ReturnPC = binary.BigEndian.Uint32(data[offset:])
	offset += 4

	if data[offset] == 1 {
		v := data[offset+1]
		f.StoreVar = &v
	}
	offset += 2

	localCount := int(binary.BigEndian.Uint16(data[offset:]))
	offset += 2
	if len(data) < offset+localCount*2+2 {
		return nil, 0, zerr.New(zerr.OutOfBounds, "truncated frame stack: locals")
	}
	f.Locals = make([]uint16, localCount)
	for i := range f.Locals {
		f.Locals[i] = binary.BigEndian.Uint16(data[offset:])
		offset += 2
	}

	evalCount := int(binary.BigEndian.Uint16(data[offset:]))
	offset += 2
	if len(data) < offset+evalCount*2 {
		return nil, 0, zerr.New(zerr.OutOfBounds, "truncated frame stack: evaluation stack")
	}
	f.eval = make([]uint16, evalCount)
	for i := range f.eval {
		f.eval[i] = binary.BigEndian.Uint16(data[offset:])
		offset += 2
	}

	return f, offset, nil
}
