// Package zframe implements the call-frame stack: routine call/return,
// per-frame local variables and evaluation stack, and the variable-number
// resolution rule that unifies the evaluation stack, locals, and globals
// behind a single 0..255 numbering scheme (spec.md §3–§4.3).
//
// Grounded on zmachine.CallStack/CallStackFrame and the
// readVariable/writeVariable/call/retValue methods on ZMachine in the
// teacher repository, generalized to return *zerr.Error instead of
// panicking and to enforce a configurable stack-depth bound.
package zframe

import (
	"github.com/tmarlowe/zgo/zerr"
	"github.com/tmarlowe/zgo/zmem"
)

const (
	// DefaultMaxFrames bounds routine-call recursion depth.
	DefaultMaxFrames = 1024
	// DefaultMaxEvalDepth bounds a single frame's evaluation stack.
	DefaultMaxEvalDepth = 1024
)

// Frame is the execution context of one active routine call.
type Frame struct {
	ReturnPC  uint32
	StoreVar  *uint8 // nil if the caller expects no return value (a "procedure" call).
	Locals    []uint16
	eval      []uint16
}

// Stack is the routine call-frame stack. There is always at least one
// frame on it once initialized (the main routine entry); popping that one
// is reported as termination rather than as an error.
type Stack struct {
	frames       []*Frame
	maxFrames    int
	maxEvalDepth int
}

// NewStack creates a Stack bounded by maxFrames call depth and
// maxEvalDepth per-frame evaluation-stack depth. A value of 0 for either
// selects the package default.
func NewStack(maxFrames, maxEvalDepth int) *Stack {
	if maxFrames <= 0 {
		maxFrames = DefaultMaxFrames
	}
	if maxEvalDepth <= 0 {
		maxEvalDepth = DefaultMaxEvalDepth
	}
	return &Stack{maxFrames: maxFrames, maxEvalDepth: maxEvalDepth}
}

// PushMain installs the initial main-routine frame. Its ReturnPC is never
// consulted: returning from it is reported by Return as termination
// (spec.md §3). The dispatcher, not this frame, owns the current pc.
func (s *Stack) PushMain(locals []uint16) {
	s.frames = append(s.frames, &Frame{Locals: locals})
}

// Depth reports the number of active frames.
func (s *Stack) Depth() int { return len(s.frames) }

// Top returns the active (innermost) frame, or nil if the stack is empty.
func (s *Stack) Top() *Frame {
	if len(s.frames) == 0 {
		return nil
	}
	return s.frames[len(s.frames)-1]
}

// Call resolves packedAddr to a byte address, reads the routine header,
// builds the new frame's locals (defaults from the routine header in
// versions < 5, zero-initialized in v5+), overlays args over the first
// len(args) locals, and pushes the frame. returnPC is the instruction's
// next_pc, recorded so Return can resume the caller there.
//
// Calling packed address 0 is a no-op: no frame is pushed, and if store is
// non-nil, 0 is written to it immediately against the *current* top frame.
// Call reports this case via pushed=false.
func (s *Stack) Call(mem *zmem.Memory, packedAddr uint16, args []uint16, store *uint8, returnPC uint32) (pc uint32, pushed bool, err error) {
	if packedAddr == 0 {
		if store != nil {
			if err := s.Write(mem, *store, 0); err != nil {
				return 0, false, err
			}
		}
		return returnPC, false, nil
	}

	if len(s.frames) >= s.maxFrames {
		return 0, false, zerr.New(zerr.StackOverflow, "call depth exceeds %d frames", s.maxFrames)
	}

	addr := mem.PackedAddress(packedAddr, false)
	localCount, err := mem.GetByte(addr)
	if err != nil {
		return 0, false, zerr.New(zerr.OutOfBounds, "routine header at 0x%x: %v", addr, err)
	}
	addr++

	locals := make([]uint16, localCount)
	version := mem.Header().Version
	for i := 0; i < int(localCount); i++ {
		if version < 5 {
			def, err := mem.GetWord(addr)
			if err != nil {
				return 0, false, err
			}
			locals[i] = def
			addr += 2
		}
	}
	for i := 0; i < len(args) && i < len(locals); i++ {
		locals[i] = args[i]
	}

	s.frames = append(s.frames, &Frame{
		ReturnPC: returnPC,
		StoreVar: store,
		Locals:   locals,
	})
	return addr, true, nil
}

// Return pops the top frame. If it had a recorded store variable, value is
// written there against the frame that becomes active (the caller).
// Returning from the sole remaining frame (the main routine) reports
// terminated=true and leaves the stack empty.
func (s *Stack) Return(mem *zmem.Memory, value uint16) (nextPC uint32, terminated bool, err error) {
	if len(s.frames) == 0 {
		return 0, true, zerr.New(zerr.EmptyStack, "return with no active frame")
	}

	old := s.frames[len(s.frames)-1]
	s.frames = s.frames[:len(s.frames)-1]

	if len(s.frames) == 0 {
		return 0, true, nil
	}

	if old.StoreVar != nil {
		if err := s.Write(mem, *old.StoreVar, value); err != nil {
			return 0, false, err
		}
	}
	return old.ReturnPC, false, nil
}

// Read resolves variable n against the current top frame: 0 pops the
// evaluation stack, 1..15 reads a local, 16..255 reads a global through mem.
func (s *Stack) Read(mem *zmem.Memory, n uint8) (uint16, error) {
	f := s.Top()
	if f == nil {
		return 0, zerr.New(zerr.EmptyStack, "no active frame")
	}
	switch {
	case n == 0:
		return f.pop()
	case n < 16:
		return f.local(n)
	default:
		return readGlobal(mem, n)
	}
}

// Write resolves variable n against the current top frame: 0 pushes onto
// the evaluation stack, 1..15 writes a local, 16..255 writes a global.
func (s *Stack) Write(mem *zmem.Memory, n uint8, v uint16) error {
	f := s.Top()
	if f == nil {
		return zerr.New(zerr.EmptyStack, "no active frame")
	}
	switch {
	case n == 0:
		return s.pushChecked(f, v)
	case n < 16:
		return f.setLocal(n, v)
	default:
		return writeGlobal(mem, n, v)
	}
}

// Peek is like Read but for n==0 it inspects the top of the evaluation
// stack without popping, per the indirect-variable-reference rule used by
// inc, dec, inc_chk, dec_chk, load, store and pull (spec.md §4.3).
func (s *Stack) Peek(mem *zmem.Memory, n uint8) (uint16, error) {
	f := s.Top()
	if f == nil {
		return 0, zerr.New(zerr.EmptyStack, "no active frame")
	}
	if n == 0 {
		return f.peek()
	}
	return s.Read(mem, n)
}

// Poke is like Write but for n==0 it replaces the top of the evaluation
// stack in place without pushing.
func (s *Stack) Poke(mem *zmem.Memory, n uint8, v uint16) error {
	f := s.Top()
	if f == nil {
		return zerr.New(zerr.EmptyStack, "no active frame")
	}
	if n == 0 {
		return f.replaceTop(v)
	}
	return s.Write(mem, n, v)
}

// PushEval pushes a raw value onto the current frame's evaluation stack
// (used by the PUSH opcode, which always targets the stack regardless of
// variable-number conventions).
func (s *Stack) PushEval(v uint16) error {
	f := s.Top()
	if f == nil {
		return zerr.New(zerr.EmptyStack, "no active frame")
	}
	return s.pushChecked(f, v)
}

// PopEval pops a raw value from the current frame's evaluation stack (used
// by the PULL opcode).
func (s *Stack) PopEval() (uint16, error) {
	f := s.Top()
	if f == nil {
		return 0, zerr.New(zerr.EmptyStack, "no active frame")
	}
	return f.pop()
}

func (s *Stack) pushChecked(f *Frame, v uint16) error {
	if len(f.eval) >= s.maxEvalDepth {
		return zerr.New(zerr.StackOverflow, "evaluation stack exceeds %d entries", s.maxEvalDepth)
	}
	f.push(v)
	return nil
}

func (f *Frame) push(v uint16) { f.eval = append(f.eval, v) }

func (f *Frame) pop() (uint16, error) {
	if len(f.eval) == 0 {
		return 0, zerr.New(zerr.EmptyStack, "pop from empty evaluation stack")
	}
	v := f.eval[len(f.eval)-1]
	f.eval = f.eval[:len(f.eval)-1]
	return v, nil
}

func (f *Frame) peek() (uint16, error) {
	if len(f.eval) == 0 {
		return 0, zerr.New(zerr.EmptyStack, "peek on empty evaluation stack")
	}
	return f.eval[len(f.eval)-1], nil
}

func (f *Frame) replaceTop(v uint16) error {
	if len(f.eval) == 0 {
		return zerr.New(zerr.EmptyStack, "poke on empty evaluation stack")
	}
	f.eval[len(f.eval)-1] = v
	return nil
}

func (f *Frame) local(n uint8) (uint16, error) {
	ix := int(n) - 1
	if ix < 0 || ix >= len(f.Locals) {
		return 0, zerr.New(zerr.NoSuchLocal, "local %d not declared (routine has %d)", n, len(f.Locals))
	}
	return f.Locals[ix], nil
}

func (f *Frame) setLocal(n uint8, v uint16) error {
	ix := int(n) - 1
	if ix < 0 || ix >= len(f.Locals) {
		return zerr.New(zerr.NoSuchLocal, "local %d not declared (routine has %d)", n, len(f.Locals))
	}
	f.Locals[ix] = v
	return nil
}

func globalAddr(mem *zmem.Memory, n uint8) uint32 {
	return uint32(mem.Header().GlobalVariableBase) + 2*uint32(n-16)
}

func readGlobal(mem *zmem.Memory, n uint8) (uint16, error) {
	return mem.GetWord(globalAddr(mem, n))
}

func writeGlobal(mem *zmem.Memory, n uint8, v uint16) error {
	return mem.WriteWord(globalAddr(mem, n), v)
}
