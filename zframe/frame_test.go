package zframe

import (
	"errors"
	"testing"

	"github.com/tmarlowe/zgo/zerr"
	"github.com/tmarlowe/zgo/zmem"
)

// v3Image builds a minimal v3 story image with a two-local routine at 0x40
// (locals default to 0x0011, 0x0022) and globals starting at 0x100.
func v3Image(t *testing.T) *zmem.Memory {
	t.Helper()
	b := make([]byte, 0x200)
	b[0x00] = 3
	b[0x04] = 0x01 // high memory base (unused here)
	b[0x05] = 0x80
	b[0x0c] = 0x01 // global variable table at 0x100
	b[0x0d] = 0x00
	b[0x0e] = 0x01 // static memory base at 0x180
	b[0x0f] = 0x80

	// Routine header at 0x40: 2 locals, default values 0x0011, 0x0022.
	b[0x40] = 0x02
	b[0x41] = 0x00
	b[0x42] = 0x11
	b[0x43] = 0x00
	b[0x44] = 0x22

	mem, err := zmem.New(b)
	if err != nil {
		t.Fatalf("zmem.New: %v", err)
	}
	return mem
}

func TestCallOverlaysArgsAndDefaults(t *testing.T) {
	mem := v3Image(t)
	s := NewStack(0, 0)
	s.PushMain(nil)

	store := uint8(5)
	pc, pushed, err := s.Call(mem, 0x20, []uint16{0x99}, &store, 0x1000)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if !pushed {
		t.Fatal("expected a frame to be pushed")
	}
	if pc != 0x45 {
		t.Fatalf("pc after routine header: got 0x%x, want 0x45", pc)
	}
	if s.Depth() != 2 {
		t.Fatalf("depth: got %d, want 2", s.Depth())
	}

	top := s.Top()
	if len(top.Locals) != 2 || top.Locals[0] != 0x99 || top.Locals[1] != 0x22 {
		t.Fatalf("locals: got %v, want [0x99 0x22]", top.Locals)
	}
	if top.ReturnPC != 0x1000 {
		t.Fatalf("ReturnPC: got 0x%x, want 0x1000", top.ReturnPC)
	}
	if top.StoreVar == nil || *top.StoreVar != 5 {
		t.Fatalf("StoreVar not recorded on callee frame")
	}
}

func TestCallZeroAddressIsNoop(t *testing.T) {
	mem := v3Image(t)
	s := NewStack(0, 0)
	s.PushMain(nil)

	store := uint8(0) // the evaluation stack
	pc, pushed, err := s.Call(mem, 0, nil, &store, 0x1000)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if pushed {
		t.Fatal("calling address 0 must not push a frame")
	}
	if pc != 0x1000 {
		t.Fatalf("pc: got 0x%x, want unchanged 0x1000", pc)
	}
	if s.Depth() != 1 {
		t.Fatalf("depth: got %d, want 1", s.Depth())
	}
	v, err := s.Read(mem, 0)
	if err != nil || v != 0 {
		t.Fatalf("expected 0 pushed to stack, got %v err=%v", v, err)
	}
}

func TestReturnWritesCallerStoreAndRestoresPC(t *testing.T) {
	mem := v3Image(t)
	s := NewStack(0, 0)
	s.PushMain(nil)

	store := uint8(16) // first global
	if _, _, err := s.Call(mem, 0x20, nil, &store, 0x1234); err != nil {
		t.Fatalf("Call: %v", err)
	}

	nextPC, terminated, err := s.Return(mem, 0x55)
	if err != nil {
		t.Fatalf("Return: %v", err)
	}
	if terminated {
		t.Fatal("returning from the callee should not terminate the program")
	}
	if nextPC != 0x1234 {
		t.Fatalf("nextPC: got 0x%x, want 0x1234", nextPC)
	}
	if s.Depth() != 1 {
		t.Fatalf("depth after return: got %d, want 1", s.Depth())
	}
	got, err := s.Read(mem, 16)
	if err != nil || got != 0x55 {
		t.Fatalf("global 16: got %v err=%v, want 0x55", got, err)
	}
}

func TestReturnFromMainTerminates(t *testing.T) {
	mem := v3Image(t)
	s := NewStack(0, 0)
	s.PushMain(nil)

	_, terminated, err := s.Return(mem, 0)
	if err != nil {
		t.Fatalf("Return: %v", err)
	}
	if !terminated {
		t.Fatal("returning from the sole main frame should terminate")
	}
	if s.Depth() != 0 {
		t.Fatalf("depth: got %d, want 0", s.Depth())
	}
}

func TestVariableZeroIsEvaluationStack(t *testing.T) {
	mem := v3Image(t)
	s := NewStack(0, 0)
	s.PushMain(nil)

	if err := s.Write(mem, 0, 7); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := s.Write(mem, 0, 9); err != nil {
		t.Fatalf("Write: %v", err)
	}
	v, err := s.Read(mem, 0)
	if err != nil || v != 9 {
		t.Fatalf("Read: got %v err=%v, want 9 (LIFO)", v, err)
	}
	v, err = s.Read(mem, 0)
	if err != nil || v != 7 {
		t.Fatalf("Read: got %v err=%v, want 7", v, err)
	}
	if _, err := s.Read(mem, 0); !errors.Is(err, zerr.Sentinel(zerr.EmptyStack)) {
		t.Fatalf("expected EmptyStack on underflow, got %v", err)
	}
}

func TestPeekPokeDoNotPopOrPush(t *testing.T) {
	mem := v3Image(t)
	s := NewStack(0, 0)
	s.PushMain(nil)

	if err := s.PushEval(42); err != nil {
		t.Fatalf("PushEval: %v", err)
	}
	v, err := s.Peek(mem, 0)
	if err != nil || v != 42 {
		t.Fatalf("Peek: got %v err=%v, want 42", v, err)
	}
	if err := s.Poke(mem, 0, 100); err != nil {
		t.Fatalf("Poke: %v", err)
	}
	v, err = s.PopEval()
	if err != nil || v != 100 {
		t.Fatalf("PopEval after Poke: got %v err=%v, want 100", v, err)
	}
	if _, err := s.PopEval(); !errors.Is(err, zerr.Sentinel(zerr.EmptyStack)) {
		t.Fatalf("expected EmptyStack, got %v", err)
	}
}

func TestNoSuchLocal(t *testing.T) {
	mem := v3Image(t)
	s := NewStack(0, 0)
	s.PushMain(nil)

	store := uint8(0)
	if _, _, err := s.Call(mem, 0x20, nil, &store, 0); err != nil {
		t.Fatalf("Call: %v", err)
	}
	if _, err := s.Read(mem, 3); !errors.Is(err, zerr.Sentinel(zerr.NoSuchLocal)) {
		t.Fatalf("expected NoSuchLocal for local 3 of a 2-local routine, got %v", err)
	}
}

func TestCallDepthOverflow(t *testing.T) {
	mem := v3Image(t)
	s := NewStack(2, 0)
	s.PushMain(nil)

	store := uint8(0)
	if _, _, err := s.Call(mem, 0x20, nil, &store, 0); err != nil {
		t.Fatalf("first Call: %v", err)
	}
	if _, _, err := s.Call(mem, 0x20, nil, &store, 0); !errors.Is(err, zerr.Sentinel(zerr.StackOverflow)) {
		t.Fatalf("expected StackOverflow at max depth, got %v", err)
	}
}

func TestEvalStackOverflow(t *testing.T) {
	mem := v3Image(t)
	s := NewStack(0, 2)
	s.PushMain(nil)

	if err := s.PushEval(1); err != nil {
		t.Fatalf("PushEval 1: %v", err)
	}
	if err := s.PushEval(2); err != nil {
		t.Fatalf("PushEval 2: %v", err)
	}
	if err := s.PushEval(3); !errors.Is(err, zerr.Sentinel(zerr.StackOverflow)) {
		t.Fatalf("expected StackOverflow, got %v", err)
	}
	_ = mem
}
