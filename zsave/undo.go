package zsave

import "github.com/tmarlowe/zgo/zerr"

// DefaultUndoDepth bounds how many save_undo states are retained before the
// oldest is dropped. The standard only requires one level; this keeps a
// short history for interpreters that want to honor repeated save_undo
// calls without restoring immediately in between.
const DefaultUndoDepth = 8

// Undo is an in-memory LIFO of RuntimeStates for save_undo/restore_undo.
// Grounded on zmachine.InMemorySaveStateCache/saveUndo/restoreUndo, which
// keep an unbounded slice and always operate on its tail; this adds a
// configurable depth so a long session can't let the undo history grow
// without bound.
//
// Undo implements Facade; its key parameter is accepted (to satisfy the
// interface) but ignored, since an undo ring has no notion of named slots.
type Undo struct {
	entries []RuntimeState
	depth   int
}

// NewUndo creates an Undo bounded to depth entries. A non-positive depth
// selects DefaultUndoDepth.
func NewUndo(depth int) *Undo {
	if depth <= 0 {
		depth = DefaultUndoDepth
	}
	return &Undo{depth: depth}
}

// Save pushes state onto the ring, dropping the oldest entry if it is full.
func (u *Undo) Save(_ string, state RuntimeState) error {
	u.entries = append(u.entries, state)
	if len(u.entries) > u.depth {
		u.entries = u.entries[len(u.entries)-u.depth:]
	}
	return nil
}

// Load pops and returns the most recently saved state. It reports
// EmptyStack if there is nothing to restore, matching restoreUndo's "no
// saved states" result code 0 but as an error instead of a sentinel value.
func (u *Undo) Load(_ string) (RuntimeState, error) {
	if len(u.entries) == 0 {
		return RuntimeState{}, zerr.New(zerr.EmptyStack, "no undo state to restore")
	}
	state := u.entries[len(u.entries)-1]
	u.entries = u.entries[:len(u.entries)-1]
	return state, nil
}

// Len reports how many undo states are currently retained.
func (u *Undo) Len() int { return len(u.entries) }
