package zvm

import (
	"github.com/tmarlowe/zgo/zdecode"
	"github.com/tmarlowe/zgo/zerr"
	"github.com/tmarlowe/zgo/zsave"
)

// stepSave implements the save opcode (0OP, any version). v1-3 use the
// branch convention; v4+ (and the always-store extended form routed here
// from stepEXT) use the store convention.
func (z *ZMachine) stepSave(inst zdecode.Instruction) (bool, error) {
	if inst.StoreVar != nil {
		return z.doSaveStore(inst)
	}
	return z.doSaveBranch(inst)
}

// stepRestore implements the restore opcode, mirroring stepSave.
func (z *ZMachine) stepRestore(inst zdecode.Instruction) (bool, error) {
	if inst.StoreVar != nil {
		return z.doRestoreStore(inst)
	}
	return z.doRestoreBranch(inst)
}

// doSaveStore handles the v4+ store-convention save: it stashes the
// continuation (this instruction's own resume pc and store variable) for
// ExportSaveState to pick up, then blocks for the collaborator's answer.
func (z *ZMachine) doSaveStore(inst zdecode.Instruction) (bool, error) {
	z.stashContinuation(inst.NextPC, inst.StoreVar)
	z.outputChannel <- Save{Prompt: false}
	resp, ok := (<-z.saveRestoreChannel).(SaveResponse)
	if !ok {
		return false, zerr.New(zerr.IncompatibleSave, "expected a SaveResponse on the save-restore channel")
	}
	result := uint16(0)
	if resp.Success {
		result = resp.Result
	}
	if err := z.store(inst, result); err != nil {
		return false, err
	}
	z.pc = inst.NextPC
	return true, nil
}

// doSaveBranch handles the pre-v4 branch-convention save. The branch-taken
// resume target is precomputed before the save request is sent (against the
// still-intact stack, without mutating anything), then the save opcode
// itself branches for real once it knows whether the save succeeded.
func (z *ZMachine) doSaveBranch(inst zdecode.Instruction) (bool, error) {
	z.stashContinuation(resumeTargetForBranch(inst, true), nil)
	z.outputChannel <- Save{Prompt: false}
	resp, ok := (<-z.saveRestoreChannel).(SaveResponse)
	if !ok {
		return false, zerr.New(zerr.IncompatibleSave, "expected a SaveResponse on the save-restore channel")
	}
	pc, term, err := z.branch(inst, resp.Success)
	if err != nil {
		return false, err
	}
	return z.finishReturn(pc, term)
}

// doRestoreStore handles the v4+ store-convention restore. On success the
// restored state's own ResumeStoreVar (captured when the original save ran)
// is written by applyImportedState, and the *current* instruction's store
// variable is never touched -- the restore opcode itself never resumes.
func (z *ZMachine) doRestoreStore(inst zdecode.Instruction) (bool, error) {
	z.outputChannel <- Restore{Prompt: false}
	resp, ok := (<-z.saveRestoreChannel).(RestoreResponse)
	if !ok {
		return false, zerr.New(zerr.IncompatibleSave, "expected a RestoreResponse on the save-restore channel")
	}
	if !resp.Success {
		if err := z.store(inst, 0); err != nil {
			return false, err
		}
		z.pc = inst.NextPC
		return true, nil
	}
	if err := z.applyImportedState(resp.Data); err != nil {
		z.outputChannel <- Warning("restore failed: " + err.Error())
		if err := z.store(inst, 0); err != nil {
			return false, err
		}
		z.pc = inst.NextPC
		return true, nil
	}
	return true, nil
}

// doRestoreBranch handles the pre-v4 branch-convention restore.
func (z *ZMachine) doRestoreBranch(inst zdecode.Instruction) (bool, error) {
	z.outputChannel <- Restore{Prompt: false}
	resp, ok := (<-z.saveRestoreChannel).(RestoreResponse)
	if !ok {
		return false, zerr.New(zerr.IncompatibleSave, "expected a RestoreResponse on the save-restore channel")
	}
	if !resp.Success {
		pc, term, err := z.branch(inst, false)
		if err != nil {
			return false, err
		}
		return z.finishReturn(pc, term)
	}
	if err := z.applyImportedState(resp.Data); err != nil {
		z.outputChannel <- Warning("restore failed: " + err.Error())
		pc, term, err := z.branch(inst, false)
		if err != nil {
			return false, err
		}
		return z.finishReturn(pc, term)
	}
	return true, nil
}

func (z *ZMachine) stashContinuation(resumePC uint32, storeVar *uint8) {
	z.pendingResumePC = resumePC
	z.pendingResumeStoreVar = storeVar
}

// exportStateFor captures a fully independent RuntimeState (round-tripped
// through Marshal/Unmarshal so the frame stack isn't left aliasing the
// live z.frames, which would otherwise keep mutating under an undo entry's
// feet as execution continues).
func (z *ZMachine) exportStateFor(resumePC uint32, storeVar *uint8) (zsave.RuntimeState, error) {
	state, err := zsave.Capture(z.mem, z.frames, resumePC)
	if err != nil {
		return zsave.RuntimeState{}, err
	}
	if storeVar != nil {
		v := *storeVar
		state.ResumeStoreVar = &v
	}
	return zsave.Unmarshal(zsave.Marshal(state), 0, 0)
}

// resumeFromState replaces the live frame stack and pc with state's, used
// by restore_undo (restore's disk-backed counterpart goes through
// applyImportedState/ExportSaveState instead, since those cross the
// channel as bytes).
func (z *ZMachine) resumeFromState(state zsave.RuntimeState) error {
	frames, pc, err := zsave.Apply(z.mem, state)
	if err != nil {
		return err
	}
	z.frames = frames
	z.pc = pc
	z.argCounts = make([]int, z.frames.Depth())
	if state.ResumeStoreVar != nil {
		return z.frames.Write(z.mem, *state.ResumeStoreVar, 2)
	}
	return nil
}
