package zvm

// The dispatcher never writes to a terminal or a file directly; every
// user-visible effect and every persistence request crosses the output
// channel as one of the values below, leaving the actual device and the
// actual save mechanism to an external collaborator (spec.md's narrow
// facade boundary, mirrored in zsave.Facade). Plain text is sent as a bare
// string, matching the teacher's own appendText/outputChannel convention --
// everything else gets its own type so a collaborator can type-switch on
// the channel.

// StatusBar refreshes the one-line status bar in versions <= 3.
type StatusBar struct {
	PlaceName   string
	Score       int
	Moves       int
	IsTimeBased bool
}

// EraseWindowRequest is erase_window's argument, forwarded as-is: -1
// unsplits and clears both windows, -2 clears both without unsplitting, 0/1
// clear just that window.
type EraseWindowRequest int

// EraseLineRequest is emitted by erase_line when its value argument is 1
// (any other value is a documented no-op).
type EraseLineRequest struct{}

// InputRequest asks the collaborator for a line of input (SREAD/AREAD).
type InputRequest struct {
	MaxLength        int
	ValidTerminators []uint8
}

// InputResponse is the collaborator's answer to an InputRequest or a
// read_char request (sent as TerminatingKey only, Text empty).
type InputResponse struct {
	Text           string
	TerminatingKey uint8
}

// Save is emitted for the save opcode. NumBytes == 0 means a normal whole-
// state save (the collaborator should call ZMachine.ExportSaveState and
// write its result somewhere using Filename as a hint); non-zero NumBytes is
// the v5+ auxiliary save-to-table form, not implemented here.
type Save struct {
	Prompt   bool
	Filename string
	Address  uint32
	NumBytes uint32
}

// Restore is emitted for the restore opcode, mirroring Save.
type Restore struct {
	Prompt   bool
	Filename string
	Address  uint32
	NumBytes uint32
}

// SaveRestoreResponse is the sum type of answers to a Save or Restore
// request, sent back over the channel passed to LoadRom.
type SaveRestoreResponse interface{ isSaveRestoreResponse() }

// SaveResponse answers a Save request. Result is the value the save opcode
// itself should store/branch on (0 failure, 1 success).
type SaveResponse struct {
	Success bool
	Result  uint16
}

func (SaveResponse) isSaveRestoreResponse() {}

// RestoreResponse answers a Restore request with the raw blob previously
// produced by ZMachine.ExportSaveState, or Success == false if nothing was
// available. Result is only meaningful on failure (0); a successful restore
// never resumes at the restore opcode itself.
type RestoreResponse struct {
	Success bool
	Result  uint16
	Data    []byte
}

func (RestoreResponse) isSaveRestoreResponse() {}

// SoundEffectRequest is emitted by the sound_effect opcode.
type SoundEffectRequest struct {
	SoundNumber int
	Effect      int
	Routine     uint16
}

// StateChangeRequest reports what the dispatcher is currently blocked
// waiting on.
type StateChangeRequest int

const (
	Running StateChangeRequest = iota
	WaitForInput
	WaitForCharacter
)

// Quit is sent once, when the quit opcode (or a fatal error) ends Run.
type Quit bool

// Restart is sent when the restart opcode fires; the collaborator is
// expected to call LoadRom again against the same story bytes.
type Restart bool

// RuntimeError is a fatal decode or execution failure; the dispatcher stops
// after emitting one.
type RuntimeError string

// Warning is a non-fatal oddity (an unsupported but recoverable opcode
// argument, writing to an undeclared stream, and the like) the collaborator
// may want to surface to a user or a log, but that does not stop execution.
type Warning string
