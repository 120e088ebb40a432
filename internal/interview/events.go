package interview

import "time"

// State is an orchestrator lifecycle state.
type State string

const (
	StateInitializing     State = "initializing"
	StateReady            State = "ready"
	StateRecording        State = "recording"
	StateAttemptCompleted State = "attempt_completed"
	StateProcessing       State = "processing"
	StateDone             State = "done"
)

// StopReason says why a recording ended.
type StopReason string

const (
	ReasonManual     StopReason = "manual"
	ReasonTimeout    StopReason = "timeout"
	ReasonEscape     StopReason = "escape"
	ReasonError      StopReason = "error"
	ReasonDeviceLost StopReason = "device_lost"
)

// EventKind classifies observer notifications.
type EventKind string

const (
	EventState      EventKind = "state"
	EventWarning    EventKind = "warning"
	EventTick       EventKind = "tick"
	EventTranscript EventKind = "transcript"
	EventAttempt    EventKind = "attempt"
	EventFinal      EventKind = "final"
)

// Event is delivered to observers. Only the fields relevant to Kind are set.
type Event struct {
	Kind          EventKind
	State         State
	QuestionIndex int
	AttemptNumber int
	Question      Question
	Message       string
	Err           error
	Remaining     time.Duration
	Transcript    string
	Attempt       *Attempt
	Best          *Attempt
	Final         *FinalResult
}

// Observer receives events synchronously. Observers must not call the
// orchestrator's transition methods from inside the callback.
type Observer func(Event)
