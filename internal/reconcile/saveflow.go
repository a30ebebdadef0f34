package reconcile

import "fmt"

// FlowState is the save-dialog state. A tagged variant instead of
// loading/saving/error booleans: "saving" and "error" can never be true at
// once.
type FlowState string

const (
	FlowIdle   FlowState = "idle"
	FlowNaming FlowState = "naming"
	FlowSaving FlowState = "saving"
	FlowSaved  FlowState = "saved"
	FlowError  FlowState = "error"
)

// SaveFlow tracks where the caller is in the explicit save interaction.
type SaveFlow struct {
	state FlowState
	// Failure message from the last failed save, set only in FlowError.
	failure string
}

// NewSaveFlow starts in FlowIdle.
func NewSaveFlow() *SaveFlow {
	return &SaveFlow{state: FlowIdle}
}

// State returns the current state.
func (f *SaveFlow) State() FlowState { return f.state }

// Failure returns the message from the last failed save.
func (f *SaveFlow) Failure() string { return f.failure }

// Begin opens the naming dialog.
func (f *SaveFlow) Begin() error {
	return f.transition(FlowNaming, FlowIdle, FlowError)
}

// Submit marks the save request in flight.
func (f *SaveFlow) Submit() error {
	return f.transition(FlowSaving, FlowNaming, FlowError)
}

// Succeed records a completed save. Terminal until Reset.
func (f *SaveFlow) Succeed() error {
	return f.transition(FlowSaved, FlowSaving)
}

// Fail records a failed save with a user-visible message, keeping the
// retry affordance available via Begin or Submit.
func (f *SaveFlow) Fail(msg string) error {
	if err := f.transition(FlowError, FlowSaving); err != nil {
		return err
	}
	f.failure = msg
	return nil
}

// Reset returns to idle, e.g. when the user dismisses the dialog. Illegal
// only while a save is in flight.
func (f *SaveFlow) Reset() error {
	return f.transition(FlowIdle, FlowIdle, FlowNaming, FlowSaved, FlowError)
}

func (f *SaveFlow) transition(to FlowState, from ...FlowState) error {
	for _, s := range from {
		if f.state == s {
			f.state = to
			if to != FlowError {
				f.failure = ""
			}
			return nil
		}
	}
	return fmt.Errorf("illegal save-flow transition %s -> %s", f.state, to)
}
