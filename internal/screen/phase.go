package screen

import "errors"

var (
	// ErrBusy is returned when an action of the same kind is still in flight.
	ErrBusy = errors.New("action already in progress")
	// ErrClosed is returned by intents invoked after the screen was torn down.
	ErrClosed = errors.New("screen closed")
)

// Phase tracks one async action: Idle, Validating, Submitting, then
// Succeeded or Failed until the caller resets it.
type Phase string

const (
	PhaseIdle       Phase = "IDLE"
	PhaseValidating Phase = "VALIDATING"
	PhaseSubmitting Phase = "SUBMITTING"
	PhaseSucceeded  Phase = "SUCCEEDED"
	PhaseFailed     Phase = "FAILED"
)

// InFlight reports whether an attempt is between start and outcome.
func (p Phase) InFlight() bool {
	return p == PhaseValidating || p == PhaseSubmitting
}

func (p Phase) Done() bool {
	return p == PhaseSucceeded || p == PhaseFailed
}

// ErrNotShown is returned when an intent names an item the screen does
// not currently display.
var ErrNotShown = errors.New("item not shown on this screen")
