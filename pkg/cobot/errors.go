package cobot

import (
	"errors"
	"fmt"
)

// Sentinel errors for caller contract violations and local validation
// failures. Validation failures never reach the transport.
var (
	// ErrInvalidState is returned when a session operation is called from a
	// state it is not valid in (e.g. Connect while already connected).
	ErrInvalidState = errors.New("invalid session state")

	// ErrNotReady is returned when a poller or dispatcher operation is
	// attempted while the session is not Ready.
	ErrNotReady = errors.New("session not ready")

	// ErrStaleResult is returned when a backend round trip completes after
	// the session has moved on; the result is discarded, not applied.
	ErrStaleResult = errors.New("result discarded: session state changed")

	// ErrPollInFlight is returned by PollOnce when a fetch is already
	// outstanding; the new one is skipped, never pipelined.
	ErrPollInFlight = errors.New("telemetry fetch already in flight")

	ErrUnknownJoint    = errors.New("unknown joint")
	ErrAngleOutOfRange = errors.New("angle out of range")
	ErrSpeedOutOfRange = errors.New("speed out of range")
	ErrEmptyMask       = errors.New("joint mask selects no joints")
	ErrEmptyBatch      = errors.New("batched move has no targets")
	ErrDuplicateJoint  = errors.New("joint targeted twice in one batch")
)

// ConnectError reports a failure to open the physical link.
type ConnectError struct {
	Port string
	Baud int
	Err  error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("connect %s@%d: %v", e.Port, e.Baud, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

// InitError reports that controller bring-up failed after the configured
// number of attempts. The session has fallen back to Disconnected.
type InitError struct {
	Attempts int
	Err      error
}

func (e *InitError) Error() string {
	if e.Attempts > 1 {
		return fmt.Sprintf("initialize failed after %d attempts: %v", e.Attempts, e.Err)
	}
	return fmt.Sprintf("initialize: %v", e.Err)
}

func (e *InitError) Unwrap() error { return e.Err }

// PollError reports a transient telemetry failure. It is advisory: it never
// stops the poller and never changes session state.
type PollError struct {
	Err error
}

func (e *PollError) Error() string { return fmt.Sprintf("telemetry poll: %v", e.Err) }

func (e *PollError) Unwrap() error { return e.Err }

// CommandError reports either a local validation failure or a backend
// rejection, tagged with the command that produced it. Joint is -1 for
// commands addressing the whole arm.
type CommandError struct {
	Op    string
	Joint int
	Err   error
}

func (e *CommandError) Error() string {
	if e.Joint < 0 {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s joint %d: %v", e.Op, e.Joint, e.Err)
}

func (e *CommandError) Unwrap() error { return e.Err }
