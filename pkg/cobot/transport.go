package cobot

import (
	"context"
	"errors"
	"fmt"

	"go.bug.st/serial"
)

// Transport is the boundary to the controller firmware. Implementations own
// the request/response framing; the core only sees command semantics. Every
// call may block for a backend round trip and must honor ctx cancellation.
type Transport interface {
	// Init performs controller bring-up.
	Init(ctx context.Context) error

	// Joints fetches the measured angle of every joint, in servo order.
	Joints(ctx context.Context) ([]float64, error)

	// MoveTo moves one joint to angle (degrees) at speed (degrees/second).
	MoveTo(ctx context.Context, joint int, angle, speed float64) error

	// MoveAll moves several joints in one backend round trip.
	MoveAll(ctx context.Context, targets []MoveTarget) error

	// Stop halts one joint.
	Stop(ctx context.Context, joint int) error

	// StopAll halts every joint; smooth requests a decelerated stop instead
	// of an immediate one.
	StopAll(ctx context.Context, smooth bool) error

	// Calibrate runs the controller-side calibration routine for the joints
	// selected by mask (bit i selects joint i).
	Calibrate(ctx context.Context, mask uint8) error

	Close() error
}

// MoveTarget is one joint's target in a batched move.
type MoveTarget struct {
	Joint int
	Angle float64
	Speed float64
}

// Dialer opens the link to the controller and returns a Transport over it.
type Dialer interface {
	Dial(ctx context.Context, port string, baud int) (Transport, error)
}

// DialerFunc adapts a function to the Dialer interface.
type DialerFunc func(ctx context.Context, port string, baud int) (Transport, error)

func (f DialerFunc) Dial(ctx context.Context, port string, baud int) (Transport, error) {
	return f(ctx, port, baud)
}

// SerialDialer opens a real serial port and hands it to Frame, which wraps
// it with the firmware's framing. The opened port is owned by the returned
// Transport; the session only ever reaches it through that Transport.
type SerialDialer struct {
	Frame func(port serial.Port) Transport
}

func (d SerialDialer) Dial(_ context.Context, port string, baud int) (Transport, error) {
	if d.Frame == nil {
		return nil, errors.New("no framing constructor configured")
	}
	p, err := serial.Open(port, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, fmt.Errorf("open serial port: %w", err)
	}
	return d.Frame(p), nil
}

// Firmware error codes reported by the controller.
const (
	CodeOther = iota
	CodeMalformedRequest
	CodeOutOfRange
	CodeInvalidJoint
	CodeNotInitialized
	CodeNotCalibrated
	CodeCancelled
	CodeBadFirmwareVersion
)

var errorCodeNames = []string{
	"other",
	"malformed request",
	"out of range",
	"invalid joint",
	"not initialized",
	"not calibrated",
	"cancelled",
	"invalid firmware version",
}

// BackendError is an error the controller itself reported in response to a
// command. It passes through the dispatcher unchanged.
type BackendError struct {
	Code    int
	Message string
}

func (e *BackendError) Error() string {
	name := "unknown error"
	if e.Code >= 0 && e.Code < len(errorCodeNames) {
		name = errorCodeNames[e.Code]
	}
	if e.Message == "" {
		return fmt.Sprintf("controller error %d (%s)", e.Code, name)
	}
	return fmt.Sprintf("controller error %d (%s): %s", e.Code, name, e.Message)
}
