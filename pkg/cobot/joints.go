// Package cobot implements the control core for a six-axis COBOT arm:
// the link session state machine, the telemetry poller and the command
// dispatcher. The wire protocol to the controller firmware lives behind
// the Transport interface.
package cobot

import (
	"fmt"
	"sync"
)

// JointCount is the number of controllable axes on the arm.
const JointCount = 6

// Default per-joint limits, in degrees and degrees per second.
const (
	DefaultMinAngle = -180.0
	DefaultMaxAngle = 180.0
	DefaultMinSpeed = 0.0
	DefaultMaxSpeed = 180.0
)

// Joint holds the static metadata for one axis. Bounds are inclusive.
type Joint struct {
	Name     string
	MinAngle float64
	MaxAngle float64
	MinSpeed float64
	MaxSpeed float64
}

// DefaultJoints returns the six axes of the arm in servo order (IDs 0-5)
// with the default limits.
func DefaultJoints() []Joint {
	names := []string{
		"base",
		"shoulder",
		"elbow",
		"forearm_roll",
		"wrist_pitch",
		"wrist_roll",
	}
	joints := make([]Joint, len(names))
	for i, name := range names {
		joints[i] = Joint{
			Name:     name,
			MinAngle: DefaultMinAngle,
			MaxAngle: DefaultMaxAngle,
			MinSpeed: DefaultMinSpeed,
			MaxSpeed: DefaultMaxSpeed,
		}
	}
	return joints
}

// JointState is a value snapshot of one joint's live state.
type JointState struct {
	Joint
	MeasuredAngle  float64
	CommandedAngle float64
	CommandedSpeed float64
}

// Moving reports whether the joint still has ground to cover toward its
// commanded target. It is derived, never stored.
func (s JointState) Moving() bool {
	return s.CommandedAngle != s.MeasuredAngle
}

// Joints is the live read model for all axes. Measured angles are written
// only by the telemetry poller, commanded state only by the command
// dispatcher after backend acknowledgment. Readers always get value
// snapshots, never a shared reference.
type Joints struct {
	mu             sync.RWMutex
	meta           []Joint
	measured       []float64
	commandedAngle []float64
	commandedSpeed []float64
}

// NewJoints creates the read model. A nil meta slice selects DefaultJoints.
func NewJoints(meta []Joint) *Joints {
	if meta == nil {
		meta = DefaultJoints()
	}
	return &Joints{
		meta:           meta,
		measured:       make([]float64, len(meta)),
		commandedAngle: make([]float64, len(meta)),
		commandedSpeed: make([]float64, len(meta)),
	}
}

// Count returns the number of configured joints.
func (j *Joints) Count() int {
	return len(j.meta)
}

// Meta returns the static metadata for one joint.
func (j *Joints) Meta(id int) (Joint, bool) {
	if id < 0 || id >= len(j.meta) {
		return Joint{}, false
	}
	return j.meta[id], true
}

// State returns a snapshot of one joint.
func (j *Joints) State(id int) (JointState, bool) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if id < 0 || id >= len(j.meta) {
		return JointState{}, false
	}
	return j.stateLocked(id), true
}

// Snapshot returns a consistent snapshot of all joints in index order.
func (j *Joints) Snapshot() []JointState {
	j.mu.RLock()
	defer j.mu.RUnlock()
	out := make([]JointState, len(j.meta))
	for i := range j.meta {
		out[i] = j.stateLocked(i)
	}
	return out
}

func (j *Joints) stateLocked(id int) JointState {
	return JointState{
		Joint:          j.meta[id],
		MeasuredAngle:  j.measured[id],
		CommandedAngle: j.commandedAngle[id],
		CommandedSpeed: j.commandedSpeed[id],
	}
}

// applyMeasured commits one telemetry batch. The whole vector is applied
// under a single lock hold so no reader ever observes a half-updated arm;
// a vector of the wrong length is rejected untouched.
func (j *Joints) applyMeasured(angles []float64) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if len(angles) != len(j.meta) {
		return fmt.Errorf("telemetry vector has %d angles, want %d", len(angles), len(j.meta))
	}
	copy(j.measured, angles)
	return nil
}

func (j *Joints) setCommanded(id int, angle, speed float64) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.commandedAngle[id] = angle
	j.commandedSpeed[id] = speed
}

func (j *Joints) resetCommandedAll() {
	j.mu.Lock()
	defer j.mu.Unlock()
	for i := range j.meta {
		j.commandedAngle[i] = 0
		j.commandedSpeed[i] = 0
	}
}
