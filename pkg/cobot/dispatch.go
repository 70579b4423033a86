package cobot

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// Dispatcher validates and submits motion, stop and calibration commands.
// Validation failures are local and never reach the transport; commanded
// joint state is written only after the backend acknowledges. Commands for
// the same joint are submitted in call order.
type Dispatcher struct {
	session *Session
	joints  *Joints
	log     zerolog.Logger

	// One lock per joint keeps same-joint submissions ordered without
	// serializing commands across joints.
	perJoint []sync.Mutex
}

func newDispatcher(session *Session, joints *Joints, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		session:  session,
		joints:   joints,
		log:      log,
		perJoint: make([]sync.Mutex, joints.Count()),
	}
}

// MoveTo moves one joint to angle (degrees) at speed (degrees/second).
// Bounds are inclusive on both ends. On backend acknowledgment the joint's
// commanded state becomes (angle, speed); on rejection it is left untouched.
func (d *Dispatcher) MoveTo(ctx context.Context, joint int, angle, speed float64) error {
	meta, ok := d.joints.Meta(joint)
	if !ok {
		return &CommandError{Op: "move_to", Joint: joint, Err: ErrUnknownJoint}
	}
	if angle < meta.MinAngle || angle > meta.MaxAngle {
		return &CommandError{Op: "move_to", Joint: joint,
			Err: fmt.Errorf("%w: %.2f outside [%.2f, %.2f]", ErrAngleOutOfRange, angle, meta.MinAngle, meta.MaxAngle)}
	}
	if speed < meta.MinSpeed || speed > meta.MaxSpeed {
		return &CommandError{Op: "move_to", Joint: joint,
			Err: fmt.Errorf("%w: %.2f outside [%.2f, %.2f]", ErrSpeedOutOfRange, speed, meta.MinSpeed, meta.MaxSpeed)}
	}

	d.perJoint[joint].Lock()
	defer d.perJoint[joint].Unlock()

	tr, epoch, err := d.session.borrow()
	if err != nil {
		return err
	}
	if err := tr.MoveTo(ctx, joint, angle, speed); err != nil {
		return &CommandError{Op: "move_to", Joint: joint, Err: err}
	}
	if !d.session.applyIfCurrent(epoch, func() {
		d.joints.setCommanded(joint, angle, speed)
	}) {
		return ErrStaleResult
	}
	d.log.Debug().Int("joint", joint).Float64("angle", angle).Float64("speed", speed).Msg("move acknowledged")
	return nil
}

// MoveAll moves several joints in one backend round trip. Every target is
// validated locally first; one bad target rejects the whole batch before any
// backend contact. On acknowledgment all targeted joints take their new
// commanded state at once.
func (d *Dispatcher) MoveAll(ctx context.Context, targets []MoveTarget) error {
	if len(targets) == 0 {
		return &CommandError{Op: "move_all", Joint: -1, Err: ErrEmptyBatch}
	}
	seen := make(map[int]bool, len(targets))
	for _, tgt := range targets {
		meta, ok := d.joints.Meta(tgt.Joint)
		if !ok {
			return &CommandError{Op: "move_all", Joint: tgt.Joint, Err: ErrUnknownJoint}
		}
		if seen[tgt.Joint] {
			return &CommandError{Op: "move_all", Joint: tgt.Joint, Err: ErrDuplicateJoint}
		}
		seen[tgt.Joint] = true
		if tgt.Angle < meta.MinAngle || tgt.Angle > meta.MaxAngle {
			return &CommandError{Op: "move_all", Joint: tgt.Joint,
				Err: fmt.Errorf("%w: %.2f outside [%.2f, %.2f]", ErrAngleOutOfRange, tgt.Angle, meta.MinAngle, meta.MaxAngle)}
		}
		if tgt.Speed < meta.MinSpeed || tgt.Speed > meta.MaxSpeed {
			return &CommandError{Op: "move_all", Joint: tgt.Joint,
				Err: fmt.Errorf("%w: %.2f outside [%.2f, %.2f]", ErrSpeedOutOfRange, tgt.Speed, meta.MinSpeed, meta.MaxSpeed)}
		}
	}

	d.lockAll()
	defer d.unlockAll()

	tr, epoch, err := d.session.borrow()
	if err != nil {
		return err
	}
	if err := tr.MoveAll(ctx, targets); err != nil {
		return &CommandError{Op: "move_all", Joint: -1, Err: err}
	}
	if !d.session.applyIfCurrent(epoch, func() {
		for _, tgt := range targets {
			d.joints.setCommanded(tgt.Joint, tgt.Angle, tgt.Speed)
		}
	}) {
		return ErrStaleResult
	}
	d.log.Debug().Int("targets", len(targets)).Msg("batched move acknowledged")
	return nil
}

// Stop halts one joint. It is a safety operation and is always permitted,
// including for a joint that is not currently moving. On acknowledgment the
// joint's commanded state resets to zero.
func (d *Dispatcher) Stop(ctx context.Context, joint int) error {
	if _, ok := d.joints.Meta(joint); !ok {
		return &CommandError{Op: "stop", Joint: joint, Err: ErrUnknownJoint}
	}

	d.perJoint[joint].Lock()
	defer d.perJoint[joint].Unlock()

	tr, epoch, err := d.session.borrow()
	if err != nil {
		return err
	}
	if err := tr.Stop(ctx, joint); err != nil {
		return &CommandError{Op: "stop", Joint: joint, Err: err}
	}
	if !d.session.applyIfCurrent(epoch, func() {
		d.joints.setCommanded(joint, 0, 0)
	}) {
		return ErrStaleResult
	}
	d.log.Debug().Int("joint", joint).Msg("stop acknowledged")
	return nil
}

// StopAll halts every joint in one backend round trip. smooth requests a
// decelerated stop. On acknowledgment all commanded state resets to zero.
// All joint locks are held across the round trip so a same-joint move
// acknowledged concurrently can never commit after the reset.
func (d *Dispatcher) StopAll(ctx context.Context, smooth bool) error {
	d.lockAll()
	defer d.unlockAll()

	tr, epoch, err := d.session.borrow()
	if err != nil {
		return err
	}
	if err := tr.StopAll(ctx, smooth); err != nil {
		return &CommandError{Op: "stop_all", Joint: -1, Err: err}
	}
	if !d.session.applyIfCurrent(epoch, func() {
		d.joints.resetCommandedAll()
	}) {
		return ErrStaleResult
	}
	d.log.Debug().Bool("smooth", smooth).Msg("stop all acknowledged")
	return nil
}

// Calibrate runs the controller-side calibration routine for the joints
// selected by mask (bit i selects joint i). An empty mask or one selecting a
// joint beyond the configured count fails locally, without backend contact.
func (d *Dispatcher) Calibrate(ctx context.Context, mask uint8) error {
	if mask == 0 {
		return &CommandError{Op: "calibrate", Joint: -1, Err: ErrEmptyMask}
	}
	if int(mask) >= 1<<d.joints.Count() {
		return &CommandError{Op: "calibrate", Joint: -1,
			Err: fmt.Errorf("%w: mask %#08b selects joints beyond %d", ErrUnknownJoint, mask, d.joints.Count()-1)}
	}

	tr, _, err := d.session.borrow()
	if err != nil {
		return err
	}
	if err := tr.Calibrate(ctx, mask); err != nil {
		return &CommandError{Op: "calibrate", Joint: -1, Err: err}
	}
	d.log.Info().Str("mask", fmt.Sprintf("%06b", mask)).Msg("calibration acknowledged")
	return nil
}

// lockAll takes every joint lock in index order; multi-joint commands use it
// so they serialize against single-joint commands without deadlock risk.
func (d *Dispatcher) lockAll() {
	for i := range d.perJoint {
		d.perJoint[i].Lock()
	}
}

func (d *Dispatcher) unlockAll() {
	for i := range d.perJoint {
		d.perJoint[i].Unlock()
	}
}

// JointMask builds a calibration mask from joint indices.
func JointMask(joints ...int) uint8 {
	var mask uint8
	for _, j := range joints {
		if j >= 0 && j < 8 {
			mask |= 1 << j
		}
	}
	return mask
}
