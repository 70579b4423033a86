// Package sim provides an in-memory COBOT controller implementing the
// cobot.Transport interface. Joints move toward their targets at the
// commanded speed, integrated in wall-clock time, so the telemetry poller
// and the monitor TUI behave as they would against real hardware.
package sim

import (
	"context"
	"sync"
	"time"

	"github.com/cobotkit/cobot/pkg/cobot"
)

// DefaultSpeed is used when a move command carries speed 0, matching the
// controller's behavior of substituting its own default.
const DefaultSpeed = 30.0

type jointSim struct {
	angle  float64
	target float64
	speed  float64
}

// Arm is a simulated six-axis controller.
type Arm struct {
	mu          sync.Mutex
	joints      []jointSim
	initialized bool
	calibrated  uint8
	closed      bool
	last        time.Time

	// Latency is an optional artificial round-trip delay per command.
	Latency time.Duration
}

// New creates a simulated arm with all joints at angle 0.
func New() *Arm {
	return &Arm{
		joints: make([]jointSim, cobot.JointCount),
		last:   time.Now(),
	}
}

// Dialer returns a cobot.Dialer that hands out this arm regardless of the
// requested port and baud rate.
func (a *Arm) Dialer() cobot.Dialer {
	return cobot.DialerFunc(func(context.Context, string, int) (cobot.Transport, error) {
		return a, nil
	})
}

func (a *Arm) delay(ctx context.Context) error {
	if a.Latency <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(a.Latency):
		return nil
	}
}

// advance integrates joint motion since the last call. Callers hold a.mu.
func (a *Arm) advance() {
	now := time.Now()
	dt := now.Sub(a.last).Seconds()
	a.last = now
	for i := range a.joints {
		j := &a.joints[i]
		if j.angle == j.target || j.speed <= 0 {
			continue
		}
		step := j.speed * dt
		if diff := j.target - j.angle; diff > 0 {
			if step >= diff {
				j.angle = j.target
			} else {
				j.angle += step
			}
		} else {
			if step >= -diff {
				j.angle = j.target
			} else {
				j.angle -= step
			}
		}
	}
}

func (a *Arm) Init(ctx context.Context) error {
	if err := a.delay(ctx); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.initialized = true
	a.last = time.Now()
	return nil
}

func (a *Arm) Joints(ctx context.Context) ([]float64, error) {
	if err := a.delay(ctx); err != nil {
		return nil, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.initialized {
		return nil, &cobot.BackendError{Code: cobot.CodeNotInitialized}
	}
	a.advance()
	angles := make([]float64, len(a.joints))
	for i := range a.joints {
		angles[i] = a.joints[i].angle
	}
	return angles, nil
}

func (a *Arm) MoveTo(ctx context.Context, joint int, angle, speed float64) error {
	if err := a.delay(ctx); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.initialized {
		return &cobot.BackendError{Code: cobot.CodeNotInitialized}
	}
	if joint < 0 || joint >= len(a.joints) {
		return &cobot.BackendError{Code: cobot.CodeInvalidJoint}
	}
	a.advance()
	if speed <= 0 {
		speed = DefaultSpeed
	}
	a.joints[joint].target = angle
	a.joints[joint].speed = speed
	return nil
}

func (a *Arm) MoveAll(ctx context.Context, targets []cobot.MoveTarget) error {
	if err := a.delay(ctx); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.initialized {
		return &cobot.BackendError{Code: cobot.CodeNotInitialized}
	}
	for _, tgt := range targets {
		if tgt.Joint < 0 || tgt.Joint >= len(a.joints) {
			return &cobot.BackendError{Code: cobot.CodeInvalidJoint}
		}
	}
	a.advance()
	for _, tgt := range targets {
		speed := tgt.Speed
		if speed <= 0 {
			speed = DefaultSpeed
		}
		a.joints[tgt.Joint].target = tgt.Angle
		a.joints[tgt.Joint].speed = speed
	}
	return nil
}

func (a *Arm) Stop(ctx context.Context, joint int) error {
	if err := a.delay(ctx); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if joint < 0 || joint >= len(a.joints) {
		return &cobot.BackendError{Code: cobot.CodeInvalidJoint}
	}
	a.advance()
	a.joints[joint].target = a.joints[joint].angle
	a.joints[joint].speed = 0
	return nil
}

func (a *Arm) StopAll(ctx context.Context, smooth bool) error {
	if err := a.delay(ctx); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.advance()
	for i := range a.joints {
		a.joints[i].target = a.joints[i].angle
		a.joints[i].speed = 0
	}
	return nil
}

func (a *Arm) Calibrate(ctx context.Context, mask uint8) error {
	if err := a.delay(ctx); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.initialized {
		return &cobot.BackendError{Code: cobot.CodeNotInitialized}
	}
	a.calibrated |= mask
	return nil
}

// Calibrated returns the mask of joints calibrated so far.
func (a *Arm) Calibrated() uint8 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calibrated
}

// SetAngle overrides a joint's measured angle directly, for tests and demos.
func (a *Arm) SetAngle(joint int, angle float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if joint >= 0 && joint < len(a.joints) {
		a.joints[joint].angle = angle
		a.joints[joint].target = angle
	}
}

func (a *Arm) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closed = true
	return nil
}
