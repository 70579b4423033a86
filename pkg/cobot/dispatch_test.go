package cobot

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMoveToBounds(t *testing.T) {
	t.Parallel()

	// Default bounds: angle [-180, 180], speed [0, 180]. Bounds are
	// inclusive; one unit beyond either end must fail locally.
	tests := []struct {
		name    string
		angle   float64
		speed   float64
		wantErr error
	}{
		{"mid range", 45, 30, nil},
		{"angle at min", -180, 30, nil},
		{"angle at max", 180, 30, nil},
		{"angle below min", -181, 30, ErrAngleOutOfRange},
		{"angle above max", 181, 30, ErrAngleOutOfRange},
		{"speed at min", 45, 0, nil},
		{"speed at max", 45, 180, nil},
		{"speed below min", 45, -1, ErrSpeedOutOfRange},
		{"speed above max", 45, 181, ErrSpeedOutOfRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			tr := newFakeTransport()
			c := readyClient(t, tr)

			err := c.MoveTo(context.Background(), 2, tt.angle, tt.speed)
			js, ok := c.JointState(2)
			require.True(t, ok)

			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				// Validation failures never reach the backend and never
				// touch committed state.
				assert.Zero(t, tr.callCount("move_to"))
				assert.Zero(t, js.CommandedAngle)
				assert.Zero(t, js.CommandedSpeed)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.angle, js.CommandedAngle)
			assert.Equal(t, tt.speed, js.CommandedSpeed)
		})
	}
}

func TestMoveToUnknownJoint(t *testing.T) {
	t.Parallel()

	tr := newFakeTransport()
	c := readyClient(t, tr)

	for _, joint := range []int{-1, JointCount, 99} {
		err := c.MoveTo(context.Background(), joint, 0, 10)
		require.ErrorIs(t, err, ErrUnknownJoint, "joint %d", joint)
	}
	require.Zero(t, tr.callCount("move_to"))
}

func TestMoveToBackendRejection(t *testing.T) {
	t.Parallel()

	tr := newFakeTransport()
	tr.moveFn = func(context.Context, int, float64, float64) error {
		return &BackendError{Code: CodeNotCalibrated, Message: "joint 3 has no calibration"}
	}
	c := readyClient(t, tr)

	err := c.MoveTo(context.Background(), 3, 90, 45)

	var ce *CommandError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "move_to", ce.Op)
	assert.Equal(t, 3, ce.Joint)

	var be *BackendError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, CodeNotCalibrated, be.Code)

	// Rejected commands leave committed state untouched.
	js, _ := c.JointState(3)
	assert.Zero(t, js.CommandedAngle)
	assert.Zero(t, js.CommandedSpeed)
}

func TestMoveRequiresReady(t *testing.T) {
	t.Parallel()

	tr := newFakeTransport()
	c := newTestClient(t, testConfig(), tr)
	require.NoError(t, c.Connect(context.Background()))

	err := c.MoveTo(context.Background(), 0, 45, 30)
	require.ErrorIs(t, err, ErrNotReady)
	require.Zero(t, tr.callCount("move_to"))
}

func TestMoveAllCommitsWholeBatch(t *testing.T) {
	t.Parallel()

	tr := newFakeTransport()
	c := readyClient(t, tr)

	targets := []MoveTarget{
		{Joint: 0, Angle: 30, Speed: 10},
		{Joint: 2, Angle: -45, Speed: 20},
		{Joint: 5, Angle: 90, Speed: 60},
	}
	require.NoError(t, c.MoveAll(context.Background(), targets))
	require.Equal(t, 1, tr.callCount("move_all"))

	for _, tgt := range targets {
		js, ok := c.JointState(tgt.Joint)
		require.True(t, ok)
		assert.Equal(t, tgt.Angle, js.CommandedAngle, "joint %d", tgt.Joint)
		assert.Equal(t, tgt.Speed, js.CommandedSpeed, "joint %d", tgt.Joint)
	}

	// Untargeted joints keep their state.
	js, _ := c.JointState(1)
	assert.Zero(t, js.CommandedAngle)
	assert.Zero(t, js.CommandedSpeed)
}

func TestMoveAllRejectsBadBatch(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		targets []MoveTarget
		wantErr error
	}{
		{"empty batch", nil, ErrEmptyBatch},
		{"unknown joint", []MoveTarget{{Joint: JointCount, Angle: 10, Speed: 5}}, ErrUnknownJoint},
		{"duplicate joint", []MoveTarget{
			{Joint: 1, Angle: 10, Speed: 5},
			{Joint: 1, Angle: 20, Speed: 5},
		}, ErrDuplicateJoint},
		{"one angle out of range", []MoveTarget{
			{Joint: 0, Angle: 10, Speed: 5},
			{Joint: 3, Angle: 181, Speed: 5},
		}, ErrAngleOutOfRange},
		{"one speed out of range", []MoveTarget{
			{Joint: 0, Angle: 10, Speed: 5},
			{Joint: 3, Angle: 10, Speed: -1},
		}, ErrSpeedOutOfRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			tr := newFakeTransport()
			c := readyClient(t, tr)

			err := c.MoveAll(context.Background(), tt.targets)
			require.ErrorIs(t, err, tt.wantErr)

			// One bad target rejects the whole batch locally; nothing
			// reaches the backend and no joint changes.
			assert.Zero(t, tr.callCount("move_all"))
			for i, js := range c.Snapshot() {
				assert.Zero(t, js.CommandedAngle, "joint %d", i)
				assert.Zero(t, js.CommandedSpeed, "joint %d", i)
			}
		})
	}
}

func TestStopResetsCommandedState(t *testing.T) {
	t.Parallel()

	tr := newFakeTransport()
	c := readyClient(t, tr)
	ctx := context.Background()

	require.NoError(t, c.MoveTo(ctx, 1, 90, 60))
	require.NoError(t, c.Stop(ctx, 1))

	js, _ := c.JointState(1)
	assert.Zero(t, js.CommandedAngle)
	assert.Zero(t, js.CommandedSpeed)
}

func TestStopIdleJointIsPermitted(t *testing.T) {
	t.Parallel()

	tr := newFakeTransport()
	c := readyClient(t, tr)

	// Stop is a safety operation; it must not be rejected just because the
	// joint is already at rest.
	js, _ := c.JointState(4)
	require.False(t, js.Moving())
	require.NoError(t, c.Stop(context.Background(), 4))
	require.Equal(t, 1, tr.callCount("stop"))
}

func TestStopAllResetsEveryJoint(t *testing.T) {
	t.Parallel()

	tr := newFakeTransport()
	c := readyClient(t, tr)
	ctx := context.Background()

	require.NoError(t, c.MoveTo(ctx, 0, 10, 5))
	require.NoError(t, c.MoveTo(ctx, 5, -10, 5))
	require.NoError(t, c.StopAll(ctx, true))

	for i, js := range c.Snapshot() {
		assert.Zero(t, js.CommandedAngle, "joint %d", i)
		assert.Zero(t, js.CommandedSpeed, "joint %d", i)
	}
	require.Equal(t, 1, tr.callCount("stop_all"))
}

func TestCalibrateMaskValidation(t *testing.T) {
	t.Parallel()

	tr := newFakeTransport()
	c := readyClient(t, tr)
	ctx := context.Background()

	// Empty mask fails locally.
	err := c.Calibrate(ctx, 0)
	require.ErrorIs(t, err, ErrEmptyMask)

	// A mask reaching past the last joint fails locally too.
	err = c.Calibrate(ctx, 1<<JointCount)
	require.ErrorIs(t, err, ErrUnknownJoint)

	require.Zero(t, tr.callCount("calibrate"))

	// A valid selection goes through in a single request.
	require.NoError(t, c.Calibrate(ctx, JointMask(0, 2, 5)))
	require.Equal(t, 1, tr.callCount("calibrate"))
}

func TestJointMask(t *testing.T) {
	t.Parallel()

	assert.Equal(t, uint8(0b000001), JointMask(0))
	assert.Equal(t, uint8(0b100101), JointMask(0, 2, 5))
	assert.Equal(t, uint8(0), JointMask())
	assert.Equal(t, uint8(0b000010), JointMask(1, -1, 8))
}

// An acknowledgment that lands after the link went down must be discarded,
// same as a late telemetry batch.
func TestDisconnectDiscardsInFlightMoveAck(t *testing.T) {
	t.Parallel()

	entered := make(chan struct{})
	release := make(chan struct{})
	tr := newFakeTransport()
	tr.moveFn = func(context.Context, int, float64, float64) error {
		close(entered)
		<-release
		return nil
	}
	c := readyClient(t, tr)

	done := make(chan error, 1)
	go func() {
		done <- c.MoveTo(context.Background(), 2, 45, 30)
	}()

	<-entered
	require.NoError(t, c.Disconnect())
	close(release)

	require.ErrorIs(t, <-done, ErrStaleResult)

	// The late acknowledgment left no trace in committed state.
	js, _ := c.JointState(2)
	assert.Zero(t, js.CommandedAngle)
	assert.Zero(t, js.CommandedSpeed)
}

// Two moves for the same joint submitted back to back reach the backend in
// call order; the second waits for the first's round trip to finish.
func TestSameJointMovesSubmitInOrder(t *testing.T) {
	t.Parallel()

	var (
		mu     sync.Mutex
		angles []float64
	)
	entered := make(chan struct{})
	release := make(chan struct{})
	first := true
	tr := newFakeTransport()
	tr.moveFn = func(_ context.Context, _ int, angle, _ float64) error {
		mu.Lock()
		angles = append(angles, angle)
		blockThis := first
		first = false
		mu.Unlock()
		if blockThis {
			close(entered)
			<-release
		}
		return nil
	}
	c := readyClient(t, tr)

	firstDone := make(chan error, 1)
	go func() {
		firstDone <- c.MoveTo(context.Background(), 2, 10, 5)
	}()
	<-entered

	secondDone := make(chan error, 1)
	go func() {
		secondDone <- c.MoveTo(context.Background(), 2, 20, 5)
	}()

	// The second move must queue behind the first, not overtake it.
	time.Sleep(20 * time.Millisecond)
	require.Equal(t, 1, tr.callCount("move_to"))

	close(release)
	require.NoError(t, <-firstDone)
	require.NoError(t, <-secondDone)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []float64{10, 20}, angles)

	js, _ := c.JointState(2)
	assert.Equal(t, 20.0, js.CommandedAngle)
	assert.Equal(t, 5.0, js.CommandedSpeed)
}

// StopAll must not interleave with an in-flight move for any joint: the
// reset waits for the move's round trip, so a late move acknowledgment can
// never land after it.
func TestStopAllWaitsForInFlightMove(t *testing.T) {
	t.Parallel()

	entered := make(chan struct{})
	release := make(chan struct{})
	tr := newFakeTransport()
	tr.moveFn = func(context.Context, int, float64, float64) error {
		close(entered)
		<-release
		return nil
	}
	c := readyClient(t, tr)

	moveDone := make(chan error, 1)
	go func() {
		moveDone <- c.MoveTo(context.Background(), 1, 50, 25)
	}()
	<-entered

	stopDone := make(chan error, 1)
	go func() {
		stopDone <- c.StopAll(context.Background(), false)
	}()

	// While the move holds joint 1's lock, the stop has not reached the
	// backend yet.
	time.Sleep(20 * time.Millisecond)
	require.Zero(t, tr.callCount("stop_all"))

	close(release)
	require.NoError(t, <-moveDone)
	require.NoError(t, <-stopDone)

	// The stop ran after the move, so the reset is what sticks.
	js, _ := c.JointState(1)
	assert.Zero(t, js.CommandedAngle)
	assert.Zero(t, js.CommandedSpeed)
}

// Full session walk from the observable surface: connect, bring up, move,
// watch telemetry catch up to the target.
func TestMoveScenario(t *testing.T) {
	t.Parallel()

	tr := newFakeTransport()
	measured := make([]float64, JointCount)
	tr.jointsFn = func(context.Context) ([]float64, error) {
		out := make([]float64, len(measured))
		copy(out, measured)
		return out, nil
	}

	c := newTestClient(t, testConfig(), tr)
	ctx := context.Background()

	require.NoError(t, c.ConnectTo(ctx, "/dev/ttyCobot0", 115200))
	require.NoError(t, c.Initialize(ctx))
	require.Equal(t, Ready, c.State())

	require.NoError(t, c.MoveTo(ctx, 2, 45, 30))
	js, _ := c.JointState(2)
	assert.Equal(t, 45.0, js.CommandedAngle)
	assert.Equal(t, 30.0, js.CommandedSpeed)
	assert.True(t, js.Moving())

	// The arm reports the joint arriving at its target.
	measured[2] = 45
	require.NoError(t, c.PollOnce(ctx))
	js, _ = c.JointState(2)
	assert.Equal(t, 45.0, js.MeasuredAngle)
	assert.False(t, js.Moving())
}
