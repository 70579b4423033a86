package cobot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultJoints(t *testing.T) {
	t.Parallel()

	joints := DefaultJoints()
	require.Len(t, joints, JointCount)

	for i, j := range joints {
		assert.NotEmpty(t, j.Name, "joint %d", i)
		assert.Equal(t, DefaultMinAngle, j.MinAngle)
		assert.Equal(t, DefaultMaxAngle, j.MaxAngle)
		assert.Equal(t, DefaultMinSpeed, j.MinSpeed)
		assert.Equal(t, DefaultMaxSpeed, j.MaxSpeed)
	}
}

func TestJointStateMoving(t *testing.T) {
	t.Parallel()

	js := JointState{MeasuredAngle: 10, CommandedAngle: 10}
	assert.False(t, js.Moving())

	js.CommandedAngle = 45
	assert.True(t, js.Moving())

	// A joint with no command outstanding reads as idle even before the
	// first telemetry batch.
	assert.False(t, JointState{}.Moving())
}

func TestJointsApplyMeasuredBatch(t *testing.T) {
	t.Parallel()

	j := NewJoints(nil)
	require.NoError(t, j.applyMeasured([]float64{1, 2, 3, 4, 5, 6}))

	for i, js := range j.Snapshot() {
		assert.Equal(t, float64(i+1), js.MeasuredAngle)
	}
}

func TestJointsApplyMeasuredRejectsBadLength(t *testing.T) {
	t.Parallel()

	j := NewJoints(nil)
	require.NoError(t, j.applyMeasured([]float64{1, 2, 3, 4, 5, 6}))

	require.Error(t, j.applyMeasured([]float64{9, 9}))
	require.Error(t, j.applyMeasured(nil))

	// Nothing was partially applied.
	for i, js := range j.Snapshot() {
		assert.Equal(t, float64(i+1), js.MeasuredAngle)
	}
}

func TestJointsSnapshotIsACopy(t *testing.T) {
	t.Parallel()

	j := NewJoints(nil)
	j.setCommanded(0, 90, 45)

	snap := j.Snapshot()
	snap[0].CommandedAngle = -777

	js, ok := j.State(0)
	require.True(t, ok)
	assert.Equal(t, 90.0, js.CommandedAngle)
}

func TestJointsMetaBounds(t *testing.T) {
	t.Parallel()

	custom := []Joint{
		{Name: "gripper", MinAngle: 0, MaxAngle: 90, MinSpeed: 0, MaxSpeed: 45},
	}
	j := NewJoints(custom)
	require.Equal(t, 1, j.Count())

	meta, ok := j.Meta(0)
	require.True(t, ok)
	assert.Equal(t, "gripper", meta.Name)
	assert.Equal(t, 90.0, meta.MaxAngle)

	_, ok = j.Meta(1)
	assert.False(t, ok)
	_, ok = j.State(-1)
	assert.False(t, ok)
}
