package detector

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const epsilon = 1e-9

func TestDistance2D(t *testing.T) {
	t.Run("ignores depth", func(t *testing.T) {
		a := Point3D{X: 0.1, Y: 0.1, Z: 5}
		b := Point3D{X: 0.4, Y: 0.5, Z: -3}
		assert.InDelta(t, 0.5, Distance2D(a, b), epsilon)
	})

	t.Run("zero for identical points", func(t *testing.T) {
		p := Point3D{X: 0.3, Y: 0.7}
		assert.Zero(t, Distance2D(p, p))
	})
}

func TestHandLandmarks_Span(t *testing.T) {
	open := OpenPalmLandmarks()
	assert.InDelta(t, 0.52, open.Span(Wrist, MiddleTip), epsilon)

	closed := ClosedHandLandmarks()
	assert.InDelta(t, math.Sqrt(0.0125), closed.Span(Wrist, MiddleTip), epsilon)
}

func TestPickBest(t *testing.T) {
	t.Run("empty returns nil", func(t *testing.T) {
		assert.Nil(t, pickBest(nil))
	})

	t.Run("highest score wins", func(t *testing.T) {
		low := OpenPalmLandmarks()
		low.Score = 0.6
		high := ClosedHandLandmarks()
		high.Score = 0.9

		best := pickBest([]HandLandmarks{low, high})
		require.NotNil(t, best)
		assert.Equal(t, 0.9, best.Score)
	})
}

func TestMockSource(t *testing.T) {
	t.Run("reports no hand by default", func(t *testing.T) {
		mock := NewMockSource()

		pose, err := mock.Detect(nil, 10)

		require.NoError(t, err)
		assert.Nil(t, pose)
		assert.Equal(t, 1, mock.Calls())
	})

	t.Run("returns configured hand with timestamp", func(t *testing.T) {
		mock := NewMockSource()
		mock.SetHands(OpenPalmLandmarks())

		pose, err := mock.Detect(nil, 42)

		require.NoError(t, err)
		require.NotNil(t, pose)
		assert.Equal(t, int64(42), pose.TimestampMs)
		assert.Equal(t, "Right", pose.Landmarks.Handedness)
	})

	t.Run("returns configured error", func(t *testing.T) {
		mock := NewMockSource()
		expectedErr := errors.New("detection failed")
		mock.SetError(expectedErr)

		pose, err := mock.Detect(nil, 1)

		assert.Same(t, expectedErr, err)
		assert.Nil(t, pose)
	})

	t.Run("defers until ready", func(t *testing.T) {
		mock := NewMockSource()
		mock.SetState(StateStarting)

		_, err := mock.Detect(nil, 1)

		assert.ErrorIs(t, err, ErrNotReady)
		assert.Zero(t, mock.Calls())
	})

	t.Run("failed source stays unavailable", func(t *testing.T) {
		mock := NewMockSource()
		mock.SetState(StateFailed)

		_, err := mock.Detect(nil, 1)

		assert.ErrorIs(t, err, ErrUnavailable)
	})

	t.Run("implements LandmarkSource interface", func(t *testing.T) {
		var _ LandmarkSource = (*MockSource)(nil)
		var _ LandmarkSource = (*MediaPipeSource)(nil)
	})
}

func TestFixtures(t *testing.T) {
	t.Run("pinch brings thumb and index together", func(t *testing.T) {
		pinch := PinchLandmarks()
		assert.Less(t, pinch.Span(ThumbTip, IndexTip), 0.05)
	})

	t.Run("open palm and closed hand are not pinches", func(t *testing.T) {
		open := OpenPalmLandmarks()
		closed := ClosedHandLandmarks()
		assert.Greater(t, open.Span(ThumbTip, IndexTip), 0.05)
		assert.Greater(t, closed.Span(ThumbTip, IndexTip), 0.05)
	})

	t.Run("WithIndexAt keeps the hand shape", func(t *testing.T) {
		open := OpenPalmLandmarks()
		moved := WithIndexAt(open, 0.2, 0.3)

		assert.InDelta(t, 0.2, moved.Points[IndexTip].X, epsilon)
		assert.InDelta(t, 0.3, moved.Points[IndexTip].Y, epsilon)
		assert.InDelta(t, open.Span(Wrist, MiddleTip), moved.Span(Wrist, MiddleTip), epsilon)
	})
}

func TestState_String(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateIdle, "idle"},
		{StateStarting, "starting"},
		{StateReady, "ready"},
		{StateFailed, "failed"},
		{State(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.state.String())
		})
	}
}
