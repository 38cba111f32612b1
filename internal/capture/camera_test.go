package capture

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

func TestNewCamera(t *testing.T) {
	for _, deviceID := range []int{0, 1, 2} {
		cam := NewCamera(deviceID)
		require.NotNil(t, cam)
		assert.Equal(t, DefaultFPS, cam.FPS())
		assert.False(t, cam.IsOpen(), "camera should not be running initially")
	}
}

func TestCamera_SetFPS(t *testing.T) {
	cam := NewCamera(0)

	tests := []struct {
		name    string
		fps     int
		wantFPS int
	}{
		{name: "set to 10", fps: 10, wantFPS: 10},
		{name: "set to 30", fps: 30, wantFPS: 30},
		{name: "set to 1", fps: 1, wantFPS: 1},
		{name: "set to 0 should keep previous", fps: 0, wantFPS: 1},
		{name: "set to negative should keep previous", fps: -5, wantFPS: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cam.SetFPS(tt.fps)
			assert.Equal(t, tt.wantFPS, cam.FPS())
		})
	}
}

func TestCamera_ReadFrame_NotOpened(t *testing.T) {
	cam := NewCamera(0)

	_, err := cam.ReadFrame()
	assert.ErrorIs(t, err, ErrCameraNotOpen)
}

func TestCamera_Close_NotOpened(t *testing.T) {
	cam := NewCamera(0)
	assert.NoError(t, cam.Close())
}

func TestCamera_OpenClose_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	cam := NewCamera(0)
	if err := cam.Open(); err != nil {
		t.Skipf("skipping test - camera not available: %v", err)
	}
	assert.True(t, cam.IsOpen())

	first, err := cam.ReadFrame()
	require.NoError(t, err)
	defer first.Close()
	assert.True(t, first.Valid())

	second, err := cam.ReadFrame()
	require.NoError(t, err)
	defer second.Close()
	assert.GreaterOrEqual(t, second.TimestampMs, first.TimestampMs)

	require.NoError(t, cam.Close())
	assert.False(t, cam.IsOpen())
}

func TestFrame_Valid(t *testing.T) {
	t.Run("nil frame", func(t *testing.T) {
		var f *Frame
		assert.False(t, f.Valid())
		assert.NoError(t, f.Close())
	})

	t.Run("zero dimensions", func(t *testing.T) {
		f := &Frame{Width: 0, Height: 480}
		assert.False(t, f.Valid())
	})

	t.Run("populated frame", func(t *testing.T) {
		if testing.Short() {
			t.Skip("skipping test that requires GoCV Mat creation")
		}
		mat := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)
		f := &Frame{Mat: mat, Width: 640, Height: 480}
		defer f.Close()
		assert.True(t, f.Valid())
	})

	t.Run("empty mat", func(t *testing.T) {
		if testing.Short() {
			t.Skip("skipping test that requires GoCV Mat creation")
		}
		f := &Frame{Mat: gocv.NewMat(), Width: 640, Height: 480}
		defer f.Close()
		assert.False(t, f.Valid())
	})
}
