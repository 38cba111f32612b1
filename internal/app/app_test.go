package app

import (
	"context"
	"math"
	"math/rand/v2"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/tinsel/internal/control"
	"github.com/ayusman/tinsel/internal/gesture"
	"github.com/ayusman/tinsel/internal/scene"
	"github.com/ayusman/tinsel/internal/selection"
	"github.com/ayusman/tinsel/internal/spatial"
	"github.com/ayusman/tinsel/internal/store"
)

const tick = time.Second / 60

// recorder keeps every frame handed to the renderer.
type recorder struct {
	frames []scene.Frame
}

func (r *recorder) Render(f scene.Frame) {
	r.frames = append(r.frames, f)
}

func (r *recorder) last() scene.Frame {
	return r.frames[len(r.frames)-1]
}

func newTestSession(t *testing.T, config Config) (*Session, *recorder) {
	t.Helper()
	if config.Rand == nil {
		config.Rand = rand.New(rand.NewPCG(1, 2))
	}
	rec := &recorder{}
	s, err := New(config, rec)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, rec
}

// project returns the NDC position of a world point.
func project(cam spatial.Camera, p mgl64.Vec3) gesture.Cursor {
	local := cam.Rotation.Inverse().Rotate(p.Sub(cam.Position))
	tanHalf := math.Tan(cam.FovY / 2)
	return gesture.Cursor{
		X: (local.X() / -local.Z()) / (tanHalf * cam.Aspect),
		Y: (local.Y() / -local.Z()) / tanHalf,
	}
}

// screenPos returns where the object with id was drawn in frame f.
func screenPos(t *testing.T, s *Session, f scene.Frame, id string) gesture.Cursor {
	t.Helper()
	for _, o := range f.Objects {
		if o.ID == id {
			world := spatial.YawFrame(f.Yaw).ToWorld(mgl64.Vec3(o.Position))
			return project(s.Camera(), world)
		}
	}
	require.Failf(t, "object missing", "id %q", id)
	return gesture.Cursor{}
}

func objectState(f scene.Frame, id string) string {
	for _, o := range f.Objects {
		if o.ID == id {
			return o.State
		}
	}
	return ""
}

func renderUntil(t *testing.T, s *Session, rec *recorder, done func(scene.Frame) bool) scene.Frame {
	t.Helper()
	for i := 0; i < 600; i++ {
		f := s.renderTick(context.Background(), tick)
		if done(f) {
			return f
		}
	}
	require.Fail(t, "condition not reached")
	return rec.last()
}

func TestNew(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		s, _ := newTestSession(t, Config{})
		cfg := s.Config()
		assert.Equal(t, RenderFPS, cfg.RenderFPS)
		assert.Equal(t, IdleFPS, cfg.IdleFPS)
		assert.Equal(t, ActiveFPS, cfg.ActiveFPS)
		assert.Equal(t, selection.PolicyRaycast, cfg.Selection.Policy)
		assert.Equal(t, gesture.TriggerPinch, cfg.Gesture.Trigger)

		snap := s.State().Snapshot()
		assert.Equal(t, control.ModePointer, snap.Mode)
		assert.Equal(t, control.AvailabilityOff, snap.Availability)
		assert.Empty(t, snap.FocusedID)
	})

	t.Run("unknown policy", func(t *testing.T) {
		_, err := New(Config{Selection: selection.Config{Policy: "telepathy"}}, nil)
		assert.Error(t, err)
	})

	t.Run("unknown trigger", func(t *testing.T) {
		cfg := gesture.DefaultConfig()
		cfg.Trigger = "wave"
		_, err := New(Config{Gesture: cfg}, nil)
		assert.Error(t, err)
	})
}

func TestSession_RenderTick_Empty(t *testing.T) {
	s, rec := newTestSession(t, Config{})

	f := s.renderTick(context.Background(), tick)
	assert.Equal(t, uint64(1), f.Seq)
	assert.Empty(t, f.Objects)
	assert.Equal(t, "pointer", f.Mode)
	assert.Equal(t, "off", f.Availability)
	require.Len(t, rec.frames, 1)
}

func TestSession_PointerClickFocus(t *testing.T) {
	s, rec := newTestSession(t, Config{})
	s.SetObjects([]string{"p1"})

	f := s.renderTick(context.Background(), tick)
	require.Len(t, f.Objects, 1)
	pos := screenPos(t, s, f, "p1")

	id, ok := s.Click(pos.X, pos.Y)
	require.True(t, ok)
	assert.Equal(t, "p1", id)

	f = renderUntil(t, s, rec, func(f scene.Frame) bool {
		return objectState(f, "p1") == "focused"
	})
	assert.Equal(t, "p1", f.FocusedID)
	assert.Equal(t, "p1", s.State().FocusedID())

	// A click on empty sky releases focus.
	id, ok = s.Click(0.99, 0.99)
	require.True(t, ok)
	assert.Empty(t, id)

	renderUntil(t, s, rec, func(f scene.Frame) bool {
		return objectState(f, "p1") == "resting"
	})
	assert.Empty(t, s.State().FocusedID())
}

func TestSession_ClickIgnoredInGestureMode(t *testing.T) {
	s, _ := newTestSession(t, Config{})
	s.SetObjects([]string{"p1"})
	s.renderTick(context.Background(), tick)

	s.state.SetMode(control.ModeGesture)
	_, ok := s.Click(0, 0)
	assert.False(t, ok)
}

func TestSession_DragSpinsAndCoasts(t *testing.T) {
	s, _ := newTestSession(t, Config{})
	s.SetObjects([]string{"p1", "p2"})

	s.Drag(0.5)
	prev := s.renderTick(context.Background(), tick).Yaw
	assert.Greater(t, prev, 0.0)

	var lastStep float64
	for i := 0; i < 300; i++ {
		yaw := s.renderTick(context.Background(), tick).Yaw
		assert.GreaterOrEqual(t, yaw, prev)
		lastStep = yaw - prev
		prev = yaw
	}
	assert.InDelta(t, 0, lastStep, 1e-6)
	assert.InDelta(t, prev, s.State().Yaw(), 1e-12)
}

func TestSession_PointerDispersion(t *testing.T) {
	s, rec := newTestSession(t, Config{})
	s.SetObjects([]string{"p1"})

	s.SetDispersion(3)
	prev := 0.0
	f := renderUntil(t, s, rec, func(f scene.Frame) bool {
		assert.GreaterOrEqual(t, f.Dispersion, prev)
		prev = f.Dispersion
		return f.Dispersion == 1
	})
	assert.Equal(t, 1.0, f.Dispersion)
}

func TestSession_FrameCarriesOffsets(t *testing.T) {
	s, _ := newTestSession(t, Config{})
	s.SetObjects([]string{"p1", "p2"})

	f := s.renderTick(context.Background(), tick)
	require.Len(t, f.Objects, 2)
	for _, o := range f.Objects {
		want := s.layout.Offset(o.ID)
		assert.Equal(t, [3]float64{want.X(), want.Y(), want.Z()}, o.Offset, o.ID)
		assert.NotEqual(t, [3]float64{}, o.Offset, o.ID)
	}
	assert.NotEqual(t, f.Objects[0].Offset, f.Objects[1].Offset)
}

func TestSession_GestureFocusDampsRotation(t *testing.T) {
	s, rec := newTestSession(t, Config{})
	s.SetObjects([]string{"p1"})
	s.state.SetMode(control.ModeGesture)

	f := s.renderTick(context.Background(), tick)
	assert.Equal(t, "gesture", f.Mode)
	cursor := screenPos(t, s, f, "p1")

	held := gesture.Signal{HandPresent: true, Discrete: true, Cursor: cursor, RotationSpeed: 1}
	s.gestures.Publish(control.Update{Signal: held})

	before := s.State().Yaw()
	f = s.renderTick(context.Background(), tick)
	require.Equal(t, "p1", f.FocusedID, "raycast focuses the photo under the cursor")
	assert.InDelta(t, 0.05*tick.Seconds(), f.Yaw-before, 1e-9)
	assert.True(t, f.HandPresent)
	assert.Equal(t, cursor, f.Cursor)

	f = renderUntil(t, s, rec, func(f scene.Frame) bool {
		return objectState(f, "p1") == "focused"
	})
	assert.Equal(t, "p1", f.FocusedID)

	released := held
	released.Discrete = false
	s.gestures.Publish(control.Update{Signal: released})

	before = f.Yaw
	f = s.renderTick(context.Background(), tick)
	assert.Empty(t, f.FocusedID)
	assert.InDelta(t, tick.Seconds(), f.Yaw-before, 1e-9)
}

func TestSession_ModeSwitchHandsOverFocus(t *testing.T) {
	s, _ := newTestSession(t, Config{})
	s.SetObjects([]string{"p1"})
	f := s.renderTick(context.Background(), tick)
	pos := screenPos(t, s, f, "p1")

	_, ok := s.Click(pos.X, pos.Y)
	require.True(t, ok)
	s.renderTick(context.Background(), tick)
	require.Equal(t, "p1", s.State().FocusedID())

	// Gesture mode with no hand: the raycast policy clears focus.
	s.state.SetMode(control.ModeGesture)
	s.renderTick(context.Background(), tick)
	assert.Empty(t, s.State().FocusedID())

	// Back to pointer mode, the pointer focus follows the shared state.
	s.state.SetMode(control.ModePointer)
	s.renderTick(context.Background(), tick)
	assert.Empty(t, s.State().FocusedID())
}

func TestSession_SetCamera(t *testing.T) {
	s, _ := newTestSession(t, Config{})

	s.SetCamera(spatial.Camera{Position: mgl64.Vec3{0, 0, 5}})
	cam := s.Camera()
	def := spatial.DefaultCamera()
	assert.Equal(t, mgl64.Vec3{0, 0, 5}, cam.Position)
	assert.Equal(t, def.FovY, cam.FovY)
	assert.Equal(t, def.Aspect, cam.Aspect)
	assert.Equal(t, def.Rotation, cam.Rotation)
}

func TestSession_LoadGallery(t *testing.T) {
	st, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	defer st.Close()

	var ids []string
	for _, name := range []string{"a.jpg", "b.jpg", "c.jpg"} {
		p := &store.Photo{Title: name, Path: "/photos/" + name, Width: 10, Height: 10}
		require.NoError(t, st.Photos().Create(p))
		ids = append(ids, p.ID)
	}

	s, _ := newTestSession(t, Config{Store: st})
	require.NoError(t, s.LoadGallery())

	f := s.renderTick(context.Background(), tick)
	require.Len(t, f.Objects, 3)
	for i, o := range f.Objects {
		assert.Equal(t, ids[i], o.ID)
		assert.Equal(t, "resting", o.State)
	}

	t.Run("reload drops deleted photos", func(t *testing.T) {
		pos := screenPos(t, s, f, ids[1])
		_, ok := s.Click(pos.X, pos.Y)
		require.True(t, ok)

		require.NoError(t, st.Photos().Delete(ids[1]))
		require.NoError(t, s.LoadGallery())

		f := s.renderTick(context.Background(), tick)
		require.Len(t, f.Objects, 2)
		assert.Equal(t, ids[0], f.Objects[0].ID)
		assert.Equal(t, ids[2], f.Objects[1].ID)
		assert.Empty(t, f.FocusedID)
	})
}

func TestSession_LoadGallery_NoStore(t *testing.T) {
	s, _ := newTestSession(t, Config{})
	assert.NoError(t, s.LoadGallery())
}

func TestSession_Run(t *testing.T) {
	s, rec := newTestSession(t, Config{RenderFPS: 200})
	s.SetObjects([]string{"p1"})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	err := s.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.NotEmpty(t, rec.frames)
}
