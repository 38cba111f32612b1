package scene

import (
	"math"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/tinsel/internal/focus"
	"github.com/ayusman/tinsel/internal/spatial"
)

func TestRotation_Advance(t *testing.T) {
	tests := []struct {
		name       string
		config     RotationConfig
		speed      float64
		dt         time.Duration
		focused    bool
		dispersion float64
		want       float64
	}{
		{"undamped", DefaultRotationConfig(), 2, 500 * time.Millisecond, false, 0, 1},
		{"negative speed", DefaultRotationConfig(), -0.5, 2 * time.Second, false, 0, -1},
		{"focused", DefaultRotationConfig(), 2, 500 * time.Millisecond, true, 0, 1 * 0.05},
		{"dispersion disabled by default", DefaultRotationConfig(), 2, 500 * time.Millisecond, false, 1, 1},
		{
			"dispersion damped",
			RotationConfig{FocusDamping: 0.05, DispersionDamping: 0.5, DispersionDampAbove: 0.8},
			2, 500 * time.Millisecond, false, 0.9, 0.5,
		},
		{
			"damping composes",
			RotationConfig{FocusDamping: 0.1, DispersionDamping: 0.5, DispersionDampAbove: 0.8},
			2, 500 * time.Millisecond, true, 0.9, 1 * 0.1 * 0.5,
		},
		{"zero dt", DefaultRotationConfig(), 2, 0, false, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRotation(tt.config)
			got := r.Advance(tt.speed, tt.dt, tt.focused, tt.dispersion)
			assert.InDelta(t, tt.want, got, 1e-12)
			assert.Equal(t, got, r.Yaw())
		})
	}
}

func TestRotation_Accumulates(t *testing.T) {
	r := NewRotation(DefaultRotationConfig())
	for i := 0; i < 100; i++ {
		r.Advance(1.5, 10*time.Millisecond, false, 0)
	}
	assert.InDelta(t, 1.5, r.Yaw(), 1e-9)

	r.SetYaw(0)
	for i := 0; i < 100; i++ {
		r.Advance(1.5, 10*time.Millisecond, true, 0)
	}
	assert.InDelta(t, 1.5*0.05, r.Yaw(), 1e-9)
}

func TestOrbit(t *testing.T) {
	o := NewOrbit(60, 3)
	assert.Zero(t, o.Step())

	o.Drag(0.5)
	assert.InDelta(t, 1.5, o.Velocity(), 1e-12)

	first := o.Step()
	assert.InDelta(t, 1.5, first, 1e-12)

	prev := first
	for i := 0; i < 300; i++ {
		v := o.Step()
		assert.GreaterOrEqual(t, v, -1e-9, "velocity must not reverse")
		assert.LessOrEqual(t, v, prev+1e-9)
		prev = v
	}
	assert.InDelta(t, 0, o.Velocity(), 1e-3)

	o.Drag(1)
	o.Stop()
	assert.Zero(t, o.Velocity())
}

func TestLayout_Arrange(t *testing.T) {
	l := NewLayout(DefaultLayoutConfig())
	ids := []string{"a", "b", "c", "d"}
	l.Arrange(ids)
	assert.Equal(t, ids, l.ids())

	cfg := l.Config()
	prevY := math.Inf(-1)
	for _, id := range ids {
		p := l.Rest(id, 0)
		y := p.Position.Y()
		assert.Greater(t, y, prevY, "spiral climbs the tree")
		assert.GreaterOrEqual(t, y, cfg.Bottom)
		assert.LessOrEqual(t, y, cfg.Bottom+cfg.Height)

		radial := math.Hypot(p.Position.X(), p.Position.Z())
		assert.LessOrEqual(t, radial, cfg.Radius)
		assert.Equal(t, cfg.PhotoScale, p.Scale)
		prevY = y
	}
}

func TestLayout_FacesOutward(t *testing.T) {
	l := NewLayout(DefaultLayoutConfig())
	l.Arrange([]string{"a", "b", "c"})

	for _, id := range []string{"a", "b", "c"} {
		p := l.Rest(id, 0)
		outward := mgl64.Vec3{p.Position.X(), 0, p.Position.Z()}.Normalize()
		front := p.Rotation.Rotate(mgl64.Vec3{0, 0, 1})
		assert.InDelta(t, 1, front.Dot(outward), 1e-9, id)
	}
}

func TestLayout_Dispersion(t *testing.T) {
	l := NewLayout(DefaultLayoutConfig())
	l.Arrange([]string{"a", "b"})

	t.Run("pushed outward", func(t *testing.T) {
		rest := l.Rest("a", 0)
		spread := l.Rest("a", 1)
		offset := l.Offset("a")
		want := mgl64.Vec3{
			rest.Position.X()*(1+l.Config().Spread) + offset.X(),
			rest.Position.Y() + offset.Y(),
			rest.Position.Z()*(1+l.Config().Spread) + offset.Z(),
		}
		assert.InDelta(t, 0, spread.Position.Sub(want).Len(), 1e-9)
	})

	t.Run("offsets are stable per id", func(t *testing.T) {
		other := NewLayout(DefaultLayoutConfig())
		other.Arrange([]string{"b", "a"})
		assert.Equal(t, l.Offset("a"), other.Offset("a"))
		assert.NotEqual(t, l.Offset("a"), l.Offset("b"))

		for i := 0; i < 3; i++ {
			assert.LessOrEqual(t, math.Abs(l.Offset("a")[i]), l.Config().Jitter)
		}
	})

	t.Run("unknown id", func(t *testing.T) {
		p := l.Rest("missing", 0.5)
		assert.Equal(t, mgl64.Vec3{}, p.Position)
	})
}

func TestTransform(t *testing.T) {
	p := focus.Placement{
		ID: "a",
		Pose: spatial.Pose{
			Position: mgl64.Vec3{1, 2, 3},
			Rotation: spatial.Yaw(math.Pi),
			Scale:    2,
		},
		Progress: 1,
		State:    focus.Focused,
	}

	ot := Transform(p, mgl64.Vec3{0.5, -0.25, 1})
	assert.Equal(t, "a", ot.ID)
	assert.Equal(t, [3]float64{0.5, -0.25, 1}, ot.Offset)
	assert.Equal(t, [3]float64{1, 2, 3}, ot.Position)
	assert.InDelta(t, 1, ot.Rotation[1], 1e-9)
	assert.InDelta(t, 0, ot.Rotation[3], 1e-9)
	assert.Equal(t, 2.0, ot.Scale)
	assert.Equal(t, "focused", ot.State)
}

func TestRendererFunc(t *testing.T) {
	var got Frame
	var r Renderer = RendererFunc(func(f Frame) { got = f })
	r.Render(Frame{Seq: 7, Yaw: 1})
	require.Equal(t, uint64(7), got.Seq)
}
