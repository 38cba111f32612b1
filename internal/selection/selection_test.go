package selection

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/tinsel/internal/gesture"
	"github.com/ayusman/tinsel/internal/spatial"
)

const frame = time.Second / 60

var candidates = []Candidate{
	{ID: "far", Center: mgl64.Vec3{0, 2, 0}, Radius: 0.6},
	{ID: "near", Center: mgl64.Vec3{0, 2, 5}, Radius: 0.6},
	{ID: "side", Center: mgl64.Vec3{3, 2, 5}, Radius: 0.6},
}

// cursorAt returns the NDC cursor that points the default camera at p.
func cursorAt(p mgl64.Vec3) gesture.Cursor {
	cam := spatial.DefaultCamera()
	d := p.Sub(cam.Position)
	depth := -d.Z()
	tanHalf := 0.41421356237309503 // tan(22.5 degrees)
	return gesture.Cursor{
		X: d.X() / depth / tanHalf / cam.Aspect,
		Y: d.Y() / depth / tanHalf,
	}
}

func held(cursor gesture.Cursor) gesture.Signal {
	return gesture.Signal{HandPresent: true, Discrete: true, Cursor: cursor, Dispersion: 1}
}

func in(sig gesture.Signal, current string) Input {
	return Input{
		Signal:     sig,
		Dispersion: sig.Dispersion,
		Camera:     spatial.DefaultCamera(),
		Candidates: candidates,
		Current:    current,
		Dt:         frame,
	}
}

func TestNearest(t *testing.T) {
	cam := spatial.DefaultCamera()

	t.Run("nearest of overlapping hits", func(t *testing.T) {
		id, dist, ok := Nearest(cam.Ray(0, 0), candidates)
		require.True(t, ok)
		assert.Equal(t, "near", id)
		assert.InDelta(t, 10.4, dist, 1e-9)
	})

	t.Run("off-axis hit", func(t *testing.T) {
		c := cursorAt(mgl64.Vec3{3, 2, 5})
		id, _, ok := Nearest(cam.Ray(c.X, c.Y), candidates)
		require.True(t, ok)
		assert.Equal(t, "side", id)
	})

	t.Run("miss", func(t *testing.T) {
		_, _, ok := Nearest(cam.Ray(0, 0.9), candidates)
		assert.False(t, ok)
	})

	t.Run("empty", func(t *testing.T) {
		_, _, ok := Nearest(cam.Ray(0, 0), nil)
		assert.False(t, ok)
	})
}

func TestClick(t *testing.T) {
	cam := spatial.DefaultCamera()

	assert.Equal(t, "near", Click(0, 0, cam, candidates, ""))
	assert.Equal(t, "", Click(0, 0, cam, candidates, "near"), "clicking focused toggles off")
	assert.Equal(t, "near", Click(0, 0, cam, candidates, "side"))
	assert.Equal(t, "", Click(0, 0.9, cam, candidates, "near"), "empty space clears")
}

func TestNew(t *testing.T) {
	p, err := New(DefaultConfig(), nil)
	require.NoError(t, err)
	assert.Equal(t, PolicyRaycast, p.Name())

	p, err = New(Config{}, nil)
	require.NoError(t, err)
	assert.Equal(t, PolicyRaycast, p.Name())

	p, err = New(Config{Policy: PolicyRandom}, nil)
	require.NoError(t, err)
	assert.Equal(t, PolicyRandom, p.Name())

	_, err = New(Config{Policy: "nearest"}, nil)
	assert.Error(t, err)
}

func TestRaycastPolicy(t *testing.T) {
	center := gesture.Cursor{}

	t.Run("gesture held on hit focuses", func(t *testing.T) {
		p := NewRaycastPolicy(0)
		assert.Equal(t, "near", p.Resolve(in(held(center), "")))
	})

	t.Run("gesture released clears", func(t *testing.T) {
		p := NewRaycastPolicy(0)
		sig := held(center)
		sig.Discrete = false
		assert.Equal(t, "", p.Resolve(in(sig, "near")))
	})

	t.Run("held without hit keeps focus", func(t *testing.T) {
		p := NewRaycastPolicy(0)
		assert.Equal(t, "near", p.Resolve(in(held(gesture.Cursor{Y: 0.9}), "near")))
	})

	t.Run("absent hand ignores cursor", func(t *testing.T) {
		p := NewRaycastPolicy(0)
		sig := held(center)
		sig.HandPresent = false
		assert.Equal(t, "", p.Resolve(in(sig, "")))
	})

	t.Run("retarget waits for debounce", func(t *testing.T) {
		p := NewRaycastPolicy(90 * time.Millisecond)
		side := held(cursorAt(mgl64.Vec3{3, 2, 5}))

		frames := 0
		for p.Resolve(in(side, "near")) == "near" {
			frames++
			require.Less(t, frames, 60)
		}
		assert.Equal(t, 5, frames)
	})

	t.Run("flicker does not retarget", func(t *testing.T) {
		p := NewRaycastPolicy(100 * time.Millisecond)
		side := held(cursorAt(mgl64.Vec3{3, 2, 5}))
		for i := 0; i < 30; i++ {
			sig := side
			if i%3 == 2 {
				sig = held(center)
			}
			assert.Equal(t, "near", p.Resolve(in(sig, "near")), "frame %d", i)
		}
	})
}

func TestRandomPolicy(t *testing.T) {
	newPolicy := func() *RandomPolicy {
		return NewRandomPolicy(0.5, rand.New(rand.NewPCG(1, 2)))
	}

	t.Run("held gesture selects once", func(t *testing.T) {
		p := newPolicy()
		current := ""
		selections := 0
		for i := 0; i < 10; i++ {
			next := p.Resolve(in(held(gesture.Cursor{}), current))
			if next != "" && next != current {
				selections++
			}
			current = next
		}
		assert.Equal(t, 1, selections)
		assert.NotEmpty(t, current)
	})

	t.Run("held gesture after external clear does not reselect", func(t *testing.T) {
		p := newPolicy()
		sig := held(gesture.Cursor{})
		require.NotEmpty(t, p.Resolve(in(sig, "")))
		assert.Empty(t, p.Resolve(in(sig, "")))
	})

	t.Run("release clears", func(t *testing.T) {
		p := newPolicy()
		sig := held(gesture.Cursor{})
		id := p.Resolve(in(sig, ""))
		require.NotEmpty(t, id)

		sig.Discrete = false
		assert.Empty(t, p.Resolve(in(sig, id)))
	})

	t.Run("low dispersion blocks and clears", func(t *testing.T) {
		p := newPolicy()
		sig := held(gesture.Cursor{})
		sig.Dispersion = 0.2
		assert.Empty(t, p.Resolve(in(sig, "")))

		p = newPolicy()
		id := p.Resolve(in(held(gesture.Cursor{}), ""))
		require.NotEmpty(t, id)
		assert.Empty(t, p.Resolve(in(sig, id)))
	})

	t.Run("new press selects again", func(t *testing.T) {
		p := newPolicy()
		sig := held(gesture.Cursor{})
		require.NotEmpty(t, p.Resolve(in(sig, "")))

		sig.Discrete = false
		p.Resolve(in(sig, ""))
		sig.Discrete = true
		assert.NotEmpty(t, p.Resolve(in(sig, "")))
	})

	t.Run("no candidates", func(t *testing.T) {
		p := newPolicy()
		input := in(held(gesture.Cursor{}), "")
		input.Candidates = nil
		assert.Empty(t, p.Resolve(input))
	})
}
