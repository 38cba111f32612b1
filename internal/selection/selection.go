// Package selection decides which photo is focused. It is the only writer
// of the focused id.
package selection

import (
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/ayusman/tinsel/internal/gesture"
	"github.com/ayusman/tinsel/internal/spatial"
)

// Candidate is a selectable object's pick volume in world space.
type Candidate struct {
	ID     string
	Center mgl64.Vec3
	Radius float64
}

// Input is one frame's worth of selection state.
type Input struct {
	Signal gesture.Signal
	// Dispersion is the smoothed dispersion the scene is showing.
	Dispersion float64
	Camera     spatial.Camera
	Candidates []Candidate
	// Current is the focused id from the previous frame, or "".
	Current string
	Dt      time.Duration
}

// active reports whether the select gesture is held by a tracked hand. The
// cursor of an absent hand is never used.
func (in Input) active() bool {
	return in.Signal.HandPresent && in.Signal.Discrete
}

// Policy resolves the focused id for one frame.
type Policy interface {
	Name() string
	Resolve(in Input) string
	Reset()
}

// Config selects and tunes the gesture policy.
type Config struct {
	Policy        string        `mapstructure:"policy"`
	Debounce      time.Duration `mapstructure:"debounce"`
	MinDispersion float64       `mapstructure:"minDispersion"`
}

// DefaultConfig returns the raycast policy with a short debounce.
func DefaultConfig() Config {
	return Config{
		Policy:        PolicyRaycast,
		Debounce:      150 * time.Millisecond,
		MinDispersion: 0.5,
	}
}

// Policy names.
const (
	PolicyRaycast = "raycast"
	PolicyRandom  = "random"
)

// New builds the configured policy. rng is used by the random policy and
// may be nil.
func New(config Config, rng *rand.Rand) (Policy, error) {
	switch config.Policy {
	case PolicyRaycast, "":
		return NewRaycastPolicy(config.Debounce), nil
	case PolicyRandom:
		return NewRandomPolicy(config.MinDispersion, rng), nil
	}
	return nil, fmt.Errorf("unknown selection policy %q", config.Policy)
}

// Nearest returns the candidate whose pick sphere the ray hits closest to
// its origin.
func Nearest(ray spatial.Ray, candidates []Candidate) (string, float64, bool) {
	best, bestDist := "", math.Inf(1)
	for _, c := range candidates {
		d, ok := ray.IntersectSphere(c.Center, c.Radius)
		if ok && d < bestDist {
			best, bestDist = c.ID, d
		}
	}
	return best, bestDist, best != ""
}

// Click toggles focus for a pointer click at ndc: clicking the focused
// object or empty space clears focus, clicking another object focuses it.
func Click(x, y float64, camera spatial.Camera, candidates []Candidate, current string) string {
	hit, _, ok := Nearest(camera.Ray(x, y), candidates)
	if !ok || hit == current {
		return ""
	}
	return hit
}

// RaycastPolicy focuses whatever the cursor points at while the gesture is
// held. Moving focus from one object to another waits until the new hit has
// been stable for Debounce.
type RaycastPolicy struct {
	Debounce time.Duration

	pending    string
	pendingFor time.Duration
}

// NewRaycastPolicy creates a RaycastPolicy.
func NewRaycastPolicy(debounce time.Duration) *RaycastPolicy {
	return &RaycastPolicy{Debounce: debounce}
}

// Name returns "raycast".
func (p *RaycastPolicy) Name() string { return PolicyRaycast }

// Resolve implements Policy.
func (p *RaycastPolicy) Resolve(in Input) string {
	if !in.active() {
		p.Reset()
		return ""
	}

	ray := in.Camera.Ray(in.Signal.Cursor.X, in.Signal.Cursor.Y)
	hit, _, ok := Nearest(ray, in.Candidates)
	if !ok {
		p.Reset()
		return in.Current
	}
	if in.Current == "" || hit == in.Current {
		p.Reset()
		return hit
	}

	if hit != p.pending {
		p.pending, p.pendingFor = hit, 0
	}
	p.pendingFor += in.Dt
	if p.pendingFor >= p.Debounce {
		p.Reset()
		return hit
	}
	return in.Current
}

// Reset drops any pending retarget.
func (p *RaycastPolicy) Reset() {
	p.pending, p.pendingFor = "", 0
}

// RandomPolicy picks a random photo when the gesture starts while the scene
// is dispersed.
type RandomPolicy struct {
	MinDispersion float64

	rng  *rand.Rand
	prev bool
}

// NewRandomPolicy creates a RandomPolicy. A nil rng is seeded randomly.
func NewRandomPolicy(minDispersion float64, rng *rand.Rand) *RandomPolicy {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &RandomPolicy{MinDispersion: minDispersion, rng: rng}
}

// Name returns "random".
func (p *RandomPolicy) Name() string { return PolicyRandom }

// Resolve implements Policy. Only the rising edge of the gesture selects, so
// holding it selects once.
func (p *RandomPolicy) Resolve(in Input) string {
	active := in.active()
	rising := active && !p.prev
	p.prev = active

	if !active || in.Dispersion < p.MinDispersion {
		return ""
	}
	if in.Current != "" {
		return in.Current
	}
	if rising && len(in.Candidates) > 0 {
		return in.Candidates[p.rng.IntN(len(in.Candidates))].ID
	}
	return ""
}

// Reset forgets the previous gesture state.
func (p *RandomPolicy) Reset() {
	p.prev = false
}
