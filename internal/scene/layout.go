package scene

import (
	"hash/fnv"
	"math"
	"math/rand/v2"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/ayusman/tinsel/internal/spatial"
)

// goldenAngle spaces consecutive photos evenly around the cone.
var goldenAngle = math.Pi * (3 - math.Sqrt(5))

// LayoutConfig describes the tree cone the gallery hangs on.
type LayoutConfig struct {
	Height float64 `mapstructure:"height"`
	Radius float64 `mapstructure:"radius"`
	// Bottom is the Y of the cone base.
	Bottom float64 `mapstructure:"bottom"`
	// Spread is how far photos move outward, as a fraction of their radius,
	// at full dispersion.
	Spread float64 `mapstructure:"spread"`
	// Jitter bounds each photo's random displacement at full dispersion.
	Jitter float64 `mapstructure:"jitter"`
	// PhotoScale is the rest scale of every photo.
	PhotoScale float64 `mapstructure:"photoScale"`
	// HitRadius is the pick sphere radius of a photo at scale 1.
	HitRadius float64 `mapstructure:"hitRadius"`
}

// DefaultLayoutConfig returns the default tree dimensions.
func DefaultLayoutConfig() LayoutConfig {
	return LayoutConfig{
		Height:     10,
		Radius:     4,
		Bottom:     -4,
		Spread:     1.5,
		Jitter:     3,
		PhotoScale: 1,
		HitRadius:  0.6,
	}
}

type slot struct {
	angle  float64
	base   mgl64.Vec3
	offset mgl64.Vec3
}

// Layout computes rest poses for the gallery.
type Layout struct {
	config LayoutConfig
	slots  map[string]slot
	order  []string
}

// NewLayout creates an empty Layout.
func NewLayout(config LayoutConfig) *Layout {
	return &Layout{
		config: config,
		slots:  make(map[string]slot),
	}
}

// Config returns the layout configuration.
func (l *Layout) Config() LayoutConfig {
	return l.config
}

// Arrange places ids on a spiral from the base of the cone to its tip.
func (l *Layout) Arrange(ids []string) {
	l.slots = make(map[string]slot, len(ids))
	l.order = l.order[:0]
	n := float64(len(ids))
	for i, id := range ids {
		t := (float64(i) + 0.5) / n
		angle := float64(i) * goldenAngle
		r := l.config.Radius * (1 - t)
		l.slots[id] = slot{
			angle:  angle,
			base:   mgl64.Vec3{r * math.Sin(angle), l.config.Bottom + t*l.config.Height, r * math.Cos(angle)},
			offset: jitterFor(id).Mul(l.config.Jitter),
		}
		l.order = append(l.order, id)
	}
}

// ids returns the arranged ids in order.
func (l *Layout) ids() []string {
	out := make([]string, len(l.order))
	copy(out, l.order)
	return out
}

// Rest returns the rest pose of id at the given dispersion. Unknown ids rest
// at the origin.
func (l *Layout) Rest(id string, dispersion float64) spatial.Pose {
	s, ok := l.slots[id]
	if !ok {
		return spatial.Pose{Rotation: mgl64.QuatIdent(), Scale: l.config.PhotoScale}
	}
	pushed := mgl64.Vec3{s.base.X() * (1 + dispersion*l.config.Spread), s.base.Y(), s.base.Z() * (1 + dispersion*l.config.Spread)}
	return spatial.Pose{
		Position: pushed.Add(s.offset.Mul(dispersion)),
		Rotation: spatial.Yaw(s.angle),
		Scale:    l.config.PhotoScale,
	}
}

// Offset returns the per-photo random displacement direction, in [-Jitter,
// Jitter] per axis. Unknown ids have no offset.
func (l *Layout) Offset(id string) mgl64.Vec3 {
	return l.slots[id].offset
}

// jitterFor returns a stable pseudo-random vector in [-1,1]^3 for id.
func jitterFor(id string) mgl64.Vec3 {
	h := fnv.New64a()
	h.Write([]byte(id))
	rng := rand.New(rand.NewPCG(h.Sum64(), 0x7ee5))
	return mgl64.Vec3{rng.Float64()*2 - 1, rng.Float64()*2 - 1, rng.Float64()*2 - 1}
}
