// Package focus moves gallery objects between their place on the tree and a
// camera-locked viewing pose.
package focus

import (
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ayusman/tinsel/internal/gesture"
	"github.com/ayusman/tinsel/internal/spatial"
)

// LockThreshold is the progress at which the viewing pose is captured and
// frozen.
const LockThreshold = 0.99

// State is the focus state of one object, derived from its progress.
type State int

const (
	// Resting objects sit at their rest pose.
	Resting State = iota
	// Transitioning objects are between rest and locked.
	Transitioning
	// Focused objects hold the cached locked pose.
	Focused
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Resting:
		return "resting"
	case Transitioning:
		return "transitioning"
	case Focused:
		return "focused"
	default:
		return "unknown"
	}
}

// Config holds focus transition tuning.
type Config struct {
	// Rate is the per-frame progress blend factor at gesture.ReferenceHz.
	Rate float64 `mapstructure:"rate"`
	// Distance is how far in front of the camera a focused object sits.
	Distance float64 `mapstructure:"distance"`
	// Scale multiplies the rest scale once focused.
	Scale float64 `mapstructure:"scale"`
}

// DefaultConfig returns the default tuning.
func DefaultConfig() Config {
	return Config{
		Rate:     0.1,
		Distance: 8,
		Scale:    2.5,
	}
}

// Object is one focusable item.
type Object struct {
	ID       string
	progress float64
	locked   *spatial.Pose
}

// Progress returns the transition progress in [0,1].
func (o *Object) Progress() float64 {
	return o.progress
}

// Locked reports whether a viewing pose is cached.
func (o *Object) Locked() bool {
	return o.locked != nil
}

// State derives the object's state from its progress.
func (o *Object) State() State {
	switch {
	case o.progress <= 0:
		return Resting
	case o.progress >= 1:
		return Focused
	default:
		return Transitioning
	}
}

// Placement is the pose computed for one object on one frame, expressed in
// the parent frame.
type Placement struct {
	ID       string
	Pose     spatial.Pose
	Progress float64
	State    State
}

// Input is everything the machine reads on a frame.
type Input struct {
	FocusedID string
	Camera    spatial.Camera
	Parent    spatial.Frame
	Dt        time.Duration
}

// RestFunc returns an object's rest pose in the parent frame.
type RestFunc func(id string) spatial.Pose

// Machine tracks focus progress for a set of objects. It is driven from the
// render tick only and is not safe for concurrent use.
type Machine struct {
	config  Config
	objects map[string]*Object
	order   []string
}

// NewMachine creates an empty Machine. Non-positive tuning values fall back
// to the defaults.
func NewMachine(config Config) *Machine {
	def := DefaultConfig()
	if config.Rate <= 0 || config.Rate > 1 {
		config.Rate = def.Rate
	}
	if config.Distance <= 0 {
		config.Distance = def.Distance
	}
	if config.Scale <= 0 {
		config.Scale = def.Scale
	}
	return &Machine{
		config:  config,
		objects: make(map[string]*Object),
	}
}

// Config returns the effective configuration.
func (m *Machine) Config() Config {
	return m.config
}

// SetObjects replaces the object set. Objects that survive keep their
// progress and cache.
func (m *Machine) SetObjects(ids []string) {
	next := make(map[string]*Object, len(ids))
	order := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, dup := next[id]; dup {
			continue
		}
		obj, ok := m.objects[id]
		if !ok {
			obj = &Object{ID: id}
		}
		next[id] = obj
		order = append(order, id)
	}
	m.objects = next
	m.order = order
}

// Object returns the object with the given id.
func (m *Machine) Object(id string) (*Object, bool) {
	obj, ok := m.objects[id]
	return obj, ok
}

// ids returns object ids in insertion order.
func (m *Machine) ids() []string {
	out := make([]string, len(m.order))
	copy(out, m.order)
	return out
}

// Active returns ids of objects that are not resting, sorted.
func (m *Machine) Active() []string {
	var ids []string
	for id, obj := range m.objects {
		if obj.progress > 0 {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// Update advances every object one frame and returns their placements in
// insertion order. Only the object named by FocusedID moves toward focus;
// every other object moves toward rest on the same frame.
func (m *Machine) Update(in Input, rest RestFunc) []Placement {
	out := make([]Placement, 0, len(m.order))
	for _, id := range m.order {
		obj := m.objects[id]
		target := 0.0
		if id == in.FocusedID {
			target = 1
		}
		obj.progress = gesture.SmoothDt(obj.progress, target, m.config.Rate, in.Dt)

		pose := m.place(obj, rest(id), in)
		out = append(out, Placement{
			ID:       id,
			Pose:     pose,
			Progress: obj.progress,
			State:    obj.State(),
		})
	}
	return out
}

func (m *Machine) place(obj *Object, restPose spatial.Pose, in Input) spatial.Pose {
	if obj.progress < gesture.SnapEpsilon {
		if obj.locked != nil {
			obj.locked = nil
			log.Debug().Str("id", obj.ID).Msg("focus released")
		}
		return restPose
	}

	if obj.progress >= LockThreshold && obj.locked == nil {
		locked := m.viewingPose(restPose, in)
		obj.locked = &locked
		log.Debug().Str("id", obj.ID).Msg("focus locked")
	}

	if obj.progress >= 1 {
		return *obj.locked
	}

	target := obj.locked
	if target == nil {
		live := m.viewingPose(restPose, in)
		target = &live
	}
	return spatial.Lerp(restPose, *target, obj.progress)
}

// viewingPose places the object Distance in front of the camera, facing it,
// expressed in the parent frame.
func (m *Machine) viewingPose(restPose spatial.Pose, in Input) spatial.Pose {
	world := in.Camera.Position.Add(in.Camera.Forward().Mul(m.config.Distance))
	return spatial.Pose{
		Position: in.Parent.ToLocal(world),
		Rotation: in.Parent.RotationToLocal(in.Camera.Rotation),
		Scale:    restPose.Scale * m.config.Scale,
	}
}
