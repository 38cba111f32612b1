package scene

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/ayusman/tinsel/internal/focus"
	"github.com/ayusman/tinsel/internal/gesture"
)

// ObjectTransform is the renderer-facing pose of one photo, in the rotating
// scene group's frame.
type ObjectTransform struct {
	ID       string     `json:"id"`
	Position [3]float64 `json:"position"`
	// Rotation is a unit quaternion as x, y, z, w.
	Rotation [4]float64 `json:"rotation"`
	Scale    float64    `json:"scale"`
	// Offset is the photo's random displacement direction. The renderer
	// scatters its particles by dispersion * Offset.
	Offset   [3]float64 `json:"offset"`
	Progress float64    `json:"progress"`
	State    string     `json:"state"`
}

// Transform converts a focus placement and its layout offset for the renderer.
func Transform(p focus.Placement, offset mgl64.Vec3) ObjectTransform {
	q := p.Pose.Rotation
	return ObjectTransform{
		ID:       p.ID,
		Position: [3]float64{p.Pose.Position.X(), p.Pose.Position.Y(), p.Pose.Position.Z()},
		Rotation: [4]float64{q.V.X(), q.V.Y(), q.V.Z(), q.W},
		Scale:    p.Pose.Scale,
		Offset:   [3]float64{offset.X(), offset.Y(), offset.Z()},
		Progress: p.Progress,
		State:    p.State.String(),
	}
}

// Frame is everything the renderer needs for one render tick.
type Frame struct {
	Seq          uint64            `json:"seq"`
	Yaw          float64           `json:"yaw"`
	Dispersion   float64           `json:"dispersion"`
	Objects      []ObjectTransform `json:"objects"`
	FocusedID    string            `json:"focusedId,omitempty"`
	Mode         string            `json:"mode"`
	Availability string            `json:"availability"`
	HandPresent  bool              `json:"handPresent"`
	Cursor       gesture.Cursor    `json:"cursor"`
}

// Renderer consumes frames. Render is called from the render tick and must
// not block.
type Renderer interface {
	Render(frame Frame)
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(Frame)

// Render calls f.
func (f RendererFunc) Render(frame Frame) { f(frame) }
