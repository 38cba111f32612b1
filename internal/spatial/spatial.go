// Package spatial holds the pose, camera and ray math shared by focus and
// selection. Coordinates follow the renderer: Y up, cameras look down -Z.
package spatial

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

var (
	// Up is the world up axis.
	Up = mgl64.Vec3{0, 1, 0}
	// forward is the camera-local view direction.
	forward = mgl64.Vec3{0, 0, -1}
)

// Pose is a position, orientation and uniform scale.
type Pose struct {
	Position mgl64.Vec3
	Rotation mgl64.Quat
	Scale    float64
}

// Identity returns a pose at the origin with unit scale.
func Identity() Pose {
	return Pose{Rotation: mgl64.QuatIdent(), Scale: 1}
}

// Lerp blends a toward b: position and scale linearly, rotation by
// spherical interpolation along the shortest arc.
func Lerp(a, b Pose, t float64) Pose {
	return Pose{
		Position: a.Position.Add(b.Position.Sub(a.Position).Mul(t)),
		Rotation: Slerp(a.Rotation, b.Rotation, t),
		Scale:    a.Scale + (b.Scale-a.Scale)*t,
	}
}

// Slerp interpolates between two rotations along the shortest arc.
func Slerp(a, b mgl64.Quat, t float64) mgl64.Quat {
	if a.Dot(b) < 0 {
		b = b.Scale(-1)
	}
	return mgl64.QuatSlerp(a, b, t).Normalize()
}

// Yaw returns a rotation of angle radians about the world up axis.
func Yaw(angle float64) mgl64.Quat {
	return mgl64.QuatRotate(angle, Up)
}

// Frame is a parent coordinate frame, such as the rotating scene group that
// holds the gallery.
type Frame struct {
	Position mgl64.Vec3
	Rotation mgl64.Quat
}

// YawFrame returns a frame at the origin rotated by yaw about Y.
func YawFrame(yaw float64) Frame {
	return Frame{Rotation: Yaw(yaw)}
}

// ToWorld maps a local point into world space.
func (f Frame) ToWorld(p mgl64.Vec3) mgl64.Vec3 {
	return f.Rotation.Rotate(p).Add(f.Position)
}

// ToLocal maps a world point into the frame.
func (f Frame) ToLocal(p mgl64.Vec3) mgl64.Vec3 {
	return f.Rotation.Inverse().Rotate(p.Sub(f.Position))
}

// RotationToLocal expresses a world orientation relative to the frame.
func (f Frame) RotationToLocal(q mgl64.Quat) mgl64.Quat {
	return f.Rotation.Inverse().Mul(q).Normalize()
}

// Camera is a perspective camera.
type Camera struct {
	Position mgl64.Vec3
	Rotation mgl64.Quat
	FovY     float64 // vertical field of view, radians
	Aspect   float64 // viewport width / height
}

// DefaultCamera looks at the tree from the front.
func DefaultCamera() Camera {
	return Camera{
		Position: mgl64.Vec3{0, 2, 16},
		Rotation: mgl64.QuatIdent(),
		FovY:     mgl64.DegToRad(45),
		Aspect:   16.0 / 9.0,
	}
}

// Forward returns the unit view direction in world space.
func (c Camera) Forward() mgl64.Vec3 {
	return c.Rotation.Rotate(forward).Normalize()
}

// Ray returns the world-space ray through a point in normalized device
// coordinates. The viewport aspect is applied here, so callers pass raw NDC.
func (c Camera) Ray(x, y float64) Ray {
	aspect := c.Aspect
	if aspect <= 0 {
		aspect = 1
	}
	tanHalf := math.Tan(c.FovY / 2)
	dir := mgl64.Vec3{x * tanHalf * aspect, y * tanHalf, -1}
	return Ray{
		Origin:    c.Position,
		Direction: c.Rotation.Rotate(dir).Normalize(),
	}
}

// Ray is a half-line with a unit direction.
type Ray struct {
	Origin    mgl64.Vec3
	Direction mgl64.Vec3
}

// At returns the point at distance t along the ray.
func (r Ray) At(t float64) mgl64.Vec3 {
	return r.Origin.Add(r.Direction.Mul(t))
}

// IntersectSphere returns the distance to the nearest intersection with a
// sphere in front of the ray origin.
func (r Ray) IntersectSphere(center mgl64.Vec3, radius float64) (float64, bool) {
	oc := r.Origin.Sub(center)
	b := oc.Dot(r.Direction)
	c := oc.Dot(oc) - radius*radius
	disc := b*b - c
	if disc < 0 {
		return 0, false
	}
	sq := math.Sqrt(disc)
	t := -b - sq
	if t < 0 {
		t = -b + sq
	}
	if t < 0 {
		return 0, false
	}
	return t, true
}
