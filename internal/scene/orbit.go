package scene

import "github.com/charmbracelet/harmonica"

// Orbit turns pointer drags into a yaw velocity that coasts to a stop.
type Orbit struct {
	// Sensitivity converts drag distance (NDC units) into radians per second.
	Sensitivity float64

	velocity float64
	accel    float64
	spring   harmonica.Spring
}

// NewOrbit creates an Orbit stepped at fps. Frequency 4 with damping 1 is
// critically damped, so the velocity settles without reversing.
func NewOrbit(fps int, sensitivity float64) *Orbit {
	if fps <= 0 {
		fps = 60
	}
	return &Orbit{
		Sensitivity: sensitivity,
		spring:      harmonica.NewSpring(harmonica.FPS(fps), 4.0, 1.0),
	}
}

// Drag adds a horizontal drag impulse.
func (o *Orbit) Drag(dx float64) {
	o.velocity += dx * o.Sensitivity
}

// Step decays the velocity by one frame and returns the speed to apply.
func (o *Orbit) Step() float64 {
	speed := o.velocity
	o.velocity, o.accel = o.spring.Update(o.velocity, o.accel, 0)
	return speed
}

// Velocity returns the current yaw velocity.
func (o *Orbit) Velocity() float64 {
	return o.velocity
}

// Stop drops any remaining momentum.
func (o *Orbit) Stop() {
	o.velocity, o.accel = 0, 0
}
