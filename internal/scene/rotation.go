// Package scene integrates scene yaw and lays the gallery out on the tree.
package scene

import "time"

// RotationConfig holds yaw damping multipliers.
type RotationConfig struct {
	// FocusDamping scales rotation while any object is focused.
	FocusDamping float64 `mapstructure:"focusDamping"`
	// DispersionDamping scales rotation while dispersion is above
	// DispersionDampAbove. 1 disables it.
	DispersionDamping   float64 `mapstructure:"dispersionDamping"`
	DispersionDampAbove float64 `mapstructure:"dispersionDampAbove"`
}

// DefaultRotationConfig returns the default damping.
func DefaultRotationConfig() RotationConfig {
	return RotationConfig{
		FocusDamping:        0.05,
		DispersionDamping:   1,
		DispersionDampAbove: 0.8,
	}
}

// Rotation accumulates the scene yaw from a rotation speed.
type Rotation struct {
	config RotationConfig
	yaw    float64
}

// NewRotation creates a Rotation at yaw 0.
func NewRotation(config RotationConfig) *Rotation {
	return &Rotation{config: config}
}

// Damping returns the multiplier applied to rotation speed. Conditions that
// hold together compose multiplicatively.
func (r *Rotation) Damping(focused bool, dispersion float64) float64 {
	d := 1.0
	if focused {
		d *= r.config.FocusDamping
	}
	if dispersion > r.config.DispersionDampAbove {
		d *= r.config.DispersionDamping
	}
	return d
}

// Advance integrates speed (radians per second) over dt and returns the new
// yaw.
func (r *Rotation) Advance(speed float64, dt time.Duration, focused bool, dispersion float64) float64 {
	if dt > 0 {
		r.yaw += speed * dt.Seconds() * r.Damping(focused, dispersion)
	}
	return r.yaw
}

// Yaw returns the cumulative yaw in radians.
func (r *Rotation) Yaw() float64 {
	return r.yaw
}

// SetYaw overrides the cumulative yaw.
func (r *Rotation) SetYaw(yaw float64) {
	r.yaw = yaw
}
