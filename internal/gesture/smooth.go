package gesture

import (
	"math"
	"time"
)

const (
	// SnapEpsilon is the distance below which a smoothed value jumps to its
	// target, so filters settle exactly instead of approaching forever.
	SnapEpsilon = 0.01

	// ReferenceHz is the frame rate the per-frame blend factors were tuned at.
	ReferenceHz = 60.0
)

// Smooth moves previous toward target by rate, a blend factor in (0,1]
// applied once per call, and snaps once within SnapEpsilon.
func Smooth(previous, target, rate float64) float64 {
	if math.Abs(target-previous) < SnapEpsilon {
		return target
	}
	next := previous + (target-previous)*rate
	if math.Abs(target-next) < SnapEpsilon {
		return target
	}
	return next
}

// SmoothDt is Smooth with rate rescaled for the elapsed time, so the filter
// converges at the same wall-clock speed at any frame rate. rate is the
// per-frame factor at ReferenceHz.
func SmoothDt(previous, target, rate float64, dt time.Duration) float64 {
	return Smooth(previous, target, ScaleRate(rate, dt))
}

// ScaleRate converts a per-frame blend factor at ReferenceHz into the
// equivalent factor for a frame lasting dt.
func ScaleRate(rate float64, dt time.Duration) float64 {
	if rate >= 1 {
		return 1
	}
	if rate <= 0 || dt <= 0 {
		return 0
	}
	frames := dt.Seconds() * ReferenceHz
	return 1 - math.Pow(1-rate, frames)
}
