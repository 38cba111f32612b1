package capture

import (
	"image"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// Motion detection constants
const (
	// GaussianBlurSize is the kernel size for Gaussian blur (21x21)
	GaussianBlurSize = 21
	// DiffThreshold is the binary threshold for difference detection
	DiffThreshold = 25
)

// MotionDetector detects motion between consecutive video frames
// using frame differencing with Gaussian blur for noise reduction.
type MotionDetector struct {
	threshold   float64
	prevGray    gocv.Mat
	initialized bool
	mu          sync.Mutex
}

// NewMotionDetector creates a new MotionDetector with the given threshold,
// the percentage of pixels that must change to count as motion.
func NewMotionDetector(threshold float64) *MotionDetector {
	return &MotionDetector{
		threshold: threshold,
		prevGray:  gocv.NewMat(),
	}
}

// Detect compares frame with the previous one and reports whether enough
// pixels changed, along with the changed percentage. The first frame only
// establishes the baseline.
func (m *MotionDetector) Detect(frame *Frame) (bool, float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !frame.Valid() {
		return false, 0
	}

	gray := gocv.NewMat()
	defer gray.Close()

	if frame.Mat.Channels() > 1 {
		gocv.CvtColor(frame.Mat, &gray, gocv.ColorBGRToGray)
	} else {
		frame.Mat.CopyTo(&gray)
	}

	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(gray, &blurred, image.Point{X: GaussianBlurSize, Y: GaussianBlurSize}, 0, 0, gocv.BorderDefault)

	// A resolution change invalidates the baseline.
	if !m.initialized || blurred.Rows() != m.prevGray.Rows() || blurred.Cols() != m.prevGray.Cols() {
		blurred.CopyTo(&m.prevGray)
		m.initialized = true
		return false, 0
	}

	diff := gocv.NewMat()
	defer diff.Close()
	gocv.AbsDiff(blurred, m.prevGray, &diff)

	thresh := gocv.NewMat()
	defer thresh.Close()
	gocv.Threshold(diff, &thresh, DiffThreshold, 255, gocv.ThresholdBinary)

	nonZero := gocv.CountNonZero(thresh)
	totalPixels := thresh.Rows() * thresh.Cols()
	changePercent := float64(nonZero) / float64(totalPixels) * 100.0

	blurred.CopyTo(&m.prevGray)

	return changePercent > m.threshold, changePercent
}

// Reset clears the baseline so the next frame starts a new comparison.
func (m *MotionDetector) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.release()
}

// Close releases resources used by the motion detector.
func (m *MotionDetector) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.release()
}

func (m *MotionDetector) release() {
	if !m.prevGray.Empty() {
		m.prevGray.Close()
		m.prevGray = gocv.NewMat()
	}
	m.initialized = false
}

// SetThreshold sets the motion detection threshold.
// Values less than or equal to 0 are ignored.
func (m *MotionDetector) SetThreshold(threshold float64) {
	if threshold <= 0 {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.threshold = threshold
}

// Cadence switches the inference rate between an idle and an active frame
// rate. Motion switches to active immediately; the idle rate returns after
// IdleAfter without motion.
type Cadence struct {
	IdleFPS   int
	ActiveFPS int
	IdleAfter time.Duration

	active     bool
	lastMotion time.Time
}

// NewCadence creates a Cadence that starts idle.
func NewCadence(idleFPS, activeFPS int, idleAfter time.Duration) *Cadence {
	return &Cadence{IdleFPS: idleFPS, ActiveFPS: activeFPS, IdleAfter: idleAfter}
}

// Observe records whether the latest frame had motion (or a visible hand)
// and reports whether the rate changed.
func (c *Cadence) Observe(motion bool, now time.Time) bool {
	if motion {
		c.lastMotion = now
		if !c.active {
			c.active = true
			return true
		}
		return false
	}
	if c.active && now.Sub(c.lastMotion) > c.IdleAfter {
		c.active = false
		return true
	}
	return false
}

// Active reports whether the active rate is in effect.
func (c *Cadence) Active() bool {
	return c.active
}

// FPS returns the frame rate currently in effect.
func (c *Cadence) FPS() int {
	if c.active {
		return c.ActiveFPS
	}
	return c.IdleFPS
}

// Interval returns the tick interval for the current frame rate.
func (c *Cadence) Interval() time.Duration {
	fps := c.FPS()
	if fps <= 0 {
		fps = DefaultFPS
	}
	return time.Second / time.Duration(fps)
}
