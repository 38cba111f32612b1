package gesture

import "github.com/ayusman/tinsel/internal/detector"

// DefaultLostAfter is how many consecutive frames without a hand end tracking.
const DefaultLostAfter = 3

// Tracker wraps an Interpreter with the frame-to-frame rules for noisy
// detection: an isolated failed or empty frame keeps the previous signal, and
// a hand is only reported lost after several such frames in a row.
type Tracker struct {
	interp    *Interpreter
	lostAfter int
	last      Signal
	diag      Diagnostics
	misses    int
}

// NewTracker creates a Tracker that starts in the lost state.
func NewTracker(interp *Interpreter, lostAfter int) *Tracker {
	if lostAfter < 1 {
		lostAfter = DefaultLostAfter
	}
	return &Tracker{
		interp:    interp,
		lostAfter: lostAfter,
		last:      interp.Lost(),
	}
}

// Observe feeds one detection result. It returns the signal to publish and
// whether that signal differs from the previous one. A non-nil err counts
// like Fail.
func (t *Tracker) Observe(pose *detector.HandPose, err error) (Signal, bool) {
	if err != nil || pose == nil {
		return t.Fail()
	}

	prev := t.last
	t.misses = 0
	t.last, t.diag = t.interp.InterpretWithDiagnostics(pose)
	return t.last, t.last != prev
}

// Fail records a frame that produced no hand: a detector error, an unreadable
// frame or an empty detection. After lostAfter of them in a row the lost
// signal replaces the last one.
func (t *Tracker) Fail() (Signal, bool) {
	prev := t.last
	t.misses++
	if t.misses >= t.lostAfter || !prev.HandPresent {
		t.last = t.interp.Lost()
		t.diag = Diagnostics{}
	}
	return t.last, t.last != prev
}

// Misses returns how many frames in a row produced no hand.
func (t *Tracker) Misses() int {
	return t.misses
}

// Last returns the most recent signal.
func (t *Tracker) Last() Signal {
	return t.last
}

// Diagnostics returns the measurements behind the last signal. They are zero
// while no hand is tracked.
func (t *Tracker) Diagnostics() Diagnostics {
	return t.diag
}

// Reset drops any tracked hand.
func (t *Tracker) Reset() Signal {
	t.misses = 0
	t.last = t.interp.Lost()
	t.diag = Diagnostics{}
	return t.last
}
