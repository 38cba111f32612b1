// Package control holds the state shared between the inference tick and the
// render tick. Every field has exactly one writer and is read and written
// atomically on its own; readers may see a value one frame stale.
package control

import (
	"errors"
	"fmt"
	"math"
	"sync/atomic"

	"github.com/ayusman/tinsel/internal/gesture"
)

// ErrWriterClaimed is returned when a writer handle is requested twice.
var ErrWriterClaimed = errors.New("writer already claimed")

// Mode is the interaction mode shown to the user.
type Mode int32

const (
	// ModePointer drives the scene with pointer orbit and click.
	ModePointer Mode = iota
	// ModeGesture drives the scene from the camera.
	ModeGesture
)

// String returns the mode name.
func (m Mode) String() string {
	switch m {
	case ModePointer:
		return "pointer"
	case ModeGesture:
		return "gesture"
	default:
		return "unknown"
	}
}

// ParseMode parses a mode name.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "pointer":
		return ModePointer, nil
	case "gesture":
		return ModeGesture, nil
	}
	return 0, fmt.Errorf("unknown mode %q", s)
}

// Availability describes whether gesture control can work.
type Availability int32

const (
	AvailabilityOff Availability = iota
	AvailabilityInitializing
	AvailabilityReady
	AvailabilityUnavailable
	AvailabilityCameraDenied
)

// String returns the availability name.
func (a Availability) String() string {
	switch a {
	case AvailabilityOff:
		return "off"
	case AvailabilityInitializing:
		return "initializing"
	case AvailabilityReady:
		return "ready"
	case AvailabilityUnavailable:
		return "unavailable"
	case AvailabilityCameraDenied:
		return "camera-denied"
	default:
		return "unknown"
	}
}

// Update carries the fields owned by the inference tick. It has no room for
// the focused id or yaw.
type Update struct {
	Signal gesture.Signal
}

// Snapshot is a point-in-time copy of every field. Fields are read one at a
// time, so a snapshot is not a cross-field transaction.
type Snapshot struct {
	Signal       gesture.Signal
	SignalSeq    uint64
	FocusedID    string
	Yaw          float64
	Mode         Mode
	Availability Availability
}

// State is the shared control record.
type State struct {
	signal       atomic.Pointer[gesture.Signal]
	signalSeq    atomic.Uint64
	availability atomic.Int32
	focused      atomic.Pointer[string]
	yaw          atomic.Uint64
	mode         atomic.Int32

	gestureClaimed atomic.Bool
	renderClaimed  atomic.Bool
}

// New returns a State with neutral defaults: no hand, zero rotation and
// dispersion, nothing focused, pointer mode.
func New() *State {
	s := &State{}
	s.signal.Store(&gesture.Signal{})
	empty := ""
	s.focused.Store(&empty)
	return s
}

// GestureWriter returns the handle that owns the gesture fields. It can be
// claimed once.
func (s *State) GestureWriter() (*GestureWriter, error) {
	if !s.gestureClaimed.CompareAndSwap(false, true) {
		return nil, fmt.Errorf("gesture: %w", ErrWriterClaimed)
	}
	return &GestureWriter{s: s}, nil
}

// RenderWriter returns the handle that owns the focused id and yaw. It can
// be claimed once.
func (s *State) RenderWriter() (*RenderWriter, error) {
	if !s.renderClaimed.CompareAndSwap(false, true) {
		return nil, fmt.Errorf("render: %w", ErrWriterClaimed)
	}
	return &RenderWriter{s: s}, nil
}

// Signal returns the latest gesture signal.
func (s *State) Signal() gesture.Signal {
	return *s.signal.Load()
}

// SignalSeq counts published signals.
func (s *State) SignalSeq() uint64 {
	return s.signalSeq.Load()
}

// FocusedID returns the focused id, or "".
func (s *State) FocusedID() string {
	return *s.focused.Load()
}

// Yaw returns the cumulative scene yaw.
func (s *State) Yaw() float64 {
	return math.Float64frombits(s.yaw.Load())
}

// Mode returns the interaction mode.
func (s *State) Mode() Mode {
	return Mode(s.mode.Load())
}

// SetMode changes the interaction mode. The UI is its only writer.
func (s *State) SetMode(m Mode) {
	s.mode.Store(int32(m))
}

// Availability returns the gesture availability.
func (s *State) Availability() Availability {
	return Availability(s.availability.Load())
}

// Snapshot reads every field.
func (s *State) Snapshot() Snapshot {
	return Snapshot{
		Signal:       s.Signal(),
		SignalSeq:    s.SignalSeq(),
		FocusedID:    s.FocusedID(),
		Yaw:          s.Yaw(),
		Mode:         s.Mode(),
		Availability: s.Availability(),
	}
}

// GestureWriter writes the fields owned by the inference tick.
type GestureWriter struct {
	s *State
}

// Publish stores a new signal. A signal without a hand never carries a
// cursor or a held gesture.
func (w *GestureWriter) Publish(u Update) {
	sig := u.Signal
	if !sig.HandPresent {
		sig.Cursor = gesture.Cursor{}
		sig.Discrete = false
	}
	w.s.signal.Store(&sig)
	w.s.signalSeq.Add(1)
}

// SetAvailability records whether gesture control can work.
func (w *GestureWriter) SetAvailability(a Availability) {
	w.s.availability.Store(int32(a))
}

// RenderWriter writes the fields owned by the render tick.
type RenderWriter struct {
	s *State
}

// SetFocused stores the focused id; "" clears focus.
func (w *RenderWriter) SetFocused(id string) {
	w.s.focused.Store(&id)
}

// SetYaw stores the cumulative yaw.
func (w *RenderWriter) SetYaw(yaw float64) {
	w.s.yaw.Store(math.Float64bits(yaw))
}
