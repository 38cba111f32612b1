package detector

import (
	"errors"

	"gocv.io/x/gocv"
)

var (
	// ErrNotReady is returned while the source is still initializing.
	// Callers should retry on the next tick rather than treat it as a failure.
	ErrNotReady = errors.New("landmark source not ready")

	// ErrUnavailable is returned after initialization failed. The source stays
	// unavailable for the rest of the session.
	ErrUnavailable = errors.New("landmark source unavailable")
)

// State describes the lifecycle of a landmark source.
type State int

const (
	StateIdle State = iota
	StateStarting
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// LandmarkSource finds at most one hand in a video frame.
type LandmarkSource interface {
	// State reports whether Detect can be called.
	State() State

	// Detect analyzes a frame captured at timestampMs. It returns a nil pose
	// when no hand is visible. Calls made before the source is ready return
	// ErrNotReady.
	Detect(frame *gocv.Mat, timestampMs int64) (*HandPose, error)

	// Close releases any resources held by the source.
	Close() error
}

// Config holds configuration options for hand detection.
type Config struct {
	// MinConfidence is the minimum detection confidence threshold (0.0-1.0).
	MinConfidence float64 `mapstructure:"minConfidence"`

	// MinTrackingConf is the minimum tracking confidence threshold (0.0-1.0).
	MinTrackingConf float64 `mapstructure:"minTrackingConf"`

	// Script overrides the location of mediapipe_service.py.
	Script string `mapstructure:"script"`

	// Python overrides the interpreter used to run the service.
	Python string `mapstructure:"python"`
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		MinConfidence:   0.5,
		MinTrackingConf: 0.5,
	}
}
