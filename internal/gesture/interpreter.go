// Package gesture turns hand landmarks into scene control signals.
package gesture

import (
	"fmt"

	"github.com/ayusman/tinsel/internal/detector"
)

// Trigger selects which hand shape produces the discrete select gesture.
type Trigger string

const (
	// TriggerPinch fires when the thumb and index fingertips touch.
	TriggerPinch Trigger = "pinch"
	// TriggerOpen fires when the hand is spread wide open.
	TriggerOpen Trigger = "open"
)

// ParseTrigger validates a configured trigger name.
func ParseTrigger(s string) (Trigger, error) {
	switch Trigger(s) {
	case TriggerPinch, TriggerOpen:
		return Trigger(s), nil
	case "":
		return TriggerPinch, nil
	}
	return "", fmt.Errorf("unknown gesture trigger %q", s)
}

// Cursor is a position in normalized device coordinates, [-1,1] on both
// axes with Y pointing up.
type Cursor struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Signal is the per-frame control output derived from one hand pose.
// Signals are values; a new one replaces the previous each frame.
type Signal struct {
	RotationSpeed float64 `json:"rotationSpeed"`
	Dispersion    float64 `json:"dispersion"`
	Cursor        Cursor  `json:"cursor"`
	Discrete      bool    `json:"discrete"`
	HandPresent   bool    `json:"handPresent"`
}

// Diagnostics exposes the raw measurements behind a Signal.
type Diagnostics struct {
	Openness   float64 // wrist to middle fingertip
	PinchSpan  float64 // thumb tip to index tip
	WristX     float64
	IndexPoint detector.Point3D
}

// Config holds the interpreter's empirical constants.
type Config struct {
	// OpenInner and OpenOuter bound the wrist to middle tip span that maps
	// onto dispersion 0..1.
	OpenInner float64 `mapstructure:"openInner"`
	OpenOuter float64 `mapstructure:"openOuter"`

	// RotationGain scales the wrist's horizontal offset from center.
	RotationGain float64 `mapstructure:"rotationGain"`

	// PinchThreshold is the thumb to index span below which a pinch fires.
	PinchThreshold float64 `mapstructure:"pinchThreshold"`

	// OpenThreshold is the dispersion above which the open trigger fires.
	OpenThreshold float64 `mapstructure:"openThreshold"`

	// IdleSpin is the rotation speed reported while no hand is visible.
	IdleSpin float64 `mapstructure:"idleSpin"`

	Trigger Trigger `mapstructure:"trigger"`
}

// DefaultConfig returns the tuned defaults.
func DefaultConfig() Config {
	return Config{
		OpenInner:      0.15,
		OpenOuter:      0.35,
		RotationGain:   5,
		PinchThreshold: 0.05,
		OpenThreshold:  0.9,
		IdleSpin:       0,
		Trigger:        TriggerPinch,
	}
}

// Interpreter maps hand poses to Signals. It holds no per-frame state.
type Interpreter struct {
	config Config
}

// NewInterpreter creates an Interpreter. Zero-valued bounds fall back to the
// defaults so a partially filled Config is usable.
func NewInterpreter(config Config) *Interpreter {
	def := DefaultConfig()
	if config.OpenOuter <= config.OpenInner {
		config.OpenInner, config.OpenOuter = def.OpenInner, def.OpenOuter
	}
	if config.RotationGain == 0 {
		config.RotationGain = def.RotationGain
	}
	if config.PinchThreshold <= 0 {
		config.PinchThreshold = def.PinchThreshold
	}
	if config.OpenThreshold <= 0 {
		config.OpenThreshold = def.OpenThreshold
	}
	if config.Trigger == "" {
		config.Trigger = def.Trigger
	}
	return &Interpreter{config: config}
}

// Config returns the effective configuration.
func (in *Interpreter) Config() Config {
	return in.config
}

// Lost returns the signal reported when no hand is tracked.
func (in *Interpreter) Lost() Signal {
	return Signal{RotationSpeed: in.config.IdleSpin}
}

// Interpret converts a pose into a Signal. A nil pose yields Lost.
func (in *Interpreter) Interpret(pose *detector.HandPose) Signal {
	sig, _ := in.InterpretWithDiagnostics(pose)
	return sig
}

// InterpretWithDiagnostics is Interpret plus the raw measurements used.
func (in *Interpreter) InterpretWithDiagnostics(pose *detector.HandPose) (Signal, Diagnostics) {
	if pose == nil {
		return in.Lost(), Diagnostics{}
	}

	lm := &pose.Landmarks
	diag := Diagnostics{
		Openness:   lm.Span(detector.Wrist, detector.MiddleTip),
		PinchSpan:  lm.Span(detector.ThumbTip, detector.IndexTip),
		WristX:     lm.Points[detector.Wrist].X,
		IndexPoint: lm.Points[detector.IndexTip],
	}

	sig := Signal{
		HandPresent:   true,
		Dispersion:    in.Dispersion(diag.Openness),
		RotationSpeed: in.RotationSpeed(diag.WristX),
		Cursor:        ToNDC(diag.IndexPoint),
	}

	switch in.config.Trigger {
	case TriggerOpen:
		sig.Discrete = sig.Dispersion > in.config.OpenThreshold
	default:
		sig.Discrete = diag.PinchSpan < in.config.PinchThreshold
	}

	return sig, diag
}

// Dispersion maps a wrist to middle tip span onto [0,1]. A closed fist is 0
// and a fully open hand is 1.
func (in *Interpreter) Dispersion(span float64) float64 {
	return clamp01((span - in.config.OpenInner) / (in.config.OpenOuter - in.config.OpenInner))
}

// RotationSpeed is linear in the wrist's offset from the frame center and
// zero when the wrist is centered.
func (in *Interpreter) RotationSpeed(wristX float64) float64 {
	return (wristX - 0.5) * in.config.RotationGain
}

// ToNDC converts a normalized image point to device coordinates. Y is
// flipped because image rows grow downward. No aspect correction is applied;
// the projection that consumes the cursor accounts for the viewport.
func ToNDC(p detector.Point3D) Cursor {
	return Cursor{
		X: p.X*2 - 1,
		Y: -(p.Y*2 - 1),
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
