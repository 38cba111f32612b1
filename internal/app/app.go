// Package app runs a gallery session: a render tick that turns the shared
// control state into a scene frame, and an optional camera inference tick
// that feeds hand gestures into that state.
package app

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ayusman/tinsel/internal/capture"
	"github.com/ayusman/tinsel/internal/control"
	"github.com/ayusman/tinsel/internal/detector"
	"github.com/ayusman/tinsel/internal/focus"
	"github.com/ayusman/tinsel/internal/gesture"
	"github.com/ayusman/tinsel/internal/scene"
	"github.com/ayusman/tinsel/internal/selection"
	"github.com/ayusman/tinsel/internal/spatial"
	"github.com/ayusman/tinsel/internal/store"
	"github.com/ayusman/tinsel/internal/telemetry"
)

// Default timings.
const (
	// IdleFPS is the inference rate when nothing moves in front of the camera.
	IdleFPS = 5
	// ActiveFPS is the inference rate while motion or a hand is seen.
	ActiveFPS = 15
	// IdleAfter is how long the active rate outlives the last motion.
	IdleAfter = 2 * time.Second
	// RenderFPS is the render tick rate.
	RenderFPS = 60
	// DispersionRate is the per-frame dispersion blend factor at 60 Hz.
	DispersionRate = 0.1
)

// ErrGestureUnavailable is returned when gesture mode cannot start because
// no landmark source could be created.
var ErrGestureUnavailable = errors.New("gesture input unavailable")

// Config holds configuration options for a session.
type Config struct {
	Store *store.Store

	// Camera is opened when gesture mode starts. Nil means the webcam at
	// CameraID.
	Camera   capture.Camera
	CameraID int

	// Source finds hands in camera frames. Nil means a MediaPipe source
	// created on the first StartGesture.
	Source  detector.LandmarkSource
	Preview *capture.Preview

	MotionThreshold float64
	IdleFPS         int
	ActiveFPS       int
	IdleAfter       time.Duration

	RenderFPS        int
	DispersionRate   float64
	OrbitSensitivity float64

	Detector  detector.Config
	Gesture   gesture.Config
	LostAfter int
	Focus     focus.Config
	Rotation  scene.RotationConfig
	Layout    scene.LayoutConfig
	Selection selection.Config

	Rand    *rand.Rand
	Metrics *telemetry.Metrics
}

func (c *Config) applyDefaults() {
	if c.MotionThreshold <= 0 {
		c.MotionThreshold = 1.0 // 1% of pixels changed
	}
	if c.IdleFPS <= 0 {
		c.IdleFPS = IdleFPS
	}
	if c.ActiveFPS <= 0 {
		c.ActiveFPS = ActiveFPS
	}
	if c.IdleAfter <= 0 {
		c.IdleAfter = IdleAfter
	}
	if c.RenderFPS <= 0 {
		c.RenderFPS = RenderFPS
	}
	if c.DispersionRate <= 0 {
		c.DispersionRate = DispersionRate
	}
	if c.OrbitSensitivity <= 0 {
		c.OrbitSensitivity = 4
	}
	if c.Gesture == (gesture.Config{}) {
		c.Gesture = gesture.DefaultConfig()
	}
	if c.Rotation == (scene.RotationConfig{}) {
		c.Rotation = scene.DefaultRotationConfig()
	}
	if c.Layout == (scene.LayoutConfig{}) {
		c.Layout = scene.DefaultLayoutConfig()
	}
	if c.Selection.Policy == "" {
		c.Selection = selection.DefaultConfig()
	}
}

// Session is one running gallery. The render tick is the only writer of the
// focused id and yaw; the inference tick is the only writer of the gesture
// signal.
type Session struct {
	config   Config
	state    *control.State
	gestures *control.GestureWriter
	render   *control.RenderWriter
	renderer scene.Renderer
	metrics  *telemetry.Metrics

	// Render-owned state. renderMu also serializes pointer input with the
	// render tick.
	renderMu          sync.Mutex
	focus             *focus.Machine
	layout            *scene.Layout
	rotation          *scene.Rotation
	orbit             *scene.Orbit
	policy            selection.Policy
	view              spatial.Camera
	dispersion        float64
	pointerDispersion float64
	pointerFocus      string
	mode              control.Mode
	placements        []focus.Placement
	seq               uint64

	// Inference-owned state. gestureMu serializes StartGesture and
	// StopGesture; the remaining fields are touched by the inference
	// goroutine while it runs.
	gestureMu sync.Mutex
	live      atomic.Bool
	cancel    context.CancelFunc
	done      chan struct{}
	camera    capture.Camera
	source    detector.LandmarkSource
	tracker   *gesture.Tracker
	motion    *capture.MotionDetector
	cadence   *capture.Cadence
	lastTs    int64

	ctx    context.Context
	stop   context.CancelFunc
	closed bool
}

// New creates a session in pointer mode. Frames are handed to renderer on
// every render tick.
func New(config Config, renderer scene.Renderer) (*Session, error) {
	config.applyDefaults()

	if _, err := gesture.ParseTrigger(string(config.Gesture.Trigger)); err != nil {
		return nil, err
	}
	policy, err := selection.New(config.Selection, config.Rand)
	if err != nil {
		return nil, err
	}

	state := control.New()
	gw, err := state.GestureWriter()
	if err != nil {
		return nil, err
	}
	rw, err := state.RenderWriter()
	if err != nil {
		return nil, err
	}

	if renderer == nil {
		renderer = scene.RendererFunc(func(scene.Frame) {})
	}
	camera := config.Camera
	if camera == nil {
		camera = capture.NewCamera(config.CameraID)
	}

	ctx, stop := context.WithCancel(context.Background())
	return &Session{
		config:   config,
		state:    state,
		gestures: gw,
		render:   rw,
		renderer: renderer,
		metrics:  config.Metrics,
		focus:    focus.NewMachine(config.Focus),
		layout:   scene.NewLayout(config.Layout),
		rotation: scene.NewRotation(config.Rotation),
		orbit:    scene.NewOrbit(config.RenderFPS, config.OrbitSensitivity),
		policy:   policy,
		view:     spatial.DefaultCamera(),
		mode:     control.ModePointer,
		camera:   camera,
		source:   config.Source,
		tracker:  gesture.NewTracker(gesture.NewInterpreter(config.Gesture), config.LostAfter),
		lastTs:   -1,
		motion:   capture.NewMotionDetector(config.MotionThreshold),
		cadence:  capture.NewCadence(config.IdleFPS, config.ActiveFPS, config.IdleAfter),
		ctx:      ctx,
		stop:     stop,
	}, nil
}

// State returns the shared control state for read-only observers.
func (s *Session) State() *control.State {
	return s.state
}

// Config returns the effective configuration.
func (s *Session) Config() Config {
	return s.config
}

// LoadGallery loads photos from the store and arranges them on the tree.
// Photos that survive a reload keep their focus progress.
func (s *Session) LoadGallery() error {
	if s.config.Store == nil {
		return nil
	}

	photos, err := s.config.Store.Photos().List()
	if err != nil {
		return fmt.Errorf("load gallery: %w", err)
	}

	ids := make([]string, len(photos))
	for i, p := range photos {
		ids[i] = p.ID
	}
	s.SetObjects(ids)

	log.Info().Int("photos", len(ids)).Msg("loaded gallery")
	return nil
}

// SetObjects replaces the gallery with ids, in tree order.
func (s *Session) SetObjects(ids []string) {
	s.renderMu.Lock()
	defer s.renderMu.Unlock()

	s.layout.Arrange(ids)
	s.focus.SetObjects(ids)
	if _, ok := s.focus.Object(s.pointerFocus); !ok {
		s.pointerFocus = ""
	}
}

// SetMode switches between pointer and gesture input. Switching to gesture
// mode starts the camera; if that fails the session stays in pointer mode.
func (s *Session) SetMode(mode control.Mode) error {
	switch mode {
	case control.ModeGesture:
		return s.StartGesture()
	case control.ModePointer:
		s.StopGesture()
		return nil
	default:
		return fmt.Errorf("unknown mode %d", mode)
	}
}

// StartGesture starts the landmark source, opens the camera and begins the
// inference tick. Camera denial is reported through Availability and leaves
// pointer mode untouched.
func (s *Session) StartGesture() error {
	s.gestureMu.Lock()
	defer s.gestureMu.Unlock()

	if s.closed {
		return errors.New("session closed")
	}
	if s.live.Load() {
		return nil
	}

	s.gestures.SetAvailability(control.AvailabilityInitializing)
	if err := s.startSource(); err != nil {
		s.gestures.SetAvailability(control.AvailabilityUnavailable)
		log.Warn().Err(err).Msg("gesture input unavailable")
		return fmt.Errorf("%w: %v", ErrGestureUnavailable, err)
	}

	if err := s.camera.Open(); err != nil {
		s.gestures.SetAvailability(control.AvailabilityCameraDenied)
		log.Warn().Err(err).Msg("camera unavailable, staying in pointer mode")
		return fmt.Errorf("open camera: %w", err)
	}
	s.camera.SetFPS(s.cadence.FPS())

	ctx, cancel := context.WithCancel(s.ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.lastTs = -1
	s.live.Store(true)
	s.state.SetMode(control.ModeGesture)

	go s.runInference(ctx, s.done)

	log.Info().Int("fps", s.cadence.FPS()).Msg("gesture mode started")
	return nil
}

// startSource creates the MediaPipe source on first use and asks it to load.
func (s *Session) startSource() error {
	if s.source == nil {
		src, err := detector.NewMediaPipeSource(s.config.Detector)
		if err != nil {
			return err
		}
		s.source = src
	}
	s.wakeSource()
	return nil
}

// wakeSource asks a source that loads in the background to start.
func (s *Session) wakeSource() {
	if starter, ok := s.source.(interface{ Start(context.Context) }); ok {
		starter.Start(s.ctx)
	}
}

// StopGesture clears liveness, waits for the inference tick to exit and
// releases the camera. The published signal returns to neutral.
func (s *Session) StopGesture() {
	s.gestureMu.Lock()
	defer s.gestureMu.Unlock()

	s.stopGestureLocked()
}

func (s *Session) stopGestureLocked() {
	s.state.SetMode(control.ModePointer)
	if !s.live.Swap(false) {
		return
	}

	s.cancel()
	<-s.done
	s.cancel, s.done = nil, nil

	if err := s.camera.Close(); err != nil {
		log.Warn().Err(err).Msg("error closing camera")
	}
	s.motion.Reset()
	s.gestures.Publish(control.Update{Signal: s.tracker.Reset()})
	s.gestures.SetAvailability(control.AvailabilityOff)

	log.Info().Msg("gesture mode stopped")
}

// Close stops gesture input and releases the landmark source. A closed
// session cannot be restarted.
func (s *Session) Close() error {
	s.gestureMu.Lock()
	defer s.gestureMu.Unlock()

	if s.closed {
		return nil
	}
	s.stopGestureLocked()
	s.closed = true
	s.stop()
	s.motion.Close()

	if s.source != nil {
		if err := s.source.Close(); err != nil {
			return fmt.Errorf("close landmark source: %w", err)
		}
	}
	return nil
}

// Click toggles focus on the photo under the pointer at x, y in normalized
// device coordinates. It is ignored in gesture mode and reports whether it
// was applied.
func (s *Session) Click(x, y float64) (string, bool) {
	s.renderMu.Lock()
	defer s.renderMu.Unlock()

	if s.state.Mode() != control.ModePointer {
		return s.state.FocusedID(), false
	}
	parent := spatial.YawFrame(s.rotation.Yaw())
	s.pointerFocus = selection.Click(x, y, s.view, s.candidates(parent), s.pointerFocus)
	return s.pointerFocus, true
}

// Drag spins the tree by a horizontal pointer drag of dx NDC units.
func (s *Session) Drag(dx float64) {
	s.renderMu.Lock()
	defer s.renderMu.Unlock()

	if s.state.Mode() != control.ModePointer {
		return
	}
	s.orbit.Drag(dx)
}

// SetDispersion sets the pointer-mode dispersion target, clamped to [0,1].
func (s *Session) SetDispersion(v float64) {
	s.renderMu.Lock()
	defer s.renderMu.Unlock()

	s.pointerDispersion = min(max(v, 0), 1)
}

// SetCamera updates the renderer's camera. Focus locks already taken keep
// their pose.
func (s *Session) SetCamera(cam spatial.Camera) {
	s.renderMu.Lock()
	defer s.renderMu.Unlock()

	def := spatial.DefaultCamera()
	if cam.Rotation.Len() == 0 {
		cam.Rotation = def.Rotation
	}
	if cam.FovY <= 0 {
		cam.FovY = def.FovY
	}
	if cam.Aspect <= 0 {
		cam.Aspect = def.Aspect
	}
	s.view = cam
}

// Camera returns the renderer camera currently in use.
func (s *Session) Camera() spatial.Camera {
	s.renderMu.Lock()
	defer s.renderMu.Unlock()
	return s.view
}

// Run drives the render tick until ctx is cancelled, then stops gesture
// input.
func (s *Session) Run(ctx context.Context) error {
	ticker := time.NewTicker(time.Second / time.Duration(s.config.RenderFPS))
	defer ticker.Stop()
	defer s.StopGesture()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			s.renderTick(ctx, now.Sub(last))
			last = now
		}
	}
}
