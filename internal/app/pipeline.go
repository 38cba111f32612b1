package app

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ayusman/tinsel/internal/control"
	"github.com/ayusman/tinsel/internal/detector"
	"github.com/ayusman/tinsel/internal/focus"
	"github.com/ayusman/tinsel/internal/gesture"
	"github.com/ayusman/tinsel/internal/scene"
	"github.com/ayusman/tinsel/internal/selection"
	"github.com/ayusman/tinsel/internal/spatial"
	"github.com/ayusman/tinsel/internal/telemetry"
)

// renderTick advances the scene by dt and hands the frame to the renderer.
//
// Per frame:
//  1. Read the latest control snapshot
//  2. Smooth dispersion toward the hand (gesture) or pointer target
//  3. Resolve the focused photo
//  4. Advance the yaw, damped while focused or dispersed
//  5. Move every photo toward rest or its viewing pose
func (s *Session) renderTick(ctx context.Context, dt time.Duration) scene.Frame {
	start := time.Now()

	s.renderMu.Lock()
	defer s.renderMu.Unlock()

	snap := s.state.Snapshot()
	gestureMode := snap.Mode == control.ModeGesture
	if snap.Mode != s.mode {
		s.policy.Reset()
		s.orbit.Stop()
		s.pointerFocus = snap.FocusedID
		s.mode = snap.Mode
	}

	target := s.pointerDispersion
	if gestureMode {
		target = snap.Signal.Dispersion
	}
	s.dispersion = gesture.SmoothDt(s.dispersion, target, s.config.DispersionRate, dt)

	focused := s.pointerFocus
	if gestureMode {
		focused = s.policy.Resolve(selection.Input{
			Signal:     snap.Signal,
			Dispersion: s.dispersion,
			Camera:     s.view,
			Candidates: s.candidates(spatial.YawFrame(snap.Yaw)),
			Current:    snap.FocusedID,
			Dt:         dt,
		})
	}
	if _, ok := s.focus.Object(focused); !ok {
		focused = ""
	}
	if focused != snap.FocusedID {
		s.render.SetFocused(focused)
		s.metrics.FocusChanged(ctx, focused != "")
		log.Debug().Str("from", snap.FocusedID).Str("to", focused).Strs("moving", s.focus.Active()).Msg("focus changed")
	}

	speed := s.orbit.Step()
	if gestureMode {
		speed = snap.Signal.RotationSpeed
	}
	yaw := s.rotation.Advance(speed, dt, focused != "", s.dispersion)
	s.render.SetYaw(yaw)

	dispersion := s.dispersion
	s.placements = s.focus.Update(focus.Input{
		FocusedID: focused,
		Camera:    s.view,
		Parent:    spatial.YawFrame(yaw),
		Dt:        dt,
	}, func(id string) spatial.Pose {
		return s.layout.Rest(id, dispersion)
	})

	s.seq++
	frame := scene.Frame{
		Seq:          s.seq,
		Yaw:          yaw,
		Dispersion:   dispersion,
		Objects:      make([]scene.ObjectTransform, len(s.placements)),
		FocusedID:    focused,
		Mode:         snap.Mode.String(),
		Availability: snap.Availability.String(),
		HandPresent:  snap.Signal.HandPresent,
		Cursor:       snap.Signal.Cursor,
	}
	for i, p := range s.placements {
		frame.Objects[i] = scene.Transform(p, s.layout.Offset(p.ID))
	}

	s.renderer.Render(frame)
	s.metrics.RenderTick(ctx, time.Since(start))
	return frame
}

// candidates returns pick spheres for the photos as last placed, mapped into
// world space through parent.
func (s *Session) candidates(parent spatial.Frame) []selection.Candidate {
	radius := s.layout.Config().HitRadius
	out := make([]selection.Candidate, 0, len(s.placements))
	for _, p := range s.placements {
		out = append(out, selection.Candidate{
			ID:     p.ID,
			Center: parent.ToWorld(p.Pose.Position),
			Radius: radius * p.Pose.Scale,
		})
	}
	return out
}

// skipStopped is returned by a tick that ran after liveness was cleared. It
// is not counted as a skipped frame.
const skipStopped = "stopped"

// runInference calls inferenceTick at the cadence's current rate until ctx
// is cancelled or liveness is cleared.
func (s *Session) runInference(ctx context.Context, done chan struct{}) {
	defer close(done)

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
		if !s.live.Load() {
			return
		}
		s.inferenceTick(ctx, time.Now())
		timer.Reset(s.cadence.Interval())
	}
}

// inferenceTick reads one camera frame, detects a hand and publishes the
// resulting signal. It returns the skip reason, or "" when a signal was
// published.
func (s *Session) inferenceTick(ctx context.Context, now time.Time) string {
	if !s.live.Load() {
		return skipStopped
	}

	switch s.source.State() {
	case detector.StateReady:
	case detector.StateFailed:
		s.gestures.SetAvailability(control.AvailabilityUnavailable)
		return s.fail(ctx, telemetry.SkipNotReady)
	case detector.StateIdle:
		// The source unloads itself after a quiet spell or a broken pipe;
		// ask it back.
		s.wakeSource()
		fallthrough
	default:
		s.gestures.SetAvailability(control.AvailabilityInitializing)
		return s.fail(ctx, telemetry.SkipNotReady)
	}

	frame, err := s.camera.ReadFrame()
	if err != nil {
		log.Debug().Err(err).Msg("error reading frame")
		return s.fail(ctx, telemetry.SkipReadError)
	}
	defer frame.Close()

	if !frame.Valid() {
		return s.fail(ctx, telemetry.SkipInvalidFrame)
	}
	if frame.TimestampMs <= s.lastTs {
		return s.skip(ctx, telemetry.SkipStale)
	}
	s.lastTs = frame.TimestampMs

	if s.config.Preview != nil {
		if err := s.config.Preview.Publish(frame); err != nil {
			log.Debug().Err(err).Msg("preview frame dropped")
		}
	}

	motion, _ := s.motion.Detect(frame)
	if s.cadence.Observe(motion || s.tracker.Last().HandPresent, now) {
		s.camera.SetFPS(s.cadence.FPS())
		log.Debug().Int("fps", s.cadence.FPS()).Bool("active", s.cadence.Active()).Msg("inference rate changed")
	}

	pose, err := s.source.Detect(&frame.Mat, frame.TimestampMs)
	switch {
	case errors.Is(err, detector.ErrNotReady):
		s.gestures.SetAvailability(control.AvailabilityInitializing)
		return s.fail(ctx, telemetry.SkipNotReady)
	case errors.Is(err, detector.ErrUnavailable):
		s.gestures.SetAvailability(control.AvailabilityUnavailable)
		return s.fail(ctx, telemetry.SkipDetectorError)
	case err != nil:
		log.Warn().Err(err).Msg("hand detection failed")
		return s.fail(ctx, telemetry.SkipDetectorError)
	}

	s.gestures.SetAvailability(control.AvailabilityReady)
	prev := s.tracker.Last()
	signal, changed := s.tracker.Observe(pose, nil)
	s.gestures.Publish(control.Update{Signal: signal})
	if changed && signal.HandPresent != prev.HandPresent {
		log.Debug().Bool("present", signal.HandPresent).Msg("hand tracking changed")
	}
	if signal.HandPresent {
		d := s.tracker.Diagnostics()
		log.Trace().
			Float64("openness", d.Openness).
			Float64("pinch", d.PinchSpan).
			Float64("wristX", d.WristX).
			Float64("dispersion", signal.Dispersion).
			Bool("discrete", signal.Discrete).
			Msg("hand measured")
	}
	s.metrics.FrameProcessed(ctx)
	return ""
}

// fail counts a tick that produced no hand. One such tick keeps the previous
// signal; a run of them publishes the lost signal so a broken camera or
// detector leaves gesture control inert.
func (s *Session) fail(ctx context.Context, reason string) string {
	if signal, changed := s.tracker.Fail(); changed {
		s.gestures.Publish(control.Update{Signal: signal})
		log.Debug().Str("reason", reason).Int("misses", s.tracker.Misses()).Msg("hand tracking lost")
	}
	return s.skip(ctx, reason)
}

func (s *Session) skip(ctx context.Context, reason string) string {
	s.metrics.FrameSkipped(ctx, reason)
	return reason
}
