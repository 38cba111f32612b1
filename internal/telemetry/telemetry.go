// Package telemetry records runtime counters through the global OpenTelemetry
// meter. Without a configured provider every instrument is a no-op.
package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/ayusman/tinsel"

// Reasons an inference frame is skipped.
const (
	SkipNotReady      = "not_ready"
	SkipInvalidFrame  = "invalid_frame"
	SkipStale         = "stale_timestamp"
	SkipDetectorError = "detector_error"
	SkipReadError     = "read_error"
)

// Metrics holds the session instruments. A nil *Metrics records nothing.
type Metrics struct {
	framesProcessed metric.Int64Counter
	framesSkipped   metric.Int64Counter
	focusChanges    metric.Int64Counter
	renderTick      metric.Float64Histogram
	sceneClients    metric.Int64UpDownCounter
}

// New creates instruments on the global meter.
func New() (*Metrics, error) {
	return NewWithMeter(otel.Meter(instrumentationName))
}

// NewWithMeter creates instruments on m.
func NewWithMeter(m metric.Meter) (*Metrics, error) {
	var (
		mt  Metrics
		err error
	)

	mt.framesProcessed, err = m.Int64Counter(
		"inference.frames.processed",
		metric.WithDescription("Camera frames passed to the landmark source"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating processed counter: %w", err)
	}

	mt.framesSkipped, err = m.Int64Counter(
		"inference.frames.skipped",
		metric.WithDescription("Inference ticks that produced no new signal"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating skipped counter: %w", err)
	}

	mt.focusChanges, err = m.Int64Counter(
		"focus.changes",
		metric.WithDescription("Changes of the focused photo"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating focus counter: %w", err)
	}

	mt.renderTick, err = m.Float64Histogram(
		"render.tick.duration",
		metric.WithDescription("Time spent in one render tick"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating render histogram: %w", err)
	}

	mt.sceneClients, err = m.Int64UpDownCounter(
		"scene.clients",
		metric.WithDescription("Connected scene websocket clients"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating clients counter: %w", err)
	}

	return &mt, nil
}

// FrameProcessed counts a frame sent to inference.
func (m *Metrics) FrameProcessed(ctx context.Context) {
	if m == nil {
		return
	}
	m.framesProcessed.Add(ctx, 1)
}

// FrameSkipped counts an inference tick skipped for reason.
func (m *Metrics) FrameSkipped(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	m.framesSkipped.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

// FocusChanged counts a focus change; focused is false when focus was
// cleared.
func (m *Metrics) FocusChanged(ctx context.Context, focused bool) {
	if m == nil {
		return
	}
	m.focusChanges.Add(ctx, 1, metric.WithAttributes(attribute.Bool("focused", focused)))
}

// RenderTick records the duration of a render tick.
func (m *Metrics) RenderTick(ctx context.Context, d time.Duration) {
	if m == nil {
		return
	}
	m.renderTick.Record(ctx, float64(d)/float64(time.Millisecond))
}

// SceneClients adjusts the connected client count.
func (m *Metrics) SceneClients(ctx context.Context, delta int64) {
	if m == nil {
		return
	}
	m.sceneClients.Add(ctx, delta)
}
