package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the instruments recorded by the dialogue engine. Without an
// installed meter provider every instrument is a no-op.
type Metrics struct {
	Frames        metric.Int64Counter
	StaleFrames   metric.Int64Counter
	StageFailures metric.Int64Counter
	StageDuration metric.Float64Histogram
	Reloads       metric.Int64Counter
}

func NewMetrics() (*Metrics, error) {
	meter := otel.Meter("yui")

	frames, err := meter.Int64Counter("yui.stream.frames",
		metric.WithDescription("Frames decoded from stage streams"),
	)
	if err != nil {
		return nil, err
	}

	stale, err := meter.Int64Counter("yui.stream.stale_frames",
		metric.WithDescription("Frames dropped because the session binding rotated"),
	)
	if err != nil {
		return nil, err
	}

	failures, err := meter.Int64Counter("yui.stage.failures",
		metric.WithDescription("Stage executions that failed"),
	)
	if err != nil {
		return nil, err
	}

	duration, err := meter.Float64Histogram("yui.stage.duration_seconds",
		metric.WithDescription("Wall time of one stage execution"),
	)
	if err != nil {
		return nil, err
	}

	reloads, err := meter.Int64Counter("yui.session.reloads",
		metric.WithDescription("Session reloads after a stage stream ended"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		Frames:        frames,
		StaleFrames:   stale,
		StageFailures: failures,
		StageDuration: duration,
		Reloads:       reloads,
	}, nil
}

// NewMetricsOrNil is NewMetrics for callers that cannot fail. It returns
// nil on error, which every Record method tolerates.
func NewMetricsOrNil() *Metrics {
	m, err := NewMetrics()
	if err != nil {
		return nil
	}
	return m
}

func (m *Metrics) RecordFrame(ctx context.Context, frameType string) {
	if m == nil {
		return
	}
	m.Frames.Add(ctx, 1, metric.WithAttributes(attribute.String("type", frameType)))
}

func (m *Metrics) RecordStaleFrame(ctx context.Context) {
	if m == nil {
		return
	}
	m.StaleFrames.Add(ctx, 1)
}

func (m *Metrics) RecordStage(ctx context.Context, stage string, d time.Duration, err error) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("stage", stage))
	m.StageDuration.Record(ctx, d.Seconds(), attrs)
	if err != nil {
		m.StageFailures.Add(ctx, 1, attrs)
	}
}

func (m *Metrics) RecordReload(ctx context.Context, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.Reloads.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}
