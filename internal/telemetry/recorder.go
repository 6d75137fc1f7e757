package telemetry

import (
	"context"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"blendflow/internal/job"
)

const meterName = "blendflow"

// Recorder consumes execution events. Implementations must be safe for
// concurrent use.
type Recorder interface {
	RecordAttempt(ctx context.Context, attempt job.Attempt, kind string)
	RecordStage(ctx context.Context, outcome job.StageOutcome, dependency string)
	SetPoolUsage(busy, capacity int)
	SetQueueDepth(depth int)
}

// Nop discards every event.
type Nop struct{}

func (Nop) RecordAttempt(context.Context, job.Attempt, string) {}
func (Nop) RecordStage(context.Context, job.StageOutcome, string) {}
func (Nop) SetPoolUsage(int, int) {}
func (Nop) SetQueueDepth(int) {}

// Metrics records events as OpenTelemetry instruments.
type Metrics struct {
	provider *sdkmetric.MeterProvider
	reader   *sdkmetric.ManualReader

	attempts  metric.Int64Counter
	depErrors metric.Int64Counter
	duration  metric.Float64Histogram

	busy     atomic.Int64
	capacity atomic.Int64
	queue    atomic.Int64
}

// NewMetrics builds a meter provider backed by a manual reader so the CLI can
// print a summary at the end of a run without an exporter.
func NewMetrics() (*Metrics, error) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	meter := provider.Meter(meterName)

	m := &Metrics{provider: provider, reader: reader}
	var err error
	if m.attempts, err = meter.Int64Counter(
		"blendflow.stage.attempts",
		metric.WithDescription("Stage attempts by outcome"),
	); err != nil {
		return nil, err
	}
	if m.depErrors, err = meter.Int64Counter(
		"blendflow.dependency.errors",
		metric.WithDescription("Failed attempts by dependency and failure kind"),
	); err != nil {
		return nil, err
	}
	if m.duration, err = meter.Float64Histogram(
		"blendflow.stage.duration",
		metric.WithDescription("Wall time of a stage invocation including retries"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}
	utilization, err := meter.Float64ObservableGauge(
		"blendflow.pool.utilization",
		metric.WithDescription("Fraction of worker slots in use"),
	)
	if err != nil {
		return nil, err
	}
	depth, err := meter.Int64ObservableGauge(
		"blendflow.pool.queue_depth",
		metric.WithDescription("Jobs admitted to the pool but not yet terminal"),
	)
	if err != nil {
		return nil, err
	}
	if _, err := meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		capacity := m.capacity.Load()
		var ratio float64
		if capacity > 0 {
			ratio = float64(m.busy.Load()) / float64(capacity)
		}
		o.ObserveFloat64(utilization, ratio)
		o.ObserveInt64(depth, m.queue.Load())
		return nil
	}, utilization, depth); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Metrics) RecordAttempt(ctx context.Context, attempt job.Attempt, kind string) {
	m.attempts.Add(ctx, 1, metric.WithAttributes(
		attribute.String("stage", string(attempt.Stage)),
		attribute.String("dependency", attempt.Dependency),
		attribute.String("outcome", string(attempt.Outcome)),
	))
	if attempt.Outcome != job.OutcomeSuccess && kind != "" {
		m.depErrors.Add(ctx, 1, metric.WithAttributes(
			attribute.String("dependency", attempt.Dependency),
			attribute.String("kind", kind),
		))
	}
}

func (m *Metrics) RecordStage(ctx context.Context, outcome job.StageOutcome, dependency string) {
	m.duration.Record(ctx, outcome.Duration.Seconds(), metric.WithAttributes(
		attribute.String("stage", string(outcome.Stage)),
		attribute.String("dependency", dependency),
		attribute.String("status", string(outcome.Status)),
	))
}

func (m *Metrics) SetPoolUsage(busy, capacity int) {
	m.busy.Store(int64(busy))
	m.capacity.Store(int64(capacity))
}

func (m *Metrics) SetQueueDepth(depth int) {
	m.queue.Store(int64(depth))
}

// Shutdown flushes and releases the provider.
func (m *Metrics) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return m.provider.Shutdown(shutdownCtx)
}
