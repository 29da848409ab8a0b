package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Resume outcomes reported to RecordResume.
const (
	ResumeScratch  = "scratch"
	ResumeFound    = "found"
	ResumeFallback = "fallback"
)

// MetricsRecorder records trainkit metrics.
// Use NewMetricsRecorder() for OTel metrics or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// RecordPersist records a checkpoint write with its size, duration and error status.
	RecordPersist(ctx context.Context, epoch int, sizeBytes int64, duration time.Duration, err error)

	// RecordLoad records a checkpoint read.
	RecordLoad(ctx context.Context, duration time.Duration, err error)

	// RecordResume records the outcome of resume resolution.
	RecordResume(ctx context.Context, outcome string)

	// RecordDecay records a learning-rate decay and the resulting rate.
	RecordDecay(ctx context.Context, rate float64)
}

// otelMetrics implements MetricsRecorder using OpenTelemetry.
type otelMetrics struct {
	persists       metric.Int64Counter
	persistErrors  metric.Int64Counter
	persistLatency metric.Float64Histogram
	checkpointSize metric.Int64Histogram
	loads          metric.Int64Counter
	loadLatency    metric.Float64Histogram
	resumes        metric.Int64Counter
	decays         metric.Int64Counter
	learningRate   metric.Float64Gauge
}

var (
	defaultMetrics     *otelMetrics
	defaultMetricsOnce sync.Once
	defaultMetricsErr  error
)

// getDefaultMetrics returns the default OTel metrics instance.
// Lazily initializes the metrics on first call.
func getDefaultMetrics() (*otelMetrics, error) {
	defaultMetricsOnce.Do(func() {
		defaultMetrics, defaultMetricsErr = newOtelMetrics()
	})
	return defaultMetrics, defaultMetricsErr
}

// newOtelMetrics creates a new OTel metrics instance.
func newOtelMetrics() (*otelMetrics, error) {
	meter := otel.Meter("trainkit")

	persists, err := meter.Int64Counter("trainkit.checkpoint.persists",
		metric.WithDescription("Number of checkpoint writes"),
	)
	if err != nil {
		return nil, err
	}

	persistErrors, err := meter.Int64Counter("trainkit.checkpoint.persist_errors",
		metric.WithDescription("Number of failed checkpoint writes"),
	)
	if err != nil {
		return nil, err
	}

	persistLatency, err := meter.Float64Histogram("trainkit.checkpoint.persist_latency_ms",
		metric.WithDescription("Checkpoint write latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	checkpointSize, err := meter.Int64Histogram("trainkit.checkpoint.size_bytes",
		metric.WithDescription("Checkpoint size in bytes"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, err
	}

	loads, err := meter.Int64Counter("trainkit.checkpoint.loads",
		metric.WithDescription("Number of checkpoint reads"),
	)
	if err != nil {
		return nil, err
	}

	loadLatency, err := meter.Float64Histogram("trainkit.checkpoint.load_latency_ms",
		metric.WithDescription("Checkpoint read latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	resumes, err := meter.Int64Counter("trainkit.resume.resolutions",
		metric.WithDescription("Resume resolutions by outcome"),
	)
	if err != nil {
		return nil, err
	}

	decays, err := meter.Int64Counter("trainkit.plateau.decays",
		metric.WithDescription("Number of plateau-triggered learning-rate decays"),
	)
	if err != nil {
		return nil, err
	}

	learningRate, err := meter.Float64Gauge("trainkit.plateau.learning_rate",
		metric.WithDescription("Effective learning rate after the last decay"),
	)
	if err != nil {
		return nil, err
	}

	return &otelMetrics{
		persists:       persists,
		persistErrors:  persistErrors,
		persistLatency: persistLatency,
		checkpointSize: checkpointSize,
		loads:          loads,
		loadLatency:    loadLatency,
		resumes:        resumes,
		decays:         decays,
		learningRate:   learningRate,
	}, nil
}

// NewMetricsRecorder returns a MetricsRecorder that uses OpenTelemetry.
// If metrics initialization fails, returns a no-op recorder.
//
// The recorder uses the global OTel meter provider. Configure the provider
// before calling this function:
//
//	import "go.opentelemetry.io/otel"
//	otel.SetMeterProvider(yourProvider)
func NewMetricsRecorder() MetricsRecorder {
	m, err := getDefaultMetrics()
	if err != nil {
		slog.Warn("metrics initialization failed, using no-op recorder",
			slog.String("error", err.Error()))
		return NoopMetrics{}
	}
	return m
}

// RecordPersist records a checkpoint write.
func (m *otelMetrics) RecordPersist(ctx context.Context, epoch int, sizeBytes int64, duration time.Duration, err error) {
	attrs := metric.WithAttributes(attribute.Bool("success", err == nil))

	m.persists.Add(ctx, 1, attrs)
	m.persistLatency.Record(ctx, float64(duration.Milliseconds()), attrs)

	if err != nil {
		m.persistErrors.Add(ctx, 1, metric.WithAttributes(attribute.Int("epoch", epoch)))
		return
	}
	m.checkpointSize.Record(ctx, sizeBytes)
}

// RecordLoad records a checkpoint read.
func (m *otelMetrics) RecordLoad(ctx context.Context, duration time.Duration, err error) {
	attrs := metric.WithAttributes(attribute.Bool("success", err == nil))
	m.loads.Add(ctx, 1, attrs)
	m.loadLatency.Record(ctx, float64(duration.Milliseconds()), attrs)
}

// RecordResume records a resume resolution outcome.
func (m *otelMetrics) RecordResume(ctx context.Context, outcome string) {
	m.resumes.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordDecay records a learning-rate decay.
func (m *otelMetrics) RecordDecay(ctx context.Context, rate float64) {
	m.decays.Add(ctx, 1)
	m.learningRate.Record(ctx, rate)
}
