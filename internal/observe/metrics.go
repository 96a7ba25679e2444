// Package observe provides application-wide observability primitives for
// Auricle: OpenTelemetry metrics, distributed tracing, structured logging,
// and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all Auricle metrics.
const meterName = "github.com/auricle-audio/auricle"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms ---

	// DetectionDuration tracks batch jargon-classification latency.
	DetectionDuration metric.Float64Histogram

	// ExplainDuration tracks single-word explanation latency.
	ExplainDuration metric.Float64Histogram

	// --- Audio pipeline counters ---

	// FramesEncoded counts PCM frames encoded and handed to the transport.
	FramesEncoded metric.Int64Counter

	// FramesDropped counts frames dropped because the transport refused them.
	FramesDropped metric.Int64Counter

	// BytesStreamed counts base64 payload bytes sent to the transcription
	// service.
	BytesStreamed metric.Int64Counter

	// --- Transcription counters ---

	// TranscriptEvents counts events from the transcription service. Use
	// with attribute: attribute.String("kind", "interim"|"committed").
	TranscriptEvents metric.Int64Counter

	// --- Jargon counters ---

	// DetectionRounds counts batch detection rounds. Use with attribute:
	//   attribute.String("status", "ok"|"error")
	DetectionRounds metric.Int64Counter

	// ExplainRequests counts word-explanation requests. Use with attributes:
	//   attribute.String("status", ...), attribute.String("cache", "hit"|"miss")
	ExplainRequests metric.Int64Counter

	// --- Gauges ---

	// ActiveSessions tracks the number of live listening sessions.
	ActiveSessions metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) sized for
// AI collaborator round trips.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.DetectionDuration, err = m.Float64Histogram("auricle.jargon.detection.duration",
		metric.WithDescription("Latency of batch jargon classification."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ExplainDuration, err = m.Float64Histogram("auricle.jargon.explain.duration",
		metric.WithDescription("Latency of single-word explanations."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Audio pipeline counters.
	if met.FramesEncoded, err = m.Int64Counter("auricle.audio.frames_encoded",
		metric.WithDescription("Total PCM frames encoded for transport."),
	); err != nil {
		return nil, err
	}
	if met.FramesDropped, err = m.Int64Counter("auricle.audio.frames_dropped",
		metric.WithDescription("Total frames dropped because the transport was not ready."),
	); err != nil {
		return nil, err
	}
	if met.BytesStreamed, err = m.Int64Counter("auricle.audio.bytes_streamed",
		metric.WithDescription("Total base64 payload bytes sent to the transcription service."),
		metric.WithUnit("By"),
	); err != nil {
		return nil, err
	}

	// Transcription counters.
	if met.TranscriptEvents, err = m.Int64Counter("auricle.transcript.events",
		metric.WithDescription("Total transcription events by kind."),
	); err != nil {
		return nil, err
	}

	// Jargon counters.
	if met.DetectionRounds, err = m.Int64Counter("auricle.jargon.detection.rounds",
		metric.WithDescription("Total batch detection rounds by status."),
	); err != nil {
		return nil, err
	}
	if met.ExplainRequests, err = m.Int64Counter("auricle.jargon.explain.requests",
		metric.WithDescription("Total word-explanation requests by status and cache outcome."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveSessions, err = m.Int64UpDownCounter("auricle.active_sessions",
		metric.WithDescription("Number of live listening sessions."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("auricle.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordTranscriptEvent records one transcription event of the given kind.
func (m *Metrics) RecordTranscriptEvent(ctx context.Context, kind string) {
	m.TranscriptEvents.Add(ctx, 1,
		metric.WithAttributes(attribute.String("kind", kind)),
	)
}

// RecordDetectionRound records one batch-detection round with its status.
func (m *Metrics) RecordDetectionRound(ctx context.Context, status string) {
	m.DetectionRounds.Add(ctx, 1,
		metric.WithAttributes(attribute.String("status", status)),
	)
}

// RecordExplainRequest records one word-explanation request with its status
// and cache outcome.
func (m *Metrics) RecordExplainRequest(ctx context.Context, status, cache string) {
	m.ExplainRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("status", status),
			attribute.String("cache", cache),
		),
	)
}
