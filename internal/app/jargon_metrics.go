package app

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/auricle-audio/auricle/internal/jargon"
	"github.com/auricle-audio/auricle/internal/observe"
)

// observedProvider decorates a [jargon.Provider] with duration histograms,
// round counters, and spans. The coordinator serves cache hits itself, so
// every call that reaches this layer went to the backend.
type observedProvider struct {
	next    jargon.Provider
	metrics *observe.Metrics
}

var _ jargon.Provider = (*observedProvider)(nil)

func observeProvider(p jargon.Provider, m *observe.Metrics) jargon.Provider {
	if p == nil {
		return nil
	}
	return &observedProvider{next: p, metrics: m}
}

func (op *observedProvider) DetectJargon(ctx context.Context, transcript string) ([]string, error) {
	ctx, span := observe.StartSpan(ctx, "jargon.detect",
		trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	start := time.Now()
	words, err := op.next.DetectJargon(ctx, transcript)
	op.metrics.DetectionDuration.Record(ctx, time.Since(start).Seconds())

	status := "ok"
	if err != nil {
		status = "error"
		span.RecordError(err)
	}
	op.metrics.RecordDetectionRound(ctx, status)
	return words, err
}

func (op *observedProvider) ExplainWord(ctx context.Context, word, wordContext string) (jargon.Detection, error) {
	ctx, span := observe.StartSpan(ctx, "jargon.explain",
		trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	start := time.Now()
	det, err := op.next.ExplainWord(ctx, word, wordContext)
	op.metrics.ExplainDuration.Record(ctx, time.Since(start).Seconds())

	status := "ok"
	if err != nil {
		status = "error"
		span.RecordError(err)
	}
	op.metrics.RecordExplainRequest(ctx, status, "miss")
	return det, err
}
