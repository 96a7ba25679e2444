package observe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// newInstrumented wires a handler through Middleware backed by in-memory
// metric and span collectors.
func newInstrumented(t *testing.T, h http.HandlerFunc) (http.Handler, *sdkmetric.ManualReader, *tracetest.InMemoryExporter) {
	t.Helper()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	exp := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	return Middleware(m)(h), reader, exp
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestMiddleware_CorrelationID(t *testing.T) {
	var inHandler string
	h, _, _ := newInstrumented(t, func(w http.ResponseWriter, r *http.Request) {
		inHandler = CorrelationID(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	rec := serve(h, httptest.NewRequest("GET", "/words", nil))

	if inHandler == "" {
		t.Fatal("no correlation ID in handler context")
	}
	if len(inHandler) != 32 {
		t.Errorf("correlation ID length = %d, want 32 hex chars", len(inHandler))
	}
	if got := rec.Header().Get("X-Correlation-ID"); got != inHandler {
		t.Errorf("X-Correlation-ID = %q, want %q", got, inHandler)
	}
}

func TestMiddleware_ContinuesIncomingTrace(t *testing.T) {
	const traceID = "4bf92f3577b34da6a3ce929d0e0e4736"

	var inHandler string
	h, _, _ := newInstrumented(t, func(w http.ResponseWriter, r *http.Request) {
		inHandler = CorrelationID(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest("GET", "/words", nil)
	req.Header.Set("traceparent", "00-"+traceID+"-00f067aa0ba902b7-01")
	rec := serve(h, req)

	if inHandler != traceID {
		t.Errorf("handler correlation ID = %q, want incoming trace ID %q", inHandler, traceID)
	}
	if got := rec.Header().Get("X-Correlation-ID"); got != traceID {
		t.Errorf("X-Correlation-ID = %q, want %q", got, traceID)
	}
}

func TestMiddleware_SpanNameAndStatus(t *testing.T) {
	h, _, exp := newInstrumented(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	rec := serve(h, httptest.NewRequest("GET", "/moments", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}

	spans := exp.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("spans recorded = %d, want 1", len(spans))
	}
	if spans[0].Name != "HTTP GET /moments" {
		t.Errorf("span name = %q", spans[0].Name)
	}
	var status int64 = -1
	for _, a := range spans[0].Attributes {
		if string(a.Key) == "http.response.status_code" {
			status = a.Value.AsInt64()
		}
	}
	if status != 404 {
		t.Errorf("span http.response.status_code = %d, want 404", status)
	}
}

func TestMiddleware_RecordsDurationWithAttributes(t *testing.T) {
	h, reader, _ := newInstrumented(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})

	serve(h, httptest.NewRequest("POST", "/capture", nil))

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	met := findMetric(rm, "auricle.http.request.duration")
	if met == nil {
		t.Fatal("duration histogram not found")
	}
	hist, ok := met.Data.(metricdata.Histogram[float64])
	if !ok || len(hist.DataPoints) == 0 {
		t.Fatal("no histogram data points")
	}

	dp := hist.DataPoints[0]
	if dp.Count != 1 {
		t.Errorf("sample count = %d, want 1", dp.Count)
	}
	want := map[string]string{"method": "POST", "path": "/capture", "status": "201"}
	for _, kv := range dp.Attributes.ToSlice() {
		if expected, ok := want[string(kv.Key)]; ok && kv.Value.Emit() == expected {
			delete(want, string(kv.Key))
		}
	}
	if len(want) != 0 {
		t.Errorf("missing attributes on data point: %v", want)
	}
}

func TestResponseTap_CountsBytes(t *testing.T) {
	h, _, _ := newInstrumented(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("kubernetes: a container orchestrator"))
	})

	rec := serve(h, httptest.NewRequest("GET", "/explain", nil))

	if rec.Body.Len() == 0 {
		t.Fatal("body not forwarded through tap")
	}
	if rec.Code != http.StatusOK {
		t.Errorf("implicit status = %d, want 200", rec.Code)
	}
}

func TestPolled(t *testing.T) {
	for _, path := range []string{"/metrics", "/healthz", "/readyz"} {
		if !polled(path) {
			t.Errorf("polled(%q) = false, want true", path)
		}
	}
	if polled("/words") {
		t.Error("polled(/words) = true, want false")
	}
}
