package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestHealthz_AlwaysReturns200(t *testing.T) {
	h := New()
	h.AddProbe("store", func(_ context.Context) error {
		return errors.New("down")
	})

	req := httptest.NewRequest("GET", "/healthz", nil)
	rec := httptest.NewRecorder()
	h.Healthz(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}

	var body report
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	if body.Status != "ok" {
		t.Errorf("status = %q, want %q", body.Status, "ok")
	}
}

func TestReadyz_AllProbesPass(t *testing.T) {
	h := New()
	h.AddProbe("store", func(_ context.Context) error { return nil })
	h.AddProbe("jargon", func(_ context.Context) error { return nil })

	req := httptest.NewRequest("GET", "/readyz", nil)
	rec := httptest.NewRecorder()
	h.Readyz(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var body report
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	if body.Status != "ok" {
		t.Errorf("status = %q, want %q", body.Status, "ok")
	}
	for _, name := range []string{"store", "jargon"} {
		pr, ok := body.Probes[name]
		if !ok {
			t.Fatalf("probe %q missing from response", name)
		}
		if pr.Status != "ok" {
			t.Errorf("probe %q status = %q, want %q", name, pr.Status, "ok")
		}
		if pr.Duration == "" {
			t.Errorf("probe %q has no duration", name)
		}
	}
}

func TestReadyz_ProbeFails(t *testing.T) {
	h := New()
	h.AddProbe("store", func(_ context.Context) error {
		return errors.New("connection refused")
	})
	h.AddProbe("jargon", func(_ context.Context) error { return nil })

	req := httptest.NewRequest("GET", "/readyz", nil)
	rec := httptest.NewRecorder()
	h.Readyz(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}

	var body report
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	if body.Status != "fail" {
		t.Errorf("status = %q, want %q", body.Status, "fail")
	}
	if pr := body.Probes["store"]; pr.Status != "fail" || pr.Error != "connection refused" {
		t.Errorf("store probe = %+v, want fail with connection refused", pr)
	}
	if pr := body.Probes["jargon"]; pr.Status != "ok" {
		t.Errorf("jargon probe = %+v, want ok", pr)
	}
}

func TestReadyz_NoProbes(t *testing.T) {
	h := New()

	req := httptest.NewRequest("GET", "/readyz", nil)
	rec := httptest.NewRecorder()
	h.Readyz(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestAddProbe_ReplacesByName(t *testing.T) {
	h := New()
	h.AddProbe("store", func(_ context.Context) error {
		return errors.New("stale")
	})
	h.AddProbe("store", func(_ context.Context) error { return nil })

	req := httptest.NewRequest("GET", "/readyz", nil)
	rec := httptest.NewRecorder()
	h.Readyz(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d; replacement probe should win", rec.Code, http.StatusOK)
	}

	var body report
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	if len(body.Probes) != 1 {
		t.Errorf("probes = %d, want 1", len(body.Probes))
	}
}

func TestReadyz_RespectsContextCancellation(t *testing.T) {
	h := New()
	h.AddProbe("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	req := httptest.NewRequest("GET", "/readyz", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	h.Readyz(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
}

func TestWithProbeTimeout_BoundsProbe(t *testing.T) {
	h := New(WithProbeTimeout(20 * time.Millisecond))
	h.AddProbe("hung", func(ctx context.Context) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(5 * time.Second):
			return nil
		}
	})

	req := httptest.NewRequest("GET", "/readyz", nil)
	rec := httptest.NewRecorder()

	start := time.Now()
	h.Readyz(rec, req)
	elapsed := time.Since(start)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
	if elapsed > time.Second {
		t.Errorf("probe ran %v, want bounded by timeout", elapsed)
	}
}
