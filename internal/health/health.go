// Package health serves the liveness and readiness probes exposed on the
// metrics listener.
//
//   - Healthz always answers 200: a process that can serve HTTP is alive.
//   - Readyz answers 200 only while every registered probe passes, so a
//     daemon with an unreachable moments store is taken out of rotation
//     without being restarted.
//
// Responses are JSON with a top-level "status" ("ok" or "fail") and one
// entry per probe carrying its outcome and duration.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// DefaultProbeTimeout bounds a single readiness probe unless the handler is
// built with a different timeout.
const DefaultProbeTimeout = 5 * time.Second

// ProbeFunc checks one dependency. It returns nil while the dependency is
// usable and must respect context cancellation.
type ProbeFunc func(ctx context.Context) error

// Handler answers liveness and readiness requests. Probes are fixed at
// construction; the handler is safe for concurrent use.
type Handler struct {
	names   []string
	probes  map[string]ProbeFunc
	timeout time.Duration
}

// Option adjusts a [Handler].
type Option func(*Handler)

// WithProbeTimeout overrides [DefaultProbeTimeout] for every probe.
func WithProbeTimeout(d time.Duration) Option {
	return func(h *Handler) {
		if d > 0 {
			h.timeout = d
		}
	}
}

// New creates a Handler with no probes registered. Such a handler reports
// ready unconditionally.
func New(opts ...Option) *Handler {
	h := &Handler{
		probes:  make(map[string]ProbeFunc),
		timeout: DefaultProbeTimeout,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// AddProbe registers a named readiness probe. Probes run in registration
// order on each Readyz request; re-registering a name replaces the probe.
func (h *Handler) AddProbe(name string, probe ProbeFunc) {
	if _, ok := h.probes[name]; !ok {
		h.names = append(h.names, name)
	}
	h.probes[name] = probe
}

type probeResult struct {
	Status   string `json:"status"`
	Error    string `json:"error,omitempty"`
	Duration string `json:"duration"`
}

type report struct {
	Status string                 `json:"status"`
	Probes map[string]probeResult `json:"probes,omitempty"`
}

// Healthz is the liveness endpoint. It never consults the probes.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, report{Status: "ok"})
}

// Readyz runs every registered probe and reports 200 only if all pass. Each
// probe gets its own timeout derived from the request context.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	rep := report{
		Status: "ok",
		Probes: make(map[string]probeResult, len(h.names)),
	}
	code := http.StatusOK

	for _, name := range h.names {
		ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
		start := time.Now()
		err := h.probes[name](ctx)
		elapsed := time.Since(start)
		cancel()

		res := probeResult{Status: "ok", Duration: elapsed.Round(time.Microsecond).String()}
		if err != nil {
			res.Status = "fail"
			res.Error = err.Error()
			rep.Status = "fail"
			code = http.StatusServiceUnavailable
		}
		rep.Probes[name] = res
	}

	writeJSON(w, code, rep)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"status":"error"}`, http.StatusInternalServerError)
	}
}
