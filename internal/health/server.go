// Package health serves the inspector's liveness endpoint: dependency checks
// plus a host metrics snapshot.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"
)

const checkTimeout = 2 * time.Second

// CheckFunc returns nil when the dependency is reachable.
type CheckFunc func(ctx context.Context) error

type check struct {
	fn       CheckFunc
	critical bool
}

type HealthResponse struct {
	Status        string            `json:"status"`
	Service       string            `json:"service"`
	UptimeSeconds int64             `json:"uptime_seconds"`
	Timestamp     int64             `json:"timestamp"`
	Dependencies  map[string]string `json:"dependencies"`
	System        *SystemMetrics    `json:"system,omitempty"`
}

type HealthServer struct {
	service string
	started time.Time
	mu      sync.RWMutex
	checks  map[string]check
	system  func(ctx context.Context) *SystemMetrics
	server  *http.Server
}

func NewHealthServer(service string) *HealthServer {
	return &HealthServer{
		service: service,
		started: time.Now(),
		checks:  make(map[string]check),
		system:  CollectSystem,
	}
}

// Register adds a dependency check. A failing critical check makes the
// service unhealthy; any other failure only degrades it.
func (h *HealthServer) Register(name string, critical bool, fn CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks[name] = check{fn: fn, critical: critical}
}

func (h *HealthServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", h.healthCheckHandler)
	return mux
}

func (h *HealthServer) Start(addr string) error {
	h.server = &http.Server{
		Addr:              addr,
		Handler:           h.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	return h.server.ListenAndServe()
}

func (h *HealthServer) Shutdown(ctx context.Context) error {
	if h.server != nil {
		return h.server.Shutdown(ctx)
	}
	return nil
}

// Check runs every registered check and builds the response.
func (h *HealthServer) Check(ctx context.Context) *HealthResponse {
	h.mu.RLock()
	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	checks := make(map[string]check, len(h.checks))
	for k, v := range h.checks {
		checks[k] = v
	}
	h.mu.RUnlock()
	sort.Strings(names)

	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	type result struct {
		name string
		err  error
	}
	results := make(chan result, len(names))
	for _, name := range names {
		go func(name string, c check) {
			results <- result{name: name, err: c.fn(ctx)}
		}(name, checks[name])
	}

	resp := &HealthResponse{
		Status:        "healthy",
		Service:       h.service,
		UptimeSeconds: int64(time.Since(h.started).Seconds()),
		Timestamp:     time.Now().Unix(),
		Dependencies:  make(map[string]string, len(names)),
	}

	for range names {
		r := <-results
		if r.err == nil {
			resp.Dependencies[r.name] = "connected"
			continue
		}
		resp.Dependencies[r.name] = "error: " + r.err.Error()
		if checks[r.name].critical {
			resp.Status = "unhealthy"
		} else if resp.Status == "healthy" {
			resp.Status = "degraded"
		}
	}

	if h.system != nil {
		resp.System = h.system(ctx)
	}

	return resp
}

func (h *HealthServer) healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	resp := h.Check(r.Context())

	code := http.StatusOK
	if resp.Status == "unhealthy" {
		code = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(resp)
}
