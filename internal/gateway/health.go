package gateway

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Health classifications for one backend probe.
const (
	HealthHealthy     = "healthy"
	HealthUnhealthy   = "unhealthy"
	HealthUnreachable = "unreachable"
)

// HealthChecker probes every backend's own /health endpoint concurrently
// with a short timeout.
type HealthChecker struct {
	routes *Routes
	client *http.Client
}

// NewHealthChecker creates a checker with a 2 second per-probe timeout.
func NewHealthChecker(routes *Routes) *HealthChecker {
	return &HealthChecker{
		routes: routes,
		client: &http.Client{Timeout: 2 * time.Second},
	}
}

// Check probes all backends and returns a classification per service:
// healthy (2xx), unhealthy (non-2xx) or unreachable (transport error).
func (h *HealthChecker) Check(ctx context.Context) map[string]string {
	names := h.routes.Names()
	results := make(map[string]string, len(names))

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, name := range names {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			status := h.probe(ctx, name)
			mu.Lock()
			results[name] = status
			mu.Unlock()
		}(name)
	}
	wg.Wait()

	return results
}

func (h *HealthChecker) probe(ctx context.Context, service string) string {
	base, ok := h.routes.Lookup(service)
	if !ok {
		return HealthUnreachable
	}

	url := strings.TrimRight(base, "/") + "/health"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return HealthUnreachable
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return HealthUnreachable
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return HealthHealthy
	}
	return HealthUnhealthy
}
