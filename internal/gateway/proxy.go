package gateway

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kasirpos/platform/internal/domain"
	"github.com/kasirpos/platform/internal/metric"
	"github.com/kasirpos/platform/internal/server"
)

// Proxy forwards a request to one backend service and relays the response
// verbatim: same method, body, bearer token, backend status and JSON body.
type Proxy struct {
	routes  *Routes
	client  *http.Client
	metrics *metric.Metrics
}

// NewProxy creates a proxy over the given route table. The timeout applies
// to the whole forwarded call.
func NewProxy(routes *Routes, timeout time.Duration, metrics *metric.Metrics) *Proxy {
	return &Proxy{
		routes:  routes,
		client:  &http.Client{Timeout: timeout},
		metrics: metrics,
	}
}

// Forward routes the inbound request to service, appending /api/<path> to
// the backend base address. Unknown services map to 404; transport errors
// to 503 with the triggering service name.
func (p *Proxy) Forward(w http.ResponseWriter, r *http.Request, service, path string) {
	base, ok := p.routes.Lookup(service)
	if !ok {
		server.WriteError(w, domain.ErrNotFound("Service not found").WithService(service))
		return
	}

	if !MethodAllowed(r.Method) {
		server.WriteError(w, domain.ErrClient("Method not allowed").
			WithStatusCode(http.StatusMethodNotAllowed))
		return
	}

	url := fmt.Sprintf("%s/api/%s", strings.TrimRight(base, "/"), strings.TrimLeft(path, "/"))
	if r.URL.RawQuery != "" {
		url += "?" + r.URL.RawQuery
	}

	req, err := http.NewRequestWithContext(r.Context(), r.Method, url, r.Body)
	if err != nil {
		server.WriteError(w, domain.ErrDependency("Service unavailable").WithService(service).Wrap(err))
		return
	}

	if ct := r.Header.Get("Content-Type"); ct != "" {
		req.Header.Set("Content-Type", ct)
	}
	if token := server.BearerToken(r); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("X-Request-ID", uuid.New().String())
	req.Header.Set("X-Forwarded-For", server.ClientIP(r))
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		p.count(service, "error")
		server.AddLogField(r.Context(), "proxy_error", err.Error())
		server.WriteError(w, domain.ErrDependency("Service unavailable").WithService(service).Wrap(err))
		return
	}
	defer resp.Body.Close()

	p.count(service, fmt.Sprintf("%d", resp.StatusCode))
	server.AddLogField(r.Context(), "backend", service)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.StatusCode)
	_, _ = io.Copy(w, resp.Body)
}

func (p *Proxy) count(service, status string) {
	if p.metrics != nil {
		p.metrics.RequestsProxied.WithLabelValues(service, status).Inc()
	}
}
