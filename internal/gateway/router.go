package gateway

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/kasirpos/platform/internal/config"
	"github.com/kasirpos/platform/internal/kvstore"
	"github.com/kasirpos/platform/internal/metric"
	"github.com/kasirpos/platform/internal/server"
)

// Server is the gateway HTTP server with the full resilience stack wired:
// request IDs, logging, token validation, rate limiting and one circuit
// breaker per backend.
type Server struct {
	Router *chi.Mux
	Port   int
	logger *slog.Logger
}

// NewServer wires the gateway routes per the platform contract. All shared
// state (rate windows, breaker counters) lives in the injected store so the
// gateway tier stays stateless and horizontally scalable.
func NewServer(
	cfg *config.Config,
	logger *slog.Logger,
	store kvstore.Store,
	validator *server.TokenValidator,
	metrics *metric.Metrics,
) *Server {
	routes := NewRoutes(cfg.Services)
	forwardTimeout := time.Duration(cfg.Gateway.ForwardTimeoutSecs) * time.Second

	proxy := NewProxy(routes, forwardTimeout, metrics)
	aggregator := NewAggregator(routes, 10*time.Second)
	health := NewHealthChecker(routes)

	breakerCfg := server.BreakerConfig{
		FailureThreshold: cfg.Gateway.BreakerThreshold,
		Timeout:          time.Duration(cfg.Gateway.BreakerTimeoutSecs) * time.Second,
	}

	r := chi.NewRouter()
	r.Use(server.RequestIDMiddleware)
	r.Use(server.LoggingMiddleware(logger))
	r.Use(server.TimeoutMiddleware(forwardTimeout + 5*time.Second))
	r.Use(chimiddleware.Recoverer)
	r.Use(func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, "pos-gateway")
	})

	// forward relays the full request path to the named backend.
	forward := func(service string) http.HandlerFunc {
		return func(w http.ResponseWriter, req *http.Request) {
			proxy.Forward(w, req, service, strings.TrimPrefix(req.URL.Path, "/"))
		}
	}

	// Public routes, no token required.
	r.Post("/auth/login", func(w http.ResponseWriter, req *http.Request) {
		proxy.Forward(w, req, ServiceAuth, "auth/login")
	})
	r.Post("/auth/register", func(w http.ResponseWriter, req *http.Request) {
		proxy.Forward(w, req, ServiceAuth, "auth/register")
	})

	// Authenticated group: bearer token, then the per-client rate limit,
	// then a per-backend circuit breaker around each proxied prefix.
	r.Group(func(g chi.Router) {
		g.Use(server.AuthMiddleware(validator))
		g.Use(server.RateLimitMiddleware(store, cfg.Gateway.RateLimitPerMinute, metrics))

		g.With(server.CircuitBreakerMiddleware(store, "default", breakerCfg, metrics)).
			Get("/dashboard", func(w http.ResponseWriter, req *http.Request) {
				result := aggregator.Dashboard(req.Context(), server.BearerToken(req))
				server.WriteJSON(w, http.StatusOK, result)
			})

		proxied := []struct {
			prefix  string
			service string
		}{
			{"/auth", ServiceAuth},
			{"/products", ServiceProduct},
			{"/orders", ServiceOrder},
			{"/payments", ServicePayment},
			{"/reports", ServiceReporting},
		}
		for _, p := range proxied {
			breaker := server.CircuitBreakerMiddleware(store, p.service, breakerCfg, metrics)
			g.With(breaker).Handle(p.prefix, forward(p.service))
			g.With(breaker).Handle(p.prefix+"/*", forward(p.service))
		}
	})

	// Health fan-out over every backend.
	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		server.WriteJSON(w, http.StatusOK, map[string]any{
			"status":    "healthy",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"services":  health.Check(req.Context()),
		})
	})

	if metrics != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler())
	}

	return &Server{
		Router: r,
		Port:   cfg.Server.Port,
		logger: logger,
	}
}

// Start blocks serving HTTP on the configured port.
func (s *Server) Start() error {
	s.logger.Info("starting gateway", slog.Int("port", s.Port))
	return http.ListenAndServe(fmt.Sprintf(":%d", s.Port), s.Router)
}
