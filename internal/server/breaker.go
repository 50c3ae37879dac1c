package server

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/kasirpos/platform/internal/domain"
	"github.com/kasirpos/platform/internal/kvstore"
	"github.com/kasirpos/platform/internal/metric"
)

// BreakerConfig controls the per-backend circuit breaker thresholds.
type BreakerConfig struct {
	// FailureThreshold is the number of consecutive failures that opens
	// the circuit.
	FailureThreshold int

	// Timeout is how long the circuit stays open before a probe call is
	// admitted.
	Timeout time.Duration
}

// DefaultBreakerConfig matches the platform defaults: open after 5
// consecutive failures, stay open for 60 seconds.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{FailureThreshold: 5, Timeout: 60 * time.Second}
}

// CircuitBreakerMiddleware wraps every proxied call to one backend with a
// failure counter and open-timestamp kept in the shared store, so all
// gateway instances observe the same circuit.
//
// A response with status >= 500 (the proxy maps transport errors to 503)
// counts as a failure; anything below 500 counts as success and clears the
// consecutive-failure count. Once failures reach the threshold the circuit
// opens: calls short-circuit with 503 and the seconds remaining until
// retry, without touching the backend. After the timeout elapses exactly
// one caller claims the probe slot; a successful probe closes the circuit,
// a failed probe reopens it with a fresh timer.
func CircuitBreakerMiddleware(store kvstore.Store, service string, cfg BreakerConfig, metrics *metric.Metrics) func(http.Handler) http.Handler {
	countKey := "circuit-breaker:" + service
	resetKey := countKey + ":reset"
	probeKey := countKey + ":probe"

	shortCircuit := func(w http.ResponseWriter, remaining int) {
		if metrics != nil {
			metrics.BreakerShortCircuit.WithLabelValues(service).Inc()
		}
		WriteError(w, domain.ErrDependency("Service temporarily unavailable").
			WithService(service).
			WithRetryAfter(remaining))
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			failures, err := currentCount(r, store, countKey)
			if err != nil {
				WriteError(w, domain.ErrDependency("Circuit breaker store unavailable").Wrap(err))
				return
			}

			if failures >= int64(cfg.FailureThreshold) {
				if resetVal, ok, _ := store.Get(ctx, resetKey); ok {
					resetAt, _ := strconv.ParseInt(resetVal, 10, 64)
					if remaining := resetAt - time.Now().Unix(); remaining > 0 {
						shortCircuit(w, int(remaining))
						return
					}
				}

				// Timeout elapsed; admit a single probe call. Everyone
				// else keeps short-circuiting until the probe settles.
				n, err := store.Incr(ctx, probeKey, cfg.Timeout)
				if err != nil || n > 1 {
					shortCircuit(w, int(cfg.Timeout.Seconds()))
					return
				}
			}

			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)

			if sw.status >= http.StatusInternalServerError {
				_, _ = store.Incr(ctx, countKey, 0)
				resetAt := time.Now().Add(cfg.Timeout).Unix()
				// The reset timestamp only matters until the timeout
				// elapses; expire it so a backend that fails a few times
				// and then goes quiet leaves nothing behind in the store.
				_ = store.Set(ctx, resetKey, fmt.Sprintf("%d", resetAt), cfg.Timeout)
				_ = store.Delete(ctx, probeKey)
				AddLogField(ctx, "circuit_failure", service)
				return
			}

			// Success below 500 resets the consecutive-failure count.
			_ = store.Delete(ctx, countKey, resetKey, probeKey)
		})
	}
}
