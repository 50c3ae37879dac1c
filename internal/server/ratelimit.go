package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/kasirpos/platform/internal/domain"
	"github.com/kasirpos/platform/internal/kvstore"
	"github.com/kasirpos/platform/internal/metric"
)

const rateLimitWindow = time.Minute

// RateLimitMiddleware gates traffic per client IP with fixed one-minute
// windows counted in the shared store. The window's expiry is set once at
// creation, so a burst near the boundary can admit slightly more than limit
// requests across two windows; that fixed-window artifact is accepted.
//
// The check-then-increment sequence is two store operations, so concurrent
// requests for the same key can race past the nominal limit by a few
// requests. Increments themselves are atomic at the store level.
func RateLimitMiddleware(store kvstore.Store, limit int, metrics *metric.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := "rate-limit:" + ClientIP(r)

			count, err := currentCount(r, store, key)
			if err != nil {
				WriteError(w, domain.ErrDependency("Rate limit store unavailable").Wrap(err))
				return
			}

			if count >= int64(limit) {
				if metrics != nil {
					metrics.RateLimitRejected.Inc()
				}
				WriteError(w, domain.ErrRateLimit("Too many requests").
					WithRetryAfter(int(rateLimitWindow.Seconds())))
				return
			}

			if _, err := store.Incr(r.Context(), key, rateLimitWindow); err != nil {
				WriteError(w, domain.ErrDependency("Rate limit store unavailable").Wrap(err))
				return
			}

			w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", limit))
			w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", int64(limit)-count-1))

			next.ServeHTTP(w, r)
		})
	}
}

func currentCount(r *http.Request, store kvstore.Store, key string) (int64, error) {
	val, ok, err := store.Get(r.Context(), key)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	var n int64
	if _, err := fmt.Sscanf(val, "%d", &n); err != nil {
		return 0, err
	}
	return n, nil
}
