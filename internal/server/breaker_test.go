package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kasirpos/platform/internal/kvstore"
)

// flakyBackend counts how many times the wrapped handler actually ran and
// serves the configured status.
type flakyBackend struct {
	hits   atomic.Int64
	status atomic.Int64
}

func newFlakyBackend(status int) *flakyBackend {
	b := &flakyBackend{}
	b.status.Store(int64(status))
	return b
}

func (b *flakyBackend) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		b.hits.Add(1)
		w.WriteHeader(int(b.status.Load()))
	})
}

func doBreaker(h http.Handler) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/orders", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestBreakerOpensAfterThreshold(t *testing.T) {
	store := kvstore.NewMemory()
	backend := newFlakyBackend(http.StatusBadGateway)
	cfg := BreakerConfig{FailureThreshold: 3, Timeout: time.Minute}
	h := CircuitBreakerMiddleware(store, "order", cfg, nil)(backend.handler())

	for i := 0; i < 3; i++ {
		rec := doBreaker(h)
		if rec.Code != http.StatusBadGateway {
			t.Fatalf("request %d: got status %d, want 502", i+1, rec.Code)
		}
	}

	rec := doBreaker(h)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("got status %d, want 503 short-circuit", rec.Code)
	}
	if got := backend.hits.Load(); got != 3 {
		t.Errorf("backend hit %d times, want 3 (short-circuit must not reach it)", got)
	}

	var body struct {
		Message    string `json:"message"`
		Service    string `json:"service"`
		RetryAfter int    `json:"retry_after"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Message != "Service temporarily unavailable" {
		t.Errorf("got message %q", body.Message)
	}
	if body.Service != "order" {
		t.Errorf("got service %q, want order", body.Service)
	}
	if body.RetryAfter <= 0 || body.RetryAfter > 60 {
		t.Errorf("got retry_after %d, want within (0,60]", body.RetryAfter)
	}
}

func TestBreakerSuccessResetsCount(t *testing.T) {
	store := kvstore.NewMemory()
	backend := newFlakyBackend(http.StatusInternalServerError)
	cfg := BreakerConfig{FailureThreshold: 3, Timeout: time.Minute}
	h := CircuitBreakerMiddleware(store, "order", cfg, nil)(backend.handler())

	doBreaker(h)
	doBreaker(h)

	backend.status.Store(http.StatusOK)
	if rec := doBreaker(h); rec.Code != http.StatusOK {
		t.Fatalf("got status %d, want 200", rec.Code)
	}

	// Two fresh failures must not open a threshold-3 circuit after the
	// success cleared the streak.
	backend.status.Store(http.StatusInternalServerError)
	doBreaker(h)
	doBreaker(h)

	backend.status.Store(http.StatusOK)
	if rec := doBreaker(h); rec.Code != http.StatusOK {
		t.Fatalf("after reset: got status %d, want 200", rec.Code)
	}
}

func TestBreakerProbeClosesOnSuccess(t *testing.T) {
	store := kvstore.NewMemory()
	backend := newFlakyBackend(http.StatusInternalServerError)
	cfg := BreakerConfig{FailureThreshold: 2, Timeout: time.Minute}
	h := CircuitBreakerMiddleware(store, "payment", cfg, nil)(backend.handler())

	doBreaker(h)
	doBreaker(h)
	if rec := doBreaker(h); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("circuit should be open, got %d", rec.Code)
	}

	// Rewind the reset timestamp so the open timeout has elapsed.
	expireReset(t, store, "circuit-breaker:payment:reset")

	backend.status.Store(http.StatusOK)
	hitsBefore := backend.hits.Load()
	if rec := doBreaker(h); rec.Code != http.StatusOK {
		t.Fatalf("probe: got status %d, want 200", rec.Code)
	}
	if backend.hits.Load() != hitsBefore+1 {
		t.Error("probe call did not reach the backend")
	}

	// Circuit closed: traffic flows again.
	if rec := doBreaker(h); rec.Code != http.StatusOK {
		t.Fatalf("after close: got status %d, want 200", rec.Code)
	}
}

func TestBreakerProbeReopensOnFailure(t *testing.T) {
	store := kvstore.NewMemory()
	backend := newFlakyBackend(http.StatusInternalServerError)
	cfg := BreakerConfig{FailureThreshold: 2, Timeout: time.Minute}
	h := CircuitBreakerMiddleware(store, "payment", cfg, nil)(backend.handler())

	doBreaker(h)
	doBreaker(h)

	expireReset(t, store, "circuit-breaker:payment:reset")

	// Failed probe reaches the backend once, then the circuit reopens with
	// a fresh timer.
	hitsBefore := backend.hits.Load()
	if rec := doBreaker(h); rec.Code != http.StatusInternalServerError {
		t.Fatalf("probe: got status %d, want 500", rec.Code)
	}
	if backend.hits.Load() != hitsBefore+1 {
		t.Error("probe call did not reach the backend")
	}

	rec := doBreaker(h)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("after failed probe: got status %d, want 503", rec.Code)
	}
	if backend.hits.Load() != hitsBefore+1 {
		t.Error("reopened circuit let a call through")
	}
}

func TestBreakerAdmitsSingleProbe(t *testing.T) {
	store := kvstore.NewMemory()
	cfg := BreakerConfig{FailureThreshold: 1, Timeout: time.Minute}

	release := make(chan struct{})
	var hits atomic.Int64
	backend := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if hits.Add(1) > 1 {
			<-release
		}
		w.WriteHeader(http.StatusInternalServerError)
	})
	h := CircuitBreakerMiddleware(store, "report", cfg, nil)(backend)

	doBreaker(h)

	expireReset(t, store, "circuit-breaker:report:reset")

	// First caller after the timeout claims the probe slot. While it is
	// still in flight a second caller must short-circuit.
	probeDone := make(chan *httptest.ResponseRecorder)
	go func() {
		probeDone <- doBreaker(h)
	}()

	waitFor(t, func() bool { return hits.Load() >= 2 })

	rec := doBreaker(h)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("second caller during probe: got %d, want 503", rec.Code)
	}

	close(release)
	<-probeDone
}

func TestBreakerResetKeyExpires(t *testing.T) {
	store := kvstore.NewMemory()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store.SetClock(func() time.Time { return now })

	backend := newFlakyBackend(http.StatusInternalServerError)
	cfg := BreakerConfig{FailureThreshold: 5, Timeout: time.Minute}
	h := CircuitBreakerMiddleware(store, "order", cfg, nil)(backend.handler())

	// A single failure below the threshold writes the reset timestamp.
	doBreaker(h)
	if _, ok, _ := store.Get(context.Background(), "circuit-breaker:order:reset"); !ok {
		t.Fatal("reset key missing right after a failure")
	}

	// With no further traffic the key must not linger past the timeout.
	now = now.Add(61 * time.Second)
	if _, ok, _ := store.Get(context.Background(), "circuit-breaker:order:reset"); ok {
		t.Error("reset key still present after the breaker timeout elapsed")
	}
}

func expireReset(t *testing.T, store kvstore.Store, key string) {
	t.Helper()
	past := time.Now().Add(-time.Second).Unix()
	if err := store.Set(context.Background(), key, fmt.Sprintf("%d", past), 0); err != nil {
		t.Fatalf("set reset key: %v", err)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}
