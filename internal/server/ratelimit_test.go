package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kasirpos/platform/internal/kvstore"
)

func baseTime() time.Time {
	return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
}

func doRateLimited(t *testing.T, h http.Handler, ip string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/orders", nil)
	req.RemoteAddr = ip + ":51234"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRateLimitAllowsUpToLimit(t *testing.T) {
	store := kvstore.NewMemory()
	h := RateLimitMiddleware(store, 3, nil)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 3; i++ {
		rec := doRateLimited(t, h, "10.0.0.1")
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: got status %d, want 200", i+1, rec.Code)
		}
	}
}

func TestRateLimitRejectsOverLimit(t *testing.T) {
	store := kvstore.NewMemory()
	h := RateLimitMiddleware(store, 3, nil)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 3; i++ {
		doRateLimited(t, h, "10.0.0.1")
	}

	rec := doRateLimited(t, h, "10.0.0.1")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("got status %d, want 429", rec.Code)
	}

	var body struct {
		Success    bool   `json:"success"`
		Message    string `json:"message"`
		RetryAfter int    `json:"retry_after"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Success {
		t.Error("expected success=false")
	}
	if body.Message != "Too many requests" {
		t.Errorf("got message %q", body.Message)
	}
	if body.RetryAfter != 60 {
		t.Errorf("got retry_after %d, want 60", body.RetryAfter)
	}
}

func TestRateLimitHeaders(t *testing.T) {
	store := kvstore.NewMemory()
	h := RateLimitMiddleware(store, 5, nil)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := doRateLimited(t, h, "10.0.0.1")
	if got := rec.Header().Get("X-RateLimit-Limit"); got != "5" {
		t.Errorf("X-RateLimit-Limit = %q, want 5", got)
	}
	if got := rec.Header().Get("X-RateLimit-Remaining"); got != "4" {
		t.Errorf("X-RateLimit-Remaining = %q, want 4", got)
	}

	rec = doRateLimited(t, h, "10.0.0.1")
	if got := rec.Header().Get("X-RateLimit-Remaining"); got != "3" {
		t.Errorf("X-RateLimit-Remaining = %q, want 3", got)
	}
}

func TestRateLimitCountsPerIP(t *testing.T) {
	store := kvstore.NewMemory()
	h := RateLimitMiddleware(store, 1, nil)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	if rec := doRateLimited(t, h, "10.0.0.1"); rec.Code != http.StatusOK {
		t.Fatalf("first ip: got status %d, want 200", rec.Code)
	}
	if rec := doRateLimited(t, h, "10.0.0.1"); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("first ip second request: got status %d, want 429", rec.Code)
	}
	if rec := doRateLimited(t, h, "10.0.0.2"); rec.Code != http.StatusOK {
		t.Fatalf("second ip: got status %d, want 200", rec.Code)
	}
}

func TestRateLimitWindowExpiry(t *testing.T) {
	store := kvstore.NewMemory()
	now := baseTime()
	store.SetClock(func() time.Time { return now })

	h := RateLimitMiddleware(store, 1, nil)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	doRateLimited(t, h, "10.0.0.1")
	if rec := doRateLimited(t, h, "10.0.0.1"); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("got status %d, want 429", rec.Code)
	}

	now = now.Add(61 * time.Second)
	if rec := doRateLimited(t, h, "10.0.0.1"); rec.Code != http.StatusOK {
		t.Fatalf("after window expiry: got status %d, want 200", rec.Code)
	}
}
