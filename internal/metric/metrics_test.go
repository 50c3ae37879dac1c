package metric

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHandlerServesRegisteredCounters(t *testing.T) {
	m := New()
	m.EventsPublished.WithLabelValues("order.created", "ok").Inc()
	m.EventsConsumed.WithLabelValues("order.created", "dropped").Inc()
	m.RateLimitRejected.Inc()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d, want 200", rec.Code)
	}

	body := rec.Body.String()
	for _, want := range []string{
		`pos_events_published_total{routing_key="order.created",status="ok"} 1`,
		`pos_events_consumed_total{result="dropped",routing_key="order.created"} 1`,
		`pos_gateway_rate_limited_total 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestRegistriesAreIndependent(t *testing.T) {
	a := New()
	b := New()
	a.RateLimitRejected.Inc()

	rec := httptest.NewRecorder()
	b.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if strings.Contains(rec.Body.String(), "pos_gateway_rate_limited_total 1") {
		t.Error("counter increment leaked across registries")
	}
}
