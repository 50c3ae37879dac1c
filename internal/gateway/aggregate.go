package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"
)

// DashboardResult combines the three backend summaries. A nil field means
// that sub-call failed or timed out; partial results are a valid outcome,
// not an error.
type DashboardResult struct {
	Products json.RawMessage `json:"products"`
	Orders   json.RawMessage `json:"orders"`
	Payments json.RawMessage `json:"payments"`
}

// Aggregator issues several backend calls concurrently and merges the
// results, tolerating individual failures.
type Aggregator struct {
	routes  *Routes
	client  *http.Client
	timeout time.Duration
}

// NewAggregator creates an aggregator with a shared per-fan-out timeout.
func NewAggregator(routes *Routes, timeout time.Duration) *Aggregator {
	return &Aggregator{
		routes:  routes,
		client:  &http.Client{},
		timeout: timeout,
	}
}

// Dashboard fetches the product, order and payment summaries in parallel
// with one shared deadline and forwards the caller's bearer token to each.
func (a *Aggregator) Dashboard(ctx context.Context, token string) *DashboardResult {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	calls := []struct {
		service string
		path    string
		dest    *json.RawMessage
	}{
		{ServiceProduct, "products/summary", nil},
		{ServiceOrder, "orders/summary", nil},
		{ServicePayment, "payments/summary", nil},
	}

	result := &DashboardResult{}
	calls[0].dest = &result.Products
	calls[1].dest = &result.Orders
	calls[2].dest = &result.Payments

	var wg sync.WaitGroup
	for _, call := range calls {
		wg.Add(1)
		go func(service, path string, dest *json.RawMessage) {
			defer wg.Done()
			if body, ok := a.fetch(ctx, service, path, token); ok {
				*dest = body
			}
		}(call.service, call.path, call.dest)
	}
	wg.Wait()

	return result
}

// fetch performs one summary sub-call. Any failure (unknown service,
// transport error, non-2xx status, unreadable body) simply yields no data.
func (a *Aggregator) fetch(ctx context.Context, service, path, token string) (json.RawMessage, bool) {
	base, ok := a.routes.Lookup(service)
	if !ok {
		return nil, false
	}

	url := fmt.Sprintf("%s/api/%s", strings.TrimRight(base, "/"), path)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, false
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, false
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, false
	}

	var body json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, false
	}
	return body, true
}
