package order

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// StockStatus is the product service's availability verdict for one item.
type StockStatus struct {
	ProductID   int64  `json:"product_id"`
	IsAvailable bool   `json:"is_available"`
	Name        string `json:"name,omitempty"`
	Stock       int    `json:"stock,omitempty"`
}

// StockChecker verifies item availability before an order commits.
type StockChecker interface {
	Check(ctx context.Context, items []CheckItem) ([]StockStatus, error)
}

// CheckItem is one line of a stock-check request.
type CheckItem struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

// HTTPStockChecker calls the product service's check-stock endpoint.
type HTTPStockChecker struct {
	url    string
	client *http.Client
}

// NewHTTPStockChecker builds a checker for the product service at base.
func NewHTTPStockChecker(base string) *HTTPStockChecker {
	return &HTTPStockChecker{
		url:    strings.TrimRight(base, "/") + "/api/products/check-stock",
		client: &http.Client{Timeout: 5 * time.Second},
	}
}

func (c *HTTPStockChecker) Check(ctx context.Context, items []CheckItem) ([]StockStatus, error) {
	body, err := json.Marshal(map[string]any{"items": items})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("stock check: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("stock check: product service returned %d", resp.StatusCode)
	}

	var decoded struct {
		Data []StockStatus `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("stock check: %w", err)
	}
	return decoded.Data, nil
}
