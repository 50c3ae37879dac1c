package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// OrderInfo is the slice of the order record payment processing needs.
type OrderInfo struct {
	ID          int64   `json:"id"`
	TotalAmount float64 `json:"total_amount"`
	Status      string  `json:"status"`
	ItemsCount  int     `json:"-"`
}

// OrderLookup fetches order details from the order service.
type OrderLookup interface {
	// Order returns the order, or nil when it does not exist.
	Order(ctx context.Context, id int64) (*OrderInfo, error)
}

// HTTPOrderLookup calls the order service over HTTP.
type HTTPOrderLookup struct {
	base   string
	client *http.Client
}

// NewHTTPOrderLookup builds a lookup client for the order service at base.
func NewHTTPOrderLookup(base string) *HTTPOrderLookup {
	return &HTTPOrderLookup{
		base:   strings.TrimRight(base, "/"),
		client: &http.Client{Timeout: 5 * time.Second},
	}
}

func (c *HTTPOrderLookup) Order(ctx context.Context, id int64) (*OrderInfo, error) {
	url := fmt.Sprintf("%s/api/orders/%d", c.base, id)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("order lookup: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("order lookup: order service returned %d", resp.StatusCode)
	}

	var decoded struct {
		Data struct {
			OrderInfo
			Items []json.RawMessage `json:"items"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("order lookup: %w", err)
	}

	info := decoded.Data.OrderInfo
	info.ItemsCount = len(decoded.Data.Items)
	return &info, nil
}
