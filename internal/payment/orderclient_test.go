package payment

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderLookupDecodesOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/orders/10", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"data":{
			"id":10,"total_amount":200,"status":"pending",
			"items":[{"id":1},{"id":2},{"id":3}]}}`))
	}))
	defer srv.Close()

	info, err := NewHTTPOrderLookup(srv.URL).Order(context.Background(), 10)
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, int64(10), info.ID)
	assert.Equal(t, 200.0, info.TotalAmount)
	assert.Equal(t, "pending", info.Status)
	assert.Equal(t, 3, info.ItemsCount)
}

func TestOrderLookupNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	info, err := NewHTTPOrderLookup(srv.URL).Order(context.Background(), 99)
	require.NoError(t, err)
	assert.Nil(t, info)
}

func TestOrderLookupServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewHTTPOrderLookup(srv.URL).Order(context.Background(), 10)
	require.Error(t, err)
}
