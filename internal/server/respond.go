package server

import (
	"encoding/json"
	"net/http"

	"github.com/kasirpos/platform/internal/domain"
)

// WriteJSON writes v as a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError writes a structured {success:false, message, ...} body. Every
// failure path goes through here so no stack traces or internals leak out.
func WriteError(w http.ResponseWriter, err *domain.Error) {
	body := map[string]any{
		"success": false,
		"message": err.Message,
	}
	if err.Service != "" {
		body["service"] = err.Service
	}
	if err.RetryAfter > 0 {
		body["retry_after"] = err.RetryAfter
	}
	if err.Details != nil {
		body["details"] = err.Details
	}
	if err.Err != nil && err.Type == domain.ErrorTypeDependency {
		body["error"] = err.Err.Error()
	}
	WriteJSON(w, err.HTTPStatusCode(), body)
}
