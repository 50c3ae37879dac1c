package payment

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/kasirpos/platform/internal/domain"
	"github.com/kasirpos/platform/internal/server"
)

// NewRouter exposes the payment service's HTTP surface.
func NewRouter(svc *Service, logger *slog.Logger) *chi.Mux {
	h := &handler{svc: svc}

	r := chi.NewRouter()
	r.Use(server.RequestIDMiddleware)
	r.Use(server.LoggingMiddleware(logger))
	r.Use(server.TimeoutMiddleware(30 * time.Second))
	r.Use(chimiddleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		server.WriteJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})

	r.Route("/api/payments", func(api chi.Router) {
		api.Post("/process", h.process)
		api.Get("/summary", h.summary)
	})

	return r
}

type handler struct {
	svc *Service
}

func (h *handler) process(w http.ResponseWriter, r *http.Request) {
	var req ProcessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		server.WriteError(w, domain.ErrClient("Invalid request body"))
		return
	}

	p, derr := h.svc.Process(r.Context(), req)
	if derr != nil {
		if p != nil {
			// Failed method execution: the payment row committed,
			// so return it alongside the error body.
			derr.Details = map[string]any{"payment": p, "error": p.ErrorMessage}
		}
		server.WriteError(w, derr)
		return
	}

	server.WriteJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"message": "Payment processed successfully",
		"data":    p,
	})
}

func (h *handler) summary(w http.ResponseWriter, r *http.Request) {
	sum, derr := h.svc.Summary(r.Context())
	if derr != nil {
		server.WriteError(w, derr)
		return
	}

	server.WriteJSON(w, http.StatusOK, map[string]any{"success": true, "data": sum})
}
