package order

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/kasirpos/platform/internal/domain"
	"github.com/kasirpos/platform/internal/server"
)

// NewRouter exposes the order service's HTTP surface.
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

	r.Route("/api/orders", func(api chi.Router) {
		api.Post("/", h.create)
		api.Get("/summary", h.summary)
		api.Get("/{id}", h.get)
		api.Post("/{id}/cancel", h.cancel)
	})

	return r
}

type handler struct {
	svc *Service
}

func (h *handler) create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		server.WriteError(w, domain.ErrClient("Invalid request body"))
		return
	}

	o, derr := h.svc.Create(r.Context(), req)
	if derr != nil {
		server.WriteError(w, derr)
		return
	}

	server.WriteJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"message": "Order created successfully",
		"data":    o,
	})
}

func (h *handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		server.WriteError(w, domain.ErrClient("Invalid order id"))
		return
	}

	o, derr := h.svc.Get(r.Context(), id)
	if derr != nil {
		server.WriteError(w, derr)
		return
	}

	server.WriteJSON(w, http.StatusOK, map[string]any{"success": true, "data": o})
}

func (h *handler) cancel(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		server.WriteError(w, domain.ErrClient("Invalid order id"))
		return
	}

	o, derr := h.svc.Cancel(r.Context(), id)
	if derr != nil {
		server.WriteError(w, derr)
		return
	}

	server.WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Order cancelled",
		"data":    o,
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
