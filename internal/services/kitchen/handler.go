package kitchen

import (
	"net/http"

	"restaurant-orders/internal/logger"
	"restaurant-orders/internal/models"
	"restaurant-orders/internal/server"
)

// Handler exposes station reports over HTTP
type Handler struct {
	tracker *Tracker
	logger  *logger.Logger
}

func NewHandler(tracker *Tracker, log *logger.Logger) *Handler {
	return &Handler{tracker: tracker, logger: log}
}

func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /orders/update-status", h.UpdateStatus)
}

// UpdateStatus handles POST /orders/update-status
func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateStatusRequest
	if err := server.DecodeJSON(r, &req); err != nil {
		server.WriteError(w, r, h.logger, err)
		return
	}

	order, err := h.tracker.UpdateStatus(r.Context(), req)
	if err != nil {
		server.WriteError(w, r, h.logger, err)
		return
	}

	if err := server.WriteJSON(w, http.StatusOK, order); err != nil {
		h.logger.Error("response_encoding_failed", "Failed to encode response", logger.RequestIDFrom(r.Context()), err, nil)
	}
}
