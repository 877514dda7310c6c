package tracking

import (
	"net/http"

	"restaurant-orders/internal/logger"
	"restaurant-orders/internal/server"
)

// Handler handles HTTP requests for the tracking service
type Handler struct {
	service *Service
	logger  *logger.Logger
}

// NewHandler creates a new tracking handler
func NewHandler(service *Service, log *logger.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  log,
	}
}

func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /orders/{id}", h.GetOrderStatus)
	mux.HandleFunc("GET /orders/{id}/history", h.GetOrderHistory)
}

// GetOrderStatus handles GET /orders/{id}
func (h *Handler) GetOrderStatus(w http.ResponseWriter, r *http.Request) {
	requestID := logger.RequestIDFrom(r.Context())
	orderID := r.PathValue("id")

	h.logger.Debug("request_received", "Get order status request", requestID, map[string]interface{}{
		"order_id": orderID,
		"endpoint": "status",
	})

	status, err := h.service.GetOrderStatus(r.Context(), orderID)
	if err != nil {
		server.WriteError(w, r, h.logger, err)
		return
	}

	if err := server.WriteJSON(w, http.StatusOK, status); err != nil {
		h.logger.Error("response_encoding_failed", "Failed to encode response", requestID, err, nil)
	}
}

// GetOrderHistory handles GET /orders/{id}/history
func (h *Handler) GetOrderHistory(w http.ResponseWriter, r *http.Request) {
	requestID := logger.RequestIDFrom(r.Context())
	orderID := r.PathValue("id")

	h.logger.Debug("request_received", "Get order history request", requestID, map[string]interface{}{
		"order_id": orderID,
		"endpoint": "history",
	})

	history, err := h.service.GetOrderHistory(r.Context(), orderID)
	if err != nil {
		server.WriteError(w, r, h.logger, err)
		return
	}

	if err := server.WriteJSON(w, http.StatusOK, history); err != nil {
		h.logger.Error("response_encoding_failed", "Failed to encode response", requestID, err, nil)
	}
}
