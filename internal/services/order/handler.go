package order

import (
	"context"
	"net/http"
	"strings"
	"time"

	"restaurant-orders/internal/logger"
	"restaurant-orders/internal/models"
	"restaurant-orders/internal/server"
)

// Handler handles HTTP requests for the order service
type Handler struct {
	service *Service
	logger  *logger.Logger
}

// NewHandler creates a new order handler
func NewHandler(service *Service, log *logger.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  log,
	}
}

// RegisterRoutes mounts the order routes on mux
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /orders", h.CreateOrder)
	mux.HandleFunc("GET /orders", h.ListOrders)
	mux.HandleFunc("GET /health", h.HealthCheck)
}

// CreateOrder handles POST /orders requests
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	requestID := logger.RequestIDFrom(r.Context())

	h.logger.Debug("order_received", "Received order creation request", requestID, map[string]interface{}{
		"content_length": r.ContentLength,
		"remote_addr":    r.RemoteAddr,
	})

	var req models.CreateOrderRequest
	if err := server.DecodeJSON(r, &req); err != nil {
		h.logger.Warn("validation_failed", "Failed to parse request body", requestID, map[string]interface{}{
			"error": err.Error(),
		})
		server.WriteError(w, r, h.logger, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	order, err := h.service.CreateOrder(ctx, &req)
	if err != nil {
		server.WriteError(w, r, h.logger, err)
		return
	}

	if err := server.WriteJSON(w, http.StatusCreated, order); err != nil {
		h.logger.Error("response_encoding_failed", "Failed to encode response", requestID, err, nil)
	}
}

// ListOrders handles GET /orders?station=kitchen|bar|admin
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	requestID := logger.RequestIDFrom(r.Context())

	station, err := parseStationQuery(r.URL.Query().Get("station"))
	if err != nil {
		server.WriteError(w, r, h.logger, err)
		return
	}

	orders, err := h.service.ListForStation(r.Context(), station)
	if err != nil {
		server.WriteError(w, r, h.logger, err)
		return
	}

	if err := server.WriteJSON(w, http.StatusOK, orders); err != nil {
		h.logger.Error("response_encoding_failed", "Failed to encode response", requestID, err, nil)
	}
}

// HealthCheck handles GET /health requests
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	healthy := h.service.HealthCheck(ctx)

	response := map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"service":   "order-service",
		"healthy":   healthy,
	}

	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
		response["status"] = "unhealthy"
	}
	_ = server.WriteJSON(w, status, response)
}

// parseStationQuery maps the display name to a station. admin sees every
// open order.
func parseStationQuery(value string) (models.Station, error) {
	if strings.EqualFold(strings.TrimSpace(value), "admin") {
		return models.StationNone, nil
	}
	st, err := models.ParseStation(value)
	if err != nil || st == models.StationNone {
		return models.StationNone, models.ValidationError{
			Field:   "station",
			Message: "station must be kitchen, bar or admin",
		}
	}
	return st, nil
}
