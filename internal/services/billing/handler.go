package billing

import (
	"net/http"

	"restaurant-orders/internal/logger"
	"restaurant-orders/internal/models"
	"restaurant-orders/internal/server"
)

// Handler exposes billing over HTTP
type Handler struct {
	service *Service
	logger  *logger.Logger
}

func NewHandler(service *Service, log *logger.Logger) *Handler {
	return &Handler{service: service, logger: log}
}

func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /tables", h.Overview)
	mux.HandleFunc("GET /tables/{name}/bill", h.TableBill)
	mux.HandleFunc("POST /tables/clear", h.ClearTable)
	mux.HandleFunc("POST /tables/apply-discount", h.ApplyDiscount)
	mux.HandleFunc("POST /tables/request-bill", h.RequestBill)
	mux.HandleFunc("POST /orders/{id}/undo-payment", h.UndoPayment)
}

func (h *Handler) Overview(w http.ResponseWriter, r *http.Request) {
	views, err := h.service.Overview(r.Context())
	h.respond(w, r, views, err)
}

func (h *Handler) TableBill(w http.ResponseWriter, r *http.Request) {
	bill, err := h.service.TableBill(r.Context(), r.PathValue("name"))
	h.respond(w, r, bill, err)
}

func (h *Handler) ClearTable(w http.ResponseWriter, r *http.Request) {
	var req models.TableRequest
	if err := server.DecodeJSON(r, &req); err != nil {
		server.WriteError(w, r, h.logger, err)
		return
	}
	cleared, err := h.service.ClearTable(r.Context(), req.TableName)
	h.respond(w, r, cleared, err)
}

func (h *Handler) ApplyDiscount(w http.ResponseWriter, r *http.Request) {
	var req models.ApplyDiscountRequest
	if err := server.DecodeJSON(r, &req); err != nil {
		server.WriteError(w, r, h.logger, err)
		return
	}
	bill, err := h.service.ApplyDiscount(r.Context(), req)
	h.respond(w, r, bill, err)
}

func (h *Handler) RequestBill(w http.ResponseWriter, r *http.Request) {
	var req models.TableRequest
	if err := server.DecodeJSON(r, &req); err != nil {
		server.WriteError(w, r, h.logger, err)
		return
	}
	table, err := h.service.RequestBill(r.Context(), req.TableName)
	h.respond(w, r, table, err)
}

func (h *Handler) UndoPayment(w http.ResponseWriter, r *http.Request) {
	order, err := h.service.UndoPayment(r.Context(), r.PathValue("id"))
	h.respond(w, r, order, err)
}

func (h *Handler) respond(w http.ResponseWriter, r *http.Request, v any, err error) {
	if err != nil {
		server.WriteError(w, r, h.logger, err)
		return
	}
	if err := server.WriteJSON(w, http.StatusOK, v); err != nil {
		h.logger.Error("response_encoding_failed", "Failed to encode response", logger.RequestIDFrom(r.Context()), err, nil)
	}
}
