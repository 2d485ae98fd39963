package transport

import (
	"encoding/json"
	"net/http"

	"tpv-haido/internal/domain"
	"tpv-haido/internal/middleware"
	"tpv-haido/internal/storage"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// OrderHandler handles HTTP requests for orders.
type OrderHandler struct {
	adapter storage.Adapter
	logger  *zap.Logger
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(adapter storage.Adapter, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{adapter: adapter, logger: logger}
}

// RegisterRoutes registers the order routes.
func (h *OrderHandler) RegisterRoutes(r chi.Router) {
	r.Route("/orders", func(r chi.Router) {
		r.Get("/", h.ListOrders)
		r.Post("/", h.CreateOrder)
		r.Put("/{id}", h.UpdateOrder)
		r.Delete("/{id}", h.DeleteOrder)
	})
}

// decodeOrder decodes an order payload and settles its derived totals so
// stored orders always satisfy total == sum(items).
func (h *OrderHandler) decodeOrder(w http.ResponseWriter, r *http.Request) (domain.Order, bool) {
	var order domain.Order
	if err := json.NewDecoder(r.Body).Decode(&order); err != nil {
		h.logger.Debug("Order decode failed", zap.Error(err))
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return domain.Order{}, false
	}
	if order.Items == nil {
		order.Items = []domain.OrderItem{}
	}
	order.Recalculate()
	return order, true
}

// ListOrders returns the full order collection.
func (h *OrderHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.adapter.GetOrders(r.Context())
	if err != nil {
		respondStorageError(w, h.logger, "load orders", err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, orders)
}

// CreateOrder creates an order.
func (h *OrderHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	order, ok := h.decodeOrder(w, r)
	if !ok {
		return
	}
	if order.ID == 0 {
		middleware.RespondWithError(w, http.StatusBadRequest, "order id is required")
		return
	}
	if err := h.adapter.CreateOrder(r.Context(), order); err != nil {
		respondStorageError(w, h.logger, "create order", err)
		return
	}

	h.logger.Info("Order created",
		zap.Int64("id", order.ID),
		zap.Int64("table_number", order.TableNumber),
	)
	middleware.RespondWithJSON(w, http.StatusCreated, order)
}

// UpdateOrder replaces an order. The path id wins over any id in the body.
func (h *OrderHandler) UpdateOrder(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	order, ok := h.decodeOrder(w, r)
	if !ok {
		return
	}
	order.ID = id

	if err := h.adapter.UpdateOrder(r.Context(), order); err != nil {
		respondStorageError(w, h.logger, "update order", err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, order)
}

// DeleteOrder deletes an order. Deleting an unknown id succeeds.
func (h *OrderHandler) DeleteOrder(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid order id")
		return
	}
	if err := h.adapter.DeleteOrder(r.Context(), id); err != nil {
		respondStorageError(w, h.logger, "delete order", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
