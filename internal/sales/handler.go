package sales

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/pharmacy-ai-platform/internal/customers"
	"github.com/wolfman30/pharmacy-ai-platform/internal/products"
	"github.com/wolfman30/pharmacy-ai-platform/pkg/logging"
)

// Handler serves purchase and order history endpoints.
type Handler struct {
	service *Service
	logger  *logging.Logger
}

// NewHandler creates a sales handler.
func NewHandler(service *Service, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{service: service, logger: logger}
}

// RecordPurchase handles POST /api/customers/{customerID}/purchases.
func (h *Handler) RecordPurchase(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "customerID")
	var req PurchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	receipt, err := h.service.RecordPurchase(r.Context(), id, req)
	if err != nil {
		h.writeError(w, "record purchase", id, err)
		return
	}
	writeJSON(w, http.StatusCreated, receipt)
}

// Orders handles GET /api/customers/{customerID}/orders?limit=.
func (h *Handler) Orders(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "customerID")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	orders, err := h.service.Recent(r.Context(), id, limit)
	if err != nil {
		h.writeError(w, "orders", id, err)
		return
	}
	if orders == nil {
		orders = []Record{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": orders, "count": len(orders)})
}

func (h *Handler) writeError(w http.ResponseWriter, op, id string, err error) {
	switch {
	case errors.Is(err, customers.ErrCustomerNotFound):
		http.Error(w, "customer not found", http.StatusNotFound)
	case errors.Is(err, products.ErrProductNotFound):
		http.Error(w, "product not found", http.StatusNotFound)
	case errors.Is(err, products.ErrInsufficientStock):
		http.Error(w, "insufficient stock", http.StatusConflict)
	case errors.Is(err, ErrInvalidRecord), errors.Is(err, ErrPrescriptionRequired), errors.Is(err, products.ErrInvalidQuantity):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		h.logger.Error("sales request failed", "op", op, "customer_id", id, "error", err)
		http.Error(w, "Failed to process request", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
