package promotions

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/wolfman30/pharmacy-ai-platform/internal/customers"
	"github.com/wolfman30/pharmacy-ai-platform/pkg/logging"
)

// Handler serves promotion endpoints.
type Handler struct {
	service *Service
	logger  *logging.Logger
}

// NewHandler creates a promotions handler.
func NewHandler(service *Service, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{service: service, logger: logger}
}

type eligibleResponse struct {
	CustomerID string      `json:"customer_id"`
	Promotions []Promotion `json:"promotions"`
}

// Eligible handles GET /api/promotions/eligible/{customerID}.
func (h *Handler) Eligible(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "customerID")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	items, err := h.service.EligibleForCustomer(r.Context(), id, limit)
	if err != nil {
		h.writeError(w, "eligible", err)
		return
	}
	if items == nil {
		items = []Promotion{}
	}
	writeJSON(w, http.StatusOK, eligibleResponse{CustomerID: id, Promotions: items})
}

type applyRequest struct {
	CustomerID string          `json:"customer_id"`
	OrderTotal decimal.Decimal `json:"order_total"`
	Products   []Candidate     `json:"products"`
}

type rejection struct {
	Applied bool   `json:"applied"`
	Reason  string `json:"reason"`
}

// Apply handles POST /api/promotions/{promotionID}/apply.
func (h *Handler) Apply(w http.ResponseWriter, r *http.Request) {
	var req applyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.CustomerID == "" {
		http.Error(w, "customer_id is required", http.StatusBadRequest)
		return
	}
	result, err := h.service.Apply(r.Context(), ApplyRequest{
		CustomerID:  req.CustomerID,
		PromotionID: chi.URLParam(r, "promotionID"),
		OrderTotal:  req.OrderTotal,
		Products:    req.Products,
	})
	if err != nil {
		h.writeError(w, "apply", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) writeError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrPromotionNotFound):
		http.Error(w, "promotion not found", http.StatusNotFound)
	case errors.Is(err, customers.ErrCustomerNotFound):
		http.Error(w, "customer not found", http.StatusNotFound)
	case errors.Is(err, ErrInvalidOrderTotal):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrPromotionInactive), errors.Is(err, ErrPromotionExhausted),
		errors.Is(err, ErrMinimumPurchase), errors.Is(err, ErrNotEligible), errors.Is(err, ErrProductMismatch):
		writeJSON(w, http.StatusUnprocessableEntity, rejection{Applied: false, Reason: err.Error()})
	default:
		h.logger.Error("promotion request failed", "op", op, "error", err)
		http.Error(w, "Failed to process request", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
