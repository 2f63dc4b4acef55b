package products

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/wolfman30/pharmacy-ai-platform/pkg/logging"
)

// Handler serves catalog endpoints.
type Handler struct {
	service *Service
	logger  *logging.Logger
}

// NewHandler creates a products handler.
func NewHandler(service *Service, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{service: service, logger: logger}
}

type listResponse struct {
	Products []Product `json:"products"`
	Count    int       `json:"count"`
}

func newListResponse(items []Product) listResponse {
	if items == nil {
		items = []Product{}
	}
	return listResponse{Products: items, Count: len(items)}
}

// Search handles GET /api/products/search?q=.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		http.Error(w, "missing query parameter q", http.StatusBadRequest)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	items, err := h.service.SearchByName(r.Context(), q, limit)
	if err != nil {
		h.writeError(w, "search", err)
		return
	}
	writeJSON(w, http.StatusOK, newListResponse(items))
}

// BySymptom handles GET /api/products/symptom/{symptom}.
func (h *Handler) BySymptom(w http.ResponseWriter, r *http.Request) {
	symptom := chi.URLParam(r, "symptom")
	items, err := h.service.SearchBySymptom(r.Context(), symptom, 0)
	if err != nil {
		h.writeError(w, "search by symptom", err)
		return
	}
	writeJSON(w, http.StatusOK, newListResponse(items))
}

// Get handles GET /api/products/{productID}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.Get(r.Context(), chi.URLParam(r, "productID"))
	if err != nil {
		h.writeError(w, "get", err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// Categories handles GET /api/products/categories.
func (h *Handler) Categories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.service.Categories(r.Context())
	if err != nil {
		h.writeError(w, "categories", err)
		return
	}
	if categories == nil {
		categories = []string{}
	}
	writeJSON(w, http.StatusOK, map[string][]string{"categories": categories})
}

// Availability handles GET /api/products/{productID}/availability?quantity=.
func (h *Handler) Availability(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "productID")
	qty := 1
	if raw := r.URL.Query().Get("quantity"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			http.Error(w, "invalid quantity", http.StatusBadRequest)
			return
		}
		qty = n
	}
	avail, err := h.service.CheckAvailability(r.Context(), id, qty)
	if err != nil {
		h.writeError(w, "availability", err)
		return
	}
	writeJSON(w, http.StatusOK, avail)
}

func (h *Handler) writeError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrProductNotFound):
		http.Error(w, "product not found", http.StatusNotFound)
	case errors.Is(err, ErrInvalidQuantity):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		h.logger.Error("product request failed", "op", op, "error", err)
		http.Error(w, "Failed to process request", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
