package customers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/wolfman30/pharmacy-ai-platform/pkg/logging"
)

// Handler handles HTTP requests for customer profiles.
type Handler struct {
	service *Service
	logger  *logging.Logger
}

// NewHandler creates a new customers handler.
func NewHandler(service *Service, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{service: service, logger: logger}
}

// GetCustomer handles GET /api/customers/{customerID}.
func (h *Handler) GetCustomer(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "customerID")
	c, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, "get customer", id, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// GetSummary handles GET /api/customers/{customerID}/summary.
func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "customerID")
	summary, err := h.service.Summary(r.Context(), id)
	if err != nil {
		h.writeError(w, "get summary", id, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

type profileRequest struct {
	Name              *string `json:"name"`
	Email             *string `json:"email"`
	Phone             *string `json:"phone"`
	DateOfBirth       *string `json:"date_of_birth"`
	Gender            *string `json:"gender"`
	Address           *string `json:"address"`
	MedicalConditions *string `json:"medical_conditions"`
	Allergies         *string `json:"allergies"`
}

func (p profileRequest) toUpdate() (ProfileUpdate, error) {
	upd := ProfileUpdate{
		Name:              p.Name,
		Email:             p.Email,
		Phone:             p.Phone,
		Gender:            p.Gender,
		Address:           p.Address,
		MedicalConditions: p.MedicalConditions,
		Allergies:         p.Allergies,
	}
	if p.DateOfBirth != nil {
		dob, err := time.Parse("2006-01-02", *p.DateOfBirth)
		if err != nil {
			return ProfileUpdate{}, errors.New("date_of_birth must be YYYY-MM-DD")
		}
		upd.DateOfBirth = &dob
	}
	if upd == (ProfileUpdate{}) {
		return ProfileUpdate{}, errors.New("no profile fields to update")
	}
	return upd, nil
}

// UpdateProfile handles PATCH /api/customers/{customerID}.
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "customerID")
	var req profileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	upd, err := req.toUpdate()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	c, err := h.service.UpdateProfile(r.Context(), id, upd)
	if err != nil {
		h.writeError(w, "update profile", id, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

type loyaltyRequest struct {
	Points int `json:"points"`
}

type loyaltyResponse struct {
	CustomerID    string `json:"customer_id"`
	LoyaltyPoints int    `json:"loyalty_points"`
}

// AddLoyaltyPoints handles POST /api/customers/{customerID}/loyalty.
func (h *Handler) AddLoyaltyPoints(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "customerID")
	var req loyaltyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	balance, err := h.service.AddLoyaltyPoints(r.Context(), id, req.Points)
	if err != nil {
		h.writeError(w, "add loyalty points", id, err)
		return
	}
	writeJSON(w, http.StatusOK, loyaltyResponse{CustomerID: id, LoyaltyPoints: balance})
}

func (h *Handler) writeError(w http.ResponseWriter, op, id string, err error) {
	switch {
	case errors.Is(err, ErrCustomerNotFound):
		http.Error(w, "customer not found", http.StatusNotFound)
	case errors.Is(err, ErrInvalidPoints):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		h.logger.Error("customer request failed", "op", op, "customer_id", id, "error", err)
		http.Error(w, "Failed to process request", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
