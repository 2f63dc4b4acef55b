package conversation

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/pharmacy-ai-platform/internal/customers"
	"github.com/wolfman30/pharmacy-ai-platform/pkg/logging"
)

// IdentityResolver maps a channel identity to a customer record.
type IdentityResolver interface {
	ResolveChannelIdentity(ctx context.Context, id customers.Identity) (*customers.Customer, error)
}

// Handler wires HTTP requests to the conversation agent.
type Handler struct {
	agent      *Agent
	identities IdentityResolver
	logger     *logging.Logger
}

// NewHandler creates a conversation handler.
func NewHandler(agent *Agent, identities IdentityResolver, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{agent: agent, identities: identities, logger: logger}
}

// MessageRequest is the body of POST /api/chat/message. Either CustomerID or
// ExternalID must be set; ExternalID is resolved on the api channel.
type MessageRequest struct {
	CustomerID  string `json:"customer_id"`
	ExternalID  string `json:"external_id"`
	DisplayName string `json:"name"`
	Message     string `json:"message"`
	Channel     string `json:"channel"`
}

type messageResponse struct {
	CustomerID string `json:"customer_id"`
	Result
}

// Message handles POST /api/chat/message.
func (h *Handler) Message(w http.ResponseWriter, r *http.Request) {
	var req MessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error("failed to decode message request", "error", err)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		http.Error(w, "message is required", http.StatusBadRequest)
		return
	}

	customerID := strings.TrimSpace(req.CustomerID)
	if customerID == "" {
		if strings.TrimSpace(req.ExternalID) == "" || h.identities == nil {
			http.Error(w, "customer_id or external_id is required", http.StatusBadRequest)
			return
		}
		c, err := h.identities.ResolveChannelIdentity(r.Context(), customers.Identity{
			Channel:     customers.ChannelAPI,
			ExternalID:  req.ExternalID,
			DisplayName: req.DisplayName,
		})
		if err != nil {
			h.logger.Error("failed to resolve customer", "external_id", req.ExternalID, "error", err)
			http.Error(w, "Failed to process message", http.StatusInternalServerError)
			return
		}
		customerID = c.ID
	}

	channel := strings.ToLower(strings.TrimSpace(req.Channel))
	if channel == "" {
		channel = customers.ChannelAPI
	}
	res := h.agent.ProcessMessage(r.Context(), customerID, req.Message, channel)
	h.writeJSON(w, http.StatusOK, messageResponse{CustomerID: customerID, Result: res})
}

// GetContext handles GET /api/conversations/{customerID}/context.
func (h *Handler) GetContext(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.agent.Context(r.Context(), chi.URLParam(r, "customerID")))
}

// DeleteContext handles DELETE /api/conversations/{customerID}/context.
func (h *Handler) DeleteContext(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "customerID")
	if err := h.agent.ResetContext(r.Context(), id); err != nil {
		h.logger.Error("failed to invalidate context", "customer_id", id, "error", err)
		http.Error(w, "Failed to reset context", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to write JSON response", "error", err)
	}
}
