package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wolfman30/pharmacy-ai-platform/internal/customers"
	"github.com/wolfman30/pharmacy-ai-platform/internal/observability/metrics"
	"github.com/wolfman30/pharmacy-ai-platform/internal/products"
	"github.com/wolfman30/pharmacy-ai-platform/internal/promotions"
	"github.com/wolfman30/pharmacy-ai-platform/internal/sales"
	"github.com/wolfman30/pharmacy-ai-platform/pkg/logging"
)

const (
	productResultLimit      = 10
	promotionResultLimit    = 5
	prescriptionResultLimit = 10
	orderResultLimit        = 5
	replyHistoryTurns       = 5
)

var errEmptyReply = errors.New("conversation: generate reply: empty response")

// ProductFinder searches the catalog.
type ProductFinder interface {
	SearchByName(ctx context.Context, query string, limit int) ([]products.Product, error)
	SearchBySymptom(ctx context.Context, symptom string, limit int) ([]products.Product, error)
	SearchByCategory(ctx context.Context, category string, limit int) ([]products.Product, error)
}

// PromotionFinder lists promotions a customer qualifies for.
type PromotionFinder interface {
	EligiblePromotions(ctx context.Context, c *customers.Customer, candidates []promotions.Candidate, limit int) ([]promotions.Promotion, error)
}

// SalesFinder reads a customer's purchase history.
type SalesFinder interface {
	Recent(ctx context.Context, customerID string, limit int) ([]sales.Record, error)
	PrescriptionLines(ctx context.Context, customerID string, limit int) ([]sales.PrescriptionLine, error)
}

// CustomerFinder loads a customer profile.
type CustomerFinder interface {
	GetByID(ctx context.Context, id string) (*customers.Customer, error)
}

// ComposerConfig tunes the reply generation call.
type ComposerConfig struct {
	Model        string
	MaxTokens    int32
	Temperature  float32
	PharmacyName string
}

// Composer turns a classified message into domain data and a reply.
type Composer struct {
	llm        LLMClient
	products   ProductFinder
	promotions PromotionFinder
	sales      SalesFinder
	customers  CustomerFinder
	cfg        ComposerConfig
	system     string
	metrics    *metrics.ConversationMetrics
	logger     *logging.Logger
	now        func() time.Time
}

// NewComposer wires the lookups and the reply model.
func NewComposer(llm LLMClient, pf ProductFinder, prf PromotionFinder, sf SalesFinder, cf CustomerFinder, cfg ComposerConfig, m *metrics.ConversationMetrics, logger *logging.Logger) *Composer {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 500
	}
	return &Composer{
		llm:        llm,
		products:   pf,
		promotions: prf,
		sales:      sf,
		customers:  cf,
		cfg:        cfg,
		system:     buildReplySystemPrompt(cfg.PharmacyName),
		metrics:    m,
		logger:     logger,
		now:        time.Now,
	}
}

// DomainContext is the data handed to the reply model, serialized as JSON.
type DomainContext struct {
	Intent        string                   `json:"intent"`
	Sentiment     string                   `json:"sentiment"`
	Urgency       string                   `json:"urgency"`
	Entities      Entities                 `json:"entities"`
	Customer      *customers.Summary       `json:"customer,omitempty"`
	Products      []products.Product       `json:"products,omitempty"`
	Promotions    []promotions.Promotion   `json:"promotions,omitempty"`
	Prescriptions []sales.PrescriptionLine `json:"prescriptions,omitempty"`
	Orders        []sales.Record           `json:"recent_orders,omitempty"`
	Unavailable   []string                 `json:"unavailable_data,omitempty"`
}

// Reply is the composed answer.
type Reply struct {
	Text    string
	Usage   TokenUsage
	Actions []Action
}

// Compose gathers domain data for the intent and generates the reply. Lookup
// failures degrade to error actions; a failed reply call is returned as an error.
func (c *Composer) Compose(ctx context.Context, customerID, message string, cls ClassificationResult, history []Turn) (Reply, error) {
	dc, actions := c.gather(ctx, customerID, cls)

	payload, err := json.Marshal(dc)
	if err != nil {
		return Reply{}, fmt.Errorf("conversation: marshal domain context: %w", err)
	}

	messages := turnsToMessages(lastTurns(history, replyHistoryTurns))
	messages = append(messages, ChatMessage{Role: ChatRoleUser, Content: message})

	start := time.Now()
	resp, err := c.llm.Complete(ctx, LLMRequest{
		Model:       c.cfg.Model,
		System:      []string{c.system, "DOMAIN CONTEXT:\n" + string(payload)},
		Messages:    messages,
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: c.cfg.Temperature,
	})
	c.metrics.ObserveLLMLatency("reply", err == nil, time.Since(start).Seconds())
	if err != nil {
		return Reply{}, fmt.Errorf("conversation: generate reply: %w", err)
	}
	if strings.TrimSpace(resp.Text) == "" {
		return Reply{}, errEmptyReply
	}
	return Reply{Text: resp.Text, Usage: resp.Usage, Actions: actions}, nil
}

func (c *Composer) gather(ctx context.Context, customerID string, cls ClassificationResult) (DomainContext, []Action) {
	dc := DomainContext{
		Intent:    cls.Intent,
		Sentiment: cls.Sentiment,
		Urgency:   cls.Urgency,
		Entities:  cls.Entities,
	}
	actions := []Action{}

	customer, err := c.customers.GetByID(ctx, customerID)
	if err != nil {
		c.logger.Warn("customer profile unavailable", "customer_id", customerID, "error", err)
	} else {
		summary := customers.Summarize(customer, c.now())
		dc.Customer = &summary
	}

	fail := func(what string, err error) {
		c.logger.Error("domain lookup failed", "customer_id", customerID, "intent", cls.Intent, "lookup", what, "error", err)
		c.metrics.ObserveLookupFailure(cls.Intent)
		dc.Unavailable = append(dc.Unavailable, what)
		actions = append(actions, Action{Type: ActionError, Data: map[string]string{
			"intent":  cls.Intent,
			"message": "Some " + what + " information is temporarily unavailable.",
		}})
	}

	switch cls.Intent {
	case IntentProductSearch:
		found, err := c.searchProducts(ctx, cls.Entities)
		if err != nil {
			fail("product", err)
		}
		dc.Products = found
		if len(found) > 0 {
			actions = append(actions, Action{Type: ActionProductList, Data: found})
		}
	case IntentPriceNegotiation:
		promos, err := c.promotions.EligiblePromotions(ctx, customer, nil, promotionResultLimit)
		if err != nil {
			fail("promotion", err)
			break
		}
		dc.Promotions = promos
		if len(promos) > 0 {
			actions = append(actions, Action{Type: ActionPromotionList, Data: promos})
		}
	case IntentPrescriptionRefill:
		lines, err := c.sales.PrescriptionLines(ctx, customerID, prescriptionResultLimit)
		if err != nil {
			fail("prescription", err)
			break
		}
		dc.Prescriptions = lines
		if len(lines) > 0 {
			actions = append(actions, Action{Type: ActionPrescriptionList, Data: lines})
		}
	case IntentOrderStatus:
		orders, err := c.sales.Recent(ctx, customerID, orderResultLimit)
		if err != nil {
			fail("order", err)
			break
		}
		dc.Orders = orders
		if len(orders) > 0 {
			actions = append(actions, Action{Type: ActionOrderList, Data: orders})
		}
	}
	return dc, actions
}

// searchProducts unions name, symptom and category searches, de-duplicated by
// product id and capped. Partial results survive a failed sub-search.
func (c *Composer) searchProducts(ctx context.Context, e Entities) ([]products.Product, error) {
	var (
		out      []products.Product
		seen     = make(map[string]struct{})
		firstErr error
	)
	add := func(items []products.Product, err error) {
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			return
		}
		for _, p := range items {
			if _, dup := seen[p.ID]; dup || len(out) >= productResultLimit {
				continue
			}
			seen[p.ID] = struct{}{}
			out = append(out, p)
		}
	}
	for _, name := range e.Products {
		add(c.products.SearchByName(ctx, name, productResultLimit))
	}
	for _, symptom := range e.Symptoms {
		add(c.products.SearchBySymptom(ctx, symptom, productResultLimit))
	}
	for _, category := range e.Categories {
		add(c.products.SearchByCategory(ctx, category, productResultLimit))
	}
	return out, firstErr
}
