package conversation

import (
	"strings"
	"time"
)

// Intent values produced by the classifier.
const (
	IntentProductSearch      = "product_search"
	IntentPriceNegotiation   = "price_negotiation"
	IntentPrescriptionRefill = "prescription_refill"
	IntentGeneralInquiry     = "general_inquiry"
	IntentComplaint          = "complaint"
	IntentOrderStatus        = "order_status"
)

// Sentiment and urgency values.
const (
	SentimentPositive = "positive"
	SentimentNeutral  = "neutral"
	SentimentNegative = "negative"

	UrgencyLow    = "low"
	UrgencyMedium = "medium"
	UrgencyHigh   = "high"
)

// Action types attached to a reply for channel rendering.
const (
	ActionProductList      = "product_list"
	ActionPromotionList    = "promotion_list"
	ActionPrescriptionList = "prescription_list"
	ActionOrderList        = "order_list"
	ActionError            = "error"
)

var knownIntents = map[string]struct{}{
	IntentProductSearch:      {},
	IntentPriceNegotiation:   {},
	IntentPrescriptionRefill: {},
	IntentGeneralInquiry:     {},
	IntentComplaint:          {},
	IntentOrderStatus:        {},
}

// IsKnownIntent reports whether intent is one of the classifier's values.
func IsKnownIntent(intent string) bool {
	_, ok := knownIntents[intent]
	return ok
}

// Turn is one entry of a customer's dialogue history.
type Turn struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Context is the per-customer dialogue state.
type Context struct {
	CustomerID  string    `json:"customer_id"`
	Turns       []Turn    `json:"turns"`
	LastIntent  string    `json:"last_intent,omitempty"`
	LastUpdated time.Time `json:"last_updated"`
}

func emptyContext(customerID string) *Context {
	return &Context{CustomerID: customerID, Turns: []Turn{}}
}

func (c *Context) clone() *Context {
	if c == nil {
		return nil
	}
	cp := *c
	cp.Turns = append([]Turn(nil), c.Turns...)
	return &cp
}

// lastTurns returns up to n most recent turns.
func lastTurns(turns []Turn, n int) []Turn {
	if n <= 0 || len(turns) <= n {
		return turns
	}
	return turns[len(turns)-n:]
}

// Entities are the structured slots pulled out of a message.
type Entities struct {
	Products   []string `json:"products,omitempty"`
	Symptoms   []string `json:"symptoms,omitempty"`
	Categories []string `json:"categories,omitempty"`
}

func (e Entities) normalized() Entities {
	return Entities{
		Products:   cleanList(e.Products),
		Symptoms:   cleanList(e.Symptoms),
		Categories: cleanList(e.Categories),
	}
}

func cleanList(items []string) []string {
	var out []string
	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		key := strings.ToLower(item)
		if item == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, item)
	}
	return out
}

// ClassificationResult is the structured reading of a customer message.
// Confidence is advisory; nothing downstream gates on it.
type ClassificationResult struct {
	Intent     string   `json:"intent"`
	Confidence float64  `json:"confidence"`
	Entities   Entities `json:"entities"`
	Sentiment  string   `json:"sentiment"`
	Urgency    string   `json:"urgency"`
}

// FallbackClassification is returned whenever classification cannot be trusted.
func FallbackClassification() ClassificationResult {
	return ClassificationResult{
		Intent:     IntentGeneralInquiry,
		Confidence: 0.5,
		Entities:   Entities{},
		Sentiment:  SentimentNeutral,
		Urgency:    UrgencyLow,
	}
}

// Action is domain data the channel adapter can render (buttons, lists).
type Action struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Result is what ProcessMessage hands back to a channel adapter.
type Result struct {
	Response   string     `json:"response"`
	Intent     string     `json:"intent"`
	Confidence float64    `json:"confidence"`
	Actions    []Action   `json:"actions"`
	Usage      TokenUsage `json:"usage"`
	Error      string     `json:"error,omitempty"`
}
