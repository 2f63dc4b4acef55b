package promotions

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Promotion statuses.
const (
	StatusActive   = "active"
	StatusInactive = "inactive"
	StatusExpired  = "expired"
)

// Customer segment tags understood by SegmentEligible.
const (
	SegmentAll               = "all"
	SegmentSeniors           = "seniors"
	SegmentNewCustomers      = "new_customers"
	SegmentLoyaltyMembers    = "loyalty_members"
	SegmentDiabeticCustomers = "diabetic_customers"
	SegmentRegularCustomers  = "regular_customers"
)

// Promotion is a time-boxed discount rule.
type Promotion struct {
	ID                   string           `json:"promotion_id"`
	Name                 string           `json:"name"`
	Description          string           `json:"description,omitempty"`
	DiscountPercentage   *decimal.Decimal `json:"discount_percentage,omitempty"`
	DiscountAmount       *decimal.Decimal `json:"discount_amount,omitempty"`
	MinPurchaseAmount    *decimal.Decimal `json:"min_purchase_amount,omitempty"`
	MaxDiscountAmount    *decimal.Decimal `json:"max_discount_amount,omitempty"`
	CustomerSegments     []string         `json:"customer_segments,omitempty"`
	ApplicableProducts   []string         `json:"applicable_products,omitempty"`
	ApplicableCategories []string         `json:"applicable_categories,omitempty"`
	StartDate            time.Time        `json:"start_date"`
	EndDate              time.Time        `json:"end_date"`
	Status               string           `json:"status"`
	CurrentUsage         int              `json:"current_usage"`
	TotalUsageLimit      *int             `json:"total_usage_limit,omitempty"`
}

// Candidate is a product the customer is considering, matched against the
// promotion's product and category tags.
type Candidate struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name,omitempty"`
	Category  string `json:"category,omitempty"`
}

// Discount is the outcome of applying a promotion to an order total.
type Discount struct {
	OrderTotal decimal.Decimal `json:"order_total"`
	Amount     decimal.Decimal `json:"discount"`
	FinalTotal decimal.Decimal `json:"final_total"`
}

// ApplyRequest asks to redeem a promotion for a customer's order.
type ApplyRequest struct {
	CustomerID  string          `json:"customer_id"`
	PromotionID string          `json:"promotion_id"`
	OrderTotal  decimal.Decimal `json:"order_total"`
	Products    []Candidate     `json:"products,omitempty"`
}

// ApplyResult reports a successful redemption.
type ApplyResult struct {
	PromotionID  string          `json:"promotion_id"`
	OrderTotal   decimal.Decimal `json:"order_total"`
	Discount     decimal.Decimal `json:"discount"`
	FinalTotal   decimal.Decimal `json:"final_total"`
	CurrentUsage int             `json:"current_usage"`
	Status       string          `json:"status"`
}

var (
	ErrPromotionNotFound  = errors.New("promotion not found")
	ErrPromotionInactive  = errors.New("promotion is not active")
	ErrPromotionExhausted = errors.New("promotion usage limit reached")
	ErrMinimumPurchase    = errors.New("order total below promotion minimum")
	ErrNotEligible        = errors.New("customer not eligible for promotion")
	ErrProductMismatch    = errors.New("no product in the order qualifies for promotion")
	ErrInvalidOrderTotal  = errors.New("order total must be positive")
)

// parseTags splits a comma-separated tag column. Blank input yields nil.
func parseTags(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
