package promotions

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wolfman30/pharmacy-ai-platform/internal/customers"
	"github.com/wolfman30/pharmacy-ai-platform/internal/money"
)

const (
	seniorAge             = 65
	newCustomerWindowDays = 30
	loyaltyPointsFloor    = 100
	regularRxFloor        = 5
)

var hundred = decimal.NewFromInt(100)

// IsActive reports whether status is active and now falls within [StartDate, EndDate]
// at day granularity.
func (p *Promotion) IsActive(now time.Time) bool {
	if p == nil || p.Status != StatusActive {
		return false
	}
	today := day(now)
	return !today.Before(day(p.StartDate)) && !today.After(day(p.EndDate))
}

// Exhausted reports whether the usage cap has been reached.
func (p *Promotion) Exhausted() bool {
	return p.TotalUsageLimit != nil && p.CurrentUsage >= *p.TotalUsageLimit
}

// SegmentEligible applies the segment rules. Unset segments or "all" always pass;
// otherwise any one matching tag is enough.
func (p *Promotion) SegmentEligible(c *customers.Customer, now time.Time) bool {
	if len(p.CustomerSegments) == 0 {
		return true
	}
	for _, tag := range p.CustomerSegments {
		if strings.EqualFold(tag, SegmentAll) {
			return true
		}
	}
	if c == nil {
		return false
	}
	for _, tag := range p.CustomerSegments {
		if inSegment(c, strings.ToLower(tag), now) {
			return true
		}
	}
	return false
}

func inSegment(c *customers.Customer, segment string, now time.Time) bool {
	switch segment {
	case SegmentSeniors:
		age, ok := c.Age(now)
		return ok && age >= seniorAge
	case SegmentNewCustomers:
		return !c.RegistrationDate.IsZero() && c.DaysSinceRegistration(now) <= newCustomerWindowDays
	case SegmentLoyaltyMembers:
		return c.LoyaltyPoints > loyaltyPointsFloor
	case SegmentDiabeticCustomers:
		return c.HasCondition("diabetes")
	case SegmentRegularCustomers:
		return c.PrescriptionCount > regularRxFloor
	default:
		return false
	}
}

// ProductEligible checks candidates against the applicable product and category
// tags. An empty candidate list, or a promotion without tags, passes.
func (p *Promotion) ProductEligible(candidates []Candidate) bool {
	if len(candidates) == 0 {
		return true
	}
	if len(p.ApplicableProducts) == 0 && len(p.ApplicableCategories) == 0 {
		return true
	}
	for _, c := range candidates {
		if containsFold(p.ApplicableProducts, c.ProductID) || containsFold(p.ApplicableProducts, c.Name) {
			return true
		}
		if containsFold(p.ApplicableCategories, c.Category) {
			return true
		}
	}
	return false
}

// CalculateDiscount computes the discount for orderTotal. Percentage takes
// precedence over a fixed amount; MaxDiscountAmount caps the result and the
// discount never exceeds the order. The minimum purchase is a precondition.
func (p *Promotion) CalculateDiscount(orderTotal decimal.Decimal) (Discount, error) {
	if !orderTotal.IsPositive() {
		return Discount{}, ErrInvalidOrderTotal
	}
	if p.MinPurchaseAmount != nil && orderTotal.LessThan(*p.MinPurchaseAmount) {
		return Discount{}, fmt.Errorf("%w: %s < %s", ErrMinimumPurchase,
			money.Format(orderTotal), money.Format(*p.MinPurchaseAmount))
	}

	amount := decimal.Zero
	switch {
	case p.DiscountPercentage != nil && p.DiscountPercentage.IsPositive():
		amount = orderTotal.Mul(*p.DiscountPercentage).Div(hundred)
	case p.DiscountAmount != nil && p.DiscountAmount.IsPositive():
		amount = *p.DiscountAmount
	}
	if p.MaxDiscountAmount != nil && amount.GreaterThan(*p.MaxDiscountAmount) {
		amount = *p.MaxDiscountAmount
	}
	if amount.GreaterThan(orderTotal) {
		amount = orderTotal
	}
	amount = money.Round(amount)
	return Discount{
		OrderTotal: orderTotal,
		Amount:     amount,
		FinalTotal: money.Round(orderTotal.Sub(amount)),
	}, nil
}

func containsFold(set []string, v string) bool {
	if v == "" {
		return false
	}
	for _, s := range set {
		if strings.EqualFold(s, v) {
			return true
		}
	}
	return false
}

func day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
