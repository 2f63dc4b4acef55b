package promotions

import (
	"context"
	"errors"
	"time"

	"github.com/wolfman30/pharmacy-ai-platform/internal/customers"
	"github.com/wolfman30/pharmacy-ai-platform/internal/observability/metrics"
	"github.com/wolfman30/pharmacy-ai-platform/pkg/logging"
)

const (
	defaultEligibleLimit = 5
	activeScanLimit      = 100
)

// CustomerLookup loads the customer a promotion is evaluated against.
type CustomerLookup interface {
	GetByID(ctx context.Context, id string) (*customers.Customer, error)
}

// Service evaluates and redeems promotions.
type Service struct {
	repo      Repository
	customers CustomerLookup
	metrics   *metrics.ConversationMetrics
	logger    *logging.Logger
	now       func() time.Time
}

// NewService creates a promotions service. metrics may be nil.
func NewService(repo Repository, customers CustomerLookup, m *metrics.ConversationMetrics, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{repo: repo, customers: customers, metrics: m, logger: logger, now: time.Now}
}

// EligiblePromotions returns active promotions the customer qualifies for,
// filtered by the optional product candidates and capped at limit.
func (s *Service) EligiblePromotions(ctx context.Context, c *customers.Customer, candidates []Candidate, limit int) ([]Promotion, error) {
	if limit <= 0 {
		limit = defaultEligibleLimit
	}
	now := s.now()
	active, err := s.repo.Active(ctx, now, activeScanLimit)
	if err != nil {
		return nil, err
	}
	out := make([]Promotion, 0, limit)
	for i := range active {
		p := &active[i]
		if !p.IsActive(now) || p.Exhausted() {
			continue
		}
		if !p.SegmentEligible(c, now) || !p.ProductEligible(candidates) {
			continue
		}
		out = append(out, *p)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// EligibleForCustomer loads the customer by id and lists eligible promotions.
func (s *Service) EligibleForCustomer(ctx context.Context, customerID string, limit int) ([]Promotion, error) {
	c, err := s.customers.GetByID(ctx, customerID)
	if err != nil {
		return nil, err
	}
	return s.EligiblePromotions(ctx, c, nil, limit)
}

// Apply validates a promotion for the customer's order, computes the discount
// and redeems one use.
func (s *Service) Apply(ctx context.Context, req ApplyRequest) (ApplyResult, error) {
	result, err := s.apply(ctx, req)
	s.metrics.ObserveRedemption(redemptionLabel(err))
	if err != nil {
		s.logger.Info("promotion not applied", "promotion_id", req.PromotionID, "customer_id", req.CustomerID, "reason", err.Error())
	}
	return result, err
}

func (s *Service) apply(ctx context.Context, req ApplyRequest) (ApplyResult, error) {
	now := s.now()
	promo, err := s.repo.GetByID(ctx, req.PromotionID)
	if err != nil {
		return ApplyResult{}, err
	}
	if !promo.IsActive(now) {
		return ApplyResult{}, ErrPromotionInactive
	}
	if promo.Exhausted() {
		return ApplyResult{}, ErrPromotionExhausted
	}
	c, err := s.customers.GetByID(ctx, req.CustomerID)
	if err != nil {
		return ApplyResult{}, err
	}
	if !promo.SegmentEligible(c, now) {
		return ApplyResult{}, ErrNotEligible
	}
	if !promo.ProductEligible(req.Products) {
		return ApplyResult{}, ErrProductMismatch
	}
	discount, err := promo.CalculateDiscount(req.OrderTotal)
	if err != nil {
		return ApplyResult{}, err
	}

	redeemed, err := s.repo.Redeem(ctx, promo.ID, now)
	if err != nil {
		return ApplyResult{}, err
	}
	if redeemed.Status == StatusExpired {
		s.logger.Info("promotion expired after reaching usage limit", "promotion_id", promo.ID, "usage", redeemed.CurrentUsage)
	}
	return ApplyResult{
		PromotionID:  promo.ID,
		OrderTotal:   discount.OrderTotal,
		Discount:     discount.Amount,
		FinalTotal:   discount.FinalTotal,
		CurrentUsage: redeemed.CurrentUsage,
		Status:       redeemed.Status,
	}, nil
}

func redemptionLabel(err error) string {
	switch {
	case err == nil:
		return "redeemed"
	case errors.Is(err, ErrPromotionExhausted):
		return "exhausted"
	case errors.Is(err, ErrPromotionInactive):
		return "inactive"
	case errors.Is(err, ErrMinimumPurchase):
		return "below_minimum"
	case errors.Is(err, ErrNotEligible), errors.Is(err, ErrProductMismatch):
		return "not_eligible"
	case errors.Is(err, ErrPromotionNotFound), errors.Is(err, customers.ErrCustomerNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalidOrderTotal):
		return "invalid"
	default:
		return "error"
	}
}
