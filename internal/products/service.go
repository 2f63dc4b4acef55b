package products

import (
	"context"
	"strings"

	"github.com/wolfman30/pharmacy-ai-platform/pkg/logging"
)

const defaultSearchLimit = 10

// Service wraps catalog lookups used by the API and the conversation composer.
type Service struct {
	repo   Repository
	logger *logging.Logger
}

// NewService creates a products service.
func NewService(repo Repository, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{repo: repo, logger: logger}
}

// Get returns a single product.
func (s *Service) Get(ctx context.Context, id string) (*Product, error) {
	return s.repo.GetByID(ctx, id)
}

// SearchByName finds products whose name or description contains query.
func (s *Service) SearchByName(ctx context.Context, query string, limit int) ([]Product, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}
	return s.repo.SearchByName(ctx, query, normalizeLimit(limit))
}

// SearchByCategory lists products in category.
func (s *Service) SearchByCategory(ctx context.Context, category string, limit int) ([]Product, error) {
	if strings.TrimSpace(category) == "" {
		return nil, nil
	}
	return s.repo.SearchByCategory(ctx, category, normalizeLimit(limit))
}

// SearchBySymptom maps a symptom to its treating category and lists that category.
// Unknown symptoms return no products and no error.
func (s *Service) SearchBySymptom(ctx context.Context, symptom string, limit int) ([]Product, error) {
	category, ok := CategoryForSymptom(symptom)
	if !ok {
		s.logger.Debug("no category for symptom", "symptom", symptom)
		return nil, nil
	}
	return s.repo.SearchByCategory(ctx, category, normalizeLimit(limit))
}

// Categories lists distinct catalog categories.
func (s *Service) Categories(ctx context.Context) ([]string, error) {
	return s.repo.ListCategories(ctx)
}

// CheckAvailability reports stock for quantity units of a product.
func (s *Service) CheckAvailability(ctx context.Context, id string, quantity int) (*Availability, error) {
	return s.repo.CheckAvailability(ctx, id, quantity)
}

func normalizeLimit(limit int) int {
	if limit <= 0 || limit > 50 {
		return defaultSearchLimit
	}
	return limit
}
