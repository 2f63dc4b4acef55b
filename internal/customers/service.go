package customers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wolfman30/pharmacy-ai-platform/internal/database"
	"github.com/wolfman30/pharmacy-ai-platform/pkg/logging"
)

// Service resolves channel identities and exposes customer profiles.
type Service struct {
	repo   Repository
	logger *logging.Logger
	now    func() time.Time
}

// NewService creates a customer service.
func NewService(repo Repository, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{repo: repo, logger: logger, now: time.Now}
}

// Get returns a customer by id.
func (s *Service) Get(ctx context.Context, id string) (*Customer, error) {
	return s.repo.GetByID(ctx, id)
}

// Summary returns the profile summary for id.
func (s *Service) Summary(ctx context.Context, id string) (Summary, error) {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Summary{}, err
	}
	return Summarize(c, s.now()), nil
}

// UpdateProfile applies a partial profile update.
func (s *Service) UpdateProfile(ctx context.Context, id string, upd ProfileUpdate) (*Customer, error) {
	return s.repo.UpdateProfile(ctx, id, upd)
}

// AddLoyaltyPoints credits points to the customer.
func (s *Service) AddLoyaltyPoints(ctx context.Context, id string, points int) (int, error) {
	return s.repo.AddLoyaltyPoints(ctx, id, points)
}

// SyntheticID builds the channel-prefixed identifier used for customers first
// seen on a messaging channel.
func SyntheticID(channel, externalID string) string {
	switch channel {
	case ChannelTelegram:
		return "TG_" + externalID
	case ChannelWhatsApp:
		return "WA_" + digitsOnly(externalID)
	default:
		return "API_" + externalID
	}
}

// ResolveChannelIdentity maps a channel identity to a customer, creating one
// lazily on first contact.
func (s *Service) ResolveChannelIdentity(ctx context.Context, id Identity) (*Customer, error) {
	id.ExternalID = strings.TrimSpace(id.ExternalID)
	if id.ExternalID == "" {
		return nil, ErrInvalidIdentity
	}

	existing, err := s.lookup(ctx, id)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ErrCustomerNotFound) {
		return nil, err
	}

	c := &Customer{
		ID:               SyntheticID(id.Channel, id.ExternalID),
		Name:             strings.TrimSpace(id.DisplayName),
		Phone:            id.Phone,
		RegistrationDate: s.now().UTC(),
		PreferredChannel: id.Channel,
	}
	switch id.Channel {
	case ChannelTelegram:
		c.TelegramID = id.ExternalID
	case ChannelWhatsApp:
		c.WhatsAppNumber = id.ExternalID
		if c.Phone == "" {
			c.Phone = id.ExternalID
		}
	}
	if c.Name == "" {
		c.Name = "Customer"
	}

	created, err := s.repo.Create(ctx, c)
	if err != nil {
		// Another webhook for the same person may have created the row first.
		if database.IsUniqueViolation(err) {
			return s.lookup(ctx, id)
		}
		return nil, fmt.Errorf("customers: create for %s: %w", id.Channel, err)
	}
	s.logger.Info("customer created from channel",
		"customer_id", created.ID,
		"channel", id.Channel,
	)
	return created, nil
}

func (s *Service) lookup(ctx context.Context, id Identity) (*Customer, error) {
	switch id.Channel {
	case ChannelTelegram:
		return s.repo.FindByTelegramID(ctx, id.ExternalID)
	case ChannelWhatsApp:
		c, err := s.repo.FindByWhatsApp(ctx, id.ExternalID)
		if errors.Is(err, ErrCustomerNotFound) {
			return s.repo.FindByPhone(ctx, id.ExternalID)
		}
		return c, err
	default:
		return s.repo.GetByID(ctx, id.ExternalID)
	}
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
