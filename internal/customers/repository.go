package customers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/pharmacy-ai-platform/internal/database"
	"github.com/wolfman30/pharmacy-ai-platform/internal/money"
)

// Repository defines the customer storage operations.
type Repository interface {
	GetByID(ctx context.Context, id string) (*Customer, error)
	FindByPhone(ctx context.Context, phone string) (*Customer, error)
	FindByTelegramID(ctx context.Context, telegramID string) (*Customer, error)
	FindByWhatsApp(ctx context.Context, number string) (*Customer, error)
	Create(ctx context.Context, c *Customer) (*Customer, error)
	UpdateProfile(ctx context.Context, id string, upd ProfileUpdate) (*Customer, error)
	AddLoyaltyPoints(ctx context.Context, id string, points int) (int, error)
	RecordPurchase(ctx context.Context, id string, amount decimal.Decimal, prescription bool) error
}

// PostgresRepository stores customers in Postgres.
type PostgresRepository struct {
	db     database.Querier
	tracer trace.Tracer
}

// NewPostgresRepository initializes a repo backed by a pgx querier.
func NewPostgresRepository(db database.Querier) *PostgresRepository {
	if db == nil {
		panic("customers: pgx querier required")
	}
	return &PostgresRepository{db: db, tracer: otel.Tracer("pharmacy.internal.customers")}
}

const customerColumns = `
	customer_id, name, COALESCE(email, ''), COALESCE(phone, ''),
	COALESCE(telegram_id, ''), COALESCE(whatsapp_number, ''),
	date_of_birth, COALESCE(gender, ''), COALESCE(address, ''),
	registration_date, loyalty_points, total_purchases::text, prescription_count,
	COALESCE(medical_conditions, ''), COALESCE(allergies, ''), preferred_channel,
	created_at, updated_at`

func scanCustomer(row pgx.Row) (*Customer, error) {
	var (
		c     Customer
		total string
	)
	if err := row.Scan(
		&c.ID, &c.Name, &c.Email, &c.Phone,
		&c.TelegramID, &c.WhatsAppNumber,
		&c.DateOfBirth, &c.Gender, &c.Address,
		&c.RegistrationDate, &c.LoyaltyPoints, &total, &c.PrescriptionCount,
		&c.MedicalConditions, &c.Allergies, &c.PreferredChannel,
		&c.CreatedAt, &c.UpdatedAt,
	); err != nil {
		return nil, err
	}
	parsed, err := money.Parse(total)
	if err != nil {
		return nil, err
	}
	c.TotalPurchases = parsed
	return &c, nil
}

func (r *PostgresRepository) getOne(ctx context.Context, span string, where string, arg any) (*Customer, error) {
	ctx, s := r.tracer.Start(ctx, span)
	defer s.End()

	query := `SELECT ` + customerColumns + ` FROM customers WHERE ` + where + ` LIMIT 1`
	c, err := scanCustomer(r.db.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCustomerNotFound
		}
		s.RecordError(err)
		return nil, fmt.Errorf("customers: %s: %w", span, err)
	}
	return c, nil
}

// GetByID fetches a customer by identifier.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*Customer, error) {
	return r.getOne(ctx, "customers.get_by_id", "customer_id = $1", id)
}

// FindByPhone fetches a customer by phone number.
func (r *PostgresRepository) FindByPhone(ctx context.Context, phone string) (*Customer, error) {
	return r.getOne(ctx, "customers.find_by_phone", "phone = $1", phone)
}

// FindByTelegramID fetches a customer by Telegram user id.
func (r *PostgresRepository) FindByTelegramID(ctx context.Context, telegramID string) (*Customer, error) {
	return r.getOne(ctx, "customers.find_by_telegram_id", "telegram_id = $1", telegramID)
}

// FindByWhatsApp fetches a customer by WhatsApp number.
func (r *PostgresRepository) FindByWhatsApp(ctx context.Context, number string) (*Customer, error) {
	return r.getOne(ctx, "customers.find_by_whatsapp", "whatsapp_number = $1", number)
}

// Create inserts a new customer and returns the stored row.
func (r *PostgresRepository) Create(ctx context.Context, c *Customer) (*Customer, error) {
	ctx, span := r.tracer.Start(ctx, "customers.create")
	defer span.End()

	if c == nil || strings.TrimSpace(c.ID) == "" {
		return nil, errors.New("customers: customer id is required")
	}
	regDate := c.RegistrationDate
	if regDate.IsZero() {
		regDate = time.Now().UTC()
	}
	channel := c.PreferredChannel
	if channel == "" {
		channel = ChannelAPI
	}

	query := `
		INSERT INTO customers (
			customer_id, name, email, phone, telegram_id, whatsapp_number,
			date_of_birth, registration_date, preferred_channel
		) VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''), $7, $8, $9)
		RETURNING ` + customerColumns
	created, err := scanCustomer(r.db.QueryRow(ctx, query,
		c.ID, c.Name, c.Email, c.Phone, c.TelegramID, c.WhatsAppNumber,
		c.DateOfBirth, regDate, channel,
	))
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("customers: insert failed: %w", err)
	}
	return created, nil
}

// UpdateProfile overwrites the non-nil fields of upd.
func (r *PostgresRepository) UpdateProfile(ctx context.Context, id string, upd ProfileUpdate) (*Customer, error) {
	ctx, span := r.tracer.Start(ctx, "customers.update_profile")
	defer span.End()

	query := `
		UPDATE customers SET
			name = COALESCE($2, name),
			email = COALESCE($3, email),
			phone = COALESCE($4, phone),
			date_of_birth = COALESCE($5, date_of_birth),
			gender = COALESCE($6, gender),
			address = COALESCE($7, address),
			medical_conditions = COALESCE($8, medical_conditions),
			allergies = COALESCE($9, allergies),
			updated_at = now()
		WHERE customer_id = $1
		RETURNING ` + customerColumns
	updated, err := scanCustomer(r.db.QueryRow(ctx, query,
		id, upd.Name, upd.Email, upd.Phone, upd.DateOfBirth,
		upd.Gender, upd.Address, upd.MedicalConditions, upd.Allergies,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCustomerNotFound
		}
		span.RecordError(err)
		return nil, fmt.Errorf("customers: update profile: %w", err)
	}
	return updated, nil
}

// AddLoyaltyPoints adds points and returns the new balance.
func (r *PostgresRepository) AddLoyaltyPoints(ctx context.Context, id string, points int) (int, error) {
	ctx, span := r.tracer.Start(ctx, "customers.add_loyalty_points")
	defer span.End()

	if points <= 0 {
		return 0, ErrInvalidPoints
	}
	var balance int
	err := r.db.QueryRow(ctx, `
		UPDATE customers SET loyalty_points = loyalty_points + $2, updated_at = now()
		WHERE customer_id = $1
		RETURNING loyalty_points
	`, id, points).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrCustomerNotFound
		}
		span.RecordError(err)
		return 0, fmt.Errorf("customers: add loyalty points: %w", err)
	}
	return balance, nil
}

// RecordPurchase accumulates purchase totals and accrues one loyalty point per
// whole currency unit spent.
func (r *PostgresRepository) RecordPurchase(ctx context.Context, id string, amount decimal.Decimal, prescription bool) error {
	ctx, span := r.tracer.Start(ctx, "customers.record_purchase")
	defer span.End()

	rxIncrement := 0
	if prescription {
		rxIncrement = 1
	}
	ct, err := r.db.Exec(ctx, `
		UPDATE customers SET
			total_purchases = total_purchases + $2::numeric,
			loyalty_points = loyalty_points + $3,
			prescription_count = prescription_count + $4,
			updated_at = now()
		WHERE customer_id = $1
	`, id, amount.String(), PointsFor(amount), rxIncrement)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("customers: record purchase: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrCustomerNotFound
	}
	return nil
}

// PointsFor converts a purchase amount into loyalty points.
func PointsFor(amount decimal.Decimal) int {
	if amount.IsNegative() {
		return 0
	}
	return int(amount.Floor().IntPart())
}
