package promotions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/pharmacy-ai-platform/internal/database"
	"github.com/wolfman30/pharmacy-ai-platform/internal/money"
)

// Repository persists promotions and their usage counters.
type Repository interface {
	Active(ctx context.Context, now time.Time, limit int) ([]Promotion, error)
	GetByID(ctx context.Context, id string) (*Promotion, error)
	Redeem(ctx context.Context, id string, now time.Time) (*Promotion, error)
}

// PostgresRepository stores promotions in Postgres.
type PostgresRepository struct {
	db     database.Querier
	tracer trace.Tracer
}

// NewPostgresRepository initializes a repo backed by a pgx querier.
func NewPostgresRepository(db database.Querier) *PostgresRepository {
	if db == nil {
		panic("promotions: pgx querier required")
	}
	return &PostgresRepository{db: db, tracer: otel.Tracer("pharmacy.internal.promotions")}
}

const promotionColumns = `promotion_id, name, description,
	discount_percentage::text, discount_amount::text, min_purchase_amount::text, max_discount_amount::text,
	COALESCE(customer_segments, ''), COALESCE(applicable_products, ''), COALESCE(applicable_categories, ''),
	start_date, end_date, status, current_usage, total_usage_limit`

func scanPromotion(row pgx.Row) (*Promotion, error) {
	var (
		p                          Promotion
		pct, amount, minBuy, maxDs *string
		segments, prods, cats      string
	)
	if err := row.Scan(&p.ID, &p.Name, &p.Description,
		&pct, &amount, &minBuy, &maxDs,
		&segments, &prods, &cats,
		&p.StartDate, &p.EndDate, &p.Status, &p.CurrentUsage, &p.TotalUsageLimit); err != nil {
		return nil, err
	}
	var err error
	if p.DiscountPercentage, err = money.ParseNullable(pct); err != nil {
		return nil, err
	}
	if p.DiscountAmount, err = money.ParseNullable(amount); err != nil {
		return nil, err
	}
	if p.MinPurchaseAmount, err = money.ParseNullable(minBuy); err != nil {
		return nil, err
	}
	if p.MaxDiscountAmount, err = money.ParseNullable(maxDs); err != nil {
		return nil, err
	}
	p.CustomerSegments = parseTags(segments)
	p.ApplicableProducts = parseTags(prods)
	p.ApplicableCategories = parseTags(cats)
	return &p, nil
}

// Active lists promotions whose status is active and whose date window contains now.
func (r *PostgresRepository) Active(ctx context.Context, now time.Time, limit int) ([]Promotion, error) {
	ctx, span := r.tracer.Start(ctx, "promotions.active")
	defer span.End()

	rows, err := r.db.Query(ctx, `
		SELECT `+promotionColumns+`
		FROM promotions
		WHERE status = 'active' AND start_date <= $1::date AND end_date >= $1::date
		ORDER BY end_date ASC, promotion_id ASC
		LIMIT $2
	`, now.Format(time.DateOnly), limit)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("promotions: active: %w", err)
	}
	defer rows.Close()

	var out []Promotion
	for rows.Next() {
		p, err := scanPromotion(rows)
		if err != nil {
			return nil, fmt.Errorf("promotions: scan: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// GetByID fetches a single promotion.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*Promotion, error) {
	ctx, span := r.tracer.Start(ctx, "promotions.get_by_id")
	defer span.End()

	p, err := scanPromotion(r.db.QueryRow(ctx, `SELECT `+promotionColumns+` FROM promotions WHERE promotion_id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPromotionNotFound
		}
		span.RecordError(err)
		return nil, fmt.Errorf("promotions: get by id: %w", err)
	}
	return p, nil
}

// Redeem increments usage in one conditional statement. The row only updates
// while the promotion is active, in its window and under its cap; reaching the
// cap flips status to expired in the same statement. No updated row means the
// promotion was exhausted or deactivated concurrently.
func (r *PostgresRepository) Redeem(ctx context.Context, id string, now time.Time) (*Promotion, error) {
	ctx, span := r.tracer.Start(ctx, "promotions.redeem")
	defer span.End()

	p, err := scanPromotion(r.db.QueryRow(ctx, `
		UPDATE promotions
		SET current_usage = current_usage + 1,
			status = CASE
				WHEN total_usage_limit IS NOT NULL AND current_usage + 1 >= total_usage_limit THEN 'expired'
				ELSE status
			END,
			updated_at = now()
		WHERE promotion_id = $1
			AND status = 'active'
			AND start_date <= $2::date AND end_date >= $2::date
			AND (total_usage_limit IS NULL OR current_usage < total_usage_limit)
		RETURNING `+promotionColumns, id, now.Format(time.DateOnly)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPromotionExhausted
		}
		span.RecordError(err)
		return nil, fmt.Errorf("promotions: redeem: %w", err)
	}
	return p, nil
}
