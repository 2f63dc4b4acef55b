package promotions

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var promotionRowColumns = []string{
	"promotion_id", "name", "description",
	"discount_percentage", "discount_amount", "min_purchase_amount", "max_discount_amount",
	"customer_segments", "applicable_products", "applicable_categories",
	"start_date", "end_date", "status", "current_usage", "total_usage_limit",
}

func strPtr(s string) *string { return &s }
func intPtr(n int) *int       { return &n }

func promotionRow(rows *pgxmock.Rows, id, status string, usage int, limit *int) *pgxmock.Rows {
	return rows.AddRow(
		id, "Senior Tuesday", "",
		strPtr("10"), (*string)(nil), strPtr("20.00"), (*string)(nil),
		"seniors, loyalty_members", "", "Vitamins & Supplements",
		date(2025, 6, 1), date(2025, 6, 30), status, usage, limit,
	)
}

func TestPostgresRepository_Active(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPostgresRepository(mock)
	mock.ExpectQuery("WHERE status = 'active' AND start_date <= \\$1::date AND end_date >= \\$1::date").
		WithArgs("2025-06-15", 100).
		WillReturnRows(promotionRow(pgxmock.NewRows(promotionRowColumns), "PROMO1", StatusActive, 0, nil))

	items, err := repo.Active(context.Background(), testNow, 100)
	require.NoError(t, err)
	require.Len(t, items, 1)
	p := items[0]
	assert.Equal(t, []string{"seniors", "loyalty_members"}, p.CustomerSegments)
	assert.Nil(t, p.ApplicableProducts)
	assert.Equal(t, []string{"Vitamins & Supplements"}, p.ApplicableCategories)
	require.NotNil(t, p.DiscountPercentage)
	assert.Equal(t, "10", p.DiscountPercentage.String())
	assert.Nil(t, p.DiscountAmount)
	assert.Equal(t, "20.00", p.MinPurchaseAmount.StringFixed(2))
	assert.Nil(t, p.TotalUsageLimit)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_GetByIDNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPostgresRepository(mock)
	mock.ExpectQuery("FROM promotions WHERE promotion_id = \\$1").
		WithArgs("nope").
		WillReturnError(pgx.ErrNoRows)

	_, err = repo.GetByID(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrPromotionNotFound)
}

func TestPostgresRepository_RedeemExpiresAtLimit(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPostgresRepository(mock)
	mock.ExpectQuery("UPDATE promotions(.|\\n)*current_usage \\+ 1 >= total_usage_limit THEN 'expired'(.|\\n)*current_usage < total_usage_limit(.|\\n)*RETURNING").
		WithArgs("PROMO1", "2025-06-15").
		WillReturnRows(promotionRow(pgxmock.NewRows(promotionRowColumns), "PROMO1", StatusExpired, 1, intPtr(1)))

	p, err := repo.Redeem(context.Background(), "PROMO1", testNow)
	require.NoError(t, err)
	assert.Equal(t, StatusExpired, p.Status)
	assert.Equal(t, 1, p.CurrentUsage)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_RedeemExhausted(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPostgresRepository(mock)
	mock.ExpectQuery("UPDATE promotions").
		WithArgs("PROMO1", "2025-06-15").
		WillReturnError(pgx.ErrNoRows)

	_, err = repo.Redeem(context.Background(), "PROMO1", testNow)
	assert.ErrorIs(t, err, ErrPromotionExhausted)
	require.NoError(t, mock.ExpectationsWereMet())
}
