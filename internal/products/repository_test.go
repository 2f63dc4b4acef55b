package products

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var productRowColumns = []string{
	"product_id", "name", "category", "price", "stock_quantity",
	"requires_prescription", "description", "manufacturer",
}

func TestPostgresRepository_GetByID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPostgresRepository(mock)
	mock.ExpectQuery("FROM products WHERE product_id = \\$1").
		WithArgs("P001").
		WillReturnRows(pgxmock.NewRows(productRowColumns).
			AddRow("P001", "Ibuprofen 200mg", "Pain Relief", "8.99", 40, false, "Pain reliever", "Acme"))

	p, err := repo.GetByID(context.Background(), "P001")
	require.NoError(t, err)
	assert.Equal(t, "Ibuprofen 200mg", p.Name)
	assert.True(t, p.Price.Equal(decimal.RequireFromString("8.99")))
	assert.Equal(t, 40, p.StockQuantity)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_GetByIDNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPostgresRepository(mock)
	mock.ExpectQuery("FROM products WHERE product_id").
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err = repo.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestPostgresRepository_SearchByNameEscapesPattern(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPostgresRepository(mock)
	mock.ExpectQuery("WHERE name ILIKE \\$1 OR description ILIKE \\$1").
		WithArgs("%50\\% off%", 10).
		WillReturnRows(pgxmock.NewRows(productRowColumns))

	items, err := repo.SearchByName(context.Background(), " 50% off ", 10)
	require.NoError(t, err)
	assert.Empty(t, items)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_SearchByCategory(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPostgresRepository(mock)
	mock.ExpectQuery("WHERE category ILIKE \\$1").
		WithArgs("Pain Relief", 10).
		WillReturnRows(pgxmock.NewRows(productRowColumns).
			AddRow("P001", "Ibuprofen 200mg", "Pain Relief", "8.99", 40, false, "", "").
			AddRow("P002", "Acetaminophen 500mg", "Pain Relief", "6.5", 0, false, "", ""))

	items, err := repo.SearchByCategory(context.Background(), "Pain Relief", 10)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "P002", items[1].ID)
	assert.Equal(t, "6.50", items[1].Price.StringFixed(2))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_ListCategories(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPostgresRepository(mock)
	mock.ExpectQuery("SELECT DISTINCT category FROM products").
		WillReturnRows(pgxmock.NewRows([]string{"category"}).AddRow("Allergy").AddRow("Pain Relief"))

	cats, err := repo.ListCategories(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Allergy", "Pain Relief"}, cats)
}

func TestPostgresRepository_CheckAvailability(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPostgresRepository(mock)
	mock.ExpectQuery("FROM products WHERE product_id").
		WithArgs("P001").
		WillReturnRows(pgxmock.NewRows(productRowColumns).
			AddRow("P001", "Ibuprofen 200mg", "Pain Relief", "8.99", 3, false, "", ""))

	avail, err := repo.CheckAvailability(context.Background(), "P001", 5)
	require.NoError(t, err)
	assert.False(t, avail.Available)
	assert.Equal(t, 3, avail.InStock)
	assert.Equal(t, 5, avail.Requested)

	_, err = repo.CheckAvailability(context.Background(), "P001", 0)
	assert.ErrorIs(t, err, ErrInvalidQuantity)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_ReserveStock(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPostgresRepository(mock)
	mock.ExpectQuery("UPDATE products SET stock_quantity = stock_quantity - \\$2(.|\\n)*stock_quantity >= \\$2").
		WithArgs("P001", 3).
		WillReturnRows(pgxmock.NewRows(productRowColumns).
			AddRow("P001", "Ibuprofen 200mg", "Pain Relief", "8.99", 37, false, "Pain reliever", "Acme"))

	p, err := repo.ReserveStock(context.Background(), "P001", 3)
	require.NoError(t, err)
	assert.Equal(t, 37, p.StockQuantity)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_ReserveStockShortfall(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPostgresRepository(mock)
	mock.ExpectQuery("UPDATE products SET stock_quantity").
		WithArgs("P001", 5).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery("FROM products WHERE product_id = \\$1").
		WithArgs("P001").
		WillReturnRows(pgxmock.NewRows(productRowColumns).
			AddRow("P001", "Ibuprofen 200mg", "Pain Relief", "8.99", 2, false, "", ""))

	_, err = repo.ReserveStock(context.Background(), "P001", 5)
	assert.ErrorIs(t, err, ErrInsufficientStock)

	mock.ExpectQuery("UPDATE products SET stock_quantity").
		WithArgs("missing", 1).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery("FROM products WHERE product_id = \\$1").
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err = repo.ReserveStock(context.Background(), "missing", 1)
	assert.ErrorIs(t, err, ErrProductNotFound)

	_, err = repo.ReserveStock(context.Background(), "P001", 0)
	assert.ErrorIs(t, err, ErrInvalidQuantity)
	require.NoError(t, mock.ExpectationsWereMet())
}
