package sales

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/pharmacy-ai-platform/internal/customers"
	"github.com/wolfman30/pharmacy-ai-platform/pkg/logging"
)

var productColumns = []string{
	"product_id", "name", "category", "price", "stock_quantity",
	"requires_prescription", "description", "manufacturer",
}

func anyArgs(n int) []any {
	args := make([]any, n)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	return args
}

func newPurchaseService(t *testing.T) (*Service, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewService(mock, NewPostgresRepository(mock), logging.Discard()), mock
}

func TestService_RecordPurchase(t *testing.T) {
	svc, mock := newPurchaseService(t)

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE products SET stock_quantity").
		WithArgs("P001", 2).
		WillReturnRows(pgxmock.NewRows(productColumns).
			AddRow("P001", "Ibuprofen 200mg", "Pain Relief", "12.50", 38, false, "", ""))
	mock.ExpectExec("UPDATE customers SET(.|\\n)*total_purchases").
		WithArgs("CUST001", pgxmock.AnyArg(), 20, 0).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("INSERT INTO sales_records").
		WithArgs(anyArgs(13)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	receipt, err := svc.RecordPurchase(context.Background(), "CUST001", PurchaseRequest{
		ProductID:     "P001",
		Quantity:      2,
		Discount:      decimal.RequireFromString("5"),
		PaymentMethod: "card",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, receipt.Sale.ID)
	assert.Equal(t, "Ibuprofen 200mg", receipt.Sale.ProductName)
	assert.True(t, receipt.Sale.TotalAmount.Equal(decimal.RequireFromString("20")))
	assert.True(t, receipt.Sale.UnitPrice.Equal(decimal.RequireFromString("12.5")))
	assert.Equal(t, 20, receipt.PointsEarned)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestService_RecordPurchaseRollsBack(t *testing.T) {
	tests := []struct {
		name   string
		req    PurchaseRequest
		expect func(mock pgxmock.PgxPoolIface)
		want   error
	}{
		{
			name: "prescription product without rx number",
			req:  PurchaseRequest{ProductID: "P009", Quantity: 1},
			expect: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery("UPDATE products SET stock_quantity").
					WithArgs("P009", 1).
					WillReturnRows(pgxmock.NewRows(productColumns).
						AddRow("P009", "Lisinopril 10mg", "Cardio", "15.00", 9, true, "", ""))
			},
			want: ErrPrescriptionRequired,
		},
		{
			name: "discount above subtotal",
			req:  PurchaseRequest{ProductID: "P001", Quantity: 1, Discount: decimal.RequireFromString("50")},
			expect: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery("UPDATE products SET stock_quantity").
					WithArgs("P001", 1).
					WillReturnRows(pgxmock.NewRows(productColumns).
						AddRow("P001", "Ibuprofen 200mg", "Pain Relief", "12.50", 39, false, "", ""))
			},
			want: ErrInvalidRecord,
		},
		{
			name: "unknown customer",
			req:  PurchaseRequest{ProductID: "P001", Quantity: 1},
			expect: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery("UPDATE products SET stock_quantity").
					WithArgs("P001", 1).
					WillReturnRows(pgxmock.NewRows(productColumns).
						AddRow("P001", "Ibuprofen 200mg", "Pain Relief", "12.50", 39, false, "", ""))
				mock.ExpectExec("UPDATE customers SET").
					WithArgs("CUST001", pgxmock.AnyArg(), 12, 0).
					WillReturnResult(pgxmock.NewResult("UPDATE", 0))
			},
			want: customers.ErrCustomerNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, mock := newPurchaseService(t)
			mock.ExpectBegin()
			tt.expect(mock)
			mock.ExpectRollback()

			_, err := svc.RecordPurchase(context.Background(), "CUST001", tt.req)
			assert.ErrorIs(t, err, tt.want)
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestService_RecordPurchaseValidatesBeforeTx(t *testing.T) {
	svc, mock := newPurchaseService(t)

	for _, req := range []PurchaseRequest{
		{ProductID: "P001", Quantity: 0},
		{ProductID: "", Quantity: 1},
		{ProductID: "P001", Quantity: 1, Discount: decimal.RequireFromString("-1")},
	} {
		_, err := svc.RecordPurchase(context.Background(), "CUST001", req)
		assert.ErrorIs(t, err, ErrInvalidRecord)
	}
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestHandler_RecordPurchaseOutOfStock(t *testing.T) {
	svc, mock := newPurchaseService(t)
	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE products SET stock_quantity").
		WithArgs("P001", 3).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery("FROM products WHERE product_id = \\$1").
		WithArgs("P001").
		WillReturnRows(pgxmock.NewRows(productColumns).
			AddRow("P001", "Ibuprofen 200mg", "Pain Relief", "12.50", 1, false, "", ""))
	mock.ExpectRollback()

	r := chi.NewRouter()
	r.Post("/api/customers/{customerID}/purchases", NewHandler(svc, logging.Discard()).RecordPurchase)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/customers/CUST001/purchases",
		strings.NewReader(`{"product_id":"P001","quantity":3}`))
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestHandler_Orders(t *testing.T) {
	svc, mock := newPurchaseService(t)
	mock.ExpectQuery("FROM sales_records s").
		WithArgs("CUST001", 5).
		WillReturnRows(pgxmock.NewRows([]string{
			"sale_id", "customer_id", "product_id", "name", "quantity",
			"unit_price", "total_amount", "discount_applied",
			"payment_method", "sale_date", "prescription_number",
			"prescription_date", "refill_number", "pharmacist_id",
		}))

	r := chi.NewRouter()
	r.Get("/api/customers/{customerID}/orders", NewHandler(svc, logging.Discard()).Orders)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/customers/CUST001/orders", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"orders":[],"count":0}`, rec.Body.String())
	require.NoError(t, mock.ExpectationsWereMet())
}
