package sales

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/wolfman30/pharmacy-ai-platform/internal/customers"
	"github.com/wolfman30/pharmacy-ai-platform/internal/database"
	"github.com/wolfman30/pharmacy-ai-platform/internal/products"
	"github.com/wolfman30/pharmacy-ai-platform/pkg/logging"
)

const defaultRecentLimit = 5

// ErrPrescriptionRequired is returned when an Rx product is sold without a
// prescription number.
var ErrPrescriptionRequired = errors.New("sales: prescription number required")

// PurchaseRequest is one sale line as submitted by the till or the API.
type PurchaseRequest struct {
	ProductID          string          `json:"product_id"`
	Quantity           int             `json:"quantity"`
	Discount           decimal.Decimal `json:"discount_applied"`
	PaymentMethod      string          `json:"payment_method"`
	PrescriptionNumber string          `json:"prescription_number"`
	RefillNumber       *int            `json:"refill_number"`
	PharmacistID       string          `json:"pharmacist_id"`
}

// Receipt is the recorded sale plus the loyalty points it earned.
type Receipt struct {
	Sale         Record `json:"sale"`
	PointsEarned int    `json:"points_earned"`
}

// Service records purchases and reads order history.
type Service struct {
	db     database.Beginner
	repo   Repository
	logger *logging.Logger
}

// NewService wires the transaction source used for purchases and the
// repository used for reads.
func NewService(db database.Beginner, repo Repository, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{db: db, repo: repo, logger: logger}
}

// Recent returns the customer's latest orders.
func (s *Service) Recent(ctx context.Context, customerID string, limit int) ([]Record, error) {
	if limit <= 0 || limit > 50 {
		limit = defaultRecentLimit
	}
	return s.repo.Recent(ctx, customerID, limit)
}

// RecordPurchase takes the stock, credits the customer's totals and loyalty
// points and appends the sale line in one transaction.
func (s *Service) RecordPurchase(ctx context.Context, customerID string, req PurchaseRequest) (*Receipt, error) {
	if strings.TrimSpace(customerID) == "" || strings.TrimSpace(req.ProductID) == "" || req.Quantity <= 0 || req.Discount.IsNegative() {
		return nil, ErrInvalidRecord
	}

	var receipt Receipt
	err := database.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		product, err := products.NewPostgresRepository(tx).ReserveStock(ctx, req.ProductID, req.Quantity)
		if err != nil {
			return err
		}
		rxNumber := strings.TrimSpace(req.PrescriptionNumber)
		if product.RequiresPrescription && rxNumber == "" {
			return ErrPrescriptionRequired
		}

		subtotal := product.Price.Mul(decimal.NewFromInt(int64(req.Quantity)))
		if req.Discount.GreaterThan(subtotal) {
			return ErrInvalidRecord
		}
		total := subtotal.Sub(req.Discount)

		if err := customers.NewPostgresRepository(tx).RecordPurchase(ctx, customerID, total, rxNumber != ""); err != nil {
			return err
		}

		rec := Record{
			CustomerID:         customerID,
			ProductID:          product.ID,
			ProductName:        product.Name,
			Quantity:           req.Quantity,
			UnitPrice:          product.Price,
			TotalAmount:        total,
			DiscountApplied:    req.Discount,
			PaymentMethod:      req.PaymentMethod,
			PrescriptionNumber: rxNumber,
			RefillNumber:       req.RefillNumber,
			PharmacistID:       req.PharmacistID,
		}
		if err := NewPostgresRepository(tx).Insert(ctx, &rec); err != nil {
			return err
		}
		receipt = Receipt{Sale: rec, PointsEarned: customers.PointsFor(total)}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("purchase recorded",
		"customer_id", customerID,
		"sale_id", receipt.Sale.ID,
		"product_id", receipt.Sale.ProductID,
		"total", receipt.Sale.TotalAmount.StringFixed(2),
	)
	return &receipt, nil
}
