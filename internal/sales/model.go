package sales

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Record is an immutable transaction line.
type Record struct {
	ID                 string          `json:"sale_id"`
	CustomerID         string          `json:"customer_id"`
	ProductID          string          `json:"product_id"`
	ProductName        string          `json:"product_name,omitempty"`
	Quantity           int             `json:"quantity"`
	UnitPrice          decimal.Decimal `json:"unit_price"`
	TotalAmount        decimal.Decimal `json:"total_amount"`
	DiscountApplied    decimal.Decimal `json:"discount_applied"`
	PaymentMethod      string          `json:"payment_method,omitempty"`
	SaleDate           time.Time       `json:"sale_date"`
	PrescriptionNumber string          `json:"prescription_number,omitempty"`
	PrescriptionDate   *time.Time      `json:"prescription_date,omitempty"`
	RefillNumber       *int            `json:"refill_number,omitempty"`
	PharmacistID       string          `json:"pharmacist_id,omitempty"`
}

// PrescriptionLine is one distinct prescription a customer has filled.
type PrescriptionLine struct {
	ProductName        string     `json:"product_name"`
	PrescriptionNumber string     `json:"prescription_number"`
	PrescriptionDate   *time.Time `json:"prescription_date,omitempty"`
	RefillNumber       *int       `json:"refill_number,omitempty"`
}

var ErrInvalidRecord = errors.New("sales: invalid record")
