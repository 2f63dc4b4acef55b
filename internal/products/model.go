package products

import (
	"errors"

	"github.com/shopspring/decimal"
)

// Product is a catalog entry.
type Product struct {
	ID                   string          `json:"product_id"`
	Name                 string          `json:"name"`
	Category             string          `json:"category"`
	Price                decimal.Decimal `json:"price"`
	StockQuantity        int             `json:"stock_quantity"`
	RequiresPrescription bool            `json:"requires_prescription"`
	Description          string          `json:"description,omitempty"`
	Manufacturer         string          `json:"manufacturer,omitempty"`
}

// Availability answers whether a quantity of a product can be sold now.
type Availability struct {
	Available bool     `json:"available"`
	InStock   int      `json:"in_stock"`
	Requested int      `json:"requested"`
	Product   *Product `json:"product"`
}

var (
	// ErrProductNotFound is returned when no product matches the id.
	ErrProductNotFound = errors.New("product not found")

	// ErrInvalidQuantity is returned for non-positive availability checks.
	ErrInvalidQuantity = errors.New("quantity must be positive")

	// ErrInsufficientStock is returned when a reservation exceeds stock on hand.
	ErrInsufficientStock = errors.New("insufficient stock")
)
