// Package channels holds what the Telegram and WhatsApp adapters share: the
// agent contract they call and the flattening of reply actions into
// selectable items.
package channels

import (
	"context"
	"fmt"
	"strings"

	"github.com/wolfman30/pharmacy-ai-platform/internal/conversation"
	"github.com/wolfman30/pharmacy-ai-platform/internal/customers"
	"github.com/wolfman30/pharmacy-ai-platform/internal/products"
	"github.com/wolfman30/pharmacy-ai-platform/internal/promotions"
	"github.com/wolfman30/pharmacy-ai-platform/internal/sales"
)

// MaxItems caps how many options a single reply offers.
const MaxItems = 8

// Agent answers a message for a resolved customer.
type Agent interface {
	ProcessMessage(ctx context.Context, customerID, message, channel string) conversation.Result
	ResetContext(ctx context.Context, customerID string) error
}

// IdentityResolver maps a channel identity to a customer.
type IdentityResolver interface {
	ResolveChannelIdentity(ctx context.Context, id customers.Identity) (*customers.Customer, error)
}

// Item is one selectable option. Query is sent back to the agent as the
// customer's next message when the option is picked.
type Item struct {
	Label string
	Query string
}

// Items flattens reply actions into at most MaxItems options. Error actions
// carry no options.
func Items(actions []conversation.Action) []Item {
	var out []Item
	for _, a := range actions {
		switch data := a.Data.(type) {
		case []products.Product:
			for _, p := range data {
				out = append(out, productItem(p))
			}
		case []promotions.Promotion:
			for _, p := range data {
				out = append(out, promotionItem(p))
			}
		case []sales.PrescriptionLine:
			for _, l := range data {
				out = append(out, Item{
					Label: fmt.Sprintf("%s (Rx %s)", l.ProductName, l.PrescriptionNumber),
					Query: "Refill prescription " + l.PrescriptionNumber,
				})
			}
		case []sales.Record:
			for _, r := range data {
				day := r.SaleDate.Format("Jan 2")
				out = append(out, Item{
					Label: fmt.Sprintf("%s x%d - %s", orDefault(r.ProductName, r.ProductID), r.Quantity, day),
					Query: fmt.Sprintf("What is the status of my %s order from %s?", orDefault(r.ProductName, r.ProductID), day),
				})
			}
		}
		if len(out) >= MaxItems {
			return out[:MaxItems]
		}
	}
	return out
}

func productItem(p products.Product) Item {
	label := fmt.Sprintf("%s - $%s", p.Name, p.Price.StringFixed(2))
	switch {
	case p.StockQuantity <= 0:
		label += " (out of stock)"
	case p.RequiresPrescription:
		label += " (Rx)"
	}
	return Item{Label: label, Query: "Tell me more about " + p.Name}
}

func promotionItem(p promotions.Promotion) Item {
	label := p.Name
	switch {
	case p.DiscountPercentage != nil && p.DiscountPercentage.IsPositive():
		label += " - " + p.DiscountPercentage.String() + "% off"
	case p.DiscountAmount != nil && p.DiscountAmount.IsPositive():
		label += " - $" + p.DiscountAmount.StringFixed(2) + " off"
	}
	return Item{Label: label, Query: "How do I use the " + p.Name + " promotion?"}
}

func orDefault(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}

// Truncate shortens s to at most n bytes on a rune boundary.
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func utf8RuneStart(b byte) bool { return b&0xC0 != 0x80 }
