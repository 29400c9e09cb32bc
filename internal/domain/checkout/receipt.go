package checkout

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/kart-discounts/internal/discount"
	"github.com/xenking/kart-discounts/internal/domain/product"
)

// AppliedDiscount is one discount rule that survived conflict resolution.
type AppliedDiscount struct {
	RuleID string
	Func   string
	Amount decimal.Decimal
}

// Receipt is the priced result of a single checkout.
type Receipt struct {
	ID string
	// Items are the recognized products in scan order.
	Items []product.Product
	// Unrecognized holds scanned codes that matched no product, in scan order.
	Unrecognized []string
	Subtotal     decimal.Decimal
	// Discounts are the applied rules worth more than zero, best-first.
	Discounts []AppliedDiscount
	// Discount is the sum of applied discount amounts, never positive.
	Discount  decimal.Decimal
	Total     decimal.Decimal
	Policy    discount.Policy
	CreatedAt time.Time
}

// ItemIDs returns the product IDs of the receipt's items in scan order.
func (r *Receipt) ItemIDs() []string {
	ids := make([]string, len(r.Items))
	for i, p := range r.Items {
		ids[i] = p.ID
	}
	return ids
}

// ErrReceiptNotFound is returned when a receipt ID is unknown to the store.
var ErrReceiptNotFound = errors.New("receipt not found")

// ReceiptStore persists priced receipts.
type ReceiptStore interface {
	Save(ctx context.Context, r *Receipt) error
	Get(ctx context.Context, id string) (*Receipt, error)
}
