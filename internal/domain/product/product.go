package product

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// Product is an immutable catalog item. Cart slots hold products by value.
type Product struct {
	ID    string
	Name  string
	Price decimal.Decimal
}

// Is reports whether p and other denote the same catalog item.
func (p Product) Is(other Product) bool {
	return p.ID == other.ID
}

// Repository defines read operations for the product catalog.
type Repository interface {
	List(ctx context.Context) ([]Product, error)
	GetByID(ctx context.Context, id string) (*Product, error)
	GetByIDs(ctx context.Context, ids []string) ([]Product, error)
}
