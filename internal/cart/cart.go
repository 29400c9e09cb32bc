// Package cart provides the read-only collection of products scanned for a
// single checkout.
package cart

import (
	"github.com/shopspring/decimal"

	"github.com/xenking/kart-discounts/internal/domain/product"
)

// Collection is an ordered, read-only view over a sequence of values. It keeps
// no iteration state, so every call scans from the start.
type Collection[T any] struct {
	items []T
}

// NewCollection copies items into a new Collection.
func NewCollection[T any](items ...T) Collection[T] {
	c := Collection[T]{items: make([]T, len(items))}
	copy(c.items, items)
	return c
}

// Len returns the number of elements.
func (c Collection[T]) Len() int {
	return len(c.items)
}

// Items returns a copy of the underlying elements in order.
func (c Collection[T]) Items() []T {
	out := make([]T, len(c.items))
	copy(out, c.items)
	return out
}

// First returns the first element matching pred. The boolean is false when no
// element matches.
func (c Collection[T]) First(pred func(T) bool) (T, bool) {
	for _, item := range c.items {
		if pred(item) {
			return item, true
		}
	}
	var zero T
	return zero, false
}

// All returns every element matching pred in collection order. The result is
// empty, not nil, when nothing matches.
func (c Collection[T]) All(pred func(T) bool) []T {
	out := make([]T, 0)
	for _, item := range c.items {
		if pred(item) {
			out = append(out, item)
		}
	}
	return out
}

// Count returns the number of elements matching pred.
func (c Collection[T]) Count(pred func(T) bool) int {
	n := 0
	for _, item := range c.items {
		if pred(item) {
			n++
		}
	}
	return n
}

// Cart is the ordered list of products scanned for one checkout.
type Cart = Collection[product.Product]

// New builds a Cart from products in scan order.
func New(products ...product.Product) Cart {
	return NewCollection(products...)
}

// Subtotal sums the unit price of every product in c.
func Subtotal(c Cart) decimal.Decimal {
	sum := decimal.Zero
	for _, p := range c.items {
		sum = sum.Add(p.Price)
	}
	return sum
}

// IsProduct returns a predicate matching products with the same identity as p.
func IsProduct(p product.Product) func(product.Product) bool {
	return func(other product.Product) bool {
		return other.Is(p)
	}
}
