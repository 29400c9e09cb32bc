// Package memory provides in-process storage backed by a loaded catalog.
package memory

import (
	"context"
	"sync"

	"github.com/xenking/kart-discounts/internal/domain/product"
)

var _ product.Repository = (*ProductRepository)(nil)

// ProductRepository implements product.Repository over an in-memory product
// list. List preserves insertion order.
type ProductRepository struct {
	mu    sync.RWMutex
	order []string
	byID  map[string]product.Product
}

// NewProductRepository returns a ProductRepository holding products. Later
// duplicates replace earlier ones in place.
func NewProductRepository(products []product.Product) *ProductRepository {
	r := &ProductRepository{byID: make(map[string]product.Product, len(products))}
	for _, p := range products {
		r.put(p)
	}
	return r
}

// Upsert inserts p or replaces the product with the same ID.
func (r *ProductRepository) Upsert(_ context.Context, p product.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.put(p)
	return nil
}

func (r *ProductRepository) put(p product.Product) {
	if _, ok := r.byID[p.ID]; !ok {
		r.order = append(r.order, p.ID)
	}
	r.byID[p.ID] = p
}

// List returns all products in insertion order.
func (r *ProductRepository) List(_ context.Context) ([]product.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]product.Product, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out, nil
}

// GetByID returns a single product by its identifier.
func (r *ProductRepository) GetByID(_ context.Context, id string) (*product.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.byID[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	return &p, nil
}

// GetByIDs returns products matching any of the given IDs, once each, in
// insertion order. Unknown IDs are skipped.
func (r *ProductRepository) GetByIDs(_ context.Context, ids []string) ([]product.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}

	out := make([]product.Product, 0, len(ids))
	for _, id := range r.order {
		if _, ok := want[id]; ok {
			out = append(out, r.byID[id])
		}
	}
	return out, nil
}
