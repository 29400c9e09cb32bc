package product

import (
	"context"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
)

const filterFPR = 0.001

var _ Repository = (*FilteredRepository)(nil)

// FilteredRepository fronts a Repository with a bloom filter of known product
// IDs. Lookups for IDs the filter has definitely never seen are answered
// without touching the underlying store, so scanning garbage item codes stays
// cheap even when the catalog lives in PostgreSQL.
//
// The filter is built once from List and never updated; products added to the
// store afterwards are invisible until a new FilteredRepository is built.
type FilteredRepository struct {
	next   Repository
	filter *bloom.BloomFilter
}

// NewFilteredRepository lists every product in next and indexes its ID.
func NewFilteredRepository(ctx context.Context, next Repository) (*FilteredRepository, error) {
	products, err := next.List(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list products")
	}

	capacity := uint(len(products))
	if capacity == 0 {
		capacity = 1
	}
	filter := bloom.NewWithEstimates(capacity, filterFPR)
	for _, p := range products {
		filter.AddString(p.ID)
	}

	return &FilteredRepository{next: next, filter: filter}, nil
}

// MayContain reports whether id could be a known product ID. False means the
// ID is definitely unknown.
func (r *FilteredRepository) MayContain(id string) bool {
	return r.filter.TestString(id)
}

// List returns every product from the underlying repository.
func (r *FilteredRepository) List(ctx context.Context) ([]Product, error) {
	return r.next.List(ctx)
}

// GetByID returns ErrNotFound straight away for IDs rejected by the filter.
func (r *FilteredRepository) GetByID(ctx context.Context, id string) (*Product, error) {
	if !r.MayContain(id) {
		return nil, ErrNotFound
	}
	return r.next.GetByID(ctx, id)
}

// GetByIDs forwards only the IDs that pass the filter.
func (r *FilteredRepository) GetByIDs(ctx context.Context, ids []string) ([]Product, error) {
	known := make([]string, 0, len(ids))
	for _, id := range ids {
		if r.MayContain(id) {
			known = append(known, id)
		}
	}
	if len(known) == 0 {
		return nil, nil
	}
	return r.next.GetByIDs(ctx, known)
}
