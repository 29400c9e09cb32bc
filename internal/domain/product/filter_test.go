package product

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockRepo struct {
	products []Product
	listErr  error
	lastIDs  []string
	calls    int
}

func (m *mockRepo) List(_ context.Context) ([]Product, error) {
	return m.products, m.listErr
}

func (m *mockRepo) GetByID(_ context.Context, id string) (*Product, error) {
	m.calls++
	for i := range m.products {
		if m.products[i].ID == id {
			return &m.products[i], nil
		}
	}
	return nil, ErrNotFound
}

func (m *mockRepo) GetByIDs(_ context.Context, ids []string) ([]Product, error) {
	m.calls++
	m.lastIDs = ids
	var out []Product
	for _, id := range ids {
		for _, p := range m.products {
			if p.ID == id {
				out = append(out, p)
			}
		}
	}
	return out, nil
}

func newMockRepo() *mockRepo {
	return &mockRepo{products: []Product{
		{ID: "A", Name: "A", Price: decimal.NewFromInt(20)},
		{ID: "B", Name: "B", Price: decimal.NewFromInt(50)},
	}}
}

func TestFilteredRepository_GetByID(t *testing.T) {
	next := newMockRepo()
	repo, err := NewFilteredRepository(context.Background(), next)
	require.NoError(t, err)

	p, err := repo.GetByID(context.Background(), "A")
	require.NoError(t, err)
	assert.Equal(t, "A", p.ID)
	assert.Equal(t, 1, next.calls)
}

func TestFilteredRepository_GetByIDs_SkipsUnknown(t *testing.T) {
	next := newMockRepo()
	repo, err := NewFilteredRepository(context.Background(), next)
	require.NoError(t, err)

	got, err := repo.GetByIDs(context.Background(), []string{"A", "B", "definitely-not-a-product"})
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.NotContains(t, next.lastIDs, "definitely-not-a-product")
}

func TestFilteredRepository_AllUnknownSkipsStore(t *testing.T) {
	next := newMockRepo()
	repo, err := NewFilteredRepository(context.Background(), next)
	require.NoError(t, err)

	got, err := repo.GetByIDs(context.Background(), []string{"nope-1", "nope-2"})
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, 0, next.calls)
}

func TestFilteredRepository_EmptyCatalog(t *testing.T) {
	repo, err := NewFilteredRepository(context.Background(), &mockRepo{})
	require.NoError(t, err)

	_, err = repo.GetByID(context.Background(), "A")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestFilteredRepository_ListError(t *testing.T) {
	_, err := NewFilteredRepository(context.Background(), &mockRepo{listErr: errors.New("db down")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "list products")
}
