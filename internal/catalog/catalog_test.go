package catalog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-faster/jx"
	"github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/kart-discounts/internal/cart"
	"github.com/xenking/kart-discounts/internal/discount"
	"github.com/xenking/kart-discounts/internal/domain/product"
)

func TestLoad_Reference(t *testing.T) {
	c, err := Load(filepath.Join("testdata", "reference.json"))
	require.NoError(t, err)

	products := c.Products()
	require.Len(t, products, 3)
	assert.Equal(t, "A", products[0].ID)
	assert.Equal(t, "Banana", products[1].Name)
	assert.True(t, decimal.NewFromInt(50).Equal(products[1].Price))

	rules := c.Rules()
	require.Len(t, rules, 2)
	assert.Equal(t, "0", rules[0].ID)
	assert.Equal(t, discount.FuncXForY, rules[0].Func)
	assert.True(t, rules[0].Exclusion.IsEmpty())
	assert.Equal(t, []string{"1"}, []string{rules[1].ID})
	assert.Equal(t, []string{"0"}, rules[1].Exclusion.IDs())
	require.Len(t, rules[1].Products, 1)
	assert.Equal(t, "A", rules[1].Products[0].ID)

	assert.Empty(t, c.DanglingExclusions())
}

func TestCatalog_Engine(t *testing.T) {
	c, err := Load(filepath.Join("testdata", "reference.json"))
	require.NoError(t, err)

	e, err := c.Engine(discount.DefaultRegistry())
	require.NoError(t, err)

	byID := make(map[string]product.Product)
	for _, p := range c.Products() {
		byID[p.ID] = p
	}
	var items []product.Product
	for _, r := range "ABBACBBAB" {
		items = append(items, byID[string(r)])
	}
	crt := cart.New(items...)

	got, err := e.Discount(crt)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(240).Equal(cart.Subtotal(crt).Add(got)))
}

func TestLoad_Gzip(t *testing.T) {
	raw, err := os.ReadFile(filepath.Join("testdata", "reference.json"))
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "catalog.json.gz")
	f, err := os.Create(path)
	require.NoError(t, err)
	gz := pgzip.NewWriter(f)
	_, err = gz.Write(raw)
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	require.NoError(t, f.Close())

	c, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, c.Products(), 3)
	assert.Len(t, c.Rules(), 2)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestParse_AnyToken(t *testing.T) {
	c, err := Parse([]byte(`{
		"products": [{"id": "A", "name": "Apple", "price": "20.50"}],
		"discounts": [
			{"id": "solo", "products": ["A"], "rules": {"discountFunc": "Percentage", "parameters": [10], "cantBeUsedWith": ["ANY"]}}
		]
	}`))
	require.NoError(t, err)

	rules := c.Rules()
	require.Len(t, rules, 1)
	assert.True(t, rules[0].Exclusion.IsAny())
	assert.True(t, decimal.RequireFromString("20.5").Equal(c.Products()[0].Price))
}

func TestParse_AnyTokenAnywhere(t *testing.T) {
	c, err := Parse([]byte(`{
		"products": [{"id": "A", "name": "Apple", "price": 1}],
		"discounts": [
			{"id": "0", "products": ["A"], "rules": {"discountFunc": "FreeLowest"}},
			{"id": "1", "products": ["A"], "rules": {"discountFunc": "FreeLowest", "cantBeUsedWith": ["0", "ANY"]}}
		]
	}`))
	require.NoError(t, err)

	ex := c.Rules()[1].Exclusion
	assert.True(t, ex.IsAny())
	assert.Empty(t, c.DanglingExclusions())
}

func TestParse_DanglingExclusion(t *testing.T) {
	c, err := Parse([]byte(`{
		"products": [{"id": "A", "name": "Apple", "price": 20}],
		"discounts": [
			{"id": "x", "products": ["A"], "rules": {"discountFunc": "FreeLowest", "cantBeUsedWith": ["ghost", "x"]}}
		]
	}`))
	require.NoError(t, err)

	assert.Equal(t, map[string][]string{"x": {"ghost"}}, c.DanglingExclusions())
	// Kept on the rule; it simply never matches.
	assert.Equal(t, []string{"ghost", "x"}, c.Rules()[0].Exclusion.IDs())
}

func TestParse_UnknownFieldsIgnored(t *testing.T) {
	c, err := Parse([]byte(`{
		"version": 2,
		"products": [{"id": "A", "name": "Apple", "price": 1, "sku": {"a": [1, 2]}}],
		"discounts": []
	}`))
	require.NoError(t, err)
	assert.Len(t, c.Products(), 1)
	assert.Empty(t, c.Rules())
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr error
		contain string
	}{
		{
			name:    "empty document",
			doc:     "  ",
			contain: "empty catalog",
		},
		{
			name:    "malformed json",
			doc:     `{"products": [`,
			contain: "decode catalog",
		},
		{
			name:    "unknown product",
			doc:     `{"products": [{"id": "A", "name": "Apple", "price": 1}], "discounts": [{"id": "0", "products": ["Z"], "rules": {"discountFunc": "XforY", "parameters": [2, 1]}}]}`,
			wantErr: ErrUnknownProduct,
		},
		{
			name:    "negative price",
			doc:     `{"products": [{"id": "A", "name": "Apple", "price": -1}]}`,
			contain: "validate catalog",
		},
		{
			name:    "duplicate product",
			doc:     `{"products": [{"id": "A", "name": "Apple", "price": 1}, {"id": "A", "name": "Again", "price": 2}]}`,
			contain: "validate catalog",
		},
		{
			name:    "duplicate discount",
			doc:     `{"products": [{"id": "A", "name": "Apple", "price": 1}], "discounts": [{"id": "0", "products": ["A"], "rules": {"discountFunc": "FreeLowest"}}, {"id": "0", "products": ["A"], "rules": {"discountFunc": "FreeLowest"}}]}`,
			contain: "validate catalog",
		},
		{
			name:    "missing discount func",
			doc:     `{"products": [{"id": "A", "name": "Apple", "price": 1}], "discounts": [{"id": "0", "products": ["A"], "rules": {}}]}`,
			contain: "validate catalog",
		},
		{
			name:    "no target products",
			doc:     `{"products": [{"id": "A", "name": "Apple", "price": 1}], "discounts": [{"id": "0", "products": [], "rules": {"discountFunc": "FreeLowest"}}]}`,
			contain: "validate catalog",
		},
		{
			name:    "bad price string",
			doc:     `{"products": [{"id": "A", "name": "Apple", "price": "cheap"}]}`,
			contain: "price",
		},
		{
			name:    "fractional id",
			doc:     `{"products": [{"id": 1.5, "name": "Apple", "price": 1}]}`,
			contain: "non-integer id",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			require.Error(t, err)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			}
			if tt.contain != "" {
				assert.True(t, strings.Contains(err.Error(), tt.contain), "error %q", err)
			}
		})
	}
}

func TestRead(t *testing.T) {
	c, err := Read(strings.NewReader(`{"products": [{"id": "A", "name": "Apple", "price": 1}]}`))
	require.NoError(t, err)
	assert.Len(t, c.Products(), 1)
}

func TestCatalog_EncodeParses(t *testing.T) {
	src, err := Parse([]byte(`{
		"products": [
			{"id": "A", "name": "Apple", "price": "20.25"},
			{"id": "B", "name": "Banana", "price": 50}
		],
		"discounts": [
			{"id": "0", "products": ["B"], "rules": {"discountFunc": "XforY", "parameters": [5, 3], "cantBeUsedWith": []}},
			{"id": "1", "products": ["A", "B"], "rules": {"discountFunc": "Percentage", "parameters": [12.5], "cantBeUsedWith": ["ANY"]}}
		]
	}`))
	require.NoError(t, err)

	var e jx.Encoder
	src.Encode(&e)
	assert.Contains(t, e.String(), `"price":20.25`)
	assert.Contains(t, e.String(), `"cantBeUsedWith":["ANY"]`)

	again, err := Parse(e.Bytes())
	require.NoError(t, err)
	assert.Equal(t, src.Products(), again.Products())

	rules := again.Rules()
	require.Len(t, rules, 2)
	assert.True(t, rules[1].Exclusion.IsAny())
	assert.Len(t, rules[1].Products, 2)
	assert.True(t, decimal.RequireFromString("12.5").Equal(rules[1].Parameters[0]))
}
