// Package catalog loads product and discount rule catalogs from JSON
// documents and turns them into domain values.
//
// Document shape:
//
//	{
//	  "products": [{"id": "A", "name": "Apple", "price": 20}],
//	  "discounts": [{
//	    "id": "0",
//	    "products": ["A"],
//	    "rules": {"discountFunc": "XforY", "parameters": [3, 1], "cantBeUsedWith": ["ANY"]}
//	  }]
//	}
//
// The "ANY" entry in cantBeUsedWith only exists in the document format; it is
// translated to discount.ExcludesAny on load and back on encode.
package catalog

import (
	"reflect"
	"slices"

	"github.com/go-faster/errors"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/xenking/kart-discounts/internal/discount"
	"github.com/xenking/kart-discounts/internal/domain/product"
)

// ExcludeAnyToken is the cantBeUsedWith entry meaning "every other rule".
const ExcludeAnyToken = "ANY"

// ErrUnknownProduct is returned when a discount targets a product that is not
// in the document.
var ErrUnknownProduct = errors.New("discount references unknown product")

type productDoc struct {
	ID    string          `validate:"required"`
	Name  string          `validate:"required"`
	Price decimal.Decimal `validate:"gte=0"`
}

type discountDoc struct {
	ID             string   `validate:"required"`
	Products       []string `validate:"required,min=1,dive,required"`
	Func           string   `validate:"required"`
	Parameters     []decimal.Decimal
	CantBeUsedWith []string `validate:"dive,required"`
}

type document struct {
	Products  []productDoc  `validate:"unique=ID,dive"`
	Discounts []discountDoc `validate:"unique=ID,dive"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Compare decimals as floats so numeric tags like gte work on prices.
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			return d.InexactFloat64()
		}
		return nil
	}, decimal.Decimal{})
	return v
}

// Catalog is a validated set of products and discount rules.
type Catalog struct {
	products []product.Product
	rules    []discount.Rule
	dangling map[string][]string
}

func build(doc document) (*Catalog, error) {
	if err := validate.Struct(doc); err != nil {
		return nil, errors.Wrap(err, "validate catalog")
	}

	c := &Catalog{
		products: make([]product.Product, 0, len(doc.Products)),
		rules:    make([]discount.Rule, 0, len(doc.Discounts)),
		dangling: make(map[string][]string),
	}

	byID := make(map[string]product.Product, len(doc.Products))
	for _, p := range doc.Products {
		prod := product.Product{ID: p.ID, Name: p.Name, Price: p.Price}
		byID[p.ID] = prod
		c.products = append(c.products, prod)
	}

	ruleIDs := make(map[string]struct{}, len(doc.Discounts))
	for _, dd := range doc.Discounts {
		ruleIDs[dd.ID] = struct{}{}
	}

	for _, dd := range doc.Discounts {
		targets := make([]product.Product, 0, len(dd.Products))
		for _, id := range dd.Products {
			p, ok := byID[id]
			if !ok {
				return nil, errors.Wrapf(ErrUnknownProduct, "discount %s: product %q", dd.ID, id)
			}
			targets = append(targets, p)
		}

		exclusion := toExclusion(dd.CantBeUsedWith)
		for _, id := range exclusion.IDs() {
			if _, ok := ruleIDs[id]; !ok {
				c.dangling[dd.ID] = append(c.dangling[dd.ID], id)
			}
		}

		c.rules = append(c.rules, discount.Rule{
			ID:         dd.ID,
			Products:   targets,
			Func:       dd.Func,
			Parameters: slices.Clone(dd.Parameters),
			Exclusion:  exclusion,
		})
	}

	return c, nil
}

func toExclusion(ids []string) discount.Exclusion {
	if slices.Contains(ids, ExcludeAnyToken) {
		return discount.ExcludesAny()
	}
	return discount.ExcludesIDs(ids...)
}

// Products returns the catalog's products in document order.
func (c *Catalog) Products() []product.Product {
	return slices.Clone(c.products)
}

// Rules returns the catalog's discount rules in document order.
func (c *Catalog) Rules() []discount.Rule {
	return slices.Clone(c.rules)
}

// DanglingExclusions maps rule IDs to the cantBeUsedWith entries that name no
// rule in the catalog. Such entries are kept and never match.
func (c *Catalog) DanglingExclusions() map[string][]string {
	out := make(map[string][]string, len(c.dangling))
	for k, v := range c.dangling {
		out[k] = slices.Clone(v)
	}
	return out
}

// Engine builds a discount engine over the catalog's rules.
func (c *Catalog) Engine(strategies *discount.Registry, opts ...discount.Option) (*discount.Engine, error) {
	e, err := discount.NewEngine(strategies, c.rules, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "build discount engine")
	}
	return e, nil
}
