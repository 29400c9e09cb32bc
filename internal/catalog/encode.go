package catalog

import (
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/kart-discounts/internal/discount"
	"github.com/xenking/kart-discounts/internal/domain/product"
)

// EncodeDecimal writes d as a JSON number without losing precision.
func EncodeDecimal(e *jx.Encoder, d decimal.Decimal) {
	e.Num(jx.Num(d.String()))
}

// EncodeProduct writes p in document form.
func EncodeProduct(e *jx.Encoder, p product.Product) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(p.ID) })
		e.Field("name", func(e *jx.Encoder) { e.Str(p.Name) })
		e.Field("price", func(e *jx.Encoder) { EncodeDecimal(e, p.Price) })
	})
}

// EncodeRule writes r in document form. ExcludesAny is written as the "ANY"
// token.
func EncodeRule(e *jx.Encoder, r discount.Rule) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(r.ID) })
		e.Field("products", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, p := range r.Products {
					e.Str(p.ID)
				}
			})
		})
		e.Field("rules", func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				e.Field("discountFunc", func(e *jx.Encoder) { e.Str(r.Func) })
				e.Field("parameters", func(e *jx.Encoder) {
					e.Arr(func(e *jx.Encoder) {
						for _, v := range r.Parameters {
							EncodeDecimal(e, v)
						}
					})
				})
				e.Field("cantBeUsedWith", func(e *jx.Encoder) {
					e.Arr(func(e *jx.Encoder) {
						if r.Exclusion.IsAny() {
							e.Str(ExcludeAnyToken)
							return
						}
						for _, id := range r.Exclusion.IDs() {
							e.Str(id)
						}
					})
				})
			})
		})
	})
}

// Encode writes the whole catalog as a document that Parse accepts.
func (c *Catalog) Encode(e *jx.Encoder) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("products", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, p := range c.products {
					EncodeProduct(e, p)
				}
			})
		})
		e.Field("discounts", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, r := range c.rules {
					EncodeRule(e, r)
				}
			})
		})
	})
}
