package discount

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/xenking/kart-discounts/internal/cart"
	"github.com/xenking/kart-discounts/internal/domain/product"
)

var (
	productA = product.Product{ID: "A", Name: "A", Price: decimal.NewFromInt(20)}
	productB = product.Product{ID: "B", Name: "B", Price: decimal.NewFromInt(50)}
	productC = product.Product{ID: "C", Name: "C", Price: decimal.NewFromInt(30)}
)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func params(vs ...int64) []decimal.Decimal {
	out := make([]decimal.Decimal, len(vs))
	for i, v := range vs {
		out[i] = decimal.NewFromInt(v)
	}
	return out
}

// referenceRules is the two-rule sample catalog:
// "0" is buy 5 B pay 3, "1" is buy 3 A pay 1 and cannot be used with "0".
func referenceRules() []Rule {
	return []Rule{
		{
			ID:         "0",
			Products:   []product.Product{productB},
			Func:       FuncXForY,
			Parameters: params(5, 3),
			Exclusion:  ExcludesNone(),
		},
		{
			ID:         "1",
			Products:   []product.Product{productA},
			Func:       FuncXForY,
			Parameters: params(3, 1),
			Exclusion:  ExcludesIDs("0"),
		},
	}
}

// scan builds a cart from single-letter codes over products A, B and C.
func scan(codes string) cart.Cart {
	byID := map[string]product.Product{"A": productA, "B": productB, "C": productC}
	var items []product.Product
	for _, r := range strings.TrimSpace(codes) {
		if p, ok := byID[string(r)]; ok {
			items = append(items, p)
		}
	}
	return cart.New(items...)
}

func candidate(id, amount string, ex Exclusion) Candidate {
	return Candidate{
		Amount: d(amount),
		Rule:   Rule{ID: id, Func: FuncXForY, Exclusion: ex},
	}
}

func ids(cands []Candidate) []string {
	out := make([]string, len(cands))
	for i, c := range cands {
		out[i] = c.Rule.ID
	}
	return out
}
