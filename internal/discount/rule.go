// Package discount implements the discount resolution engine: it finds the
// rules that apply to a cart, prices each one with a named strategy, and
// resolves conflicts between mutually exclusive rules.
package discount

import (
	"slices"

	"github.com/shopspring/decimal"

	"github.com/xenking/kart-discounts/internal/domain/product"
)

// Exclusion describes which other rules a rule cannot be combined with.
// The zero value excludes nothing.
type Exclusion struct {
	any bool
	ids []string
}

// ExcludesNone returns an Exclusion that allows combining with every rule.
func ExcludesNone() Exclusion {
	return Exclusion{}
}

// ExcludesAny returns an Exclusion that conflicts with every other rule.
func ExcludesAny() Exclusion {
	return Exclusion{any: true}
}

// ExcludesIDs returns an Exclusion that conflicts with the listed rule IDs.
// IDs that match no rule in the catalog simply never trigger.
func ExcludesIDs(ids ...string) Exclusion {
	if len(ids) == 0 {
		return Exclusion{}
	}
	return Exclusion{ids: slices.Clone(ids)}
}

// IsAny reports whether the exclusion covers every other rule.
func (e Exclusion) IsAny() bool { return e.any }

// IsEmpty reports whether the exclusion covers no rule at all.
func (e Exclusion) IsEmpty() bool { return !e.any && len(e.ids) == 0 }

// IDs returns the explicitly excluded rule IDs. It is empty for ExcludesAny.
func (e Exclusion) IDs() []string { return slices.Clone(e.ids) }

// Excludes reports whether a rule with the given ID is covered.
func (e Exclusion) Excludes(id string) bool {
	return e.any || slices.Contains(e.ids, id)
}

// Rule is a catalog entry describing a promotion.
type Rule struct {
	ID string
	// Products are the rule's targets. The rule is a candidate when at least
	// one of them is in the cart.
	Products []product.Product
	// Func names the strategy that prices the rule.
	Func       string
	Parameters []decimal.Decimal
	Exclusion  Exclusion
}

// Targets reports whether p is one of the rule's target products.
func (r Rule) Targets(p product.Product) bool {
	for _, t := range r.Products {
		if t.Is(p) {
			return true
		}
	}
	return false
}

// ConflictsWith reports whether r and other may not be applied together.
// Exclusions are authored on one side but always hold in both directions.
func (r Rule) ConflictsWith(other Rule) bool {
	if r.ID == other.ID {
		return false
	}
	return r.Exclusion.Excludes(other.ID) || other.Exclusion.Excludes(r.ID)
}

// Param returns the i-th parameter and whether it is present.
func (r Rule) Param(i int) (decimal.Decimal, bool) {
	if i < 0 || i >= len(r.Parameters) {
		return decimal.Zero, false
	}
	return r.Parameters[i], true
}

// Candidate is a rule that applies to the current cart together with its
// computed effect on the total. Amount is zero or negative.
type Candidate struct {
	Amount decimal.Decimal
	Rule   Rule
}
