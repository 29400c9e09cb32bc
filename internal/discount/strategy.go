package discount

import (
	"maps"
	"slices"

	"github.com/shopspring/decimal"

	"github.com/xenking/kart-discounts/internal/cart"
)

// Names of the built-in strategies as they appear in a rule's Func.
const (
	FuncXForY      = "XforY"
	FuncPercentage = "Percentage"
	FuncFreeLowest = "FreeLowest"
)

// Strategy computes the effect of one rule on a cart. The returned amount is
// zero or negative.
type Strategy interface {
	Amount(rule Rule, c cart.Cart) (decimal.Decimal, error)
}

// RuleValidator is implemented by strategies that can reject a malformed rule
// before any cart is priced.
type RuleValidator interface {
	Validate(rule Rule) error
}

// StrategyFunc adapts a plain function to Strategy.
type StrategyFunc func(rule Rule, c cart.Cart) (decimal.Decimal, error)

// Amount calls f.
func (f StrategyFunc) Amount(rule Rule, c cart.Cart) (decimal.Decimal, error) {
	return f(rule, c)
}

// Registry is an immutable mapping from strategy name to Strategy. It is
// safe for concurrent use.
type Registry struct {
	strategies map[string]Strategy
}

// NewRegistry copies strategies into a new Registry.
func NewRegistry(strategies map[string]Strategy) *Registry {
	return &Registry{strategies: maps.Clone(strategies)}
}

// DefaultRegistry returns a fresh Registry holding the built-in strategies.
func DefaultRegistry() *Registry {
	return NewRegistry(map[string]Strategy{
		FuncXForY:      XForY{},
		FuncPercentage: Percentage{},
		FuncFreeLowest: FreeLowest{},
	})
}

// With returns a copy of r with an additional or replaced strategy.
func (r *Registry) With(name string, s Strategy) *Registry {
	m := maps.Clone(r.strategies)
	if m == nil {
		m = make(map[string]Strategy, 1)
	}
	m[name] = s
	return &Registry{strategies: m}
}

// Lookup returns the strategy registered under name.
func (r *Registry) Lookup(name string) (Strategy, bool) {
	s, ok := r.strategies[name]
	return s, ok
}

// Names returns the registered strategy names in sorted order.
func (r *Registry) Names() []string {
	return slices.Sorted(maps.Keys(r.strategies))
}

// strategyFor resolves the strategy for rule or returns *UnknownStrategyError.
func (r *Registry) strategyFor(rule Rule) (Strategy, error) {
	s, ok := r.Lookup(rule.Func)
	if !ok {
		return nil, &UnknownStrategyError{RuleID: rule.ID, Func: rule.Func}
	}
	return s, nil
}
