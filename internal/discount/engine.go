package discount

import (
	"slices"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/kart-discounts/internal/cart"
)

// Result is the outcome of pricing the discounts for one cart.
type Result struct {
	// Candidates are every applicable rule in catalog order.
	Candidates []Candidate
	// Applied are the non-conflicting candidates, best-first.
	Applied []Candidate
	// Total is the sum of Applied amounts. It is zero or negative.
	Total decimal.Decimal
}

// Dropped returns the candidates that lost conflict resolution.
func (r Result) Dropped() []Candidate {
	var out []Candidate
	for _, c := range r.Candidates {
		applied := slices.ContainsFunc(r.Applied, func(a Candidate) bool {
			return a.Rule.ID == c.Rule.ID
		})
		if !applied {
			out = append(out, c)
		}
	}
	return out
}

// Option configures an Engine.
type Option func(*Engine)

// WithPolicy selects the conflict resolution policy. The default is
// PolicyGreedy.
func WithPolicy(p Policy) Option {
	return func(e *Engine) {
		e.policy = p
		e.resolve = p.resolver()
	}
}

// Engine applies a fixed rule catalog to carts. It holds no per-cart state
// and is safe for concurrent use.
type Engine struct {
	strategies *Registry
	rules      []Rule
	policy     Policy
	resolve    Resolver
}

// NewEngine validates rules against strategies and returns an Engine for
// them. Duplicate rule IDs, unknown strategy names and rules rejected by their
// strategy are configuration errors.
func NewEngine(strategies *Registry, rules []Rule, opts ...Option) (*Engine, error) {
	if strategies == nil {
		return nil, errors.New("strategy registry is required")
	}

	seen := make(map[string]struct{}, len(rules))
	for _, rule := range rules {
		if _, dup := seen[rule.ID]; dup {
			return nil, errors.Wrapf(ErrDuplicateRule, "rule %s", rule.ID)
		}
		seen[rule.ID] = struct{}{}

		s, err := strategies.strategyFor(rule)
		if err != nil {
			return nil, err
		}
		if v, ok := s.(RuleValidator); ok {
			if err := v.Validate(rule); err != nil {
				return nil, err
			}
		}
	}

	e := &Engine{
		strategies: strategies,
		rules:      slices.Clone(rules),
		policy:     PolicyGreedy,
		resolve:    ResolveGreedy,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Rules returns a copy of the engine's catalog.
func (e *Engine) Rules() []Rule {
	return slices.Clone(e.rules)
}

// Policy returns the configured conflict resolution policy.
func (e *Engine) Policy() Policy {
	return e.policy
}

// Candidates prices every rule with at least one target product in c. Rules
// with no product in the cart are skipped. The result follows catalog order.
func (e *Engine) Candidates(c cart.Cart) ([]Candidate, error) {
	var out []Candidate
	for _, rule := range e.rules {
		if _, ok := c.First(rule.Targets); !ok {
			continue
		}

		s, err := e.strategies.strategyFor(rule)
		if err != nil {
			return nil, err
		}
		amount, err := s.Amount(rule, c)
		if err != nil {
			return nil, errors.Wrapf(err, "price rule %s", rule.ID)
		}
		out = append(out, Candidate{Amount: amount, Rule: rule})
	}
	return out, nil
}

// Resolve returns the candidates to apply under the engine's policy.
func (e *Engine) Resolve(candidates []Candidate) []Candidate {
	return e.resolve(candidates)
}

// Apply quantifies and resolves the discounts for c.
func (e *Engine) Apply(c cart.Cart) (Result, error) {
	candidates, err := e.Candidates(c)
	if err != nil {
		return Result{}, err
	}
	applied := e.Resolve(candidates)

	return Result{
		Candidates: candidates,
		Applied:    applied,
		Total:      Sum(applied),
	}, nil
}

// Discount returns the total signed adjustment for c. Add it to the subtotal
// to get the amount due.
func (e *Engine) Discount(c cart.Cart) (decimal.Decimal, error) {
	res, err := e.Apply(c)
	if err != nil {
		return decimal.Zero, err
	}
	return res.Total, nil
}

// Sum adds up candidate amounts.
func Sum(candidates []Candidate) decimal.Decimal {
	total := decimal.Zero
	for _, c := range candidates {
		total = total.Add(c.Amount)
	}
	return total
}
