package discount

import (
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/kart-discounts/internal/cart"
	"github.com/xenking/kart-discounts/internal/domain/product"
)

func newReferenceEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	e, err := NewEngine(DefaultRegistry(), referenceRules(), opts...)
	require.NoError(t, err)
	return e
}

func TestEngine_ReferenceScenarios(t *testing.T) {
	tests := []struct {
		name         string
		codes        string
		wantSubtotal decimal.Decimal
		wantGreedy   decimal.Decimal
		wantLegacy   decimal.Decimal
	}{
		{
			name:         "ABBACBBAB",
			codes:        "ABBACBBAB",
			wantSubtotal: d("340"),
			wantGreedy:   d("240"),
			wantLegacy:   d("240"),
		},
		{
			name:         "BBBAABBBAABBBAACCCB",
			codes:        "BBBAABBBAABBBAACCCB",
			wantSubtotal: d("710"),
			wantGreedy:   d("510"),
			wantLegacy:   d("510"),
		},
		{
			// The legacy pass never notices rule 1 excluding the cheaper
			// rule 0, so both apply: 430 - 120 - 100.
			name:         "BBBBBAAAAAAAAA",
			codes:        "BBBBBAAAAAAAAA",
			wantSubtotal: d("430"),
			wantGreedy:   d("310"),
			wantLegacy:   d("210"),
		},
	}

	greedy := newReferenceEngine(t)
	legacy := newReferenceEngine(t, WithPolicy(PolicyLegacy))

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := scan(tt.codes)
			subtotal := cart.Subtotal(c)
			require.True(t, tt.wantSubtotal.Equal(subtotal), "subtotal %s", subtotal)

			got, err := greedy.Discount(c)
			require.NoError(t, err)
			assert.True(t, tt.wantGreedy.Equal(subtotal.Add(got)), "greedy total %s", subtotal.Add(got))

			got, err = legacy.Discount(c)
			require.NoError(t, err)
			assert.True(t, tt.wantLegacy.Equal(subtotal.Add(got)), "legacy total %s", subtotal.Add(got))
		})
	}
}

func TestEngine_Candidates(t *testing.T) {
	e := newReferenceEngine(t)

	got, err := e.Candidates(scan("ABBACBBAB"))
	require.NoError(t, err)
	require.Len(t, got, 2)

	// Catalog order, not value order.
	assert.Equal(t, "0", got[0].Rule.ID)
	assert.True(t, d("-100").Equal(got[0].Amount))
	assert.Equal(t, "1", got[1].Rule.ID)
	assert.True(t, d("-40").Equal(got[1].Amount))
}

func TestEngine_Candidates_ExcludesAbsentTargets(t *testing.T) {
	e := newReferenceEngine(t)

	got, err := e.Candidates(scan("CCCBB"))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "0", got[0].Rule.ID)
	// Present but below the group size: a candidate worth nothing.
	assert.True(t, got[0].Amount.IsZero())
}

func TestEngine_EmptyCartOrCatalog(t *testing.T) {
	e := newReferenceEngine(t)
	got, err := e.Discount(cart.New())
	require.NoError(t, err)
	assert.True(t, got.IsZero())

	empty, err := NewEngine(DefaultRegistry(), nil)
	require.NoError(t, err)
	got, err = empty.Discount(scan("AAABBBBB"))
	require.NoError(t, err)
	assert.True(t, got.IsZero())

	res, err := empty.Apply(scan("AAA"))
	require.NoError(t, err)
	assert.Empty(t, res.Candidates)
	assert.Empty(t, res.Applied)
}

func TestEngine_Apply(t *testing.T) {
	e := newReferenceEngine(t)

	res, err := e.Apply(scan("BBBBBAAAAAAAAA"))
	require.NoError(t, err)

	assert.Len(t, res.Candidates, 2)
	require.Len(t, res.Applied, 1)
	assert.Equal(t, "1", res.Applied[0].Rule.ID)
	assert.True(t, d("-120").Equal(res.Total))

	dropped := res.Dropped()
	require.Len(t, dropped, 1)
	assert.Equal(t, "0", dropped[0].Rule.ID)
}

func TestEngine_AnyExclusionStandsAlone(t *testing.T) {
	rules := append(referenceRules(), Rule{
		ID:         "solo",
		Products:   []product.Product{productC},
		Func:       FuncPercentage,
		Parameters: params(100),
		Exclusion:  ExcludesAny(),
	})
	e, err := NewEngine(DefaultRegistry(), rules)
	require.NoError(t, err)

	// C x5 at 100% off is worth 150, more than any other candidate.
	res, err := e.Apply(scan("CCCCCBBBBBAAA"))
	require.NoError(t, err)
	require.Len(t, res.Applied, 1)
	assert.Equal(t, "solo", res.Applied[0].Rule.ID)

	// Alone in the cart it is the only candidate and survives.
	res, err = e.Apply(scan("C"))
	require.NoError(t, err)
	require.Len(t, res.Applied, 1)
	assert.Equal(t, "solo", res.Applied[0].Rule.ID)
}

func TestNewEngine_UnknownStrategy(t *testing.T) {
	rules := []Rule{{ID: "x", Products: []product.Product{productA}, Func: "BuyNothing"}}

	_, err := NewEngine(DefaultRegistry(), rules)
	require.ErrorIs(t, err, ErrUnknownStrategy)

	var use *UnknownStrategyError
	require.ErrorAs(t, err, &use)
	assert.Equal(t, "x", use.RuleID)
	assert.Equal(t, "BuyNothing", use.Func)
}

func TestEngine_UnknownStrategyFailsResolution(t *testing.T) {
	reg := NewRegistry(map[string]Strategy{"Temp": StrategyFunc(func(Rule, cart.Cart) (decimal.Decimal, error) {
		return decimal.Zero, nil
	})})
	rules := []Rule{{ID: "t", Products: []product.Product{productA}, Func: "Temp"}}
	e, err := NewEngine(reg, rules)
	require.NoError(t, err)

	// Swap in a registry that no longer knows the rule's strategy.
	e.strategies = NewRegistry(nil)

	_, err = e.Discount(scan("A"))
	require.ErrorIs(t, err, ErrUnknownStrategy)

	// Rules that do not match the cart are never looked up.
	got, err := e.Discount(scan("B"))
	require.NoError(t, err)
	assert.True(t, got.IsZero())
}

func TestNewEngine_InvalidRule(t *testing.T) {
	rules := []Rule{{ID: "bad", Products: []product.Product{productA, productB}, Func: FuncXForY, Parameters: params(3, 1)}}

	_, err := NewEngine(DefaultRegistry(), rules)
	require.ErrorIs(t, err, ErrInvalidRule)
}

func TestNewEngine_DuplicateRule(t *testing.T) {
	rules := append(referenceRules(), referenceRules()[0])

	_, err := NewEngine(DefaultRegistry(), rules)
	require.ErrorIs(t, err, ErrDuplicateRule)
}

func TestNewEngine_NilRegistry(t *testing.T) {
	_, err := NewEngine(nil, referenceRules())
	require.Error(t, err)
}

func TestEngine_StrategyErrorIsWrapped(t *testing.T) {
	boom := errors.New("boom")
	reg := DefaultRegistry().With("Boom", StrategyFunc(func(Rule, cart.Cart) (decimal.Decimal, error) {
		return decimal.Zero, boom
	}))
	e, err := NewEngine(reg, []Rule{{ID: "b", Products: []product.Product{productA}, Func: "Boom"}})
	require.NoError(t, err)

	_, err = e.Candidates(scan("A"))
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "price rule b")
}

func TestEngine_CustomStrategy(t *testing.T) {
	flat := StrategyFunc(func(rule Rule, c cart.Cart) (decimal.Decimal, error) {
		n := c.Count(rule.Targets)
		return decimal.NewFromInt(int64(-n)), nil
	})
	reg := DefaultRegistry().With("FlatPerItem", flat)
	assert.Contains(t, reg.Names(), "FlatPerItem")
	assert.NotContains(t, DefaultRegistry().Names(), "FlatPerItem")

	e, err := NewEngine(reg, []Rule{{ID: "f", Products: []product.Product{productC}, Func: "FlatPerItem"}})
	require.NoError(t, err)

	got, err := e.Discount(scan("CCAC"))
	require.NoError(t, err)
	assert.True(t, d("-3").Equal(got))
}

func TestEngine_RulesAreCopied(t *testing.T) {
	rules := referenceRules()
	e, err := NewEngine(DefaultRegistry(), rules)
	require.NoError(t, err)

	rules[0].ID = "mutated"
	assert.Equal(t, "0", e.Rules()[0].ID)
	assert.Equal(t, PolicyGreedy, e.Policy())
}

func TestRule_ConflictsWithIsMutual(t *testing.T) {
	rules := referenceRules()

	assert.True(t, rules[1].ConflictsWith(rules[0]))
	assert.True(t, rules[0].ConflictsWith(rules[1]))
	assert.False(t, rules[0].ConflictsWith(rules[0]))

	anyRule := Rule{ID: "any", Exclusion: ExcludesAny()}
	assert.True(t, rules[0].ConflictsWith(anyRule))
	assert.True(t, anyRule.ConflictsWith(rules[1]))
}

func TestExclusion(t *testing.T) {
	assert.True(t, ExcludesNone().IsEmpty())
	assert.True(t, ExcludesIDs().IsEmpty())
	assert.False(t, ExcludesAny().IsEmpty())
	assert.True(t, ExcludesAny().Excludes("whatever"))
	assert.Empty(t, ExcludesAny().IDs())

	ex := ExcludesIDs("a", "b")
	assert.True(t, ex.Excludes("a"))
	assert.False(t, ex.Excludes("c"))
	assert.Equal(t, []string{"a", "b"}, ex.IDs())
}
