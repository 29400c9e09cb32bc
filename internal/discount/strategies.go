package discount

import (
	"github.com/shopspring/decimal"

	"github.com/xenking/kart-discounts/internal/cart"
	"github.com/xenking/kart-discounts/internal/domain/product"
)

var hundred = decimal.NewFromInt(100)

// XForY is "buy X, pay for Y" on a single target product. Every complete
// group of X matching items is charged as Y items; partial groups get nothing.
//
// Parameters: [X, Y] with integer X >= 1 and 0 <= Y <= X.
type XForY struct{}

// Validate checks the rule has one target product and a usable [X, Y] pair.
func (XForY) Validate(rule Rule) error {
	_, _, err := xForYParams(rule)
	return err
}

// Amount returns -(X-Y) * unitPrice for each complete group of X items.
func (XForY) Amount(rule Rule, c cart.Cart) (decimal.Decimal, error) {
	x, y, err := xForYParams(rule)
	if err != nil {
		return decimal.Zero, err
	}
	matches := cart.IsProduct(rule.Products[0])

	// x may exceed int64, so the group count stays in decimal.
	groups, _ := decimal.NewFromInt(int64(c.Count(matches))).QuoRem(x, 0)
	if !groups.IsPositive() {
		return decimal.Zero, nil
	}

	// Priced at the scanned item, which may differ from the catalog copy
	// held by the rule.
	item, _ := c.First(matches)

	// ((x-y)/x) * (price*x) per group, simplified so no division is needed.
	perGroup := x.Sub(y).Mul(item.Price)
	return perGroup.Mul(groups).Neg(), nil
}

func xForYParams(rule Rule) (x, y decimal.Decimal, err error) {
	if len(rule.Products) != 1 {
		return x, y, invalidRule(rule, "%s needs exactly one target product, got %d", FuncXForY, len(rule.Products))
	}
	x, okX := rule.Param(0)
	y, okY := rule.Param(1)
	if !okX || !okY {
		return x, y, invalidRule(rule, "%s needs parameters [x, y]", FuncXForY)
	}
	if !x.IsInteger() || x.LessThan(decimal.NewFromInt(1)) {
		return x, y, invalidRule(rule, "%s x must be a positive integer, got %s", FuncXForY, x)
	}
	if !y.IsInteger() || y.IsNegative() || y.GreaterThan(x) {
		return x, y, invalidRule(rule, "%s y must be an integer in [0, x], got %s", FuncXForY, y)
	}
	return x, y, nil
}

// Percentage takes a percentage off every cart item that is one of the rule's
// targets.
//
// Parameters: [percent] with 0 < percent <= 100.
type Percentage struct{}

// Validate checks the percentage parameter and that the rule targets something.
func (Percentage) Validate(rule Rule) error {
	_, err := percentageParam(rule)
	return err
}

// Amount returns the negated percentage of the eligible subtotal, rounded to
// two decimal places.
func (Percentage) Amount(rule Rule, c cart.Cart) (decimal.Decimal, error) {
	pct, err := percentageParam(rule)
	if err != nil {
		return decimal.Zero, err
	}

	eligible := cart.Subtotal(cart.New(c.All(rule.Targets)...))
	return eligible.Mul(pct).Div(hundred).Round(2).Neg(), nil
}

func percentageParam(rule Rule) (decimal.Decimal, error) {
	if len(rule.Products) == 0 {
		return decimal.Zero, invalidRule(rule, "%s needs at least one target product", FuncPercentage)
	}
	pct, ok := rule.Param(0)
	if !ok {
		return pct, invalidRule(rule, "%s needs parameters [percent]", FuncPercentage)
	}
	if !pct.IsPositive() || pct.GreaterThan(hundred) {
		return pct, invalidRule(rule, "%s percent must be in (0, 100], got %s", FuncPercentage, pct)
	}
	return pct, nil
}

// FreeLowest makes the cheapest matching item free once the cart holds at
// least N matching items.
//
// Parameters: [N], optional, defaults to 1.
type FreeLowest struct{}

// Validate checks the optional minimum item count.
func (FreeLowest) Validate(rule Rule) error {
	_, err := freeLowestParam(rule)
	return err
}

// Amount returns the negated price of the cheapest matching item.
func (FreeLowest) Amount(rule Rule, c cart.Cart) (decimal.Decimal, error) {
	minItems, err := freeLowestParam(rule)
	if err != nil {
		return decimal.Zero, err
	}

	matching := c.All(rule.Targets)
	if len(matching) == 0 || int64(len(matching)) < minItems {
		return decimal.Zero, nil
	}
	return lowestPrice(matching).Neg(), nil
}

func freeLowestParam(rule Rule) (int64, error) {
	if len(rule.Products) == 0 {
		return 0, invalidRule(rule, "%s needs at least one target product", FuncFreeLowest)
	}
	n, ok := rule.Param(0)
	if !ok {
		return 1, nil
	}
	if !n.IsInteger() || n.LessThan(decimal.NewFromInt(1)) {
		return 0, invalidRule(rule, "%s minimum item count must be a positive integer, got %s", FuncFreeLowest, n)
	}
	return n.IntPart(), nil
}

// lowestPrice returns the lowest unit price among products. It returns zero
// for an empty slice.
func lowestPrice(products []product.Product) decimal.Decimal {
	if len(products) == 0 {
		return decimal.Zero
	}
	lowest := products[0].Price
	for _, p := range products[1:] {
		if p.Price.LessThan(lowest) {
			lowest = p.Price
		}
	}
	return lowest
}
