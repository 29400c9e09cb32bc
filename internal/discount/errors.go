package discount

import (
	"fmt"

	"github.com/go-faster/errors"
)

var (
	// ErrUnknownStrategy is returned when a rule names a strategy that is not
	// registered. It indicates a catalog and engine mismatch, never a normal
	// "no match" outcome.
	ErrUnknownStrategy = errors.New("unknown discount strategy")
	// ErrInvalidRule is returned when a rule's shape does not fit its strategy.
	ErrInvalidRule = errors.New("invalid discount rule")
	// ErrDuplicateRule is returned when two catalog rules share an ID.
	ErrDuplicateRule = errors.New("duplicate discount rule id")
)

// UnknownStrategyError reports a rule whose Func is not registered.
type UnknownStrategyError struct {
	RuleID string
	Func   string
}

func (e *UnknownStrategyError) Error() string {
	return fmt.Sprintf("rule %s: unknown discount strategy %q", e.RuleID, e.Func)
}

func (e *UnknownStrategyError) Unwrap() error { return ErrUnknownStrategy }

// InvalidRuleError reports a rule rejected by its strategy.
type InvalidRuleError struct {
	RuleID string
	Reason string
}

func (e *InvalidRuleError) Error() string {
	return fmt.Sprintf("rule %s: %s", e.RuleID, e.Reason)
}

func (e *InvalidRuleError) Unwrap() error { return ErrInvalidRule }

func invalidRule(rule Rule, format string, args ...any) error {
	return &InvalidRuleError{RuleID: rule.ID, Reason: fmt.Sprintf(format, args...)}
}
