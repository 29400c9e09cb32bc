package discount

import (
	"slices"

	"github.com/go-faster/errors"
)

// Policy selects how conflicting candidates are resolved.
type Policy string

const (
	// PolicyGreedy walks candidates from the largest discount down and keeps
	// each one that conflicts with nothing already kept.
	PolicyGreedy Policy = "greedy"
	// PolicyLegacy reproduces the historical resolution pass, which only
	// notices a conflict when the rule declaring it is worth less than the
	// rule it names. Kept for catalogs priced against that behaviour.
	PolicyLegacy Policy = "legacy"
)

// ParsePolicy converts a configuration string into a Policy. An empty string
// selects PolicyGreedy.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case "", PolicyGreedy:
		return PolicyGreedy, nil
	case PolicyLegacy:
		return PolicyLegacy, nil
	default:
		return "", errors.Errorf("unknown conflict policy %q", s)
	}
}

// Resolver picks the candidates to apply out of a quantified set.
type Resolver func(candidates []Candidate) []Candidate

func (p Policy) resolver() Resolver {
	if p == PolicyLegacy {
		return ResolveLegacy
	}
	return ResolveGreedy
}

// rankByValue returns a copy of candidates ordered best-first: most negative
// amount first, ties kept in catalog order.
func rankByValue(candidates []Candidate) []Candidate {
	ranked := slices.Clone(candidates)
	slices.SortStableFunc(ranked, func(a, b Candidate) int {
		return a.Amount.Cmp(b.Amount)
	})
	return ranked
}

// ResolveGreedy returns the candidates to apply, best-first. A candidate
// survives only if it conflicts with no higher-ranked survivor, so in any
// conflicting pair the larger discount wins and a rule excluding ANY is never
// applied next to another rule.
//
// Chains are resolved greedily: with A > B > C where A excludes B and B
// excludes C, both A and C are applied. No search for a globally better
// subset is attempted.
func ResolveGreedy(candidates []Candidate) []Candidate {
	ranked := rankByValue(candidates)

	kept := make([]Candidate, 0, len(ranked))
	for _, c := range ranked {
		if !conflictsWithAny(c, kept) {
			kept = append(kept, c)
		}
	}
	return kept
}

func conflictsWithAny(c Candidate, kept []Candidate) bool {
	for _, k := range kept {
		if c.Rule.ConflictsWith(k.Rule) {
			return true
		}
	}
	return false
}

// ResolveLegacy orders candidates least valuable first and, for each rule
// with an exclusion, checks it against the rules ranked after it (the more
// valuable ones). Every hit drops whichever candidate is currently lowest in
// the working set. The survivors are returned best-first.
//
// Exclusions are therefore one-directional here: a valuable rule that
// excludes a cheaper one is applied alongside it.
func ResolveLegacy(candidates []Candidate) []Candidate {
	ordered := slices.Clone(candidates)
	slices.SortStableFunc(ordered, func(a, b Candidate) int {
		return b.Amount.Cmp(a.Amount)
	})

	dropped := 0
	for i, c := range ordered {
		ex := c.Rule.Exclusion
		if ex.IsEmpty() {
			continue
		}
		for _, higher := range ordered[i+1:] {
			if ex.Excludes(higher.Rule.ID) {
				dropped++
			}
		}
	}
	dropped = min(dropped, len(ordered))

	survivors := slices.Clone(ordered[dropped:])
	slices.Reverse(survivors)
	return survivors
}
