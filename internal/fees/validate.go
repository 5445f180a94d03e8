package fees

import (
	"fmt"
	"sort"

	"github.com/tm-acme-shop/acme-shop-settlement-service/internal/models"
)

// Issue is a configuration problem found in a fee rule.
type Issue struct {
	FeeID   string `json:"feeId"`
	FeeType string `json:"feeType"`
	Problem string `json:"problem"`
}

// ValidateFees checks rules for schedule gaps and ambiguities that the
// calculation path tolerates silently. It does not modify rules.
func ValidateFees(rules []models.PlatformFee) []Issue {
	issues := make([]Issue, 0)
	add := func(r *models.PlatformFee, format string, args ...interface{}) {
		issues = append(issues, Issue{FeeID: r.ID, FeeType: r.FeeType, Problem: fmt.Sprintf(format, args...)})
	}

	for i := range rules {
		r := &rules[i]
		switch calc := r.Calculation.(type) {
		case models.Percentage:
			if calc.Rate.IsNegative() {
				add(r, "negative rate %s", calc.Rate)
			}
		case models.Fixed:
			if calc.Amount.IsNegative() {
				add(r, "negative amount %s", calc.Amount)
			}
		case models.Tiered:
			validateTiers(calc.Tiers, func(format string, args ...interface{}) { add(r, format, args...) })
		case nil:
			add(r, "missing calculation")
		}
	}

	// Rules competing for the same slot: same fee type and scope, and for
	// state rules the same jurisdiction.
	groups := make(map[string][]*models.PlatformFee)
	var keys []string
	for i := range rules {
		r := &rules[i]
		key := string(r.Scope) + "|" + r.FeeType
		if r.Scope == models.FeeScopeState && r.JurisdictionID != nil {
			key += "|" + *r.JurisdictionID
		}
		if _, ok := groups[key]; !ok {
			keys = append(keys, key)
		}
		groups[key] = append(groups[key], r)
	}
	sort.Strings(keys)
	for _, key := range keys {
		group := groups[key]
		if len(group) < 2 {
			continue
		}
		winner := group[0]
		for _, r := range group[1:] {
			if precedes(r, winner) {
				winner = r
			}
		}
		for _, r := range group {
			if r != winner {
				add(r, "duplicate %s rule for %s is shadowed by %s", r.Scope, r.FeeType, winner.ID)
			}
		}
	}

	return issues
}

func validateTiers(tiers []models.FeeTier, report func(format string, args ...interface{})) {
	if len(tiers) == 0 {
		report("tiered fee has no tiers")
		return
	}
	if tiers[0].Min.IsPositive() {
		report("first tier starts at %s, amounts below it fall back to the first tier", tiers[0].Min)
	}

	for i, t := range tiers {
		if t.Rate.IsNegative() {
			report("tier %d has negative rate %s", i, t.Rate)
		}
		if t.Max != nil && t.Max.LessThan(t.Min) {
			report("tier %d max %s is below min %s", i, *t.Max, t.Min)
		}
		if i == 0 {
			continue
		}

		prev := tiers[i-1]
		if t.Min.LessThan(prev.Min) {
			report("tier %d is not sorted by min", i)
			continue
		}
		if prev.Max == nil {
			report("tier %d is unbounded but is not the last tier", i-1)
			continue
		}
		switch {
		case t.Min.GreaterThan(*prev.Max):
			report("gap between tier %d max %s and tier %d min %s", i-1, *prev.Max, i, t.Min)
		case t.Min.LessThan(*prev.Max):
			report("tier %d overlaps tier %d", i, i-1)
		}
	}

	if last := tiers[len(tiers)-1]; last.Max != nil {
		report("last tier is bounded at %s", *last.Max)
	}
}
