package fees

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/tm-acme-shop/acme-shop-settlement-service/internal/models"
)

// namedOrder is the breakdown position of fee types with a result field.
var namedOrder = map[string]int{
	models.FeeTypeMarketplaceCommission: 0,
	models.FeeTypeProcessing:            1,
	models.FeeTypeDeliveryPlatform:      2,
}

// SelectRules picks at most one rule per fee type for an order in stateID.
// Candidates are global rules and state rules for stateID. A state rule beats
// a global one; among equals the later effective date wins, then the later
// creation time, then the lexically greater id. The result is ordered by fee
// type, named types first.
func SelectRules(rules []models.PlatformFee, stateID string) []models.PlatformFee {
	byType := make(map[string][]models.PlatformFee)
	for _, r := range rules {
		if !r.AppliesIn(stateID) {
			continue
		}
		byType[r.FeeType] = append(byType[r.FeeType], r)
	}

	selected := make([]models.PlatformFee, 0, len(byType))
	for _, candidates := range byType {
		sort.SliceStable(candidates, func(i, j int) bool {
			return precedes(&candidates[i], &candidates[j])
		})
		selected = append(selected, candidates[0])
	}

	sort.Slice(selected, func(i, j int) bool {
		return feeTypeLess(selected[i].FeeType, selected[j].FeeType)
	})
	return selected
}

// precedes reports whether a takes priority over b for the same fee type.
func precedes(a, b *models.PlatformFee) bool {
	if sa, sb := specificity(a.Scope), specificity(b.Scope); sa != sb {
		return sa > sb
	}
	if !a.EffectiveDate.Equal(b.EffectiveDate) {
		return a.EffectiveDate.After(b.EffectiveDate)
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	// Ids are opaque; the lexical comparison only makes the order total.
	return a.ID > b.ID
}

func specificity(scope models.FeeScope) int {
	if scope == models.FeeScopeState {
		return 1
	}
	return 0
}

func feeTypeLess(a, b string) bool {
	ia, aNamed := namedOrder[a]
	ib, bNamed := namedOrder[b]
	switch {
	case aNamed && bNamed:
		return ia < ib
	case aNamed != bNamed:
		return aNamed
	default:
		return a < b
	}
}

// Evaluation is one rule applied to an order amount.
type Evaluation struct {
	Amount decimal.Decimal
	// Rate is nil for fixed fees.
	Rate *decimal.Decimal
	// FellBack is set when no tier contained the amount and the first tier
	// was used.
	FellBack bool
}

// Evaluate applies calc to amount. The returned amount is unrounded.
func Evaluate(calc models.Calculation, amount decimal.Decimal) Evaluation {
	switch c := calc.(type) {
	case models.Percentage:
		rate := c.Rate
		return Evaluation{Amount: amount.Mul(rate), Rate: &rate}
	case models.Fixed:
		return Evaluation{Amount: c.Amount}
	case models.Tiered:
		tier, ok := findTier(c.Tiers, amount)
		rate := tier.Rate
		return Evaluation{Amount: amount.Mul(rate), Rate: &rate, FellBack: !ok}
	}
	return Evaluation{Amount: decimal.Zero}
}

func findTier(tiers []models.FeeTier, amount decimal.Decimal) (models.FeeTier, bool) {
	for _, t := range tiers {
		if t.Contains(amount) {
			return t, true
		}
	}
	if len(tiers) == 0 {
		return models.FeeTier{}, false
	}
	return tiers[0], false
}
