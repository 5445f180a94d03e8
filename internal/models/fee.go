package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// FeeScope is the breadth of a platform fee rule.
type FeeScope string

const (
	FeeScopeGlobal FeeScope = "global"
	FeeScopeState  FeeScope = "state"
)

// Fee types with a named slot in FeeCalculationResult. Other types are allowed
// and appear only in the breakdown.
const (
	FeeTypeMarketplaceCommission = "marketplace_commission"
	FeeTypeProcessing            = "processing_fee"
	FeeTypeDeliveryPlatform      = "delivery_platform_fee"
)

// CalculationType names a Calculation variant.
type CalculationType string

const (
	CalculationPercentage CalculationType = "percentage"
	CalculationFixed      CalculationType = "fixed"
	CalculationTiered     CalculationType = "tiered"
)

// Calculation is how a fee rule turns an order amount into a fee. The set of
// implementations is closed: Percentage, Fixed and Tiered.
type Calculation interface {
	Type() CalculationType
	isCalculation()
}

// Percentage charges Rate times the order amount.
type Percentage struct {
	Rate decimal.Decimal `json:"rate"`
}

// Fixed charges a flat Amount.
type Fixed struct {
	Amount decimal.Decimal `json:"amount"`
}

// Tiered charges the rate of the tier the order amount falls in.
type Tiered struct {
	Tiers []FeeTier `json:"tiers"`
}

func (Percentage) Type() CalculationType { return CalculationPercentage }
func (Fixed) Type() CalculationType      { return CalculationFixed }
func (Tiered) Type() CalculationType     { return CalculationTiered }

func (Percentage) isCalculation() {}
func (Fixed) isCalculation()      {}
func (Tiered) isCalculation()     {}

// FeeTier is a contiguous amount range. A nil Max is unbounded.
type FeeTier struct {
	Min  decimal.Decimal  `json:"min"`
	Max  *decimal.Decimal `json:"max"`
	Rate decimal.Decimal  `json:"rate"`
}

// Contains reports whether amount lies in [Min, Max].
func (t FeeTier) Contains(amount decimal.Decimal) bool {
	if amount.LessThan(t.Min) {
		return false
	}
	return t.Max == nil || amount.LessThanOrEqual(*t.Max)
}

// NewCalculation builds the variant named by calcType from a stored row.
func NewCalculation(calcType CalculationType, value decimal.Decimal, tiers []FeeTier) (Calculation, error) {
	switch calcType {
	case CalculationPercentage:
		if len(tiers) > 0 {
			return nil, fmt.Errorf("percentage fee must not carry tiers")
		}
		return Percentage{Rate: value}, nil
	case CalculationFixed:
		if len(tiers) > 0 {
			return nil, fmt.Errorf("fixed fee must not carry tiers")
		}
		return Fixed{Amount: value}, nil
	case CalculationTiered:
		if len(tiers) == 0 {
			return nil, fmt.Errorf("tiered fee requires at least one tier")
		}
		return Tiered{Tiers: tiers}, nil
	default:
		return nil, fmt.Errorf("unknown calculation type %q", calcType)
	}
}

// PlatformFee is one configured fee rule.
type PlatformFee struct {
	ID             string      `json:"id"`
	Scope          FeeScope    `json:"scope"`
	JurisdictionID *string     `json:"jurisdictionRef,omitempty"`
	Name           string      `json:"name"`
	FeeType        string      `json:"feeType"`
	Calculation    Calculation `json:"-"`
	IsActive       bool        `json:"isActive"`
	EffectiveDate  time.Time   `json:"effectiveDate"`
	EndDate        *time.Time  `json:"endDate,omitempty"`
	CreatedAt      time.Time   `json:"createdAt"`
}

// MarshalJSON flattens the calculation into calculationType plus its fields.
func (f PlatformFee) MarshalJSON() ([]byte, error) {
	type alias PlatformFee
	out := struct {
		alias
		CalculationType CalculationType `json:"calculationType,omitempty"`
		Calculation     Calculation     `json:"calculation,omitempty"`
	}{alias: alias(f)}
	if f.Calculation != nil {
		out.CalculationType = f.Calculation.Type()
		out.Calculation = f.Calculation
	}
	return json.Marshal(out)
}

// ActiveAt reports whether the rule is active and within its effective window.
func (f *PlatformFee) ActiveAt(now time.Time) bool {
	if !f.IsActive || f.EffectiveDate.After(now) {
		return false
	}
	return f.EndDate == nil || !f.EndDate.Before(now)
}

// AppliesIn reports whether the rule may be used for an order in stateID.
// Global rules apply everywhere; state rules only to their own state.
func (f *PlatformFee) AppliesIn(stateID string) bool {
	switch f.Scope {
	case FeeScopeGlobal:
		return true
	case FeeScopeState:
		return stateID != "" && f.JurisdictionID != nil && *f.JurisdictionID == stateID
	}
	return false
}

// FeeBreakdownLine is one evaluated fee rule.
type FeeBreakdownLine struct {
	Name   string           `json:"name"`
	Type   string           `json:"type"`
	Amount decimal.Decimal  `json:"amount"`
	Rate   *decimal.Decimal `json:"rate,omitempty"`
}

// FeeCalculationResult is the outcome of fee evaluation for an order amount.
type FeeCalculationResult struct {
	MarketplaceCommission     decimal.Decimal    `json:"marketplaceCommission"`
	MarketplaceCommissionRate decimal.Decimal    `json:"marketplaceCommissionRate"`
	ProcessingFee             decimal.Decimal    `json:"processingFee"`
	ProcessingFeeRate         decimal.Decimal    `json:"processingFeeRate"`
	DeliveryPlatformFee       decimal.Decimal    `json:"deliveryPlatformFee"`
	TotalPlatformFees         decimal.Decimal    `json:"totalPlatformFees"`
	FeeBreakdown              []FeeBreakdownLine `json:"feeBreakdown"`
}
