package models

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// TaxScope is the geographic breadth of a tax rate.
type TaxScope string

const (
	TaxScopeState  TaxScope = "state"
	TaxScopeCounty TaxScope = "county"
	TaxScopeCity   TaxScope = "city"
)

// AppliesTo selects which line items a tax rate covers.
type AppliesTo string

const (
	AppliesToAll                AppliesTo = "all"
	AppliesToAlcohol            AppliesTo = "alcohol"
	AppliesToSpecificCategories AppliesTo = "specific_categories"
)

// TaxTypeSales is the tax type used for state-level rate estimates.
const TaxTypeSales = "sales"

// TaxRate is one configured tax rate row.
type TaxRate struct {
	ID             string          `json:"id"`
	Scope          TaxScope        `json:"scope"`
	JurisdictionID *string         `json:"jurisdictionRef,omitempty"`
	Name           string          `json:"name"`
	Rate           decimal.Decimal `json:"rate"`
	TaxType        string          `json:"taxType"`
	AppliesTo      AppliesTo       `json:"appliesTo"`
	Categories     []string        `json:"categories,omitempty"`
	IsActive       bool            `json:"isActive"`
}

// Validate checks the row-level invariants of a tax rate.
func (r *TaxRate) Validate() error {
	if r.Rate.IsNegative() {
		return fmt.Errorf("tax rate %s: rate must not be negative", r.ID)
	}
	switch r.Scope {
	case TaxScopeState, TaxScopeCounty, TaxScopeCity:
	default:
		return fmt.Errorf("tax rate %s: unknown scope %q", r.ID, r.Scope)
	}
	switch r.AppliesTo {
	case AppliesToAll, AppliesToAlcohol:
		if len(r.Categories) > 0 {
			return fmt.Errorf("tax rate %s: categories set but appliesTo is %s", r.ID, r.AppliesTo)
		}
	case AppliesToSpecificCategories:
		if len(r.Categories) == 0 {
			return fmt.Errorf("tax rate %s: specific_categories requires categories", r.ID)
		}
	default:
		return fmt.Errorf("tax rate %s: unknown appliesTo %q", r.ID, r.AppliesTo)
	}
	return nil
}

// AppliesToItem reports whether the rate covers item.
func (r *TaxRate) AppliesToItem(item TaxableItem) bool {
	switch r.AppliesTo {
	case AppliesToAll:
		return true
	case AppliesToAlcohol:
		return item.IsAlcohol
	case AppliesToSpecificCategories:
		if item.Category == "" {
			return false
		}
		for _, c := range r.Categories {
			if c == item.Category {
				return true
			}
		}
	}
	return false
}

// InJurisdiction reports whether the rate is keyed to the given state.
// County and city rates are never matched; addresses resolve to states only.
func (r *TaxRate) InJurisdiction(stateID string) bool {
	return r.Scope == TaxScopeState && r.JurisdictionID != nil && *r.JurisdictionID == stateID
}

// ShippingAddress is the destination an order is taxed against.
type ShippingAddress struct {
	Street  string `json:"street,omitempty"`
	City    string `json:"city"`
	State   string `json:"state"`
	ZipCode string `json:"zipCode"`
	Country string `json:"country"`
}

// TaxableItem is one order line.
type TaxableItem struct {
	ProductID string          `json:"productId"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
	Category  string          `json:"category,omitempty"`
	IsAlcohol bool            `json:"isAlcohol,omitempty"`
}

// LineTotal is price times quantity, unrounded.
func (i TaxableItem) LineTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// TaxBreakdownLine is the tax contributed by one rate.
type TaxBreakdownLine struct {
	Name   string          `json:"name"`
	Rate   decimal.Decimal `json:"rate"`
	Amount decimal.Decimal `json:"amount"`
	Type   string          `json:"type"`
}

// TaxCalculationResult is the outcome of taxing an order.
type TaxCalculationResult struct {
	Subtotal     decimal.Decimal    `json:"subtotal"`
	TaxAmount    decimal.Decimal    `json:"taxAmount"`
	TaxRate      decimal.Decimal    `json:"taxRate"`
	TaxBreakdown []TaxBreakdownLine `json:"taxBreakdown"`
	TotalWithTax decimal.Decimal    `json:"totalWithTax"`
}

// TaxEstimate is the pre-checkout preview rate for a state.
type TaxEstimate struct {
	State      string          `json:"state"`
	Rate       decimal.Decimal `json:"rate"`
	Configured bool            `json:"configured"`
}
