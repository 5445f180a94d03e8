package models

import (
	"fmt"

	"github.com/shopspring/decimal"

	apperrors "github.com/tm-acme-shop/acme-shop-settlement-service/internal/errors"
)

// ValidateItems rejects negative prices and non-positive quantities.
func ValidateItems(items []TaxableItem) error {
	for i, item := range items {
		if item.Price.IsNegative() {
			return apperrors.NewValidationError(fmt.Sprintf("items[%d].price", i), "price cannot be negative")
		}
		if item.Quantity <= 0 {
			return apperrors.NewValidationError(fmt.Sprintf("items[%d].quantity", i), "quantity must be positive")
		}
	}
	return nil
}

// ValidateAmount rejects negative monetary input.
func ValidateAmount(field string, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return apperrors.NewValidationError(field, "amount cannot be negative")
	}
	return nil
}
