package service

import (
	"strings"

	apperrors "github.com/tm-acme-shop/acme-shop-settlement-service/internal/errors"
	"github.com/tm-acme-shop/acme-shop-settlement-service/internal/models"
)

// ValidatePriceOrderRequest validates a checkout pricing request.
func ValidatePriceOrderRequest(items []models.TaxableItem, address models.ShippingAddress) error {
	if len(items) == 0 {
		return apperrors.NewValidationError("items", "at least one item is required")
	}

	if err := models.ValidateItems(items); err != nil {
		return err
	}

	return validateAddress(&address, "address")
}

func validateAddress(addr *models.ShippingAddress, field string) error {
	// State is resolved, not validated; an unknown state is taxed at zero.
	if addr.Country != "" && len(strings.TrimSpace(addr.Country)) != 2 {
		return apperrors.NewValidationError(field+".country", "country must be a 2-letter ISO code")
	}

	return nil
}

// ValidatePayoutRequest validates a payout request.
func ValidatePayoutRequest(payeeID string, req *PayoutRequest) error {
	if strings.TrimSpace(payeeID) == "" {
		return apperrors.NewValidationError("payee_id", "payee ID is required")
	}

	if req.GrossTotal.IsNegative() {
		return apperrors.NewValidationError("grossTotal", "gross total cannot be negative")
	}

	// Retries after a timeout must reuse the key, so the server never invents one.
	if strings.TrimSpace(req.IdempotencyKey) == "" {
		return apperrors.NewValidationError("idempotencyKey", "idempotency key is required")
	}

	if len(req.IdempotencyKey) > 255 {
		return apperrors.NewValidationError("idempotencyKey", "idempotency key too long (max 255 characters)")
	}

	return nil
}
