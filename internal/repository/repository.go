package repository

import (
	"context"

	"github.com/tm-acme-shop/acme-shop-settlement-service/internal/models"
)

// ConfigStore reads pricing configuration from the backing store. It is the
// only component of the settlement core that performs I/O.
type ConfigStore interface {
	// ListActiveTaxRates returns tax rates with is_active = true.
	ListActiveTaxRates(ctx context.Context) ([]models.TaxRate, error)

	// ListActiveFees returns active fee rules that have not ended. Rules whose
	// effective date is still in the future are included so that a cached
	// snapshot picks them up when they start.
	ListActiveFees(ctx context.Context) ([]models.PlatformFee, error)

	// ListStates returns every known state jurisdiction.
	ListStates(ctx context.Context) ([]models.State, error)
}

// Broadcaster tells other service instances to drop their cached configuration.
type Broadcaster interface {
	PublishInvalidation(ctx context.Context) error
}
