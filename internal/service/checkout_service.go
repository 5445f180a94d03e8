package service

import (
	"context"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/tm-acme-shop/acme-shop-settlement-service/internal/logging"
	"github.com/tm-acme-shop/acme-shop-settlement-service/internal/models"
	"github.com/tm-acme-shop/acme-shop-settlement-service/internal/money"
)

// TaxCalculator computes order tax.
type TaxCalculator interface {
	CalculateTaxes(ctx context.Context, items []models.TaxableItem, address models.ShippingAddress) (*models.TaxCalculationResult, error)
}

// FeeCalculator computes platform fees for an amount.
type FeeCalculator interface {
	CalculateFees(ctx context.Context, orderAmount decimal.Decimal, stateCode string) (*models.FeeCalculationResult, error)
}

// CheckoutService prices orders at checkout.
type CheckoutService struct {
	tax    TaxCalculator
	fees   FeeCalculator
	logger *logging.Logger
}

// NewCheckoutService creates a new checkout service.
func NewCheckoutService(tax TaxCalculator, fees FeeCalculator, logger *logging.Logger) *CheckoutService {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &CheckoutService{
		tax:    tax,
		fees:   fees,
		logger: logger,
	}
}

// PriceOrder computes tax and platform fees for the same order concurrently
// and combines them into the customer total. Commission is not charged to the
// customer; processing and delivery-platform fees are.
func (s *CheckoutService) PriceOrder(ctx context.Context, items []models.TaxableItem, address models.ShippingAddress) (*models.PricedOrder, error) {
	if err := ValidatePriceOrderRequest(items, address); err != nil {
		return nil, err
	}

	subtotal := decimal.Zero
	for _, item := range items {
		subtotal = subtotal.Add(item.LineTotal())
	}
	subtotal = money.Round2(subtotal)

	var (
		taxResult *models.TaxCalculationResult
		feeResult *models.FeeCalculationResult
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		taxResult, err = s.tax.CalculateTaxes(gctx, items, address)
		return err
	})
	g.Go(func() error {
		var err error
		feeResult, err = s.fees.CalculateFees(gctx, subtotal, address.State)
		return err
	})
	if err := g.Wait(); err != nil {
		s.logger.Error("Failed to price order", logging.Fields{
			"state": address.State,
			"items": len(items),
			"error": err.Error(),
		})
		return nil, err
	}

	customerFees := money.Sum(feeResult.ProcessingFee, feeResult.DeliveryPlatformFee)
	priced := &models.PricedOrder{
		Tax:          taxResult,
		Fees:         feeResult,
		CustomerFees: customerFees,
		Total:        money.Round2(taxResult.TotalWithTax.Add(customerFees)),
	}

	s.logger.Debug("Order priced", logging.Fields{
		"subtotal": subtotal.String(),
		"tax":      taxResult.TaxAmount.String(),
		"fees":     customerFees.String(),
		"total":    priced.Total.String(),
	})

	return priced, nil
}
