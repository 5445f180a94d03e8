// Package settlement derives the net amounts owed to stores and delivery
// partners after platform fees.
package settlement

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/tm-acme-shop/acme-shop-settlement-service/internal/models"
	"github.com/tm-acme-shop/acme-shop-settlement-service/internal/money"
)

// FeeCalculator evaluates platform fees for an amount.
type FeeCalculator interface {
	CalculateFees(ctx context.Context, orderAmount decimal.Decimal, stateCode string) (*models.FeeCalculationResult, error)
}

// Calculator computes transfer amounts.
type Calculator struct {
	fees FeeCalculator
}

// NewCalculator creates a settlement calculator.
func NewCalculator(fees FeeCalculator) *Calculator {
	return &Calculator{fees: fees}
}

// CalculateStoreTransferAmount deducts the marketplace commission from a
// store's gross total. Processing and delivery-platform fees are not taken
// from the store's share.
func (c *Calculator) CalculateStoreTransferAmount(ctx context.Context, storeGrossTotal decimal.Decimal, stateCode string) (*models.TransferResult, error) {
	if err := models.ValidateAmount("storeGrossTotal", storeGrossTotal); err != nil {
		return nil, err
	}

	res, err := c.fees.CalculateFees(ctx, storeGrossTotal, stateCode)
	if err != nil {
		return nil, err
	}
	return transfer(storeGrossTotal, res.MarketplaceCommission, feeRate(res, models.FeeTypeMarketplaceCommission, storeGrossTotal)), nil
}

// CalculateDeliveryPartnerTransferAmount deducts the delivery-platform fee
// from a delivery partner's gross earnings.
func (c *Calculator) CalculateDeliveryPartnerTransferAmount(ctx context.Context, grossTotal decimal.Decimal, stateCode string) (*models.TransferResult, error) {
	if err := models.ValidateAmount("grossTotal", grossTotal); err != nil {
		return nil, err
	}

	res, err := c.fees.CalculateFees(ctx, grossTotal, stateCode)
	if err != nil {
		return nil, err
	}
	return transfer(grossTotal, res.DeliveryPlatformFee, feeRate(res, models.FeeTypeDeliveryPlatform, grossTotal)), nil
}

func transfer(gross, fee decimal.Decimal, rate decimal.Decimal) *models.TransferResult {
	gross = money.Round2(gross)
	return &models.TransferResult{
		OriginalAmount: gross,
		PlatformFee:    fee,
		TransferAmount: money.Round2(gross.Sub(fee)),
		FeeRate:        rate,
	}
}

// feeRate is the rate the fee rule reported, or the effective rate for flat
// fees.
func feeRate(res *models.FeeCalculationResult, feeType string, gross decimal.Decimal) decimal.Decimal {
	for _, line := range res.FeeBreakdown {
		if line.Type != feeType {
			continue
		}
		if line.Rate != nil {
			return *line.Rate
		}
		return money.Ratio(line.Amount, gross)
	}
	return decimal.Zero
}
