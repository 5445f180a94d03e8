// Package tax computes order tax from configured state rates.
package tax

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tm-acme-shop/acme-shop-settlement-service/internal/config"
	apperrors "github.com/tm-acme-shop/acme-shop-settlement-service/internal/errors"
	"github.com/tm-acme-shop/acme-shop-settlement-service/internal/logging"
	"github.com/tm-acme-shop/acme-shop-settlement-service/internal/metrics"
	"github.com/tm-acme-shop/acme-shop-settlement-service/internal/models"
	"github.com/tm-acme-shop/acme-shop-settlement-service/internal/money"
)

const calculatorName = "tax"

// DefaultEstimatedRate is the preview rate used when a state has no sales rate.
var DefaultEstimatedRate = decimal.RequireFromString("0.08")

// RateSource supplies active tax rates.
type RateSource interface {
	GetActiveTaxRates(ctx context.Context) ([]models.TaxRate, error)
}

// StateResolver maps a state code or name to a jurisdiction id.
type StateResolver interface {
	ResolveStateID(ctx context.Context, input string) (string, bool, error)
}

// Options configures a Calculator.
type Options struct {
	Policy        config.FailurePolicy
	EstimatedRate decimal.Decimal
	Metrics       *metrics.Metrics
	Logger        *logging.Logger
}

// Calculator applies configured tax rates to order lines.
type Calculator struct {
	rates         RateSource
	resolver      StateResolver
	policy        config.FailurePolicy
	estimatedRate decimal.Decimal
	metrics       *metrics.Metrics
	logger        *logging.Logger
}

// NewCalculator creates a tax calculator.
func NewCalculator(rates RateSource, resolver StateResolver, opts Options) *Calculator {
	if opts.Policy == "" {
		opts.Policy = config.FailOpen
	}
	if opts.EstimatedRate.IsZero() {
		opts.EstimatedRate = DefaultEstimatedRate
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewForTest()
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}
	return &Calculator{
		rates:         rates,
		resolver:      resolver,
		policy:        opts.Policy,
		estimatedRate: opts.EstimatedRate,
		metrics:       opts.Metrics,
		logger:        opts.Logger,
	}
}

// CalculateTaxes taxes items shipped to address. An address whose state is not
// recognised yields a zero-tax result.
func (c *Calculator) CalculateTaxes(ctx context.Context, items []models.TaxableItem, address models.ShippingAddress) (result *models.TaxCalculationResult, err error) {
	start := time.Now()
	defer func() { c.metrics.ObserveCalculation(calculatorName, start, err) }()

	if err := models.ValidateItems(items); err != nil {
		return nil, err
	}

	// Unrounded; only emitted amounts derived from it are rounded.
	subtotal := decimal.Zero
	for _, item := range items {
		subtotal = subtotal.Add(item.LineTotal())
	}

	stateID, ok, err := c.resolver.ResolveStateID(ctx, address.State)
	if err != nil {
		if err := c.degrade("states", err); err != nil {
			return nil, err
		}
		return zeroTax(subtotal), nil
	}
	if !ok {
		return zeroTax(subtotal), nil
	}

	rates, err := c.rates.GetActiveTaxRates(ctx)
	if err != nil {
		if err := c.degrade("tax_rates", err); err != nil {
			return nil, err
		}
		return zeroTax(subtotal), nil
	}

	breakdown := make([]models.TaxBreakdownLine, 0)
	total := decimal.Zero
	for i := range rates {
		rate := &rates[i]
		if !rate.IsActive || !rate.InJurisdiction(stateID) {
			continue
		}

		taxable := decimal.Zero
		for _, item := range items {
			if rate.AppliesToItem(item) {
				taxable = taxable.Add(item.LineTotal())
			}
		}
		if taxable.IsZero() {
			continue
		}

		// Rounded per line so the breakdown sums to the total exactly.
		amount := money.Round2(taxable.Mul(rate.Rate))
		breakdown = append(breakdown, models.TaxBreakdownLine{
			Name:   rate.Name,
			Rate:   rate.Rate,
			Amount: amount,
			Type:   rate.TaxType,
		})
		total = total.Add(amount)
	}

	return &models.TaxCalculationResult{
		Subtotal:     subtotal,
		TaxAmount:    total,
		TaxRate:      money.Ratio(total, subtotal),
		TaxBreakdown: breakdown,
		TotalWithTax: money.Round2(subtotal.Add(total)),
	}, nil
}

// EstimateTaxRate returns the combined general sales rate for a state, for
// pre-checkout previews. States without a configured sales rate, and input
// that names no known state, get the default estimate.
func (c *Calculator) EstimateTaxRate(ctx context.Context, state string) (*models.TaxEstimate, error) {
	fallback := &models.TaxEstimate{State: state, Rate: c.estimatedRate}

	stateID, ok, err := c.resolver.ResolveStateID(ctx, state)
	if err != nil {
		if err := c.degrade("states", err); err != nil {
			return nil, err
		}
		return fallback, nil
	}
	if !ok {
		return fallback, nil
	}

	rates, err := c.rates.GetActiveTaxRates(ctx)
	if err != nil {
		if err := c.degrade("tax_rates", err); err != nil {
			return nil, err
		}
		return fallback, nil
	}

	sum := decimal.Zero
	found := false
	for i := range rates {
		r := &rates[i]
		if r.IsActive && r.InJurisdiction(stateID) && r.TaxType == models.TaxTypeSales && r.AppliesTo == models.AppliesToAll {
			sum = sum.Add(r.Rate)
			found = true
		}
	}
	if !found {
		return fallback, nil
	}
	return &models.TaxEstimate{State: state, Rate: sum, Configured: true}, nil
}

// degrade applies the failure policy to a configuration load error. A nil
// return means the caller continues with no configuration.
func (c *Calculator) degrade(source string, cause error) error {
	if c.policy == config.FailClosed {
		return apperrors.ConfigUnavailable(cause)
	}
	c.metrics.Degradations.WithLabelValues(calculatorName).Inc()
	c.logger.Warn("Pricing configuration unavailable, charging no tax", logging.Fields{
		"source": source,
		"error":  cause.Error(),
	})
	return nil
}

func zeroTax(subtotal decimal.Decimal) *models.TaxCalculationResult {
	return &models.TaxCalculationResult{
		Subtotal:     subtotal,
		TaxAmount:    decimal.Zero,
		TaxRate:      decimal.Zero,
		TaxBreakdown: []models.TaxBreakdownLine{},
		TotalWithTax: money.Round2(subtotal),
	}
}
