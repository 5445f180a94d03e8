// Package fees resolves and evaluates platform fee rules.
package fees

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

const calculatorName = "fees"

// FeeSource supplies fee rules active now.
type FeeSource interface {
	GetActiveFees(ctx context.Context) ([]models.PlatformFee, error)
}

// StateResolver maps a state code or name to a jurisdiction id.
type StateResolver interface {
	ResolveStateID(ctx context.Context, input string) (string, bool, error)
}

// Options configures a Calculator.
type Options struct {
	Policy  config.FailurePolicy
	Metrics *metrics.Metrics
	Logger  *logging.Logger
}

// Calculator computes platform fees for an order amount.
type Calculator struct {
	fees     FeeSource
	resolver StateResolver
	policy   config.FailurePolicy
	metrics  *metrics.Metrics
	logger   *logging.Logger
}

// NewCalculator creates a fee calculator.
func NewCalculator(fees FeeSource, resolver StateResolver, opts Options) *Calculator {
	if opts.Policy == "" {
		opts.Policy = config.FailOpen
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewForTest()
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}
	return &Calculator{
		fees:     fees,
		resolver: resolver,
		policy:   opts.Policy,
		metrics:  opts.Metrics,
		logger:   opts.Logger,
	}
}

// CalculateFees evaluates one rule per fee type against orderAmount. stateCode
// may be empty, in which case only global rules apply.
func (c *Calculator) CalculateFees(ctx context.Context, orderAmount decimal.Decimal, stateCode string) (result *models.FeeCalculationResult, err error) {
	start := time.Now()
	defer func() { c.metrics.ObserveCalculation(calculatorName, start, err) }()

	if err := models.ValidateAmount("orderAmount", orderAmount); err != nil {
		return nil, err
	}

	var stateID string
	if stateCode != "" {
		id, ok, err := c.resolver.ResolveStateID(ctx, stateCode)
		if err != nil {
			// Without the state list only global rules can be matched.
			if err := c.degrade("states", err); err != nil {
				return nil, err
			}
		} else if ok {
			stateID = id
		}
	}

	rules, err := c.fees.GetActiveFees(ctx)
	if err != nil {
		if err := c.degrade("platform_fees", err); err != nil {
			return nil, err
		}
		rules = nil
	}

	return c.evaluate(orderAmount, SelectRules(rules, stateID)), nil
}

func (c *Calculator) evaluate(orderAmount decimal.Decimal, selected []models.PlatformFee) *models.FeeCalculationResult {
	res := &models.FeeCalculationResult{
		MarketplaceCommission:     decimal.Zero,
		MarketplaceCommissionRate: decimal.Zero,
		ProcessingFee:             decimal.Zero,
		ProcessingFeeRate:         decimal.Zero,
		DeliveryPlatformFee:       decimal.Zero,
		FeeBreakdown:              make([]models.FeeBreakdownLine, 0, len(selected)),
	}

	for i := range selected {
		rule := &selected[i]
		ev := Evaluate(rule.Calculation, orderAmount)
		if ev.FellBack {
			c.metrics.TierFallbacks.WithLabelValues(rule.FeeType).Inc()
			c.logger.Warn("No fee tier matched order amount, using first tier", logging.Fields{
				"fee_id":       rule.ID,
				"fee_type":     rule.FeeType,
				"order_amount": orderAmount.String(),
			})
		}

		amount := money.Round2(ev.Amount)
		res.FeeBreakdown = append(res.FeeBreakdown, models.FeeBreakdownLine{
			Name:   rule.Name,
			Type:   rule.FeeType,
			Amount: amount,
			Rate:   ev.Rate,
		})

		rate := decimal.Zero
		if ev.Rate != nil {
			rate = *ev.Rate
		}
		switch rule.FeeType {
		case models.FeeTypeMarketplaceCommission:
			res.MarketplaceCommission = amount
			res.MarketplaceCommissionRate = rate
		case models.FeeTypeProcessing:
			res.ProcessingFee = amount
			res.ProcessingFeeRate = rate
		case models.FeeTypeDeliveryPlatform:
			res.DeliveryPlatformFee = amount
		}
	}

	// Unrecognised fee types appear in the breakdown only.
	res.TotalPlatformFees = money.Sum(res.MarketplaceCommission, res.ProcessingFee, res.DeliveryPlatformFee)
	return res
}

// ValidateActive runs ValidateFees over the currently active rules.
func (c *Calculator) ValidateActive(ctx context.Context) ([]Issue, error) {
	rules, err := c.fees.GetActiveFees(ctx)
	if err != nil {
		return nil, apperrors.ConfigUnavailable(err)
	}
	return ValidateFees(rules), nil
}

func (c *Calculator) degrade(source string, cause error) error {
	if c.policy == config.FailClosed {
		return apperrors.ConfigUnavailable(cause)
	}
	c.metrics.Degradations.WithLabelValues(calculatorName).Inc()
	c.logger.Warn("Pricing configuration unavailable, degrading fees", logging.Fields{
		"source": source,
		"error":  cause.Error(),
	})
	return nil
}
