package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/tm-acme-shop/acme-shop-settlement-service/internal/config"
	apperrors "github.com/tm-acme-shop/acme-shop-settlement-service/internal/errors"
	"github.com/tm-acme-shop/acme-shop-settlement-service/internal/fees"
	"github.com/tm-acme-shop/acme-shop-settlement-service/internal/logging"
	"github.com/tm-acme-shop/acme-shop-settlement-service/internal/models"
	"github.com/tm-acme-shop/acme-shop-settlement-service/internal/service"
)

// TaxService computes tax and preview rates.
type TaxService interface {
	CalculateTaxes(ctx context.Context, items []models.TaxableItem, address models.ShippingAddress) (*models.TaxCalculationResult, error)
	EstimateTaxRate(ctx context.Context, state string) (*models.TaxEstimate, error)
}

// FeeService computes and audits platform fees.
type FeeService interface {
	CalculateFees(ctx context.Context, orderAmount decimal.Decimal, stateCode string) (*models.FeeCalculationResult, error)
	ValidateActive(ctx context.Context) ([]fees.Issue, error)
}

// SettlementService computes transfer amounts.
type SettlementService interface {
	CalculateStoreTransferAmount(ctx context.Context, storeGrossTotal decimal.Decimal, stateCode string) (*models.TransferResult, error)
	CalculateDeliveryPartnerTransferAmount(ctx context.Context, grossTotal decimal.Decimal, stateCode string) (*models.TransferResult, error)
}

// CheckoutService prices orders.
type CheckoutService interface {
	PriceOrder(ctx context.Context, items []models.TaxableItem, address models.ShippingAddress) (*models.PricedOrder, error)
}

// PayoutService settles payees.
type PayoutService interface {
	PayoutStore(ctx context.Context, storeID string, req *service.PayoutRequest) (*models.Payout, error)
	PayoutDeliveryPartner(ctx context.Context, partnerID string, req *service.PayoutRequest) (*models.Payout, error)
}

// CacheInvalidator drops cached pricing configuration.
type CacheInvalidator interface {
	InvalidateCache(ctx context.Context) error
}

// ReadinessCheck reports whether a dependency is reachable.
type ReadinessCheck func(ctx context.Context) error

// Handlers holds all HTTP handlers for the settlement service.
type Handlers struct {
	taxService        TaxService
	feeService        FeeService
	settlementService SettlementService
	checkoutService   CheckoutService
	payoutService     PayoutService
	cache             CacheInvalidator
	readiness         map[string]ReadinessCheck
	config            *config.Config
	logger            *logging.Logger
}

// Dependencies groups the services the handlers call.
type Dependencies struct {
	Tax        TaxService
	Fees       FeeService
	Settlement SettlementService
	Checkout   CheckoutService
	Payouts    PayoutService
	Cache      CacheInvalidator
	Readiness  map[string]ReadinessCheck
}

// NewHandlers creates a new handlers instance.
func NewHandlers(deps Dependencies, cfg *config.Config) *Handlers {
	return &Handlers{
		taxService:        deps.Tax,
		feeService:        deps.Fees,
		settlementService: deps.Settlement,
		checkoutService:   deps.Checkout,
		payoutService:     deps.Payouts,
		cache:             deps.Cache,
		readiness:         deps.Readiness,
		config:            cfg,
		logger:            logging.New("handlers"),
	}
}

func handleError(c *gin.Context, err error) {
	if errors.Is(err, apperrors.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}

	var validationErr *apperrors.ValidationError
	if errors.As(err, &validationErr) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   validationErr.Message,
			"details": validationErr.Details,
		})
		return
	}

	if errors.Is(err, apperrors.ErrConfigUnavailable) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "pricing configuration unavailable, retry later"})
		return
	}

	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
}
