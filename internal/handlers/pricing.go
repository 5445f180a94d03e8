package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	apperrors "github.com/tm-acme-shop/acme-shop-settlement-service/internal/errors"
	"github.com/tm-acme-shop/acme-shop-settlement-service/internal/logging"
	"github.com/tm-acme-shop/acme-shop-settlement-service/internal/models"
)

// OrderPricingRequest is the body of tax and checkout pricing requests.
type OrderPricingRequest struct {
	Items   []models.TaxableItem   `json:"items" binding:"required"`
	Address models.ShippingAddress `json:"address"`
}

// FeeRequest is the body of POST /api/v1/fees/calculate.
type FeeRequest struct {
	OrderAmount *decimal.Decimal `json:"orderAmount" binding:"required"`
	StateCode   string           `json:"stateCode,omitempty"`
}

// StoreTransferRequest is the body of POST /api/v1/settlements/store-transfer.
type StoreTransferRequest struct {
	StoreGrossTotal *decimal.Decimal `json:"storeGrossTotal" binding:"required"`
	StateCode       string           `json:"stateCode,omitempty"`
}

// DeliveryTransferRequest is the body of POST /api/v1/settlements/delivery-transfer.
type DeliveryTransferRequest struct {
	GrossTotal *decimal.Decimal `json:"grossTotal" binding:"required"`
	StateCode  string           `json:"stateCode,omitempty"`
}

// CalculateTax handles POST /api/v1/tax/calculate
func (h *Handlers) CalculateTax(c *gin.Context) {
	var req OrderPricingRequest
	if !h.bind(c, &req) {
		return
	}

	result, err := h.taxService.CalculateTaxes(c.Request.Context(), req.Items, req.Address)
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// EstimateTax handles GET /api/v1/tax/estimate?state=XX
func (h *Handlers) EstimateTax(c *gin.Context) {
	state := c.Query("state")
	if state == "" {
		handleError(c, apperrors.NewValidationError("state", "state is required"))
		return
	}

	estimate, err := h.taxService.EstimateTaxRate(c.Request.Context(), state)
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, estimate)
}

// CalculateFees handles POST /api/v1/fees/calculate
func (h *Handlers) CalculateFees(c *gin.Context) {
	var req FeeRequest
	if !h.bind(c, &req) {
		return
	}

	result, err := h.feeService.CalculateFees(c.Request.Context(), *req.OrderAmount, req.StateCode)
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// StoreTransfer handles POST /api/v1/settlements/store-transfer
func (h *Handlers) StoreTransfer(c *gin.Context) {
	var req StoreTransferRequest
	if !h.bind(c, &req) {
		return
	}

	result, err := h.settlementService.CalculateStoreTransferAmount(c.Request.Context(), *req.StoreGrossTotal, req.StateCode)
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// DeliveryTransfer handles POST /api/v1/settlements/delivery-transfer
func (h *Handlers) DeliveryTransfer(c *gin.Context) {
	var req DeliveryTransferRequest
	if !h.bind(c, &req) {
		return
	}

	result, err := h.settlementService.CalculateDeliveryPartnerTransferAmount(c.Request.Context(), *req.GrossTotal, req.StateCode)
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// PriceOrder handles POST /api/v1/checkout/price
func (h *Handlers) PriceOrder(c *gin.Context) {
	var req OrderPricingRequest
	if !h.bind(c, &req) {
		return
	}

	priced, err := h.checkoutService.PriceOrder(c.Request.Context(), req.Items, req.Address)
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, priced)
}

func (h *Handlers) bind(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		h.logger.Error("Failed to bind request", logging.Fields{
			"path":  c.FullPath(),
			"error": err.Error(),
		})
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return false
	}
	return true
}
