package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tm-acme-shop/acme-shop-settlement-service/internal/logging"
	"github.com/tm-acme-shop/acme-shop-settlement-service/internal/service"
)

// PayoutStore handles POST /api/v1/payouts/stores/:id
func (h *Handlers) PayoutStore(c *gin.Context) {
	storeID := c.Param("id")

	var req service.PayoutRequest
	if !h.bind(c, &req) {
		return
	}

	payout, err := h.payoutService.PayoutStore(c.Request.Context(), storeID, &req)
	if err != nil {
		h.logger.Error("Store payout failed", logging.Fields{"store_id": storeID, "error": err.Error()})
		handleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, payout)
}

// PayoutDeliveryPartner handles POST /api/v1/payouts/delivery-partners/:id
func (h *Handlers) PayoutDeliveryPartner(c *gin.Context) {
	partnerID := c.Param("id")

	var req service.PayoutRequest
	if !h.bind(c, &req) {
		return
	}

	payout, err := h.payoutService.PayoutDeliveryPartner(c.Request.Context(), partnerID, &req)
	if err != nil {
		h.logger.Error("Delivery partner payout failed", logging.Fields{"partner_id": partnerID, "error": err.Error()})
		handleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, payout)
}
