package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tm-acme-shop/acme-shop-settlement-service/internal/logging"
)

// InvalidateCache handles POST /api/v1/admin/cache/invalidate
func (h *Handlers) InvalidateCache(c *gin.Context) {
	if err := h.cache.InvalidateCache(c.Request.Context()); err != nil {
		// The local cache is already dropped; other instances refresh at TTL.
		h.logger.Warn("Cache invalidation not broadcast", logging.Fields{"error": err.Error()})
		c.JSON(http.StatusBadGateway, gin.H{"error": "cache invalidated locally but broadcast failed"})
		return
	}

	h.logger.Info("Pricing configuration cache invalidated by admin")
	c.Status(http.StatusNoContent)
}

// ValidateFees handles GET /api/v1/admin/fees/validate
func (h *Handlers) ValidateFees(c *gin.Context) {
	issues, err := h.feeService.ValidateActive(c.Request.Context())
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"valid":  len(issues) == 0,
		"issues": issues,
	})
}
