package handler

import (
	"credit-ledger-bridge/internal/core/ports"
	"credit-ledger-bridge/pkg/response"

	"github.com/gin-gonic/gin"
)

// MarketplaceHandler handles transaction history and stats.
type MarketplaceHandler struct {
	marketplace ports.MarketplaceService
}

// NewMarketplaceHandler creates a new MarketplaceHandler.
func NewMarketplaceHandler(marketplace ports.MarketplaceService) *MarketplaceHandler {
	return &MarketplaceHandler{marketplace: marketplace}
}

// ListTransactions handles GET /api/v1/transactions.
func (h *MarketplaceHandler) ListTransactions(c *gin.Context) {
	caller, ok := mustCaller(c)
	if !ok {
		return
	}

	page := intQuery(c, "page", 1)
	pageSize := intQuery(c, "page_size", 20)
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	txns, total, err := h.marketplace.ListTransactions(c.Request.Context(), caller, page, pageSize)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, response.Page{
		Items:    txns,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	})
}

// GetStats handles GET /api/v1/stats.
func (h *MarketplaceHandler) GetStats(c *gin.Context) {
	caller, ok := mustCaller(c)
	if !ok {
		return
	}

	stats, err := h.marketplace.GetStats(c.Request.Context(), caller)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, stats)
}
