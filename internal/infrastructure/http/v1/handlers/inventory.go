package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"supplyledger/internal/domain/registers/stock"
	"supplyledger/internal/infrastructure/http/v1/dto"
)

// CostService is implemented by stock.Service.
type CostService interface {
	RecalculateOne(ctx context.Context, scope stock.Scope) (stock.Recalculation, error)
	RecalculateBatch(ctx context.Context, filter stock.ScopeFilter) (stock.BatchResult, error)
}

// InventoryHandler exposes weighted-average recalculation.
type InventoryHandler struct {
	*BaseHandler
	costs CostService
}

// NewInventoryHandler creates a new inventory handler.
func NewInventoryHandler(base *BaseHandler, costs CostService) *InventoryHandler {
	return &InventoryHandler{BaseHandler: base, costs: costs}
}

// RecalculateAverage handles POST /inventory/recalculate-average
func (h *InventoryHandler) RecalculateAverage(c *gin.Context) {
	var req dto.ScopeRequest
	if !h.BindJSON(c, &req) {
		return
	}

	scope, err := req.ToScope()
	if err != nil {
		h.Error(c, err)
		return
	}

	rec, err := h.costs.RecalculateOne(c.Request.Context(), scope)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, "average cost recalculated", rec)
}

// RecalculateAverages handles POST /inventory/recalculate-averages
func (h *InventoryHandler) RecalculateAverages(c *gin.Context) {
	var req dto.RecalculateAveragesRequest
	if !h.BindOptionalJSON(c, &req) {
		return
	}

	filter, err := req.ToFilter()
	if err != nil {
		h.Error(c, err)
		return
	}

	result, err := h.costs.RecalculateBatch(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	message := "average costs recalculated"
	if result.Partial {
		message = "batch interrupted, partial result"
	}
	h.OK(c, message, dto.FromBatchResult(result))
}
