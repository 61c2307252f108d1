package handlers

import (
	"github.com/gin-gonic/gin"

	"supplyledger/internal/domain/reconciliation"
)

// ProcurementHandler exposes requisition and order status recomputation.
type ProcurementHandler struct {
	*BaseHandler
	requisitions reconciliation.RequisitionRecomputer
	orders       reconciliation.OrderRecomputer
}

// NewProcurementHandler creates a new procurement handler.
func NewProcurementHandler(base *BaseHandler, requisitions reconciliation.RequisitionRecomputer, orders reconciliation.OrderRecomputer) *ProcurementHandler {
	return &ProcurementHandler{
		BaseHandler:  base,
		requisitions: requisitions,
		orders:       orders,
	}
}

// RecomputeRequisition handles POST /requisitions/:id/recompute-status
func (h *ProcurementHandler) RecomputeRequisition(c *gin.Context) {
	reqID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	res, err := h.requisitions.Recompute(c.Request.Context(), reqID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, "requisition status recomputed", res)
}

// RecomputeOrder handles POST /purchase-orders/:id/recompute-status
func (h *ProcurementHandler) RecomputeOrder(c *gin.Context) {
	orderID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	res, err := h.orders.Recompute(c.Request.Context(), orderID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, "purchase order status recomputed", res)
}
