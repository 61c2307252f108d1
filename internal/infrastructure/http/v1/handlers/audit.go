package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"supplyledger/internal/infrastructure/http/v1/dto"
	"supplyledger/internal/infrastructure/storage/postgres"
)

// AuditHistory is implemented by postgres.AuditService.
type AuditHistory interface {
	History(ctx context.Context, entityType, entityID string, limit int) ([]postgres.AuditRecord, error)
}

// AuditHandler exposes the trail of recomputed fields.
type AuditHandler struct {
	*BaseHandler
	history AuditHistory
}

// NewAuditHandler creates a new audit handler.
func NewAuditHandler(base *BaseHandler, history AuditHistory) *AuditHandler {
	return &AuditHandler{BaseHandler: base, history: history}
}

// History handles GET /audit/:entity_type/:entity_id
func (h *AuditHandler) History(c *gin.Context) {
	q, err := dto.ParseHistoryQuery(c.Param("entity_type"), c.Param("entity_id"), c.Query("limit"))
	if err != nil {
		h.Error(c, err)
		return
	}

	records, err := h.history.History(c.Request.Context(), q.EntityType, q.EntityID, q.Limit)
	if err != nil {
		h.Error(c, err)
		return
	}

	resp := dto.HistoryResponse{
		EntityType: q.EntityType,
		EntityID:   q.EntityID,
		Entries:    make([]dto.AuditEntryResponse, 0, len(records)),
	}
	for _, r := range records {
		resp.Entries = append(resp.Entries, dto.AuditEntryResponse{
			ID:        r.ID,
			Action:    string(r.Action),
			TraceID:   r.TraceID,
			Changes:   r.Changes,
			CreatedAt: r.CreatedAt,
		})
	}

	h.OK(c, "audit history", resp)
}
