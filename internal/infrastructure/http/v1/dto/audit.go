package dto

import (
	"encoding/json"
	"strconv"
	"time"

	"supplyledger/internal/core/apperror"
	"supplyledger/internal/core/id"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// auditedEntities lists the entity types the recompute services record.
var auditedEntities = map[string]struct{}{
	"requisition":      {},
	"purchase_order":   {},
	"stock_lot":        {},
	"stock_cost_batch": {},
}

// HistoryQuery identifies an audited entity and how many entries to return.
type HistoryQuery struct {
	EntityType string
	EntityID   string
	Limit      int
}

// ParseHistoryQuery validates the path parameters and the optional limit.
func ParseHistoryQuery(entityType, entityID, limit string) (HistoryQuery, error) {
	if _, ok := auditedEntities[entityType]; !ok {
		return HistoryQuery{}, apperror.NewValidation("unknown entity_type").WithDetail("field", "entity_type")
	}
	parsed, err := parseID("entity_id", entityID)
	if err != nil {
		return HistoryQuery{}, err
	}

	q := HistoryQuery{EntityType: entityType, EntityID: parsed.String(), Limit: defaultHistoryLimit}
	if limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 1 || n > maxHistoryLimit {
			return HistoryQuery{}, apperror.NewValidation("limit must be between 1 and 500").WithDetail("field", "limit")
		}
		q.Limit = n
	}
	return q, nil
}

// AuditEntryResponse is one derived-field change.
type AuditEntryResponse struct {
	ID        id.ID           `json:"id"`
	Action    string          `json:"action"`
	TraceID   string          `json:"trace_id,omitempty"`
	Changes   json.RawMessage `json:"changes"`
	CreatedAt time.Time       `json:"created_at"`
}

// HistoryResponse lists entries newest first.
type HistoryResponse struct {
	EntityType string               `json:"entity_type"`
	EntityID   string               `json:"entity_id"`
	Entries    []AuditEntryResponse `json:"entries"`
}
