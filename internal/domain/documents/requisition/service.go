package requisition

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"supplyledger/internal/core/id"
	"supplyledger/internal/core/tolerance"
	"supplyledger/internal/core/tx"
	"supplyledger/internal/domain/audit"
	"supplyledger/pkg/logger"
)

var tracer = otel.Tracer("supplyledger/requisition")

// Result reports a single recomputation.
type Result struct {
	RequisitionID  id.ID             `json:"requisition_id"`
	PreviousStatus Status            `json:"previous_status"`
	Status         Status            `json:"status"`
	Changed        bool              `json:"changed"`
	Skipped        bool              `json:"skipped"`
	Items          []ItemUtilization `json:"items,omitempty"`
}

// Service recomputes requisition statuses.
type Service struct {
	repo      Repository
	txManager tx.Manager
	recorder  audit.Recorder
	cmp       tolerance.Comparator
}

// NewService creates a new requisition aggregator.
func NewService(repo Repository, txManager tx.Manager, recorder audit.Recorder, cmp tolerance.Comparator) *Service {
	if recorder == nil {
		recorder = audit.Nop{}
	}
	return &Service{
		repo:      repo,
		txManager: txManager,
		recorder:  recorder,
		cmp:       cmp,
	}
}

// Recompute derives the requisition status from its active orders.
// A requisition without items is left as is.
func (s *Service) Recompute(ctx context.Context, requisitionID id.ID) (Result, error) {
	ctx, span := tracer.Start(ctx, "requisition.recompute",
		trace.WithAttributes(attribute.String("requisition.id", requisitionID.String())))
	defer span.End()
	ctx = logger.WithDocument(ctx, "requisition", requisitionID)

	var result Result
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		req, err := s.repo.GetForUpdate(ctx, requisitionID)
		if err != nil {
			return err
		}

		result = Result{
			RequisitionID:  req.ID,
			PreviousStatus: req.Status,
			Status:         req.Status,
		}

		if len(req.Items) == 0 {
			result.Skipped = true
			return nil
		}

		allocations, err := s.repo.GetAllocations(ctx, requisitionID)
		if err != nil {
			return fmt.Errorf("load allocations: %w", err)
		}

		derived, _ := Derive(req.Items, allocations, s.cmp)
		result.Status = derived.Status
		result.Items = derived.Items

		if derived.Status == req.Status {
			return nil
		}

		if err := s.repo.UpdateStatus(ctx, req.ID, req.Version, derived.Status); err != nil {
			return err
		}
		result.Changed = true

		return s.recorder.Record(ctx, audit.Entry{
			EntityType: "requisition",
			EntityID:   req.ID.String(),
			Action:     audit.ActionStatusChange,
			Changes: map[string]any{
				"status": audit.Change(req.Status, derived.Status),
			},
		})
	})
	if err != nil {
		span.RecordError(err)
		return Result{}, err
	}

	if result.Skipped {
		logger.Debug(ctx, "requisition has no items, status left unchanged")
	} else if result.Changed {
		logger.Info(ctx, "requisition status recomputed",
			"from", result.PreviousStatus,
			"to", result.Status)
	}

	return result, nil
}
