package purchase_order

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

var tracer = otel.Tracer("supplyledger/purchase_order")

// Result reports a single recomputation.
type Result struct {
	OrderID        id.ID         `json:"order_id"`
	PreviousStatus Status        `json:"previous_status"`
	Status         Status        `json:"status"`
	Changed        bool          `json:"changed"`
	Skipped        bool          `json:"skipped"`
	Items          []ItemReceipt `json:"items,omitempty"`
}

// Config tunes the aggregator.
type Config struct {
	Comparator tolerance.Comparator
	Policy     Policy
}

// Service recomputes order statuses.
type Service struct {
	repo      Repository
	txManager tx.Manager
	recorder  audit.Recorder
	cmp       tolerance.Comparator
	policy    Policy
}

// NewService creates a new purchase order aggregator.
func NewService(repo Repository, txManager tx.Manager, recorder audit.Recorder, cfg Config) *Service {
	if recorder == nil {
		recorder = audit.Nop{}
	}
	if cfg.Policy == "" {
		cfg.Policy = PolicyFreeze
	}
	return &Service{
		repo:      repo,
		txManager: txManager,
		recorder:  recorder,
		cmp:       cfg.Comparator,
		policy:    cfg.Policy,
	}
}

// Recompute derives the order status from posted inbound invoices and
// persists it when it differs from the stored one.
func (s *Service) Recompute(ctx context.Context, orderID id.ID) (Result, error) {
	ctx, span := tracer.Start(ctx, "purchase_order.recompute",
		trace.WithAttributes(attribute.String("order.id", orderID.String())))
	defer span.End()
	ctx = logger.WithDocument(ctx, "purchase_order", orderID)

	var result Result
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		order, err := s.repo.GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}

		result = Result{
			OrderID:        order.ID,
			PreviousStatus: order.Status,
			Status:         order.Status,
		}

		if !s.policy.Eligible(order.Status) {
			result.Skipped = true
			return nil
		}

		receipts, err := s.repo.GetReceipts(ctx, orderID)
		if err != nil {
			return fmt.Errorf("load receipts: %w", err)
		}

		derived := Derive(order, receipts, s.policy, s.cmp)
		result.Status = derived.Status
		result.Items = derived.Items

		if derived.Status == order.Status {
			return nil
		}

		if err := s.repo.UpdateStatus(ctx, order.ID, order.Version, derived.Status); err != nil {
			return err
		}
		result.Changed = true

		return s.recorder.Record(ctx, audit.Entry{
			EntityType: "purchase_order",
			EntityID:   order.ID.String(),
			Action:     audit.ActionStatusChange,
			Changes: map[string]any{
				"status": audit.Change(order.Status, derived.Status),
			},
		})
	})
	if err != nil {
		span.RecordError(err)
		return Result{}, err
	}

	if result.Changed {
		logger.Info(ctx, "purchase order status recomputed",
			"from", result.PreviousStatus,
			"to", result.Status)
	} else {
		logger.Debug(ctx, "purchase order status unchanged",
			"status", result.Status,
			"skipped", result.Skipped)
	}

	return result, nil
}
