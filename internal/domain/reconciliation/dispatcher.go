package reconciliation

import (
	"context"
	"errors"
	"fmt"

	"supplyledger/internal/core/apperror"
	"supplyledger/internal/core/id"
	"supplyledger/internal/domain/documents/purchase_order"
	"supplyledger/internal/domain/documents/requisition"
	"supplyledger/internal/domain/registers/stock"
	"supplyledger/pkg/logger"
)

// RequisitionRecomputer is implemented by requisition.Service.
type RequisitionRecomputer interface {
	Recompute(ctx context.Context, requisitionID id.ID) (requisition.Result, error)
}

// OrderRecomputer is implemented by purchase_order.Service.
type OrderRecomputer interface {
	Recompute(ctx context.Context, orderID id.ID) (purchase_order.Result, error)
}

// CostRecalculator is implemented by stock.Service.
type CostRecalculator interface {
	RecalculateOne(ctx context.Context, scope stock.Scope) (stock.Recalculation, error)
}

// Outcome lists what a single event caused.
type Outcome struct {
	Requisitions []requisition.Result    `json:"requisitions"`
	Orders       []purchase_order.Result `json:"orders"`
	Lots         []stock.Recalculation   `json:"lots"`
	Missing      []string                `json:"missing"`
}

// Dispatcher routes document events to the aggregators.
type Dispatcher struct {
	requisitions RequisitionRecomputer
	orders       OrderRecomputer
	costs        CostRecalculator
}

// NewDispatcher creates a new event dispatcher.
func NewDispatcher(requisitions RequisitionRecomputer, orders OrderRecomputer, costs CostRecalculator) *Dispatcher {
	return &Dispatcher{
		requisitions: requisitions,
		orders:       orders,
		costs:        costs,
	}
}

// HandleOrderChanged recomputes every requisition linked before or after the change.
// Missing requisitions are skipped; other errors are joined.
func (d *Dispatcher) HandleOrderChanged(ctx context.Context, ev OrderChanged) (Outcome, error) {
	out := newOutcome()
	var errs []error

	for _, reqID := range uniqueIDs(append([]id.ID(nil), ev.RequisitionIDs...)) {
		res, err := d.requisitions.Recompute(ctx, reqID)
		if err != nil {
			if d.skipMissing(ctx, &out, "requisition", reqID.String(), err) {
				continue
			}
			errs = append(errs, fmt.Errorf("requisition %s: %w", reqID, err))
			continue
		}
		out.Requisitions = append(out.Requisitions, res)
	}

	return out, errors.Join(errs...)
}

// HandleInvoiceChanged recomputes each linked order and each touched stock lot.
func (d *Dispatcher) HandleInvoiceChanged(ctx context.Context, ev InvoiceChanged) (Outcome, error) {
	out := newOutcome()
	var errs []error

	for _, orderID := range uniqueIDs(append([]id.ID(nil), ev.OrderIDs...)) {
		res, err := d.orders.Recompute(ctx, orderID)
		if err != nil {
			if d.skipMissing(ctx, &out, "purchase_order", orderID.String(), err) {
				continue
			}
			errs = append(errs, fmt.Errorf("purchase order %s: %w", orderID, err))
			continue
		}
		out.Orders = append(out.Orders, res)
	}

	for _, scope := range uniqueScopes(ev.Scopes) {
		rec, err := d.costs.RecalculateOne(ctx, scope)
		if err != nil {
			if d.skipMissing(ctx, &out, "stock_lot", scope.Key(), err) {
				continue
			}
			errs = append(errs, fmt.Errorf("stock scope %s: %w", scope.Key(), err))
			continue
		}
		out.Lots = append(out.Lots, rec)
	}

	return out, errors.Join(errs...)
}

func (d *Dispatcher) skipMissing(ctx context.Context, out *Outcome, entity, key string, err error) bool {
	if !apperror.IsNotFound(err) {
		return false
	}
	logger.Warn(ctx, "recompute target not found, skipping", "entity", entity, "id", key)
	out.Missing = append(out.Missing, entity+":"+key)
	return true
}

func newOutcome() Outcome {
	return Outcome{
		Requisitions: []requisition.Result{},
		Orders:       []purchase_order.Result{},
		Lots:         []stock.Recalculation{},
		Missing:      []string{},
	}
}
