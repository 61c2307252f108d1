package requisition

import (
	"supplyledger/internal/core/id"
	"supplyledger/internal/core/tolerance"
	"supplyledger/internal/core/types"
)

// ItemUtilization is the ordered quantity computed for one requisition item.
type ItemUtilization struct {
	ItemID    id.ID          `json:"item_id"`
	ProductID id.ID          `json:"product_id"`
	Requested types.Quantity `json:"requested"`
	Utilized  types.Quantity `json:"utilized"`
	Fulfilled bool           `json:"fulfilled"`
}

// Derivation is the outcome of Derive.
type Derivation struct {
	Status Status
	Items  []ItemUtilization
}

// Derive classifies a requisition from the allocations against its items.
// Allocations of cancelled orders or without an item link do not count.
// The second return value is false when the requisition has no items, in
// which case no status can be derived.
func Derive(items []Item, allocations []Allocation, cmp tolerance.Comparator) (Derivation, bool) {
	if len(items) == 0 {
		return Derivation{}, false
	}

	utilized := make(map[id.ID]types.Quantity, len(items))
	for _, a := range allocations {
		if a.RequisitionItemID == nil || a.OrderStatus.IsCancelled() {
			continue
		}
		utilized[*a.RequisitionItemID] = utilized[*a.RequisitionItemID].Add(a.QuantityOrdered)
	}

	out := Derivation{Items: make([]ItemUtilization, 0, len(items))}
	allFulfilled := true
	anyUtilized := false

	for _, it := range items {
		used := utilized[it.ID]
		fulfilled := cmp.AtLeast(used, it.QuantityRequested)
		if !fulfilled {
			allFulfilled = false
		}
		if cmp.Positive(used) {
			anyUtilized = true
		}
		out.Items = append(out.Items, ItemUtilization{
			ItemID:    it.ID,
			ProductID: it.ProductID,
			Requested: it.QuantityRequested,
			Utilized:  used,
			Fulfilled: fulfilled,
		})
	}

	switch {
	case allFulfilled:
		out.Status = StatusFinalized
	case anyUtilized:
		out.Status = StatusPartial
	default:
		out.Status = StatusOpen
	}

	return out, true
}
