package purchase_order

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"supplyledger/internal/core/id"
	"supplyledger/internal/core/tolerance"
	"supplyledger/internal/core/types"
)

// ItemReceipt is the received quantity computed for one order item.
type ItemReceipt struct {
	ItemID    id.ID          `json:"item_id"`
	ProductID id.ID          `json:"product_id"`
	Ordered   types.Quantity `json:"ordered"`
	Received  types.Quantity `json:"received"`
	Fulfilled bool           `json:"fulfilled"`
}

// Derivation is the outcome of Derive.
type Derivation struct {
	Status Status
	Items  []ItemReceipt
}

// NormalizeCode folds case and strips combining marks so that "CAFÉ-01"
// and "cafe-01" compare equal.
// A transformer chain keeps internal state, so one is built per call.
func NormalizeCode(code string) string {
	code = strings.TrimSpace(code)
	if code == "" {
		return ""
	}
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, code)
	if err != nil {
		stripped = code
	}
	return cases.Fold().String(stripped)
}

// Derive computes the status the order should hold given its receipts.
// The caller is expected to have checked policy eligibility; Derive itself
// never touches orders outside the receipt-active set under PolicyFreeze.
func Derive(order *PurchaseOrder, receipts []Receipt, policy Policy, cmp tolerance.Comparator) Derivation {
	out := Derivation{Status: order.Status}
	if !policy.Eligible(order.Status) {
		return out
	}

	codes := make([]string, len(receipts))
	for i, r := range receipts {
		codes[i] = NormalizeCode(r.ProductCode)
	}

	allFulfilled := len(order.Items) > 0
	anyReceived := false
	out.Items = make([]ItemReceipt, 0, len(order.Items))

	for _, item := range order.Items {
		itemCode := NormalizeCode(item.ProductCode)
		received := types.Zero()
		for i, r := range receipts {
			if matches(item, itemCode, r, codes[i]) {
				received = received.Add(r.Quantity)
			}
		}

		fulfilled := cmp.AtLeast(received, item.QuantityOrdered)
		if !fulfilled {
			allFulfilled = false
		}
		if cmp.Positive(received) {
			anyReceived = true
		}

		out.Items = append(out.Items, ItemReceipt{
			ItemID:    item.ID,
			ProductID: item.ProductID,
			Ordered:   item.QuantityOrdered,
			Received:  received,
			Fulfilled: fulfilled,
		})
	}

	switch {
	case allFulfilled:
		out.Status = StatusFinalized
	case anyReceived:
		out.Status = StatusPartial
	case policy == PolicyLive && (order.Status == StatusPartial || order.Status == StatusFinalized):
		out.Status = StatusApproved
	}

	return out
}

// matches joins a receipt line to an order item by product code, falling
// back to the generic product reference when the codes differ.
func matches(item Item, itemCode string, r Receipt, receiptCode string) bool {
	if itemCode != "" && itemCode == receiptCode {
		return true
	}
	return r.GenericProductID != nil && *r.GenericProductID == item.ProductID
}
