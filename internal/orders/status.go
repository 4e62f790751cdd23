package orders

import (
	"github.com/sameerdalvi/bazario-backend/pkg/enums"
)

// vendorTransitions is the slice state machine as driven by vendors.
// Refunded is reachable only through dispute resolution.
var vendorTransitions = map[enums.OrderStatus][]enums.OrderStatus{
	enums.OrderStatusPending:    {enums.OrderStatusConfirmed, enums.OrderStatusCancelled},
	enums.OrderStatusConfirmed:  {enums.OrderStatusProcessing, enums.OrderStatusCancelled},
	enums.OrderStatusProcessing: {enums.OrderStatusShipped, enums.OrderStatusCancelled},
	enums.OrderStatusShipped:    {enums.OrderStatusDelivered},
}

// CanVendorTransition reports whether a vendor may move a slice from one
// status to another.
func CanVendorTransition(from, to enums.OrderStatus) bool {
	for _, allowed := range vendorTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// customerCancellable are the slice states a customer may still cancel from.
var customerCancellable = map[enums.OrderStatus]bool{
	enums.OrderStatusPending:   true,
	enums.OrderStatusConfirmed: true,
}

// CanCustomerCancel reports whether a customer cancel is allowed from the
// given status.
func CanCustomerCancel(status enums.OrderStatus) bool {
	return customerCancellable[status]
}

// AggregateStatus derives the parent order status from its slice statuses.
// It is a pure function, recomputed on every slice mutation.
func AggregateStatus(statuses []enums.OrderStatus) enums.OrderStatus {
	if len(statuses) == 0 {
		return enums.OrderStatusPending
	}

	counts := map[enums.OrderStatus]int{}
	for _, status := range statuses {
		counts[status]++
	}
	total := len(statuses)

	switch {
	case counts[enums.OrderStatusDelivered] == total:
		return enums.OrderStatusDelivered
	case counts[enums.OrderStatusDelivered]+counts[enums.OrderStatusShipped] == total:
		return enums.OrderStatusShipped
	case counts[enums.OrderStatusCancelled] == total:
		return enums.OrderStatusCancelled
	case counts[enums.OrderStatusRefunded] == total:
		return enums.OrderStatusRefunded
	}

	// Mixed bag: the most advanced in-progress state, capped at processing.
	// Terminal slices no longer drive the parent forward.
	switch {
	case counts[enums.OrderStatusProcessing] > 0 ||
		counts[enums.OrderStatusShipped] > 0 ||
		counts[enums.OrderStatusDelivered] > 0:
		return enums.OrderStatusProcessing
	case counts[enums.OrderStatusConfirmed] > 0:
		return enums.OrderStatusConfirmed
	default:
		return enums.OrderStatusPending
	}
}
