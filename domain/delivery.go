package domain

// DeliveryStatus is the lifecycle state of a delivery
type DeliveryStatus string

const (
	DeliveryScheduled  DeliveryStatus = "scheduled"
	DeliveryInTransit  DeliveryStatus = "in_transit"
	DeliveryArrived    DeliveryStatus = "arrived"
	DeliveryInProgress DeliveryStatus = "in_progress"
	DeliveryCompleted  DeliveryStatus = "completed"
	DeliveryCancelled  DeliveryStatus = "cancelled"
)

// DeliveryStatuses lists every status in lifecycle order
var DeliveryStatuses = []DeliveryStatus{
	DeliveryScheduled,
	DeliveryInTransit,
	DeliveryArrived,
	DeliveryInProgress,
	DeliveryCompleted,
	DeliveryCancelled,
}

// deliveryTransitions is the only place the delivery lifecycle is defined.
// Cancellation is reachable from every non-terminal state.
var deliveryTransitions = map[DeliveryStatus][]DeliveryStatus{
	DeliveryScheduled:  {DeliveryInTransit, DeliveryCancelled},
	DeliveryInTransit:  {DeliveryArrived, DeliveryCancelled},
	DeliveryArrived:    {DeliveryInProgress, DeliveryCancelled},
	DeliveryInProgress: {DeliveryCompleted, DeliveryCancelled},
	DeliveryCompleted:  {},
	DeliveryCancelled:  {},
}

// AllowedTransitions returns the statuses reachable from status. Unknown
// statuses have no transitions.
func AllowedTransitions(status DeliveryStatus) []DeliveryStatus {
	next := deliveryTransitions[status]
	out := make([]DeliveryStatus, len(next))
	copy(out, next)
	return out
}

// CanTransition reports whether from -> to is in the transition table
func CanTransition(from, to DeliveryStatus) bool {
	for _, s := range deliveryTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// IsValid reports whether s is a known delivery status
func (s DeliveryStatus) IsValid() bool {
	_, ok := deliveryTransitions[s]
	return ok
}

// IsTerminal reports whether no transition leaves s
func (s DeliveryStatus) IsTerminal() bool {
	return s == DeliveryCompleted || s == DeliveryCancelled
}

// DeliveryType is the kind of stop
type DeliveryType string

const (
	DeliveryTypePickup   DeliveryType = "pickup"
	DeliveryTypeDelivery DeliveryType = "delivery"
	DeliveryTypeExchange DeliveryType = "exchange"
)

func (t DeliveryType) IsValid() bool {
	switch t {
	case DeliveryTypePickup, DeliveryTypeDelivery, DeliveryTypeExchange:
		return true
	}
	return false
}

// Priority of a delivery
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

func (p Priority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}
