package events

// Event enumerates the topics published inside the execution core.
type Event string

const (
	EventOrderSubmitted    Event = "order.submitted"
	EventOrderFilled       Event = "order.filled"
	EventOrderFailed       Event = "order.failed"
	EventOrderCancelled    Event = "order.cancelled"
	EventOrderExpired      Event = "order.expired"
	EventOrderUpdate       Event = "order.update"
	EventDegradationChange Event = "degradation.change"
)
