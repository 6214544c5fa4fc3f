package ports

import "context"

const (
	// EventPassStarted is emitted before the first item of a pass is processed.
	EventPassStarted = "pass.started"
	// EventPassCompleted is emitted when a pass finishes without failed items.
	EventPassCompleted = "pass.completed"
	// EventPassFailed is emitted when a pass aborts or any item fails.
	EventPassFailed = "pass.failed"
	// EventItemCompleted is emitted when an item changed the controller.
	EventItemCompleted = "item.completed"
	// EventItemFailed is emitted when an item ends in the failed state.
	EventItemFailed = "item.failed"
	// EventItemUnchanged is emitted when an item needed no action.
	EventItemUnchanged = "item.unchanged"
)

// DomainEvent represents a significant occurrence within the domain or
// application layer. Events carry structured payloads that downstream
// subscribers can use for logging or integrations.
type DomainEvent interface {
	EventType() string
	Payload() interface{}
}

// EventPublisher distributes events to interested subscribers. Dispatch is
// synchronous: Publish blocks until all handlers run. Implementations must be
// thread-safe.
type EventPublisher interface {
	Publish(ctx context.Context, event DomainEvent) error
	Subscribe(eventType string, handler EventHandler) (Subscription, error)
}

// EventHandler processes an event of a specific type. Failures are returned
// so publishers can log diagnostics and continue delivering to remaining
// subscribers.
type EventHandler func(context.Context, DomainEvent) error

// Subscription represents a registered handler. Callers must invoke
// Unsubscribe to stop receiving events.
type Subscription interface {
	Unsubscribe()
}
