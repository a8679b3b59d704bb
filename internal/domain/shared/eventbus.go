package shared

// EventPublisher publishes domain events. Publishing is fire-and-forget:
// subscribers observe state, they never veto a mutation.
type EventPublisher interface {
	Publish(events ...DomainEvent)
}

// NopPublisher discards every event
type NopPublisher struct{}

// Publish implements EventPublisher
func (NopPublisher) Publish(...DomainEvent) {}
