package session

import "github.com/storefront/backend/internal/domain/shared"

// Event type constants
const (
	EventTypeLoggedIn        = "SessionLoggedIn"
	EventTypeLoggedOut       = "SessionLoggedOut"
	EventTypeIdentityUpdated = "SessionIdentityUpdated"
	EventTypeRestored        = "SessionRestored"
)

// ChangedEvent is published on every session transition
type ChangedEvent struct {
	shared.BaseDomainEvent
	State      State  `json:"state"`
	CustomerID string `json:"customer_id,omitempty"`
}

// NewChangedEvent builds a ChangedEvent of the given type from a session
func NewChangedEvent(eventType, profileID string, s Session) *ChangedEvent {
	ev := &ChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(eventType, profileID),
		State:           s.State(),
	}
	if id, ok := s.Identity(); ok {
		ev.CustomerID = id.ID
	}
	return ev
}
