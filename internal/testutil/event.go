package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/storefront/backend/internal/domain/shared"
)

// RecordingPublisher is a shared.EventPublisher that keeps every event
type RecordingPublisher struct {
	mu     sync.Mutex
	events []shared.DomainEvent
}

// Publish records events
func (p *RecordingPublisher) Publish(events ...shared.DomainEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, events...)
}

// Events returns the recorded events in publish order
func (p *RecordingPublisher) Events() []shared.DomainEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]shared.DomainEvent(nil), p.events...)
}

// Types returns the type of each recorded event
func (p *RecordingPublisher) Types() []string {
	events := p.Events()
	out := make([]string, 0, len(events))
	for _, e := range events {
		out = append(out, e.EventType())
	}
	return out
}

// Count returns the number of recorded events
func (p *RecordingPublisher) Count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

// Reset drops recorded events
func (p *RecordingPublisher) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = nil
}

// WaitForCondition polls condition until it holds or timeout passes
func WaitForCondition(t *testing.T, condition func() bool, timeout, interval time.Duration) bool {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return true
		}
		time.Sleep(interval)
	}
	return false
}

// WaitForEventCount waits until the publisher has recorded at least n events
func WaitForEventCount(t *testing.T, p *RecordingPublisher, n int, timeout time.Duration) bool {
	t.Helper()

	return WaitForCondition(t, func() bool {
		return p.Count() >= n
	}, timeout, 5*time.Millisecond)
}
