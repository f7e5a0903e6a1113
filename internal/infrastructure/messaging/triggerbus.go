// Package messaging implements the in-process trigger bus that connects
// behavioral event producers to the engagement engine. One bus exists per
// session; delivery is synchronous and session-scoped, never persisted.
package messaging

import (
	"log/slog"
	"sync"

	"github.com/fleetcheck/engage-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// SESSION TRIGGER BUS
// ══════════════════════════════════════════════════════════════════════════════

// SessionTriggerBus is the in-memory implementation of shared.TriggerBus.
//
// Handlers run synchronously on the emitting goroutine, in subscription
// order. A handler error is logged and delivery continues with the next
// handler; producers never observe subscriber failures. After Close the bus
// silently drops emissions: a trigger with no live session has no one to
// show a popup to, so there is nothing to queue.
type SessionTriggerBus struct {
	mu        sync.RWMutex
	sessionID shared.SessionID
	subs      []subscription
	nextID    uint64
	closed    bool
	logger    *slog.Logger
	metrics   *TriggerBusMetrics
}

type subscription struct {
	id      uint64
	handler shared.TriggerHandler
}

// SessionTriggerBusConfig contains configuration for SessionTriggerBus.
type SessionTriggerBusConfig struct {
	// SessionID scopes the bus to one browsing session.
	SessionID shared.SessionID

	// Logger for structured logging.
	Logger *slog.Logger

	// EnableMetrics enables per-bus delivery counters.
	EnableMetrics bool
}

// DefaultSessionTriggerBusConfig returns sensible defaults.
func DefaultSessionTriggerBusConfig(sessionID shared.SessionID) SessionTriggerBusConfig {
	return SessionTriggerBusConfig{
		SessionID:     sessionID,
		EnableMetrics: true,
	}
}

// NewSessionTriggerBus creates a trigger bus for one session.
func NewSessionTriggerBus(config SessionTriggerBusConfig) *SessionTriggerBus {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	bus := &SessionTriggerBus{
		sessionID: config.SessionID,
		logger:    config.Logger,
	}
	if config.EnableMetrics {
		bus.metrics = NewTriggerBusMetrics()
	}
	return bus
}

// Subscribe registers a handler and returns an idempotent unsubscribe
// function. Subscribing on a closed bus is accepted but the handler will
// never be called.
func (b *SessionTriggerBus) Subscribe(handler shared.TriggerHandler) func() {
	if handler == nil {
		return func() {}
	}

	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscription{id: id, handler: handler})
	b.mu.Unlock()

	b.logger.Debug("trigger handler subscribed",
		"session_id", b.sessionID, "subscription_id", id)

	var once sync.Once
	return func() {
		once.Do(func() {
			b.unsubscribe(id)
		})
	}
}

func (b *SessionTriggerBus) unsubscribe(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, sub := range b.subs {
		if sub.id == id {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			return
		}
	}
}

// Emit delivers an event to every current subscriber, synchronously and in
// subscription order. On a closed bus it is a silent no-op.
func (b *SessionTriggerBus) Emit(event shared.TriggerEvent) {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		if b.metrics != nil {
			b.metrics.recordDropped()
		}
		return
	}
	// Snapshot so handlers may subscribe or unsubscribe during delivery
	// without deadlocking. A handler removed mid-delivery still receives
	// the in-flight event.
	handlers := make([]subscription, len(b.subs))
	copy(handlers, b.subs)
	b.mu.RUnlock()

	if b.metrics != nil {
		b.metrics.recordEmitted(event.Name)
	}

	for _, sub := range handlers {
		if err := sub.handler(event); err != nil {
			if b.metrics != nil {
				b.metrics.recordHandlerError()
			}
			b.logger.Error("trigger handler failed",
				"session_id", b.sessionID,
				"trigger", event.Name,
				"subscription_id", sub.id,
				"error", err)
		}
	}
}

// Close marks the bus closed and drops all subscriptions. Safe to call more
// than once.
func (b *SessionTriggerBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	b.subs = nil

	b.logger.Debug("trigger bus closed", "session_id", b.sessionID)
}

// Closed reports whether the bus has been closed.
func (b *SessionTriggerBus) Closed() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.closed
}

// SubscriberCount returns the number of live subscriptions.
func (b *SessionTriggerBus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Metrics returns the bus metrics, or nil when disabled.
func (b *SessionTriggerBus) Metrics() *TriggerBusMetrics {
	return b.metrics
}
