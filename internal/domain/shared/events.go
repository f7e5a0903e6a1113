// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages.
package shared

import (
	"time"
)

// TriggerName names a behavioral milestone emitted by producers. Names are
// free-form strings matched informally against rule intent by catalog
// authors; the engine does not validate them against a fixed enum.
type TriggerName string

// Trigger names emitted by the known producers in the fleet application.
// Producers may emit names outside this list.
const (
	// Session triggers
	TriggerPageViewed     TriggerName = "page-viewed"
	TriggerSessionStarted TriggerName = "session-started"

	// Data-entry triggers
	TriggerRecordCreated      TriggerName = "record-created"
	TriggerVehicleAdded       TriggerName = "vehicle-added"
	TriggerChecklistCompleted TriggerName = "checklist-completed"
	TriggerMaintenanceLogged  TriggerName = "maintenance-logged"
	TriggerFuelLogged         TriggerName = "fuel-logged"
)

// String returns the string representation.
func (t TriggerName) String() string {
	return string(t)
}

// TriggerEvent is a named behavioral event delivered on the trigger bus.
type TriggerEvent struct {
	Name       TriggerName `json:"name"`
	SessionID  SessionID   `json:"session_id"`
	OccurredAt time.Time   `json:"occurred_at"`
}

// NewTriggerEvent creates a trigger event stamped with the current time.
func NewTriggerEvent(name TriggerName, sessionID SessionID) TriggerEvent {
	return TriggerEvent{
		Name:       name,
		SessionID:  sessionID,
		OccurredAt: time.Now().UTC(),
	}
}

// TriggerHandler is a function that handles a trigger event. Handlers are
// invoked synchronously in subscription order; a handler error is logged by
// the bus and never propagated to the producer.
type TriggerHandler func(event TriggerEvent) error

// TriggerEmitter defines the interface producers use to signal milestones.
type TriggerEmitter interface {
	// Emit delivers an event to current subscribers. It is a silent no-op
	// on a closed bus (no active UI context); nothing is queued or replayed.
	Emit(event TriggerEvent)
}

// TriggerSubscriber defines the interface for subscribing to trigger events.
type TriggerSubscriber interface {
	// Subscribe registers a handler and returns an idempotent unsubscribe
	// function. Late subscribers never see earlier emissions.
	Subscribe(handler TriggerHandler) (unsubscribe func())
}

// TriggerBus combines emitting and subscribing. One bus exists per session,
// created at session start and closed at session end.
type TriggerBus interface {
	TriggerEmitter
	TriggerSubscriber
}
