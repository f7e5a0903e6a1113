package messaging

import (
	"sync"

	"github.com/fleetcheck/engage-hub/internal/domain/shared"
)

// TriggerBusMetrics collects delivery counters for one trigger bus.
type TriggerBusMetrics struct {
	mu            sync.RWMutex
	emitted       int64
	dropped       int64
	handlerErrors int64
	byTrigger     map[shared.TriggerName]int64
}

// NewTriggerBusMetrics creates an empty metrics collector.
func NewTriggerBusMetrics() *TriggerBusMetrics {
	return &TriggerBusMetrics{
		byTrigger: make(map[shared.TriggerName]int64),
	}
}

func (m *TriggerBusMetrics) recordEmitted(name shared.TriggerName) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.emitted++
	m.byTrigger[name]++
}

func (m *TriggerBusMetrics) recordDropped() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dropped++
}

func (m *TriggerBusMetrics) recordHandlerError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlerErrors++
}

// Snapshot returns the current counter values.
func (m *TriggerBusMetrics) Snapshot() TriggerBusStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	byTrigger := make(map[shared.TriggerName]int64, len(m.byTrigger))
	for k, v := range m.byTrigger {
		byTrigger[k] = v
	}

	return TriggerBusStats{
		Emitted:       m.emitted,
		Dropped:       m.dropped,
		HandlerErrors: m.handlerErrors,
		ByTrigger:     byTrigger,
	}
}

// TriggerBusStats is a point-in-time view of bus activity.
type TriggerBusStats struct {
	Emitted       int64                        `json:"emitted"`
	Dropped       int64                        `json:"dropped"`
	HandlerErrors int64                        `json:"handler_errors"`
	ByTrigger     map[shared.TriggerName]int64 `json:"by_trigger"`
}
