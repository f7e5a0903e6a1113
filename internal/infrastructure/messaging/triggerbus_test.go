package messaging

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetcheck/engage-hub/internal/domain/shared"
)

func newTestBus() *SessionTriggerBus {
	return NewSessionTriggerBus(DefaultSessionTriggerBusConfig("sess-1"))
}

func TestSessionTriggerBus_DeliversInSubscriptionOrder(t *testing.T) {
	bus := newTestBus()

	var order []string
	bus.Subscribe(func(e shared.TriggerEvent) error {
		order = append(order, "first")
		return nil
	})
	bus.Subscribe(func(e shared.TriggerEvent) error {
		order = append(order, "second")
		return nil
	})
	bus.Subscribe(func(e shared.TriggerEvent) error {
		order = append(order, "third")
		return nil
	})

	bus.Emit(shared.NewTriggerEvent(shared.TriggerPageViewed, "sess-1"))

	assert.Equal(t, []string{"first", "second", "third"}, order)
}

func TestSessionTriggerBus_HandlerErrorDoesNotStopDelivery(t *testing.T) {
	bus := newTestBus()

	var secondCalled bool
	bus.Subscribe(func(e shared.TriggerEvent) error {
		return errors.New("boom")
	})
	bus.Subscribe(func(e shared.TriggerEvent) error {
		secondCalled = true
		return nil
	})

	bus.Emit(shared.NewTriggerEvent(shared.TriggerRecordCreated, "sess-1"))

	assert.True(t, secondCalled)
	require.NotNil(t, bus.Metrics())
	assert.Equal(t, int64(1), bus.Metrics().Snapshot().HandlerErrors)
}

func TestSessionTriggerBus_UnsubscribeIsIdempotent(t *testing.T) {
	bus := newTestBus()

	var calls int
	unsubA := bus.Subscribe(func(e shared.TriggerEvent) error {
		calls++
		return nil
	})
	bus.Subscribe(func(e shared.TriggerEvent) error { return nil })

	unsubA()
	unsubA()
	unsubA()

	assert.Equal(t, 1, bus.SubscriberCount())

	bus.Emit(shared.NewTriggerEvent(shared.TriggerPageViewed, "sess-1"))
	assert.Zero(t, calls)
}

func TestSessionTriggerBus_EmitAfterCloseIsNoop(t *testing.T) {
	bus := newTestBus()

	var calls int
	bus.Subscribe(func(e shared.TriggerEvent) error {
		calls++
		return nil
	})

	bus.Close()
	bus.Close()

	bus.Emit(shared.NewTriggerEvent(shared.TriggerPageViewed, "sess-1"))

	assert.True(t, bus.Closed())
	assert.Zero(t, calls)
	assert.Equal(t, int64(1), bus.Metrics().Snapshot().Dropped)
}

func TestSessionTriggerBus_LateSubscriberMissesEarlierEvents(t *testing.T) {
	bus := newTestBus()

	bus.Emit(shared.NewTriggerEvent(shared.TriggerPageViewed, "sess-1"))

	var calls int
	bus.Subscribe(func(e shared.TriggerEvent) error {
		calls++
		return nil
	})

	assert.Zero(t, calls, "events are not queued or replayed")

	bus.Emit(shared.NewTriggerEvent(shared.TriggerPageViewed, "sess-1"))
	assert.Equal(t, 1, calls)
}

func TestSessionTriggerBus_UnsubscribeDuringDelivery(t *testing.T) {
	bus := newTestBus()

	var unsub func()
	var calls int
	unsub = bus.Subscribe(func(e shared.TriggerEvent) error {
		calls++
		unsub()
		return nil
	})

	bus.Emit(shared.NewTriggerEvent(shared.TriggerPageViewed, "sess-1"))
	bus.Emit(shared.NewTriggerEvent(shared.TriggerPageViewed, "sess-1"))

	assert.Equal(t, 1, calls)
	assert.Zero(t, bus.SubscriberCount())
}

func TestSessionTriggerBus_MetricsCountByTrigger(t *testing.T) {
	bus := newTestBus()
	bus.Subscribe(func(e shared.TriggerEvent) error { return nil })

	bus.Emit(shared.NewTriggerEvent(shared.TriggerPageViewed, "sess-1"))
	bus.Emit(shared.NewTriggerEvent(shared.TriggerPageViewed, "sess-1"))
	bus.Emit(shared.NewTriggerEvent(shared.TriggerVehicleAdded, "sess-1"))

	stats := bus.Metrics().Snapshot()
	assert.Equal(t, int64(3), stats.Emitted)
	assert.Equal(t, int64(2), stats.ByTrigger[shared.TriggerPageViewed])
	assert.Equal(t, int64(1), stats.ByTrigger[shared.TriggerVehicleAdded])
}
