package engagement

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/fleetcheck/engage-hub/internal/domain/engagement"
	"github.com/fleetcheck/engage-hub/internal/domain/rule"
	"github.com/fleetcheck/engage-hub/internal/domain/shared"
)

type mockVisits struct {
	counts map[shared.UserID]int64
}

func (m *mockVisits) RecordVisit(ctx context.Context, userID shared.UserID) (int64, error) {
	if m.counts == nil {
		m.counts = make(map[shared.UserID]int64)
	}
	m.counts[userID]++
	return m.counts[userID], nil
}

func (m *mockVisits) VisitCount(ctx context.Context, userID shared.UserID) (int64, error) {
	return m.counts[userID], nil
}

func newTestManager(t *testing.T, store *mockStore) (*Manager, *mockVisits) {
	t.Helper()
	catalog, err := rule.NewCatalog([]rule.Rule{surveyRule()}, nil)
	require.NoError(t, err)

	visits := &mockVisits{}
	m, err := NewManager(ManagerConfig{
		Catalog: catalog,
		Store:   store,
		Visits:  visits,
	})
	require.NoError(t, err)
	return m, visits
}

func TestManager_SessionLifecycle(t *testing.T) {
	store := newMockStore()
	m, visits := newTestManager(t, store)
	ctx := context.Background()

	require.NoError(t, m.StartSession(ctx, "sess-1", testUserID))
	assert.Equal(t, 1, m.ActiveSessions())
	assert.Equal(t, int64(1), visits.counts[testUserID])

	// Re-announcing the same session is a no-op, not a second visit.
	require.NoError(t, m.StartSession(ctx, "sess-1", testUserID))
	assert.Equal(t, 1, m.ActiveSessions())
	assert.Equal(t, int64(1), visits.counts[testUserID])

	m.EndSession("sess-1")
	assert.Zero(t, m.ActiveSessions())

	m.EndSession("sess-1") // idempotent
}

func TestManager_SessionStartEmitsTrigger(t *testing.T) {
	store := newMockStore()
	store.snapshot = domain.SignalSnapshot{shared.SignalVisits: 3}
	m, _ := newTestManager(t, store)

	require.NoError(t, m.StartSession(context.Background(), "sess-1", testUserID))

	// The session-started trigger alone arms and shows the popup.
	popup, err := m.Popup("sess-1")
	require.NoError(t, err)
	require.NotNil(t, popup)
	assert.Equal(t, shared.RuleID("survey"), popup.RuleID)
}

func TestManager_EmitAfterEndSessionIsDropped(t *testing.T) {
	store := newMockStore()
	store.snapshot = domain.SignalSnapshot{shared.SignalVisits: 3}
	m, _ := newTestManager(t, store)

	require.NoError(t, m.StartSession(context.Background(), "sess-1", testUserID))
	require.NoError(t, m.Dismiss(context.Background(), "sess-1"))
	m.EndSession("sess-1")

	m.Emit(shared.NewTriggerEvent(shared.TriggerPageViewed, "sess-1"))

	_, err := m.Popup("sess-1")
	assert.ErrorIs(t, err, shared.ErrInvalidState)
}

func TestManager_ResolutionRouting(t *testing.T) {
	store := newMockStore()
	store.snapshot = domain.SignalSnapshot{shared.SignalVisits: 3}
	m, _ := newTestManager(t, store)
	ctx := context.Background()

	require.NoError(t, m.StartSession(ctx, "sess-1", testUserID))
	require.NoError(t, m.SubmitInput(ctx, "sess-1", "great app"))

	require.Len(t, store.outcomeCalls, 1)
	assert.Equal(t, domain.OutcomeSubmitted, store.outcomeCalls[0].outcome)

	popup, err := m.Popup("sess-1")
	require.NoError(t, err)
	assert.Nil(t, popup)
}

func TestManager_UnknownSession(t *testing.T) {
	store := newMockStore()
	m, _ := newTestManager(t, store)
	ctx := context.Background()

	assert.ErrorIs(t, m.Dismiss(ctx, "ghost"), shared.ErrInvalidState)
	assert.ErrorIs(t, m.Click(ctx, "ghost"), shared.ErrInvalidState)
	assert.ErrorIs(t, m.SubmitInput(ctx, "ghost", "x"), shared.ErrInvalidState)

	_, err := m.BusStats("ghost")
	assert.Error(t, err)
}

func TestManager_InvalidStartArguments(t *testing.T) {
	store := newMockStore()
	m, _ := newTestManager(t, store)
	ctx := context.Background()

	assert.Error(t, m.StartSession(ctx, "", testUserID))
	assert.ErrorIs(t, m.StartSession(ctx, "sess-1", "not-a-uuid"), shared.ErrUnauthorized)
}

func TestManager_Shutdown(t *testing.T) {
	store := newMockStore()
	m, _ := newTestManager(t, store)
	ctx := context.Background()

	require.NoError(t, m.StartSession(ctx, "sess-1", testUserID))
	require.NoError(t, m.StartSession(ctx, "sess-2", testUserID))
	require.Equal(t, 2, m.ActiveSessions())

	m.Shutdown()
	assert.Zero(t, m.ActiveSessions())
}

func TestManager_BusStatsCountEmissions(t *testing.T) {
	store := newMockStore()
	m, _ := newTestManager(t, store)

	require.NoError(t, m.StartSession(context.Background(), "sess-1", testUserID))
	m.Emit(shared.NewTriggerEvent(shared.TriggerRecordCreated, "sess-1"))
	m.Emit(shared.NewTriggerEvent(shared.TriggerRecordCreated, "sess-1"))

	stats, err := m.BusStats("sess-1")
	require.NoError(t, err)
	// session-started plus two record-created events
	assert.Equal(t, int64(3), stats.Emitted)
	assert.Equal(t, int64(2), stats.ByTrigger[shared.TriggerRecordCreated])
}
