package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetcheck/engage-hub/internal/domain/engagement"
	"github.com/fleetcheck/engage-hub/internal/domain/shared"
)

const testUser = shared.UserID("6f1e8f7a-1b2c-4d3e-9f0a-1b2c3d4e5f60")

type fakeAggregator struct {
	snapshot engagement.SignalSnapshot
	err      error
	calls    int
}

func (f *fakeAggregator) Snapshot(ctx context.Context, userID shared.UserID) (engagement.SignalSnapshot, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.snapshot, nil
}

type fakeDisplays struct {
	records  map[shared.RuleID]engagement.DisplayRecord
	shown    int
	outcomes []engagement.Outcome
}

func (f *fakeDisplays) DisplayRecord(ctx context.Context, userID shared.UserID, ruleID shared.RuleID) (engagement.DisplayRecord, error) {
	return f.records[ruleID], nil
}

func (f *fakeDisplays) DisplayRecords(ctx context.Context, userID shared.UserID) (map[shared.RuleID]engagement.DisplayRecord, error) {
	return f.records, nil
}

func (f *fakeDisplays) RecordShown(ctx context.Context, userID shared.UserID, ruleID shared.RuleID, shownAt time.Time) error {
	f.shown++
	return nil
}

func (f *fakeDisplays) RecordOutcome(ctx context.Context, userID shared.UserID, ruleID shared.RuleID, outcome engagement.Outcome, payload string) error {
	f.outcomes = append(f.outcomes, outcome)
	return nil
}

func (f *fakeDisplays) ListFeedback(ctx context.Context, userID shared.UserID, limit int) ([]engagement.Feedback, error) {
	return nil, nil
}

func newStore(t *testing.T, agg *fakeAggregator, disp *fakeDisplays) *CompositeSignalStore {
	t.Helper()
	store, err := NewCompositeSignalStore(CompositeSignalStoreConfig{
		Aggregator: agg,
		Displays:   disp,
	})
	require.NoError(t, err)
	return store
}

func TestCompositeStore_SnapshotFromAggregator(t *testing.T) {
	agg := &fakeAggregator{snapshot: engagement.SignalSnapshot{shared.SignalVehicles: 4}}
	store := newStore(t, agg, &fakeDisplays{})

	snapshot, err := store.Snapshot(context.Background(), testUser)

	require.NoError(t, err)
	assert.InDelta(t, 4, snapshot[shared.SignalVehicles], 0.001)
}

func TestCompositeStore_SnapshotFailureWithoutFallback(t *testing.T) {
	agg := &fakeAggregator{err: errors.New("connection refused")}
	store := newStore(t, agg, &fakeDisplays{})

	_, err := store.Snapshot(context.Background(), testUser)

	require.Error(t, err)
	assert.True(t, shared.IsPersistence(err))
}

func TestCompositeStore_BreakerOpensAfterRepeatedFailures(t *testing.T) {
	agg := &fakeAggregator{err: errors.New("connection refused")}
	store := newStore(t, agg, &fakeDisplays{})
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, _ = store.Snapshot(ctx, testUser)
	}

	// Once the breaker is open the aggregator stops being called.
	before := agg.calls
	_, err := store.Snapshot(ctx, testUser)
	require.Error(t, err)
	assert.Equal(t, before, agg.calls)
}

func TestCompositeStore_DisplayDelegation(t *testing.T) {
	disp := &fakeDisplays{records: map[shared.RuleID]engagement.DisplayRecord{
		"survey": {RuleID: "survey", TimesShown: 2},
	}}
	store := newStore(t, &fakeAggregator{}, disp)
	ctx := context.Background()

	rec, err := store.DisplayRecord(ctx, testUser, "survey")
	require.NoError(t, err)
	assert.Equal(t, 2, rec.TimesShown)

	require.NoError(t, store.RecordShown(ctx, testUser, "survey", time.Now()))
	assert.Equal(t, 1, disp.shown)

	require.NoError(t, store.RecordOutcome(ctx, testUser, "survey", engagement.OutcomeClicked, ""))
	assert.Equal(t, []engagement.Outcome{engagement.OutcomeClicked}, disp.outcomes)
}

func TestCompositeStore_RequiresDependencies(t *testing.T) {
	_, err := NewCompositeSignalStore(CompositeSignalStoreConfig{})
	require.Error(t, err)
	assert.True(t, shared.IsConfig(err))
}
