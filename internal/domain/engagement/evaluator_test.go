package engagement

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetcheck/engage-hub/internal/domain/rule"
	"github.com/fleetcheck/engage-hub/internal/domain/shared"
)

func intPtr(v int) *int           { return &v }
func hoursPtr(v float64) *float64 { return &v }

func testCatalog(t *testing.T, rules []rule.Rule) *rule.Catalog {
	t.Helper()
	c, err := rule.NewCatalog(rules, nil)
	require.NoError(t, err)
	return c
}

func TestEvaluate_ConditionsMet(t *testing.T) {
	catalog := testCatalog(t, []rule.Rule{
		{
			ID:       "survey",
			Priority: 100,
			Conditions: map[shared.SignalName]float64{
				shared.SignalVisits:     3,
				shared.SignalDataInputs: 2,
			},
		},
	})

	snapshot := SignalSnapshot{
		shared.SignalVisits:     3,
		shared.SignalDataInputs: 5,
	}

	winner := Evaluate(catalog, snapshot, nil, time.Now())

	require.NotNil(t, winner)
	assert.Equal(t, shared.RuleID("survey"), winner.ID)
}

func TestEvaluate_ThresholdIsInclusive(t *testing.T) {
	catalog := testCatalog(t, []rule.Rule{
		{
			ID:         "survey",
			Priority:   10,
			Conditions: map[shared.SignalName]float64{shared.SignalVisits: 3},
		},
	})

	tests := []struct {
		name   string
		visits float64
		fires  bool
	}{
		{"below threshold", 2, false},
		{"exactly at threshold", 3, true},
		{"above threshold", 4, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snapshot := SignalSnapshot{shared.SignalVisits: tt.visits}
			winner := Evaluate(catalog, snapshot, nil, time.Now())
			if tt.fires {
				assert.NotNil(t, winner)
			} else {
				assert.Nil(t, winner)
			}
		})
	}
}

func TestEvaluate_AbsentSignalFailsCondition(t *testing.T) {
	catalog := testCatalog(t, []rule.Rule{
		{
			ID:       "survey",
			Priority: 100,
			Conditions: map[shared.SignalName]float64{
				shared.SignalVisits:     1,
				shared.SignalChecklists: 1,
			},
		},
	})

	// Checklists signal is missing from the snapshot entirely. The rule
	// must not fire even though visits are satisfied.
	snapshot := SignalSnapshot{shared.SignalVisits: 10}

	assert.Nil(t, Evaluate(catalog, snapshot, nil, time.Now()))
}

func TestEvaluate_DisplayCapExcludesRule(t *testing.T) {
	catalog := testCatalog(t, []rule.Rule{
		{
			ID:          "capped",
			Priority:    100,
			Conditions:  map[shared.SignalName]float64{shared.SignalVisits: 1},
			MaxDisplays: intPtr(3),
		},
		{
			ID:         "fallback",
			Priority:   50,
			Conditions: map[shared.SignalName]float64{shared.SignalVisits: 1},
		},
	})

	snapshot := SignalSnapshot{shared.SignalVisits: 5}
	now := time.Now()

	records := map[shared.RuleID]DisplayRecord{
		"capped": {RuleID: "capped", TimesShown: 2, LastShownAt: now.Add(-48 * time.Hour)},
	}
	winner := Evaluate(catalog, snapshot, records, now)
	require.NotNil(t, winner)
	assert.Equal(t, shared.RuleID("capped"), winner.ID, "under the cap the higher priority rule wins")

	records["capped"] = DisplayRecord{RuleID: "capped", TimesShown: 3, LastShownAt: now.Add(-48 * time.Hour)}
	winner = Evaluate(catalog, snapshot, records, now)
	require.NotNil(t, winner)
	assert.Equal(t, shared.RuleID("fallback"), winner.ID, "at the cap the rule is excluded for good")
}

func TestEvaluate_CooldownExcludesRule(t *testing.T) {
	catalog := testCatalog(t, []rule.Rule{
		{
			ID:            "cooled",
			Priority:      100,
			Conditions:    map[shared.SignalName]float64{shared.SignalVisits: 1},
			CooldownHours: hoursPtr(24),
		},
	})

	snapshot := SignalSnapshot{shared.SignalVisits: 5}
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		lastShown time.Time
		fires     bool
	}{
		{"shown one hour ago", now.Add(-1 * time.Hour), false},
		{"shown just inside the window", now.Add(-24*time.Hour + time.Second), false},
		{"shown exactly at the boundary", now.Add(-24 * time.Hour), true},
		{"shown two days ago", now.Add(-48 * time.Hour), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records := map[shared.RuleID]DisplayRecord{
				"cooled": {RuleID: "cooled", TimesShown: 1, LastShownAt: tt.lastShown},
			}
			winner := Evaluate(catalog, snapshot, records, now)
			if tt.fires {
				assert.NotNil(t, winner)
			} else {
				assert.Nil(t, winner)
			}
		})
	}
}

func TestEvaluate_ZeroCooldownNeverBlocks(t *testing.T) {
	catalog := testCatalog(t, []rule.Rule{
		{
			ID:            "eager",
			Priority:      10,
			Conditions:    map[shared.SignalName]float64{shared.SignalVisits: 1},
			CooldownHours: hoursPtr(0),
		},
	})

	now := time.Now()
	records := map[shared.RuleID]DisplayRecord{
		"eager": {RuleID: "eager", TimesShown: 1, LastShownAt: now},
	}

	assert.NotNil(t, Evaluate(catalog, SignalSnapshot{shared.SignalVisits: 1}, records, now))
}

func TestEvaluate_HighestPriorityWins(t *testing.T) {
	catalog := testCatalog(t, []rule.Rule{
		{ID: "low", Priority: 10, Conditions: map[shared.SignalName]float64{shared.SignalVisits: 1}},
		{ID: "high", Priority: 90, Conditions: map[shared.SignalName]float64{shared.SignalVisits: 1}},
		{ID: "mid", Priority: 50, Conditions: map[shared.SignalName]float64{shared.SignalVisits: 1}},
	})

	winner := Evaluate(catalog, SignalSnapshot{shared.SignalVisits: 2}, nil, time.Now())

	require.NotNil(t, winner)
	assert.Equal(t, shared.RuleID("high"), winner.ID)
}

func TestEvaluate_TieBreaksByDeclarationOrder(t *testing.T) {
	catalog := testCatalog(t, []rule.Rule{
		{ID: "first", Priority: 50, Conditions: map[shared.SignalName]float64{shared.SignalVisits: 1}},
		{ID: "second", Priority: 50, Conditions: map[shared.SignalName]float64{shared.SignalVisits: 1}},
	})

	winner := Evaluate(catalog, SignalSnapshot{shared.SignalVisits: 2}, nil, time.Now())

	require.NotNil(t, winner)
	assert.Equal(t, shared.RuleID("first"), winner.ID)
}

func TestEvaluate_NoEligibleRule(t *testing.T) {
	catalog := testCatalog(t, []rule.Rule{
		{ID: "survey", Priority: 100, Conditions: map[shared.SignalName]float64{shared.SignalVisits: 100}},
	})

	assert.Nil(t, Evaluate(catalog, SignalSnapshot{shared.SignalVisits: 1}, nil, time.Now()))
	assert.Nil(t, Evaluate(catalog, SignalSnapshot{}, nil, time.Now()))
}

func TestEvaluate_Deterministic(t *testing.T) {
	catalog := testCatalog(t, []rule.Rule{
		{ID: "a", Priority: 30, Conditions: map[shared.SignalName]float64{shared.SignalVisits: 1}},
		{ID: "b", Priority: 30, Conditions: map[shared.SignalName]float64{shared.SignalVisits: 1}},
		{ID: "c", Priority: 20, Conditions: map[shared.SignalName]float64{shared.SignalVisits: 1}},
	})

	snapshot := SignalSnapshot{shared.SignalVisits: 5}
	now := time.Now()

	first := Evaluate(catalog, snapshot, nil, now)
	require.NotNil(t, first)
	for i := 0; i < 100; i++ {
		again := Evaluate(catalog, snapshot, nil, now)
		require.NotNil(t, again)
		assert.Equal(t, first.ID, again.ID)
	}
}

func TestEvaluate_VacuousRuleAlwaysEligible(t *testing.T) {
	catalog := testCatalog(t, []rule.Rule{
		{ID: "always", Priority: 1},
	})

	winner := Evaluate(catalog, SignalSnapshot{}, nil, time.Now())

	require.NotNil(t, winner)
	assert.Equal(t, shared.RuleID("always"), winner.ID)
}

func TestEligibleRules_PreservesDeclarationOrder(t *testing.T) {
	catalog := testCatalog(t, []rule.Rule{
		{ID: "a", Priority: 10, Conditions: map[shared.SignalName]float64{shared.SignalVisits: 1}},
		{ID: "b", Priority: 90, Conditions: map[shared.SignalName]float64{shared.SignalVisits: 99}},
		{ID: "c", Priority: 50, Conditions: map[shared.SignalName]float64{shared.SignalVisits: 1}},
	})

	eligible := EligibleRules(catalog, SignalSnapshot{shared.SignalVisits: 5}, nil, time.Now())

	require.Len(t, eligible, 2)
	assert.Equal(t, shared.RuleID("a"), eligible[0].ID)
	assert.Equal(t, shared.RuleID("c"), eligible[1].ID)
}

func TestDisplayRecord_ZeroValueSemantics(t *testing.T) {
	var rec DisplayRecord

	assert.True(t, rec.NeverShown())
	assert.False(t, rec.CapReached(intPtr(1)))
	assert.False(t, rec.CapReached(nil))
	assert.False(t, rec.InCooldown(24*time.Hour, time.Now()))
}
