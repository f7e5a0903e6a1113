package rule

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetcheck/engage-hub/internal/domain/shared"
)

func TestNewCatalog_DuplicateIDFails(t *testing.T) {
	_, err := NewCatalog([]Rule{
		{ID: "survey", Priority: 10},
		{ID: "survey", Priority: 20},
	}, nil)

	require.Error(t, err)
	assert.True(t, shared.IsConfig(err))
}

func TestNewCatalog_VacuousRuleIsAccepted(t *testing.T) {
	c, err := NewCatalog([]Rule{{ID: "always", Priority: 1}}, nil)

	require.NoError(t, err)
	assert.Equal(t, 1, c.Len())
}

func TestNewCatalog_PreservesDeclarationOrder(t *testing.T) {
	c, err := NewCatalog([]Rule{
		{ID: "third", Priority: 1},
		{ID: "first", Priority: 99},
		{ID: "second", Priority: 50},
	}, nil)
	require.NoError(t, err)

	rules := c.Rules()
	require.Len(t, rules, 3)
	assert.Equal(t, shared.RuleID("third"), rules[0].ID)
	assert.Equal(t, shared.RuleID("first"), rules[1].ID)
	assert.Equal(t, shared.RuleID("second"), rules[2].ID)
}

func TestCatalog_Find(t *testing.T) {
	c, err := NewCatalog([]Rule{{ID: "survey", Priority: 10}}, nil)
	require.NoError(t, err)

	r, ok := c.Find("survey")
	assert.True(t, ok)
	assert.Equal(t, shared.RuleID("survey"), r.ID)

	_, ok = c.Find("missing")
	assert.False(t, ok)
}

func TestRule_Validate(t *testing.T) {
	tests := []struct {
		name    string
		rule    Rule
		wantErr bool
	}{
		{
			name:    "valid rule",
			rule:    Rule{ID: "ok", Priority: 10, Conditions: map[shared.SignalName]float64{shared.SignalVisits: 1}},
			wantErr: false,
		},
		{
			name:    "empty id",
			rule:    Rule{Priority: 10},
			wantErr: true,
		},
		{
			name:    "zero max displays",
			rule:    Rule{ID: "bad", MaxDisplays: intPtr(0)},
			wantErr: true,
		},
		{
			name:    "negative cooldown",
			rule:    Rule{ID: "bad", CooldownHours: hoursPtr(-1)},
			wantErr: true,
		},
		{
			name:    "negative threshold",
			rule:    Rule{ID: "bad", Conditions: map[shared.SignalName]float64{shared.SignalVisits: -1}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.rule.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRule_Cooldown(t *testing.T) {
	r := Rule{ID: "x", CooldownHours: hoursPtr(1.5)}
	assert.Equal(t, 90*60, int(r.Cooldown().Seconds()))

	none := Rule{ID: "y"}
	assert.Zero(t, none.Cooldown())
	assert.False(t, none.HasCooldown())
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.json")

	payload := `[
		{
			"id": "nps_after_usage",
			"priority": 100,
			"conditions": {"visits": 3, "dataInputs": 2},
			"maxDisplays": 3,
			"cooldownHours": 24,
			"presentation": {"title": "How are we doing?"},
			"input": {"required": true, "placeholder": "Tell us"}
		},
		{
			"id": "upsell",
			"priority": 80,
			"conditions": {"vehicles": 3},
			"presentation": {"title": "Upgrade", "ctaLabel": "See plans", "ctaUrl": "/billing"}
		}
	]`
	require.NoError(t, os.WriteFile(path, []byte(payload), 0o600))

	c, err := LoadFile(path, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, c.Len())

	nps, ok := c.Find("nps_after_usage")
	require.True(t, ok)
	assert.True(t, nps.RequiresInput())
	require.NotNil(t, nps.MaxDisplays)
	assert.Equal(t, 3, *nps.MaxDisplays)
	assert.InDelta(t, 3, nps.Conditions[shared.SignalVisits], 0.001)

	upsell, ok := c.Find("upsell")
	require.True(t, ok)
	assert.False(t, upsell.AcceptsInput())
	assert.Equal(t, "/billing", upsell.Presentation.CTAURL)
}

func TestLoadFile_InvalidJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := LoadFile(path, nil)
	require.Error(t, err)
	assert.True(t, shared.IsConfig(err))
}

func TestDefaultCatalog(t *testing.T) {
	c, err := DefaultCatalog(nil)
	require.NoError(t, err)
	assert.Equal(t, 3, c.Len())

	_, ok := c.Find("nps_after_usage")
	assert.True(t, ok)
}
