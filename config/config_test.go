package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "fleetcheck-engage-hub", cfg.App.Name)
	assert.Equal(t, EnvDevelopment, cfg.App.Environment)
	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.Equal(t, 5*time.Second, cfg.Engine.EvalTimeout)
	assert.Equal(t, 30*time.Minute, cfg.Engine.SessionTTL)
	assert.Empty(t, cfg.Auth.Keys)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("ENGINE_EVAL_TIMEOUT", "2s")
	t.Setenv("CATALOG_PATH", "/etc/engage/rules.json")
	t.Setenv("API_KEYS", "frontend:$2a$10$abc:driver, admin:$2a$10$def:owner")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.HTTP.Port)
	assert.Equal(t, 2*time.Second, cfg.Engine.EvalTimeout)
	assert.Equal(t, "/etc/engage/rules.json", cfg.Catalog.Path)

	require.Len(t, cfg.Auth.Keys, 2)
	assert.Equal(t, "frontend", cfg.Auth.Keys[0].ID)
	assert.Equal(t, "driver", cfg.Auth.Keys[0].Role)
	assert.Equal(t, "admin", cfg.Auth.Keys[1].ID)
}

func TestLoad_MalformedAPIKeys(t *testing.T) {
	t.Setenv("API_KEYS", "frontend-no-separator")

	_, err := Load()
	assert.Error(t, err)
}

func TestValidate_ProductionRequirements(t *testing.T) {
	t.Setenv("APP_ENV", "production")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL is required")
	assert.Contains(t, err.Error(), "API_KEYS is required")
}

func TestFeatureFlags_RolloutIsConsistent(t *testing.T) {
	ff := LoadFeatureFlags()
	require.NoError(t, ff.SetRolloutPercent(FeaturePopupUpsell, 50))

	ctx := &FeatureContext{UserID: "6f1e8f7a-1b2c-4d3e-9f0a-1b2c3d4e5f60"}
	first := ff.IsEnabled(FeaturePopupUpsell, ctx)
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, ff.IsEnabled(FeaturePopupUpsell, ctx))
	}
}

func TestFeatureFlags_UserOverrideWins(t *testing.T) {
	ff := LoadFeatureFlags()
	require.NoError(t, ff.DisableFeature(FeaturePopupSurveys))

	ctx := &FeatureContext{UserID: "pinned-user"}
	assert.False(t, ff.IsEnabled(FeaturePopupSurveys, ctx))

	ff.SetUserOverride("pinned-user", FeaturePopupSurveys, true)
	assert.True(t, ff.IsEnabled(FeaturePopupSurveys, ctx))

	ff.ClearUserOverrides("pinned-user")
	assert.False(t, ff.IsEnabled(FeaturePopupSurveys, ctx))
}

func TestFeatureFlags_EnvRollout(t *testing.T) {
	t.Setenv("FEATURE_POPUPS_UPSELL", "0")

	ff := LoadFeatureFlags()
	assert.False(t, ff.IsEnabled(FeaturePopupUpsell, nil))

	t.Setenv("FEATURE_POPUPS_UPSELL", "true")
	ff = LoadFeatureFlags()
	assert.True(t, ff.IsEnabled(FeaturePopupUpsell, nil))
}
