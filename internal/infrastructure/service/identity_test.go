package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetcheck/engage-hub/internal/domain/shared"
)

func TestKeyAuthenticator(t *testing.T) {
	hash, err := HashSecret("s3cret")
	require.NoError(t, err)

	auth, err := NewKeyAuthenticator([]APIKey{
		{ID: "frontend", SecretHash: hash, Role: shared.RoleDriver},
	})
	require.NoError(t, err)
	ctx := context.Background()

	role, err := auth.Authenticate(ctx, "frontend.s3cret")
	require.NoError(t, err)
	assert.Equal(t, shared.RoleDriver, role)

	for _, bad := range []string{"frontend.wrong", "unknown.s3cret", "frontend", "", ".s3cret", "frontend."} {
		_, err := auth.Authenticate(ctx, bad)
		assert.ErrorIs(t, err, shared.ErrUnauthorized, "key %q", bad)
	}
}

func TestNewKeyAuthenticator_RejectsBadConfig(t *testing.T) {
	_, err := NewKeyAuthenticator([]APIKey{{ID: "", SecretHash: "x"}})
	assert.True(t, shared.IsConfig(err))

	hash, _ := HashSecret("a")
	_, err = NewKeyAuthenticator([]APIKey{
		{ID: "dup", SecretHash: hash},
		{ID: "dup", SecretHash: hash},
	})
	assert.True(t, shared.IsConfig(err))
}
