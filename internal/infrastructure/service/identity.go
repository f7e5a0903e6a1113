package service

import (
	"context"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/fleetcheck/engage-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// API KEY AUTHENTICATION
// The fleet application's frontend and backend services call this hub with
// an API key of the form "<key-id>.<secret>". Secrets are stored bcrypt
// hashed so a leaked configuration dump does not leak usable credentials.
// ══════════════════════════════════════════════════════════════════════════════

// APIKey is one configured credential.
type APIKey struct {
	// ID is the public key identifier, the part before the dot.
	ID string

	// SecretHash is the bcrypt hash of the secret part.
	SecretHash string

	// Role restricts what the key may do.
	Role shared.Role
}

// KeyAuthenticator validates API keys against a fixed, startup-loaded set.
type KeyAuthenticator struct {
	keys map[string]APIKey
}

// NewKeyAuthenticator creates an authenticator from configured keys.
func NewKeyAuthenticator(keys []APIKey) (*KeyAuthenticator, error) {
	index := make(map[string]APIKey, len(keys))
	for _, k := range keys {
		if k.ID == "" || k.SecretHash == "" {
			return nil, shared.NewDomainError("identity", "NewKeyAuthenticator", shared.ErrConfig,
				"api key id and secret hash are required")
		}
		if _, dup := index[k.ID]; dup {
			return nil, shared.NewDomainError("identity", "NewKeyAuthenticator", shared.ErrConfig,
				"duplicate api key id "+k.ID)
		}
		index[k.ID] = k
	}
	return &KeyAuthenticator{keys: index}, nil
}

// Authenticate checks a presented key and returns its role.
func (a *KeyAuthenticator) Authenticate(ctx context.Context, presented string) (shared.Role, error) {
	id, secret, ok := strings.Cut(presented, ".")
	if !ok || id == "" || secret == "" {
		return "", shared.ErrUnauthorized
	}

	key, found := a.keys[id]
	if !found {
		// Burn a comparison anyway so unknown and wrong keys take the
		// same time.
		_ = bcrypt.CompareHashAndPassword([]byte("$2a$10$0000000000000000000000"), []byte(secret))
		return "", shared.ErrUnauthorized
	}

	if err := bcrypt.CompareHashAndPassword([]byte(key.SecretHash), []byte(secret)); err != nil {
		return "", shared.ErrUnauthorized
	}
	return key.Role, nil
}

// HashSecret hashes a plaintext secret for storage in configuration.
// Used by operators when provisioning a new key.
func HashSecret(secret string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
