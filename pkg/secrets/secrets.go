package secrets

import (
	"context"
	"errors"
	"os"
	"strings"
)

// Manager provides access to secrets from various sources
type Manager interface {
	// GetSecret retrieves a secret by key
	GetSecret(ctx context.Context, key string) (string, error)

	// GetSecretWithDefault retrieves a secret with a default value if not found
	GetSecretWithDefault(ctx context.Context, key, defaultValue string) string
}

// Common errors
var (
	ErrSecretNotFound = errors.New("secret not found")
	ErrNoVaultToken   = errors.New("no vault token provided")
)

// EnvManager reads secrets from the process environment only
type EnvManager struct{}

// GetSecret maps "hibp-api-key" to HIBP_API_KEY
func (EnvManager) GetSecret(_ context.Context, key string) (string, error) {
	value := os.Getenv(envKey(key))
	if value == "" {
		return "", ErrSecretNotFound
	}
	return value, nil
}

func (m EnvManager) GetSecretWithDefault(ctx context.Context, key, defaultValue string) string {
	if v, err := m.GetSecret(ctx, key); err == nil {
		return v
	}
	return defaultValue
}

func envKey(key string) string {
	return strings.ToUpper(strings.NewReplacer("-", "_", ".", "_").Replace(key))
}
