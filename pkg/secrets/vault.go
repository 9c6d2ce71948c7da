package secrets

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"fraud-advisor/backend/pkg/logger"

	vault "github.com/hashicorp/vault/api"
)

// VaultConfig holds configuration for Vault client
type VaultConfig struct {
	Address    string
	Token      string
	Namespace  string
	Timeout    time.Duration
	MaxRetries int
	// SecretPath is "<mount>/data/<name>", e.g. secret/data/fraud-advisor
	SecretPath string
	CacheTTL   time.Duration
}

// kvReader is the slice of the vault KV v2 API we depend on
type kvReader interface {
	Get(ctx context.Context, secretPath string) (*vault.KVSecret, error)
}

type cached struct {
	value   string
	expires time.Time
}

// VaultManager reads one KV v2 secret document and falls back to the environment
type VaultManager struct {
	kv       kvReader
	name     string
	fallback Manager
	cache    map[string]cached
	mu       sync.RWMutex
	log      *logger.Logger
	cacheTTL time.Duration
}

// NewVaultManager creates a new Vault manager instance
func NewVaultManager(cfg VaultConfig, log *logger.Logger) (*VaultManager, error) {
	if cfg.Token == "" {
		return nil, ErrNoVaultToken
	}
	if cfg.SecretPath == "" {
		cfg.SecretPath = "secret/data/fraud-advisor"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}

	vaultConfig := vault.DefaultConfig()
	vaultConfig.Address = cfg.Address
	vaultConfig.Timeout = cfg.Timeout
	vaultConfig.MaxRetries = cfg.MaxRetries

	client, err := vault.NewClient(vaultConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}

	client.SetToken(cfg.Token)
	if cfg.Namespace != "" {
		client.SetNamespace(cfg.Namespace)
	}

	mount, name := splitPath(cfg.SecretPath)
	return newVaultManager(client.KVv2(mount), name, cfg.CacheTTL, log), nil
}

func newVaultManager(kv kvReader, name string, ttl time.Duration, log *logger.Logger) *VaultManager {
	if ttl == 0 {
		ttl = 5 * time.Minute
	}
	return &VaultManager{
		kv:       kv,
		name:     name,
		fallback: EnvManager{},
		cache:    make(map[string]cached),
		log:      log,
		cacheTTL: ttl,
	}
}

// splitPath turns "secret/data/fraud-advisor" into ("secret", "fraud-advisor")
func splitPath(p string) (mount, name string) {
	p = strings.Trim(p, "/")
	if i := strings.Index(p, "/data/"); i >= 0 {
		return p[:i], p[i+len("/data/"):]
	}
	if i := strings.Index(p, "/"); i >= 0 {
		return p[:i], p[i+1:]
	}
	return "secret", p
}

// GetSecret retrieves a secret from Vault, with fallback to environment variable
func (m *VaultManager) GetSecret(ctx context.Context, key string) (string, error) {
	m.mu.RLock()
	c, found := m.cache[key]
	m.mu.RUnlock()
	if found && time.Now().Before(c.expires) {
		return c.value, nil
	}

	value, err := m.getFromVault(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrSecretNotFound) {
			m.log.Warn("Vault lookup failed, falling back to environment", "key", key, "error", err.Error())
		}
		value, err = m.fallback.GetSecret(ctx, key)
		if err != nil {
			return "", err
		}
	}

	m.mu.Lock()
	m.cache[key] = cached{value: value, expires: time.Now().Add(m.cacheTTL)}
	m.mu.Unlock()

	return value, nil
}

// GetSecretWithDefault retrieves a secret with a default value if not found
func (m *VaultManager) GetSecretWithDefault(ctx context.Context, key, defaultValue string) string {
	value, err := m.GetSecret(ctx, key)
	if err != nil {
		return defaultValue
	}
	return value
}

func (m *VaultManager) getFromVault(ctx context.Context, key string) (string, error) {
	secret, err := m.kv.Get(ctx, m.name)
	if err != nil {
		if errors.Is(err, vault.ErrSecretNotFound) {
			return "", ErrSecretNotFound
		}
		return "", fmt.Errorf("failed to read secret: %w", err)
	}
	if secret == nil || secret.Data == nil {
		return "", ErrSecretNotFound
	}

	value, ok := secret.Data[key].(string)
	if !ok || value == "" {
		return "", ErrSecretNotFound
	}
	return value, nil
}
