package secrets

import (
	"context"
	"errors"
	"testing"
	"time"

	"fraud-advisor/backend/pkg/logger"

	vault "github.com/hashicorp/vault/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeKV struct {
	data  map[string]interface{}
	err   error
	calls int
}

func (f *fakeKV) Get(context.Context, string) (*vault.KVSecret, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &vault.KVSecret{Data: f.data}, nil
}

func TestVaultValueIsCached(t *testing.T) {
	kv := &fakeKV{data: map[string]interface{}{"hibp-api-key": "from-vault"}}
	m := newVaultManager(kv, "fraud-advisor", time.Minute, logger.NewNop())

	for i := 0; i < 3; i++ {
		v, err := m.GetSecret(context.Background(), "hibp-api-key")
		require.NoError(t, err)
		assert.Equal(t, "from-vault", v)
	}
	assert.Equal(t, 1, kv.calls)
}

func TestVaultFallsBackToEnv(t *testing.T) {
	t.Setenv("ABUSEIPDB_API_KEY", "from-env")
	kv := &fakeKV{err: errors.New("connection refused")}
	m := newVaultManager(kv, "fraud-advisor", time.Minute, logger.NewNop())

	v, err := m.GetSecret(context.Background(), "abuseipdb-api-key")
	require.NoError(t, err)
	assert.Equal(t, "from-env", v)
}

func TestVaultMissingEverywhere(t *testing.T) {
	kv := &fakeKV{data: map[string]interface{}{}}
	m := newVaultManager(kv, "fraud-advisor", time.Minute, logger.NewNop())

	_, err := m.GetSecret(context.Background(), "does-not-exist-key")
	assert.ErrorIs(t, err, ErrSecretNotFound)
	assert.Equal(t, "dflt", m.GetSecretWithDefault(context.Background(), "does-not-exist-key", "dflt"))
}

func TestSplitPath(t *testing.T) {
	mount, name := splitPath("secret/data/fraud-advisor")
	assert.Equal(t, "secret", mount)
	assert.Equal(t, "fraud-advisor", name)

	mount, name = splitPath("kv/app")
	assert.Equal(t, "kv", mount)
	assert.Equal(t, "app", name)
}
