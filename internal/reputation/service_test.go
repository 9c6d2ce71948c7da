package reputation

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"fraud-advisor/backend/pkg/cache"
	"fraud-advisor/backend/pkg/logger"
	"fraud-advisor/backend/pkg/secrets"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticSecrets map[string]string

func (s staticSecrets) GetSecret(_ context.Context, key string) (string, error) {
	if v, ok := s[key]; ok {
		return v, nil
	}
	return "", secrets.ErrSecretNotFound
}

func (s staticSecrets) GetSecretWithDefault(ctx context.Context, key, def string) string {
	if v, err := s.GetSecret(ctx, key); err == nil {
		return v
	}
	return def
}

func newService(t *testing.T, srv *httptest.Server, cfg Config, sm secrets.Manager) *Service {
	t.Helper()
	cfg.HIBPURL = srv.URL
	cfg.AbuseIPDBURL = srv.URL
	cfg.PhishScanURL = srv.URL
	cfg.RatePerSecond = 1000
	c := cache.NewCache(0, 0)
	t.Cleanup(c.Close)
	return New(cfg, c, sm, logger.NewNop())
}

func TestBreachedAccountNotFoundIsEmpty(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "/breachedaccount/clean@example.com", r.URL.Path)
		assert.Equal(t, "hibp-key", r.Header.Get("hibp-api-key"))
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	s := newService(t, srv, Config{HIBPKey: "hibp-key"}, nil)

	breaches, err := s.BreachedAccount(context.Background(), "Clean@Example.com")
	require.NoError(t, err)
	assert.Empty(t, breaches)
	assert.NotNil(t, breaches)
}

func TestBreachedAccountIsCached(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_ = json.NewEncoder(w).Encode([]Breach{{Name: "Adobe", Domain: "adobe.com", PwnCount: 152445165}})
	}))
	defer srv.Close()

	s := newService(t, srv, Config{HIBPKey: "k", CacheTTL: time.Minute}, nil)

	for i := 0; i < 3; i++ {
		breaches, err := s.BreachedAccount(context.Background(), "victim@example.com")
		require.NoError(t, err)
		require.Len(t, breaches, 1)
		assert.Equal(t, "Adobe", breaches[0].Name)
	}
	assert.Equal(t, int32(1), hits.Load())
}

func TestMissingKeyIsNotConfigured(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("provider must not be called without a key")
	}))
	defer srv.Close()

	s := newService(t, srv, Config{}, staticSecrets{})

	_, err := s.BreachedAccount(context.Background(), "a@example.com")
	assert.ErrorIs(t, err, ErrNotConfigured)
	_, err = s.CheckIP(context.Background(), "1.2.3.4")
	assert.ErrorIs(t, err, ErrNotConfigured)
	_, err = s.CheckURL(context.Background(), "https://example.com")
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestKeyFromSecretStore(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "from-vault", r.Header.Get("Key"))
		assert.Equal(t, "8.8.8.8", r.URL.Query().Get("ipAddress"))
		assert.Equal(t, "90", r.URL.Query().Get("maxAgeInDays"))
		_, _ = w.Write([]byte(`{"data":{"ipAddress":"8.8.8.8","isPublic":true,"ipVersion":4,"abuseConfidenceScore":7,"totalReports":3,"countryCode":"US"}}`))
	}))
	defer srv.Close()

	s := newService(t, srv, Config{}, staticSecrets{"abuseipdb-api-key": "from-vault"})

	report, err := s.CheckIP(context.Background(), " 8.8.8.8 ")
	require.NoError(t, err)
	assert.Equal(t, "8.8.8.8", report.IPAddress)
	assert.Equal(t, 7, report.AbuseConfidenceScore)
	assert.Equal(t, 3, report.TotalReports)
	assert.Equal(t, "US", report.CountryCode)
	assert.Equal(t, "abuseipdb", report.Source)
	assert.NotNil(t, report.Hostnames)
}

func TestCheckURLPostsPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/phish", r.URL.Path)
		assert.Equal(t, "Bearer zk", r.Header.Get("Authorization"))

		var body phishScanRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "https://paypa1-login.example/verify", body.URL)
		assert.True(t, body.IncludeRedirects)

		_, _ = w.Write([]byte(`{"result":{"is_phishing":true,"confidence":0.97,"category":"phishing","threat_level":"high"}}`))
	}))
	defer srv.Close()

	s := newService(t, srv, Config{PhishScanKey: "zk"}, nil)

	report, err := s.CheckURL(context.Background(), "https://paypa1-login.example/verify")
	require.NoError(t, err)
	assert.True(t, report.IsPhishing)
	assert.InDelta(t, 0.97, report.Confidence, 1e-9)
	assert.Equal(t, "high", report.ThreatLevel)
	assert.Equal(t, "https://paypa1-login.example/verify", report.URL)
	assert.Equal(t, "zvelo_phishscan", report.Source)
}

func TestUpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	s := newService(t, srv, Config{HIBPKey: "k"}, nil)

	_, err := s.BreachedAccount(context.Background(), "a@example.com")
	assert.ErrorIs(t, err, ErrUpstream)
}

func TestInvalidInput(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("invalid input must not reach the provider")
	}))
	defer srv.Close()

	s := newService(t, srv, Config{HIBPKey: "k", AbuseIPDBKey: "k", PhishScanKey: "k"}, nil)
	ctx := context.Background()

	_, err := s.BreachedAccount(ctx, "not-an-email")
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = s.BreachedAccount(ctx, "Bob <bob@example.com>")
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = s.CheckIP(ctx, "999.1.1.1")
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = s.CheckURL(ctx, "ftp://example.com/file")
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = s.CheckURL(ctx, "https://")
	assert.ErrorIs(t, err, ErrInvalidInput)
}
