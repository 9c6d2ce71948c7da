// Package reputation is a thin pass-through to breach, IP and phishing
// lookup providers. Results are cached and never feed risk scoring.
package reputation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"fraud-advisor/backend/pkg/cache"
	"fraud-advisor/backend/pkg/logger"
	"fraud-advisor/backend/pkg/secrets"

	"golang.org/x/time/rate"
)

var (
	// ErrNotConfigured means the provider has no API key
	ErrNotConfigured = errors.New("reputation provider is not configured")
	ErrInvalidInput  = errors.New("invalid lookup input")
	// ErrUpstream wraps provider failures
	ErrUpstream = errors.New("reputation provider request failed")
)

// errNotFound is a provider 404; callers decide what it means
var errNotFound = errors.New("not found")

// provider is one rate-limited, cached upstream API
type provider struct {
	name      string
	baseURL   string
	key       string
	secretKey string
	auth      func(h http.Header, key string)

	httpClient *http.Client
	limiter    *rate.Limiter
	cache      cache.Store
	ttl        time.Duration
	secrets    secrets.Manager
	log        *logger.Logger
}

// apiKey prefers the configured key, then the secret store
func (p *provider) apiKey(ctx context.Context) (string, error) {
	if p.key != "" {
		return p.key, nil
	}
	if p.secrets != nil {
		if v, err := p.secrets.GetSecret(ctx, p.secretKey); err == nil && v != "" {
			return v, nil
		}
	}
	return "", ErrNotConfigured
}

// cached serves cacheKey from the cache or calls fetch and stores its result
func cached[T any](ctx context.Context, p *provider, cacheKey string, fetch func(ctx context.Context, key string) (T, error)) (T, error) {
	var zero T

	key, err := p.apiKey(ctx)
	if err != nil {
		return zero, err
	}

	cacheKey = "reputation:" + p.name + ":" + cacheKey
	if p.cache != nil {
		if raw, err := p.cache.Get(ctx, cacheKey); err == nil {
			var out T
			if err := json.Unmarshal(raw, &out); err == nil {
				return out, nil
			}
		} else if !errors.Is(err, cache.ErrMiss) {
			p.log.Warn("Reputation cache read failed", "provider", p.name, "error", err.Error())
		}
	}

	if err := p.limiter.Wait(ctx); err != nil {
		return zero, err
	}

	out, err := fetch(ctx, key)
	if err != nil {
		return zero, err
	}

	if p.cache != nil {
		if raw, err := json.Marshal(out); err == nil {
			if err := p.cache.Set(ctx, cacheKey, raw, p.ttl); err != nil {
				p.log.Warn("Reputation cache write failed", "provider", p.name, "error", err.Error())
			}
		}
	}
	return out, nil
}

// do sends one request and decodes a 200 body into out
func (p *provider) do(ctx context.Context, method, path, key string, payload any, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("error marshaling request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "fraud-advisor/1.0")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	p.auth(req.Header, key)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrUpstream, p.name, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return fmt.Errorf("%w: %s: reading body: %v", ErrUpstream, p.name, err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return errNotFound
	case resp.StatusCode != http.StatusOK:
		p.log.Warn("Reputation provider returned an error",
			"provider", p.name,
			"status", resp.StatusCode,
			"body", truncate(string(raw), 200),
		)
		return fmt.Errorf("%w: %s returned status %d", ErrUpstream, p.name, resp.StatusCode)
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: %s: decoding response: %v", ErrUpstream, p.name, err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func trimBase(u string) string {
	return strings.TrimRight(u, "/")
}
