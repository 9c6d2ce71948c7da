package observability

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsExposedInPrometheusFormat(t *testing.T) {
	setup, err := SetupPrometheusMetrics("fraud-advisor-test")
	require.NoError(t, err)
	defer setup.Shutdown(context.Background())

	m, err := NewChatMetrics(setup.Provider.Meter("test"))
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordExchange(ctx, "critical")
	m.RecordEscalation(ctx, "auto")
	m.RecordResponse(ctx, "safety")
	m.ObserveGeneration(ctx, "openai", 150*time.Millisecond, true)

	srv := httptest.NewServer(setup.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	assert.Contains(t, string(body), "chat_exchanges_total")
	assert.Contains(t, string(body), `risk_level="critical"`)
	assert.Contains(t, string(body), "chat_escalations_total")
	assert.Contains(t, string(body), "generation_latency_seconds")
}

func TestNopMetricsDoNotPanic(t *testing.T) {
	m := NopChatMetrics()
	m.RecordExchange(context.Background(), "low")
	m.ObserveGeneration(context.Background(), "x", time.Second, false)
}
