package chatbot

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fraud-advisor/backend/internal/generation"
	"fraud-advisor/backend/internal/models"
	"fraud-advisor/backend/pkg/logger"
)

type spyBackend struct {
	available bool
	reply     string
	conf      *float64
	err       error
	calls     atomic.Int32
	last      []generation.Message
}

func (s *spyBackend) Name() string      { return "spy" }
func (s *spyBackend) IsAvailable() bool { return s.available }

func (s *spyBackend) Generate(ctx context.Context, msgs []generation.Message) (*generation.Response, error) {
	s.calls.Add(1)
	s.last = msgs
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.err != nil {
		return nil, s.err
	}
	return &generation.Response{Content: s.reply, Model: "spy-model", Confidence: s.conf}, nil
}

func TestSelect_CriticalNeverCallsBackend(t *testing.T) {
	spy := &spyBackend{available: true, reply: "generated"}
	r := NewResponder(spy, logger.NewNop())
	c := NewClassifier(DefaultPolicy()).Classify("send gift cards", "", nil)

	resp, err := r.Select(context.Background(), "send gift cards", SessionContext{}, c)
	require.NoError(t, err)
	assert.Zero(t, spy.calls.Load())
	assert.Equal(t, SourceSafety, resp.Source)
	assert.Equal(t, SafetyConfidence, resp.Confidence)
	assert.Contains(t, resp.Content, "CRITICAL SECURITY ALERT")
	assert.Equal(t, "safety", resp.Metadata["response_source"])
}

func TestSelect_Generated(t *testing.T) {
	spy := &spyBackend{available: true, reply: "Please verify the sender and report it."}
	r := NewResponder(spy, logger.NewNop())
	c := NewClassifier(DefaultPolicy()).Classify("I got a strange email", "", nil)

	history := []models.ChatMessage{
		{MessageType: models.MessageBot, Content: Greeting},
		{MessageType: models.MessageSystem, Content: "escalated"},
		{MessageType: models.MessageUser, Content: "earlier question"},
	}
	resp, err := r.Select(context.Background(), "I got a strange email", SessionContext{History: history}, c)
	require.NoError(t, err)

	assert.Equal(t, int32(1), spy.calls.Load())
	assert.Equal(t, SourceGenerated, resp.Source)
	assert.Equal(t, "spy-model", resp.Model)
	// low tier 0.8 plus verification words
	assert.InDelta(t, 0.85, resp.Confidence, 1e-9)

	require.Len(t, spy.last, 4)
	assert.Equal(t, generation.RoleSystem, spy.last[0].Role)
	assert.Equal(t, generation.RoleAssistant, spy.last[1].Role)
	assert.Equal(t, generation.RoleUser, spy.last[2].Role)
	assert.Contains(t, spy.last[3].Content, "Risk Level: low, Fraud Type: phishing")
	assert.Contains(t, spy.last[3].Content, "User Message: I got a strange email")
}

func TestSelect_ProviderConfidenceWins(t *testing.T) {
	conf := 0.91
	spy := &spyBackend{available: true, reply: "ok", conf: &conf}
	r := NewResponder(spy, logger.NewNop())

	resp, err := r.Select(context.Background(), "hello", SessionContext{}, Classification{RiskLevel: models.RiskLow, FraudType: models.FraudOther})
	require.NoError(t, err)
	assert.Equal(t, 0.91, resp.Confidence)
}

func TestSelect_LowProviderConfidenceIsFloored(t *testing.T) {
	for _, reported := range []float64{0.2, FallbackConfidence, -3} {
		conf := reported
		spy := &spyBackend{available: true, reply: "ok", conf: &conf}
		r := NewResponder(spy, logger.NewNop())

		resp, err := r.Select(context.Background(), "hello", SessionContext{}, Classification{RiskLevel: models.RiskLow, FraudType: models.FraudOther})
		require.NoError(t, err)
		assert.Equal(t, SourceGenerated, resp.Source)
		assert.Equal(t, GeneratedFloor, resp.Confidence)
		assert.Greater(t, resp.Confidence, SafetyConfidence)
		assert.Greater(t, resp.Confidence, FallbackConfidence)
	}
}

func TestSelect_FallbackOnFailure(t *testing.T) {
	spy := &spyBackend{available: true, err: errors.New("provider down")}
	r := NewResponder(spy, logger.NewNop())
	c := Classification{RiskLevel: models.RiskHigh, FraudType: models.FraudRomance}

	resp, err := r.Select(context.Background(), "he needs money now", SessionContext{}, c)
	require.NoError(t, err)
	assert.Equal(t, int32(1), spy.calls.Load())
	assert.Equal(t, SourceFallback, resp.Source)
	assert.Equal(t, FallbackConfidence, resp.Confidence)
	assert.Contains(t, resp.Content, "HIGH RISK WARNING")
	assert.Contains(t, resp.Content, "Romance Scam")
}

func TestSelect_FallbackWhenUnavailable(t *testing.T) {
	tests := []struct {
		risk   models.RiskLevel
		header string
	}{
		{models.RiskLow, "GENERAL SECURITY GUIDANCE"},
		{models.RiskMedium, "CAUTION ADVISED"},
		{models.RiskHigh, "HIGH RISK WARNING"},
	}
	r := NewResponder(nil, logger.NewNop())
	for _, tt := range tests {
		t.Run(string(tt.risk), func(t *testing.T) {
			resp, err := r.Select(context.Background(), "msg", SessionContext{}, Classification{RiskLevel: tt.risk, FraudType: models.FraudOther})
			require.NoError(t, err)
			assert.True(t, strings.HasPrefix(resp.Content, tt.header) || strings.Contains(resp.Content, "\n\n"+tt.header))
			assert.Equal(t, SourceFallback, resp.Source)
			assert.Less(t, resp.Confidence, 0.8)
		})
	}
}

func TestSelect_ElderlyAddendum(t *testing.T) {
	r := NewResponder(nil, logger.NewNop())
	factors := []string{"elderly"}
	c := NewClassifier(DefaultPolicy()).Classify("Hi, just checking in", "", factors)
	require.Equal(t, models.RiskMedium, c.RiskLevel)

	resp, err := r.Select(context.Background(), "Hi, just checking in", SessionContext{Factors: factors}, c)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(resp.Content, ElderlyGuidance))

	crit := NewClassifier(DefaultPolicy()).Classify("crypto", "", factors)
	resp, err = r.Select(context.Background(), "crypto", SessionContext{Factors: factors}, crit)
	require.NoError(t, err)
	assert.Equal(t, SourceSafety, resp.Source)
	assert.True(t, strings.HasSuffix(resp.Content, ElderlyGuidance))
}

func TestSelect_CancelledDuringGeneration(t *testing.T) {
	spy := &spyBackend{available: true, reply: "never seen"}
	r := NewResponder(spy, logger.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Select(ctx, "hello", SessionContext{}, Classification{RiskLevel: models.RiskLow, FraudType: models.FraudOther})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGeneratedConfidence(t *testing.T) {
	assert.InDelta(t, 0.8, GeneratedConfidence(models.RiskLow, "fine"), 1e-9)
	assert.InDelta(t, 0.85, GeneratedConfidence(models.RiskMedium, "fine"), 1e-9)
	assert.InDelta(t, 0.9, GeneratedConfidence(models.RiskHigh, "fine"), 1e-9)
	assert.InDelta(t, 0.95, GeneratedConfidence(models.RiskCritical, "fine"), 1e-9)
	assert.InDelta(t, 1.0, GeneratedConfidence(models.RiskCritical, "STOP and report it"), 1e-9)
	assert.InDelta(t, 0.9, GeneratedConfidence(models.RiskLow, "Stop. Contact your bank."), 1e-9)
}

func TestGreetingFor(t *testing.T) {
	assert.Equal(t, Greeting, GreetingFor(nil))
	assert.Contains(t, GreetingFor([]string{"elderly"}), ElderlyGuidance)
}
