package chatbot

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"fraud-advisor/backend/internal/models"
)

func TestClassify(t *testing.T) {
	c := NewClassifier(DefaultPolicy())

	tests := []struct {
		name      string
		message   string
		known     models.FraudType
		factors   []string
		wantType  models.FraudType
		wantRisk  models.RiskLevel
		wantWords []string
	}{
		{
			name:      "wire transfer to bitcoin",
			message:   "Please wire transfer $5000 to this Bitcoin address urgently",
			wantType:  models.FraudOther,
			wantRisk:  models.RiskCritical,
			wantWords: []string{"bitcoin", "wire transfer", "urgent"},
		},
		{
			name:     "neutral greeting",
			message:  "Hi, just checking in",
			wantType: models.FraudOther,
			wantRisk: models.RiskLow,
		},
		{
			name:      "neutral greeting elderly",
			message:   "Hi, just checking in",
			factors:   []string{"elderly"},
			wantType:  models.FraudOther,
			wantRisk:  models.RiskMedium,
			wantWords: []string{"elderly_vulnerability"},
		},
		{
			name:     "phishing wins over banking",
			message:  "I got an email asking me to click a link to my bank account",
			wantType: models.FraudPhishing,
			wantRisk: models.RiskLow,
		},
		{
			name:     "romance",
			message:  "Someone I met dating online says they love me",
			wantType: models.FraudRomance,
			wantRisk: models.RiskLow,
		},
		{
			name:     "tech support",
			message:  "A caller said my computer has a virus",
			wantType: models.FraudTechSupport,
			wantRisk: models.RiskLow,
		},
		{
			name:     "medium keyword",
			message:  "Congratulations, you are a winner, claim your prize",
			wantType: models.FraudOther,
			wantRisk: models.RiskMedium,
		},
		{
			name:     "high keyword",
			message:  "Act fast, this offer expires soon",
			wantType: models.FraudOther,
			wantRisk: models.RiskHigh,
		},
		{
			name:     "elderly bumps medium to high",
			message:  "Your account is suspended, verify it",
			factors:  []string{"elderly"},
			wantType: models.FraudBanking,
			wantRisk: models.RiskHigh,
		},
		{
			name:     "recent stress lifts low only",
			message:  "Hi there",
			factors:  []string{"recent_stress"},
			wantType: models.FraudOther,
			wantRisk: models.RiskMedium,
		},
		{
			name:     "recent stress leaves medium alone",
			message:  "Is this free?",
			factors:  []string{"recent_stress"},
			wantType: models.FraudOther,
			wantRisk: models.RiskMedium,
		},
		{
			name:     "both factors never skip two tiers each",
			message:  "Hi there",
			factors:  []string{"elderly", "recent_stress"},
			wantType: models.FraudOther,
			wantRisk: models.RiskMedium,
		},
		{
			name:     "known type wins",
			message:  "Send bitcoin",
			known:    models.FraudRomance,
			wantType: models.FraudRomance,
			wantRisk: models.RiskCritical,
		},
		{
			name:     "unknown hint degrades to other",
			message:  "hello",
			known:    "lottery",
			wantType: models.FraudOther,
			wantRisk: models.RiskLow,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Classify(tt.message, tt.known, tt.factors)
			assert.Equal(t, tt.wantType, got.FraudType)
			assert.Equal(t, tt.wantRisk, got.RiskLevel)
			for _, w := range tt.wantWords {
				assert.Contains(t, got.MatchedKeywords, w)
			}
			assert.GreaterOrEqual(t, got.Confidence, 0.0)
			assert.LessOrEqual(t, got.Confidence, 1.0)
		})
	}
}

func TestClassify_CriticalKeywordAlwaysCritical(t *testing.T) {
	c := NewClassifier(DefaultPolicy())
	for _, kw := range criticalKeywords {
		for _, msg := range []string{kw, "hello " + kw + " friend", "FREE " + kw + " NOW"} {
			got := c.Classify(msg, "", nil)
			assert.Equal(t, models.RiskCritical, got.RiskLevel, msg)
		}
	}
}

func TestClassify_ConfidenceMonotonicAndBounded(t *testing.T) {
	c := NewClassifier(DefaultPolicy())

	messages := []string{
		"hello",
		"claim it",
		"claim it now",
		"claim it now with gift cards",
	}
	prev := -1.0
	for _, m := range messages {
		got := c.Classify(m, "", nil)
		assert.GreaterOrEqual(t, got.Confidence, prev, m)
		assert.LessOrEqual(t, got.Confidence, 1.0)
		prev = got.Confidence
	}

	got := c.Classify("claim it now with gift cards", "", []string{"elderly"})
	assert.Equal(t, 1.0, got.Confidence)
}

func TestClassify_ElderlyNeverLowers(t *testing.T) {
	c := NewClassifier(DefaultPolicy())
	for _, m := range []string{"hello", "free stuff", "urgent", "crypto", "verify now"} {
		plain := c.Classify(m, "", nil)
		elder := c.Classify(m, "", []string{"elderly"})
		assert.GreaterOrEqual(t, elder.RiskLevel.Rank(), plain.RiskLevel.Rank(), m)
	}
}

func TestClassify_CustomPolicyClamped(t *testing.T) {
	c := NewClassifier(Policy{Base: 0.9, CriticalBoost: 0.9})
	got := c.Classify("bitcoin", "", nil)
	assert.Equal(t, 1.0, got.Confidence)
}

func TestPolicyValidate(t *testing.T) {
	assert.NoError(t, DefaultPolicy().Validate())

	p := DefaultPolicy()
	p.HighBoost = -0.1
	assert.Error(t, p.Validate())

	p = DefaultPolicy()
	p.Base = 1.5
	assert.Error(t, p.Validate())
}
