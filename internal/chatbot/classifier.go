// Package chatbot holds the advice pipeline: keyword classification,
// escalation decisions and response selection.
package chatbot

import (
	"fmt"
	"strings"

	"fraud-advisor/backend/internal/models"
)

// Vulnerability tags the classifier understands
const (
	FactorElderly      = "elderly"
	FactorRecentStress = "recent_stress"
)

// Classification is the transient result of analysing one message
type Classification struct {
	FraudType       models.FraudType `json:"fraud_type"`
	RiskLevel       models.RiskLevel `json:"risk_level"`
	Confidence      float64          `json:"confidence"`
	MatchedKeywords []string         `json:"matched_keywords"`
}

// Policy holds the confidence tuning values
type Policy struct {
	Base          float64
	CriticalBoost float64
	HighBoost     float64
	MediumBoost   float64
	ElderlyBoost  float64
}

// DefaultPolicy returns the stock confidence policy
func DefaultPolicy() Policy {
	return Policy{
		Base:          0.6,
		CriticalBoost: 0.3,
		HighBoost:     0.2,
		MediumBoost:   0.1,
		ElderlyBoost:  0.1,
	}
}

// Validate rejects values outside [0,1]; negative boosts would break monotonicity
func (p Policy) Validate() error {
	for name, v := range map[string]float64{
		"base": p.Base, "critical": p.CriticalBoost, "high": p.HighBoost,
		"medium": p.MediumBoost, "elderly": p.ElderlyBoost,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("confidence %s must be within [0,1], got %v", name, v)
		}
	}
	return nil
}

type keywordGroup struct {
	fraudType models.FraudType
	keywords  []string
}

// fraudGroups is scanned in order; the first group with a hit wins
var fraudGroups = []keywordGroup{
	{models.FraudPhishing, []string{"phish", "email", "link", "click"}},
	{models.FraudRomance, []string{"romance", "love", "relationship", "dating"}},
	{models.FraudInvestment, []string{"invest", "money", "profit", "return"}},
	{models.FraudTechSupport, []string{"tech", "support", "computer", "virus"}},
	{models.FraudBanking, []string{"bank", "account", "card", "payment"}},
}

var (
	criticalKeywords = []string{
		"bank transfer", "gift cards", "bitcoin", "crypto",
		"wire transfer", "western union", "social security",
	}
	highKeywords = []string{
		"urgent", "immediate", "now", "limited time",
		"act fast", "expires soon", "don't tell anyone",
	}
	mediumKeywords = []string{
		"free", "winner", "congratulations", "claim", "verify", "suspended",
	}
)

// Classifier is a deterministic keyword classifier. Safe for concurrent use.
type Classifier struct {
	policy Policy
}

// NewClassifier builds a classifier with the given policy
func NewClassifier(policy Policy) *Classifier {
	return &Classifier{policy: policy}
}

// Classify scores a message. known may be empty; unknown input degrades to
// FraudOther and never errors.
func (c *Classifier) Classify(message string, known models.FraudType, factors []string) Classification {
	text := strings.ToLower(message)

	result := Classification{
		FraudType:       inferFraudType(text, known),
		RiskLevel:       models.RiskLow,
		Confidence:      c.policy.Base,
		MatchedKeywords: []string{},
	}

	if hits := matches(text, criticalKeywords); len(hits) > 0 {
		result.RiskLevel = models.RiskCritical
		result.Confidence += c.policy.CriticalBoost
		result.MatchedKeywords = append(result.MatchedKeywords, hits...)
	}
	if hits := matches(text, highKeywords); len(hits) > 0 {
		result.RiskLevel = result.RiskLevel.Max(models.RiskHigh)
		result.Confidence += c.policy.HighBoost
		result.MatchedKeywords = append(result.MatchedKeywords, hits...)
	}
	if hits := matches(text, mediumKeywords); len(hits) > 0 {
		result.RiskLevel = result.RiskLevel.Max(models.RiskMedium)
		result.Confidence += c.policy.MediumBoost
		result.MatchedKeywords = append(result.MatchedKeywords, hits...)
	}

	// one tier per factor type, applied in a fixed order
	if hasFactor(factors, FactorElderly) {
		result.RiskLevel = result.RiskLevel.Bump()
		result.Confidence += c.policy.ElderlyBoost
		result.MatchedKeywords = append(result.MatchedKeywords, "elderly_vulnerability")
	}
	if hasFactor(factors, FactorRecentStress) && result.RiskLevel == models.RiskLow {
		result.RiskLevel = models.RiskMedium
	}

	result.Confidence = clamp01(result.Confidence)
	return result
}

func inferFraudType(text string, known models.FraudType) models.FraudType {
	if known != "" {
		return models.ParseFraudType(string(known))
	}
	for _, g := range fraudGroups {
		if len(matches(text, g.keywords)) > 0 {
			return g.fraudType
		}
	}
	return models.FraudOther
}

func matches(text string, keywords []string) []string {
	var hits []string
	for _, k := range keywords {
		if strings.Contains(text, k) {
			hits = append(hits, k)
		}
	}
	return hits
}

func hasFactor(factors []string, want string) bool {
	for _, f := range factors {
		if strings.EqualFold(strings.TrimSpace(f), want) {
			return true
		}
	}
	return false
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
