package models

import "strings"

// SessionStatus is the lifecycle state of a chat session
type SessionStatus string

const (
	SessionActive    SessionStatus = "active"
	SessionEscalated SessionStatus = "escalated"
	SessionClosed    SessionStatus = "closed"
	SessionArchived  SessionStatus = "archived"
)

// IsTerminal reports whether no further exchanges are accepted
func (s SessionStatus) IsTerminal() bool {
	return s == SessionClosed || s == SessionArchived
}

// Valid reports whether s is a known status
func (s SessionStatus) Valid() bool {
	switch s {
	case SessionActive, SessionEscalated, SessionClosed, SessionArchived:
		return true
	}
	return false
}

// RiskLevel is the ordinal severity tier
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

var riskOrder = []RiskLevel{RiskLow, RiskMedium, RiskHigh, RiskCritical}

// Rank orders the tiers 0..3. Unknown values rank as low.
func (r RiskLevel) Rank() int {
	for i, v := range riskOrder {
		if v == r {
			return i
		}
	}
	return 0
}

// Bump raises the tier by one, saturating below critical. High and critical stay put.
func (r RiskLevel) Bump() RiskLevel {
	switch r {
	case RiskLow:
		return RiskMedium
	case RiskMedium:
		return RiskHigh
	}
	return r
}

// Max returns the higher of two tiers
func (r RiskLevel) Max(o RiskLevel) RiskLevel {
	if o.Rank() > r.Rank() {
		return o
	}
	return r
}

// Valid reports whether r is a known tier
func (r RiskLevel) Valid() bool {
	switch r {
	case RiskLow, RiskMedium, RiskHigh, RiskCritical:
		return true
	}
	return false
}

// FraudType is the category of scam under discussion
type FraudType string

const (
	FraudPhishing          FraudType = "phishing"
	FraudSocialEngineering FraudType = "social_engineering"
	FraudIdentityTheft     FraudType = "identity_theft"
	FraudFinancial         FraudType = "financial_fraud"
	FraudTechSupport       FraudType = "tech_support_scam"
	FraudRomance           FraudType = "romance_scam"
	FraudInvestment        FraudType = "investment_scam"
	FraudBanking           FraudType = "banking_scam"
	FraudOther             FraudType = "other"
)

// AllFraudTypes lists every known category
var AllFraudTypes = []FraudType{
	FraudPhishing, FraudSocialEngineering, FraudIdentityTheft, FraudFinancial,
	FraudTechSupport, FraudRomance, FraudInvestment, FraudBanking, FraudOther,
}

// ParseFraudType normalizes s; anything unknown becomes FraudOther
func ParseFraudType(s string) FraudType {
	ft := FraudType(strings.ToLower(strings.TrimSpace(s)))
	if ft.Valid() {
		return ft
	}
	return FraudOther
}

// Valid reports whether f is a known category
func (f FraudType) Valid() bool {
	for _, v := range AllFraudTypes {
		if v == f {
			return true
		}
	}
	return false
}

// Label renders the category for humans ("romance_scam" -> "Romance Scam")
func (f FraudType) Label() string {
	parts := strings.Split(string(f), "_")
	for i, p := range parts {
		if p != "" {
			parts[i] = strings.ToUpper(p[:1]) + p[1:]
		}
	}
	return strings.Join(parts, " ")
}

// MessageType identifies who authored a chat message
type MessageType string

const (
	MessageUser    MessageType = "user"
	MessageBot     MessageType = "bot"
	MessageAdvisor MessageType = "advisor"
	MessageSystem  MessageType = "system"
)

// Feedback is the user's verdict on a bot message
type Feedback string

const (
	FeedbackPositive Feedback = "positive"
	FeedbackNegative Feedback = "negative"
	FeedbackNeutral  Feedback = "neutral"
)

// Valid reports whether f is a known verdict
func (f Feedback) Valid() bool {
	return f == FeedbackPositive || f == FeedbackNegative || f == FeedbackNeutral
}

// ReportStatus is the investigation state of a fraud report
type ReportStatus string

const (
	ReportOpen          ReportStatus = "open"
	ReportInvestigating ReportStatus = "investigating"
	ReportResolved      ReportStatus = "resolved"
	ReportClosed        ReportStatus = "closed"
	ReportFalsePositive ReportStatus = "false_positive"
)

// Valid reports whether s is a known report status
func (s ReportStatus) Valid() bool {
	switch s {
	case ReportOpen, ReportInvestigating, ReportResolved, ReportClosed, ReportFalsePositive:
		return true
	}
	return false
}

// IsFinal reports whether the status concludes the investigation
func (s ReportStatus) IsFinal() bool {
	return s == ReportResolved || s == ReportClosed || s == ReportFalsePositive
}
