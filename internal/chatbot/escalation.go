package chatbot

import (
	"fmt"

	"fraud-advisor/backend/internal/models"
)

// ManualEscalationReason is recorded when the user asks for a human
const ManualEscalationReason = "Manual escalation by user"

// Trigger says what caused an escalation
type Trigger string

const (
	TriggerManual Trigger = "manual"
	TriggerAuto   Trigger = "auto"
	TriggerRule   Trigger = "rule"
)

// Decision is the outcome of the escalation check
type Decision struct {
	Escalate bool
	Reason   string
	Trigger  Trigger
}

// ShouldEscalate applies the built-in policy: manual requests always escalate,
// otherwise high and critical tiers do. Session state is the caller's concern.
func ShouldEscalate(c Classification, manual bool) Decision {
	if manual {
		return Decision{Escalate: true, Reason: ManualEscalationReason, Trigger: TriggerManual}
	}
	if c.RiskLevel == models.RiskHigh || c.RiskLevel == models.RiskCritical {
		return Decision{
			Escalate: true,
			Reason:   fmt.Sprintf("Risk level %s detected for suspected %s", c.RiskLevel, c.FraudType.Label()),
			Trigger:  TriggerAuto,
		}
	}
	return Decision{}
}

// Escalator combines the built-in policy with optional override rules
type Escalator struct {
	rules *RuleSet
}

// NewEscalator wraps rules, which may be nil
func NewEscalator(rules *RuleSet) *Escalator {
	return &Escalator{rules: rules}
}

// Decide runs the built-in policy first; rules can only add escalations
func (e *Escalator) Decide(c Classification, factors []string, manual bool) Decision {
	if d := ShouldEscalate(c, manual); d.Escalate {
		return d
	}
	if e == nil || e.rules == nil {
		return Decision{}
	}
	if name, ok := e.rules.FirstMatch(c, factors); ok {
		return Decision{
			Escalate: true,
			Reason:   fmt.Sprintf("Escalation rule %s matched", name),
			Trigger:  TriggerRule,
		}
	}
	return Decision{}
}
