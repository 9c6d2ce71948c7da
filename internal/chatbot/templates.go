package chatbot

import (
	"fmt"

	"fraud-advisor/backend/internal/models"
)

// Greeting is stored as the first bot message of every session
const Greeting = "Hello! I'm your AI security advisor. I can help you with fraud detection, security advice, and threat assessment. What security concern would you like to discuss today?"

// ElderlyGuidance is appended to any reply for sessions tagged elderly
const ElderlyGuidance = "I understand this situation may be particularly concerning. Elderly individuals are often targeted by scammers. Let me provide you with extra support and guidance."

const highRiskOffer = "This situation appears to be high-risk. I recommend we escalate this to a human security advisor who can provide immediate assistance. Would you like me to do that now?"

const safetyHandoff = "This situation requires immediate attention. I'm escalating you to a human security advisor right now."

// topic openers used in front of the high-tier fallback
var topicIntros = map[models.FraudType]string{
	models.FraudPhishing:    "I understand you're concerned about a potential phishing attempt. This is a common and serious threat.",
	models.FraudRomance:     "Romance scams can be emotionally devastating and financially damaging. I'm here to help you evaluate the situation objectively.",
	models.FraudInvestment:  "Investment scams often promise unrealistic returns and use high-pressure tactics.",
	models.FraudTechSupport: "Tech support scams are increasingly sophisticated. They often claim to be from well-known companies.",
}

func criticalTemplate(ft models.FraudType) string {
	return fmt.Sprintf(`CRITICAL SECURITY ALERT

This %s situation is extremely dangerous and requires immediate action:

1. STOP all communication immediately
2. Do NOT send any money or personal information
3. Contact your bank/financial institution immediately
4. Report to Action Fraud (UK) or your local fraud reporting agency
5. Change all passwords if you've shared any personal information

This appears to be a sophisticated scam targeting you for financial gain.`, ft.Label())
}

func highTemplate(ft models.FraudType) string {
	return fmt.Sprintf(`HIGH RISK WARNING

I'm very concerned about this %s situation. Multiple red flags suggest this is a scam:

1. Cease all communication immediately
2. Do NOT provide any personal or financial information
3. Verify any claims through official channels
4. Be extremely cautious of any requests for money
5. Trust your instincts - if it feels wrong, it probably is

Legitimate organizations never pressure you for immediate action or payment.`, ft.Label())
}

func mediumTemplate(ft models.FraudType) string {
	return fmt.Sprintf(`CAUTION ADVISED

This %s situation has concerning elements that warrant careful evaluation:

1. Verify all claims through official sources
2. Never share personal or financial information
3. Be suspicious of unsolicited contact
4. Look for official communication channels
5. Take your time to research before any action

When in doubt, contact the organization directly through their official website or phone number.`, ft.Label())
}

func lowTemplate(ft models.FraudType) string {
	return fmt.Sprintf(`GENERAL SECURITY GUIDANCE

While this %s situation may not pose an immediate threat, it's excellent that you're being cautious:

1. Always verify information through official channels
2. Be suspicious of unsolicited contact
3. Never share personal information unless you initiated contact
4. Trust your instincts
5. When in doubt, ask for help

Remember: Legitimate organizations respect your need to verify information.`, ft.Label())
}

// FallbackTemplate returns the canned reply for a tier
func FallbackTemplate(risk models.RiskLevel, ft models.FraudType) string {
	switch risk {
	case models.RiskCritical:
		return criticalTemplate(ft)
	case models.RiskHigh:
		body := highTemplate(ft)
		if intro, ok := topicIntros[ft]; ok {
			body = intro + "\n\n" + body
		}
		return body + "\n\n" + highRiskOffer
	case models.RiskMedium:
		return mediumTemplate(ft)
	}
	return lowTemplate(ft)
}

// SafetyTemplate is the fixed reply for critical-risk messages
func SafetyTemplate(ft models.FraudType) string {
	return criticalTemplate(ft) + "\n\n" + safetyHandoff
}
