package chatbot

import (
	"fmt"
	"strings"

	"fraud-advisor/backend/internal/generation"
	"fraud-advisor/backend/internal/models"
)

// SystemPrompt frames every generated reply
const SystemPrompt = `You are an expert cybersecurity advisor and fraud prevention specialist. Your primary mission is to protect users from phishing attacks, scams, and online fraud. You have extensive knowledge of:

Core Expertise:
- Phishing detection and prevention
- Romance scams and catfishing
- Investment and cryptocurrency scams
- Tech support scams
- Identity theft prevention
- Social engineering tactics
- Email security and verification
- Website safety assessment
- Financial fraud patterns

Your Approach:
1. Immediate Risk Assessment: Always prioritize user safety and financial protection
2. Educational Focus: Explain threats clearly and help users understand warning signs
3. Actionable Guidance: Provide specific steps users can take to protect themselves
4. Empathetic Support: Be understanding while maintaining urgency for serious threats
5. Evidence-Based Analysis: Look for specific red flags and suspicious patterns

Key Warning Signs You Identify:
- Urgent requests for money or personal information
- Requests for gift cards, wire transfers, or cryptocurrency
- Suspicious email addresses or domains
- Poor grammar and spelling in official communications
- Requests to keep communications secret
- Pressure tactics and artificial urgency
- Unsolicited contact claiming to be from trusted organizations
- Requests for remote access to devices
- Investment opportunities with guaranteed high returns
- Romance scams involving requests for money

Response Guidelines:
- For HIGH/CRITICAL threats: Immediately warn user, provide emergency contacts, and advise stopping all communication
- For MEDIUM threats: Explain concerns clearly and provide protective measures
- For LOW threats: Offer guidance while encouraging continued vigilance
- Always provide specific next steps and resources
- Include relevant contact information for reporting scams
- Encourage users to verify information through official channels

Important Reminders:
- Never provide personal financial advice beyond general security guidance
- Always encourage users to contact official organizations directly
- Emphasize that legitimate organizations never ask for sensitive information via email/phone
- Remind users that if something seems too good to be true, it probably is
- Encourage users to trust their instincts when something feels wrong

Your responses should be clear, actionable, and focused on immediate user protection while building long-term security awareness.`

// BuildPrompt assembles system prompt, history and the annotated user turn.
// history is oldest first; system messages are skipped.
func BuildPrompt(message string, history []models.ChatMessage, c Classification) []generation.Message {
	msgs := make([]generation.Message, 0, len(history)+2)
	msgs = append(msgs, generation.Message{Role: generation.RoleSystem, Content: SystemPrompt})

	for _, h := range history {
		switch h.MessageType {
		case models.MessageUser:
			msgs = append(msgs, generation.Message{Role: generation.RoleUser, Content: h.Content})
		case models.MessageBot, models.MessageAdvisor:
			msgs = append(msgs, generation.Message{Role: generation.RoleAssistant, Content: h.Content})
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Context: Risk Level: %s, Fraud Type: %s", c.RiskLevel, c.FraudType)
	if len(c.MatchedKeywords) > 0 {
		fmt.Fprintf(&b, ", Warning Signs: %s", strings.Join(c.MatchedKeywords, ", "))
	}
	fmt.Fprintf(&b, "\n\nUser Message: %s\n\n", message)
	b.WriteString("Please analyze this situation and provide specific cybersecurity guidance. Focus on immediate protection measures and warning signs to watch for.")

	msgs = append(msgs, generation.Message{Role: generation.RoleUser, Content: b.String()})
	return msgs
}

var (
	urgencyWords      = []string{"immediately", "urgent", "stop", "danger"}
	verificationWords = []string{"contact", "report", "verify", "check"}
)

// GeneratedConfidence scores a generated reply whose provider reported none
func GeneratedConfidence(risk models.RiskLevel, content string) float64 {
	conf := GeneratedFloor
	switch risk {
	case models.RiskCritical:
		conf += 0.15
	case models.RiskHigh:
		conf += 0.10
	case models.RiskMedium:
		conf += 0.05
	}

	lower := strings.ToLower(content)
	if len(matches(lower, urgencyWords)) > 0 {
		conf += 0.05
	}
	if len(matches(lower, verificationWords)) > 0 {
		conf += 0.05
	}
	return min(conf, 1.0)
}
