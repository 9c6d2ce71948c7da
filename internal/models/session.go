package models

import (
	"time"
)

// ChatSession is one advice conversation. Rows are never hard-deleted.
type ChatSession struct {
	ID                   uint          `json:"-" gorm:"primaryKey"`
	SessionID            string        `json:"session_id" gorm:"size:64;uniqueIndex;not null"`
	UserID               *uint         `json:"user_id,omitempty" gorm:"index:idx_chat_sessions_user_status"`
	Status               SessionStatus `json:"status" gorm:"size:20;not null;default:active;index:idx_chat_sessions_user_status;index:idx_chat_sessions_status_risk"`
	RiskLevel            RiskLevel     `json:"risk_level" gorm:"size:20;not null;default:low;index:idx_chat_sessions_status_risk"`
	FraudType            FraudType     `json:"fraud_type,omitempty" gorm:"size:50"`
	VulnerabilityFactors []string      `json:"vulnerability_factors" gorm:"serializer:json;type:text"`
	EscalationReason     *string       `json:"escalation_reason,omitempty" gorm:"type:text"`
	EscalatedTo          *string       `json:"escalated_to,omitempty" gorm:"size:255"`
	EscalatedAt          *time.Time    `json:"escalated_at,omitempty"`
	ClosedAt             *time.Time    `json:"closed_at,omitempty"`
	LastActivity         time.Time     `json:"last_activity"`
	CreatedAt            time.Time     `json:"created_at" gorm:"index"`
	UpdatedAt            time.Time     `json:"updated_at"`
}

// HasFactor reports whether the given vulnerability tag is set
func (s *ChatSession) HasFactor(factor string) bool {
	for _, f := range s.VulnerabilityFactors {
		if f == factor {
			return true
		}
	}
	return false
}

// OwnedBy reports whether userID may see the session without admin rights.
// Anonymous sessions are reachable by anyone holding the opaque id.
func (s *ChatSession) OwnedBy(userID *uint) bool {
	if s.UserID == nil {
		return true
	}
	return userID != nil && *userID == *s.UserID
}
