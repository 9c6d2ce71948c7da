package models

import (
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
)

var (
	ErrEmptyContent       = errors.New("message content must not be empty")
	ErrConfidenceRange    = errors.New("ai confidence must be within [0,1]")
	ErrUnknownMessageKind = errors.New("unknown message type")
)

// ChatMessage is one turn in a session. Only the feedback fields change after insert.
type ChatMessage struct {
	ID           uint           `json:"id" gorm:"primaryKey"`
	SessionID    uint           `json:"-" gorm:"not null;index:idx_chat_messages_session_created"`
	MessageType  MessageType    `json:"message_type" gorm:"size:20;not null"`
	Content      string         `json:"content" gorm:"type:text;not null"`
	Metadata     map[string]any `json:"metadata" gorm:"serializer:json;type:text"`
	AIModel      *string        `json:"ai_model,omitempty" gorm:"size:100"`
	AIConfidence *float64       `json:"ai_confidence,omitempty"`
	AIReasoning  *string        `json:"ai_reasoning,omitempty" gorm:"type:text"`
	UserFeedback *Feedback      `json:"user_feedback,omitempty" gorm:"size:20"`
	IsHelpful    *bool          `json:"is_helpful,omitempty"`
	CreatedAt    time.Time      `json:"created_at" gorm:"index:idx_chat_messages_session_created"`
}

// BeforeSave enforces the row invariants the database constraints would
func (m *ChatMessage) BeforeSave(tx *gorm.DB) error {
	if strings.TrimSpace(m.Content) == "" {
		return ErrEmptyContent
	}
	switch m.MessageType {
	case MessageUser, MessageBot, MessageAdvisor, MessageSystem:
	default:
		return ErrUnknownMessageKind
	}
	if m.AIConfidence != nil && (*m.AIConfidence < 0 || *m.AIConfidence > 1) {
		return ErrConfidenceRange
	}
	if m.Metadata == nil {
		m.Metadata = map[string]any{}
	}
	return nil
}
