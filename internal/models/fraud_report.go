package models

import (
	"time"
)

// FraudReport is a user-filed incident, optionally tied to a chat session
type FraudReport struct {
	ID              uint         `json:"id" gorm:"primaryKey"`
	UserID          *uint        `json:"user_id,omitempty" gorm:"index"`
	SessionID       *uint        `json:"-" gorm:"index"`
	ChatSessionID   *string      `json:"chat_session_id,omitempty" gorm:"-"`
	FraudType       FraudType    `json:"fraud_type" gorm:"size:50;not null;index:idx_fraud_reports_type_risk"`
	Description     string       `json:"description" gorm:"type:text;not null"`
	RiskLevel       RiskLevel    `json:"risk_level" gorm:"size:20;not null;default:medium;index:idx_fraud_reports_type_risk"`
	EvidenceFiles   []string     `json:"evidence_files" gorm:"serializer:json;type:text"`
	EvidenceLinks   []string     `json:"evidence_links" gorm:"serializer:json;type:text"`
	FinancialLoss   *float64     `json:"financial_loss,omitempty"`
	Status          ReportStatus `json:"status" gorm:"size:20;not null;default:open;index"`
	AssignedTo      *string      `json:"assigned_to,omitempty" gorm:"size:255"`
	ResolutionNotes *string      `json:"resolution_notes,omitempty" gorm:"type:text"`
	ReportedAt      time.Time    `json:"reported_at" gorm:"autoCreateTime"`
	ResolvedAt      *time.Time   `json:"resolved_at,omitempty"`
	UpdatedAt       time.Time    `json:"updated_at"`
}
