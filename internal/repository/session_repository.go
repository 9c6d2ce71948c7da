package repository

import (
	"context"
	"time"

	"fraud-advisor/backend/internal/models"

	"gorm.io/gorm"
)

// SessionFilter narrows ListSessions. Zero values do not filter.
type SessionFilter struct {
	UserID    *uint
	Status    models.SessionStatus
	RiskLevel models.RiskLevel
	From      *time.Time
	To        *time.Time
	Page
}

type SessionRepository interface {
	Create(ctx context.Context, session *models.ChatSession) error
	GetBySessionID(ctx context.Context, sessionID string) (*models.ChatSession, error)
	GetByID(ctx context.Context, id uint) (*models.ChatSession, error)
	// GetForUpdate reads the row under an exclusive lock; call it inside Store.Transaction
	GetForUpdate(ctx context.Context, sessionID string) (*models.ChatSession, error)
	Save(ctx context.Context, session *models.ChatSession) error
	List(ctx context.Context, filter SessionFilter) ([]models.ChatSession, int64, error)
}

type GormSessionRepository struct {
	db *gorm.DB
}

func NewGormSessionRepository(db *gorm.DB) *GormSessionRepository {
	return &GormSessionRepository{db: db}
}

func (r *GormSessionRepository) Create(ctx context.Context, session *models.ChatSession) error {
	return r.db.WithContext(ctx).Create(session).Error
}

func (r *GormSessionRepository) GetBySessionID(ctx context.Context, sessionID string) (*models.ChatSession, error) {
	var session models.ChatSession
	err := r.db.WithContext(ctx).Where("session_id = ?", sessionID).First(&session).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &session, nil
}

func (r *GormSessionRepository) GetByID(ctx context.Context, id uint) (*models.ChatSession, error) {
	var session models.ChatSession
	if err := r.db.WithContext(ctx).First(&session, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &session, nil
}

func (r *GormSessionRepository) GetForUpdate(ctx context.Context, sessionID string) (*models.ChatSession, error) {
	var session models.ChatSession
	err := forUpdate(r.db.WithContext(ctx)).Where("session_id = ?", sessionID).First(&session).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &session, nil
}

func (r *GormSessionRepository) Save(ctx context.Context, session *models.ChatSession) error {
	return r.db.WithContext(ctx).Save(session).Error
}

func (r *GormSessionRepository) List(ctx context.Context, filter SessionFilter) ([]models.ChatSession, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.ChatSession{})
	if filter.UserID != nil {
		q = q.Where("user_id = ?", *filter.UserID)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.RiskLevel != "" {
		q = q.Where("risk_level = ?", filter.RiskLevel)
	}
	if filter.From != nil {
		q = q.Where("created_at >= ?", *filter.From)
	}
	if filter.To != nil {
		q = q.Where("created_at <= ?", *filter.To)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page := filter.Page.normalize()
	var sessions []models.ChatSession
	err := q.Order("created_at DESC").Order("id DESC").
		Limit(page.Limit).
		Offset(page.Offset).
		Find(&sessions).Error
	return sessions, total, err
}
