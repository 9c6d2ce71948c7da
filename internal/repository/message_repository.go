package repository

import (
	"context"

	"fraud-advisor/backend/internal/models"

	"gorm.io/gorm"
)

type MessageRepository interface {
	Create(ctx context.Context, messages ...*models.ChatMessage) error
	GetInSession(ctx context.Context, sessionPK, messageID uint) (*models.ChatMessage, error)
	// ListBySession pages oldest first
	ListBySession(ctx context.Context, sessionPK uint, page Page) ([]models.ChatMessage, int64, error)
	// Recent returns up to n latest messages, oldest first
	Recent(ctx context.Context, sessionPK uint, n int) ([]models.ChatMessage, error)
	UpdateFeedback(ctx context.Context, message *models.ChatMessage) error
}

type GormMessageRepository struct {
	db *gorm.DB
}

func NewGormMessageRepository(db *gorm.DB) *GormMessageRepository {
	return &GormMessageRepository{db: db}
}

func (r *GormMessageRepository) Create(ctx context.Context, messages ...*models.ChatMessage) error {
	for _, m := range messages {
		if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
			return err
		}
	}
	return nil
}

func (r *GormMessageRepository) GetInSession(ctx context.Context, sessionPK, messageID uint) (*models.ChatMessage, error) {
	var message models.ChatMessage
	err := r.db.WithContext(ctx).
		Where("id = ? AND session_id = ?", messageID, sessionPK).
		First(&message).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &message, nil
}

func (r *GormMessageRepository) ListBySession(ctx context.Context, sessionPK uint, page Page) ([]models.ChatMessage, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.ChatMessage{}).Where("session_id = ?", sessionPK)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page = page.normalize()
	var messages []models.ChatMessage
	err := q.Order("created_at ASC").Order("id ASC").
		Limit(page.Limit).
		Offset(page.Offset).
		Find(&messages).Error
	return messages, total, err
}

func (r *GormMessageRepository) Recent(ctx context.Context, sessionPK uint, n int) ([]models.ChatMessage, error) {
	if n <= 0 {
		return nil, nil
	}
	var messages []models.ChatMessage
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionPK).
		Order("created_at DESC").Order("id DESC").
		Limit(n).
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// UpdateFeedback writes only the feedback columns. UpdateColumns skips the
// save hooks, which validate full rows.
func (r *GormMessageRepository) UpdateFeedback(ctx context.Context, message *models.ChatMessage) error {
	return r.db.WithContext(ctx).
		Model(&models.ChatMessage{}).
		Where("id = ?", message.ID).
		UpdateColumns(map[string]any{
			"user_feedback": message.UserFeedback,
			"is_helpful":    message.IsHelpful,
		}).Error
}
