package repository

import (
	"context"

	"fraud-advisor/backend/internal/models"

	"gorm.io/gorm"
)

type AdvisorRepository interface {
	Create(ctx context.Context, advisor *models.SecurityAdvisor) error
	GetByID(ctx context.Context, id uint) (*models.SecurityAdvisor, error)
	GetByEmail(ctx context.Context, email string) (*models.SecurityAdvisor, error)
	List(ctx context.Context, availableOnly bool) ([]models.SecurityAdvisor, error)
	SetAvailability(ctx context.Context, id uint, available bool) (*models.SecurityAdvisor, error)
	// AcquireLeastLoaded reserves a slot on the least-loaded advisor with capacity.
	// Returns ErrNotFound when nobody can take the session.
	AcquireLeastLoaded(ctx context.Context) (*models.SecurityAdvisor, error)
	// Release frees one slot, never going below zero
	Release(ctx context.Context, email string) error
}

type GormAdvisorRepository struct {
	db *gorm.DB
}

func NewGormAdvisorRepository(db *gorm.DB) *GormAdvisorRepository {
	return &GormAdvisorRepository{db: db}
}

func (r *GormAdvisorRepository) Create(ctx context.Context, advisor *models.SecurityAdvisor) error {
	return r.db.WithContext(ctx).Create(advisor).Error
}

func (r *GormAdvisorRepository) GetByID(ctx context.Context, id uint) (*models.SecurityAdvisor, error) {
	var advisor models.SecurityAdvisor
	if err := r.db.WithContext(ctx).First(&advisor, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &advisor, nil
}

func (r *GormAdvisorRepository) GetByEmail(ctx context.Context, email string) (*models.SecurityAdvisor, error) {
	var advisor models.SecurityAdvisor
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&advisor).Error; err != nil {
		return nil, notFound(err)
	}
	return &advisor, nil
}

func (r *GormAdvisorRepository) List(ctx context.Context, availableOnly bool) ([]models.SecurityAdvisor, error) {
	q := r.db.WithContext(ctx)
	if availableOnly {
		q = q.Where("is_available = ? AND current_load < max_load", true)
	}
	var advisors []models.SecurityAdvisor
	err := q.Order("current_load ASC").Order("id ASC").Find(&advisors).Error
	return advisors, err
}

func (r *GormAdvisorRepository) SetAvailability(ctx context.Context, id uint, available bool) (*models.SecurityAdvisor, error) {
	res := r.db.WithContext(ctx).Model(&models.SecurityAdvisor{}).
		Where("id = ?", id).
		Update("is_available", available)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return r.GetByID(ctx, id)
}

func (r *GormAdvisorRepository) AcquireLeastLoaded(ctx context.Context) (*models.SecurityAdvisor, error) {
	var advisor models.SecurityAdvisor
	err := forUpdate(r.db.WithContext(ctx)).
		Where("is_available = ? AND current_load < max_load", true).
		Order("current_load ASC").Order("id ASC").
		First(&advisor).Error
	if err != nil {
		return nil, notFound(err)
	}

	err = r.db.WithContext(ctx).Model(&models.SecurityAdvisor{}).
		Where("id = ?", advisor.ID).
		Update("current_load", gorm.Expr("current_load + 1")).Error
	if err != nil {
		return nil, err
	}
	advisor.CurrentLoad++
	return &advisor, nil
}

func (r *GormAdvisorRepository) Release(ctx context.Context, email string) error {
	return r.db.WithContext(ctx).Model(&models.SecurityAdvisor{}).
		Where("email = ? AND current_load > 0", email).
		Update("current_load", gorm.Expr("current_load - 1")).Error
}
