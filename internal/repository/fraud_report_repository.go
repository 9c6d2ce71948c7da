package repository

import (
	"context"

	"fraud-advisor/backend/internal/models"

	"gorm.io/gorm"
)

// ReportFilter narrows ListReports. Zero values do not filter.
type ReportFilter struct {
	UserID    *uint
	Status    models.ReportStatus
	FraudType models.FraudType
	RiskLevel models.RiskLevel
	Page
}

type FraudReportRepository interface {
	Create(ctx context.Context, report *models.FraudReport) error
	GetByID(ctx context.Context, id uint) (*models.FraudReport, error)
	List(ctx context.Context, filter ReportFilter) ([]models.FraudReport, int64, error)
	Save(ctx context.Context, report *models.FraudReport) error
}

type GormFraudReportRepository struct {
	db *gorm.DB
}

func NewGormFraudReportRepository(db *gorm.DB) *GormFraudReportRepository {
	return &GormFraudReportRepository{db: db}
}

func (r *GormFraudReportRepository) Create(ctx context.Context, report *models.FraudReport) error {
	return r.db.WithContext(ctx).Create(report).Error
}

func (r *GormFraudReportRepository) GetByID(ctx context.Context, id uint) (*models.FraudReport, error) {
	var report models.FraudReport
	if err := r.db.WithContext(ctx).First(&report, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &report, nil
}

func (r *GormFraudReportRepository) List(ctx context.Context, filter ReportFilter) ([]models.FraudReport, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.FraudReport{})
	if filter.UserID != nil {
		q = q.Where("user_id = ?", *filter.UserID)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.FraudType != "" {
		q = q.Where("fraud_type = ?", filter.FraudType)
	}
	if filter.RiskLevel != "" {
		q = q.Where("risk_level = ?", filter.RiskLevel)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page := filter.Page.normalize()
	var reports []models.FraudReport
	err := q.Order("reported_at DESC").Order("id DESC").
		Limit(page.Limit).
		Offset(page.Offset).
		Find(&reports).Error
	return reports, total, err
}

func (r *GormFraudReportRepository) Save(ctx context.Context, report *models.FraudReport) error {
	return r.db.WithContext(ctx).Save(report).Error
}
