package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"fraud-advisor/backend/internal/models"
	"fraud-advisor/backend/internal/repository"
	"fraud-advisor/backend/pkg/logger"
)

// FraudReportInput is the create payload
type FraudReportInput struct {
	FraudType     string   `json:"fraud_type"`
	Description   string   `json:"description"`
	RiskLevel     string   `json:"risk_level"`
	EvidenceFiles []string `json:"evidence_files"`
	EvidenceLinks []string `json:"evidence_links"`
	FinancialLoss *float64 `json:"financial_loss"`
	ChatSessionID *string  `json:"chat_session_id"`
}

// FraudReportUpdate is a partial update; nil fields are left alone
type FraudReportUpdate struct {
	Description     *string   `json:"description"`
	RiskLevel       *string   `json:"risk_level"`
	EvidenceFiles   *[]string `json:"evidence_files"`
	EvidenceLinks   *[]string `json:"evidence_links"`
	FinancialLoss   *float64  `json:"financial_loss"`
	Status          *string   `json:"status"`
	AssignedTo      *string   `json:"assigned_to"`
	ResolutionNotes *string   `json:"resolution_notes"`
}

// FraudReportService manages user-filed incident reports
type FraudReportService struct {
	store *repository.Store
	log   *logger.Logger
	now   func() time.Time
}

func NewFraudReportService(store *repository.Store, log *logger.Logger) *FraudReportService {
	if log == nil {
		log = logger.GetGlobal()
	}
	return &FraudReportService{
		store: store,
		log:   log,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (s *FraudReportService) Create(ctx context.Context, actor Actor, in FraudReportInput) (*models.FraudReport, error) {
	description := strings.TrimSpace(in.Description)
	if description == "" {
		return nil, validationError("description is required")
	}
	fraudType := models.FraudType(strings.ToLower(strings.TrimSpace(in.FraudType)))
	if !fraudType.Valid() {
		return nil, validationError("unknown fraud type %q", in.FraudType)
	}
	risk := models.RiskMedium
	if in.RiskLevel != "" {
		risk = models.RiskLevel(strings.ToLower(in.RiskLevel))
		if !risk.Valid() {
			return nil, validationError("unknown risk level %q", in.RiskLevel)
		}
	}
	if in.FinancialLoss != nil && *in.FinancialLoss < 0 {
		return nil, validationError("financial_loss must not be negative")
	}
	links, err := validateLinks(in.EvidenceLinks)
	if err != nil {
		return nil, err
	}

	report := &models.FraudReport{
		UserID:        actor.UserID,
		FraudType:     fraudType,
		Description:   description,
		RiskLevel:     risk,
		EvidenceFiles: nonNil(in.EvidenceFiles),
		EvidenceLinks: links,
		FinancialLoss: in.FinancialLoss,
		Status:        models.ReportOpen,
	}

	if in.ChatSessionID != nil && *in.ChatSessionID != "" {
		session, err := s.store.Sessions.GetBySessionID(ctx, *in.ChatSessionID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, ErrSessionNotFound
			}
			return nil, err
		}
		if !actor.CanSee(session) {
			return nil, ErrSessionNotFound
		}
		report.SessionID = &session.ID
		report.ChatSessionID = &session.SessionID
	}

	if err := s.store.Reports.Create(ctx, report); err != nil {
		return nil, fmt.Errorf("create fraud report: %w", err)
	}
	s.log.Info("Fraud report created", "reportId", report.ID, "fraudType", string(fraudType), "risk", string(risk))
	return report, nil
}

func (s *FraudReportService) Get(ctx context.Context, actor Actor, id uint) (*models.FraudReport, error) {
	report, err := s.store.Reports.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrReportNotFound
		}
		return nil, err
	}
	if !canSeeReport(actor, report) {
		return nil, ErrReportNotFound
	}
	if err := s.attachSessionIDs(ctx, report); err != nil {
		return nil, err
	}
	return report, nil
}

func (s *FraudReportService) List(ctx context.Context, actor Actor, filter repository.ReportFilter) ([]models.FraudReport, int64, error) {
	if !actor.Admin {
		if actor.UserID == nil {
			return []models.FraudReport{}, 0, nil
		}
		filter.UserID = actor.UserID
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, 0, validationError("unknown status %q", filter.Status)
	}
	if filter.FraudType != "" && !filter.FraudType.Valid() {
		return nil, 0, validationError("unknown fraud type %q", filter.FraudType)
	}
	if filter.RiskLevel != "" && !filter.RiskLevel.Valid() {
		return nil, 0, validationError("unknown risk level %q", filter.RiskLevel)
	}

	reports, total, err := s.store.Reports.List(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	for i := range reports {
		if err := s.attachSessionIDs(ctx, &reports[i]); err != nil {
			return nil, 0, err
		}
	}
	return reports, total, nil
}

// Update applies a partial change. Investigation fields are admin-only.
func (s *FraudReportService) Update(ctx context.Context, actor Actor, id uint, in FraudReportUpdate) (*models.FraudReport, error) {
	report, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if !actor.Admin && (in.Status != nil || in.AssignedTo != nil || in.ResolutionNotes != nil) {
		return nil, ErrForbidden
	}

	if in.Description != nil {
		d := strings.TrimSpace(*in.Description)
		if d == "" {
			return nil, validationError("description must not be empty")
		}
		report.Description = d
	}
	if in.RiskLevel != nil {
		r := models.RiskLevel(strings.ToLower(*in.RiskLevel))
		if !r.Valid() {
			return nil, validationError("unknown risk level %q", *in.RiskLevel)
		}
		report.RiskLevel = r
	}
	if in.EvidenceFiles != nil {
		report.EvidenceFiles = nonNil(*in.EvidenceFiles)
	}
	if in.EvidenceLinks != nil {
		links, err := validateLinks(*in.EvidenceLinks)
		if err != nil {
			return nil, err
		}
		report.EvidenceLinks = links
	}
	if in.FinancialLoss != nil {
		if *in.FinancialLoss < 0 {
			return nil, validationError("financial_loss must not be negative")
		}
		report.FinancialLoss = in.FinancialLoss
	}
	if in.Status != nil {
		st := models.ReportStatus(strings.ToLower(*in.Status))
		if !st.Valid() {
			return nil, validationError("unknown status %q", *in.Status)
		}
		if st.IsFinal() && !report.Status.IsFinal() {
			report.ResolvedAt = ptr(s.now())
		}
		if !st.IsFinal() {
			report.ResolvedAt = nil
		}
		report.Status = st
	}
	if in.AssignedTo != nil {
		report.AssignedTo = in.AssignedTo
	}
	if in.ResolutionNotes != nil {
		report.ResolutionNotes = in.ResolutionNotes
	}

	if err := s.store.Reports.Save(ctx, report); err != nil {
		return nil, fmt.Errorf("update fraud report: %w", err)
	}
	s.log.Info("Fraud report updated", "reportId", report.ID, "status", string(report.Status))
	return report, nil
}

func (s *FraudReportService) attachSessionIDs(ctx context.Context, report *models.FraudReport) error {
	if report.SessionID == nil {
		return nil
	}
	session, err := s.store.Sessions.GetByID(ctx, *report.SessionID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	report.ChatSessionID = &session.SessionID
	return nil
}

func canSeeReport(actor Actor, report *models.FraudReport) bool {
	if actor.Admin {
		return true
	}
	return report.UserID != nil && actor.UserID != nil && *report.UserID == *actor.UserID
}

func validateLinks(in []string) ([]string, error) {
	out := nonNil(in)
	for _, l := range out {
		u, err := url.Parse(l)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return nil, validationError("evidence link %q is not an http(s) URL", l)
		}
	}
	return out, nil
}
