package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"fraud-advisor/backend/internal/models"
	"fraud-advisor/backend/internal/repository"
	"fraud-advisor/backend/pkg/logger"
)

// CreateAdvisorInput is the admin payload for a new advisor
type CreateAdvisorInput struct {
	Name            string   `json:"name"`
	Email           string   `json:"email"`
	Phone           *string  `json:"phone"`
	Specialization  []string `json:"specialization"`
	Certifications  []string `json:"certifications"`
	ExperienceYears int      `json:"experience_years"`
	IsAvailable     *bool    `json:"is_available"`
	MaxLoad         int      `json:"max_load"`
}

// AdvisorService manages the human advisor roster
type AdvisorService struct {
	store *repository.Store
	log   *logger.Logger
}

func NewAdvisorService(store *repository.Store, log *logger.Logger) *AdvisorService {
	if log == nil {
		log = logger.GetGlobal()
	}
	return &AdvisorService{store: store, log: log}
}

func (s *AdvisorService) List(ctx context.Context, availableOnly bool) ([]models.SecurityAdvisor, error) {
	return s.store.Advisors.List(ctx, availableOnly)
}

func (s *AdvisorService) Get(ctx context.Context, id uint) (*models.SecurityAdvisor, error) {
	advisor, err := s.store.Advisors.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrAdvisorNotFound
	}
	return advisor, err
}

func (s *AdvisorService) Create(ctx context.Context, in CreateAdvisorInput) (*models.SecurityAdvisor, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, validationError("name is required")
	}
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, validationError("invalid email %q", in.Email)
	}
	if in.ExperienceYears < 0 {
		return nil, validationError("experience_years must not be negative")
	}
	maxLoad := in.MaxLoad
	if maxLoad == 0 {
		maxLoad = 10
	}
	if maxLoad < 0 {
		return nil, validationError("max_load must be positive")
	}

	available := true
	if in.IsAvailable != nil {
		available = *in.IsAvailable
	}

	advisor := &models.SecurityAdvisor{
		Name:            name,
		Email:           email,
		Phone:           in.Phone,
		Specialization:  nonNil(in.Specialization),
		Certifications:  nonNil(in.Certifications),
		ExperienceYears: in.ExperienceYears,
		IsAvailable:     available,
		MaxLoad:         maxLoad,
	}

	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		_, err := tx.Advisors.GetByEmail(ctx, email)
		switch {
		case err == nil:
			return ErrAdvisorExists
		case !errors.Is(err, repository.ErrNotFound):
			return err
		}
		return tx.Advisors.Create(ctx, advisor)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("Security advisor created", "advisorId", advisor.ID, "email", advisor.Email)
	return advisor, nil
}

func (s *AdvisorService) SetAvailability(ctx context.Context, id uint, available bool) (*models.SecurityAdvisor, error) {
	advisor, err := s.store.Advisors.SetAvailability(ctx, id, available)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrAdvisorNotFound
	}
	if err != nil {
		return nil, err
	}
	s.log.Info("Security advisor availability changed", "advisorId", id, "available", available)
	return advisor, nil
}

func nonNil(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
