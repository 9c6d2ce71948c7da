package service

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"fraud-advisor/backend/internal/models"
	"fraud-advisor/backend/internal/repository"
	"fraud-advisor/backend/pkg/jwt"
	"fraud-advisor/backend/pkg/logger"
)

var (
	ErrUserAlreadyExists  = errors.New("user with this email already exists")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUserNotFound       = errors.New("user not found")
)

// UserService handles user-related operations
type UserService struct {
	store *repository.Store
	jwt   *jwt.Service
	log   *logger.Logger
}

// NewUserService creates a new user service
func NewUserService(store *repository.Store, jwtService *jwt.Service, log *logger.Logger) *UserService {
	if log == nil {
		log = logger.GetGlobal()
	}
	return &UserService{store: store, jwt: jwtService, log: log}
}

// CreateUser creates a new user and returns a token for it
func (s *UserService) CreateUser(ctx context.Context, req *models.CreateUserRequest) (*models.User, string, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))

	// Check if user already exists
	_, err := s.store.Users.GetByEmail(ctx, email)
	if err == nil {
		return nil, "", ErrUserAlreadyExists
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, "", err
	}

	user := models.User{
		Name:     strings.TrimSpace(req.Name),
		Email:    email,
		Password: req.Password,
		Role:     string(jwt.RoleUser),
	}
	if err := s.store.Users.Create(ctx, &user); err != nil {
		return nil, "", err
	}

	token, err := s.jwt.GenerateToken(user.ID, user.Email, user.JWTRole())
	if err != nil {
		return nil, "", err
	}

	s.log.WithUserID(strconv.FormatUint(uint64(user.ID), 10)).Info("User signed up", "email", user.Email)
	return &user, token, nil
}

// Login authenticates a user and returns a JWT token
func (s *UserService) Login(ctx context.Context, req *models.LoginRequest) (*models.User, string, error) {
	user, err := s.store.Users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", err
	}

	if !models.CheckPasswordHash(req.Password, user.Password) {
		return nil, "", ErrInvalidCredentials
	}

	now := time.Now().UTC()
	if err := s.store.Users.TouchLogin(ctx, user.ID, now); err != nil {
		s.log.Warn("Failed to record last login", "userId", user.ID, "error", err.Error())
	} else {
		user.LastLogin = &now
	}

	token, err := s.jwt.GenerateToken(user.ID, user.Email, user.JWTRole())
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// GetUserByID retrieves a user by ID
func (s *UserService) GetUserByID(ctx context.Context, id uint) (*models.User, error) {
	user, err := s.store.Users.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	return user, err
}
