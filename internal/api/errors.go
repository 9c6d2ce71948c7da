package api

import (
	"errors"
	"strconv"
	"strings"

	"fraud-advisor/backend/internal/repository"
	"fraud-advisor/backend/internal/service"
	apperrors "fraud-advisor/backend/pkg/errors"
	"fraud-advisor/backend/pkg/middleware"

	"github.com/gin-gonic/gin"
)

// ServiceError maps service sentinels onto client-facing AppErrors.
// Anything unrecognised becomes an opaque 500.
func ServiceError(err error) *apperrors.AppError {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	switch {
	case errors.Is(err, service.ErrValidation):
		msg := strings.TrimPrefix(err.Error(), service.ErrValidation.Error()+": ")
		return apperrors.NewBadRequestError("VALIDATION_ERROR", msg)

	case errors.Is(err, service.ErrSessionNotFound):
		return apperrors.NewNotFoundError("SESSION_NOT_FOUND", "Chat session not found")
	case errors.Is(err, service.ErrMessageNotFound):
		return apperrors.NewNotFoundError("MESSAGE_NOT_FOUND", "Message not found in this session")
	case errors.Is(err, service.ErrReportNotFound):
		return apperrors.NewNotFoundError("REPORT_NOT_FOUND", "Fraud report not found")
	case errors.Is(err, service.ErrAdvisorNotFound):
		return apperrors.NewNotFoundError("ADVISOR_NOT_FOUND", "Security advisor not found")
	case errors.Is(err, service.ErrUserNotFound):
		return apperrors.NewNotFoundError("USER_NOT_FOUND", "User not found")

	case errors.Is(err, service.ErrAlreadyEscalated):
		return apperrors.NewConflictError("ALREADY_ESCALATED", "Session is already escalated")
	case errors.Is(err, service.ErrAlreadyClosed):
		return apperrors.NewConflictError("ALREADY_CLOSED", "Session is already closed")
	case errors.Is(err, service.ErrSessionClosed):
		return apperrors.NewConflictError("SESSION_CLOSED", "Session no longer accepts messages")
	case errors.Is(err, service.ErrInvalidTransition):
		return apperrors.NewConflictError("INVALID_TRANSITION", "Session cannot move to the requested state")
	case errors.Is(err, service.ErrRequestInProgress):
		return apperrors.NewConflictError("REQUEST_IN_PROGRESS", "A request with this idempotency key is still running")
	case errors.Is(err, service.ErrAdvisorExists):
		return apperrors.NewConflictError("ADVISOR_EXISTS", "An advisor with this email already exists")
	case errors.Is(err, service.ErrUserAlreadyExists):
		return apperrors.NewConflictError("USER_EXISTS", "A user with this email already exists")

	case errors.Is(err, service.ErrForbidden):
		return apperrors.NewForbiddenError("FORBIDDEN", "You are not allowed to perform this operation")
	case errors.Is(err, service.ErrInvalidCredentials):
		return apperrors.NewUnauthorizedError("INVALID_CREDENTIALS", "Invalid email or password")
	}

	return apperrors.FromError(err)
}

// fail records err for ErrorHandler and stops the chain
func fail(c *gin.Context, err error) {
	_ = c.Error(ServiceError(err))
	c.Abort()
}

func badRequest(c *gin.Context, message string) {
	_ = c.Error(apperrors.NewBadRequestError("VALIDATION_ERROR", message))
	c.Abort()
}

// actor derives the caller from the optional auth middleware
func actor(c *gin.Context) service.Actor {
	claims, ok := middleware.Claims(c)
	if !ok {
		return service.Anonymous
	}
	id := claims.UserID
	return service.Actor{UserID: &id, Admin: claims.IsAdmin()}
}

// page reads limit/offset query parameters
func page(c *gin.Context) (repository.Page, bool) {
	var p repository.Page
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			badRequest(c, "limit must be a positive integer")
			return p, false
		}
		p.Limit = n
	}
	if v := c.Query("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			badRequest(c, "offset must be a non-negative integer")
			return p, false
		}
		p.Offset = n
	}
	return p, true
}

func uintParam(c *gin.Context, name string) (uint, bool) {
	n, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || n == 0 {
		badRequest(c, name+" must be a positive integer")
		return 0, false
	}
	return uint(n), true
}

// listResponse is the envelope of every paginated listing
type listResponse[T any] struct {
	Items  []T   `json:"items"`
	Total  int64 `json:"total"`
	Limit  int   `json:"limit"`
	Offset int   `json:"offset"`
}

func newList[T any](items []T, total int64, p repository.Page) listResponse[T] {
	if items == nil {
		items = []T{}
	}
	limit := p.Limit
	if limit <= 0 {
		limit = 50
	}
	return listResponse[T]{Items: items, Total: total, Limit: limit, Offset: p.Offset}
}
