package service

import (
	"errors"
	"fmt"
)

var (
	ErrSessionNotFound   = errors.New("chat session not found")
	ErrMessageNotFound   = errors.New("chat message not found")
	ErrAlreadyEscalated  = errors.New("chat session is already escalated")
	ErrAlreadyClosed     = errors.New("chat session is already closed")
	ErrSessionClosed     = errors.New("chat session is closed")
	ErrInvalidTransition = errors.New("invalid session status transition")
	ErrRequestInProgress = errors.New("a request with this idempotency key is still in progress")

	ErrReportNotFound  = errors.New("fraud report not found")
	ErrAdvisorNotFound = errors.New("security advisor not found")
	ErrAdvisorExists   = errors.New("security advisor with this email already exists")
	ErrForbidden       = errors.New("operation not permitted")

	ErrValidation = errors.New("validation failed")
)

func validationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
