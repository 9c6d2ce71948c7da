package service

import (
	"strings"

	"fraud-advisor/backend/internal/models"
)

// Actor is the caller as far as visibility rules are concerned
type Actor struct {
	UserID *uint
	Admin  bool
}

// Anonymous is an unauthenticated caller
var Anonymous = Actor{}

// CanSee reports whether the actor may address the session at all
func (a Actor) CanSee(s *models.ChatSession) bool {
	return a.Admin || s.OwnedBy(a.UserID)
}

// checkTransition validates a status change and names the conflict when it is illegal.
//
//	active    -> escalated | closed | archived
//	escalated -> closed | archived
//	closed    -> archived
//	archived  -> (none)
func checkTransition(from, to models.SessionStatus) error {
	switch to {
	case models.SessionEscalated:
		switch from {
		case models.SessionActive:
			return nil
		case models.SessionEscalated:
			return ErrAlreadyEscalated
		case models.SessionClosed, models.SessionArchived:
			return ErrSessionClosed
		}
	case models.SessionClosed:
		switch from {
		case models.SessionActive, models.SessionEscalated:
			return nil
		case models.SessionClosed:
			return ErrAlreadyClosed
		}
	case models.SessionArchived:
		if from.Valid() && from != models.SessionArchived {
			return nil
		}
	}
	return ErrInvalidTransition
}

// normalizeFactors lowercases, trims and de-duplicates while keeping order
func normalizeFactors(in []string) ([]string, error) {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, f := range in {
		f = strings.ToLower(strings.TrimSpace(f))
		if f == "" {
			continue
		}
		if len(f) > maxFactorLength {
			return nil, validationError("vulnerability factor %q is too long", f)
		}
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	if len(out) > maxFactors {
		return nil, validationError("at most %d vulnerability factors are allowed", maxFactors)
	}
	return out, nil
}

const (
	maxFactors      = 10
	maxFactorLength = 50
)
