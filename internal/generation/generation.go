// Package generation adapts external text-generation providers behind one
// capability-checked interface.
package generation

import (
	"context"
	"errors"
)

// ErrUnavailable means no call was attempted because the backend cannot serve
var ErrUnavailable = errors.New("generation backend unavailable")

// Role tags a prompt message
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one role-tagged prompt entry
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Response is the generated reply. Confidence is nil when the provider gives none.
type Response struct {
	Content    string
	Model      string
	Confidence *float64
}

// Backend is a text-generation provider
type Backend interface {
	// Name identifies the provider in logs and metrics
	Name() string
	// IsAvailable reports whether Generate is worth calling right now
	IsAvailable() bool
	Generate(ctx context.Context, messages []Message) (*Response, error)
}

// Unavailable is the backend used when no provider is configured.
// It stays unavailable for the life of the process.
type Unavailable struct{}

func (Unavailable) Name() string      { return "none" }
func (Unavailable) IsAvailable() bool { return false }

func (Unavailable) Generate(context.Context, []Message) (*Response, error) {
	return nil, ErrUnavailable
}
