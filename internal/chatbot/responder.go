package chatbot

import (
	"context"
	"errors"
	"fmt"

	"fraud-advisor/backend/internal/generation"
	"fraud-advisor/backend/internal/models"
	"fraud-advisor/backend/pkg/logger"
)

// Source records where a reply came from
type Source string

const (
	SourceGenerated Source = "generated"
	SourceFallback  Source = "fallback"
	SourceSafety    Source = "safety"
)

// Fixed confidences for canned replies; both stay below GeneratedFloor
const (
	FallbackConfidence = 0.5
	SafetyConfidence   = 0.6
)

// GeneratedFloor is the lowest confidence a generated reply reports
const GeneratedFloor = 0.8

const (
	modelFallback = "fallback"
	modelSafety   = "safety-template"
)

// SessionContext is what the responder may know about the conversation
type SessionContext struct {
	History []models.ChatMessage
	Factors []string
}

// Response is the selected bot reply
type Response struct {
	Content    string
	Model      string
	Confidence float64
	Reasoning  string
	Source     Source
	Metadata   map[string]any
}

// Responder picks between the safety template, a generated reply and a
// tiered fallback template
type Responder struct {
	backend generation.Backend
	log     *logger.Logger
}

// NewResponder builds a responder; a nil backend means templates only
func NewResponder(backend generation.Backend, log *logger.Logger) *Responder {
	if backend == nil {
		backend = generation.Unavailable{}
	}
	if log == nil {
		log = logger.GetGlobal()
	}
	return &Responder{backend: backend, log: log}
}

// Backend exposes the configured generation backend
func (r *Responder) Backend() generation.Backend {
	return r.backend
}

// Select chooses the reply for message. The only error it returns is the
// caller's context being done while a generation call was in flight.
func (r *Responder) Select(ctx context.Context, message string, sc SessionContext, c Classification) (*Response, error) {
	var resp *Response

	switch {
	case c.RiskLevel == models.RiskCritical:
		resp = &Response{
			Content:    SafetyTemplate(c.FraudType),
			Model:      modelSafety,
			Confidence: SafetyConfidence,
			Reasoning:  "Fixed safety guidance for critical risk",
			Source:     SourceSafety,
		}
	case r.backend.IsAvailable():
		generated, err := r.generate(ctx, message, sc, c)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			r.log.Warn("Generation failed, using fallback template",
				"backend", r.backend.Name(),
				"error", err.Error(),
			)
			resp = fallback(c)
		} else {
			resp = generated
		}
	default:
		resp = fallback(c)
	}

	if hasFactor(sc.Factors, FactorElderly) {
		resp.Content += "\n\n" + ElderlyGuidance
	}

	resp.Metadata = map[string]any{
		"risk_level":       string(c.RiskLevel),
		"fraud_type":       string(c.FraudType),
		"confidence":       c.Confidence,
		"matched_keywords": c.MatchedKeywords,
		"response_source":  string(resp.Source),
	}
	return resp, nil
}

func (r *Responder) generate(ctx context.Context, message string, sc SessionContext, c Classification) (*Response, error) {
	out, err := r.backend.Generate(ctx, BuildPrompt(message, sc.History, c))
	if err != nil {
		return nil, err
	}
	if out == nil || out.Content == "" {
		return nil, errors.New("empty generation response")
	}

	conf := GeneratedConfidence(c.RiskLevel, out.Content)
	if out.Confidence != nil {
		conf = max(clamp01(*out.Confidence), GeneratedFloor)
	}
	model := out.Model
	if model == "" {
		model = r.backend.Name()
	}

	return &Response{
		Content:    out.Content,
		Model:      model,
		Confidence: conf,
		Reasoning:  fmt.Sprintf("AI analysis based on %s risk level and fraud type: %s", c.RiskLevel, c.FraudType),
		Source:     SourceGenerated,
	}, nil
}

func fallback(c Classification) *Response {
	return &Response{
		Content:    FallbackTemplate(c.RiskLevel, c.FraudType),
		Model:      modelFallback,
		Confidence: FallbackConfidence,
		Reasoning:  "Fallback response, generation backend unavailable",
		Source:     SourceFallback,
	}
}

// GreetingFor returns the opening bot message for a new session
func GreetingFor(factors []string) string {
	if hasFactor(factors, FactorElderly) {
		return Greeting + "\n\n" + ElderlyGuidance
	}
	return Greeting
}
