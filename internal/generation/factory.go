package generation

import (
	"fmt"
	"time"

	"fraud-advisor/backend/pkg/logger"
)

// Config selects and configures a provider
type Config struct {
	Provider         string
	BaseURL          string
	APIKey           string
	Model            string
	MaxTokens        int
	Temperature      float64
	Timeout          time.Duration
	BreakerThreshold int
	BreakerCooldown  time.Duration
	Observer         Observer
}

// New builds the configured backend wrapped in Guarded. An empty or "none"
// provider, or a provider that fails to initialize, yields a permanently
// unavailable backend so the chat flow keeps working on templates.
func New(cfg Config, log *logger.Logger) Backend {
	if log == nil {
		log = logger.GetGlobal()
	}

	inner, err := build(cfg)
	if err != nil {
		log.Warn("Generation backend disabled", "provider", cfg.Provider, "error", err.Error())
		return Unavailable{}
	}
	if inner == nil {
		log.Info("No generation provider configured, using response templates only")
		return Unavailable{}
	}

	log.Info("Generation backend configured", "provider", inner.Name(), "model", cfg.Model)
	return NewGuarded(inner, GuardOptions{
		Timeout:          cfg.Timeout,
		FailureThreshold: uint(max(cfg.BreakerThreshold, 0)),
		Cooldown:         cfg.BreakerCooldown,
		Observer:         cfg.Observer,
	}, log)
}

func build(cfg Config) (Backend, error) {
	oc := OpenAIConfig{
		BaseURL:     cfg.BaseURL,
		APIKey:      cfg.APIKey,
		Model:       cfg.Model,
		MaxTokens:   cfg.MaxTokens,
		Temperature: cfg.Temperature,
	}

	switch cfg.Provider {
	case "", "none":
		return nil, nil
	case "openai":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("GENERATION_API_KEY is required for provider openai")
		}
		return NewOpenAIBackend(oc)
	case "langchain-openai":
		return NewLangchainOpenAI(oc)
	case "ollama":
		return NewOllama(oc)
	}
	return nil, fmt.Errorf("unsupported generation provider: %s", cfg.Provider)
}
