package generation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// LangchainBackend drives any langchaingo llms.Model
type LangchainBackend struct {
	name        string
	llm         llms.Model
	modelName   string
	maxTokens   int
	temperature float64
}

// NewLangchainBackend wraps an already constructed model
func NewLangchainBackend(name string, llm llms.Model, modelName string, maxTokens int, temperature float64) *LangchainBackend {
	return &LangchainBackend{
		name:        name,
		llm:         llm,
		modelName:   modelName,
		maxTokens:   maxTokens,
		temperature: temperature,
	}
}

// NewLangchainOpenAI builds an OpenAI model through langchaingo
func NewLangchainOpenAI(cfg OpenAIConfig) (*LangchainBackend, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("OpenAI API key required")
	}
	opts := []openai.Option{
		openai.WithToken(cfg.APIKey),
		openai.WithModel(cfg.Model),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	model, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("create openai model: %w", err)
	}
	return NewLangchainBackend("langchain-openai", model, cfg.Model, cfg.MaxTokens, cfg.Temperature), nil
}

// NewOllama builds a local Ollama model; BaseURL is the Ollama server
func NewOllama(cfg OpenAIConfig) (*LangchainBackend, error) {
	opts := []ollama.Option{ollama.WithModel(cfg.Model)}
	if cfg.BaseURL != "" {
		opts = append(opts, ollama.WithServerURL(cfg.BaseURL))
	}
	model, err := ollama.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("create ollama model: %w", err)
	}
	return NewLangchainBackend("ollama", model, cfg.Model, cfg.MaxTokens, cfg.Temperature), nil
}

func (b *LangchainBackend) Name() string      { return b.name }
func (b *LangchainBackend) IsAvailable() bool { return b.llm != nil }

// Generate maps the prompt onto langchaingo message parts
func (b *LangchainBackend) Generate(ctx context.Context, messages []Message) (*Response, error) {
	content := make([]llms.MessageContent, 0, len(messages))
	for _, m := range messages {
		content = append(content, llms.TextParts(chatRole(m.Role), m.Content))
	}

	var opts []llms.CallOption
	if b.maxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(b.maxTokens))
	}
	opts = append(opts, llms.WithTemperature(b.temperature))

	resp, err := b.llm.GenerateContent(ctx, content, opts...)
	if err != nil {
		return nil, fmt.Errorf("generate: %w", err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Content) == "" {
		return nil, errors.New("no response choices")
	}

	return &Response{Content: resp.Choices[0].Content, Model: b.modelName}, nil
}

func chatRole(r Role) llms.ChatMessageType {
	switch r {
	case RoleSystem:
		return llms.ChatMessageTypeSystem
	case RoleAssistant:
		return llms.ChatMessageTypeAI
	}
	return llms.ChatMessageTypeHuman
}
