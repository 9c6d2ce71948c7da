package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// OpenAIConfig configures an OpenAI-compatible chat-completions endpoint
type OpenAIConfig struct {
	BaseURL     string
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float64
	HTTPClient  *http.Client
}

// OpenAIBackend calls POST {BaseURL}/chat/completions
type OpenAIBackend struct {
	cfg        OpenAIConfig
	httpClient *http.Client
}

// NewOpenAIBackend requires a base URL and a model; the API key may be empty
// for self-hosted compatible servers.
func NewOpenAIBackend(cfg OpenAIConfig) (*OpenAIBackend, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("generation base URL is required")
	}
	if cfg.Model == "" {
		return nil, errors.New("generation model is required")
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &OpenAIBackend{cfg: cfg, httpClient: client}, nil
}

func (b *OpenAIBackend) Name() string      { return "openai" }
func (b *OpenAIBackend) IsAvailable() bool { return true }

type openAIRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature"`
}

type openAIResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Generate sends the prompt and returns the first choice
func (b *OpenAIBackend) Generate(ctx context.Context, messages []Message) (*Response, error) {
	jsonData, err := json.Marshal(openAIRequest{
		Model:       b.cfg.Model,
		Messages:    messages,
		MaxTokens:   b.cfg.MaxTokens,
		Temperature: b.cfg.Temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("error marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.cfg.BaseURL+"/chat/completions", bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if b.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+b.cfg.APIKey)
	}

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error making API request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("error reading response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API request failed with status code %d: %s", resp.StatusCode, truncate(string(body), 256))
	}

	var out openAIResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("error unmarshaling response: %w", err)
	}
	if out.Error != nil {
		return nil, fmt.Errorf("API error: %s", out.Error.Message)
	}
	if len(out.Choices) == 0 || strings.TrimSpace(out.Choices[0].Message.Content) == "" {
		return nil, errors.New("no response generated")
	}

	model := out.Model
	if model == "" {
		model = b.cfg.Model
	}
	return &Response{Content: out.Choices[0].Message.Content, Model: model}, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
