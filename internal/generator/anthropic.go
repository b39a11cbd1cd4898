package generator

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/hyperjump/codelod/internal/models"
)

const (
	AnthropicBaseURL = "https://api.anthropic.com"
	AnthropicModel   = "claude-sonnet-4-5-20250929"

	anthropicVersion = "2023-06-01"
)

var _ Generator = (*Anthropic)(nil)

// Anthropic generates descriptions with the Anthropic Messages API.
type Anthropic struct {
	client  *http.Client
	baseURL string
	apiKey  string
	model   string
}

type anthropicRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// chatMessage is the role/content message shape shared by all chat APIs used here.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// NewAnthropic returns an Anthropic backend. An API key is required.
func NewAnthropic(cfg Config) (*Anthropic, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic: API key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = AnthropicBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = AnthropicModel
	}
	return &Anthropic{
		client:  newHTTPClient(cfg.Timeout),
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
	}, nil
}

func (a *Anthropic) Generate(ctx context.Context, e *models.Entity, model string) (string, error) {
	if model == "" {
		model = a.model
	}
	status, body, err := postJSON(ctx, a.client, a.baseURL+"/v1/messages", map[string]string{
		"x-api-key":         a.apiKey,
		"anthropic-version": anthropicVersion,
	}, anthropicRequest{
		Model:     model,
		Messages:  []chatMessage{{Role: "user", Content: userMessage(e)}},
		MaxTokens: defaultMaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("anthropic: %w", err)
	}

	var resp anthropicResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("anthropic: decode response (status %d): %w", status, err)
	}
	if resp.Error != nil {
		return "", fmt.Errorf("anthropic error: %s", resp.Error.Message)
	}
	if status != http.StatusOK {
		return "", fmt.Errorf("anthropic error (status %d): %s", status, string(body))
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", fmt.Errorf("anthropic: %w", ErrNoDescription)
	}
	return text, nil
}
