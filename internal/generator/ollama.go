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
	OllamaBaseURL = "http://localhost:11434"
	OllamaModel   = "llama3.2"
)

var _ Generator = (*Ollama)(nil)

// Ollama generates descriptions with a local Ollama server. No API key is needed.
type Ollama struct {
	client  *http.Client
	baseURL string
	model   string
}

type ollamaRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

type ollamaResponse struct {
	Message chatMessage `json:"message"`
	Done    bool        `json:"done"`
	Error   string      `json:"error,omitempty"`
}

// NewOllama returns an Ollama backend.
func NewOllama(cfg Config) (*Ollama, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = OllamaBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = OllamaModel
	}
	return &Ollama{
		client:  newHTTPClient(cfg.Timeout),
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		model:   cfg.Model,
	}, nil
}

func (o *Ollama) Generate(ctx context.Context, e *models.Entity, model string) (string, error) {
	if model == "" {
		model = o.model
	}
	status, body, err := postJSON(ctx, o.client, o.baseURL+"/api/chat", nil, ollamaRequest{
		Model:    model,
		Messages: []chatMessage{{Role: "user", Content: userMessage(e)}},
		Stream:   false,
	})
	if err != nil {
		return "", fmt.Errorf("ollama: %w", err)
	}

	var resp ollamaResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("ollama: decode response (status %d): %w", status, err)
	}
	if resp.Error != "" {
		return "", fmt.Errorf("ollama error: %s", resp.Error)
	}
	if status != http.StatusOK {
		return "", fmt.Errorf("ollama error (status %d): %s", status, string(body))
	}
	text := strings.TrimSpace(resp.Message.Content)
	if text == "" {
		return "", fmt.Errorf("ollama: %w", ErrNoDescription)
	}
	return text, nil
}
