// Package generator produces natural-language descriptions of code entities.
package generator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/codelod/internal/models"
)

// Generator describes one entity. An empty model selects the backend default.
type Generator interface {
	Generate(ctx context.Context, entity *models.Entity, model string) (string, error)
}

// ErrNoDescription is returned when a backend answers without any text.
var ErrNoDescription = errors.New("no description generated")

// Provider names.
const (
	ProviderMock      = "mock"
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderOllama    = "ollama"
)

// Providers lists every supported provider.
var Providers = []string{ProviderAnthropic, ProviderOpenAI, ProviderOllama, ProviderMock}

// Config configures a remote backend. Zero fields take backend defaults.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

type options struct {
	logger *zap.Logger
}

// Option configures New and WithFallback.
type Option func(*options)

// WithLogger sets the logger used to report fallbacks.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

func buildOptions(opts []Option) options {
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	return o
}

// New returns the generator for provider. Remote backends fall back to the mock
// description when a call fails.
func New(provider string, cfg Config, opts ...Option) (Generator, error) {
	var primary Generator
	var err error
	switch strings.ToLower(provider) {
	case ProviderMock, "":
		return Mock{}, nil
	case ProviderAnthropic:
		primary, err = NewAnthropic(cfg)
	case ProviderOpenAI:
		primary, err = NewOpenAI(cfg)
	case ProviderOllama:
		primary, err = NewOllama(cfg)
	default:
		return nil, fmt.Errorf("unknown provider %q (want one of %s)", provider, strings.Join(Providers, ", "))
	}
	if err != nil {
		return nil, err
	}
	return WithFallback(primary, Mock{}, opts...), nil
}

// DetectProvider picks a provider from the API keys present in the environment.
func DetectProvider(getenv func(string) string) string {
	switch {
	case getenv("ANTHROPIC_API_KEY") != "":
		return ProviderAnthropic
	case getenv("OPENAI_API_KEY") != "":
		return ProviderOpenAI
	default:
		return ProviderMock
	}
}
