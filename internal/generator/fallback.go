package generator

import (
	"context"
	"strings"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/hyperjump/codelod/internal/models"
)

// Fallback answers with a secondary generator when the primary fails or returns nothing.
type Fallback struct {
	primary  Generator
	fallback Generator
	logger   *zap.Logger
}

// WithFallback wraps primary so that its failures are answered by fallback.
// An error is returned only when both fail.
func WithFallback(primary, fallback Generator, opts ...Option) *Fallback {
	o := buildOptions(opts)
	return &Fallback{primary: primary, fallback: fallback, logger: o.logger}
}

func (f *Fallback) Generate(ctx context.Context, e *models.Entity, model string) (string, error) {
	desc, err := f.primary.Generate(ctx, e, model)
	if err == nil {
		if desc = strings.TrimSpace(desc); desc != "" {
			return desc, nil
		}
		err = ErrNoDescription
	}
	f.logger.Warn("generation failed, using fallback",
		zap.String("entity", e.QualifiedName()),
		zap.String("path", e.Location.Path),
		zap.String("model", model),
		zap.Error(err),
	)

	desc, ferr := f.fallback.Generate(ctx, e, model)
	if ferr != nil {
		return "", multierr.Append(err, ferr)
	}
	return desc, nil
}
