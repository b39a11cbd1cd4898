package generator

import (
	"context"
	"fmt"

	"github.com/hyperjump/codelod/internal/models"
)

// Mock produces placeholder descriptions without calling a model. It is deterministic
// and is also the fallback for failed remote calls.
type Mock struct{}

// Generate returns a one-line description built from the entity's scope, name, and language.
func (Mock) Generate(ctx context.Context, e *models.Entity, model string) (string, error) {
	switch e.Scope {
	case models.ScopeFunction:
		return fmt.Sprintf("Function %s in %s.", e.Name, e.Language), nil
	case models.ScopeClass:
		return fmt.Sprintf("Class %s in %s.", e.Name, e.Language), nil
	case models.ScopeModule:
		return fmt.Sprintf("Module %s written in %s.", e.Name, e.Language), nil
	case models.ScopePackage:
		return fmt.Sprintf("Package %s containing related modules.", e.Name), nil
	case models.ScopeProject:
		return fmt.Sprintf("Project at %s.", e.Location.Path), nil
	default:
		return fmt.Sprintf("%s %s.", e.Scope, e.Name), nil
	}
}
