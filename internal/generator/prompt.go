package generator

import (
	"fmt"

	"github.com/hyperjump/codelod/internal/models"
	"github.com/hyperjump/codelod/pkg/utils"
)

// MaxSourceLength is the largest source excerpt sent to a model, in bytes.
const MaxSourceLength = 8192

// defaultMaxTokens bounds the reply length for backends that require it.
const defaultMaxTokens = 1024

const (
	functionPrompt = `You are a code documentation expert. Generate a clear, concise description of the following function.

Function name: %s
Language: %s

Provide a 1-2 sentence description of what this function does, its inputs, and its output.`

	classPrompt = `You are a code documentation expert. Generate a clear, concise description of the following class.

Class name: %s
Language: %s

Provide a 1-2 sentence description of this class's purpose and key functionality.`

	modulePrompt = `You are a code documentation expert. Generate a clear, concise description of the following module.

Module name: %s
Language: %s

Provide a 2-3 sentence overview of this module's purpose and main exports.`
)

// Prompt returns the instruction for e without the source.
func Prompt(e *models.Entity) string {
	switch e.Scope {
	case models.ScopeFunction:
		return fmt.Sprintf(functionPrompt, e.QualifiedName(), e.Language)
	case models.ScopeClass:
		return fmt.Sprintf(classPrompt, e.QualifiedName(), e.Language)
	case models.ScopeModule:
		return fmt.Sprintf(modulePrompt, e.Name, e.Language)
	default:
		return fmt.Sprintf("Generate a concise 1-2 sentence description for this %s named %s in %s.", e.Scope, e.Name, e.Language)
	}
}

// userMessage is the full single-turn message sent to chat backends.
func userMessage(e *models.Entity) string {
	source := utils.TruncateWith(e.Source, MaxSourceLength, "\n... (truncated)")
	return fmt.Sprintf("%s\n\nSource code:\n```\n%s\n```", Prompt(e), source)
}
