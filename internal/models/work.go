package models

// WorkItem is an entity paired with the scheduling decision made for it at scan time.
type WorkItem struct {
	Entity Entity
	// Key is the entity's binding key, unique within its file.
	Key             EntityKey
	FilePath        string
	Language        string
	Model           string
	NeedsGeneration bool
	// PreviousHash is the hash this entity was bound to before this run ("" when new).
	PreviousHash string
	// Revert is set when the entity went back to an older hash whose description can be reused.
	Revert bool
}

// GenerationResult is the outcome of processing one WorkItem.
type GenerationResult struct {
	Entity       Entity
	FilePath     string
	Language     string
	Description  *string
	WasGenerated bool
	// Err is set when no description could be produced; the entity is dropped from the file output.
	Err error
}

// ModelConfig selects a model per scope for one provider.
type ModelConfig struct {
	Default  string `yaml:"default,omitempty" json:"default,omitempty"`
	Project  string `yaml:"project,omitempty" json:"project,omitempty"`
	Package  string `yaml:"package,omitempty" json:"package,omitempty"`
	Module   string `yaml:"module,omitempty" json:"module,omitempty"`
	Class    string `yaml:"class,omitempty" json:"class,omitempty"`
	Function string `yaml:"function,omitempty" json:"function,omitempty"`
}

// ModelForScope returns the scope-specific model, falling back to Default. Empty means unset.
func (m ModelConfig) ModelForScope(scope Scope) string {
	var v string
	switch scope {
	case ScopeProject:
		v = m.Project
	case ScopePackage:
		v = m.Package
	case ScopeModule:
		v = m.Module
	case ScopeClass:
		v = m.Class
	case ScopeFunction:
		v = m.Function
	}
	if v != "" {
		return v
	}
	return m.Default
}
