// Package models defines core data structures for code entities, description records, and pipeline work.
package models

import (
	"fmt"
	"strings"
	"time"
)

// Scope is the hierarchical level of a code entity.
type Scope string

const (
	ScopeProject  Scope = "project"
	ScopePackage  Scope = "package"
	ScopeModule   Scope = "module"
	ScopeClass    Scope = "class"
	ScopeFunction Scope = "function"
)

// Scopes lists every scope from the widest to the narrowest.
var Scopes = []Scope{ScopeProject, ScopePackage, ScopeModule, ScopeClass, ScopeFunction}

// ParseScope returns the scope named by s (case-insensitive).
func ParseScope(s string) (Scope, error) {
	want := Scope(strings.ToLower(strings.TrimSpace(s)))
	for _, sc := range Scopes {
		if sc == want {
			return sc, nil
		}
	}
	return "", fmt.Errorf("unknown scope %q", s)
}

// Location is the position of an entity in its source file. Lines are 1-indexed and inclusive.
type Location struct {
	Path      string `json:"path"`
	StartLine int    `json:"start_line"`
	EndLine   int    `json:"end_line"`
}

// Entity is a unit of code eligible for an independent description.
// Hash is the content hash of Source and is filled in by the scanner, not the extractor.
type Entity struct {
	Scope      Scope    `json:"scope"`
	Name       string   `json:"name"`
	Location   Location `json:"location"`
	Source     string   `json:"-"`
	Language   string   `json:"language"`
	ParentName string   `json:"parent_name,omitempty"`
	Hash       string   `json:"hash,omitempty"`
}

// QualifiedName returns Parent.Name for nested entities and Name otherwise.
func (e *Entity) QualifiedName() string {
	if e.ParentName == "" {
		return e.Name
	}
	return e.ParentName + "." + e.Name
}

// DescriptionRecord is a persisted description keyed by content hash.
type DescriptionRecord struct {
	Hash        string    `json:"hash" db:"hash"`
	Description string    `json:"description" db:"description"`
	Stale       bool      `json:"stale" db:"stale"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
	// HashHistory lists hashes that previously described the same logical entity, oldest first.
	HashHistory []string `json:"hash_history" db:"hash_history"`
}

// HasHistory reports whether hash appears in the record's hash history.
func (r *DescriptionRecord) HasHistory(hash string) bool {
	for _, h := range r.HashHistory {
		if h == hash {
			return true
		}
	}
	return false
}

// EntityKey identifies a logical entity across edits: the same key keeps pointing at
// whatever hash the entity's source currently has.
type EntityKey struct {
	Path  string `json:"path"`
	Scope Scope  `json:"scope"`
	Name  string `json:"name"`
}

// KeyOf returns the binding key for e in the file at path.
func KeyOf(path string, e *Entity) EntityKey {
	return EntityKey{Path: path, Scope: e.Scope, Name: e.QualifiedName()}
}

// Nth returns the key of the n-th (zero based) entity in a file sharing k's scope and
// name, such as repeated Go init functions. The first keeps k unchanged.
func (k EntityKey) Nth(n int) EntityKey {
	if n > 0 {
		k.Name = fmt.Sprintf("%s#%d", k.Name, n+1)
	}
	return k
}
