package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/codelod/internal/extract"
	"github.com/hyperjump/codelod/internal/fingerprint"
	"github.com/hyperjump/codelod/internal/models"
	"github.com/hyperjump/codelod/internal/storage"
)

// ModelResolver picks the model name for a scope. "" means the backend default.
type ModelResolver interface {
	ResolveModel(scope models.Scope) string
}

// ModelResolverFunc adapts a function to ModelResolver.
type ModelResolverFunc func(models.Scope) string

func (f ModelResolverFunc) ResolveModel(scope models.Scope) string { return f(scope) }

// Scanner turns a file into work items. It only reads from the store.
type Scanner struct {
	extractor extract.Extractor
	store     storage.Storage
	resolver  ModelResolver
	root      string
	logger    *zap.Logger

	// forceScopes, when non-empty, limits forced regeneration to these scopes.
	forceScopes map[models.Scope]bool
}

// NewScanner returns a scanner. root, when set, makes binding keys relative to it.
func NewScanner(extractor extract.Extractor, store storage.Storage, resolver ModelResolver, root string, logger *zap.Logger) *Scanner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scanner{
		extractor: extractor,
		store:     store,
		resolver:  resolver,
		root:      root,
		logger:    logger,
	}
}

// Scan extracts the entities of file and decides, once, which need generation.
// Unsupported files yield no items and no error.
func (s *Scanner) Scan(ctx context.Context, file string, force bool) ([]models.WorkItem, string, error) {
	absPath, err := filepath.Abs(file)
	if err != nil {
		return nil, "", fmt.Errorf("absolute path: %w", err)
	}
	absPath = filepath.Clean(absPath)

	lang, entities, err := s.extractor.Extract(ctx, absPath)
	if errors.Is(err, extract.ErrUnsupported) {
		s.logger.Debug("skipping unsupported file", zap.String("path", absPath))
		return nil, "", nil
	}
	if err != nil {
		return nil, "", err
	}

	keyPath := s.KeyPath(absPath)
	items := make([]models.WorkItem, 0, len(entities))
	seen := make(map[models.EntityKey]int, len(entities))
	for _, e := range entities {
		force := force && s.forces(e.Scope)
		e.Hash = fingerprint.SumLanguage(lang, e.Source)
		if e.Language == "" {
			e.Language = lang
		}

		rec, err := s.lookup(ctx, e.Hash)
		if err != nil {
			return nil, "", err
		}
		key := models.KeyOf(keyPath, &e)
		n := seen[key]
		seen[key]++
		key = key.Nth(n)
		prev, err := s.store.BoundHash(ctx, key)
		if err != nil {
			return nil, "", fmt.Errorf("lookup binding: %w", err)
		}

		item := models.WorkItem{
			Entity:          e,
			Key:             key,
			FilePath:        absPath,
			Language:        lang,
			NeedsGeneration: force || rec == nil || rec.Stale,
			PreviousHash:    prev,
		}
		if s.resolver != nil {
			item.Model = s.resolver.ResolveModel(e.Scope)
		}
		if !force {
			revert, err := s.isRevert(ctx, rec, e.Hash, prev)
			if err != nil {
				return nil, "", err
			}
			if revert {
				item.Revert = true
				item.NeedsGeneration = false
			}
		}
		items = append(items, item)
	}
	return items, lang, nil
}

// LimitForce restricts forced regeneration to scopes. No scopes means every scope.
func (s *Scanner) LimitForce(scopes ...models.Scope) {
	s.forceScopes = nil
	for _, sc := range scopes {
		if s.forceScopes == nil {
			s.forceScopes = make(map[models.Scope]bool)
		}
		s.forceScopes[sc] = true
	}
}

func (s *Scanner) forces(scope models.Scope) bool {
	return len(s.forceScopes) == 0 || s.forceScopes[scope]
}

// isRevert reports whether the entity went back to source it had before: its current
// hash has a stale record with a description, and the hash it moved away from lists
// the current hash in its history.
func (s *Scanner) isRevert(ctx context.Context, rec *models.DescriptionRecord, hash, prev string) (bool, error) {
	if rec == nil || !rec.Stale || rec.Description == "" || prev == "" || prev == hash {
		return false, nil
	}
	prevRec, err := s.lookup(ctx, prev)
	if err != nil || prevRec == nil {
		return false, err
	}
	return prevRec.HasHistory(hash), nil
}

// lookup returns the record for hash, or nil if there is none.
func (s *Scanner) lookup(ctx context.Context, hash string) (*models.DescriptionRecord, error) {
	rec, err := s.store.Get(ctx, hash)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup %s: %w", hash, err)
	}
	return rec, nil
}

// KeyPath is the path used in binding keys: relative to root (slash-separated) when
// the file is inside it, otherwise absolute.
func (s *Scanner) KeyPath(absPath string) string {
	if s.root == "" {
		return absPath
	}
	rel, err := filepath.Rel(s.root, absPath)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return absPath
	}
	return filepath.ToSlash(rel)
}
