// Package storage defines the persistence interface for description records and entity bindings.
package storage

import (
	"context"
	"errors"

	"github.com/hyperjump/codelod/internal/models"
)

// ErrNotFound is returned when no record exists for a hash.
var ErrNotFound = errors.New("description not found")

// Storage maps content hashes to description records.
// All methods are safe for concurrent use; callers must not wrap them in their own locks.
type Storage interface {
	// Description records
	Get(ctx context.Context, hash string) (*models.DescriptionRecord, error)
	// Set upserts a record. A nil history keeps the stored history.
	Set(ctx context.Context, hash, description string, stale bool, history []string) error
	// MarkStale and MarkFresh are idempotent and ignore unknown hashes.
	MarkStale(ctx context.Context, hash string) error
	MarkFresh(ctx context.Context, hash string) error
	ListStale(ctx context.Context) ([]*models.DescriptionRecord, error)
	// Delete is for administrative cleanup only; the generation path never deletes.
	Delete(ctx context.Context, hash string) error

	// Entity bindings: which hash a logical entity currently has
	BoundHash(ctx context.Context, key models.EntityKey) (string, error)
	Bind(ctx context.Context, key models.EntityKey, hash string) error
	UnbindFile(ctx context.Context, path string) error
	// MarkStaleUnbound marks hash stale only when no entity binding points to it.
	MarkStaleUnbound(ctx context.Context, hash string) error
	PurgeUnbound(ctx context.Context) (int64, error)

	// Stats
	Count(ctx context.Context) (total, stale int64, err error)

	Close() error
}
