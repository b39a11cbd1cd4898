package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/multierr"
	"golang.org/x/sync/singleflight"

	"github.com/hyperjump/codelod/internal/models"
	"github.com/hyperjump/codelod/internal/storage"
)

// MaxHashHistory bounds the hashes remembered per record.
const MaxHashHistory = 16

// flights makes sure each hash is generated at most once per run. Concurrent callers
// for the same hash share one generator call; later callers reuse the memoized text.
type flights struct {
	group singleflight.Group
	mu    sync.Mutex
	memo  map[string]string
}

func newFlights() *flights {
	return &flights{memo: make(map[string]string)}
}

func (f *flights) lookup(hash string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	desc, ok := f.memo[hash]
	return desc, ok
}

func (f *flights) remember(hash, desc string) {
	f.mu.Lock()
	f.memo[hash] = desc
	f.mu.Unlock()
}

// flightResult carries a store failure alongside a valid description.
type flightResult struct {
	desc     string
	storeErr error
}

// process resolves one work item. The returned error reports store failures; the
// result's Err reports that the entity has no description and must be dropped.
func (p *Pipeline) process(ctx context.Context, r *run, item models.WorkItem) (models.GenerationResult, error) {
	result := models.GenerationResult{
		Entity:   item.Entity,
		FilePath: item.FilePath,
		Language: item.Language,
	}
	hash := item.Entity.Hash

	var desc string
	var errs error
	if item.NeedsGeneration {
		d, generated, storeErr, err := p.generateOnce(ctx, r, item)
		if err != nil {
			result.Err = fmt.Errorf("generate %s: %w", item.Entity.QualifiedName(), err)
			return result, nil
		}
		desc = d
		result.WasGenerated = generated
		errs = multierr.Append(errs, storeErr)
	} else {
		rec, err := p.store.Get(ctx, hash)
		if err != nil {
			result.Err = fmt.Errorf("load description %s: %w", hash, err)
			if errors.Is(err, storage.ErrNotFound) {
				return result, nil
			}
			return result, result.Err
		}
		desc = rec.Description
		if item.Revert {
			errs = multierr.Append(errs, p.store.MarkFresh(ctx, hash))
		}
		if carry := item.PreviousHash; carry != "" && carry != hash && !rec.HasHistory(carry) {
			errs = multierr.Append(errs, p.store.Set(ctx, hash, rec.Description, rec.Stale && !item.Revert, appendHistory(rec.HashHistory, carry)))
		}
	}
	result.Description = &desc

	errs = multierr.Append(errs, p.rebind(ctx, r, item))
	return result, errs
}

// generateOnce generates and persists the description for item's hash unless another
// worker in this run already did. generated is true only for the caller that ran the generator.
func (p *Pipeline) generateOnce(ctx context.Context, r *run, item models.WorkItem) (desc string, generated bool, storeErr, err error) {
	hash := item.Entity.Hash
	if d, ok := r.flights.lookup(hash); ok {
		return d, false, nil, nil
	}

	ran := false
	v, err, _ := r.flights.group.Do(hash, func() (any, error) {
		if d, ok := r.flights.lookup(hash); ok {
			return flightResult{desc: d}, nil
		}
		ran = true
		d, err := p.gen.Generate(ctx, &item.Entity, item.Model)
		if err != nil {
			return nil, err
		}
		history, err := p.historyFor(ctx, hash, item.PreviousHash)
		if err == nil {
			err = p.store.Set(ctx, hash, d, false, history)
		}
		r.flights.remember(hash, d)
		if err != nil {
			err = fmt.Errorf("store description %s: %w", hash, err)
		}
		return flightResult{desc: d, storeErr: err}, nil
	})
	if err != nil {
		return "", false, nil, err
	}
	fr := v.(flightResult)
	if !ran {
		// Only the generating caller reports the store failure.
		return fr.desc, false, nil, nil
	}
	return fr.desc, true, fr.storeErr, nil
}

// historyFor returns the history to store with a fresh description for hash: nil keeps
// what is stored, unless prev must be carried in.
func (p *Pipeline) historyFor(ctx context.Context, hash, prev string) ([]string, error) {
	if prev == "" || prev == hash {
		return nil, nil
	}
	rec, err := p.store.Get(ctx, hash)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return []string{prev}, nil
	case err != nil:
		return nil, err
	case rec.HasHistory(prev):
		return nil, nil
	}
	return appendHistory(rec.HashHistory, prev), nil
}

// rebind points the entity's key at its current hash. The hash it moved away from is
// marked stale once no other entity is bound to it.
func (p *Pipeline) rebind(ctx context.Context, r *run, item models.WorkItem) error {
	hash := item.Entity.Hash
	key := item.Key
	if key.Name == "" {
		key = models.KeyOf(r.scanner.KeyPath(item.FilePath), &item.Entity)
	}
	if item.PreviousHash == hash {
		return nil
	}
	if err := p.store.Bind(ctx, key, hash); err != nil {
		return fmt.Errorf("bind %s: %w", key.Name, err)
	}
	if item.PreviousHash == "" {
		return nil
	}
	if err := p.store.MarkStaleUnbound(ctx, item.PreviousHash); err != nil {
		return fmt.Errorf("mark stale %s: %w", item.PreviousHash, err)
	}
	return nil
}

// appendHistory returns a copy of history with hash appended, keeping the newest MaxHashHistory entries.
func appendHistory(history []string, hash string) []string {
	out := make([]string, 0, len(history)+1)
	for _, h := range history {
		if h != hash {
			out = append(out, h)
		}
	}
	out = append(out, hash)
	if len(out) > MaxHashHistory {
		out = out[len(out)-MaxHashHistory:]
	}
	return out
}
