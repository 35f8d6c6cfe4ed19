package history

import (
	"context"
	"sort"
	"sync"
)

// MemoryRepo keeps runs in memory and is safe for concurrent use.
type MemoryRepo struct {
	mu   sync.RWMutex
	runs []Run
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{}
}

// Create stores the run.
func (r *MemoryRepo) Create(ctx context.Context, run Run) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, run)
	return nil
}

// GetByID returns a run by its ID.
func (r *MemoryRepo) GetByID(ctx context.Context, id string) (Run, error) {
	if err := ctx.Err(); err != nil {
		return Run{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, run := range r.runs {
		if run.ID == id {
			return run, nil
		}
	}
	return Run{}, ErrNotFound
}

// List returns runs newest first. A non-positive limit returns all of them.
func (r *MemoryRepo) List(ctx context.Context, limit int) ([]Run, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	out := make([]Run, len(r.runs))
	copy(out, r.runs)
	r.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].GeneratedAt.After(out[j].GeneratedAt)
	})
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

// Latest returns the most recent run.
func (r *MemoryRepo) Latest(ctx context.Context) (Run, error) {
	runs, err := r.List(ctx, 1)
	if err != nil {
		return Run{}, err
	}
	if len(runs) == 0 {
		return Run{}, ErrNotFound
	}
	return runs[0], nil
}
