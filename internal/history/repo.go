package history

import "context"

// Repo defines persistence operations for audit runs.
type Repo interface {
	Create(ctx context.Context, run Run) error
	GetByID(ctx context.Context, id string) (Run, error)
	List(ctx context.Context, limit int) ([]Run, error)
	Latest(ctx context.Context) (Run, error)
}
