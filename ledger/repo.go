package ledger

import "context"

// Repo persists which activities have already been processed.
type Repo interface {
	// LoadProcessedIDs returns every recorded activity id regardless of status.
	LoadProcessedIDs(ctx context.Context) (map[string]struct{}, error)
	// Upsert records e, replacing any existing entry for the same activity.
	Upsert(ctx context.Context, e Entry) error
	// Get returns the entry for id or errors.ErrNotFound.
	Get(ctx context.Context, id string) (*Entry, error)
	// List returns all entries ordered by activity id.
	List(ctx context.Context) ([]Entry, error)
}

// Inserter is implemented by repos that can add an entry only when the id is absent.
// It reports whether a row was written.
type Inserter interface {
	InsertIfAbsent(ctx context.Context, e Entry) (bool, error)
}
