package token

import "context"

// Store persists the single token record.
//
// Load returns (nil, nil) when nothing usable is stored; unreadable or corrupt data is
// reported through the log and never returned as an error.
type Store interface {
	Load(ctx context.Context) (*Record, error)
	Save(ctx context.Context, record *Record) error
}
