package ledger

import (
	"context"
	"fmt"
	"io"

	"github.com/jrsteele09/garmin-osm-sync/internal/config"
)

const (
	BackendSQLite = "sqlite"
	BackendText   = "text"
)

// RepoCloser is a Repo holding resources that must be released.
type RepoCloser interface {
	Repo
	io.Closer
}

// Open returns the ledger selected by the storage configuration.
func Open(ctx context.Context, cfg config.StorageConfig) (RepoCloser, error) {
	switch cfg.GetLedgerBackend() {
	case BackendText:
		return NewTextRepo(cfg.GetProcessedActivitiesFile()), nil
	case BackendSQLite, "":
		return OpenSQLite(ctx, cfg.GetDBFile())
	default:
		return nil, fmt.Errorf("[ledger Open] unknown backend %q", cfg.GetLedgerBackend())
	}
}
