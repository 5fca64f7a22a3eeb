package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// MigrationReport summarises a MigrateText run.
type MigrationReport struct {
	Source   string
	Read     int
	Inserted int
	Skipped  int
}

// MigrateText copies every id in the legacy file at path into dst with status "migrated".
// Ids already in dst are left untouched, so running it twice changes nothing. A missing file
// yields an empty report.
func MigrateText(ctx context.Context, path string, dst Repo) (MigrationReport, error) {
	report := MigrationReport{Source: path}

	ids, err := readIDs(path)
	if err != nil {
		return report, err
	}
	if len(ids) == 0 {
		log.Ctx(ctx).Info().Str("path", path).Msg("No legacy processed ids to migrate")
		return report, nil
	}

	inserter, ok := dst.(Inserter)
	if !ok {
		return report, fmt.Errorf("[ledger MigrateText] %T does not support insert-if-absent", dst)
	}

	now := time.Now().UTC()
	for _, id := range ids {
		report.Read++
		inserted, err := inserter.InsertIfAbsent(ctx, Entry{
			ActivityID: id,
			UploadedAt: now,
			Status:     StatusMigrated,
		})
		if err != nil {
			return report, err
		}
		if inserted {
			report.Inserted++
		} else {
			report.Skipped++
		}
	}

	log.Ctx(ctx).Info().
		Str("path", path).
		Int("read", report.Read).
		Int("inserted", report.Inserted).
		Int("skipped", report.Skipped).
		Msg("Migrated legacy processed ids")
	return report, nil
}
