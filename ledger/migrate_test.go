package ledger_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/jrsteele09/garmin-osm-sync/internal/utils"
	"github.com/jrsteele09/garmin-osm-sync/ledger"
	ledgerfakerepo "github.com/jrsteele09/garmin-osm-sync/ledger/repofake"
	"github.com/stretchr/testify/require"
)

func TestMigrateText_Idempotent(t *testing.T) {
	ctx := context.Background()
	txt := filepath.Join(t.TempDir(), "processed_ids.txt")
	require.NoError(t, os.WriteFile(txt, []byte("111\n222\n"), 0o644))
	repo, _ := openSQLite(t)

	report, err := ledger.MigrateText(ctx, txt, repo)
	require.NoError(t, err)
	require.Equal(t, 2, report.Read)
	require.Equal(t, 2, report.Inserted)

	report, err = ledger.MigrateText(ctx, txt, repo)
	require.NoError(t, err)
	require.Equal(t, 0, report.Inserted)
	require.Equal(t, 2, report.Skipped)

	entries, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	for _, e := range entries {
		require.Equal(t, ledger.StatusMigrated, e.Status)
		require.Nil(t, e.RemoteTrackID)
		require.False(t, e.UploadedAt.IsZero())
	}
}

func TestMigrateText_KeepsExistingEntries(t *testing.T) {
	ctx := context.Background()
	txt := filepath.Join(t.TempDir(), "processed_ids.txt")
	require.NoError(t, os.WriteFile(txt, []byte("111\n"), 0o644))
	repo, _ := openSQLite(t)
	require.NoError(t, repo.Upsert(ctx, ledger.Entry{ActivityID: "111", Status: ledger.StatusUploaded, RemoteTrackID: utils.Ptr("5")}))

	_, err := ledger.MigrateText(ctx, txt, repo)
	require.NoError(t, err)

	got, err := repo.Get(ctx, "111")
	require.NoError(t, err)
	require.Equal(t, ledger.StatusUploaded, got.Status)
	require.Equal(t, "5", *got.RemoteTrackID)
}

func TestMigrateText_MissingFile(t *testing.T) {
	repo := ledgerfakerepo.NewFakeLedgerRepo()
	report, err := ledger.MigrateText(context.Background(), filepath.Join(t.TempDir(), "none.txt"), repo)
	require.NoError(t, err)
	require.Zero(t, report.Read)
	require.Empty(t, repo.Writes())
}
