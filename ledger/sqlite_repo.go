package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	apperrors "github.com/jrsteele09/garmin-osm-sync/internal/errors"
	"github.com/jrsteele09/garmin-osm-sync/ledger/migrations"
	"github.com/pkg/errors"
	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

var _ Repo = (*SQLiteRepo)(nil)
var _ Inserter = (*SQLiteRepo)(nil)

// SQLiteRepo stores the ledger in the processed_activities table of a SQLite database.
type SQLiteRepo struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path and brings its schema up to date.
// Opening an existing database is a no-op apart from the connection.
func OpenSQLite(ctx context.Context, path string) (*SQLiteRepo, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrap(err, "[ledger OpenSQLite] create directory")
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "[ledger OpenSQLite] open")
	}
	// A single connection keeps a :memory: database visible to every query.
	db.SetMaxOpenConns(1)

	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return NewSQLiteRepo(db), nil
}

// NewSQLiteRepo wraps an already migrated database.
func NewSQLiteRepo(db *sql.DB) *SQLiteRepo {
	return &SQLiteRepo{db: db}
}

// RunMigrations applies the embedded schema migrations to db.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	goose.SetLogger(gooseLogger{})
	if err := goose.SetDialect("sqlite3"); err != nil {
		return errors.Wrap(err, "[ledger RunMigrations] set dialect")
	}
	if err := goose.UpContext(ctx, db, "."); err != nil {
		return errors.Wrap(err, "[ledger RunMigrations] up")
	}
	return nil
}

func (r *SQLiteRepo) Close() error {
	return r.db.Close()
}

func (r *SQLiteRepo) LoadProcessedIDs(ctx context.Context) (map[string]struct{}, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT activity_id FROM processed_activities`)
	if err != nil {
		return nil, fmt.Errorf("failed to load processed ids: %w", err)
	}
	defer rows.Close()

	ids := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan processed id: %w", err)
		}
		ids[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate processed ids: %w", err)
	}
	return ids, nil
}

func (r *SQLiteRepo) Upsert(ctx context.Context, e Entry) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO processed_activities (activity_id, uploaded_at, gpx_id, status, metadata)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(activity_id) DO UPDATE SET
			uploaded_at = excluded.uploaded_at,
			gpx_id      = excluded.gpx_id,
			status      = excluded.status,
			metadata    = excluded.metadata
	`, entryArgs(e)...)
	if err != nil {
		return fmt.Errorf("failed to upsert activity %s: %w", e.ActivityID, err)
	}
	return nil
}

func (r *SQLiteRepo) InsertIfAbsent(ctx context.Context, e Entry) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO processed_activities (activity_id, uploaded_at, gpx_id, status, metadata)
		VALUES (?, ?, ?, ?, ?)
	`, entryArgs(e)...)
	if err != nil {
		return false, fmt.Errorf("failed to insert activity %s: %w", e.ActivityID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to insert activity %s: %w", e.ActivityID, err)
	}
	return n > 0, nil
}

func (r *SQLiteRepo) Get(ctx context.Context, id string) (*Entry, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT activity_id, uploaded_at, gpx_id, status, metadata
		FROM processed_activities WHERE activity_id = ?
	`, id)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.Wrapf(apperrors.ErrNotFound, "activity %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get activity %s: %w", id, err)
	}
	return e, nil
}

func (r *SQLiteRepo) List(ctx context.Context) ([]Entry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT activity_id, uploaded_at, gpx_id, status, metadata
		FROM processed_activities ORDER BY activity_id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ledger row: %w", err)
		}
		entries = append(entries, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate ledger rows: %w", err)
	}
	return entries, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner) (*Entry, error) {
	var id string
	var uploadedAt, gpxID, status, metadata sql.NullString
	if err := s.Scan(&id, &uploadedAt, &gpxID, &status, &metadata); err != nil {
		return nil, err
	}
	e := &Entry{
		ActivityID: id,
		Status:     Status(status.String),
		Metadata:   metadata.String,
	}
	if gpxID.Valid {
		v := gpxID.String
		e.RemoteTrackID = &v
	}
	if uploadedAt.Valid && uploadedAt.String != "" {
		if t, err := time.Parse(time.RFC3339Nano, uploadedAt.String); err == nil {
			e.UploadedAt = t
		}
	}
	return e, nil
}

func entryArgs(e Entry) []any {
	var gpxID, metadata any
	if e.RemoteTrackID != nil {
		gpxID = *e.RemoteTrackID
	}
	if e.Metadata != "" {
		metadata = e.Metadata
	}
	uploadedAt := e.UploadedAt
	if uploadedAt.IsZero() {
		uploadedAt = time.Now()
	}
	return []any{e.ActivityID, uploadedAt.UTC().Format(time.RFC3339Nano), gpxID, string(e.Status), metadata}
}

// gooseLogger routes migration output through zerolog.
type gooseLogger struct{}

func (gooseLogger) Printf(format string, v ...interface{}) {
	log.Debug().Msgf(format, v...)
}

func (gooseLogger) Fatalf(format string, v ...interface{}) {
	log.Fatal().Msgf(format, v...)
}
