package ledger

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	apperrors "github.com/jrsteele09/garmin-osm-sync/internal/errors"
	"github.com/rs/zerolog/log"
)

var _ Repo = (*TextRepo)(nil)
var _ Inserter = (*TextRepo)(nil)

// TextRepo is the legacy ledger: one activity id per line. It keeps no status, track id or
// metadata, so entries read back from it only carry the id.
type TextRepo struct {
	path string
	lock sync.Mutex
}

func NewTextRepo(path string) *TextRepo {
	return &TextRepo{path: path}
}

func (r *TextRepo) Path() string {
	return r.path
}

// LoadProcessedIDs returns an empty set when the file is missing or unreadable.
func (r *TextRepo) LoadProcessedIDs(ctx context.Context) (map[string]struct{}, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	ids, err := readIDs(r.path)
	if err != nil {
		log.Ctx(ctx).Err(err).Str("path", r.path).Msg("Failed to read processed ids file")
		return map[string]struct{}{}, nil
	}
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set, nil
}

// Upsert appends the id unless it is already listed.
func (r *TextRepo) Upsert(ctx context.Context, e Entry) error {
	_, err := r.InsertIfAbsent(ctx, e)
	return err
}

func (r *TextRepo) InsertIfAbsent(_ context.Context, e Entry) (bool, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	ids, err := readIDs(r.path)
	if err != nil {
		return false, err
	}
	for _, id := range ids {
		if id == e.ActivityID {
			return false, nil
		}
	}

	if dir := filepath.Dir(r.path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return false, fmt.Errorf("[TextRepo InsertIfAbsent] %w", err)
		}
	}
	f, err := os.OpenFile(r.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return false, fmt.Errorf("[TextRepo InsertIfAbsent] %w", err)
	}
	if _, err := fmt.Fprintln(f, e.ActivityID); err != nil {
		_ = f.Close()
		return false, fmt.Errorf("[TextRepo InsertIfAbsent] %w", err)
	}
	if err := f.Close(); err != nil {
		return false, fmt.Errorf("[TextRepo InsertIfAbsent] %w", err)
	}
	return true, nil
}

func (r *TextRepo) Get(_ context.Context, id string) (*Entry, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	ids, err := readIDs(r.path)
	if err != nil {
		return nil, err
	}
	for _, existing := range ids {
		if existing == id {
			return &Entry{ActivityID: id}, nil
		}
	}
	return nil, apperrors.Wrapf(apperrors.ErrNotFound, "activity %s", id)
}

func (r *TextRepo) List(_ context.Context) ([]Entry, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	ids, err := readIDs(r.path)
	if err != nil {
		return nil, err
	}
	sort.Strings(ids)
	entries := make([]Entry, 0, len(ids))
	for _, id := range ids {
		entries = append(entries, Entry{ActivityID: id})
	}
	return entries, nil
}

// readIDs returns the unique non-blank lines of path in file order. A missing file is empty.
func readIDs(path string) ([]string, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("[ledger readIDs] %w", err)
	}
	defer f.Close()

	seen := make(map[string]struct{})
	var ids []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		id := strings.TrimSpace(sc.Text())
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("[ledger readIDs] %w", err)
	}
	return ids, nil
}

// Close is a no-op; the file is opened per call.
func (r *TextRepo) Close() error {
	return nil
}
