package ledgerfakerepo

import (
	"context"
	"sort"
	"sync"

	apperrors "github.com/jrsteele09/garmin-osm-sync/internal/errors"
	"github.com/jrsteele09/garmin-osm-sync/ledger"
)

var _ ledger.Repo = (*FakeLedgerRepo)(nil)
var _ ledger.Inserter = (*FakeLedgerRepo)(nil)

// FakeLedgerRepo is an in-memory ledger.Repo that records every write.
type FakeLedgerRepo struct {
	entries   map[string]ledger.Entry
	writes    []ledger.Entry
	loadErr   error
	upsertErr error
	lock      sync.RWMutex
}

func NewFakeLedgerRepo(ids ...string) *FakeLedgerRepo {
	r := &FakeLedgerRepo{entries: make(map[string]ledger.Entry)}
	for _, id := range ids {
		r.entries[id] = ledger.Entry{ActivityID: id, Status: ledger.StatusMigrated}
	}
	return r
}

// FailLoads makes LoadProcessedIDs return err.
func (r *FakeLedgerRepo) FailLoads(err error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.loadErr = err
}

// FailUpserts makes Upsert return err.
func (r *FakeLedgerRepo) FailUpserts(err error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.upsertErr = err
}

func (r *FakeLedgerRepo) LoadProcessedIDs(_ context.Context) (map[string]struct{}, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	if r.loadErr != nil {
		return nil, r.loadErr
	}
	ids := make(map[string]struct{}, len(r.entries))
	for id := range r.entries {
		ids[id] = struct{}{}
	}
	return ids, nil
}

func (r *FakeLedgerRepo) Upsert(_ context.Context, e ledger.Entry) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.upsertErr != nil {
		return r.upsertErr
	}
	r.entries[e.ActivityID] = e
	r.writes = append(r.writes, e)
	return nil
}

func (r *FakeLedgerRepo) InsertIfAbsent(_ context.Context, e ledger.Entry) (bool, error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	if _, ok := r.entries[e.ActivityID]; ok {
		return false, nil
	}
	r.entries[e.ActivityID] = e
	r.writes = append(r.writes, e)
	return true, nil
}

func (r *FakeLedgerRepo) Get(_ context.Context, id string) (*ledger.Entry, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	e, ok := r.entries[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return &e, nil
}

func (r *FakeLedgerRepo) List(_ context.Context) ([]ledger.Entry, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	entries := make([]ledger.Entry, 0, len(r.entries))
	for _, e := range r.entries {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].ActivityID < entries[j].ActivityID })
	return entries, nil
}

// Writes returns every entry written, in order.
func (r *FakeLedgerRepo) Writes() []ledger.Entry {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return append([]ledger.Entry(nil), r.writes...)
}
