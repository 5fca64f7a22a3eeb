package tokenfakerepo

import (
	"context"
	"sync"

	"github.com/jrsteele09/garmin-osm-sync/token"
)

var _ token.Store = (*FakeTokenStore)(nil)

// FakeTokenStore is an in-memory token.Store that counts saves.
type FakeTokenStore struct {
	record  *token.Record
	saves   int
	saveErr error
	lock    sync.RWMutex
}

func NewFakeTokenStore(initial *token.Record) *FakeTokenStore {
	return &FakeTokenStore{record: clone(initial)}
}

func (s *FakeTokenStore) Load(_ context.Context) (*token.Record, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return clone(s.record), nil
}

func (s *FakeTokenStore) Save(_ context.Context, record *token.Record) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.record = clone(record)
	s.saves++
	return nil
}

// FailSaves makes every later Save return err.
func (s *FakeTokenStore) FailSaves(err error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.saveErr = err
}

func (s *FakeTokenStore) Saves() int {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.saves
}

func (s *FakeTokenStore) Current() *token.Record {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return clone(s.record)
}

func clone(r *token.Record) *token.Record {
	if r == nil {
		return nil
	}
	c := *r
	if r.ExpiresAt != nil {
		exp := *r.ExpiresAt
		c.ExpiresAt = &exp
	}
	return &c
}
