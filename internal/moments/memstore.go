package moments

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Compile-time assertion that MemStore satisfies Store.
var _ Store = (*MemStore)(nil)

// MemStore is an in-memory Store for tests and for running without a
// database. Safe for concurrent use.
type MemStore struct {
	mu      sync.RWMutex
	moments map[string]Moment
	terms   map[string]Term

	// now is replaceable in tests.
	now func() time.Time
}

// NewMemStore returns an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		moments: make(map[string]Moment),
		terms:   make(map[string]Term),
		now:     time.Now,
	}
}

// InsertMoment implements Store.
func (s *MemStore) InsertMoment(_ context.Context, m *Moment) error {
	if strings.TrimSpace(m.Transcript) == "" {
		return errors.New("moments: transcript must not be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	m.ID = uuid.NewString()
	m.CreatedAt = s.now()
	s.moments[m.ID] = *m
	return nil
}

// ListMoments implements Store.
func (s *MemStore) ListMoments(context.Context) ([]Moment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Moment, 0, len(s.moments))
	for _, m := range s.moments {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// DeleteMoment implements Store.
func (s *MemStore) DeleteMoment(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.moments, id)
	return nil
}

// InsertTerm implements Store.
func (s *MemStore) InsertTerm(_ context.Context, t *Term) error {
	if strings.TrimSpace(t.Word) == "" {
		return errors.New("moments: word must not be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t.ID = uuid.NewString()
	t.CreatedAt = s.now()
	s.terms[t.ID] = *t
	return nil
}

// ListTerms implements Store.
func (s *MemStore) ListTerms(context.Context) ([]Term, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Term, 0, len(s.terms))
	for _, t := range s.terms {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// DeleteTerm implements Store.
func (s *MemStore) DeleteTerm(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.terms, id)
	return nil
}
