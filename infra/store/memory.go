// Package store provides repository implementations behind the interfaces
// in core/store: an in-memory store for tests and single-process runs, and
// a Redis-backed store for deployments.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/aidline/aidline/core/model"
	corestore "github.com/aidline/aidline/core/store"
)

// MemoryStore keeps cases and responders in process memory. Save performs
// the version compare-and-swap under the store mutex.
type MemoryStore struct {
	mu         sync.RWMutex
	cases      map[string]*model.Case
	responders map[string]model.ResponderLocation
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		cases:      make(map[string]*model.Case),
		responders: make(map[string]model.ResponderLocation),
	}
}

// Create stores a new case. The id must be unused.
func (s *MemoryStore) Create(ctx context.Context, c *model.Case) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.cases[c.ID]; ok {
		return corestore.ErrCaseExists
	}
	c.Version = 1
	s.cases[c.ID] = c.Clone()
	return nil
}

// Save commits the case if its version still matches the stored one, then
// increments the version on both the stored copy and the argument.
func (s *MemoryStore) Save(ctx context.Context, c *model.Case) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.cases[c.ID]
	if !ok {
		return corestore.ErrCaseNotFound
	}
	if cur.Version != c.Version {
		return corestore.ErrConcurrencyConflict
	}
	c.Version++
	s.cases[c.ID] = c.Clone()
	return nil
}

// Load returns a snapshot of the case.
func (s *MemoryStore) Load(ctx context.Context, id string) (*model.Case, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.cases[id]
	if !ok {
		return nil, corestore.ErrCaseNotFound
	}
	return c.Clone(), nil
}

// List returns snapshots matching the filter, ordered by creation time
// then id for determinism.
func (s *MemoryStore) List(ctx context.Context, f corestore.Filter) ([]*model.Case, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*model.Case, 0, len(s.cases))
	for _, c := range s.cases {
		if f.Status != "" && c.Status != f.Status {
			continue
		}
		if f.ReporterID != "" && c.ReporterID != f.ReporterID {
			continue
		}
		out = append(out, c.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// PutResponder adds or replaces a responder organization.
func (s *MemoryStore) PutResponder(ctx context.Context, r model.ResponderLocation) error {
	s.mu.Lock()
	s.responders[r.OrganizationID] = r
	s.mu.Unlock()
	return nil
}

// ListResponders returns all responders of the given kind.
func (s *MemoryStore) ListResponders(ctx context.Context, kind model.ResponderKind) ([]model.ResponderLocation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.ResponderLocation
	for _, r := range s.responders {
		if r.Kind == kind {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrganizationID < out[j].OrganizationID })
	return out, nil
}

// Organization returns one responder by id.
func (s *MemoryStore) Organization(ctx context.Context, id string) (*model.ResponderLocation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.responders[id]
	if !ok {
		return nil, corestore.ErrOrganizationNotFound
	}
	return &r, nil
}
