// Package memstore provides an in-memory implementation of triage.Store and
// apikey.Store.
package memstore

import (
	"context"
	"maps"
	"sort"
	"sync"

	"github.com/linnemanlabs/sift/internal/apikey"
	"github.com/linnemanlabs/sift/internal/triage"
)

// Store holds feedback, audit entries, settings and API keys in memory.
// Suitable for dev/testing.
type Store struct {
	mu       sync.RWMutex
	items    map[string]*triage.FeedbackItem // feedback ID -> item
	audit    []*triage.AuditEntry            // append order
	settings map[string]string
	keys     map[string]*apikey.Key // key ID -> key
}

// New initializes a new in-memory Store seeded with default settings.
func New() *Store {
	return &Store{
		items:    make(map[string]*triage.FeedbackItem),
		settings: triage.DefaultSettings(),
		keys:     make(map[string]*apikey.Key),
	}
}

// Get retrieves a feedback item by its ID. Returns a copy.
func (s *Store) Get(_ context.Context, id string) (*triage.FeedbackItem, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.get(id)
}

// List returns copies of every item in queue order.
func (s *Store) List(_ context.Context) ([]*triage.FeedbackItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*triage.FeedbackItem, 0, len(s.items))
	for _, it := range s.items {
		cp := *it
		out = append(out, &cp)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if triage.QueueLess(out[i], out[j]) {
			return true
		}
		if triage.QueueLess(out[j], out[i]) {
			return false
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

// ListAudit returns copies of up to limit entries, newest first.
func (s *Store) ListAudit(_ context.Context, limit int) ([]*triage.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*triage.AuditEntry, 0, min(limit, len(s.audit)))
	for i := len(s.audit) - 1; i >= 0 && len(out) < limit; i-- {
		cp := *s.audit[i]
		out = append(out, &cp)
	}
	return out, nil
}

// Settings returns a copy of the settings map.
func (s *Store) Settings(_ context.Context) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.settings), nil
}

// PutSettings upserts the given settings.
func (s *Store) PutSettings(_ context.Context, settings map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	maps.Copy(s.settings, settings)
	return nil
}

// Atomic runs fn under the write lock. If fn fails, every change it made is
// discarded.
func (s *Store) Atomic(ctx context.Context, fn func(ctx context.Context, tx triage.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := maps.Clone(s.items)
	audit := s.audit[:len(s.audit):len(s.audit)]

	if err := fn(ctx, &tx{s: s}); err != nil {
		s.items = items
		s.audit = audit
		return err
	}
	return nil
}

func (s *Store) get(id string) (*triage.FeedbackItem, bool, error) {
	it, ok := s.items[id]
	if !ok {
		return nil, false, nil
	}
	cp := *it
	return &cp, true, nil
}

// tx is the write view handed to Atomic callbacks. The caller holds the lock.
type tx struct {
	s *Store
}

func (t *tx) Get(_ context.Context, id string) (*triage.FeedbackItem, bool, error) {
	return t.s.get(id)
}

func (t *tx) PutFeedback(_ context.Context, item *triage.FeedbackItem) error {
	cp := *item
	t.s.items[item.ID] = &cp
	return nil
}

func (t *tx) AppendAudit(_ context.Context, entry *triage.AuditEntry) error {
	cp := *entry
	t.s.audit = append(t.s.audit, &cp)
	return nil
}

func (t *tx) DeleteAudit(_ context.Context, scope triage.Scope) (int64, error) {
	kept := make([]*triage.AuditEntry, 0, len(t.s.audit))
	for _, e := range t.s.audit {
		if !t.auditInScope(e, scope) {
			kept = append(kept, e)
		}
	}
	n := int64(len(t.s.audit) - len(kept))
	t.s.audit = kept
	return n, nil
}

func (t *tx) DeleteFeedback(_ context.Context, scope triage.Scope) (int64, error) {
	var n int64
	for id, it := range t.s.items {
		if scope == triage.ScopeAll || it.IsSample {
			delete(t.s.items, id)
			n++
		}
	}
	return n, nil
}

func (t *tx) auditInScope(e *triage.AuditEntry, scope triage.Scope) bool {
	if scope == triage.ScopeAll {
		return true
	}
	if e.FeedbackID == nil {
		return false
	}
	it, ok := t.s.items[*e.FeedbackID]
	return ok && it.IsSample
}

// PutKey stores a copy of an API key.
func (s *Store) PutKey(_ context.Context, k *apikey.Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *k
	s.keys[k.ID] = &cp
	return nil
}

// GetKey retrieves an API key by ID. Returns a copy.
func (s *Store) GetKey(_ context.Context, id string) (*apikey.Key, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	k, ok := s.keys[id]
	if !ok {
		return nil, false, nil
	}
	cp := *k
	return &cp, true, nil
}

// ListKeys returns copies of every key, oldest first.
func (s *Store) ListKeys(_ context.Context) ([]*apikey.Key, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*apikey.Key, 0, len(s.keys))
	for _, k := range s.keys {
		cp := *k
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// DeleteKey removes an API key by ID.
func (s *Store) DeleteKey(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.keys, id)
	return nil
}

// FindKey looks a key up by its secret value. Returns a copy.
func (s *Store) FindKey(_ context.Context, key string) (*apikey.Key, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, k := range s.keys {
		if k.Key == key {
			cp := *k
			return &cp, true, nil
		}
	}
	return nil, false, nil
}
