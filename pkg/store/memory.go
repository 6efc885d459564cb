package store

import (
	"context"
	"fmt"
	"slices"
	"sync"

	kstore "github.com/goliatone/go-kstore"
)

// MemoryStore keeps the current snapshot and its revisions in memory.
type MemoryStore struct {
	mu        sync.RWMutex
	current   kstore.Snapshot
	revisions []Revision
	cfg       config
}

var _ kstore.ContextStoreManager = (*MemoryStore)(nil)

// NewMemoryStore returns a store holding a copy of initial.
func NewMemoryStore(initial kstore.Snapshot, opts ...Option) *MemoryStore {
	return &MemoryStore{
		current: initial.Clone(),
		cfg:     newConfig(opts),
	}
}

// Init stores snapshot as the current value while the store is still empty.
func (s *MemoryStore) Init(ctx context.Context, snapshot kstore.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := snapshot.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current.Equal(kstore.Snapshot{}) {
		s.current = snapshot.Clone()
	}
	return nil
}

func (s *MemoryStore) GetSnapshot(ctx context.Context) (kstore.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return kstore.Snapshot{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Clone(), nil
}

func (s *MemoryStore) Mutate(ctx context.Context, title, description string, automerge bool, before, after kstore.Snapshot) (kstore.ReviewURL, error) {
	if s.cfg.readOnly {
		return "", ErrReadOnly
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	rev, ok, err := s.cfg.prepare(title, description, automerge, before, after)
	if err != nil || !ok {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	next, err := kstore.ApplyDiff(s.current, rev.Diff)
	if err != nil {
		return "", fmt.Errorf("store: apply %q: %w", title, err)
	}
	s.current = next
	s.revisions = append(s.revisions, rev)
	s.cfg.logRevision("memory", rev)
	return rev.URL, nil
}

// Revision returns the revision recorded under id.
func (s *MemoryStore) Revision(_ context.Context, id string) (Revision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, rev := range s.revisions {
		if rev.ID == id {
			return rev, nil
		}
	}
	return Revision{}, fmt.Errorf("%w: %s", ErrRevisionNotFound, id)
}

// Revisions returns every revision, oldest first.
func (s *MemoryStore) Revisions(context.Context) ([]Revision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.revisions), nil
}
