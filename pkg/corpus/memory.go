package corpus

import (
	"context"
	"sync"

	"github.com/soundprediction/kgembed/pkg/types"
)

// MemorySource serves an in-memory triplet list. It is meant for small
// datasets and tests.
type MemorySource struct {
	mu        sync.RWMutex
	triplets  []types.Triplet
	entities  []types.EntityID
	relations []types.RelationID
	names     map[types.EntityID]string
	closed    bool
}

// NewMemorySource creates a source over triplets. Entity and relation ids are
// derived from the triplets in first-seen order (head before tail).
func NewMemorySource(triplets []types.Triplet) *MemorySource {
	m := &MemorySource{
		triplets: make([]types.Triplet, len(triplets)),
		names:    make(map[types.EntityID]string),
	}
	copy(m.triplets, triplets)

	seenE := make(map[types.EntityID]struct{})
	seenR := make(map[types.RelationID]struct{})
	for _, t := range triplets {
		for _, e := range []types.EntityID{t.Head, t.Tail} {
			if _, ok := seenE[e]; !ok {
				seenE[e] = struct{}{}
				m.entities = append(m.entities, e)
			}
		}
		if _, ok := seenR[t.Relation]; !ok {
			seenR[t.Relation] = struct{}{}
			m.relations = append(m.relations, t.Relation)
		}
	}
	return m
}

// WithEntities appends entities that appear in no triplet.
func (m *MemorySource) WithEntities(ids ...types.EntityID) *MemorySource {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := make(map[types.EntityID]struct{}, len(m.entities))
	for _, e := range m.entities {
		seen[e] = struct{}{}
	}
	for _, id := range ids {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			m.entities = append(m.entities, id)
		}
	}
	return m
}

// WithNames sets display names returned by EntityName.
func (m *MemorySource) WithNames(names map[types.EntityID]string) *MemorySource {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, name := range names {
		m.names[id] = name
	}
	return m
}

func (m *MemorySource) Count(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return 0, ErrClosed
	}
	return len(m.triplets), nil
}

func (m *MemorySource) Batch(ctx context.Context, offset, limit int) ([]types.Triplet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}
	if offset < 0 || limit <= 0 || offset >= len(m.triplets) {
		return nil, nil
	}
	end := min(offset+limit, len(m.triplets))
	out := make([]types.Triplet, end-offset)
	copy(out, m.triplets[offset:end])
	return out, nil
}

func (m *MemorySource) EntityIDs(ctx context.Context) ([]types.EntityID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}
	out := make([]types.EntityID, len(m.entities))
	copy(out, m.entities)
	return out, nil
}

func (m *MemorySource) RelationIDs(ctx context.Context) ([]types.RelationID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}
	out := make([]types.RelationID, len(m.relations))
	copy(out, m.relations)
	return out, nil
}

func (m *MemorySource) EntityName(ctx context.Context, id types.EntityID) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return "", ErrClosed
	}
	return m.names[id], nil
}

func (m *MemorySource) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
