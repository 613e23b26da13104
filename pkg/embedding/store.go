// Package embedding holds the mutable vector state of a TransE model: one
// vector per entity and one per relation, kept in insertion order.
package embedding

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/soundprediction/kgembed/pkg/types"
	"github.com/soundprediction/kgembed/pkg/utils"
)

var (
	// ErrNotFound is returned when an id has no vector.
	ErrNotFound = errors.New("embedding not found")
	// ErrDimensionMismatch is returned when a vector or state disagrees with the store dimension.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// Sign selects the direction of a gradient step.
type Sign float64

const (
	Plus  Sign = 1
	Minus Sign = -1
)

// Store maps entity and relation ids to vectors.
//
// Vectors live in slices parallel to the insertion-ordered id lists, so every
// iteration (sampling, prediction, snapshots) is deterministic. There is a
// single writer during training; the mutex lets predictions read from other
// goroutines.
type Store struct {
	mu  sync.RWMutex
	dim int
	rng *rand.Rand

	entityIndex   map[types.EntityID]int
	entityIDs     []types.EntityID
	entityVecs    []types.Vector
	relationIndex map[types.RelationID]int
	relationIDs   []types.RelationID
	relationVecs  []types.Vector
}

// NewStore creates an empty store that draws initial vectors from rng.
// A nil rng falls back to a randomly seeded source.
func NewStore(rng *rand.Rand) *Store {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Store{
		rng:           rng,
		entityIndex:   make(map[types.EntityID]int),
		relationIndex: make(map[types.RelationID]int),
	}
}

// NewSeededStore creates a store whose initial vectors are reproducible for seed.
func NewSeededStore(seed uint64) *Store {
	return NewStore(rand.New(rand.NewPCG(seed, seed)))
}

// Initialize assigns a vector of dim standard-normal draws to every id not
// already present. Existing vectors are left untouched, so calling it twice
// with the same ids is a no-op.
func (s *Store) Initialize(entityIDs []types.EntityID, relationIDs []types.RelationID, dim int) error {
	if dim <= 0 {
		return types.ErrInvalidDimension
	}

	for _, id := range entityIDs {
		if id == "" {
			return fmt.Errorf("entity: %w", types.ErrEmptyID)
		}
	}
	for _, id := range relationIDs {
		if id == "" {
			return fmt.Errorf("relation: %w", types.ErrEmptyID)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dim != 0 && s.dim != dim && s.lenLocked() > 0 {
		return fmt.Errorf("%w: store has %d, requested %d", ErrDimensionMismatch, s.dim, dim)
	}
	s.dim = dim

	for _, id := range entityIDs {
		if _, ok := s.entityIndex[id]; ok {
			continue
		}
		s.entityIndex[id] = len(s.entityIDs)
		s.entityIDs = append(s.entityIDs, id)
		s.entityVecs = append(s.entityVecs, s.randomVector())
	}
	for _, id := range relationIDs {
		if _, ok := s.relationIndex[id]; ok {
			continue
		}
		s.relationIndex[id] = len(s.relationIDs)
		s.relationIDs = append(s.relationIDs, id)
		s.relationVecs = append(s.relationVecs, s.randomVector())
	}
	return nil
}

func (s *Store) randomVector() types.Vector {
	v := make(types.Vector, s.dim)
	for i := range v {
		v[i] = float32(s.rng.NormFloat64())
	}
	return v
}

func (s *Store) lenLocked() int {
	return len(s.entityIDs) + len(s.relationIDs)
}

// Dim returns the embedding dimension, or 0 before initialization.
func (s *Store) Dim() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dim
}

// NumEntities returns the number of entity vectors.
func (s *Store) NumEntities() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entityIDs)
}

// NumRelations returns the number of relation vectors.
func (s *Store) NumRelations() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.relationIDs)
}

// Empty reports whether the store holds no vectors at all.
func (s *Store) Empty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lenLocked() == 0
}

// EntityIDs returns the entity ids in insertion order.
func (s *Store) EntityIDs() []types.EntityID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.EntityID, len(s.entityIDs))
	copy(out, s.entityIDs)
	return out
}

// RelationIDs returns the relation ids in insertion order.
func (s *Store) RelationIDs() []types.RelationID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.RelationID, len(s.relationIDs))
	copy(out, s.relationIDs)
	return out
}

// HasEntity reports whether id has a vector.
func (s *Store) HasEntity(id types.EntityID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.entityIndex[id]
	return ok
}

// HasRelation reports whether id has a vector.
func (s *Store) HasRelation(id types.RelationID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.relationIndex[id]
	return ok
}

// Entity returns a copy of the vector for id.
func (s *Store) Entity(id types.EntityID) (types.Vector, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.entityIndex[id]
	if !ok {
		return nil, fmt.Errorf("entity %q: %w", id, ErrNotFound)
	}
	return s.entityVecs[i].Clone(), nil
}

// Relation returns a copy of the vector for id.
func (s *Store) Relation(id types.RelationID) (types.Vector, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.relationIndex[id]
	if !ok {
		return nil, fmt.Errorf("relation %q: %w", id, ErrNotFound)
	}
	return s.relationVecs[i].Clone(), nil
}

// EntityAt returns the id at position i of the insertion order.
func (s *Store) EntityAt(i int) types.EntityID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entityIDs[i]
}

// Translate returns h + r - t for the given ids without copying the vectors.
func (s *Store) Translate(h types.EntityID, r types.RelationID, t types.EntityID) ([]float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	hi, ok := s.entityIndex[h]
	if !ok {
		return nil, fmt.Errorf("entity %q: %w", h, ErrNotFound)
	}
	ri, ok := s.relationIndex[r]
	if !ok {
		return nil, fmt.Errorf("relation %q: %w", r, ErrNotFound)
	}
	ti, ok := s.entityIndex[t]
	if !ok {
		return nil, fmt.Errorf("entity %q: %w", t, ErrNotFound)
	}
	return utils.Translate(s.entityVecs[hi], s.relationVecs[ri], s.entityVecs[ti]), nil
}

// ApplyEntityGradient updates the entity vector in place: v += sign * lr * delta.
func (s *Store) ApplyEntityGradient(id types.EntityID, delta []float64, sign Sign, lr float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.entityIndex[id]
	if !ok {
		return fmt.Errorf("entity %q: %w", id, ErrNotFound)
	}
	if len(delta) != s.dim {
		return fmt.Errorf("%w: gradient has %d, store has %d", ErrDimensionMismatch, len(delta), s.dim)
	}
	utils.AXPY(s.entityVecs[i], float64(sign)*lr, delta)
	return nil
}

// ApplyRelationGradient updates the relation vector in place: v += sign * lr * delta.
func (s *Store) ApplyRelationGradient(id types.RelationID, delta []float64, sign Sign, lr float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.relationIndex[id]
	if !ok {
		return fmt.Errorf("relation %q: %w", id, ErrNotFound)
	}
	if len(delta) != s.dim {
		return fmt.Errorf("%w: gradient has %d, store has %d", ErrDimensionMismatch, len(delta), s.dim)
	}
	utils.AXPY(s.relationVecs[i], float64(sign)*lr, delta)
	return nil
}

// View calls fn with the ordered entity ids and their vectors while holding
// the read lock. fn must not retain or modify the slices.
func (s *Store) View(fn func(ids []types.EntityID, vecs []types.Vector) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(s.entityIDs, s.entityVecs)
}

// Snapshot returns a deep copy of the store contents. Config.EmbeddingDim is
// filled in; the caller supplies the remaining hyperparameters.
func (s *Store) Snapshot() *types.ModelState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state := &types.ModelState{
		Entities:      make(map[types.EntityID]types.Vector, len(s.entityIDs)),
		Relations:     make(map[types.RelationID]types.Vector, len(s.relationIDs)),
		Config:        types.Hyperparameters{EmbeddingDim: s.dim},
		EntityOrder:   make([]types.EntityID, len(s.entityIDs)),
		RelationOrder: make([]types.RelationID, len(s.relationIDs)),
	}
	copy(state.EntityOrder, s.entityIDs)
	copy(state.RelationOrder, s.relationIDs)
	for i, id := range s.entityIDs {
		state.Entities[id] = s.entityVecs[i].Clone()
	}
	for i, id := range s.relationIDs {
		state.Relations[id] = s.relationVecs[i].Clone()
	}
	return state
}

// Restore replaces the whole store with state. Ids missing from the order
// lists are appended in sorted order so that restores stay deterministic.
func (s *Store) Restore(state *types.ModelState) error {
	if state == nil {
		return errors.New("nil model state")
	}
	dim := state.Config.EmbeddingDim
	if dim <= 0 {
		return types.ErrInvalidDimension
	}

	entityOrder := utils.OrderedKeys(state.Entities, state.EntityOrder)
	relationOrder := utils.OrderedKeys(state.Relations, state.RelationOrder)

	entityIndex := make(map[types.EntityID]int, len(entityOrder))
	entityVecs := make([]types.Vector, len(entityOrder))
	for i, id := range entityOrder {
		v := state.Entities[id]
		if len(v) != dim {
			return fmt.Errorf("%w: entity %q has %d, config has %d", ErrDimensionMismatch, id, len(v), dim)
		}
		entityIndex[id] = i
		entityVecs[i] = v.Clone()
	}
	relationIndex := make(map[types.RelationID]int, len(relationOrder))
	relationVecs := make([]types.Vector, len(relationOrder))
	for i, id := range relationOrder {
		v := state.Relations[id]
		if len(v) != dim {
			return fmt.Errorf("%w: relation %q has %d, config has %d", ErrDimensionMismatch, id, len(v), dim)
		}
		relationIndex[id] = i
		relationVecs[i] = v.Clone()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.dim = dim
	s.entityIndex, s.entityIDs, s.entityVecs = entityIndex, entityOrder, entityVecs
	s.relationIndex, s.relationIDs, s.relationVecs = relationIndex, relationOrder, relationVecs
	return nil
}
