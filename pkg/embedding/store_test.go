package embedding

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundprediction/kgembed/pkg/types"
)

func TestStoreInitialize(t *testing.T) {
	t.Run("assigns vectors of the requested dimension", func(t *testing.T) {
		s := NewSeededStore(1)
		require.NoError(t, s.Initialize([]types.EntityID{"1", "2"}, []types.RelationID{"R"}, 4))

		assert.Equal(t, 4, s.Dim())
		assert.Equal(t, 2, s.NumEntities())
		assert.Equal(t, 1, s.NumRelations())

		v, err := s.Entity("1")
		require.NoError(t, err)
		assert.Len(t, v, 4)
	})

	t.Run("is idempotent for known ids", func(t *testing.T) {
		s := NewSeededStore(1)
		require.NoError(t, s.Initialize([]types.EntityID{"1"}, []types.RelationID{"R"}, 4))
		before, err := s.Entity("1")
		require.NoError(t, err)

		require.NoError(t, s.Initialize([]types.EntityID{"1", "2"}, []types.RelationID{"R"}, 4))
		after, err := s.Entity("1")
		require.NoError(t, err)

		assert.Equal(t, before, after)
		assert.Equal(t, []types.EntityID{"1", "2"}, s.EntityIDs())
	})

	t.Run("keeps insertion order", func(t *testing.T) {
		s := NewSeededStore(1)
		require.NoError(t, s.Initialize([]types.EntityID{"c", "a", "b", "a"}, []types.RelationID{"y", "x"}, 2))
		assert.Equal(t, []types.EntityID{"c", "a", "b"}, s.EntityIDs())
		assert.Equal(t, []types.RelationID{"y", "x"}, s.RelationIDs())
		assert.Equal(t, types.EntityID("a"), s.EntityAt(1))
	})

	t.Run("same seed gives same vectors", func(t *testing.T) {
		a, b := NewSeededStore(42), NewSeededStore(42)
		ids := []types.EntityID{"1", "2", "3"}
		require.NoError(t, a.Initialize(ids, []types.RelationID{"R"}, 8))
		require.NoError(t, b.Initialize(ids, []types.RelationID{"R"}, 8))
		assert.Equal(t, a.Snapshot(), b.Snapshot())
	})

	t.Run("rejects bad input", func(t *testing.T) {
		s := NewSeededStore(1)
		assert.ErrorIs(t, s.Initialize(nil, nil, 0), types.ErrInvalidDimension)
		assert.ErrorIs(t, s.Initialize([]types.EntityID{""}, nil, 2), types.ErrEmptyID)

		require.NoError(t, s.Initialize([]types.EntityID{"1"}, nil, 2))
		assert.ErrorIs(t, s.Initialize([]types.EntityID{"2"}, nil, 3), ErrDimensionMismatch)
	})

	t.Run("failed call leaves store untouched", func(t *testing.T) {
		entities := []types.EntityID{"1", "2"}
		relations := []types.RelationID{"R"}

		a := NewSeededStore(9)
		err := a.Initialize(entities, []types.RelationID{"R", ""}, 4)
		require.ErrorIs(t, err, types.ErrEmptyID)
		assert.True(t, a.Empty())
		assert.Equal(t, 0, a.NumEntities())

		require.NoError(t, a.Initialize(entities, relations, 4))
		b := NewSeededStore(9)
		require.NoError(t, b.Initialize(entities, relations, 4))
		assert.Equal(t, b.Snapshot(), a.Snapshot())
	})
}

func TestStoreGet(t *testing.T) {
	s := NewSeededStore(7)
	require.NoError(t, s.Initialize([]types.EntityID{"1"}, []types.RelationID{"R"}, 3))

	_, err := s.Entity("missing")
	assert.True(t, errors.Is(err, ErrNotFound))
	_, err = s.Relation("missing")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.True(t, s.HasEntity("1"))
	assert.False(t, s.HasEntity("R"))
	assert.True(t, s.HasRelation("R"))

	t.Run("returned vectors are copies", func(t *testing.T) {
		v, err := s.Entity("1")
		require.NoError(t, err)
		v[0] = 1000

		again, err := s.Entity("1")
		require.NoError(t, err)
		assert.NotEqual(t, float32(1000), again[0])
	})
}

func TestStoreApplyGradient(t *testing.T) {
	s := NewSeededStore(3)
	require.NoError(t, s.Restore(&types.ModelState{
		Entities:  map[types.EntityID]types.Vector{"1": {1, 1}},
		Relations: map[types.RelationID]types.Vector{"R": {0, 0}},
		Config:    types.Hyperparameters{EmbeddingDim: 2},
	}))

	require.NoError(t, s.ApplyEntityGradient("1", []float64{1, -1}, Minus, 0.5))
	v, err := s.Entity("1")
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float32{0.5, 1.5}, v, 1e-6)

	require.NoError(t, s.ApplyRelationGradient("R", []float64{2, 4}, Plus, 0.25))
	r, err := s.Relation("R")
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float32{0.5, 1}, r, 1e-6)

	assert.ErrorIs(t, s.ApplyEntityGradient("x", []float64{1, 1}, Plus, 1), ErrNotFound)
	assert.ErrorIs(t, s.ApplyRelationGradient("R", []float64{1}, Plus, 1), ErrDimensionMismatch)
}

func TestStoreTranslate(t *testing.T) {
	s := NewSeededStore(3)
	require.NoError(t, s.Restore(&types.ModelState{
		Entities:  map[types.EntityID]types.Vector{"h": {1, 2}, "t": {3, 3}},
		Relations: map[types.RelationID]types.Vector{"r": {1, 1}},
		Config:    types.Hyperparameters{EmbeddingDim: 2},
	}))

	d, err := s.Translate("h", "r", "t")
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{-1, 0}, d, 1e-9)

	_, err = s.Translate("h", "missing", "t")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStoreSnapshotRestore(t *testing.T) {
	s := NewSeededStore(11)
	require.NoError(t, s.Initialize([]types.EntityID{"b", "a"}, []types.RelationID{"R", "S"}, 5))
	state := s.Snapshot()

	restored := NewSeededStore(99)
	require.NoError(t, restored.Restore(state))
	assert.Equal(t, state, restored.Snapshot())
	assert.Equal(t, []types.EntityID{"b", "a"}, restored.EntityIDs())

	t.Run("snapshot does not alias the store", func(t *testing.T) {
		state.Entities["a"][0] = 12345
		v, err := s.Entity("a")
		require.NoError(t, err)
		assert.NotEqual(t, float32(12345), v[0])
	})

	t.Run("missing order falls back to sorted ids", func(t *testing.T) {
		s := NewSeededStore(1)
		require.NoError(t, s.Restore(&types.ModelState{
			Entities: map[types.EntityID]types.Vector{"z": {0}, "m": {0}, "a": {0}},
			Config:   types.Hyperparameters{EmbeddingDim: 1},
		}))
		assert.Equal(t, []types.EntityID{"a", "m", "z"}, s.EntityIDs())
	})

	t.Run("rejects inconsistent dimensions", func(t *testing.T) {
		s := NewSeededStore(1)
		err := s.Restore(&types.ModelState{
			Entities: map[types.EntityID]types.Vector{"a": {0, 1}},
			Config:   types.Hyperparameters{EmbeddingDim: 3},
		})
		assert.ErrorIs(t, err, ErrDimensionMismatch)
		assert.True(t, s.Empty())
	})
}

func TestStoreConcurrentReads(t *testing.T) {
	s := NewSeededStore(5)
	require.NoError(t, s.Initialize([]types.EntityID{"1", "2", "3"}, []types.RelationID{"R"}, 16))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.View(func(ids []types.EntityID, vecs []types.Vector) error {
				assert.Len(t, vecs, len(ids))
				return nil
			})
		}()
	}
	for i := 0; i < 100; i++ {
		require.NoError(t, s.ApplyEntityGradient("1", make([]float64, 16), Plus, 0.1))
	}
	wg.Wait()
}
