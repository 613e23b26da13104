package transe

import (
	"math/rand/v2"

	"github.com/soundprediction/kgembed/pkg/types"
)

// EntityPicker returns the entity at a position of the insertion order.
type EntityPicker interface {
	NumEntities() int
	EntityAt(i int) types.EntityID
}

// Sampler corrupts positive triplets for contrastive training.
//
// A fair coin picks the side: heads replaces the head, tails replaces the
// tail, each with a uniformly drawn entity. The replacement may equal the
// original. The relation is never corrupted.
type Sampler struct {
	rng      *rand.Rand
	entities EntityPicker
}

// NewSampler creates a sampler over entities using rng.
func NewSampler(rng *rand.Rand, entities EntityPicker) *Sampler {
	return &Sampler{rng: rng, entities: entities}
}

// Corrupt returns a negative triplet for t. With no entities it returns t unchanged.
func (s *Sampler) Corrupt(t types.Triplet) types.Triplet {
	n := s.entities.NumEntities()
	if n == 0 {
		return t
	}
	neg := t
	if s.rng.IntN(2) == 0 {
		neg.Head = s.entities.EntityAt(s.rng.IntN(n))
	} else {
		neg.Tail = s.entities.EntityAt(s.rng.IntN(n))
	}
	return neg
}
