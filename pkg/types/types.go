package types

import (
	"errors"
	"fmt"
	"strings"
)

// Validation errors
var (
	ErrEmptyID          = errors.New("id cannot be empty")
	ErrInvalidDimension = errors.New("embedding dimension must be positive")
	ErrInvalidTriplet   = errors.New("invalid triplet")
)

// Default hyperparameters, matching the values the engine has always shipped with.
const (
	DefaultEmbeddingDim = 100
	DefaultMargin       = 1.0
	DefaultLearningRate = 0.01
	DefaultBatchSize    = 1024
	DefaultEpochs       = 10
)

// EntityID identifies an entity. Graph databases assign integer ids; they are
// carried as their decimal string form.
type EntityID string

// RelationID identifies a relation type, e.g. "CAUSES" or "病害".
type RelationID string

// Vector is a fixed-length embedding.
type Vector []float32

// Clone returns a copy of v that shares no memory with it.
func (v Vector) Clone() Vector {
	if v == nil {
		return nil
	}
	out := make(Vector, len(v))
	copy(out, v)
	return out
}

// Triplet is a (head, relation, tail) fact from the knowledge graph.
type Triplet struct {
	Head     EntityID   `json:"head" parquet:"head"`
	Relation RelationID `json:"relation" parquet:"relation"`
	Tail     EntityID   `json:"tail" parquet:"tail"`
}

// Validate checks that all three positions are set.
func (t Triplet) Validate() error {
	if t.Head == "" || t.Relation == "" || t.Tail == "" {
		return fmt.Errorf("%w: %s", ErrInvalidTriplet, t)
	}
	return nil
}

func (t Triplet) String() string {
	return fmt.Sprintf("(%s, %s, %s)", t.Head, t.Relation, t.Tail)
}

// ParseTriplet parses "head,relation,tail".
func ParseTriplet(s string) (Triplet, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return Triplet{}, fmt.Errorf("%w: expected head,relation,tail, got %q", ErrInvalidTriplet, s)
	}
	t := Triplet{
		Head:     EntityID(strings.TrimSpace(parts[0])),
		Relation: RelationID(strings.TrimSpace(parts[1])),
		Tail:     EntityID(strings.TrimSpace(parts[2])),
	}
	return t, t.Validate()
}

// Hyperparameters are the model settings persisted alongside the vectors.
type Hyperparameters struct {
	EmbeddingDim int     `json:"embedding_dim" mapstructure:"embedding_dim"`
	Margin       float64 `json:"margin" mapstructure:"margin"`
	LearningRate float64 `json:"learning_rate" mapstructure:"learning_rate"`
}

// DefaultHyperparameters returns dim=100, margin=1.0, lr=0.01.
func DefaultHyperparameters() Hyperparameters {
	return Hyperparameters{
		EmbeddingDim: DefaultEmbeddingDim,
		Margin:       DefaultMargin,
		LearningRate: DefaultLearningRate,
	}
}

// Validate checks that the hyperparameters describe a usable model.
func (h Hyperparameters) Validate() error {
	if h.EmbeddingDim <= 0 {
		return ErrInvalidDimension
	}
	if h.LearningRate <= 0 {
		return fmt.Errorf("learning rate must be positive, got %v", h.LearningRate)
	}
	if h.Margin < 0 {
		return fmt.Errorf("margin cannot be negative, got %v", h.Margin)
	}
	return nil
}

// ModelState is the unit of checkpointing: every vector plus the hyperparameters
// they were trained with. The order slices record insertion order so that a
// restored store iterates exactly like the one that was saved.
type ModelState struct {
	Entities      map[EntityID]Vector   `json:"entities"`
	Relations     map[RelationID]Vector `json:"relations"`
	Config        Hyperparameters       `json:"config"`
	EntityOrder   []EntityID            `json:"entity_order,omitempty"`
	RelationOrder []RelationID          `json:"relation_order,omitempty"`
}

// Prediction is one ranked tail candidate.
type Prediction struct {
	EntityID EntityID `json:"entity_id"`
	Name     string   `json:"name,omitempty"`
	Distance float64  `json:"distance"`
}

// ValidationResult is the distance of a sample triplet under the current model.
// Missing is set when any of its ids has no embedding.
type ValidationResult struct {
	Triplet  Triplet `json:"triplet"`
	Distance float64 `json:"distance"`
	Missing  bool    `json:"missing"`
}
