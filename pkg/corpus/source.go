// Package corpus supplies training triplets to the trainer.
//
// Every backend implements Source: a total count, offset/limit pages of
// triplets in a stable order, and the full entity and relation id sets.
// Backends that know display names also implement EntityNamer.
package corpus

import (
	"context"
	"errors"

	"github.com/soundprediction/kgembed/pkg/types"
)

var (
	// ErrClosed is returned by a source after Close.
	ErrClosed = errors.New("corpus source closed")
	// ErrNoEntityNames is returned when names are requested from a source
	// that does not store them.
	ErrNoEntityNames = errors.New("corpus does not resolve entity names")
)

// Source is the triplet corpus consumed by training.
type Source interface {
	// Count returns the total number of triplets.
	Count(ctx context.Context) (int, error)
	// Batch returns up to limit triplets starting at offset. Two calls with
	// the same arguments return the same triplets.
	Batch(ctx context.Context, offset, limit int) ([]types.Triplet, error)
	// EntityIDs returns every entity, including those not in any triplet.
	EntityIDs(ctx context.Context) ([]types.EntityID, error)
	// RelationIDs returns every relation type.
	RelationIDs(ctx context.Context) ([]types.RelationID, error)
	Close() error
}

// EntityNamer resolves an entity's display name. An unknown entity yields "".
type EntityNamer interface {
	EntityName(ctx context.Context, id types.EntityID) (string, error)
}

// Walk calls fn for every page of the corpus in order.
func Walk(ctx context.Context, src Source, batchSize int, fn func(offset int, batch []types.Triplet) error) error {
	if batchSize <= 0 {
		batchSize = types.DefaultBatchSize
	}
	total, err := src.Count(ctx)
	if err != nil {
		return err
	}
	for offset := 0; offset < total; offset += batchSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		batch, err := src.Batch(ctx, offset, batchSize)
		if err != nil {
			return err
		}
		if len(batch) == 0 {
			return nil
		}
		if err := fn(offset, batch); err != nil {
			return err
		}
	}
	return nil
}
