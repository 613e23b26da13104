package transe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/soundprediction/kgembed/pkg/corpus"
	"github.com/soundprediction/kgembed/pkg/embedding"
	"github.com/soundprediction/kgembed/pkg/types"
	"github.com/soundprediction/kgembed/pkg/utils"
)

// parallelThreshold is the entity count above which scoring is sharded.
const parallelThreshold = 4096

// Predictor ranks candidate tails for a (head, relation) pair.
type Predictor struct {
	store   *embedding.Store
	workers int
	logger  *slog.Logger
}

// NewPredictor creates a predictor reading from store.
func NewPredictor(store *embedding.Store, logger *slog.Logger) *Predictor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Predictor{
		store:   store,
		workers: runtime.GOMAXPROCS(0),
		logger:  logger,
	}
}

// PredictTail returns the topK entities nearest to E[head] + R[relation],
// nearest first. Equal distances keep insertion order. An unknown head or
// relation yields an empty result and no error.
func (p *Predictor) PredictTail(ctx context.Context, head types.EntityID, relation types.RelationID, topK int) ([]types.Prediction, error) {
	if topK <= 0 {
		return []types.Prediction{}, nil
	}

	target, err := p.target(head, relation)
	if errors.Is(err, ErrUninitializedModel) {
		p.logger.Debug("Cold start prediction", "head", head, "relation", relation, "error", err)
		return []types.Prediction{}, nil
	}
	if err != nil {
		return nil, err
	}

	var ranked []utils.ScoredItem[types.EntityID]
	err = p.store.View(func(ids []types.EntityID, vecs []types.Vector) error {
		var err error
		ranked, err = p.rank(ctx, target, ids, vecs, topK)
		return err
	})
	if err != nil {
		return nil, err
	}

	out := make([]types.Prediction, len(ranked))
	for i, r := range ranked {
		out[i] = types.Prediction{EntityID: r.Item, Distance: r.Score}
	}
	return out, nil
}

// PredictTailNamed is PredictTail with display names resolved through namer.
// Candidates without a name are dropped, so fewer than topK may be returned.
func (p *Predictor) PredictTailNamed(ctx context.Context, namer corpus.EntityNamer, head types.EntityID, relation types.RelationID, topK int) ([]types.Prediction, error) {
	preds, err := p.PredictTail(ctx, head, relation, topK)
	if err != nil {
		return nil, err
	}
	out := preds[:0]
	for _, pred := range preds {
		name, err := namer.EntityName(ctx, pred.EntityID)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve name for %s: %w", pred.EntityID, err)
		}
		if name == "" {
			continue
		}
		pred.Name = name
		out = append(out, pred)
	}
	return out, nil
}

// Validate scores each triplet under the current model. Triplets with an
// unknown id are marked Missing rather than failing the call.
func (p *Predictor) Validate(ctx context.Context, triplets []types.Triplet) ([]types.ValidationResult, error) {
	out := make([]types.ValidationResult, 0, len(triplets))
	for _, t := range triplets {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res := types.ValidationResult{Triplet: t}
		d, err := p.store.Translate(t.Head, t.Relation, t.Tail)
		switch {
		case errors.Is(err, embedding.ErrNotFound):
			res.Missing = true
		case err != nil:
			return nil, err
		default:
			res.Distance = utils.Magnitude64(d)
		}
		out = append(out, res)
	}
	return out, nil
}

func (p *Predictor) target(head types.EntityID, relation types.RelationID) ([]float32, error) {
	h, err := p.store.Entity(head)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUninitializedModel, err)
	}
	r, err := p.store.Relation(relation)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUninitializedModel, err)
	}
	return utils.AddVectors(h, r), nil
}

func (p *Predictor) rank(ctx context.Context, target []float32, ids []types.EntityID, vecs []types.Vector, topK int) ([]utils.ScoredItem[types.EntityID], error) {
	scored := make([]utils.ScoredItem[types.EntityID], len(ids))
	score := func(from, to int) {
		for i := from; i < to; i++ {
			scored[i] = utils.ScoredItem[types.EntityID]{
				Item:  ids[i],
				Score: utils.L2Distance(target, vecs[i]),
				Index: i,
			}
		}
	}

	if len(ids) < parallelThreshold || p.workers <= 1 {
		score(0, len(ids))
		return utils.TopKSmallest(scored, topK), nil
	}

	g, gctx := errgroup.WithContext(ctx)
	shard := (len(ids) + p.workers - 1) / p.workers
	for from := 0; from < len(ids); from += shard {
		to := min(from+shard, len(ids))
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			score(from, to)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return utils.TopKSmallest(scored, topK), nil
}
