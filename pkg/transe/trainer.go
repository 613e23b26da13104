package transe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/soundprediction/kgembed/pkg/corpus"
	"github.com/soundprediction/kgembed/pkg/embedding"
	"github.com/soundprediction/kgembed/pkg/types"
	"github.com/soundprediction/kgembed/pkg/utils"
)

// State is the trainer lifecycle position.
type State int

const (
	StateUninitialized State = iota
	StateInitialized
	StateTraining
	StateCompleted
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitialized:
		return "initialized"
	case StateTraining:
		return "training"
	case StateCompleted:
		return "completed"
	default:
		return fmt.Sprintf("State(%d)", s)
	}
}

// Checkpointer persists model snapshots by name.
type Checkpointer interface {
	Save(ctx context.Context, name string, state *types.ModelState) error
}

// EpochCheckpointName is the checkpoint written after epoch n.
func EpochCheckpointName(epoch int) string {
	return fmt.Sprintf("epoch_%d", epoch)
}

// PartialCheckpointName is the checkpoint written when epoch n is cancelled.
func PartialCheckpointName(epoch int) string {
	return fmt.Sprintf("epoch_%d_partial", epoch)
}

// Options configures a Trainer.
type Options struct {
	Hyperparameters types.Hyperparameters
	Epochs          int
	BatchSize       int

	// Rand drives negative sampling. When nil a source seeded with Seed is used.
	Rand *rand.Rand
	Seed uint64

	Checkpointer Checkpointer
	Observers    []Observer
	Logger       *slog.Logger
}

// Trainer runs TransE mini-batch training over a corpus.Source.
type Trainer struct {
	store   *embedding.Store
	source  corpus.Source
	sampler *Sampler
	logger  *slog.Logger

	checkpointer Checkpointer
	observers    []Observer
	epochs       int
	batchSize    int

	mu     sync.Mutex
	state  State
	params types.Hyperparameters
	runID  string
}

// NewTrainer creates a trainer that mutates store with triplets from source.
func NewTrainer(store *embedding.Store, source corpus.Source, opts Options) (*Trainer, error) {
	if store == nil {
		return nil, errors.New("embedding store is required")
	}
	if source == nil {
		return nil, errors.New("corpus source is required")
	}

	params := opts.Hyperparameters
	if params == (types.Hyperparameters{}) {
		params = types.DefaultHyperparameters()
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}

	epochs := opts.Epochs
	if epochs < 0 {
		return nil, fmt.Errorf("epochs cannot be negative, got %d", epochs)
	}
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = types.DefaultBatchSize
	}

	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15))
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	t := &Trainer{
		store:        store,
		source:       source,
		sampler:      NewSampler(rng, store),
		logger:       logger,
		checkpointer: opts.Checkpointer,
		observers:    opts.Observers,
		epochs:       epochs,
		batchSize:    batchSize,
		params:       params,
	}
	if !store.Empty() {
		t.state = StateInitialized
	}
	return t, nil
}

// State returns the current lifecycle state.
func (t *Trainer) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Hyperparameters returns the hyperparameters in effect.
func (t *Trainer) Hyperparameters() types.Hyperparameters {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.params
}

// RunID identifies the most recent Train call.
func (t *Trainer) RunID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.runID
}

// Initialize discovers all entities and relations in the corpus and gives
// each a random vector.
func (t *Trainer) Initialize(ctx context.Context) error {
	return t.InitializeFrom(ctx, t.source)
}

// InitializeFrom is Initialize with ids taken from src instead of the
// training corpus. Ids already in the store keep their vectors.
func (t *Trainer) InitializeFrom(ctx context.Context, src corpus.Source) error {
	var (
		entities  []types.EntityID
		relations []types.RelationID
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		ids, err := src.EntityIDs(gctx)
		if err != nil {
			return fmt.Errorf("failed to list entities: %w", err)
		}
		entities = ids
		return nil
	})
	g.Go(func() error {
		ids, err := src.RelationIDs(gctx)
		if err != nil {
			return fmt.Errorf("failed to list relations: %w", err)
		}
		relations = ids
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == StateTraining {
		return ErrAlreadyTraining
	}
	if err := t.store.Initialize(entities, relations, t.params.EmbeddingDim); err != nil {
		return fmt.Errorf("failed to initialize embeddings: %w", err)
	}
	t.state = StateInitialized

	t.logger.Info("Initialized embeddings",
		"entities", t.store.NumEntities(),
		"relations", t.store.NumRelations(),
		"embedding_dim", t.params.EmbeddingDim)
	return nil
}

// Restore replaces the model with a loaded checkpoint. Its hyperparameters
// replace the trainer's.
func (t *Trainer) Restore(state *types.ModelState) error {
	if err := state.Config.Validate(); err != nil {
		return fmt.Errorf("invalid checkpoint config: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == StateTraining {
		return ErrAlreadyTraining
	}
	if err := t.store.Restore(state); err != nil {
		return err
	}
	t.params = state.Config
	t.state = StateInitialized
	return nil
}

// Snapshot returns the current model state with full hyperparameters.
func (t *Trainer) Snapshot() *types.ModelState {
	state := t.store.Snapshot()
	state.Config = t.Hyperparameters()
	return state
}

// Train runs the configured number of epochs and returns one result per
// completed epoch. A checkpoint is saved after each epoch.
//
// Cancellation is checked between batches. If ctx is cancelled mid-epoch a
// partial checkpoint is written and ctx.Err() is returned together with the
// results of the epochs that did complete.
func (t *Trainer) Train(ctx context.Context) ([]EpochResult, error) {
	t.mu.Lock()
	switch t.state {
	case StateUninitialized:
		t.mu.Unlock()
		return nil, ErrUninitializedModel
	case StateTraining:
		t.mu.Unlock()
		return nil, ErrAlreadyTraining
	}
	t.state = StateTraining
	t.runID = uuid.New().String()
	runID := t.runID
	t.mu.Unlock()

	final := StateCompleted
	defer func() {
		t.mu.Lock()
		t.state = final
		t.mu.Unlock()
	}()

	t.logger.Info("Starting training",
		"run_id", runID,
		"epochs", t.epochs,
		"batch_size", t.batchSize,
		"margin", t.params.Margin,
		"learning_rate", t.params.LearningRate)

	results := make([]EpochResult, 0, t.epochs)
	for epoch := 1; epoch <= t.epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			final = StateInitialized
			return results, err
		}
		res, err := t.trainEpoch(ctx, runID, epoch)
		if err != nil {
			final = StateInitialized
			return results, err
		}
		results = append(results, res)
	}

	t.logger.Info("Training completed", "run_id", runID, "epochs", len(results))
	return results, nil
}

func (t *Trainer) trainEpoch(ctx context.Context, runID string, epoch int) (EpochResult, error) {
	start := time.Now()
	res := EpochResult{RunID: runID, Epoch: epoch}

	var sumBatchMeans float64
	err := corpus.Walk(ctx, t.source, t.batchSize, func(offset int, batch []types.Triplet) error {
		var batchLoss float64
		for _, triplet := range batch {
			loss, updated, err := t.Step(triplet)
			if err != nil {
				return newTrainingError(epoch, res.Batches, err)
			}
			batchLoss += loss
			if updated {
				res.Updates++
			}
		}
		res.Batches++
		res.Triplets += len(batch)
		sumBatchMeans += batchLoss / float64(len(batch))
		res.AverageLoss = sumBatchMeans / float64(res.Batches)

		br := BatchResult{
			RunID:       runID,
			Epoch:       epoch,
			Batch:       res.Batches - 1,
			Triplets:    len(batch),
			BatchLoss:   batchLoss,
			RunningLoss: res.AverageLoss,
		}
		for _, o := range t.observers {
			o.BatchDone(ctx, br)
		}
		t.logger.Debug("Batch processed",
			"epoch", epoch,
			"batch", br.Batch,
			"offset", offset,
			"running_loss", res.AverageLoss)
		return nil
	})
	res.Duration = time.Since(start)

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			name := PartialCheckpointName(epoch)
			if saveErr := t.checkpoint(context.WithoutCancel(ctx), name); saveErr != nil {
				t.logger.Error("Failed to save partial checkpoint", "checkpoint", name, "error", saveErr)
			} else {
				t.logger.Warn("Training cancelled mid-epoch", "epoch", epoch, "batches", res.Batches, "checkpoint", name)
			}
			return res, err
		}
		var te *TrainingError
		if errors.As(err, &te) {
			return res, err
		}
		return res, newTrainingError(epoch, -1, err)
	}

	// The epoch's updates are already applied; a cancel arriving during the
	// last batch must not lose them.
	name := EpochCheckpointName(epoch)
	if err := t.checkpoint(context.WithoutCancel(ctx), name); err != nil {
		return res, newTrainingError(epoch, -1, fmt.Errorf("failed to save checkpoint: %w", err))
	}
	if t.checkpointer != nil {
		res.Checkpoint = name
	}

	for _, o := range t.observers {
		o.EpochDone(ctx, res)
	}
	t.logger.Info("Epoch completed",
		"epoch", epoch,
		"average_loss", res.AverageLoss,
		"triplets", res.Triplets,
		"batches", res.Batches,
		"updates", res.Updates,
		"duration", res.Duration)
	return res, nil
}

func (t *Trainer) checkpoint(ctx context.Context, name string) error {
	if t.checkpointer == nil {
		return nil
	}
	return t.checkpointer.Save(ctx, name, t.Snapshot())
}

// Step processes one positive triplet: draws a negative sample, computes the
// hinge loss and, when the loss is positive, applies the subgradient update.
// It returns the loss and whether any vector changed.
func (t *Trainer) Step(triplet types.Triplet) (loss float64, updated bool, err error) {
	defer utils.RecoverAsError(&err)

	pos, err := t.store.Translate(triplet.Head, triplet.Relation, triplet.Tail)
	if err != nil {
		return 0, false, fmt.Errorf("%w: triplet %s: %w", ErrUninitializedModel, triplet, err)
	}
	neg := t.sampler.Corrupt(triplet)
	negRes, err := t.store.Translate(neg.Head, neg.Relation, neg.Tail)
	if err != nil {
		return 0, false, fmt.Errorf("%w: negative %s: %w", ErrUninitializedModel, neg, err)
	}

	posDist := utils.Magnitude64(pos)
	negDist := utils.Magnitude64(negRes)
	loss = HingeLoss(t.params.Margin, posDist, negDist)
	if loss <= 0 {
		return 0, false, nil
	}

	gPos := gradient(pos, posDist)
	gNeg := gradient(negRes, negDist)
	lr := t.params.LearningRate

	updates := []func() error{
		func() error { return t.store.ApplyEntityGradient(triplet.Head, gPos, embedding.Minus, lr) },
		func() error { return t.store.ApplyRelationGradient(triplet.Relation, gPos, embedding.Minus, lr) },
		func() error { return t.store.ApplyEntityGradient(triplet.Tail, gPos, embedding.Plus, lr) },
		func() error { return t.store.ApplyEntityGradient(neg.Head, gNeg, embedding.Plus, lr) },
		func() error { return t.store.ApplyRelationGradient(neg.Relation, gNeg, embedding.Plus, lr) },
		func() error { return t.store.ApplyEntityGradient(neg.Tail, gNeg, embedding.Minus, lr) },
	}
	for _, apply := range updates {
		if err := apply(); err != nil {
			return loss, true, err
		}
	}
	return loss, true, nil
}
