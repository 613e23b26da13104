package kgembed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/soundprediction/kgembed/pkg/checkpoint"
	"github.com/soundprediction/kgembed/pkg/corpus"
	"github.com/soundprediction/kgembed/pkg/embedding"
	"github.com/soundprediction/kgembed/pkg/transe"
	"github.com/soundprediction/kgembed/pkg/types"
	"github.com/soundprediction/kgembed/pkg/utils"
)

// Client wires a corpus, an embedding store, a trainer, a predictor and a
// checkpoint manager together.
type Client struct {
	source      corpus.Source
	store       *embedding.Store
	trainer     *transe.Trainer
	predictor   *transe.Predictor
	checkpoints *checkpoint.Manager
	config      *Config
	logger      *slog.Logger
}

// Config holds configuration for the client.
type Config struct {
	Hyperparameters types.Hyperparameters
	Epochs          int
	BatchSize       int
	// Seed drives vector initialization and negative sampling.
	Seed uint64
	// Observers receive batch and epoch progress during Train.
	Observers []transe.Observer
}

// NewClient creates a client. checkpoints may be nil, in which case nothing
// is persisted and Load fails.
func NewClient(source corpus.Source, checkpoints *checkpoint.Manager, config *Config, logger *slog.Logger) (*Client, error) {
	if config == nil {
		config = &Config{
			Hyperparameters: types.DefaultHyperparameters(),
			Epochs:          types.DefaultEpochs,
			BatchSize:       types.DefaultBatchSize,
		}
	}
	if logger == nil {
		logger = slog.Default()
	}

	c := &Client{
		source:      source,
		store:       embedding.NewSeededStore(config.Seed),
		checkpoints: checkpoints,
		config:      config,
		logger:      logger,
	}

	opts := transe.Options{
		Hyperparameters: config.Hyperparameters,
		Epochs:          config.Epochs,
		BatchSize:       config.BatchSize,
		Seed:            config.Seed,
		Observers:       config.Observers,
		Logger:          logger,
	}
	if checkpoints != nil {
		opts.Checkpointer = runCheckpointer{c}
	}
	trainer, err := transe.NewTrainer(c.store, source, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create trainer: %w", err)
	}
	c.trainer = trainer
	c.predictor = transe.NewPredictor(c.store, logger)
	return c, nil
}

// runCheckpointer tags every checkpoint with the trainer's current run.
type runCheckpointer struct {
	c *Client
}

func (r runCheckpointer) Save(ctx context.Context, name string, state *types.ModelState) error {
	r.c.checkpoints.SetRunID(r.c.trainer.RunID())
	return r.c.checkpoints.Save(ctx, name, state)
}

// Store returns the embedding store.
func (c *Client) Store() *embedding.Store {
	return c.store
}

// Trainer returns the trainer.
func (c *Client) Trainer() *transe.Trainer {
	return c.trainer
}

// Checkpoints returns the checkpoint manager, or nil.
func (c *Client) Checkpoints() *checkpoint.Manager {
	return c.checkpoints
}

// Initialize creates vectors for every entity and relation in the corpus.
func (c *Client) Initialize(ctx context.Context) error {
	return c.trainer.Initialize(ctx)
}

// InitializeFromTriplets creates vectors for the ids appearing in triplets.
// It suits small datasets where the id set is known up front.
func (c *Client) InitializeFromTriplets(ctx context.Context, triplets []types.Triplet) error {
	for _, t := range triplets {
		if err := t.Validate(); err != nil {
			return err
		}
	}
	return c.trainer.InitializeFrom(ctx, corpus.NewMemorySource(triplets))
}

// Train runs all epochs and saves the "final" checkpoint on success.
func (c *Client) Train(ctx context.Context) ([]transe.EpochResult, error) {
	results, err := c.trainer.Train(ctx)
	if err != nil {
		return results, err
	}
	if c.checkpoints != nil {
		if err := c.SaveEmbeddings(context.WithoutCancel(ctx), checkpoint.FinalName); err != nil {
			return results, err
		}
	}
	return results, nil
}

// SaveEmbeddings writes the current model as a named checkpoint.
func (c *Client) SaveEmbeddings(ctx context.Context, name string) error {
	if c.checkpoints == nil {
		return errors.New("no checkpoint manager configured")
	}
	if c.store.Empty() {
		return transe.ErrUninitializedModel
	}
	return runCheckpointer{c}.Save(ctx, name, c.trainer.Snapshot())
}

// Load replaces the model with a saved checkpoint, including its
// hyperparameters.
func (c *Client) Load(ctx context.Context, name string) error {
	if c.checkpoints == nil {
		return errors.New("no checkpoint manager configured")
	}
	state, err := c.checkpoints.Load(ctx, name)
	if err != nil {
		return err
	}
	if err := c.trainer.Restore(state); err != nil {
		return fmt.Errorf("failed to restore checkpoint %s: %w", name, err)
	}
	c.logger.Info("Loaded checkpoint", "name", name,
		"entities", c.store.NumEntities(), "relations", c.store.NumRelations())
	return nil
}

// LoadLatest loads the most recently written checkpoint and returns its name.
// It fails with checkpoint.ErrCheckpointNotFound when none exist.
func (c *Client) LoadLatest(ctx context.Context) (string, error) {
	if c.checkpoints == nil {
		return "", errors.New("no checkpoint manager configured")
	}
	info, err := c.checkpoints.Latest(ctx)
	if err != nil {
		return "", err
	}
	return info.Name, c.Load(ctx, info.Name)
}

// PredictTail returns up to topK candidate tails ordered by distance.
func (c *Client) PredictTail(ctx context.Context, head types.EntityID, relation types.RelationID, topK int) ([]types.Prediction, error) {
	return c.predictor.PredictTail(ctx, head, relation, topK)
}

// PredictTailNamed is PredictTail with display names resolved by the corpus.
// Entities without a name are left out. It fails when the corpus cannot
// resolve names.
func (c *Client) PredictTailNamed(ctx context.Context, head types.EntityID, relation types.RelationID, topK int) ([]types.Prediction, error) {
	namer, ok := c.source.(corpus.EntityNamer)
	if !ok {
		return nil, fmt.Errorf("%T: %w", c.source, corpus.ErrNoEntityNames)
	}
	return c.predictor.PredictTailNamed(ctx, namer, head, relation, topK)
}

// Validate scores sample triplets under the current model.
func (c *Client) Validate(ctx context.Context, triplets []types.Triplet) ([]types.ValidationResult, error) {
	return c.predictor.Validate(ctx, triplets)
}

// Export writes the current vectors to <dir>/<name>.parquet and returns the
// path. Entity names are included when the corpus can resolve them.
func (c *Client) Export(ctx context.Context, dir, name string) (string, error) {
	if c.store.Empty() {
		return "", transe.ErrUninitializedModel
	}
	w, err := utils.NewParquetEmbeddingWriter(dir)
	if err != nil {
		return "", err
	}

	var names utils.NameFunc
	if namer, ok := c.source.(corpus.EntityNamer); ok {
		names = func(id types.EntityID) (string, bool) {
			n, err := namer.EntityName(ctx, id)
			return n, err == nil && n != ""
		}
	}

	path, err := w.Write(name, c.trainer.Snapshot(), names)
	if err != nil {
		return "", err
	}
	c.logger.Info("Exported embeddings", "path", path,
		"entities", c.store.NumEntities(), "relations", c.store.NumRelations())
	return path, nil
}

// Close releases the corpus and the checkpoint store.
func (c *Client) Close() error {
	var errs []error
	if c.source != nil {
		if err := c.source.Close(); err != nil {
			errs = append(errs, fmt.Errorf("corpus: %w", err))
		}
	}
	if c.checkpoints != nil {
		if err := c.checkpoints.Close(); err != nil {
			errs = append(errs, fmt.Errorf("checkpoints: %w", err))
		}
	}
	return errors.Join(errs...)
}
