package kgembed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/soundprediction/kgembed"
	"github.com/soundprediction/kgembed/pkg/checkpoint"
	"github.com/soundprediction/kgembed/pkg/config"
	"github.com/soundprediction/kgembed/pkg/corpus"
	"github.com/soundprediction/kgembed/pkg/logger"
	"github.com/soundprediction/kgembed/pkg/telemetry"
	"github.com/soundprediction/kgembed/pkg/transe"
)

// loadConfig loads the configuration and applies command-line overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	overrideConfigWithFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func overrideConfigWithFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()

	// Corpus and checkpoint flags
	if flags.Changed("corpus") {
		cfg.Corpus.Backend, _ = flags.GetString("corpus")
	}
	if flags.Changed("corpus-path") {
		cfg.Corpus.Path, _ = flags.GetString("corpus-path")
	}
	if flags.Changed("checkpoint-backend") {
		cfg.Checkpoint.Backend, _ = flags.GetString("checkpoint-backend")
	}
	if flags.Changed("checkpoint-dir") {
		cfg.Checkpoint.Dir, _ = flags.GetString("checkpoint-dir")
	}

	// Training flags
	if flags.Changed("epochs") {
		cfg.Training.Epochs, _ = flags.GetInt("epochs")
	}
	if flags.Changed("batch-size") {
		cfg.Training.BatchSize, _ = flags.GetInt("batch-size")
	}
	if flags.Changed("dim") {
		cfg.Model.EmbeddingDim, _ = flags.GetInt("dim")
	}
	if flags.Changed("margin") {
		cfg.Model.Margin, _ = flags.GetFloat64("margin")
	}
	if flags.Changed("learning-rate") {
		cfg.Model.LearningRate, _ = flags.GetFloat64("learning-rate")
	}
	if flags.Changed("seed") {
		cfg.Model.Seed, _ = flags.GetUint64("seed")
	}

	// Telemetry flags
	if flags.Changed("telemetry-parquet-path") {
		cfg.Telemetry.ParquetPath, _ = flags.GetString("telemetry-parquet-path")
	}
}

// newLogger builds the process logger. ERROR records are also kept as
// Parquet when a telemetry path is configured.
func newLogger(cfg *config.Config) (*slog.Logger, func()) {
	level := logger.ParseLevel(cfg.Log.Level)
	log := logger.NewLogger(os.Stderr, level, logger.Format(cfg.Log.Format))
	if cfg.Telemetry.ParquetPath == "" {
		return log, func() {}
	}

	handler, err := telemetry.NewErrorHandler(log.Handler(), cfg.Telemetry.ParquetPath)
	if err != nil {
		log.Warn("Failed to initialize error tracking", "error", err)
		return log, func() {}
	}
	return slog.New(handler), func() { _ = handler.Flush() }
}

// openCheckpoints opens the configured checkpoint store.
func openCheckpoints(cfg *config.Config, log *slog.Logger) (*checkpoint.Manager, error) {
	var store checkpoint.Store
	switch cfg.Checkpoint.Backend {
	case "badger":
		s, err := checkpoint.OpenBadgerStore(cfg.Checkpoint.Dir)
		if err != nil {
			return nil, err
		}
		store = s
	default:
		s, err := checkpoint.NewFileStore(cfg.Checkpoint.Dir)
		if err != nil {
			return nil, err
		}
		store = s
	}
	return checkpoint.NewManager(store, log), nil
}

// clientOptions controls what openClient connects to.
type clientOptions struct {
	// withCorpus connects to the configured corpus; otherwise an empty
	// in-memory corpus is used, which is enough for prediction.
	withCorpus bool
	observers  []transe.Observer
}

// openClient builds a kgembed client from the configuration.
func openClient(ctx context.Context, cfg *config.Config, log *slog.Logger, opts clientOptions) (*kgembed.Client, error) {
	var src corpus.Source = corpus.NewMemorySource(nil)
	if opts.withCorpus {
		s, err := corpus.Open(ctx, cfg, log)
		if err != nil {
			return nil, fmt.Errorf("failed to open %s corpus: %w", cfg.Corpus.Backend, err)
		}
		src = s
	}

	mgr, err := openCheckpoints(cfg, log)
	if err != nil {
		_ = src.Close()
		return nil, err
	}

	client, err := kgembed.NewClient(src, mgr, &kgembed.Config{
		Hyperparameters: cfg.Model.Hyperparameters(),
		Epochs:          cfg.Training.Epochs,
		BatchSize:       cfg.Training.BatchSize,
		Seed:            cfg.Model.Seed,
		Observers:       opts.observers,
	}, log)
	if err != nil {
		_ = src.Close()
		_ = mgr.Close()
		return nil, err
	}
	return client, nil
}

// loadNamedCheckpoint loads name, or the most recent checkpoint for "latest".
func loadNamedCheckpoint(ctx context.Context, client *kgembed.Client, name string) (string, error) {
	if name == "latest" {
		return client.LoadLatest(ctx)
	}
	return name, client.Load(ctx, name)
}

// telemetryObservers returns the epoch recorders enabled by the
// configuration and a function that flushes and closes them.
func telemetryObservers(ctx context.Context, cfg *config.Config, log *slog.Logger) ([]transe.Observer, func() error, error) {
	var (
		observers []transe.Observer
		closers   []func() error
	)
	closeAll := func() error {
		var errs []error
		for _, c := range closers {
			errs = append(errs, c())
		}
		return errors.Join(errs...)
	}

	if cfg.Telemetry.ParquetPath != "" {
		rec, err := telemetry.NewEpochRecorder(cfg.Telemetry.ParquetPath, log)
		if err != nil {
			return nil, closeAll, err
		}
		observers = append(observers, rec)
		closers = append(closers, rec.Close)
	}

	if cfg.Telemetry.SQLTable != "" {
		dialect, err := telemetry.ParseDialect(cfg.Telemetry.SQLDriver)
		if err != nil {
			return nil, closeAll, err
		}
		db, err := telemetry.OpenDB(dialect, cfg.Telemetry.SQLDSN)
		if err != nil {
			return nil, closeAll, err
		}
		closers = append(closers, db.Close)
		rec, err := telemetry.NewSQLRecorder(ctx, db, dialect, cfg.Telemetry.SQLTable, log)
		if err != nil {
			return nil, closeAll, err
		}
		observers = append(observers, rec)
	}
	return observers, closeAll, nil
}
