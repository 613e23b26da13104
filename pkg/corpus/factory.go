package corpus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/soundprediction/kgembed/pkg/config"
	"github.com/soundprediction/kgembed/pkg/types"
)

// Open builds the source selected by cfg.Corpus.Backend. Remote backends
// are wrapped in Resilient using the retry and circuit breaker sections.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (Source, error) {
	if logger == nil {
		logger = slog.Default()
	}

	switch cfg.Corpus.Backend {
	case "memory":
		triplets := make([]types.Triplet, 0, len(cfg.Corpus.Triplets))
		for _, s := range cfg.Corpus.Triplets {
			t, err := types.ParseTriplet(s)
			if err != nil {
				return nil, err
			}
			triplets = append(triplets, t)
		}
		return NewMemorySource(triplets), nil

	case "parquet":
		if cfg.Corpus.Path == "" {
			return nil, errors.New("corpus.path is required for the parquet backend")
		}
		src, err := NewParquetSource(cfg.Corpus.Path)
		if err != nil {
			return nil, err
		}
		return src, nil

	case "ladybug":
		if cfg.Corpus.Path == "" {
			return nil, errors.New("corpus.path is required for the ladybug backend")
		}
		src, err := NewLadybugSource(cfg.Corpus.Path, logger)
		if err != nil {
			return nil, err
		}
		return src, nil

	case "neo4j":
		src, err := NewNeo4jSource(cfg.Database.URI, cfg.Database.Username, cfg.Database.Password, cfg.Database.Database, logger)
		if err != nil {
			return nil, err
		}
		if err := src.VerifyConnectivity(ctx); err != nil {
			src.Close()
			return nil, fmt.Errorf("neo4j not reachable at %s: %w", cfg.Database.URI, err)
		}
		return wrap(src, cfg, logger), nil

	case "postgres":
		if cfg.Postgres.DSN == "" {
			return nil, errors.New("postgres.dsn is required for the postgres backend")
		}
		pgCfg := DefaultPostgresConfig()
		pgCfg.TripletTable = cfg.Postgres.TripletTable
		pgCfg.EntityTable = cfg.Postgres.EntityTable
		if cfg.Postgres.MaxOpenConns > 0 {
			pgCfg.MaxOpenConns = cfg.Postgres.MaxOpenConns
		}
		if cfg.Postgres.MaxIdleConns > 0 {
			pgCfg.MaxIdleConns = cfg.Postgres.MaxIdleConns
		}
		src, err := NewPostgresSource(ctx, cfg.Postgres.DSN, pgCfg, logger)
		if err != nil {
			return nil, err
		}
		return wrap(src, cfg, logger), nil

	default:
		return nil, fmt.Errorf("unknown corpus backend %q", cfg.Corpus.Backend)
	}
}

func wrap(src Source, cfg *config.Config, logger *slog.Logger) *Resilient {
	retry := &RetryConfig{
		MaxRetries:        cfg.Retry.MaxRetries,
		InitialDelay:      time.Duration(cfg.Retry.InitialDelay) * time.Millisecond,
		MaxDelay:          time.Duration(cfg.Retry.MaxDelay) * time.Millisecond,
		BackoffMultiplier: cfg.Retry.BackoffMultiplier,
	}
	breaker := BreakerConfig{
		Enabled:          cfg.CircuitBreaker.Enabled,
		MaxRequests:      cfg.CircuitBreaker.MaxRequests,
		Interval:         cfg.CircuitBreaker.IntervalDuration(),
		Timeout:          cfg.CircuitBreaker.TimeoutDuration(),
		ReadyToTripRatio: cfg.CircuitBreaker.ReadyToTripRatio,
	}
	return NewResilient(src, retry, breaker, logger)
}
