package logger_test

import (
	"log/slog"

	"github.com/soundprediction/kgembed/pkg/logger"
)

func ExampleNewDefaultLogger() {
	log := logger.NewDefaultLogger(slog.LevelDebug)

	log.Debug("Sampled corrupted triplet")
	log.Info("Epoch complete", "epoch", 1, "avg_loss", 0.42)
	log.Info("Saved checkpoint", "name", "epoch_1") // green in a terminal
	log.Warn("Corpus query retrying")               // yellow in a terminal
	log.Error("Training failed")                    // red in a terminal
}

func ExampleNewLogger() {
	log := logger.NewDefaultLogger(slog.LevelInfo)

	log.Info("Starting training", "epochs", 10, "batch_size", 1024)
	log.Info("Exported embeddings", "entities", 42, "path", "embeddings.parquet") // green
	log.Warn("Circuit breaker state changed", "from", "closed", "to", "open")   // yellow
	log.Error("Corpus connection failed", "error", "timeout", "retry_count", 3) // red
}
