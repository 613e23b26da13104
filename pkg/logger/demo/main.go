package main

import (
	"log/slog"

	"github.com/soundprediction/kgembed/pkg/logger"
)

func main() {
	log := logger.NewDefaultLogger(slog.LevelDebug)

	log.Info("kgembed coloured logger demo")

	log.Debug("Debug message - standard color")
	log.Info("Info message - standard color")
	log.Info("Saved checkpoint epoch_3 - green!")
	log.Warn("Warning message - yellow!")
	log.Error("Error message - red!")

	log.Info("Persistence messages are highlighted in green:")
	log.Info("Saved checkpoint", "name", "epoch_1", "entities", 4096)
	log.Info("Exported embeddings", "path", "embeddings.parquet", "rows", 4102)
	log.Info("Persisting epoch metrics", "count", 10)

	log.Warn("Warnings appear in yellow for attention")
	log.Error("Errors appear in red for immediate visibility")
}
