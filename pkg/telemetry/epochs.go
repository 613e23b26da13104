package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/soundprediction/kgembed/pkg/transe"
)

// EpochRecord is one row of epoch metrics.
type EpochRecord struct {
	RunID       string    `parquet:"run_id" json:"run_id"`
	Epoch       int64     `parquet:"epoch" json:"epoch"`
	AverageLoss float64   `parquet:"average_loss" json:"average_loss"`
	Triplets    int64     `parquet:"triplets" json:"triplets"`
	Batches     int64     `parquet:"batches" json:"batches"`
	Updates     int64     `parquet:"updates" json:"updates"`
	DurationMs  int64     `parquet:"duration_ms" json:"duration_ms"`
	Checkpoint  string    `parquet:"checkpoint" json:"checkpoint"`
	Timestamp   time.Time `parquet:"timestamp" json:"timestamp"`
}

func newEpochRecord(r transe.EpochResult, now time.Time) EpochRecord {
	return EpochRecord{
		RunID:       r.RunID,
		Epoch:       int64(r.Epoch),
		AverageLoss: r.AverageLoss,
		Triplets:    int64(r.Triplets),
		Batches:     int64(r.Batches),
		Updates:     int64(r.Updates),
		DurationMs:  r.Duration.Milliseconds(),
		Checkpoint:  r.Checkpoint,
		Timestamp:   now.UTC(),
	}
}

// EpochRecorder buffers epoch metrics and writes them to Parquet files in a
// directory. A file is written every batchSize epochs and on Flush or Close.
type EpochRecorder struct {
	outputDir string
	logger    *slog.Logger
	batchSize int
	now       func() time.Time

	mu     sync.Mutex
	buffer []EpochRecord
	files  []string
}

var _ transe.Observer = (*EpochRecorder)(nil)

// NewEpochRecorder creates the output directory if needed.
func NewEpochRecorder(outputDir string, logger *slog.Logger) (*EpochRecorder, error) {
	if outputDir == "" {
		return nil, fmt.Errorf("telemetry output directory is required")
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create telemetry directory: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &EpochRecorder{
		outputDir: outputDir,
		logger:    logger,
		batchSize: 100,
		now:       time.Now,
	}, nil
}

// BatchDone is a no-op; only epochs are recorded.
func (r *EpochRecorder) BatchDone(context.Context, transe.BatchResult) {}

// EpochDone buffers the epoch and flushes when the buffer is full. Write
// failures are logged and never interrupt training.
func (r *EpochRecorder) EpochDone(ctx context.Context, res transe.EpochResult) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.buffer = append(r.buffer, newEpochRecord(res, r.now()))
	if len(r.buffer) >= r.batchSize {
		if err := r.flush(); err != nil {
			r.logger.WarnContext(ctx, "Failed to write epoch metrics", "error", err)
		}
	}
}

// Flush writes buffered records to a new file.
func (r *EpochRecorder) Flush() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.flush()
}

// Close flushes the buffer.
func (r *EpochRecorder) Close() error {
	return r.Flush()
}

// Files returns the paths written so far.
func (r *EpochRecorder) Files() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.files...)
}

// flush writes the buffer to a new Parquet file. Caller must hold the lock.
func (r *EpochRecorder) flush() error {
	if len(r.buffer) == 0 {
		return nil
	}

	now := r.now()
	name := fmt.Sprintf("epochs_%s_%d.parquet", now.Format("20060102_150405"), now.UnixNano())
	path := filepath.Join(r.outputDir, name)

	if err := parquet.WriteFile(path, r.buffer); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	r.logger.Debug("Persisted epoch metrics", "path", path, "count", len(r.buffer))

	r.files = append(r.files, path)
	r.buffer = r.buffer[:0]
	return nil
}

// ReadEpochRecords reads a file written by EpochRecorder.
func ReadEpochRecords(path string) ([]EpochRecord, error) {
	rows, err := parquet.ReadFile[EpochRecord](path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return rows, nil
}
