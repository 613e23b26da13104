package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/parquet-go/parquet-go"
)

// ErrorRecord is a single ERROR log entry.
type ErrorRecord struct {
	ID         string    `parquet:"id"`
	Timestamp  time.Time `parquet:"timestamp"`
	Level      string    `parquet:"level"`
	Message    string    `parquet:"message"`
	RunID      string    `parquet:"run_id"`
	SourceFile string    `parquet:"source_file"`
	LineNumber int64     `parquet:"line_number"`
	Attributes string    `parquet:"attributes"` // JSON object
}

// errorSink is shared by every handler derived from the same ErrorHandler.
type errorSink struct {
	outputDir string
	batchSize int

	mu     sync.Mutex
	buffer []ErrorRecord
}

// ErrorHandler forwards every record to next and keeps ERROR records in
// Parquet files under outputDir.
type ErrorHandler struct {
	next   slog.Handler
	sink   *errorSink
	attrs  []slog.Attr
	groups []string
}

// NewErrorHandler creates the output directory if needed.
func NewErrorHandler(next slog.Handler, outputDir string) (*ErrorHandler, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create telemetry directory: %w", err)
	}
	return &ErrorHandler{
		next: next,
		sink: &errorSink{
			outputDir: outputDir,
			batchSize: 100,
			buffer:    make([]ErrorRecord, 0, 100),
		},
	}, nil
}

func (h *ErrorHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *ErrorHandler) Handle(ctx context.Context, r slog.Record) error {
	if err := h.next.Handle(ctx, r); err != nil {
		return err
	}
	if r.Level < slog.LevelError {
		return nil
	}

	attrs := make(map[string]any)
	prefix := strings.Join(h.groups, ".")
	add := func(a slog.Attr) bool {
		key := a.Key
		if prefix != "" {
			key = prefix + "." + key
		}
		attrs[key] = a.Value.Resolve().Any()
		return true
	}
	for _, a := range h.attrs {
		attrs[a.Key] = a.Value.Resolve().Any()
	}
	r.Attrs(add)

	var runID string
	if v, ok := attrs["run_id"].(string); ok {
		runID = v
	}
	for k, v := range attrs {
		if err, ok := v.(error); ok {
			attrs[k] = err.Error()
		}
	}
	attrsJSON, _ := json.Marshal(attrs)

	var sourceFile string
	var line int
	if r.PC != 0 {
		f, _ := runtime.CallersFrames([]uintptr{r.PC}).Next()
		sourceFile, line = f.File, f.Line
	}

	return h.sink.add(ErrorRecord{
		ID:         uuid.New().String(),
		Timestamp:  r.Time.UTC(),
		Level:      r.Level.String(),
		Message:    r.Message,
		RunID:      runID,
		SourceFile: sourceFile,
		LineNumber: int64(line),
		Attributes: string(attrsJSON),
	})
}

func (h *ErrorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.next = h.next.WithAttrs(attrs)
	clone.attrs = append(append([]slog.Attr(nil), h.attrs...), attrs...)
	return &clone
}

func (h *ErrorHandler) WithGroup(name string) slog.Handler {
	clone := *h
	clone.next = h.next.WithGroup(name)
	clone.groups = append(append([]string(nil), h.groups...), name)
	return &clone
}

// Flush writes any buffered records.
func (h *ErrorHandler) Flush() error {
	h.sink.mu.Lock()
	defer h.sink.mu.Unlock()
	return h.sink.flush()
}

func (s *errorSink) add(rec ErrorRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.buffer = append(s.buffer, rec)
	if len(s.buffer) >= s.batchSize {
		return s.flush()
	}
	return nil
}

// flush writes the buffer to a new Parquet file. Caller must hold the lock.
func (s *errorSink) flush() error {
	if len(s.buffer) == 0 {
		return nil
	}

	now := time.Now()
	name := fmt.Sprintf("errors_%s_%d.parquet", now.Format("20060102_150405"), now.UnixNano())
	if err := parquet.WriteFile(filepath.Join(s.outputDir, name), s.buffer); err != nil {
		// The log pipeline itself failed; stderr is all that is left.
		fmt.Fprintf(os.Stderr, "failed to write telemetry parquet file: %v\n", err)
		return err
	}
	s.buffer = s.buffer[:0]
	return nil
}
