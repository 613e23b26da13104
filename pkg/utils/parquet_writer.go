package utils

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/parquet-go/parquet-go"

	"github.com/soundprediction/kgembed/pkg/types"
)

// Row kinds in an embedding export.
const (
	KindEntity   = "entity"
	KindRelation = "relation"
)

// EmbeddingRow is the Parquet schema of an exported vector.
type EmbeddingRow struct {
	Kind   string    `parquet:"kind"`
	ID     string    `parquet:"id"`
	Name   string    `parquet:"name,optional"`
	Vector []float32 `parquet:"vector"`
}

// NameFunc resolves a display name for an entity; ok is false when none exists.
type NameFunc func(id types.EntityID) (name string, ok bool)

// EmbeddingRows flattens a model state into export rows. Entities come first,
// then relations, each in the state's recorded order when present.
func EmbeddingRows(state *types.ModelState, names NameFunc) []EmbeddingRow {
	if state == nil {
		return nil
	}
	rows := make([]EmbeddingRow, 0, len(state.Entities)+len(state.Relations))

	for _, id := range OrderedKeys(state.Entities, state.EntityOrder) {
		vec, ok := state.Entities[id]
		if !ok {
			continue
		}
		row := EmbeddingRow{Kind: KindEntity, ID: string(id), Vector: vec.Clone()}
		if names != nil {
			if n, ok := names(id); ok {
				row.Name = n
			}
		}
		rows = append(rows, row)
	}
	for _, id := range OrderedKeys(state.Relations, state.RelationOrder) {
		vec, ok := state.Relations[id]
		if !ok {
			continue
		}
		rows = append(rows, EmbeddingRow{Kind: KindRelation, ID: string(id), Vector: vec.Clone()})
	}
	return rows
}

// ParquetEmbeddingWriter writes embedding exports under a base directory.
type ParquetEmbeddingWriter struct {
	baseDir string
}

// NewParquetEmbeddingWriter creates baseDir if needed.
func NewParquetEmbeddingWriter(baseDir string) (*ParquetEmbeddingWriter, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", baseDir, err)
	}
	return &ParquetEmbeddingWriter{baseDir: baseDir}, nil
}

// Write stores state as <name>.parquet and returns the file path.
func (w *ParquetEmbeddingWriter) Write(name string, state *types.ModelState, names NameFunc) (string, error) {
	if name == "" {
		return "", fmt.Errorf("export name cannot be empty")
	}
	if filepath.Base(name) != name {
		return "", fmt.Errorf("export name %q must not contain path separators", name)
	}
	rows := EmbeddingRows(state, names)
	if len(rows) == 0 {
		return "", fmt.Errorf("no embeddings to export")
	}

	path := filepath.Join(w.baseDir, name+".parquet")
	if err := parquet.WriteFile(path, rows); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, nil
}

// ReadEmbeddingRows reads a file written by ParquetEmbeddingWriter.
func ReadEmbeddingRows(path string) ([]EmbeddingRow, error) {
	rows, err := parquet.ReadFile[EmbeddingRow](path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return rows, nil
}
