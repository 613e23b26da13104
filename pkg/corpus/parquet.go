package corpus

import (
	"fmt"

	"github.com/parquet-go/parquet-go"

	"github.com/soundprediction/kgembed/pkg/types"
)

// ParquetSource serves triplets loaded from a parquet file with head,
// relation and tail string columns. The file is read once at construction.
type ParquetSource struct {
	*MemorySource
	path string
}

// NewParquetSource reads every triplet from path.
func NewParquetSource(path string) (*ParquetSource, error) {
	rows, err := parquet.ReadFile[types.Triplet](path)
	if err != nil {
		return nil, fmt.Errorf("failed to read parquet triplets from %s: %w", path, err)
	}
	for i, t := range rows {
		if err := t.Validate(); err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
	}
	return &ParquetSource{MemorySource: NewMemorySource(rows), path: path}, nil
}

// Path returns the file the triplets were read from.
func (p *ParquetSource) Path() string {
	return p.path
}

// WriteParquetTriplets writes triplets to path in the layout NewParquetSource reads.
func WriteParquetTriplets(path string, triplets []types.Triplet) error {
	if err := parquet.WriteFile(path, triplets); err != nil {
		return fmt.Errorf("failed to write parquet triplets to %s: %w", path, err)
	}
	return nil
}
