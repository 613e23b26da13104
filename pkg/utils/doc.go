// Package utils provides helpers shared by the kgembed packages.
//
// This package contains:
//   - Vector arithmetic and top-K selection (vector.go)
//   - Panic recovery for code that must surface failures as errors (recovery.go)
//   - Parquet export of trained embeddings (parquet_writer.go)
package utils
