// Package telemetry records training metrics outside the process log.
//
// EpochRecorder and SQLRecorder implement transe.Observer and persist one row
// per completed epoch to Parquet files or a postgres table. ErrorHandler is a
// slog.Handler that additionally keeps ERROR records in Parquet files so that
// failed runs can be inspected after the fact.
package telemetry
