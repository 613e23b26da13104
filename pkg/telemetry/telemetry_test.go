package telemetry

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/parquet-go/parquet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundprediction/kgembed/pkg/transe"
)

func TestEpochRecorder(t *testing.T) {
	dir := t.TempDir()
	rec, err := NewEpochRecorder(dir, nil)
	require.NoError(t, err)

	ctx := context.Background()
	rec.BatchDone(ctx, transe.BatchResult{RunID: "run", Epoch: 1, Batch: 0})
	rec.EpochDone(ctx, transe.EpochResult{RunID: "run", Epoch: 1, AverageLoss: 0.5, Triplets: 10, Batches: 2, Updates: 7, Duration: 1500 * time.Millisecond, Checkpoint: "epoch_1"})
	rec.EpochDone(ctx, transe.EpochResult{RunID: "run", Epoch: 2, AverageLoss: 0.25, Triplets: 10, Batches: 2, Checkpoint: "epoch_2"})

	assert.Empty(t, rec.Files(), "nothing is written before flush")
	require.NoError(t, rec.Close())

	files := rec.Files()
	require.Len(t, files, 1)
	assert.Equal(t, dir, filepath.Dir(files[0]))

	rows, err := ReadEpochRecords(files[0])
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "run", rows[0].RunID)
	assert.EqualValues(t, 1, rows[0].Epoch)
	assert.InDelta(t, 0.5, rows[0].AverageLoss, 1e-12)
	assert.EqualValues(t, 1500, rows[0].DurationMs)
	assert.EqualValues(t, 7, rows[0].Updates)
	assert.Equal(t, "epoch_2", rows[1].Checkpoint)

	// A second close has nothing to write.
	require.NoError(t, rec.Close())
	assert.Len(t, rec.Files(), 1)
}

func TestEpochRecorderFlushesWhenFull(t *testing.T) {
	rec, err := NewEpochRecorder(t.TempDir(), nil)
	require.NoError(t, err)
	rec.batchSize = 2

	for i := 1; i <= 5; i++ {
		rec.EpochDone(context.Background(), transe.EpochResult{RunID: "r", Epoch: i})
	}
	assert.Len(t, rec.Files(), 2)
	require.NoError(t, rec.Flush())
	assert.Len(t, rec.Files(), 3)
}

func TestNewEpochRecorderRequiresDir(t *testing.T) {
	_, err := NewEpochRecorder("", nil)
	assert.Error(t, err)
}

func TestErrorHandler(t *testing.T) {
	dir := t.TempDir()
	var out bytes.Buffer
	h, err := NewErrorHandler(slog.NewTextHandler(&out, nil), dir)
	require.NoError(t, err)

	log := slog.New(h).With("run_id", "run-1")
	log.Info("Epoch complete", "epoch", 1)
	log.Error("Training failed", "error", errors.New("boom"), "epoch", 2)

	assert.Contains(t, out.String(), "Epoch complete")
	assert.Contains(t, out.String(), "Training failed")

	require.NoError(t, h.Flush())

	matches, err := filepath.Glob(filepath.Join(dir, "errors_*.parquet"))
	require.NoError(t, err)
	require.Len(t, matches, 1)

	rows, err := parquet.ReadFile[ErrorRecord](matches[0])
	require.NoError(t, err)
	require.Len(t, rows, 1, "only ERROR records are kept")
	assert.Equal(t, "Training failed", rows[0].Message)
	assert.Equal(t, "run-1", rows[0].RunID)
	assert.Contains(t, rows[0].Attributes, `"error":"boom"`)
	_, err = uuid.Parse(rows[0].ID)
	assert.NoError(t, err)
}

func TestParseDialect(t *testing.T) {
	for in, want := range map[string]Dialect{"": DialectPostgres, "postgres": DialectPostgres, "MySQL": DialectMySQL, "dolt": DialectMySQL} {
		got, err := ParseDialect(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseDialect("sqlite")
	assert.Error(t, err)
}

func TestQuoteIdentifier(t *testing.T) {
	assert.Equal(t, `"epochs"`, quoteIdentifier(DialectPostgres, "epochs"))
	assert.Equal(t, "`ep``ochs`", quoteIdentifier(DialectMySQL, "ep`ochs"))
}

func TestNormalizeDSN(t *testing.T) {
	got, err := normalizeDSN(DialectMySQL, "kg:secret@tcp(localhost:3306)/metrics")
	require.NoError(t, err)
	assert.Contains(t, got, "parseTime=true")
	assert.Contains(t, got, "tcp(localhost:3306)/metrics")

	got, err = normalizeDSN(DialectMySQL, "kg@tcp(localhost:3306)/metrics?parseTime=false")
	require.NoError(t, err)
	assert.Contains(t, got, "parseTime=true")

	_, err = normalizeDSN(DialectMySQL, "not a dsn")
	assert.Error(t, err)

	pgDSN := "postgres://kg@localhost/metrics?sslmode=disable"
	got, err = normalizeDSN(DialectPostgres, pgDSN)
	require.NoError(t, err)
	assert.Equal(t, pgDSN, got)
}

func TestSQLRecorder(t *testing.T) {
	tests := []struct {
		dialect Dialect
		env     string
	}{
		{DialectPostgres, "POSTGRES_TEST_DSN"},
		{DialectMySQL, "MYSQL_TEST_DSN"},
	}
	for _, tt := range tests {
		t.Run(string(tt.dialect), func(t *testing.T) {
			dsn := os.Getenv(tt.env)
			if dsn == "" {
				t.Skipf("%s not set", tt.env)
			}
			testSQLRecorder(t, tt.dialect, dsn)
		})
	}
}

func testSQLRecorder(t *testing.T, dialect Dialect, dsn string) {
	db, err := OpenDB(dialect, dsn)
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	table := "kgembed_epochs_test"
	_, _ = db.ExecContext(ctx, "DROP TABLE IF EXISTS "+table)

	rec, err := NewSQLRecorder(ctx, db, dialect, table, nil)
	require.NoError(t, err)

	runID := uuid.NewString()
	rec.EpochDone(ctx, transe.EpochResult{RunID: runID, Epoch: 1, AverageLoss: 0.9})
	rec.EpochDone(ctx, transe.EpochResult{RunID: runID, Epoch: 2, AverageLoss: 0.4})
	// Re-recording an epoch replaces it.
	require.NoError(t, rec.Record(ctx, transe.EpochResult{RunID: runID, Epoch: 2, AverageLoss: 0.3}))

	rows, err := rec.Epochs(ctx, runID)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.InDelta(t, 0.3, rows[1].AverageLoss, 1e-12)
}
