package telemetry

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"

	"github.com/soundprediction/kgembed/pkg/transe"
)

// Dialect selects the SQL flavour written by SQLRecorder. It doubles as the
// database/sql driver name.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectMySQL    Dialect = "mysql"
)

// ParseDialect maps a driver name to a Dialect. Empty means postgres.
func ParseDialect(s string) (Dialect, error) {
	switch strings.ToLower(s) {
	case "", "postgres", "postgresql":
		return DialectPostgres, nil
	case "mysql", "dolt":
		return DialectMySQL, nil
	}
	return "", fmt.Errorf("unsupported telemetry sql driver %q", s)
}

// OpenDB opens the metrics database for dialect. MySQL DSNs always get
// parseTime=true so recorded_at scans into time.Time.
func OpenDB(dialect Dialect, dsn string) (*sql.DB, error) {
	dsn, err := normalizeDSN(dialect, dsn)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(string(dialect), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open telemetry database: %w", err)
	}
	return db, nil
}

func normalizeDSN(dialect Dialect, dsn string) (string, error) {
	if dialect != DialectMySQL {
		return dsn, nil
	}
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("invalid mysql dsn: %w", err)
	}
	cfg.ParseTime = true
	return cfg.FormatDSN(), nil
}

// SQLRecorder inserts one row per epoch into a table.
type SQLRecorder struct {
	db        *sql.DB
	dialect   Dialect
	tableName string
	logger    *slog.Logger
	now       func() time.Time
}

var _ transe.Observer = (*SQLRecorder)(nil)

// NewSQLRecorder uses an existing connection and creates the table if needed.
func NewSQLRecorder(ctx context.Context, db *sql.DB, dialect Dialect, tableName string, logger *slog.Logger) (*SQLRecorder, error) {
	if tableName == "" {
		tableName = "kgembed_epochs"
	}
	if logger == nil {
		logger = slog.Default()
	}
	r := &SQLRecorder{
		db:        db,
		dialect:   dialect,
		tableName: quoteIdentifier(dialect, tableName),
		logger:    logger,
		now:       time.Now,
	}
	if err := r.ensureTable(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure telemetry table: %w", err)
	}
	return r, nil
}

func quoteIdentifier(d Dialect, name string) string {
	if d == DialectMySQL {
		return "`" + strings.ReplaceAll(name, "`", "``") + "`"
	}
	return pq.QuoteIdentifier(name)
}

func (r *SQLRecorder) ensureTable(ctx context.Context) error {
	tsType := "TIMESTAMPTZ"
	if r.dialect == DialectMySQL {
		tsType = "TIMESTAMP(6)"
	}
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			run_id VARCHAR(36) NOT NULL,
			epoch INT NOT NULL,
			average_loss DOUBLE PRECISION,
			triplets BIGINT,
			batches BIGINT,
			updates BIGINT,
			duration_ms BIGINT,
			checkpoint VARCHAR(255),
			recorded_at %s,
			PRIMARY KEY (run_id, epoch)
		)
	`, r.tableName, tsType)

	_, err := r.db.ExecContext(ctx, query)
	return err
}

// BatchDone is a no-op.
func (r *SQLRecorder) BatchDone(context.Context, transe.BatchResult) {}

// EpochDone inserts the epoch. Failures are logged and otherwise ignored.
func (r *SQLRecorder) EpochDone(ctx context.Context, res transe.EpochResult) {
	if err := r.Record(context.WithoutCancel(ctx), res); err != nil {
		r.logger.WarnContext(ctx, "Failed to record epoch metrics", "error", err, "epoch", res.Epoch)
	}
}

var epochColumns = []string{"average_loss", "triplets", "batches", "updates", "duration_ms", "checkpoint", "recorded_at"}

// Record inserts or replaces the row for res.RunID and res.Epoch.
func (r *SQLRecorder) Record(ctx context.Context, res transe.EpochResult) error {
	rec := newEpochRecord(res, r.now())

	var query string
	switch r.dialect {
	case DialectMySQL:
		sets := make([]string, len(epochColumns))
		for i, c := range epochColumns {
			sets[i] = fmt.Sprintf("%s = VALUES(%s)", c, c)
		}
		query = fmt.Sprintf(`
			INSERT INTO %s (run_id, epoch, %s)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON DUPLICATE KEY UPDATE %s
		`, r.tableName, strings.Join(epochColumns, ", "), strings.Join(sets, ", "))
	default:
		sets := make([]string, len(epochColumns))
		for i, c := range epochColumns {
			sets[i] = fmt.Sprintf("%s = EXCLUDED.%s", c, c)
		}
		query = fmt.Sprintf(`
			INSERT INTO %s (run_id, epoch, %s)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (run_id, epoch) DO UPDATE SET %s
		`, r.tableName, strings.Join(epochColumns, ", "), strings.Join(sets, ", "))
	}

	_, err := r.db.ExecContext(ctx, query,
		rec.RunID, rec.Epoch, rec.AverageLoss, rec.Triplets, rec.Batches,
		rec.Updates, rec.DurationMs, rec.Checkpoint, rec.Timestamp)
	return err
}

// Epochs returns the recorded rows of a run ordered by epoch.
func (r *SQLRecorder) Epochs(ctx context.Context, runID string) ([]EpochRecord, error) {
	placeholder := "$1"
	if r.dialect == DialectMySQL {
		placeholder = "?"
	}
	query := fmt.Sprintf(`
		SELECT run_id, epoch, average_loss, triplets, batches, updates, duration_ms, checkpoint, recorded_at
		FROM %s WHERE run_id = %s ORDER BY epoch
	`, r.tableName, placeholder)

	rows, err := r.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []EpochRecord
	for rows.Next() {
		var rec EpochRecord
		if err := rows.Scan(&rec.RunID, &rec.Epoch, &rec.AverageLoss, &rec.Triplets, &rec.Batches,
			&rec.Updates, &rec.DurationMs, &rec.Checkpoint, &rec.Timestamp); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
