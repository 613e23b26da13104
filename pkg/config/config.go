package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/viper"

	"github.com/soundprediction/kgembed/pkg/types"
)

// Config holds all configuration for the application
type Config struct {
	// Log configuration
	Log LogConfig `mapstructure:"log" yaml:"log"`

	// Model hyperparameters and seed
	Model ModelConfig `mapstructure:"model" yaml:"model"`

	// Training loop configuration
	Training TrainingConfig `mapstructure:"training" yaml:"training"`

	// Checkpoint storage configuration
	Checkpoint CheckpointConfig `mapstructure:"checkpoint" yaml:"checkpoint"`

	// Corpus backend selection
	Corpus CorpusConfig `mapstructure:"corpus" yaml:"corpus"`

	// Database configuration (neo4j corpus)
	Database DatabaseConfig `mapstructure:"database" yaml:"database"`

	// Postgres configuration (postgres corpus)
	Postgres PostgresConfig `mapstructure:"postgres" yaml:"postgres"`

	// Retry configuration for corpus access
	Retry RetryConfig `mapstructure:"retry" yaml:"retry"`

	// CircuitBreaker configuration for corpus access
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker" yaml:"circuit_breaker"`

	// Telemetry configuration
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`

	// Alert configuration for failed training runs
	Alert AlertConfig `mapstructure:"alert" yaml:"alert"`
}

// AlertConfig holds configuration for alerting
type AlertConfig struct {
	Enabled  bool     `mapstructure:"enabled" yaml:"enabled"`
	SMTPHost string   `mapstructure:"smtp_host" yaml:"smtp_host"`
	SMTPPort int      `mapstructure:"smtp_port" yaml:"smtp_port"`
	Username string   `mapstructure:"username" yaml:"username"`
	Password string   `mapstructure:"password" yaml:"-"`
	From     string   `mapstructure:"from" yaml:"from"`
	To       []string `mapstructure:"to" yaml:"to,omitempty"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"` // text, json
}

// ModelConfig holds the TransE hyperparameters
type ModelConfig struct {
	EmbeddingDim int     `mapstructure:"embedding_dim" yaml:"embedding_dim"`
	Margin       float64 `mapstructure:"margin" yaml:"margin"`
	LearningRate float64 `mapstructure:"learning_rate" yaml:"learning_rate"`
	Seed         uint64  `mapstructure:"seed" yaml:"seed"`
}

// Hyperparameters converts the model section to types.Hyperparameters.
func (m ModelConfig) Hyperparameters() types.Hyperparameters {
	return types.Hyperparameters{
		EmbeddingDim: m.EmbeddingDim,
		Margin:       m.Margin,
		LearningRate: m.LearningRate,
	}
}

// TrainingConfig holds training loop configuration
type TrainingConfig struct {
	Epochs    int `mapstructure:"epochs" yaml:"epochs"`
	BatchSize int `mapstructure:"batch_size" yaml:"batch_size"`
}

// CheckpointConfig holds checkpoint storage configuration
type CheckpointConfig struct {
	Backend string `mapstructure:"backend" yaml:"backend"` // file, badger
	Dir     string `mapstructure:"dir" yaml:"dir"`
}

// CorpusConfig selects where triplets come from
type CorpusConfig struct {
	Backend string `mapstructure:"backend" yaml:"backend"` // memory, neo4j, postgres, parquet, ladybug
	// Path is the parquet file or ladybug database path.
	Path string `mapstructure:"path" yaml:"path"`
	// Triplets seeds the memory backend, as "head,relation,tail" strings.
	Triplets []string `mapstructure:"triplets" yaml:"triplets,omitempty"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	URI      string `mapstructure:"uri" yaml:"uri"`
	Username string `mapstructure:"username" yaml:"username"`
	Password string `mapstructure:"password" yaml:"-"`
	Database string `mapstructure:"database" yaml:"database"`
}

// PostgresConfig holds PostgreSQL configuration
type PostgresConfig struct {
	DSN          string `mapstructure:"dsn" yaml:"-"`
	TripletTable string `mapstructure:"triplet_table" yaml:"triplet_table"`
	EntityTable  string `mapstructure:"entity_table" yaml:"entity_table"`
	MaxOpenConns int    `mapstructure:"max_open_conns" yaml:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns" yaml:"max_idle_conns"`
}

// RetryConfig holds retry configuration
type RetryConfig struct {
	MaxRetries        int     `mapstructure:"max_retries" yaml:"max_retries"`
	InitialDelay      int     `mapstructure:"initial_delay" yaml:"initial_delay"` // in milliseconds
	MaxDelay          int     `mapstructure:"max_delay" yaml:"max_delay"`         // in milliseconds
	BackoffMultiplier float64 `mapstructure:"backoff_multiplier" yaml:"backoff_multiplier"`
}

// CircuitBreakerConfig holds configuration for circuit breaking
type CircuitBreakerConfig struct {
	Enabled          bool    `mapstructure:"enabled" yaml:"enabled"`
	MaxRequests      uint32  `mapstructure:"max_requests" yaml:"max_requests"`
	Interval         int     `mapstructure:"interval" yaml:"interval"` // in seconds
	Timeout          int     `mapstructure:"timeout" yaml:"timeout"`   // in seconds
	ReadyToTripRatio float64 `mapstructure:"ready_to_trip_ratio" yaml:"ready_to_trip_ratio"`
}

// IntervalDuration returns Interval as a time.Duration.
func (c CircuitBreakerConfig) IntervalDuration() time.Duration {
	return time.Duration(c.Interval) * time.Second
}

// TimeoutDuration returns Timeout as a time.Duration.
func (c CircuitBreakerConfig) TimeoutDuration() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}

// TelemetryConfig holds telemetry configuration
type TelemetryConfig struct {
	// ParquetPath is the directory epoch metrics are written to. Empty disables them.
	ParquetPath string `mapstructure:"parquet_path" yaml:"parquet_path"`

	// SQLTable, when set, also records epoch metrics in this table.
	SQLTable string `mapstructure:"sql_table" yaml:"sql_table"`
	// SQLDriver is postgres (default) or mysql, which also serves Dolt.
	SQLDriver string `mapstructure:"sql_driver" yaml:"sql_driver"`
	// SQLDSN defaults to postgres.dsn for the postgres driver. MySQL DSNs
	// are opened with parseTime=true.
	SQLDSN string `mapstructure:"sql_dsn" yaml:"-"`
}

// Load loads configuration from file and environment variables
func Load() (*Config, error) {
	// Set defaults
	setDefaults()

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// Override with environment variables if present
	overrideWithEnv(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate checks values that would otherwise fail deep inside training.
func (c *Config) Validate() error {
	if err := c.Model.Hyperparameters().Validate(); err != nil {
		return fmt.Errorf("model: %w", err)
	}
	if c.Training.Epochs < 0 {
		return fmt.Errorf("training.epochs cannot be negative, got %d", c.Training.Epochs)
	}
	if c.Training.BatchSize <= 0 {
		return fmt.Errorf("training.batch_size must be positive, got %d", c.Training.BatchSize)
	}
	switch c.Checkpoint.Backend {
	case "file", "badger":
	default:
		return fmt.Errorf("unknown checkpoint backend %q", c.Checkpoint.Backend)
	}
	switch c.Corpus.Backend {
	case "memory", "neo4j", "postgres", "parquet", "ladybug":
	default:
		return fmt.Errorf("unknown corpus backend %q", c.Corpus.Backend)
	}
	if c.Alert.Enabled && (c.Alert.SMTPHost == "" || len(c.Alert.To) == 0) {
		return fmt.Errorf("alert.enabled requires alert.smtp_host and alert.to")
	}
	if c.Telemetry.SQLTable != "" && c.Telemetry.SQLDSN == "" {
		return fmt.Errorf("telemetry.sql_table requires telemetry.sql_dsn")
	}
	return nil
}

// setDefaults sets default configuration values
func setDefaults() {
	// Log defaults
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "text")

	// Model defaults
	viper.SetDefault("model.embedding_dim", types.DefaultEmbeddingDim)
	viper.SetDefault("model.margin", types.DefaultMargin)
	viper.SetDefault("model.learning_rate", types.DefaultLearningRate)
	viper.SetDefault("model.seed", 42)

	// Training defaults
	viper.SetDefault("training.epochs", types.DefaultEpochs)
	viper.SetDefault("training.batch_size", types.DefaultBatchSize)

	// Corpus defaults
	viper.SetDefault("corpus.backend", "neo4j")
	viper.SetDefault("corpus.path", "")

	// Database defaults
	viper.SetDefault("database.uri", "bolt://localhost:7687")
	viper.SetDefault("database.username", "neo4j")
	viper.SetDefault("database.password", "")
	viper.SetDefault("database.database", "neo4j")

	// Postgres defaults
	viper.SetDefault("postgres.dsn", "")
	viper.SetDefault("postgres.triplet_table", "triplets")
	viper.SetDefault("postgres.entity_table", "entities")
	viper.SetDefault("postgres.max_open_conns", 10)
	viper.SetDefault("postgres.max_idle_conns", 2)

	// Retry defaults
	viper.SetDefault("retry.max_retries", 3)
	viper.SetDefault("retry.initial_delay", 1000)
	viper.SetDefault("retry.max_delay", 30000)
	viper.SetDefault("retry.backoff_multiplier", 2.0)

	// Circuit breaker defaults
	viper.SetDefault("circuit_breaker.enabled", true)
	viper.SetDefault("circuit_breaker.max_requests", 1)
	viper.SetDefault("circuit_breaker.interval", 60)
	viper.SetDefault("circuit_breaker.timeout", 30)
	viper.SetDefault("circuit_breaker.ready_to_trip_ratio", 0.6)

	// Alert defaults
	viper.SetDefault("alert.enabled", false)
	viper.SetDefault("alert.smtp_port", 587)

	// Checkpoint and telemetry defaults
	viper.SetDefault("checkpoint.backend", "file")
	viper.SetDefault("telemetry.sql_table", "")
	viper.SetDefault("telemetry.sql_driver", "postgres")
	home, err := os.UserHomeDir()
	if err == nil {
		viper.SetDefault("checkpoint.dir", filepath.Join(home, ".kgembed", "checkpoints"))
		viper.SetDefault("telemetry.parquet_path", filepath.Join(home, ".kgembed", "telemetry"))
	} else {
		viper.SetDefault("checkpoint.dir", "")
		viper.SetDefault("telemetry.parquet_path", "")
	}
}

// overrideWithEnv overrides config with environment variables
func overrideWithEnv(config *Config) {
	// Database credentials
	if uri := os.Getenv("NEO4J_URI"); uri != "" {
		config.Database.URI = uri
	}
	if user := os.Getenv("NEO4J_USER"); user != "" {
		config.Database.Username = user
	}
	if pass := os.Getenv("NEO4J_PASSWORD"); pass != "" {
		config.Database.Password = pass
	}
	if db := os.Getenv("NEO4J_DATABASE"); db != "" {
		config.Database.Database = db
	}

	if dsn := os.Getenv("POSTGRES_DSN"); dsn != "" {
		config.Postgres.DSN = dsn
	}
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" && config.Postgres.DSN == "" {
		config.Postgres.DSN = dsn
	}

	if backend := os.Getenv("KGEMBED_CORPUS"); backend != "" {
		config.Corpus.Backend = backend
	}
	if path := os.Getenv("KGEMBED_CORPUS_PATH"); path != "" {
		config.Corpus.Path = path
	}
	if dir := os.Getenv("KGEMBED_CHECKPOINT_DIR"); dir != "" {
		config.Checkpoint.Dir = dir
	}
	if seed := os.Getenv("KGEMBED_SEED"); seed != "" {
		if v, err := strconv.ParseUint(seed, 10, 64); err == nil {
			config.Model.Seed = v
		}
	}

	// Telemetry settings
	if path := os.Getenv("TELEMETRY_PARQUET_PATH"); path != "" {
		config.Telemetry.ParquetPath = path
	}
	if pass := os.Getenv("SMTP_PASSWORD"); pass != "" {
		config.Alert.Password = pass
	}
	if table := os.Getenv("KGEMBED_TELEMETRY_TABLE"); table != "" {
		config.Telemetry.SQLTable = table
	}
	if dsn := os.Getenv("KGEMBED_TELEMETRY_DSN"); dsn != "" {
		config.Telemetry.SQLDSN = dsn
	}
	if config.Telemetry.SQLDSN == "" && (config.Telemetry.SQLDriver == "" || config.Telemetry.SQLDriver == "postgres") {
		config.Telemetry.SQLDSN = config.Postgres.DSN
	}
}
