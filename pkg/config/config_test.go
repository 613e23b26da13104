package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	viper.Reset()
	t.Setenv("NEO4J_URI", "")
	t.Setenv("KGEMBED_SEED", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 100, cfg.Model.EmbeddingDim)
	assert.Equal(t, 1.0, cfg.Model.Margin)
	assert.Equal(t, 0.01, cfg.Model.LearningRate)
	assert.Equal(t, 1024, cfg.Training.BatchSize)
	assert.Equal(t, "file", cfg.Checkpoint.Backend)
	assert.Equal(t, "neo4j", cfg.Corpus.Backend)
	assert.Equal(t, "bolt://localhost:7687", cfg.Database.URI)
	assert.True(t, cfg.CircuitBreaker.Enabled)
}

func TestLoadFromFile(t *testing.T) {
	viper.Reset()
	path := filepath.Join(t.TempDir(), "kgembed.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
model:
  embedding_dim: 4
  margin: 2.5
  seed: 7
training:
  epochs: 3
  batch_size: 1
corpus:
  backend: memory
  triplets:
    - "1,R,2"
checkpoint:
  backend: badger
`), 0644))
	viper.SetConfigFile(path)
	require.NoError(t, viper.ReadInConfig())

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Model.EmbeddingDim)
	assert.Equal(t, 2.5, cfg.Model.Margin)
	assert.Equal(t, 0.01, cfg.Model.LearningRate)
	assert.Equal(t, uint64(7), cfg.Model.Seed)
	assert.Equal(t, 3, cfg.Training.Epochs)
	assert.Equal(t, []string{"1,R,2"}, cfg.Corpus.Triplets)
	assert.Equal(t, "badger", cfg.Checkpoint.Backend)
}

func TestOverrideWithEnv(t *testing.T) {
	viper.Reset()
	t.Setenv("NEO4J_URI", "bolt://graph:7687")
	t.Setenv("NEO4J_PASSWORD", "secret")
	t.Setenv("KGEMBED_SEED", "123")
	t.Setenv("POSTGRES_DSN", "postgres://localhost/kg")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "bolt://graph:7687", cfg.Database.URI)
	assert.Equal(t, "secret", cfg.Database.Password)
	assert.Equal(t, uint64(123), cfg.Model.Seed)
	assert.Equal(t, "postgres://localhost/kg", cfg.Postgres.DSN)
}

func TestValidate(t *testing.T) {
	viper.Reset()
	cfg, err := Load()
	require.NoError(t, err)

	bad := *cfg
	bad.Model.EmbeddingDim = 0
	assert.Error(t, bad.Validate())

	bad = *cfg
	bad.Corpus.Backend = "mongo"
	assert.Error(t, bad.Validate())

	bad = *cfg
	bad.Checkpoint.Backend = "s3"
	assert.Error(t, bad.Validate())

	bad = *cfg
	bad.Training.BatchSize = 0
	assert.Error(t, bad.Validate())
}

func TestTelemetryDSNFallback(t *testing.T) {
	viper.Reset()
	t.Setenv("POSTGRES_DSN", "postgres://localhost/kg")
	t.Setenv("KGEMBED_TELEMETRY_TABLE", "epochs")
	t.Setenv("KGEMBED_TELEMETRY_DSN", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.Telemetry.SQLDriver)
	assert.Equal(t, "postgres://localhost/kg", cfg.Telemetry.SQLDSN)

	viper.Reset()
	viper.Set("telemetry.sql_driver", "mysql")
	cfg, err = Load()
	assert.Error(t, err, "mysql metrics need their own dsn")
	assert.Nil(t, cfg)
}

func TestValidateAlert(t *testing.T) {
	viper.Reset()
	cfg, err := Load()
	require.NoError(t, err)

	bad := *cfg
	bad.Alert.Enabled = true
	assert.Error(t, bad.Validate())

	ok := *cfg
	ok.Alert = AlertConfig{Enabled: true, SMTPHost: "smtp.example.com", SMTPPort: 587, To: []string{"ops@example.com"}}
	assert.NoError(t, ok.Validate())
}
