package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoggerText(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(&buf, slog.LevelInfo, FormatText)

	log.Debug("hidden")
	log.Info("Saved checkpoint", "name", "epoch_1")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `msg="Saved checkpoint"`)
	assert.Contains(t, out, "name=epoch_1")
	// A bytes.Buffer is never a terminal.
	assert.NotContains(t, out, "\x1b[")
}

func TestNewLoggerJSON(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(&buf, slog.LevelDebug, FormatJSON)
	log.Info("Epoch complete", "epoch", 2)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "Epoch complete", rec["msg"])
	assert.EqualValues(t, 2, rec["epoch"])
}

func TestColorHandlerColours(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewColorHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}, true))

	log.Debug("plain debug")
	log.Info("Saved checkpoint")
	log.Warn("careful")
	log.Error("broken")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	assert.NotContains(t, lines[0], "\x1b[")
	assert.Contains(t, lines[1], "\x1b[32m")
	assert.Contains(t, lines[2], "\x1b[33m")
	assert.Contains(t, lines[3], "\x1b[31m")
}

func TestColorHandlerWithAttrsAndGroup(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewColorHandler(&buf, nil, false)).
		With("run_id", "abc").
		WithGroup("batch")

	log.Info("Batch done", "loss", 0.5)

	out := buf.String()
	assert.Contains(t, out, "run_id=abc")
	assert.Contains(t, out, "batch.loss=0.5")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("WARN"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("nonsense"))
}
