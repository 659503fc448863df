package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, slog.LevelInfo, true)
	logger.Debug("hidden")
	logger.Info("tiling complete", slog.Int("fields", 16))

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "tiling complete", record["msg"])
	assert.Equal(t, float64(16), record["fields"])
}

func TestNewText(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, slog.LevelDebug, false)
	logger.Debug("field accepted", slog.Int("field", 3))
	assert.Contains(t, buf.String(), "field=3")
	assert.Contains(t, buf.String(), "level=DEBUG")
}
