package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/document-extractor/internal/common"
)

func TestHandlerFormat(t *testing.T) {
	var buf bytes.Buffer
	h := newHandler(&buf, common.LogConfig{Level: "debug", Format: "json"})
	require.True(t, h.Enabled(context.Background(), slog.LevelDebug))

	logger := slog.New(h)
	logger.Info("pipeline.process.ok", "document_id", "abc")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "pipeline.process.ok", rec["msg"])
	assert.Equal(t, "abc", rec["document_id"])
}

func TestNew_WritesRotatingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	logger, closer := New(common.LogConfig{Level: "warn", File: path})

	logger.Info("dropped")
	logger.Warn("kept", "k", "v")
	require.NoError(t, closer.Close())

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(b), "dropped")
	assert.Contains(t, string(b), "kept")
}

func TestNewWriter_Console(t *testing.T) {
	var buf bytes.Buffer
	logger, closer := NewWriter(&buf, common.LogConfig{Level: "info"})
	logger.Debug("hidden")
	logger.Info("shown")
	require.NoError(t, closer.Close())
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}
