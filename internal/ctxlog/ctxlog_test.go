package ctxlog

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromContext_RoundTrip(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx := WithLogger(context.Background(), logger)
	assert.Same(t, logger, FromContext(ctx))
}

func TestFromContext_FallsBackToDefault(t *testing.T) {
	assert.Same(t, slog.Default(), FromContext(context.Background()))
}

func TestNew_Levels(t *testing.T) {
	var buf bytes.Buffer

	logger, err := New(&buf, false, FormatText)
	require.NoError(t, err)
	logger.Debug("hidden")
	logger.Info("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")

	buf.Reset()
	logger, err = New(&buf, true, FormatText)
	require.NoError(t, err)
	logger.Debug("now visible")
	assert.Contains(t, buf.String(), "level=DEBUG")
}

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(&buf, false, "JSON")
	require.NoError(t, err)

	ctx := With(WithLogger(context.Background(), logger), "run_id", "abc")
	FromContext(ctx).Warn("careful", "path", "/tmp/x")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "WARN", record["level"])
	assert.Equal(t, "careful", record["msg"])
	assert.Equal(t, "abc", record["run_id"])
	assert.Equal(t, "/tmp/x", record["path"])
}

func TestNew_InvalidFormat(t *testing.T) {
	_, err := New(&bytes.Buffer{}, false, "xml")
	assert.ErrorContains(t, err, "invalid log format")
}
