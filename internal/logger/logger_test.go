package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithRequestID(t *testing.T) {
	var buf bytes.Buffer
	InitializeWithWriter(&buf, "debug", "json")
	t.Cleanup(func() { Initialize("info", "text") })

	ctx := WithRequestID(context.Background(), "01HZX")
	InfoContext(ctx, "handled", "route", "/auth/login")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "01HZX", line["request_id"])
	assert.Equal(t, "/auth/login", line["route"])
}

func TestFromContext_FallsBackToDefault(t *testing.T) {
	assert.Equal(t, Get(), FromContext(context.Background()))
}

func TestParseLevel(t *testing.T) {
	var buf bytes.Buffer
	InitializeWithWriter(&buf, "warn", "text")
	t.Cleanup(func() { Initialize("info", "text") })

	Info("dropped")
	assert.Empty(t, buf.String())
	Warn("kept")
	assert.Contains(t, buf.String(), "kept")
}
