package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestIDContext(t *testing.T) {
	t.Run("stores and retrieves request ID", func(t *testing.T) {
		ctx := WithRequestID(context.Background(), "req-123")
		assert.Equal(t, "req-123", RequestIDFromContext(ctx))
	})

	t.Run("returns empty string when not set", func(t *testing.T) {
		assert.Equal(t, "", RequestIDFromContext(context.Background()))
	})
}

func TestRunIDContext(t *testing.T) {
	t.Run("stores and retrieves run ID", func(t *testing.T) {
		ctx := WithRunID(context.Background(), "run-1")
		assert.Equal(t, "run-1", RunIDFromContext(ctx))
	})

	t.Run("returns empty string when not set", func(t *testing.T) {
		assert.Equal(t, "", RunIDFromContext(context.Background()))
	})

	t.Run("wrong value type is ignored", func(t *testing.T) {
		ctx := context.WithValue(context.Background(), runIDKey, 42)
		assert.Equal(t, "", RunIDFromContext(ctx))
	})
}

func TestLoggerFromContext(t *testing.T) {
	t.Run("adds present IDs", func(t *testing.T) {
		var buf bytes.Buffer
		ctx := WithRunID(WithRequestID(context.Background(), "req-9"), "run-9")

		logger := LoggerFromContext(ctx, zerolog.New(&buf))
		logger.Info().Msg("hello")

		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, "req-9", entry["request_id"])
		assert.Equal(t, "run-9", entry["run_id"])
	})

	t.Run("leaves logger alone without IDs", func(t *testing.T) {
		var buf bytes.Buffer
		logger := LoggerFromContext(context.Background(), zerolog.New(&buf))
		logger.Info().Msg("hello")

		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.NotContains(t, entry, "request_id")
		assert.NotContains(t, entry, "run_id")
	})
}
