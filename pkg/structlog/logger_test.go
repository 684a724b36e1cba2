package structlog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var out []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		m := map[string]interface{}{}
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		out = append(out, m)
	}
	return out
}

func TestLogger_JSONFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger("trafficlens-test", LevelInfo, &buf)

	log.WithFields(Fields{"run_id": "r-1"}).Info("analysis complete", Fields{"addresses": 10})

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "analysis complete", lines[0]["message"])
	assert.Equal(t, "INFO", lines[0]["level"])
	assert.Equal(t, "trafficlens-test", lines[0]["service"])
	assert.Equal(t, "r-1", lines[0]["run_id"])
	assert.EqualValues(t, 10, lines[0]["addresses"])
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger("svc", LevelWarn, &buf)

	log.Debug("dropped", nil)
	log.Info("dropped", nil)
	log.Warn("kept", nil)
	assert.Len(t, decodeLines(t, &buf), 1)

	log.SetLevel(LevelDebug)
	assert.Equal(t, LevelDebug, log.GetLevel())
	log.Debug("now kept", nil)
	assert.Len(t, decodeLines(t, &buf), 2)
}

func TestLogger_ErrorField(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger("svc", LevelInfo, &buf)

	log.Error("scoring failed", Fields{"error": errors.New("boom")})

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "boom", lines[0]["error"])
	assert.Equal(t, "ERROR", lines[0]["level"])
}

func TestLogger_WithContextCorrelationID(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger("svc", LevelInfo, &buf)

	ctx, id := GetOrCreateCorrelationID(context.Background())
	require.NotEmpty(t, id)

	ctx2, id2 := GetOrCreateCorrelationID(ctx)
	assert.Equal(t, id, id2)
	assert.Equal(t, ctx, ctx2)

	log.WithContext(ctx).Info("hello", nil)
	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, id, lines[0]["correlation_id"])
}

func TestParseLevel(t *testing.T) {
	tests := map[string]Level{
		"debug":   LevelDebug,
		"INFO":    LevelInfo,
		"warning": LevelWarn,
		"error":   LevelError,
		"bogus":   LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestNop(t *testing.T) {
	log := Nop()
	log.Error("ignored", Fields{"k": "v"})
	assert.NoError(t, log.Sync())
}
