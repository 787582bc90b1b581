package logger

import (
	"bytes"
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
		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		out = append(out, entry)
	}
	return out
}

func TestLogger_FieldsAndCaller(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: "debug", Format: "json", Output: &buf})

	l.Info("order placed", map[string]interface{}{"order_id": 7})

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "info", entries[0]["level"])
	assert.Equal(t, "order placed", entries[0]["message"])
	assert.EqualValues(t, 7, entries[0]["order_id"])
	assert.Contains(t, entries[0]["caller"], "logger_test.go")
}

func TestLogger_ErrorIncludesCause(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: "info", Format: "json", Output: &buf})

	l.Error("insert failed", errors.New("constraint"), nil)

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "constraint", entries[0]["error"])
}

func TestLogger_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: "warn", Format: "json", Output: &buf})

	l.Debug("hidden")
	l.Info("hidden")
	l.Warn("shown")

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "shown", entries[0]["message"])
}

func TestLogger_WithContext(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: "info", Format: "json", Output: &buf}).
		WithContext(map[string]interface{}{"request_id": "abc"})

	l.Info("handled")

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "abc", entries[0]["request_id"])
}

func TestInitialize_ReplacesGlobal(t *testing.T) {
	var buf bytes.Buffer
	Initialize(Config{Level: "info", Format: "json", Output: &buf})
	t.Cleanup(func() { Initialize(Config{Level: "error", Format: "json"}) })

	Info("global", map[string]interface{}{"k": "v"})

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "v", entries[0]["k"])
	assert.Contains(t, entries[0]["caller"], "logger_test.go")
}
