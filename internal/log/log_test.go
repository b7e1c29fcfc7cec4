package log

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lastLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.NotEmpty(t, lines)
	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[len(lines)-1]), &m))
	return m
}

func TestJSONOutputCarriesFields(t *testing.T) {
	var buf bytes.Buffer
	Init(Options{Level: "debug", Format: "json", Writer: &buf})

	Warn("feed skipped", errors.New("boom"), "id", "feed-1", "status", 503)

	m := lastLine(t, &buf)
	assert.Equal(t, "warn", m["level"])
	assert.Equal(t, "feed skipped", m["message"])
	assert.Equal(t, "boom", m["error"])
	assert.Equal(t, "feed-1", m["id"])
	assert.EqualValues(t, 503, m["status"])
	assert.Contains(t, m, "time")
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	Init(Options{Level: "warn", Format: "json", Writer: &buf})

	Debug("hidden")
	Info("hidden too")
	assert.Empty(t, buf.String())

	Error("shown", errors.New("bad"))
	assert.Contains(t, buf.String(), "shown")

	buf.Reset()
	SetLevel(LevelDebug)
	Debug("now visible")
	assert.Contains(t, buf.String(), "now visible")
}

func TestOddAndNonStringKeysAreDropped(t *testing.T) {
	var buf bytes.Buffer
	Init(Options{Format: "json", Writer: &buf})

	Info("msg", 42, "x", "ok", true, "dangling")

	m := lastLine(t, &buf)
	assert.Equal(t, true, m["ok"])
	assert.NotContains(t, m, "dangling")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel(" DEBUG "))
	assert.Equal(t, LevelWarn, ParseLevel("warning"))
	assert.Equal(t, LevelError, ParseLevel("error"))
	assert.Equal(t, LevelInfo, ParseLevel("nonsense"))
}
