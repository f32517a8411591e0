package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func capture(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetWriter(&buf)
	t.Cleanup(func() {
		SetWriter(os.Stdout)
		SetLevel("INFO")
		_ = SetFormat("text")
	})
	return &buf
}

func TestLevelFiltering(t *testing.T) {
	buf := capture(t)
	SetLevel("WARN")

	Info("hidden %d", 1)
	Warn("shown %d", 2)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "[WARN] shown 2")
	assert.False(t, IsDebugEnabled())
}

func TestSetLevelIgnoresUnknown(t *testing.T) {
	buf := capture(t)
	SetLevel("DEBUG")
	SetLevel("chatty")

	Debug("still debug")
	assert.Contains(t, buf.String(), "[DEBUG] still debug")
}

func TestWithFieldsText(t *testing.T) {
	buf := capture(t)

	WithFields(Fields{"request_id": "abc", "status": 200}).Info("done")

	assert.Contains(t, buf.String(), "[INFO] done request_id=abc status=200")
}

func TestJSONFormat(t *testing.T) {
	buf := capture(t)
	require.NoError(t, SetFormat("json"))

	WithFields(Fields{"op": "get"}).Error("boom")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "boom", line["message"])
	assert.Equal(t, "get", line["op"])
	assert.Equal(t, "error", line["level"])
}

func TestSetFormatRejectsUnknown(t *testing.T) {
	assert.Error(t, SetFormat("xml"))
}

func TestSetOutputFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bridge.log")
	require.NoError(t, SetOutput(path))
	t.Cleanup(func() { _ = SetOutput("stdout") })

	Info("to file")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "to file")
}
