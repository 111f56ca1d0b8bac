package observability

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/san-kum/e3deploy/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestInitializeJSON(t *testing.T) {
	ResetForTest()
	defer ResetForTest()

	var buf bytes.Buffer
	Initialize(config.LogConfig{Level: "info", Format: "json"}, zapcore.AddSync(&buf))

	GetLogger().Info("hello", zap.String("component", "test"))
	GetLogger().Debug("hidden")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "hello", entry["msg"])
	assert.Equal(t, "e3deploy", entry["logger"])
	assert.Equal(t, "test", entry["component"])
}

func TestInitializeConsoleColors(t *testing.T) {
	ResetForTest()
	defer ResetForTest()

	var buf bytes.Buffer
	Initialize(config.LogConfig{Level: "debug", Format: "console"}, zapcore.AddSync(&buf))
	GetLogger().Warn("careful")

	out := buf.String()
	assert.Contains(t, out, colorYellow+"WARN"+colorReset)
	assert.Contains(t, out, "e3deploy.")
	assert.Contains(t, out, "careful")
}

func TestInitializeOnce(t *testing.T) {
	ResetForTest()
	defer ResetForTest()

	var first, second bytes.Buffer
	Initialize(config.LogConfig{Level: "info", Format: "json"}, zapcore.AddSync(&first))
	Initialize(config.LogConfig{Level: "info", Format: "json"}, zapcore.AddSync(&second))
	GetLogger().Info("once")

	assert.NotEmpty(t, first.String())
	assert.Empty(t, second.String())
}

func TestFileOutput(t *testing.T) {
	ResetForTest()
	defer ResetForTest()

	path := filepath.Join(t.TempDir(), "run.log")
	var console bytes.Buffer
	Initialize(config.LogConfig{Level: "info", Format: "console", File: path, MaxSize: 1}, zapcore.AddSync(&console))
	GetLogger().Info("to file")
	Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"to file"`)
}

func TestFallbackLogger(t *testing.T) {
	ResetForTest()
	assert.NotNil(t, GetLogger())
}
