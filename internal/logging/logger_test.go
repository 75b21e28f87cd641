package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConsoleLogger_Levels(t *testing.T) {
	var buf bytes.Buffer
	l := NewConsoleLogger("detached", &buf, WARN)

	l.Info("не должно попасть")
	l.Warn("матрица %d", 7)

	out := buf.String()
	assert.NotContains(t, out, "не должно попасть")
	assert.Contains(t, out, "[WARN] [detached] матрица 7")
}

func TestNewLogger_WritesFile(t *testing.T) {
	old := LogDir
	LogDir = t.TempDir()
	defer func() { LogDir = old }()

	l, err := NewLogger("storage")
	require.NoError(t, err)
	l.SetLevels(ERROR, DEBUG)
	l.Debug("снимок %s", "abc")
	l.Trace("мимо")
	require.NoError(t, l.Close())

	files, err := filepath.Glob(filepath.Join(LogDir, "storage_*.log"))
	require.NoError(t, err)
	require.Len(t, files, 1)

	data, err := os.ReadFile(files[0])
	require.NoError(t, err)
	assert.Contains(t, string(data), "[DEBUG] [storage] снимок abc")
	assert.NotContains(t, string(data), "мимо")
}

func TestPackageFunctions_UseDefaultLogger(t *testing.T) {
	var buf bytes.Buffer
	prev := DefaultLogger()
	SetDefaultLogger(NewConsoleLogger("", &buf, DEBUG))
	defer SetDefaultLogger(prev)

	Debug("🧊 отладка")
	Trace("скрыто")

	assert.Contains(t, buf.String(), "[DEBUG] 🧊 отладка")
	assert.NotContains(t, buf.String(), "скрыто")
}

func TestParseLevel(t *testing.T) {
	lvl, err := ParseLevel("debug")
	require.NoError(t, err)
	assert.Equal(t, DEBUG, lvl)

	lvl, err = ParseLevel("")
	require.NoError(t, err)
	assert.Equal(t, INFO, lvl)

	_, err = ParseLevel("verbose")
	assert.Error(t, err)
}

func TestHexDump(t *testing.T) {
	assert.Equal(t, "No data", HexDump(nil))
	assert.Contains(t, HexDump([]byte{0xde, 0xad}), "de ad")
}

func TestManager_ConsoleComponentsByDefault(t *testing.T) {
	lm := newLoggerManager()

	l := lm.Get("api")
	assert.Nil(t, l.file, "без FileOutput файл не создаётся")
	assert.Same(t, l, lm.Get("api"))
	assert.Equal(t, INFO, l.minConsoleLevel)

	lm.Get("storage")
	assert.Equal(t, []string{"api", "storage"}, lm.Components())

	require.NoError(t, lm.CloseAll())
	assert.Empty(t, lm.Components())
}

func TestManager_ConfigureOverrides(t *testing.T) {
	lm := newLoggerManager()
	api := lm.Get("api")

	lm.Configure(Settings{Console: WARN, File: ERROR, Overrides: map[string]LogLevel{"storage": TRACE}})
	assert.Equal(t, WARN, api.minConsoleLevel, "уровень меняется у существующего логгера")
	assert.Equal(t, ERROR, api.minFileLevel)
	assert.Equal(t, TRACE, lm.Get("storage").minConsoleLevel)
}

func TestManager_FileOutput(t *testing.T) {
	dir := t.TempDir()
	prev := LogDir
	LogDir = dir
	defer func() { LogDir = prev }()

	lm := newLoggerManager()
	lm.Configure(Settings{FileOutput: true, Console: ERROR, File: DEBUG})
	l := lm.Get("storage")
	require.NotNil(t, l.file)
	l.Debug("💾 снимок")
	require.NoError(t, lm.CloseAll())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	data, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	require.NoError(t, err)
	assert.Contains(t, string(data), "[DEBUG] [storage] 💾 снимок")
}
