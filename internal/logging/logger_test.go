package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]LogLevel{
		"trace":   TRACE,
		"DEBUG":   DEBUG,
		" info ":  INFO,
		"warning": WARN,
		"Warn":    WARN,
		"error":   ERROR,
		"":        INFO,
		"loud":    INFO,
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseLevel(in), "уровень %q", in)
	}
}

func TestWriterLoggerFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriterLogger("layers", &buf, WARN)

	l.Debug("скрыто %d", 1)
	l.Info("тоже скрыто")
	l.Warn("слой %d занят", 3)
	l.Error("сбой")

	out := buf.String()
	assert.NotContains(t, out, "скрыто")
	assert.Contains(t, out, "[WARN] [layers] слой 3 занят")
	assert.Contains(t, out, "[ERROR] [layers] сбой")

	buf.Reset()
	l.SetLevels(TRACE, ERROR+1)
	l.Trace("видно")
	assert.Contains(t, buf.String(), "[TRACE] [layers] видно")
}

func TestNilLoggerIsSilent(t *testing.T) {
	var l *Logger
	assert.NotPanics(t, func() { l.Info("ничего") })
}

func TestDefaultLoggerSwap(t *testing.T) {
	var buf bytes.Buffer
	prev := current()
	SetDefaultLogger(NewWriterLogger("", &buf, INFO))
	defer SetDefaultLogger(prev)

	Info("мир %s загружен", "farm")
	LogPlacement(1, "fence", 2, 3, "Wall")

	assert.Equal(t, "[INFO] мир farm загружен\n", buf.String())
}

func TestLoggerManagerCreatesFileLoggers(t *testing.T) {
	prevDir := LogDir
	LogDir = t.TempDir()
	defer func() { LogDir = prevDir }()

	lm := &LoggerManager{loggers: make(map[string]*Logger)}

	a, err := lm.GetLogger("storage")
	require.NoError(t, err)
	b, err := lm.GetLogger("storage")
	require.NoError(t, err)
	assert.Same(t, a, b)
	assert.Equal(t, []string{"storage"}, lm.ListComponents())

	a.Error("сохранение не удалось")
	require.NoError(t, lm.SetLogLevel("storage", ERROR, ERROR))
	assert.Error(t, lm.SetLogLevel("missing", INFO, INFO))
	require.NoError(t, lm.CloseAll())
	assert.Empty(t, lm.ListComponents())

	files, err := filepath.Glob(filepath.Join(LogDir, "storage_*.log"))
	require.NoError(t, err)
	require.Len(t, files, 1)

	data, err := os.ReadFile(files[0])
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "[ERROR] [storage] сохранение не удалось"))
}
