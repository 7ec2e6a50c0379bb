package logging

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	for name, want := range map[string]Level{
		"debug": DebugLevel,
		"INFO":  InfoLevel,
		"":      InfoLevel,
		"warn":  WarnLevel,
		"error": ErrorLevel,
		"fatal": FatalLevel,
	} {
		got, err := ParseLevel(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got)
	}

	_, err := ParseLevel("verbose")
	assert.Error(t, err)
}

func TestDefaultLoggerRoutesByLevel(t *testing.T) {
	var stdout, stderr bytes.Buffer
	logger := NewDefaultLoggerWithWriters(&stdout, &stderr)

	logger.Debug("hidden")
	logger.Info("analysis started", Fields{"file": "a.wav"})
	logger.Warn("resolution degraded")
	logger.Error(errors.New("boom"), "decode failed")

	assert.NotContains(t, stdout.String(), "hidden")
	assert.Contains(t, stdout.String(), "[INFO] analysis started map[file:a.wav]")
	assert.Contains(t, stderr.String(), "[WARN] resolution degraded")
	assert.Contains(t, stderr.String(), "[ERROR] decode failed: boom")
}

func TestDefaultLoggerDerivedSharesLevel(t *testing.T) {
	var stdout bytes.Buffer
	logger := NewDefaultLoggerWithWriters(&stdout, &stdout)
	child := logger.WithFields(Fields{"component": "detector"})

	logger.SetLevel(DebugLevel)
	child.Debug("candidates", Fields{"count": 3})

	assert.Contains(t, stdout.String(), "[DEBUG] candidates map[component:detector count:3]")
}

func TestDefaultLoggerFatalExits(t *testing.T) {
	var stderr bytes.Buffer
	logger := NewDefaultLoggerWithWriters(&stderr, &stderr)

	code := -1
	logger.exit = func(c int) { code = c }
	logger.Fatal(errors.New("bad config"), "cannot start")

	assert.Equal(t, 1, code)
	assert.Contains(t, stderr.String(), "[FATAL] cannot start: bad config")
}

func TestContextFields(t *testing.T) {
	ctx := ContextWithFields(context.Background(), Fields{"file": "a.wav"})
	ctx = ContextWithFields(ctx, Fields{"worker": 2})

	assert.Equal(t, Fields{"file": "a.wav", "worker": 2}, FieldsFromContext(ctx))
	assert.Nil(t, FieldsFromContext(context.Background()))

	var stdout bytes.Buffer
	NewDefaultLoggerWithWriters(&stdout, &stdout).WithContext(ctx).Info("done")
	assert.Contains(t, stdout.String(), "map[file:a.wav worker:2]")
}

func TestGlobalLogger(t *testing.T) {
	previous := GetGlobalLogger()
	defer SetGlobalLogger(previous)

	var stdout bytes.Buffer
	SetGlobalLogger(NewDefaultLoggerWithWriters(&stdout, &stdout))
	WithFields(Fields{"component": "batch"}).Info("queued")
	assert.Contains(t, stdout.String(), "queued map[component:batch]")

	SetGlobalLogger(nil)
	assert.IsType(t, &NoOpLogger{}, GetGlobalLogger())
}

func TestZapLogger(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := NewZapLoggerFromCore(core, InfoLevel)

	child := logger.WithFields(Fields{"component": "estimator"})
	child.Debug("dropped")
	child.Info("spectrum estimated", Fields{"bins": 44101})
	child.Error(errors.New("nan"), "rejected")

	entries := logs.AllUntimed()
	require.Len(t, entries, 2)

	assert.Equal(t, "spectrum estimated", entries[0].Message)
	assert.Equal(t, "estimator", entries[0].ContextMap()["component"])
	assert.EqualValues(t, 44101, entries[0].ContextMap()["bins"])

	assert.Equal(t, zapcore.ErrorLevel, entries[1].Level)
	assert.Equal(t, "nan", entries[1].ContextMap()["error"])

	logger.SetLevel(DebugLevel)
	child.Debug("visible")
	assert.Equal(t, 1, logs.FilterMessage("visible").Len())
}

func TestNewZapLogger(t *testing.T) {
	logger, err := NewZapLogger(WarnLevel, false)
	require.NoError(t, err)
	assert.Implements(t, (*Logger)(nil), logger)
	assert.False(t, logger.level.Enabled(zapcore.InfoLevel))
	assert.True(t, logger.level.Enabled(zapcore.WarnLevel))
}
