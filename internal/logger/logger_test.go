package logger

import (
	"lighter-grid-bot-go/internal/models"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestFileOutputHasNoColourCodes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bot.log")
	InitLogger(models.LogConfig{Level: "debug", Output: "file", File: path, MaxSize: 1})
	t.Cleanup(func() { baseLogger = nil })

	L().Info("补单成功", zap.String("outcome", "REPLACED"))
	L().Debug("当前价格", zap.Float64("mid", 91000))
	require.NoError(t, L().Sync())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(raw)
	assert.Contains(t, out, "INFO")
	assert.Contains(t, out, "outcome")
	assert.Contains(t, out, "当前价格")
	assert.NotContains(t, out, "\x1b[")
}

func TestLevelFiltering(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bot.log")
	InitLogger(models.LogConfig{Level: "warn", Output: "file", File: path})
	t.Cleanup(func() { baseLogger = nil })

	S().Info("hidden")
	S().Warn("shown")
	require.NoError(t, L().Sync())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "hidden")
	assert.Contains(t, string(raw), "shown")
}

func TestDevelopmentDPanicPanics(t *testing.T) {
	InitLogger(models.LogConfig{Level: "info", Output: "file", File: filepath.Join(t.TempDir(), "bot.log"), Development: true})
	t.Cleanup(func() { baseLogger = nil })

	assert.Panics(t, func() { L().DPanic("invariant violated") })
}

func TestUninitialisedLoggerFallsBack(t *testing.T) {
	baseLogger = nil
	assert.NotNil(t, L())
	assert.NotNil(t, S())
}
