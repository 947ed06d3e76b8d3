package logging

import (
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNew_LevelsAndFormats(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error"} {
		for _, format := range []string{"console", "json"} {
			logger, err := New(level, format)
			require.NoError(t, err, "level=%s format=%s", level, format)
			require.NotNil(t, logger)
		}
	}
}

func TestNew_LevelIsApplied(t *testing.T) {
	logger, err := New("warn", "json")
	require.NoError(t, err)

	assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, logger.Core().Enabled(zapcore.WarnLevel))
}

func TestNew_InvalidLevel(t *testing.T) {
	_, err := New("verbose", "console")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log level")
}

func TestNew_InvalidFormat(t *testing.T) {
	_, err := New("info", "xml")
	require.Error(t, err)
}

func TestSync_IgnoresTerminalErrors(t *testing.T) {
	assert.True(t, isTerminalSyncError(syscall.EINVAL))
	assert.True(t, isTerminalSyncError(syscall.ENOTTY))
	assert.False(t, isTerminalSyncError(syscall.EACCES))

	logger, err := New("info", "console")
	require.NoError(t, err)
	assert.NoError(t, Sync(logger))
}

func TestSync_NilSafeUsage(t *testing.T) {
	logger, err := New("debug", "json")
	require.NoError(t, err)
	logger.Debug("probe")
	assert.NoError(t, Sync(logger))
}
