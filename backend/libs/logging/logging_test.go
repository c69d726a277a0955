package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestEncodingSelection(t *testing.T) {
	assert.Equal(t, "json", encoding(""))
	assert.Equal(t, "json", encoding("console"))
	assert.Equal(t, "logfmt", encoding(" LOGFMT "))
}

func TestNewLoggerWithLevels(t *testing.T) {
	logger, err := NewLoggerWith("debug", "logfmt")
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))

	logger, err = NewLoggerWith("not-a-level", "")
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zapcore.DebugLevel))
	assert.True(t, logger.Core().Enabled(zapcore.InfoLevel))
}
