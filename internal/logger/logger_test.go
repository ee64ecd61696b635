package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNewLogger_ReturnsUsableSugaredLogger(t *testing.T) {
	log := NewLogger()
	require.NotNil(t, log)
	require.NotNil(t, log.SugaredLogger)

	assert.NotPanics(t, func() {
		log.Infow("test message", "key", "value")
	})
}

func TestNewLogger_HonorsLogLevelEnvVar(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	log := NewLogger()
	assert.True(t, log.Desugar().Core().Enabled(zapcore.DebugLevel))
}
