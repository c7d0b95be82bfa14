package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zapcore.Level{
		"":        zapcore.InfoLevel,
		"INFO":    zapcore.InfoLevel,
		"info":    zapcore.InfoLevel,
		"debug":   zapcore.DebugLevel,
		"FINEST":  zapcore.DebugLevel,
		"CONFIG":  zapcore.DebugLevel,
		"WARNING": zapcore.WarnLevel,
		"warn":    zapcore.WarnLevel,
		"SEVERE":  zapcore.ErrorLevel,
		"error":   zapcore.ErrorLevel,
		"OFF":     zapcore.FatalLevel,
		"bogus":   zapcore.InfoLevel,
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseLevel(in), "level %q", in)
	}
}

func TestNewLogger_RespectsLevel(t *testing.T) {
	log, err := NewLogger("WARNING", "json", "pulse-monitor")
	require.NoError(t, err)
	defer log.Sync()

	assert.False(t, log.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, log.Core().Enabled(zapcore.WarnLevel))
}

func TestNewLogger_Console(t *testing.T) {
	log, err := NewLogger("debug", "console", "")
	require.NoError(t, err)
	assert.True(t, log.Core().Enabled(zapcore.DebugLevel))
}
