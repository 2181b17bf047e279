package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNewWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cropadvisor.log")

	l, err := New(Options{Level: "info", File: path, MaxSizeMB: 1})
	require.NoError(t, err)

	l.Debug("hidden")
	l.Info("model trained", zap.Int("nodes", 41))
	require.NoError(t, l.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"model trained"`)
	assert.Contains(t, string(data), `"nodes":41`)
	assert.NotContains(t, string(data), "hidden")
}

func TestSetLevel(t *testing.T) {
	l, err := New(Options{Level: "warn", Development: true})
	require.NoError(t, err)
	assert.Equal(t, zapcore.WarnLevel, l.Level())

	require.NoError(t, l.SetLevel("DEBUG"))
	assert.Equal(t, zapcore.DebugLevel, l.Level())
	assert.True(t, l.Core().Enabled(zapcore.DebugLevel))

	assert.Error(t, l.SetLevel("loud"))
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New(Options{Level: "chatty"})
	assert.Error(t, err)
}
