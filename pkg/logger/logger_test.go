package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewLogger(t *testing.T) {
	t.Run("Successfully create log directory", func(t *testing.T) {
		tempDir := filepath.Join(t.TempDir(), "logs")
		l, err := NewLogger(tempDir, "debug", "test-app")
		require.NoError(t, err)
		assert.NotNil(t, l)
		_, err = os.Stat(tempDir)
		assert.NoError(t, err)
	})

	t.Run("Failed to create log directory returns error", func(t *testing.T) {
		rootDir := t.TempDir()
		fileAsDir := filepath.Join(rootDir, "thisIsAFileNotADirectory")
		require.NoError(t, os.WriteFile(fileAsDir, []byte("I am a file"), 0644))

		_, err := NewLogger(filepath.Join(fileAsDir, "logs"), "debug", "test-app")
		assert.Error(t, err)
	})

	t.Run("Invalid log directory returns error", func(t *testing.T) {
		_, err := NewLogger("", "warn", "test-app")
		assert.Error(t, err)
	})
}

func TestNewWithCore_RespectsLevel(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	l := NewWithCore(core)

	l.Debug("debug %d", 1)
	l.Info("info %d", 2)
	l.Warn("warn %s", "x")

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "info 2", entries[0].Message)
	assert.Equal(t, "warn x", entries[1].Message)
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"WARN", zapcore.WarnLevel},
		{" error ", zapcore.ErrorLevel},
		{"verbose", zapcore.InfoLevel},
		{"", zapcore.InfoLevel},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseLevel(tt.in), tt.in)
	}
}
