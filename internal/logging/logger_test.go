// internal/logging/logger_test.go
package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	t.Run("production", func(t *testing.T) {
		l, err := New("warn", false)
		require.NoError(t, err)
		assert.True(t, l.Core().Enabled(zapcore.WarnLevel))
		assert.False(t, l.Core().Enabled(zapcore.InfoLevel))
	})

	t.Run("development", func(t *testing.T) {
		l, err := New("debug", true)
		require.NoError(t, err)
		assert.True(t, l.Core().Enabled(zapcore.DebugLevel))
	})

	t.Run("invalid level", func(t *testing.T) {
		l, err := New("loud", false)
		assert.Error(t, err)
		assert.Nil(t, l)
	})
}
