package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestNew(t *testing.T) {
	t.Run("invalid level", func(t *testing.T) {
		log, err := New("verbose", "dev")

		assert.Error(t, err)
		assert.Nil(t, log)
	})

	t.Run("dev", func(t *testing.T) {
		log, err := New("debug", "dev")

		assert.NoError(t, err)
		assert.True(t, log.Core().Enabled(zap.DebugLevel))
	})

	t.Run("prod", func(t *testing.T) {
		log, err := New("warn", "prod")

		assert.NoError(t, err)
		assert.False(t, log.Core().Enabled(zap.InfoLevel))
		assert.True(t, log.Core().Enabled(zap.WarnLevel))
	})
}
