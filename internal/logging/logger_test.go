package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNew_Levels(t *testing.T) {
	cases := []struct {
		env   string
		debug bool
		want  zapcore.Level
	}{
		{"production", false, zapcore.InfoLevel},
		{"development", false, zapcore.InfoLevel},
		{"development", true, zapcore.DebugLevel},
		{"production", true, zapcore.DebugLevel},
	}
	for _, c := range cases {
		l, err := New(c.env, c.debug)
		require.NoError(t, err)
		assert.True(t, l.Core().Enabled(c.want), "%s/%v", c.env, c.debug)
		if c.want == zapcore.InfoLevel {
			assert.False(t, l.Core().Enabled(zapcore.DebugLevel), "%s/%v", c.env, c.debug)
		}
	}
}

func TestOrNop(t *testing.T) {
	assert.NotNil(t, OrNop(nil))
}
