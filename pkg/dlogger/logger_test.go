package dlogger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestGetLogger(t *testing.T) {
	for _, level := range []string{LogLevelInfo, LogLevelDebug, LogLevelWarn} {
		l, err := GetLogger(level)
		require.NoError(t, err)
		require.NotNil(t, l)
	}

	l, err := GetLogger(LogLevelNone)
	require.NoError(t, err)
	assert.False(t, l.Core().Enabled(zapcore.ErrorLevel))

	_, err = GetLogger("chatty")
	require.Error(t, err)

	require.Panics(t, func() { _ = MustGetLogger("chatty") })
}

func TestOrNop(t *testing.T) {
	require.NotNil(t, OrNop(nil))
	l := MustGetLogger(LogLevelInfo)
	require.Equal(t, l, OrNop(l))
}
