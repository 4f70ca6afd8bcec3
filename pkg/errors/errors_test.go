package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"go.uber.org/zap/zapcore"
)

func TestError(t *testing.T) {
	e1 := New("cause1")
	e2 := New("cause2").Wrap(e1)
	e := New("dummy").Wrap(e2)
	e3 := e.Unwrap()
	assert.True(t, Is(e, e1))
	assert.True(t, Is(e, e2))
	assert.True(t, e3 == e2)
}

func TestWrapKeepsSentinel(t *testing.T) {
	sentinel := New("sentinel")
	cause := fmt.Errorf("io failure")

	wrapped := sentinel.Wrap(cause)
	require.True(t, Is(wrapped, sentinel))
	require.True(t, Is(wrapped, cause))
	require.Nil(t, sentinel.Unwrap(), "wrapping must not alter the sentinel")
	assert.Equal(t, "sentinel: io failure", wrapped.Error())

	other := New("sentinel")
	assert.False(t, Is(wrapped, other))
}

func TestWrapMessage(t *testing.T) {
	sentinel := New("not found")
	err := sentinel.WrapMessage("node %s in dag %d", "abc", 3)
	require.True(t, Is(err, sentinel))
	assert.Equal(t, "not found: node abc in dag 3", err.Error())
}

func TestWrapWithLog(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	l := zap.New(core)

	sentinel := New("storage failed")
	err := sentinel.WrapWithLog(l, fmt.Errorf("disk full"), zap.String("key", "k"))
	require.True(t, Is(err, sentinel))
	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "storage failed", entry.Message)
	assert.Equal(t, "k", entry.ContextMap()["key"])

	var target *Error
	require.True(t, As(err, &target))
}
