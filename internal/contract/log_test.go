package contract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestInitLogger(t *testing.T) {
	prev := zap.L()
	t.Cleanup(func() { zap.ReplaceGlobals(prev) })

	require.NoError(t, InitLogger(zapcore.ErrorLevel))
	assert.False(t, zap.L().Core().Enabled(zapcore.WarnLevel))
	assert.True(t, zap.L().Core().Enabled(zapcore.ErrorLevel))

	require.NoError(t, InitLogger(zapcore.DebugLevel))
	assert.True(t, zap.L().Core().Enabled(zapcore.DebugLevel))
}

func TestProcessProfilingConfig(t *testing.T) {
	p := &ProfileConfig{}
	require.NoError(t, ProcessProfilingConfig(p, ""))
	assert.False(t, p.Enabled)

	require.NoError(t, ProcessProfilingConfig(p, "strata"))
	assert.True(t, p.Enabled)
	assert.Equal(t, "strata", p.Prefix)
}
