package dlogger

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNew_Levels(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(&buf, "warn")
	require.NoError(t, err)
	l.Info("hidden")
	l.Warn("Cleaning working copy", zap.String("path", "/tmp/work"))
	require.NoError(t, l.Sync())

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "WARN")
	assert.Contains(t, out, "Cleaning working copy")
	assert.Contains(t, out, `"path": "/tmp/work"`)
}

func TestNew_None(t *testing.T) {
	l, err := New(nil, LogLevelNone)
	require.NoError(t, err)
	l.Error("dropped")
}

func TestNew_BadLevel(t *testing.T) {
	_, err := New(&bytes.Buffer{}, "loud")
	assert.Error(t, err)
}
