package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_WritesCombinedAndErrorLogs(t *testing.T) {
	dir := t.TempDir()

	logger, err := New("info", dir, true)
	require.NoError(t, err)

	logger.Info("dashboard started")
	logger.Debug("not written")
	logger.Error("upstream failed")
	_ = logger.Sync()

	combined, err := os.ReadFile(filepath.Join(dir, "combined.log"))
	require.NoError(t, err)
	assert.Contains(t, string(combined), "dashboard started")
	assert.Contains(t, string(combined), "upstream failed")
	assert.NotContains(t, string(combined), "not written")
	assert.Contains(t, string(combined), `"service":"hids-dashboard"`)

	errorsOnly, err := os.ReadFile(filepath.Join(dir, "error.log"))
	require.NoError(t, err)
	assert.Contains(t, string(errorsOnly), "upstream failed")
	assert.NotContains(t, string(errorsOnly), "dashboard started")
}

func TestNew_InvalidLevel(t *testing.T) {
	_, err := New("loud", "", false)
	assert.Error(t, err)
}
