package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/hids?sslmode=disable")

	cfg, _, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Env)
	assert.Equal(t, 3000, cfg.Port)
	assert.True(t, cfg.Auth.Enabled)
	assert.Equal(t, "https://localhost:55000", cfg.Wazuh.BaseURL())
	assert.Equal(t, "https://localhost:9200", cfg.OpenSearch.BaseURL())
	assert.Equal(t, "admin", cfg.OpenSearch.User)
	assert.Equal(t, "wazuh-alerts-*", cfg.OpenSearch.Index)
	assert.Equal(t, 30*time.Second, cfg.Wazuh.TimeoutDuration())
	assert.Equal(t, "http://127.0.0.1:5000", cfg.Keystroke.URL)
	assert.Equal(t, time.Minute, cfg.KeystrokeTimeout())
	zone, err := cfg.KeystrokeZone()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, zone)
	assert.False(t, cfg.IsProduction())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/hids?sslmode=disable")
	t.Setenv("ENV", "production")
	t.Setenv("PORT", "8080")
	t.Setenv("AUTH_ENABLED", "false")
	t.Setenv("WAZUH_HOST", "manager.internal")
	t.Setenv("WAZUH_PROTOCOL", "http")
	t.Setenv("OPENSEARCH_PORT", "9201")
	t.Setenv("OPENSEARCH_INDEX", "custom-*")
	t.Setenv("KEYSTROKE_API_URL", "http://ml:5000")
	t.Setenv("KEYSTROKE_TIMEOUT", "1500")
	t.Setenv("KEYSTROKE_TIMEZONE", "Asia/Kuala_Lumpur")

	cfg, _, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, 8080, cfg.Port)
	assert.False(t, cfg.Auth.Enabled)
	assert.Equal(t, "http://manager.internal:55000", cfg.Wazuh.BaseURL())
	assert.Equal(t, "https://localhost:9201", cfg.OpenSearch.BaseURL())
	assert.Equal(t, "custom-*", cfg.OpenSearch.Index)
	assert.Equal(t, "http://ml:5000", cfg.Keystroke.URL)
	assert.Equal(t, 1500*time.Millisecond, cfg.KeystrokeTimeout())
	zone, err := cfg.KeystrokeZone()
	require.NoError(t, err)
	assert.Equal(t, "Asia/Kuala_Lumpur", zone.String())
}

func TestLoad_RequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	_, _, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
}

func TestValidate_RejectsNonPositiveTimeout(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/hids")
	t.Setenv("WAZUH_TIMEOUT", "0")

	_, _, err := Load()
	assert.Error(t, err)
}

func TestValidate_RejectsUnknownKeystrokeZone(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/hids")
	t.Setenv("KEYSTROKE_TIMEZONE", "Mars/Olympus_Mons")

	_, _, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "KEYSTROKE_TIMEZONE")
}
