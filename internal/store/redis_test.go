package store

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hids-dashboard-go/internal/models"
)

func newTestRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	s := NewRedisStore(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = s.Close() })
	return s, mr
}

func TestThresholds_DefaultsWhenUnset(t *testing.T) {
	s, _ := newTestRedisStore(t)

	got, err := s.GetThresholds(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.DefaultThresholds(), got)
}

func TestThresholds_SaveAndLoad(t *testing.T) {
	s, mr := newTestRedisStore(t)
	ctx := context.Background()

	want := models.DefaultThresholds()
	want.Wazuh.Malware = 95
	want.Keystroke.Confidence = 70
	require.NoError(t, s.SaveThresholds(ctx, want))

	got, err := s.GetThresholds(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	assert.True(t, mr.Exists("settings:thresholds"))
	assert.Zero(t, mr.TTL("settings:thresholds"))
}

func TestThresholds_PartialDocumentKeepsDefaults(t *testing.T) {
	s, mr := newTestRedisStore(t)
	require.NoError(t, mr.Set("settings:thresholds", `{"wazuh":{"fim":10}}`))

	got, err := s.GetThresholds(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 10, got.Wazuh.FIM)
	assert.Equal(t, 90, got.Wazuh.Malware)
	assert.Equal(t, 80, got.Keystroke.Confidence)
}

func TestThresholds_CorruptDocument(t *testing.T) {
	s, mr := newTestRedisStore(t)
	require.NoError(t, mr.Set("settings:thresholds", "not json"))

	_, err := s.GetThresholds(context.Background())
	assert.Error(t, err)
}

func TestThresholds_RedisDown(t *testing.T) {
	s, mr := newTestRedisStore(t)
	mr.Close()

	_, err := s.GetThresholds(context.Background())
	assert.Error(t, err)
}
