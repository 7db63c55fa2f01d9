package store

import (
	"context"
	"encoding/json"

	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"

	"hids-dashboard-go/internal/models"
)

const thresholdsKey = "settings:thresholds"

type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(opts *redis.Options) *RedisStore {
	rdb := redis.NewClient(opts)
	return &RedisStore{client: rdb}
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

// GetThresholds returns the saved thresholds, or the defaults when none
// have been saved yet.
func (s *RedisStore) GetThresholds(ctx context.Context) (models.Thresholds, error) {
	val, err := s.client.Get(ctx, thresholdsKey).Result()
	if errors.Is(err, redis.Nil) {
		return models.DefaultThresholds(), nil
	}
	if err != nil {
		return models.Thresholds{}, errors.Wrap(err, "load thresholds")
	}

	t := models.DefaultThresholds()
	if err := json.Unmarshal([]byte(val), &t); err != nil {
		return models.Thresholds{}, errors.Wrap(err, "decode thresholds")
	}
	return t, nil
}

func (s *RedisStore) SaveThresholds(ctx context.Context, t models.Thresholds) error {
	data, err := json.Marshal(t)
	if err != nil {
		return errors.Wrap(err, "encode thresholds")
	}
	// No TTL
	if err := s.client.Set(ctx, thresholdsKey, data, 0).Err(); err != nil {
		return errors.Wrap(err, "save thresholds")
	}
	return nil
}
