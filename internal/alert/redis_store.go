package alert

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/andresuchdata/autoreorder/internal/domain"
	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "alert_state:"

// RedisStore keeps each channel's state under its own key, without expiry.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Load(ctx context.Context, channel string) (*domain.AlertState, error) {
	payload, err := s.client.Get(ctx, redisKeyPrefix+channel).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var st domain.AlertState
	if err := json.Unmarshal(payload, &st); err != nil {
		return nil, fmt.Errorf("decode alert state: %w", err)
	}
	return &st, nil
}

func (s *RedisStore) Save(ctx context.Context, state domain.AlertState) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode alert state: %w", err)
	}
	if err := s.client.Set(ctx, redisKeyPrefix+state.Channel, payload, 0).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}
