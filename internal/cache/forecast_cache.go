package cache

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/andresuchdata/autoreorder/internal/config"
	"github.com/andresuchdata/autoreorder/internal/forecast"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	forecastKeyPrefix = "forecast"
	forecastScanBatch = 100
)

// ForecastKey identifies one trained forecast. A new snapshot identity or a
// different model configuration never reuses an entry.
type ForecastKey struct {
	MaterialID     string
	SourceIdentity string
	Model          string
	Horizon        int
	LagDepth       int
	TrainRatio     float64
	TreeDepth      int
	TreeMinLeaf    int
}

// ForecastCache stores trained forecasts so repeated cycles over an unchanged
// snapshot skip retraining.
type ForecastCache interface {
	Get(ctx context.Context, key ForecastKey) (forecast.Forecast, bool, error)
	Set(ctx context.Context, key ForecastKey, f forecast.Forecast) error
	InvalidateAll(ctx context.Context) error
}

type redisForecastCache struct {
	client *redis.Client
	ttl    time.Duration
}

type noopForecastCache struct{}

func NewForecastCache(cfg config.CacheConfig) (ForecastCache, error) {
	if !cfg.Enabled {
		return &noopForecastCache{}, nil
	}

	client, err := NewRedisClient(cfg)
	if err != nil {
		return nil, err
	}

	return &redisForecastCache{
		client: client,
		ttl:    forecastTTL(cfg),
	}, nil
}

func NewNoopForecastCache() ForecastCache {
	return &noopForecastCache{}
}

func (c *redisForecastCache) Get(ctx context.Context, key ForecastKey) (forecast.Forecast, bool, error) {
	payload, err := c.client.Get(ctx, buildForecastKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return forecast.Forecast{}, false, nil
	}
	if err != nil {
		return forecast.Forecast{}, false, fmt.Errorf("redis get failed: %w", err)
	}

	var f forecast.Forecast
	if err := json.Unmarshal(payload, &f); err != nil {
		return forecast.Forecast{}, false, fmt.Errorf("decode forecast cache: %w", err)
	}
	return f, true, nil
}

func (c *redisForecastCache) Set(ctx context.Context, key ForecastKey, f forecast.Forecast) error {
	payload, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("encode forecast cache: %w", err)
	}
	if err := c.client.Set(ctx, buildForecastKey(key), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (c *redisForecastCache) InvalidateAll(ctx context.Context) error {
	removed, err := deleteByPrefix(ctx, c.client, forecastKeyPrefix, forecastScanBatch)
	if err != nil {
		return err
	}
	log.Info().Int("keys", removed).Msg("forecast cache flushed")
	return nil
}

func (n *noopForecastCache) Get(ctx context.Context, key ForecastKey) (forecast.Forecast, bool, error) {
	return forecast.Forecast{}, false, nil
}

func (n *noopForecastCache) Set(ctx context.Context, key ForecastKey, f forecast.Forecast) error {
	return nil
}

func (n *noopForecastCache) InvalidateAll(ctx context.Context) error {
	return nil
}

func buildForecastKey(key ForecastKey) string {
	return fmt.Sprintf("%s:%s:%s", forecastKeyPrefix, strings.TrimSpace(key.MaterialID), forecastKeyHash(key))
}

func forecastKeyHash(key ForecastKey) string {
	raw := fmt.Sprintf("source=%s|model=%s|horizon=%d|lags=%d|train=%g|depth=%d|leaf=%d",
		key.SourceIdentity, strings.ToLower(key.Model), key.Horizon, key.LagDepth,
		key.TrainRatio, key.TreeDepth, key.TreeMinLeaf)
	sum := sha1.Sum([]byte(raw))
	return hex.EncodeToString(sum[:])
}
