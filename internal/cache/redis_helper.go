// Package cache holds the Redis-backed caches used by the pipeline.
package cache

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/andresuchdata/autoreorder/internal/config"
	"github.com/redis/go-redis/v9"
)

const (
	defaultCacheTTL = time.Hour
	pingTimeout     = 5 * time.Second
	redisIOTimeout  = 3 * time.Second
)

// NewRedisClient connects to the configured Redis instance and fails fast
// when it does not answer a ping. The alert store shares it.
func NewRedisClient(cfg config.CacheConfig) (*redis.Client, error) {
	opts, err := buildRedisOptions(cfg)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s failed: %w", opts.Addr, err)
	}
	return client, nil
}

func forecastTTL(cfg config.CacheConfig) time.Duration {
	if cfg.ForecastTTLSeconds <= 0 {
		return defaultCacheTTL
	}
	return time.Duration(cfg.ForecastTTLSeconds) * time.Second
}

// buildRedisOptions prefers REDIS_URL; otherwise host and port default to a
// local instance.
func buildRedisOptions(cfg config.CacheConfig) (*redis.Options, error) {
	var opts *redis.Options
	if cfg.RedisURL != "" {
		parsed, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("invalid redis url: %w", err)
		}
		opts = parsed
	} else {
		host, port := cfg.RedisHost, cfg.RedisPort
		if host == "" {
			host = "127.0.0.1"
		}
		if port == "" {
			port = "6379"
		}
		opts = &redis.Options{
			Addr:     net.JoinHostPort(host, port),
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}
	}

	if opts.ReadTimeout == 0 {
		opts.ReadTimeout = redisIOTimeout
	}
	if opts.WriteTimeout == 0 {
		opts.WriteTimeout = redisIOTimeout
	}
	return opts, nil
}

// deleteByPrefix unlinks every key under prefix in batches and returns how
// many were removed.
func deleteByPrefix(ctx context.Context, client *redis.Client, prefix string, batch int64) (int, error) {
	iter := client.Scan(ctx, 0, prefix+":*", batch).Iterator()

	removed := 0
	pending := make([]string, 0, batch)
	flush := func() error {
		if len(pending) == 0 {
			return nil
		}
		n, err := client.Unlink(ctx, pending...).Result()
		if err != nil {
			return fmt.Errorf("redis unlink failed: %w", err)
		}
		removed += int(n)
		pending = pending[:0]
		return nil
	}

	for iter.Next(ctx) {
		pending = append(pending, iter.Val())
		if int64(len(pending)) >= batch {
			if err := flush(); err != nil {
				return removed, err
			}
		}
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("redis scan failed: %w", err)
	}
	if err := flush(); err != nil {
		return removed, err
	}
	return removed, nil
}
