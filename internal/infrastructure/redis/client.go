package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RetryConfig bounds the ping retries made while connecting.
type RetryConfig struct {
	MaxRetries      uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultRetryConfig is used by NewClient.
var DefaultRetryConfig = RetryConfig{
	MaxRetries:      5,
	InitialInterval: 100 * time.Millisecond,
	MaxInterval:     2 * time.Second,
}

// NewClient creates a new Redis client and waits for it to answer a ping.
func NewClient(ctx context.Context, redisURL string, logger zerolog.Logger) (*redis.Client, error) {
	return NewClientWithRetry(ctx, redisURL, DefaultRetryConfig, logger)
}

// NewClientWithRetry is NewClient with explicit retry bounds.
func NewClientWithRetry(ctx context.Context, redisURL string, cfg RetryConfig, logger zerolog.Logger) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = cfg.InitialInterval
	b.MaxInterval = cfg.MaxInterval

	attempt := 0
	ping := func() error {
		attempt++
		err := client.Ping(ctx).Err()
		if err != nil {
			logger.Warn().Err(err).Int("attempt", attempt).Str("addr", opts.Addr).Msg("redis ping failed")
		}
		return err
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(b, cfg.MaxRetries), ctx)
	if err := backoff.Retry(ping, policy); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return client, nil
}
