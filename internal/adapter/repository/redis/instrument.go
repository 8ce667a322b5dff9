package redis

import (
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/iho/txengine/internal/infrastructure/metrics"
)

// record counts one Redis round trip. A redis.Nil reply is a miss, not an
// error.
func record(m *metrics.Metrics, op string, err error) {
	if m == nil {
		return
	}
	m.RedisOperations.WithLabelValues(op).Inc()
	if err != nil && !errors.Is(err, redis.Nil) {
		m.RedisErrors.WithLabelValues(op).Inc()
	}
}
