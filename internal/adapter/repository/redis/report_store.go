package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iho/txengine/internal/domain"
	"github.com/iho/txengine/internal/infrastructure/metrics"
)

// ReportStore implements usecase.ReportStore using Redis.
type ReportStore struct {
	client  *redis.Client
	prefix  string
	metrics *metrics.Metrics
}

// NewReportStore creates a new ReportStore. m may be nil.
func NewReportStore(client *redis.Client, m *metrics.Metrics) *ReportStore {
	return &ReportStore{
		client:  client,
		prefix:  "txengine:batch:",
		metrics: m,
	}
}

// Save stores a rendered report under its batch id.
func (s *ReportStore) Save(ctx context.Context, batchID string, report []byte, ttl time.Duration) error {
	err := s.client.Set(ctx, s.prefix+batchID, report, ttl).Err()
	record(s.metrics, "report_set", err)
	return err
}

// Get loads a report by batch id.
func (s *ReportStore) Get(ctx context.Context, batchID string) ([]byte, error) {
	report, err := s.client.Get(ctx, s.prefix+batchID).Bytes()
	record(s.metrics, "report_get", err)
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrBatchNotFound
	}
	if err != nil {
		return nil, err
	}
	return report, nil
}
