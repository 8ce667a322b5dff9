package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"github.com/iho/txengine/internal/domain"
	"github.com/iho/txengine/internal/usecase"
)

// BreakerConfig controls when the report store circuit opens.
type BreakerConfig struct {
	// ConsecutiveFailures trips the breaker.
	ConsecutiveFailures uint32
	// OpenTimeout is how long the breaker stays open before probing again.
	OpenTimeout time.Duration
}

// DefaultBreakerConfig trips after 5 consecutive failures and probes again
// after 30 seconds.
var DefaultBreakerConfig = BreakerConfig{
	ConsecutiveFailures: 5,
	OpenTimeout:         30 * time.Second,
}

// BreakerReportStore guards a usecase.ReportStore with a circuit breaker so
// uploads stop waiting on Redis once it is known to be down.
type BreakerReportStore struct {
	store usecase.ReportStore
	cb    *gobreaker.CircuitBreaker
}

// NewBreakerReportStore wraps store. A missing report is not a failure.
func NewBreakerReportStore(store usecase.ReportStore, cfg BreakerConfig, logger zerolog.Logger) *BreakerReportStore {
	if cfg.ConsecutiveFailures == 0 {
		cfg.ConsecutiveFailures = DefaultBreakerConfig.ConsecutiveFailures
	}

	settings := gobreaker.Settings{
		Name:    "report_store",
		Timeout: cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.ConsecutiveFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, domain.ErrBatchNotFound)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state changed")
		},
	}

	return &BreakerReportStore{
		store: store,
		cb:    gobreaker.NewCircuitBreaker(settings),
	}
}

// State reports the breaker state.
func (s *BreakerReportStore) State() gobreaker.State {
	return s.cb.State()
}

// Save stores a report unless the breaker is open.
func (s *BreakerReportStore) Save(ctx context.Context, batchID string, report []byte, ttl time.Duration) error {
	_, err := s.cb.Execute(func() (any, error) {
		return nil, s.store.Save(ctx, batchID, report, ttl)
	})
	return breakerError(err)
}

// Get loads a report unless the breaker is open.
func (s *BreakerReportStore) Get(ctx context.Context, batchID string) ([]byte, error) {
	result, err := s.cb.Execute(func() (any, error) {
		return s.store.Get(ctx, batchID)
	})
	if err != nil {
		return nil, breakerError(err)
	}
	return result.([]byte), nil
}

func breakerError(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	return err
}
