package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/txengine/internal/domain"
	"github.com/iho/txengine/internal/infrastructure/metrics"
)

// RecordError marks a single malformed input record. Ingest skips it and
// continues with the next one.
type RecordError struct {
	Line int
	Err  error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *RecordError) Unwrap() error {
	return e.Err
}

// Ledger is the part of LedgerUseCase that ingestion drives.
type Ledger interface {
	Process(ctx context.Context, tx domain.Transaction) (Outcome, error)
}

// IngestOptions controls one ingest run.
type IngestOptions struct {
	// FailFast stops at the first malformed, ignored-in-strict-mode or
	// rejected record.
	FailFast bool
}

// RowError describes one record that was not applied cleanly.
type RowError struct {
	Line        int
	Transaction string
	Message     string
}

// IngestReport summarizes one ingest run.
type IngestReport struct {
	BatchID   string
	Read      int
	Applied   int
	Ignored   int
	Rejected  int
	Malformed int
	Errors    []RowError
	// Truncated is set when more errors occurred than were kept.
	Truncated bool
	StartedAt time.Time
	Duration  time.Duration
}

func (r *IngestReport) addError(maxErrors, line int, tx string, err error) {
	if len(r.Errors) >= maxErrors {
		r.Truncated = true
		return
	}
	r.Errors = append(r.Errors, RowError{Line: line, Transaction: tx, Message: err.Error()})
}

// IngestUseCase feeds a record stream into the ledger one record at a time.
type IngestUseCase struct {
	// mu keeps batches whole: records of two sources, or a single
	// transaction passed to Process, never land inside another batch.
	mu        sync.Mutex
	ledger    Ledger
	idGen     IDGenerator
	metrics   *metrics.Metrics
	logger    zerolog.Logger
	maxErrors int
}

// NewIngestUseCase creates a new IngestUseCase. metrics may be nil.
func NewIngestUseCase(ledger Ledger, idGen IDGenerator, m *metrics.Metrics, logger zerolog.Logger) *IngestUseCase {
	return &IngestUseCase{
		ledger:    ledger,
		idGen:     idGen,
		metrics:   m,
		logger:    logger,
		maxErrors: MaxReportedErrors,
	}
}

// Process applies one transaction between batches.
func (uc *IngestUseCase) Process(ctx context.Context, tx domain.Transaction) (Outcome, error) {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return OutcomeRejected, err
	}
	return uc.ledger.Process(ctx, tx)
}

// Ingest reads source to the end. Per-record problems are counted in the
// report; the returned error is set only when the source itself fails, the
// context is cancelled, or FailFast trips.
func (uc *IngestUseCase) Ingest(ctx context.Context, source RecordSource, opts IngestOptions) (*IngestReport, error) {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	report := &IngestReport{
		BatchID:   uc.idGen.Generate(),
		StartedAt: time.Now().UTC(),
	}
	log := uc.logger.With().Str("batch_id", report.BatchID).Logger()

	defer func() {
		report.Duration = time.Since(report.StartedAt)
		if uc.metrics != nil {
			uc.metrics.BatchesIngested.Inc()
		}
	}()

	for {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		tx, err := source.Next()
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			var recErr *RecordError
			if !errors.As(err, &recErr) {
				return report, fmt.Errorf("read transactions: %w", err)
			}

			report.Read++
			report.Malformed++
			report.addError(uc.maxErrors, recErr.Line, "", recErr.Err)
			if uc.metrics != nil {
				uc.metrics.RecordsRead.Inc()
				uc.metrics.RecordsMalformed.Inc()
			}
			log.Warn().Err(recErr.Err).Int("line", recErr.Line).Msg("skipping malformed record")

			if opts.FailFast {
				return report, err
			}
			continue
		}

		report.Read++
		if uc.metrics != nil {
			uc.metrics.RecordsRead.Inc()
		}

		outcome, err := uc.ledger.Process(ctx, tx)
		switch outcome {
		case OutcomeApplied:
			report.Applied++
		case OutcomeIgnored:
			report.Ignored++
		default:
			report.Rejected++
		}

		if err != nil {
			line := lineOf(source)
			report.addError(uc.maxErrors, line, tx.String(), err)
			if opts.FailFast {
				return report, &RecordError{Line: line, Err: err}
			}
		}
	}

	log.Info().
		Int("read", report.Read).
		Int("applied", report.Applied).
		Int("ignored", report.Ignored).
		Int("rejected", report.Rejected).
		Int("malformed", report.Malformed).
		Msg("batch ingested")

	return report, nil
}

// lineOf returns the current input line when the source tracks one.
func lineOf(source RecordSource) int {
	if ls, ok := source.(interface{ Line() int }); ok {
		return ls.Line()
	}
	return 0
}
