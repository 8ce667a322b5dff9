package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Transaction metrics
	TransactionsApplied  *prometheus.CounterVec
	TransactionsIgnored  *prometheus.CounterVec
	TransactionsRejected *prometheus.CounterVec
	ApplyDuration        prometheus.Histogram

	// Ingest metrics
	RecordsRead      prometheus.Counter
	RecordsMalformed prometheus.Counter
	BatchesIngested  prometheus.Counter

	// Account metrics
	AccountsCreated prometheus.Counter
	AccountsLocked  prometheus.Counter
	OpenDisputes    prometheus.Gauge

	// API metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
	HTTPInFlight prometheus.Gauge

	// Redis metrics
	RedisOperations *prometheus.CounterVec
	RedisErrors     *prometheus.CounterVec
}

// New creates all metrics and registers them with reg. A nil reg uses the
// default Prometheus registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Metrics{
		// Transaction metrics
		TransactionsApplied: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "txengine_transactions_applied_total",
				Help: "Transactions that changed ledger state, by type",
			},
			[]string{"type"},
		),
		TransactionsIgnored: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "txengine_transactions_ignored_total",
				Help: "Transactions absorbed as no-ops, by type and reason",
			},
			[]string{"type", "reason"},
		),
		TransactionsRejected: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "txengine_transactions_rejected_total",
				Help: "Transactions rejected with an error, by type and reason",
			},
			[]string{"type", "reason"},
		),
		ApplyDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "txengine_apply_duration_seconds",
			Help:    "Duration of a single transaction apply",
			Buckets: []float64{.00001, .00005, .0001, .0005, .001, .005, .01},
		}),

		// Ingest metrics
		RecordsRead: f.NewCounter(prometheus.CounterOpts{
			Name: "txengine_records_read_total",
			Help: "Input records read from sources",
		}),
		RecordsMalformed: f.NewCounter(prometheus.CounterOpts{
			Name: "txengine_records_malformed_total",
			Help: "Input records that could not be parsed",
		}),
		BatchesIngested: f.NewCounter(prometheus.CounterOpts{
			Name: "txengine_batches_ingested_total",
			Help: "Completed ingest batches",
		}),

		// Account metrics
		AccountsCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "txengine_accounts_created_total",
			Help: "Accounts created on first deposit or withdrawal",
		}),
		AccountsLocked: f.NewCounter(prometheus.CounterOpts{
			Name: "txengine_accounts_locked_total",
			Help: "Accounts locked by a chargeback",
		}),
		OpenDisputes: f.NewGauge(prometheus.GaugeOpts{
			Name: "txengine_open_disputes",
			Help: "Transactions currently under dispute",
		}),

		// API metrics
		HTTPRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "txengine_http_requests_total",
				Help: "Total HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "txengine_http_duration_seconds",
				Help:    "HTTP request duration",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		HTTPInFlight: f.NewGauge(prometheus.GaugeOpts{
			Name: "txengine_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		}),

		// Redis metrics
		RedisOperations: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "txengine_redis_operations_total",
				Help: "Total Redis operations",
			},
			[]string{"operation"},
		),
		RedisErrors: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "txengine_redis_errors_total",
				Help: "Total Redis errors",
			},
			[]string{"operation"},
		),
	}
}
