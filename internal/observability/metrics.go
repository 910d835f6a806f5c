package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for SynthVault.
type Metrics struct {
	// Engine
	OpsApplied       *prometheus.CounterVec
	OpsRejected      *prometheus.CounterVec
	OpDuration       *prometheus.HistogramVec
	OpDuplicates     *prometheus.CounterVec
	EngineSequence   prometheus.Gauge
	InsuranceFundUSD prometheus.Gauge
	Liquidations     *prometheus.CounterVec

	// Channels and backpressure
	PublishDrops *prometheus.CounterVec

	// Persistence
	PersistEventsWritten prometheus.Counter
	PersistBatchSize     prometheus.Histogram
	PersistBatchDuration prometheus.Histogram
	PersistErrors        *prometheus.CounterVec
	PersistRetries       prometheus.Counter
	PersistLastSequence  prometheus.Gauge

	// Snapshots and recovery
	SnapshotsTaken   prometheus.Counter
	SnapshotDuration prometheus.Histogram
	ReplayEvents     prometheus.Counter

	// Ingestion
	PriceSamples     prometheus.Counter
	IngestParseError *prometheus.CounterVec
	EventsPublished  *prometheus.CounterVec

	// HTTP API
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	latencyBuckets := []float64{
		0.000001, 0.000005, 0.00001, 0.000025, 0.00005,
		0.0001, 0.00025, 0.0005, 0.001, 0.002, 0.005, 0.01,
	}

	httpBuckets := []float64{
		0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1,
	}

	return &Metrics{
		OpsApplied: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "synth_engine_ops_applied_total",
			Help: "Operations successfully applied by the engine",
		}, []string{"op_type"}),

		OpsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "synth_engine_ops_rejected_total",
			Help: "Operations rejected (validation, invariant, external failure)",
		}, []string{"op_type", "reason"}),

		OpDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "synth_engine_op_apply_duration_seconds",
			Help:    "Time to apply a single operation",
			Buckets: latencyBuckets,
		}, []string{"op_type"}),

		OpDuplicates: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "synth_engine_op_duplicates_total",
			Help: "Operations skipped as idempotent duplicates",
		}, []string{"op_type"}),

		EngineSequence: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "synth_engine_sequence",
			Help: "Last applied operation sequence",
		}),

		InsuranceFundUSD: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "synth_insurance_fund_usd",
			Help: "Insurance fund balance in whole USD",
		}),

		Liquidations: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "synth_liquidations_total",
			Help: "Completed liquidations by outcome",
		}, []string{"outcome"}),

		PublishDrops: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "synth_publish_dropped_total",
			Help: "Outbound events dropped due to full publish channel",
		}, []string{"op_type"}),

		PersistEventsWritten: promauto.NewCounter(prometheus.CounterOpts{
			Name: "synth_persist_events_written_total",
			Help: "Event envelopes written to the log",
		}),

		PersistBatchSize: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "synth_persist_batch_size",
			Help:    "Events per persistence batch",
			Buckets: []float64{1, 2, 5, 10, 25, 50, 100, 250},
		}),

		PersistBatchDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "synth_persist_batch_duration_seconds",
			Help:    "Time to flush one persistence batch",
			Buckets: httpBuckets,
		}),

		PersistErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "synth_persist_errors_total",
			Help: "Persistence failures by stage",
		}, []string{"stage"}),

		PersistRetries: promauto.NewCounter(prometheus.CounterOpts{
			Name: "synth_persist_retries_total",
			Help: "Persistence flush retries",
		}),

		PersistLastSequence: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "synth_persist_last_sequence",
			Help: "Highest sequence durably written",
		}),

		SnapshotsTaken: promauto.NewCounter(prometheus.CounterOpts{
			Name: "synth_snapshots_taken_total",
			Help: "Snapshots written",
		}),

		SnapshotDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "synth_snapshot_duration_seconds",
			Help:    "Time to export and store a snapshot",
			Buckets: httpBuckets,
		}),

		ReplayEvents: promauto.NewCounter(prometheus.CounterOpts{
			Name: "synth_replay_events_total",
			Help: "Events re-applied during startup replay",
		}),

		PriceSamples: promauto.NewCounter(prometheus.CounterOpts{
			Name: "synth_price_samples_total",
			Help: "Price feed samples received",
		}),

		IngestParseError: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "synth_ingest_parse_errors_total",
			Help: "Inbound messages rejected by the parser",
		}, []string{"subject"}),

		EventsPublished: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "synth_events_published_total",
			Help: "Events published to the outbound stream",
		}, []string{"op_type"}),

		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "synth_http_requests_total",
			Help: "HTTP API requests",
		}, []string{"route", "method", "status"}),

		HTTPDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "synth_http_request_duration_seconds",
			Help:    "HTTP API request latency",
			Buckets: httpBuckets,
		}, []string{"route", "method"}),
	}
}

// Engine-facing helpers keep metric plumbing out of the hot path call sites.

func (m *Metrics) RecordOpApplied(opType string, seconds float64) {
	m.OpsApplied.WithLabelValues(opType).Inc()
	m.OpDuration.WithLabelValues(opType).Observe(seconds)
}

func (m *Metrics) RecordOpRejected(opType, reason string) {
	m.OpsRejected.WithLabelValues(opType, reason).Inc()
}

func (m *Metrics) RecordDuplicate(opType string) {
	m.OpDuplicates.WithLabelValues(opType).Inc()
}

func (m *Metrics) SetEngineSequence(seq int64) {
	m.EngineSequence.Set(float64(seq))
}

func (m *Metrics) SetInsuranceFundBalance(usd float64) {
	m.InsuranceFundUSD.Set(usd)
}

func (m *Metrics) RecordLiquidation(outcome string) {
	m.Liquidations.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RecordPublishDropped(opType string) {
	m.PublishDrops.WithLabelValues(opType).Inc()
}
