package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// NOTE: All metrics are defined globally here, so every binary exports the full
// set (with zero values for the components it does not run).

// namespace defines the global prefix for all metrics (e.g., accolade_...).
const namespace = "accolade"

// lowLatencyBuckets defines buckets for evaluations that mostly hit caches and indexes.
// Range: 1ms to 1s.
var lowLatencyBuckets = []float64{.001, .002, .005, .010, .025, .050, .100, .250, .500, 1}

var (
	// -------------------------------------------------------------------------
	// ENGINE
	// -------------------------------------------------------------------------

	// EngineEvaluationsTotal counts Evaluate calls.
	// Metric: accolade_engine_evaluations_total
	EngineEvaluationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "engine",
		Name:      "evaluations_total",
		Help:      "Total badge evaluations by event type and outcome",
	}, []string{"event_type", "outcome"}) // outcome: completed, aborted

	// EngineEvaluationDuration measures the latency of a whole Evaluate call.
	// Metric: accolade_engine_evaluation_duration_seconds
	EngineEvaluationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "engine",
		Name:      "evaluation_duration_seconds",
		Help:      "Time taken to evaluate all candidate badges for one event",
		Buckets:   lowLatencyBuckets,
	}, []string{"event_type"})

	// EngineAwardResultsTotal counts per-badge results.
	// Metric: accolade_engine_award_results_total
	EngineAwardResultsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "engine",
		Name:      "award_results_total",
		Help:      "Per-badge evaluation results by outcome",
	}, []string{"outcome"}) // awarded, already_had, not_eligible, or an error kind

	// EngineRevocationsTotal counts revocation attempts.
	// Metric: accolade_engine_revocations_total
	EngineRevocationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "engine",
		Name:      "revocations_total",
		Help:      "Award revocations by outcome",
	}, []string{"outcome"}) // revoked, not_found, error

	// -------------------------------------------------------------------------
	// L1 CACHES (Otter)
	// -------------------------------------------------------------------------

	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "cache",
		Name:      "hits_total",
		Help:      "Total in-memory cache hits",
	}, []string{"cache"})

	CacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "cache",
		Name:      "misses_total",
		Help:      "Total in-memory cache misses",
	}, []string{"cache"})

	// CacheEvictions tracks items removed due to the capacity limit.
	CacheEvictions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "cache",
		Name:      "evictions_total",
		Help:      "Total items evicted due to the capacity limit",
	}, []string{"cache"})

	// CacheItems tracks the item count (S3-FIFO tracks items, not bytes).
	CacheItems = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "cache",
		Name:      "items_count",
		Help:      "Current number of items in the in-memory cache",
	}, []string{"cache"})

	// -------------------------------------------------------------------------
	// CONTROL PLANE (HTTP)
	// -------------------------------------------------------------------------

	// ControlPlaneReqDuration measures the latency of HTTP requests.
	// Metric: accolade_control_plane_http_handling_seconds
	ControlPlaneReqDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "control_plane",
		Name:      "http_handling_seconds",
		Help:      "Time taken to handle HTTP requests in Control Plane",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})

	// ControlPlaneReqTotal counts the total number of HTTP requests.
	// Metric: accolade_control_plane_http_requests_total
	ControlPlaneReqTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "control_plane",
		Name:      "http_requests_total",
		Help:      "Total HTTP requests in Control Plane",
	}, []string{"method", "route", "code"})

	// -------------------------------------------------------------------------
	// DATA PLANE (gRPC)
	// -------------------------------------------------------------------------

	// DataPlaneGrpcDuration measures the latency of gRPC requests.
	// Metric: accolade_data_plane_grpc_handling_seconds
	DataPlaneGrpcDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "data_plane",
		Name:      "grpc_handling_seconds",
		Help:      "Time taken to handle gRPC requests",
		Buckets:   lowLatencyBuckets,
	}, []string{"method", "code"})

	// DataPlaneGrpcTotal counts the total number of gRPC requests.
	// Metric: accolade_data_plane_grpc_requests_total
	DataPlaneGrpcTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "data_plane",
		Name:      "grpc_requests_total",
		Help:      "Total gRPC requests",
	}, []string{"method", "code"})

	// -------------------------------------------------------------------------
	// WORKER + QUEUE
	// -------------------------------------------------------------------------

	// WorkerJobDuration measures latency from the event occurring to its evaluation finishing.
	// Metric: accolade_worker_job_processing_duration_seconds
	WorkerJobDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "worker",
		Name:      "job_processing_duration_seconds",
		Help:      "End-to-end latency from event occurrence to evaluation finish",
		Buckets:   prometheus.DefBuckets,
	})

	WorkerJobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "worker",
		Name:      "jobs_total",
		Help:      "Total queued events processed",
	}, []string{"status"}) // success, partial, fail, poison

	WorkerRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "worker",
		Name:      "retries_total",
		Help:      "Total evaluation retries after transient failures",
	})

	QueueEnqueuedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "queue",
		Name:      "enqueued_total",
		Help:      "Total events enqueued by event type",
	}, []string{"event_type"})

	RedisQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "redis_queue_depth",
		Help:      "Current number of events waiting in the queue",
	})

	// -------------------------------------------------------------------------
	// HEALTH CHECKS
	// -------------------------------------------------------------------------

	ReadinessFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "readiness",
		Name:      "failures_total",
		Help:      "Failed readiness checks by component",
	}, []string{"component"})

	// -------------------------------------------------------------------------
	// DATABASE POOL
	// -------------------------------------------------------------------------

	DatabasePoolConnections = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "database",
		Name:      "pool_connections",
		Help:      "Connections in the pgx pool by state",
	}, []string{"state"}) // total, idle, in_use, max

	DatabasePoolAcquireCount = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "database",
		Name:      "pool_acquire_count_total",
		Help:      "Cumulative successful connection acquisitions",
	})

	DatabasePoolWaitCount = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "database",
		Name:      "pool_wait_count_total",
		Help:      "Cumulative acquisitions that had to wait for a connection",
	})
)
