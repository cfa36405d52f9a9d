package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestDuration tracks request duration
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "registration_request_duration_seconds",
			Help: "Duration of HTTP requests in seconds",
		},
		[]string{"path", "method", "status"},
	)

	// CacheHits tracks cache hits/misses
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "registration_cache_hits_total",
			Help: "Number of cache hits",
		},
		[]string{"operation"},
	)

	// DatabaseOperations tracks database operations
	DatabaseOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "registration_database_operations_total",
			Help: "Number of database operations",
		},
		[]string{"operation", "status"},
	)

	// VerificationCodesIssued tracks code issuance outcomes
	VerificationCodesIssued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "registration_verification_codes_issued_total",
			Help: "Number of verification codes issued",
		},
		[]string{"status"},
	)

	// VerificationAttempts tracks verify outcomes by error kind
	VerificationAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "registration_verification_attempts_total",
			Help: "Number of verification attempts by outcome",
		},
		[]string{"outcome"},
	)

	// RegistrationsCommitted tracks committed registrations by role
	RegistrationsCommitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "registration_committed_total",
			Help: "Number of registrations committed",
		},
		[]string{"role"},
	)

	// SequenceAllocations tracks counter allocations
	SequenceAllocations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "registration_sequence_allocations_total",
			Help: "Number of sequence numbers allocated",
		},
		[]string{"counter", "status"},
	)

	// NotificationsSent tracks outbound email delivery
	NotificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "registration_notifications_total",
			Help: "Number of notifications delivered",
		},
		[]string{"kind", "status"},
	)

	// NotificationQueueDepth tracks queued notifications
	NotificationQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "registration_notification_queue_depth",
			Help: "Number of notifications waiting for a worker",
		},
	)

	// PendingVerificationsSwept tracks expired pending verifications removed by the sweeper
	PendingVerificationsSwept = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "registration_pending_verifications_swept_total",
			Help: "Number of expired pending verifications removed",
		},
	)

	// RateLimitRejections tracks requests rejected by the issuance limiter
	RateLimitRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "registration_rate_limit_rejections_total",
			Help: "Number of requests rejected by rate limiting",
		},
		[]string{"limiter"},
	)

	// ActiveConnections tracks active connections
	ActiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "registration_active_connections",
			Help: "Number of active connections",
		},
	)
)
