package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// IdentityResolutions counts pseudonym lookups by whether a mapping was created.
	IdentityResolutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lionboard_identity_resolutions_total",
		Help: "Thread identity resolutions by result (existing, created, race_lost)",
	}, []string{"result"})

	// ModerationActions counts redaction workflow outcomes.
	ModerationActions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lionboard_moderation_actions_total",
		Help: "Redaction workflow actions by action tag and outcome",
	}, []string{"action", "outcome"})

	// AuditEntriesRecorded counts appended audit entries by action.
	AuditEntriesRecorded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lionboard_audit_entries_total",
		Help: "Audit entries appended by action",
	}, []string{"action"})

	// ScreeningOutcomes counts content screening results.
	ScreeningOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lionboard_screening_outcomes_total",
		Help: "Content screening outcomes",
	}, []string{"outcome"})

	// ModerationAPILatency records moderation API round-trip time.
	ModerationAPILatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "lionboard_moderation_api_latency_seconds",
		Help:    "Moderation API request latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"status"})

	// JobEvents counts background job lifecycle events by queue and event.
	JobEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lionboard_job_events_total",
		Help: "Background job events (enqueued, succeeded, retried, abandoned)",
	}, []string{"queue", "event"})

	// RedisErrors counts Redis errors by command.
	RedisErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lionboard_redis_errors_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})
)
