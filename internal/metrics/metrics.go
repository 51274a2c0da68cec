package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// RemindersGenerated counts reminder instances created by generation
	RemindersGenerated = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "reminders_generated_total",
		Help: "Reminder instances created by the generator",
	})

	// RemindersDispatched counts dispatch outcomes per channel.
	// result is one of sent, retry, failed, skipped
	RemindersDispatched = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reminders_dispatched_total",
		Help: "Dispatch attempts by channel and result",
	}, []string{"channel", "result"})

	// SendLatency tracks delivery provider call latency
	SendLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "delivery_send_latency_seconds",
		Help:    "Latency of delivery provider calls",
		Buckets: prometheus.DefBuckets,
	}, []string{"channel"})

	// DeliveryCallbacks counts provider status callbacks
	DeliveryCallbacks = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "delivery_callbacks_total",
		Help: "Provider delivery status callbacks by status",
	}, []string{"status"})

	// ResponsesCorrelated counts inbound replies by correlation result
	ResponsesCorrelated = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "responses_correlated_total",
		Help: "Inbound replies by correlation result",
	}, []string{"result"})

	// AdherenceRecomputations counts stats recomputations per period type
	AdherenceRecomputations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "adherence_recomputations_total",
		Help: "Adherence stats recomputations by period type",
	}, []string{"period"})

	// SchedulerJobRuns counts periodic driver job runs
	SchedulerJobRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "scheduler_job_runs_total",
		Help: "Periodic job runs by job and result",
	}, []string{"job", "result"})

	// HTTPRequests counts API requests by route and status
	HTTPRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "HTTP requests by route and status",
	}, []string{"route", "status"})
)

// Register registers every collector with reg
func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		RemindersGenerated,
		RemindersDispatched,
		SendLatency,
		DeliveryCallbacks,
		ResponsesCorrelated,
		AdherenceRecomputations,
		SchedulerJobRuns,
		HTTPRequests,
	)
}
