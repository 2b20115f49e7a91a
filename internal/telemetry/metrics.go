package telemetry

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	once sync.Once

	TierTransitions    = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "offering_tier_transitions_total", Help: "Offering tier transitions by reason"}, []string{"reason"})
	ActiveMachines     = prometheus.NewGauge(prometheus.GaugeOpts{Name: "offering_active_machines", Help: "Offering state machines currently owned by the scheduler"})
	Awards             = prometheus.NewCounter(prometheus.CounterOpts{Name: "coverage_awards_total", Help: "Vacancies awarded"})
	AwardRejections    = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "coverage_award_rejections_total", Help: "Award attempts rejected by kind"}, []string{"kind"})
	ResponsesSubmitted = prometheus.NewCounter(prometheus.CounterOpts{Name: "coverage_responses_submitted_total", Help: "Responses recorded against vacancies"})
	RateLimitRejects   = prometheus.NewCounter(prometheus.CounterOpts{Name: "coverage_rate_limit_rejects_total", Help: "Response submissions rejected by rate limiter"})
	PersistFailures    = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "coverage_persist_failures_total", Help: "Failed writes to the document store or audit mirror"}, []string{"target"})
	NotifyFailures     = prometheus.NewCounter(prometheus.CounterOpts{Name: "coverage_notify_failures_total", Help: "Award notifications that could not be delivered"})
	NoticeBacklog      = prometheus.NewGauge(prometheus.GaugeOpts{Name: "coverage_notice_backlog", Help: "Award notices waiting on the Redis list"})
)

// Handler exposes /metrics HTTP handler with a singleton registry.
func Handler() http.Handler {
	once.Do(func() {
		prometheus.MustRegister(
			TierTransitions,
			ActiveMachines,
			Awards,
			AwardRejections,
			ResponsesSubmitted,
			RateLimitRejects,
			PersistFailures,
			NotifyFailures,
			NoticeBacklog,
		)
	})
	return promhttp.Handler()
}
