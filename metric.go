package b3cverify

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	MetricNameSpace = "b3cverify"
)

var (
	attemptsStarted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: MetricNameSpace,
			Name:      "attempts_started_total",
			Help:      "payments that entered verification",
		},
		[]string{"flow"},
	)
	verifyPolls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: MetricNameSpace,
			Name:      "verify_polls_total",
			Help:      "verification calls by classified result",
		},
		[]string{"flow", "result"},
	)
	outcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: MetricNameSpace,
			Name:      "outcomes_total",
			Help:      "terminal verification outcomes",
		},
		[]string{"result"},
	)
	inflightAttempts = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: MetricNameSpace,
			Name:      "inflight_attempts",
			Help:      "attempt records currently held",
		},
	)
	armedDeadlines = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: MetricNameSpace,
			Name:      "armed_deadlines",
			Help:      "payments with a live wall-clock deadline",
		},
	)
)

func init() {
	prometheus.MustRegister(
		attemptsStarted,
		verifyPolls,
		outcomes,
		inflightAttempts,
		armedDeadlines,
	)
}

func metricAttemptStarted(flow string) {
	attemptsStarted.WithLabelValues(flow).Inc()
}

func metricPoll(flow, result string) {
	verifyPolls.WithLabelValues(flow, result).Inc()
}

func metricOutcome(result string) {
	outcomes.WithLabelValues(result).Inc()
}

func metricGauges(attempts, deadlines int) {
	inflightAttempts.Set(float64(attempts))
	armedDeadlines.Set(float64(deadlines))
}
