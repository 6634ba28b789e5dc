package invoker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	outcomeSuccess   = "success"
	outcomeTimeout   = "timeout"
	outcomeTransient = "transient"
	outcomePermanent = "permanent"
)

var (
	// attemptsTotal counts individual attempts.
	// Labels: agent, outcome (success, timeout, transient, permanent)
	attemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "loanorch",
		Subsystem: "invoker",
		Name:      "attempts_total",
		Help:      "Remote agent call attempts by outcome",
	}, []string{"agent", "outcome"})

	invocationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "loanorch",
		Subsystem: "invoker",
		Name:      "invocation_duration_seconds",
		Help:      "Wall time of an invocation including retries",
		Buckets:   []float64{0.5, 1, 5, 15, 30, 60, 120, 300, 600},
	}, []string{"agent"})

	invocationAttempts = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "loanorch",
		Subsystem: "invoker",
		Name:      "invocation_attempts",
		Help:      "Attempts needed per invocation",
		Buckets:   []float64{1, 2, 3, 4, 5},
	}, []string{"agent"})
)

func observeAttempt(agentName, outcome string) {
	attemptsTotal.WithLabelValues(agentName, outcome).Inc()
}

func observeInvocation(agentName string, res Result) {
	invocationDuration.WithLabelValues(agentName).Observe(res.TotalElapsed.Seconds())
	invocationAttempts.WithLabelValues(agentName).Observe(float64(res.Attempts))
}
