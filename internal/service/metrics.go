package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// routingDecisions counts router choices.
	// Labels: agent, reason
	routingDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "loanorch",
		Subsystem: "router",
		Name:      "decisions_total",
		Help:      "Intent routing decisions by selected agent and rule",
	}, []string{"agent", "reason"})

	notificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "loanorch",
		Subsystem: "notify",
		Name:      "notifications_total",
		Help:      "Notification sends by stage and status",
	}, []string{"stage", "status"})

	stageResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "loanorch",
		Subsystem: "pipeline",
		Name:      "stage_results_total",
		Help:      "Pipeline stage results by agent key and status",
	}, []string{"key", "status"})

	recommendations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "loanorch",
		Subsystem: "pipeline",
		Name:      "recommendations_total",
		Help:      "Final recommendations by outcome",
	}, []string{"recommendation"})
)
