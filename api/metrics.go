package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	registrationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cyoa_registrations_total",
		Help: "Total number of successful user registrations.",
	})

	loginsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cyoa_logins_total",
		Help: "Total number of login attempts by status.",
	}, []string{"status"})

	tokenVerificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cyoa_token_verifications_total",
		Help: "Total number of access token verifications by status.",
	}, []string{"status"})

	storyOperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cyoa_story_operations_total",
		Help: "Total number of story writes by operation.",
	}, []string{"operation"})

	executionsSubmittedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cyoa_executions_submitted_total",
		Help: "Total number of stored play-through results.",
	})

	wsClientsGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "cyoa_websocket_clients",
		Help: "Number of connected websocket clients.",
	})
)
