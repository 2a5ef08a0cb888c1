// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ChatTurnsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_turns_processed_total",
			Help: "Total number of chat turns processed, by detected intent",
		},
		[]string{"intent"},
	)

	ChatTurnDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "chat_turn_duration_seconds",
			Help: "Duration of chat turn processing in seconds",
		},
		[]string{"intent"},
	)

	CollaboratorFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "collaborator_failures_total",
			Help: "Total number of collaborator call failures",
		},
		[]string{"collaborator", "error_code"},
	)

	NotificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_sent_total",
			Help: "Total number of notifications attempted, by channel and status",
		},
		[]string{"channel", "status"},
	)

	EvaluationsTriggered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "evaluations_triggered_total",
			Help: "Total number of eligibility evaluations claimed",
		},
		[]string{"status"},
	)

	ActiveConversations = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "active_conversations",
			Help: "Number of conversations with in-flight turns",
		},
		[]string{"channel"},
	)
)
