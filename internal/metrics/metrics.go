// Package metrics exposes Prometheus collectors for the API.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "stackit_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	VotesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stackit_votes_total",
			Help: "Vote ledger transitions applied",
		},
		[]string{"target_type", "transition"}, // cast, retract, flip
	)

	VoteRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stackit_vote_rejections_total",
			Help: "Vote requests rejected before reaching the ledger",
		},
		[]string{"reason"}, // self_vote, not_found, rate_limited, conflict
	)

	AcceptancesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "stackit_answer_acceptances_total",
			Help: "Answers marked as accepted",
		},
	)

	NotificationsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stackit_notifications_created_total",
			Help: "Notifications persisted",
		},
		[]string{"type"},
	)

	NotificationFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stackit_notification_failures_total",
			Help: "Notifications dropped after the triggering mutation succeeded",
		},
		[]string{"type"},
	)

	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "stackit_websocket_connections",
			Help: "Currently connected WebSocket clients",
		},
	)

	WSMessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "stackit_websocket_messages_sent_total",
			Help: "Messages queued to WebSocket clients",
		},
	)

	WSMessagesDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stackit_websocket_messages_dropped_total",
			Help: "Real-time messages dropped because a buffer was full",
		},
		[]string{"stage"}, // hub, client
	)
)

func RecordVote(targetType, transition string) {
	VotesTotal.WithLabelValues(targetType, transition).Inc()
}

func RecordVoteRejection(reason string) {
	VoteRejections.WithLabelValues(reason).Inc()
}

func RecordNotification(notificationType string, err error) {
	if err != nil {
		NotificationFailures.WithLabelValues(notificationType).Inc()
		return
	}
	NotificationsCreated.WithLabelValues(notificationType).Inc()
}

// GinMiddleware records request latency keyed by the matched route template.
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		APIRequestDuration.
			WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}
