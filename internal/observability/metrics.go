package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrorRate counts Redis errors by operation type.
	RedisErrorRate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bitboard_redis_error_rate_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// RealtimeEventsPublished counts change-feed events by table and type.
	RealtimeEventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bitboard_realtime_events_published_total",
		Help: "Total number of change-feed events published",
	}, []string{"table", "type"})

	// RealtimeSubscriptions is the gauge of active channel subscriptions.
	RealtimeSubscriptions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bitboard_realtime_subscriptions",
		Help: "Number of active realtime channel subscriptions",
	})

	// WebSocketConnectionsTotal is the gauge of total websocket connections.
	WebSocketConnectionsTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bitboard_websocket_connections_total",
		Help: "Total number of active WebSocket connections",
	})

	// WebSocketBackpressureDrops counts messages dropped due to backpressure by hub and reason.
	WebSocketBackpressureDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bitboard_websocket_backpressure_drops_total",
		Help: "Total number of WebSocket messages dropped due to backpressure",
	}, []string{"hub", "reason"})

	// MentionsResolved counts mention tokens by outcome (resolved, unknown, self).
	MentionsResolved = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bitboard_mentions_total",
		Help: "Mention tokens processed by outcome",
	}, []string{"outcome"})

	// NotificationsCreated counts notifications by type.
	NotificationsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bitboard_notifications_created_total",
		Help: "Notifications created by type",
	}, []string{"type"})

	// SagaOutcomes counts saga runs by name and outcome (committed, compensated, compensation_failed).
	SagaOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bitboard_saga_outcomes_total",
		Help: "Saga runs by outcome",
	}, []string{"saga", "outcome"})

	// SearchRequests counts search queries by backend.
	SearchRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bitboard_search_requests_total",
		Help: "Search requests by backend",
	}, []string{"backend"})

	// RateLimitDecisions counts rate limiter outcomes by route key.
	RateLimitDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bitboard_rate_limit_decisions_total",
		Help: "Rate limiter decisions by key and result",
	}, []string{"key", "result"})
)
